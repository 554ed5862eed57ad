package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"TrendWatch/internal/domain/models"
	drepo "TrendWatch/internal/domain/repository"
	dsvc "TrendWatch/internal/domain/service"
	"TrendWatch/internal/service/ratelimit"
	"TrendWatch/internal/services/conditions"
	"TrendWatch/internal/services/indicators"
	"TrendWatch/pkg/logger"
)

// ErrCycleInProgress is returned when another cycle holds the lock.
var ErrCycleInProgress = errors.New("cycle already in progress")

const cycleLockKey = "lock:cycle"

// Symbol outcomes reported to metrics.
const (
	OutcomeOK          = "ok"
	OutcomeNoParams    = "no_params"
	OutcomeUnavailable = "unavailable"
	OutcomeInvalid     = "invalid_rules"
	OutcomeNoSignal    = "no_signal"
	OutcomeStoreFailed = "store_failed"
)

// Coordinator runs one evaluation cycle over the symbol universe.
type Coordinator struct {
	params     drepo.ParamsSource
	universe   []string
	acquirer   *Acquirer
	reconciler *Reconciler
	notifier   drepo.Notifier
	journal    drepo.DecisionJournal
	publisher  drepo.DecisionPublisher
	locker     drepo.Locker
	lockTTL    time.Duration
	pacer      *ratelimit.Pacer
	clock      dsvc.Clock
	metrics    drepo.Metrics
	log        *logger.Logger
	subject    string
	notifyTTL  time.Duration
}

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithUniverse fixes the evaluated symbols and their order.
func WithUniverse(symbols []string) CoordinatorOption {
	return func(c *Coordinator) { c.universe = symbols }
}

// WithJournal appends every persisted decision to j.
func WithJournal(j drepo.DecisionJournal) CoordinatorOption {
	return func(c *Coordinator) { c.journal = j }
}

// WithPublisher emits every persisted decision through p.
func WithPublisher(p drepo.DecisionPublisher) CoordinatorOption {
	return func(c *Coordinator) { c.publisher = p }
}

// WithLocker makes TryRun refuse to start while another cycle holds the lock.
func WithLocker(l drepo.Locker, ttl time.Duration) CoordinatorOption {
	return func(c *Coordinator) {
		c.locker = l
		c.lockTTL = ttl
	}
}

// WithPacer sets the per-symbol minimum duration policy.
func WithPacer(p *ratelimit.Pacer) CoordinatorOption {
	return func(c *Coordinator) { c.pacer = p }
}

// WithCycleClock replaces the wall clock used for dates and pacing.
func WithCycleClock(clock dsvc.Clock) CoordinatorOption {
	return func(c *Coordinator) { c.clock = clock }
}

// WithSubject sets the notification subject.
func WithSubject(s string) CoordinatorOption {
	return func(c *Coordinator) { c.subject = s }
}

// WithNotifyTimeout bounds the final notification, which is sent even when the
// cycle context was cancelled.
func WithNotifyTimeout(d time.Duration) CoordinatorOption {
	return func(c *Coordinator) {
		if d > 0 {
			c.notifyTTL = d
		}
	}
}

// NewCoordinator creates a new Coordinator instance.
func NewCoordinator(params drepo.ParamsSource, acquirer *Acquirer, reconciler *Reconciler, notifier drepo.Notifier, metrics drepo.Metrics, log *logger.Logger, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		params:     params,
		acquirer:   acquirer,
		reconciler: reconciler,
		notifier:   notifier,
		metrics:    metrics,
		log:        log,
		clock:      dsvc.SystemClock{},
		lockTTL:    15 * time.Minute,
		subject:    DefaultSubject,
		notifyTTL:  time.Minute,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.metrics == nil {
		c.metrics = drepo.NopMetrics{}
	}
	if c.log == nil {
		c.log = logger.Nop()
	}
	if c.pacer == nil {
		c.pacer = ratelimit.NewPacer(15*time.Second, c.clock)
	}
	return c
}

// Universe returns the symbols evaluated each cycle, in order.
func (c *Coordinator) Universe() []string {
	if len(c.universe) > 0 {
		return c.universe
	}
	return c.params.Symbols()
}

// TryRun runs a cycle unless another one holds the cycle lock.
func (c *Coordinator) TryRun(ctx context.Context) (models.CycleResult, error) {
	if c.locker == nil {
		return c.RunCycle(ctx), nil
	}
	ok, err := c.locker.TryLock(ctx, cycleLockKey, c.lockTTL)
	if err != nil {
		return models.CycleResult{}, fmt.Errorf("acquire cycle lock: %w", err)
	}
	if !ok {
		return models.CycleResult{}, ErrCycleInProgress
	}
	defer func() {
		if err := c.locker.Unlock(context.WithoutCancel(ctx), cycleLockKey); err != nil {
			c.log.Warn("release cycle lock failed", logger.Error(err))
		}
	}()
	return c.RunCycle(ctx), nil
}

// cycleState accumulates per-symbol outputs.
type cycleState struct {
	id        string
	diffs     []string
	summaries []models.SymbolSummary
	failures  map[string]string
}

func (s *cycleState) fail(symbol string, err error) {
	s.failures[symbol] = err.Error()
}

// RunCycle evaluates every symbol sequentially and sends at most one
// notification. Per-symbol failures never abort the cycle.
func (c *Coordinator) RunCycle(ctx context.Context) models.CycleResult {
	started := c.clock.Now()
	st := &cycleState{id: uuid.NewString(), failures: make(map[string]string)}
	log := c.log.With(logger.String("cycle_id", st.id))

	universe := c.Universe()
	log.Info("cycle started", logger.Int("symbols", len(universe)))

	for _, symbol := range universe {
		if err := ctx.Err(); err != nil {
			st.fail(symbol, err)
			continue
		}

		cfg, err := c.params.Params(symbol)
		if err != nil {
			log.Warn("skipping symbol without parameters", logger.String("symbol", symbol), logger.Error(err))
			c.metrics.RecordSymbolOutcome(symbol, OutcomeNoParams)
			st.fail(symbol, err)
			continue
		}

		tok := c.pacer.Start()
		outcome := c.processSymbol(ctx, log, st, symbol, cfg)
		c.metrics.RecordSymbolOutcome(symbol, outcome)

		if err := c.pacer.Wait(ctx, tok); err != nil {
			log.Warn("pacing interrupted", logger.String("symbol", symbol), logger.Error(err))
		}
	}

	res := models.CycleResult{
		CycleID:     st.id,
		StatusCode:  http.StatusOK,
		Differences: st.diffs,
		Summaries:   st.summaries,
		Failures:    st.failures,
		StartedAt:   started,
	}
	if res.Differences == nil {
		res.Differences = []string{}
	}
	if res.Summaries == nil {
		res.Summaries = []models.SymbolSummary{}
	}

	if len(st.diffs) == 0 && len(st.summaries) == 0 {
		res.Message = "No decisions found, notification not sent"
	} else {
		report := RenderReport(st.id, c.subject, st.summaries, st.diffs)
		nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.notifyTTL)
		err := c.notifier.Notify(nctx, report)
		cancel()
		if err != nil {
			log.Error("notification failed", logger.Error(err))
			c.metrics.RecordNotification("report", false)
			res.StatusCode = http.StatusInternalServerError
			res.Message = fmt.Sprintf("Notification failed: %v", err)
		} else {
			c.metrics.RecordNotification("report", true)
			res.Notified = true
			res.Message = fmt.Sprintf("Notification sent: %d symbol(s), %d difference(s)", len(st.summaries), len(st.diffs))
		}
	}

	res.Duration = c.clock.Now().Sub(started)
	c.metrics.RecordCycle(res.StatusCode, res.Duration.Seconds())
	log.Info("cycle finished",
		logger.Int("status", res.StatusCode),
		logger.Bool("notified", res.Notified),
		logger.Int("failures", len(st.failures)),
		logger.Duration("duration", res.Duration),
	)
	return res
}

func (c *Coordinator) processSymbol(ctx context.Context, log *logger.Logger, st *cycleState, symbol string, cfg models.SymbolConfig) string {
	log = log.With(logger.String("symbol", symbol))

	series, err := c.acquirer.Acquire(ctx, symbol)
	if err != nil {
		log.Warn("skipping unavailable symbol", logger.Error(err))
		st.fail(symbol, err)
		return OutcomeUnavailable
	}

	bundle := indicators.Compute(series.Closes, cfg)
	decision, ok, err := conditions.Evaluate(series, bundle, cfg, c.clock.Now())
	if err != nil {
		log.Warn("skipping symbol with invalid rules", logger.Error(err))
		st.fail(symbol, err)
		return OutcomeInvalid
	}
	if !ok {
		log.Info("no condition fired", logger.Int("bars", series.Len()))
		return OutcomeNoSignal
	}
	c.metrics.RecordDecision(symbol, decision.Condition, decision.Price)

	rec, err := c.reconciler.Reconcile(ctx, decision)
	st.diffs = append(st.diffs, rec.Differences...)
	st.summaries = append(st.summaries, decision.Summary())

	if err != nil {
		log.Error("persisting decision failed", logger.Error(err))
		c.metrics.RecordError("store")
		st.fail(symbol, err)
		return OutcomeStoreFailed
	}

	log.Info("decision recorded",
		logger.String("action", string(decision.Condition)),
		logger.String("action_date", models.FormatDate(decision.ActionDate)),
		logger.Float64("price", decision.Price),
		logger.Bool("changed", rec.Changed()),
	)
	c.emit(ctx, log, st.id, decision, rec)
	return OutcomeOK
}

// emit records the decision in the journal and on the bus. Failures are logged only.
func (c *Coordinator) emit(ctx context.Context, log *logger.Logger, cycleID string, d models.Decision, rec Reconciliation) {
	if c.journal == nil && c.publisher == nil {
		return
	}
	ev := models.DecisionEvent{
		CycleID:      cycleID,
		Symbol:       d.Symbol,
		Condition:    d.Condition,
		TriggerIndex: d.TriggerIndex,
		ActionDate:   models.FormatDate(d.ActionDate),
		Price:        d.Price,
		Changed:      rec.Changed(),
		Differences:  rec.Differences,
		EvaluatedAt:  c.clock.Now(),
	}
	if c.journal != nil {
		if err := c.journal.Record(ctx, ev); err != nil {
			log.Warn("journal write failed", logger.Error(err))
			c.metrics.RecordError("journal")
		}
	}
	if c.publisher != nil {
		if err := c.publisher.PublishDecision(ctx, ev); err != nil {
			log.Warn("decision publish failed", logger.Error(err))
			c.metrics.RecordError("publish")
		}
	}
}
