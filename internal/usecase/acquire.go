package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"TrendWatch/internal/domain/models"
	drepo "TrendWatch/internal/domain/repository"
	dsvc "TrendWatch/internal/domain/service"
	"TrendWatch/pkg/logger"
)

const (
	DefaultAttempts = 3
	DefaultBackoff  = 10 * time.Second
)

var errEmptySeries = errors.New("empty series")

// Acquirer fetches a price series with a bounded, fixed-backoff retry.
type Acquirer struct {
	provider drepo.PriceProvider
	interval drepo.Interval
	attempts int
	backoff  time.Duration
	clock    dsvc.Clock
	metrics  drepo.Metrics
	log      *logger.Logger
	name     string
}

// AcquirerOption configures an Acquirer.
type AcquirerOption func(*Acquirer)

// WithRetry sets the attempt budget and the wait between attempts.
func WithRetry(attempts int, backoff time.Duration) AcquirerOption {
	return func(a *Acquirer) {
		if attempts > 0 {
			a.attempts = attempts
		}
		if backoff >= 0 {
			a.backoff = backoff
		}
	}
}

// WithClock replaces the wall clock.
func WithClock(c dsvc.Clock) AcquirerOption {
	return func(a *Acquirer) { a.clock = c }
}

// WithInterval sets the bar interval requested from the provider.
func WithInterval(iv drepo.Interval) AcquirerOption {
	return func(a *Acquirer) { a.interval = iv }
}

// WithProviderName labels fetch metrics.
func WithProviderName(name string) AcquirerOption {
	return func(a *Acquirer) { a.name = name }
}

// NewAcquirer creates a new Acquirer instance.
func NewAcquirer(provider drepo.PriceProvider, metrics drepo.Metrics, log *logger.Logger, opts ...AcquirerOption) *Acquirer {
	a := &Acquirer{
		provider: provider,
		interval: drepo.DefaultInterval(),
		attempts: DefaultAttempts,
		backoff:  DefaultBackoff,
		clock:    dsvc.SystemClock{},
		metrics:  metrics,
		log:      log,
		name:     "provider",
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.metrics == nil {
		a.metrics = drepo.NopMetrics{}
	}
	if a.log == nil {
		a.log = logger.Nop()
	}
	return a
}

// Acquire returns the symbol's closes oldest first. After the attempt budget
// is spent it returns an error wrapping models.ErrUnavailable.
func (a *Acquirer) Acquire(ctx context.Context, symbol string) (models.PriceSeries, error) {
	var lastErr error
	for attempt := 1; attempt <= a.attempts; attempt++ {
		start := a.clock.Now()
		bars, err := a.provider.FetchSeries(ctx, symbol, a.interval)
		a.metrics.RecordLatency("fetch_series", a.clock.Now().Sub(start).Seconds())
		if err == nil && len(bars) == 0 {
			err = errEmptySeries
		}
		a.metrics.RecordFetchAttempt(a.name, err == nil)
		if err == nil {
			return toSeries(symbol, bars), nil
		}
		lastErr = err

		if attempt == a.attempts {
			break
		}
		a.log.Warn("fetch failed, retrying",
			logger.String("symbol", symbol),
			logger.Int("attempt", attempt),
			logger.Int("remaining", a.attempts-attempt),
			logger.Duration("backoff", a.backoff),
			logger.Error(err),
		)
		if err := a.clock.Sleep(ctx, a.backoff); err != nil {
			return models.PriceSeries{}, fmt.Errorf("%w: %s: %v", models.ErrUnavailable, symbol, err)
		}
	}
	return models.PriceSeries{}, fmt.Errorf("%w: %s after %d attempts: %v", models.ErrUnavailable, symbol, a.attempts, lastErr)
}

// toSeries reverses newest-first bars into an oldest-first series.
func toSeries(symbol string, bars []models.Bar) models.PriceSeries {
	n := len(bars)
	s := models.PriceSeries{
		Symbol: symbol,
		Closes: make([]float64, n),
		Times:  make([]time.Time, n),
	}
	for i, b := range bars {
		s.Closes[n-1-i] = b.Close
		s.Times[n-1-i] = b.Time
	}
	return s
}
