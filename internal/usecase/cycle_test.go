package usecase

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"TrendWatch/internal/domain/models"
	"TrendWatch/internal/service/clock"
	"TrendWatch/internal/service/ratelimit"
	"TrendWatch/pkg/cache"
)

// alwaysFires makes hype_buy fire on every bar so the decision is the last bar.
func alwaysFires() models.SymbolConfig {
	return models.SymbolConfig{
		SMALength: 2, SMALong: 3, StdDev: 2, TSILength: 3, RSILength: 2,
		Rules: exclusive(models.ConditionHypeBuy, models.Predicate{Left: "price", Op: models.OpGT, Right: "0"}),
	}
}

// exclusive enables only kind and disables every default rule.
func exclusive(kind models.Condition, preds ...models.Predicate) models.Rules {
	rules := models.Rules{}
	for _, k := range models.AllConditions {
		rules[k] = []models.Predicate{}
	}
	rules[kind] = preds
	return rules
}

type harness struct {
	clock    *clock.Fake
	provider *scriptedProvider
	store    *memStore
	notifier *recordingNotifier
	journal  *recordingJournal
	coord    *Coordinator
}

func newHarness(t *testing.T, params staticParams, opts ...CoordinatorOption) *harness {
	t.Helper()
	h := &harness{
		clock:    clock.NewFake(epoch),
		provider: newScriptedProvider(),
		store:    newMemStore(),
		notifier: &recordingNotifier{},
		journal:  &recordingJournal{},
	}
	acq := NewAcquirer(h.provider, nil, nil, WithClock(h.clock))
	rec := NewReconciler(h.store, h.clock, nil)
	opts = append([]CoordinatorOption{
		WithCycleClock(h.clock),
		WithPacer(ratelimit.NewPacer(15*time.Second, h.clock)),
		WithJournal(h.journal),
	}, opts...)
	h.coord = NewCoordinator(params, acq, rec, h.notifier, nil, nil, opts...)
	return h
}

func TestRunCycleEndToEnd(t *testing.T) {
	params := staticParams{
		order: []string{"A", "B", "C"},
		params: map[string]models.SymbolConfig{
			"A": alwaysFires(), "B": alwaysFires(), "C": alwaysFires(),
		},
	}
	h := newHarness(t, params)
	h.provider.
		on("A", fetchResult{bars: newestFirst(10, 9, 8)}).
		on("B", fetchResult{bars: newestFirst(12, 11, 10)}).
		on("C", fetchResult{err: errFetch})

	today := day("2024-03-15")
	h.store.data["A"] = models.PersistedState{Symbol: "A", Condition: models.ConditionHypeBuy, ActionDate: today, Price: 10}
	h.store.data["B"] = models.PersistedState{Symbol: "B", Condition: models.ConditionHypeBuy, ActionDate: today, Price: 11}

	res := h.coord.RunCycle(context.Background())

	if res.StatusCode != http.StatusOK || !res.Notified {
		t.Fatalf("expected success with notification, got %+v", res)
	}
	if res.CycleID == "" {
		t.Fatal("cycle id must be set")
	}
	if got := strings.Join(h.store.writes, ","); got != "A,B" {
		t.Fatalf("writes %q, want A,B", got)
	}
	if len(h.notifier.reports) != 1 {
		t.Fatalf("expected exactly one notification, got %d", len(h.notifier.reports))
	}

	report := h.notifier.reports[0]
	if len(report.Differences) != 1 || report.Differences[0] != "Price for B: 11 -> 12" {
		t.Fatalf("unexpected differences %v", report.Differences)
	}
	if len(report.Summaries) != 2 || report.Summaries[0].Symbol != "A" || report.Summaries[1].Symbol != "B" {
		t.Fatalf("unexpected summaries %+v", report.Summaries)
	}
	if report.Subject != DefaultSubject || !strings.Contains(report.HTML, "Price for B: 11 -&gt; 12") {
		t.Fatalf("unexpected report rendering:\n%s", report.HTML)
	}
	if _, failed := res.Failures["C"]; !failed || len(res.Failures) != 1 {
		t.Fatalf("expected only C to fail, got %v", res.Failures)
	}

	// A and B are paced to 15s each; C spends 20s in backoff and needs no pacing.
	want := []time.Duration{15 * time.Second, 15 * time.Second, 10 * time.Second, 10 * time.Second}
	got := h.clock.Sleeps()
	if len(got) != len(want) {
		t.Fatalf("sleeps %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sleeps %v, want %v", got, want)
		}
	}

	if len(h.journal.events) != 2 || !h.journal.events[1].Changed || h.journal.events[0].Changed {
		t.Fatalf("unexpected journal events %+v", h.journal.events)
	}
}

func TestRunCycleSkipsMissingParamsWithoutPacing(t *testing.T) {
	params := staticParams{order: []string{"X"}, params: map[string]models.SymbolConfig{}}
	h := newHarness(t, params)

	res := h.coord.RunCycle(context.Background())
	if res.StatusCode != http.StatusOK || res.Notified {
		t.Fatalf("unexpected result %+v", res)
	}
	if !strings.Contains(res.Failures["X"], models.ErrNoParams.Error()) {
		t.Fatalf("missing params should be recorded, got %v", res.Failures)
	}
	if len(h.clock.Sleeps()) != 0 {
		t.Fatalf("symbols without params are not paced, got %v", h.clock.Sleeps())
	}
	if len(h.notifier.reports) != 0 {
		t.Fatal("no notification expected")
	}
	if !strings.Contains(res.Message, "not sent") {
		t.Fatalf("message should say nothing was sent: %q", res.Message)
	}
}

func TestRunCycleNotificationFailure(t *testing.T) {
	params := staticParams{order: []string{"A"}, params: map[string]models.SymbolConfig{"A": alwaysFires()}}
	h := newHarness(t, params)
	h.provider.on("A", fetchResult{bars: newestFirst(3, 2, 1)})
	h.notifier.err = errors.New("smtp unreachable")

	res := h.coord.RunCycle(context.Background())
	if res.StatusCode != http.StatusInternalServerError || res.Notified {
		t.Fatalf("expected failure status, got %+v", res)
	}
	if len(h.store.writes) != 1 {
		t.Fatal("writes are not rolled back on notification failure")
	}
}

func TestRunCycleStoreFailureKeepsSummary(t *testing.T) {
	params := staticParams{order: []string{"A"}, params: map[string]models.SymbolConfig{"A": alwaysFires()}}
	h := newHarness(t, params)
	h.provider.on("A", fetchResult{bars: newestFirst(3, 2, 1)})
	h.store.putErr["A"] = errors.New("read only")

	res := h.coord.RunCycle(context.Background())
	if res.StatusCode != http.StatusOK || len(res.Summaries) != 1 || res.Failures["A"] == "" {
		t.Fatalf("unexpected result %+v", res)
	}
	if len(h.journal.events) != 0 {
		t.Fatal("unpersisted decisions are not journaled")
	}
}

func TestRunCycleNoSignal(t *testing.T) {
	cfg := alwaysFires()
	cfg.Rules = exclusive(models.ConditionHypeBuy, models.Predicate{Left: "price", Op: models.OpLT, Right: "0"})
	params := staticParams{order: []string{"A"}, params: map[string]models.SymbolConfig{"A": cfg}}
	h := newHarness(t, params)
	h.provider.on("A", fetchResult{bars: newestFirst(3, 2, 1)})

	res := h.coord.RunCycle(context.Background())
	if res.Notified || len(h.store.writes) != 0 || len(res.Failures) != 0 {
		t.Fatalf("symbol without signal must be skipped silently, got %+v", res)
	}
}

func TestTryRunRespectsLock(t *testing.T) {
	locks := cache.NewMemoryCache()
	defer locks.Close()

	params := staticParams{order: nil, params: map[string]models.SymbolConfig{}}
	h := newHarness(t, params, WithLocker(locks, time.Minute))

	ok, _ := locks.TryLock(context.Background(), cycleLockKey, time.Minute)
	if !ok {
		t.Fatal("could not take lock")
	}
	if _, err := h.coord.TryRun(context.Background()); !errors.Is(err, ErrCycleInProgress) {
		t.Fatalf("expected ErrCycleInProgress, got %v", err)
	}

	_ = locks.Unlock(context.Background(), cycleLockKey)
	if _, err := h.coord.TryRun(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if held, _ := locks.Exists(context.Background(), cycleLockKey); held {
		t.Fatal("lock must be released after the cycle")
	}
}

func TestRunCycleNotifiesAfterCancellation(t *testing.T) {
	params := staticParams{
		order:  []string{"A", "B"},
		params: map[string]models.SymbolConfig{"A": alwaysFires(), "B": alwaysFires()},
	}
	h := newHarness(t, params)
	h.provider.on("A", fetchResult{bars: newestFirst(10, 9, 8)})
	h.provider.on("B", fetchResult{bars: newestFirst(12, 11, 10)})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.provider.after = func(symbol string) {
		if symbol == "A" {
			cancel()
		}
	}

	res := h.coord.RunCycle(ctx)
	if _, ok := res.Failures["B"]; !ok {
		t.Fatalf("B should fail after cancellation, failures %v", res.Failures)
	}
	if len(h.notifier.reports) != 1 {
		t.Fatalf("expected the gathered report to be sent, got %d", len(h.notifier.reports))
	}
	if err := h.notifier.ctxErrs[0]; err != nil {
		t.Fatalf("notification context already done: %v", err)
	}
	if res.StatusCode != http.StatusOK || !res.Notified {
		t.Fatalf("got %+v", res)
	}
}
