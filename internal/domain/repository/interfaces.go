package repository

import (
	"context"
	"time"

	"TrendWatch/internal/domain/models"
)

// PriceProvider fetches bars for a symbol, newest first.
type PriceProvider interface {
	FetchSeries(ctx context.Context, symbol string, interval Interval) ([]models.Bar, error)
}

// StateStore persists the last decision per symbol. Get returns
// models.ErrStateNotFound when the symbol has no record.
type StateStore interface {
	Get(ctx context.Context, symbol string) (models.PersistedState, error)
	Put(ctx context.Context, state models.PersistedState) error
	List(ctx context.Context) ([]models.PersistedState, error)
	Close() error
}

// Notifier delivers the cycle report.
type Notifier interface {
	Notify(ctx context.Context, report models.Report) error
}

// DecisionJournal appends decisions to an analytical store.
type DecisionJournal interface {
	Record(ctx context.Context, event models.DecisionEvent) error
}

// DecisionPublisher emits decision events to a message bus.
type DecisionPublisher interface {
	PublishDecision(ctx context.Context, event models.DecisionEvent) error
}

// ParamsSource supplies per-symbol indicator parameters.
type ParamsSource interface {
	Symbols() []string
	Params(symbol string) (models.SymbolConfig, error)
}

type Metrics interface {
	RecordCycle(status int, seconds float64)
	RecordSymbolOutcome(symbol, outcome string)
	RecordFetchAttempt(provider string, ok bool)
	RecordDecision(symbol string, condition models.Condition, price float64)
	RecordNotification(channel string, ok bool)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}

// NopMetrics discards everything.
type NopMetrics struct{}

func (NopMetrics) RecordCycle(int, float64) {}
func (NopMetrics) RecordSymbolOutcome(string, string) {}
func (NopMetrics) RecordFetchAttempt(string, bool) {}
func (NopMetrics) RecordDecision(string, models.Condition, float64) {}
func (NopMetrics) RecordNotification(string, bool) {}
func (NopMetrics) RecordError(string) {}
func (NopMetrics) RecordLatency(string, float64) {}

// Locker guards against overlapping cycles. pkg/cache services satisfy it.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key string) error
}
