package usecase

import (
	"context"
	"errors"
	"fmt"

	"TrendWatch/internal/domain/models"
	drepo "TrendWatch/internal/domain/repository"
	dsvc "TrendWatch/internal/domain/service"
	"TrendWatch/pkg/logger"
)

// Reconciliation is the outcome of comparing a decision with stored state.
type Reconciliation struct {
	Previous    *models.PersistedState
	Differences []string
	Written     bool
}

// Changed reports whether any field differs from the stored state.
func (r Reconciliation) Changed() bool { return len(r.Differences) > 0 }

// Reconciler compares decisions with the last persisted state and writes the
// new state through.
type Reconciler struct {
	store drepo.StateStore
	clock dsvc.Clock
	log   *logger.Logger
}

// NewReconciler creates a new Reconciler instance.
func NewReconciler(store drepo.StateStore, clock dsvc.Clock, log *logger.Logger) *Reconciler {
	if clock == nil {
		clock = dsvc.SystemClock{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Reconciler{store: store, clock: clock, log: log}
}

// Reconcile reads the previous state, diffs it against d and writes d. A read
// failure is treated as absent state. A write failure is returned together
// with the computed differences.
func (r *Reconciler) Reconcile(ctx context.Context, d models.Decision) (Reconciliation, error) {
	var res Reconciliation

	prev, err := r.store.Get(ctx, d.Symbol)
	switch {
	case err == nil:
		res.Previous = &prev
		res.Differences = Diff(&prev, d)
	case errors.Is(err, models.ErrStateNotFound):
	default:
		r.log.Warn("state read failed, treating as absent",
			logger.String("symbol", d.Symbol),
			logger.Error(err),
		)
	}

	if err := r.store.Put(ctx, d.State(r.clock.Now())); err != nil {
		return res, fmt.Errorf("write state for %s: %w", d.Symbol, err)
	}
	res.Written = true
	return res, nil
}

// Diff lists the fields of prev that differ from d, compared as canonical text.
// A nil prev yields no differences.
func Diff(prev *models.PersistedState, d models.Decision) []string {
	if prev == nil {
		return nil
	}
	fields := []struct {
		name     string
		old, new string
	}{
		{"Action", string(prev.Condition), string(d.Condition)},
		{"Action Date", models.FormatDate(prev.ActionDate), models.FormatDate(d.ActionDate)},
		{"Price", models.FormatPrice(prev.Price), models.FormatPrice(d.Price)},
	}

	var out []string
	for _, f := range fields {
		if f.old != f.new {
			out = append(out, fmt.Sprintf("%s for %s: %s -> %s", f.name, d.Symbol, f.old, f.new))
		}
	}
	return out
}

