package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	"TrendWatch/internal/domain/models"
	"TrendWatch/internal/usecase"
	"TrendWatch/pkg/config"
	xhttp "TrendWatch/pkg/http"
	applogger "TrendWatch/pkg/logger"
)

// Runner is the cycle entry point the app drives.
type Runner interface {
	TryRun(ctx context.Context) (models.CycleResult, error)
}

// App encapsulates the application lifecycle: one-shot runs and the
// long-running scheduler with its HTTP surface.
type App struct {
	cfg     *config.Config
	log     *applogger.Logger
	runner  Runner
	handler xhttp.Handler
	store   StateReader
}

// StateReader reads persisted decisions for the state command.
type StateReader interface {
	Get(ctx context.Context, symbol string) (models.PersistedState, error)
}

// New creates a new App instance with all dependencies.
func New(cfg *config.Config, log *applogger.Logger, runner Runner, handler xhttp.Handler, store StateReader) *App {
	return &App{cfg: cfg, log: log, runner: runner, handler: handler, store: store}
}

// RunOnce runs a single cycle.
func (a *App) RunOnce(ctx context.Context) (models.CycleResult, error) {
	return a.runner.TryRun(ctx)
}

// State returns the persisted decision for symbol.
func (a *App) State(ctx context.Context, symbol string) (models.PersistedState, error) {
	return a.store.Get(ctx, symbol)
}

// Serve starts the HTTP server and runs a cycle every cfg.Cycle.Interval
// (and once at start) until ctx is cancelled or the listener fails.
func (a *App) Serve(ctx context.Context) error {
	srv := xhttp.NewServer(a.handler, a.log,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
		xhttp.WithMetricsPath(metricsPath(a.cfg)),
	)
	srv.Start()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		a.schedule(ctx, a.cfg.Cycle.Interval)
	}()

	var err error
	select {
	case <-ctx.Done():
		a.log.Info("shutdown signal received")
	case err = <-srv.Errors():
		err = fmt.Errorf("http server: %w", err)
	}
	cancel()

	if stopErr := srv.Stop(context.WithoutCancel(ctx)); stopErr != nil {
		a.log.Error("http shutdown error", applogger.Error(stopErr))
	}
	<-done
	a.log.Info("shutdown complete")
	return err
}

func metricsPath(cfg *config.Config) string {
	if !cfg.Metrics.Enabled {
		return ""
	}
	return cfg.Metrics.Path
}

func (a *App) schedule(ctx context.Context, every time.Duration) {
	a.tick(ctx)
	if every <= 0 {
		return
	}

	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			a.tick(ctx)
		}
	}
}

func (a *App) tick(ctx context.Context) {
	res, err := a.runner.TryRun(ctx)
	switch {
	case errors.Is(err, usecase.ErrCycleInProgress):
		a.log.Warn("scheduled cycle skipped, previous cycle still running")
	case err != nil:
		a.log.Error("scheduled cycle failed", applogger.Error(err))
	default:
		a.log.Info("scheduled cycle finished",
			applogger.String("cycle_id", res.CycleID),
			applogger.Int("status", res.StatusCode),
			applogger.String("message", res.Message),
		)
	}
}
