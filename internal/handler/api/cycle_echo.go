package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"TrendWatch/internal/domain/models"
	drepo "TrendWatch/internal/domain/repository"
	apimetrics "TrendWatch/internal/service/metrics"
	"TrendWatch/internal/usecase"
	xhttp "TrendWatch/pkg/http"
	xlogger "TrendWatch/pkg/logger"
)

// CycleRunner starts one evaluation cycle unless another is running.
type CycleRunner interface {
	TryRun(ctx context.Context) (models.CycleResult, error)
}

// CycleEchoHandler exposes cycle triggering and persisted state over HTTP.
type CycleEchoHandler struct {
	logger *xlogger.Logger
	runner CycleRunner
	store  drepo.StateStore
}

func NewCycleEchoHandler(logger *xlogger.Logger, runner CycleRunner, store drepo.StateStore) *CycleEchoHandler {
	apimetrics.Register()
	return &CycleEchoHandler{logger: logger, runner: runner, store: store}
}

func (h *CycleEchoHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)

	g := e.Group("/api")
	g.POST("/cycles", h.RunCycle)
	g.GET("/state", h.ListState)
	g.GET("/state/:symbol", h.GetState)
}

func observe(endpoint string, start time.Time, failed bool) {
	apimetrics.APILatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	if failed {
		apimetrics.APIErrors.WithLabelValues(endpoint).Inc()
	}
}

func (h *CycleEchoHandler) Health(c echo.Context) error {
	return xhttp.SuccessResponse(c, map[string]string{"status": "ok"})
}

// RunCycle runs a cycle and answers with its status code. With ?async=true the
// cycle runs detached from the request and the handler answers 202.
func (h *CycleEchoHandler) RunCycle(c echo.Context) error {
	start := time.Now()
	req := &models.CycleRequest{}
	// echo's default binder ignores the query string on POST
	if err := echo.QueryParamsBinder(c).Bool("async", &req.Async).BindError(); err != nil {
		observe("cycles", start, true)
		return xhttp.AppErrorResponse(c, xhttp.BadRequestErrorf("invalid async flag").WithError(err))
	}

	if req.Async {
		ctx := context.WithoutCancel(c.Request().Context())
		go func() {
			res, err := h.runner.TryRun(ctx)
			if err != nil {
				h.logger.Warn("background cycle not run", xlogger.Error(err))
				return
			}
			h.logger.Info("background cycle finished",
				xlogger.String("cycle_id", res.CycleID),
				xlogger.Int("status", res.StatusCode),
			)
		}()
		observe("cycles", start, false)
		return xhttp.AcceptedResponse(c, map[string]string{"status": "started"})
	}

	res, err := h.runner.TryRun(c.Request().Context())
	if err != nil {
		observe("cycles", start, true)
		if errors.Is(err, usecase.ErrCycleInProgress) {
			return xhttp.AppErrorResponse(c, xhttp.ConflictError(err.Error()))
		}
		h.logger.Error("cycle usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalErrorf("cycle failed").WithError(err))
	}
	observe("cycles", start, res.StatusCode >= http.StatusInternalServerError)
	return xhttp.DataResponse(c, res.StatusCode, res)
}

func (h *CycleEchoHandler) GetState(c echo.Context) error {
	start := time.Now()
	req := &models.StateRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		observe("state", start, true)
		return xhttp.BadRequestResponse(c, verr)
	}
	symbol := strings.ToUpper(req.Symbol)

	st, err := h.store.Get(c.Request().Context(), symbol)
	if err != nil {
		observe("state", start, true)
		if errors.Is(err, models.ErrStateNotFound) {
			return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("no state for %s", symbol).WithParam("symbol", symbol))
		}
		h.logger.Error("state lookup error", xlogger.String("symbol", symbol), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalErrorf("state lookup failed").WithError(err))
	}
	observe("state", start, false)
	return xhttp.SuccessResponse(c, st.Record())
}

func (h *CycleEchoHandler) ListState(c echo.Context) error {
	start := time.Now()
	states, err := h.store.List(c.Request().Context())
	if err != nil {
		observe("state_list", start, true)
		h.logger.Error("state list error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalErrorf("state list failed").WithError(err))
	}
	out := make([]models.StateRecord, 0, len(states))
	for _, st := range states {
		out = append(out, st.Record())
	}
	observe("state_list", start, false)
	return xhttp.SuccessResponse(c, out)
}
