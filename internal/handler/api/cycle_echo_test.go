package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"TrendWatch/internal/domain/models"
	"TrendWatch/internal/repository"
	"TrendWatch/internal/usecase"
	"TrendWatch/pkg/cache"
	xhttp "TrendWatch/pkg/http"
	xlogger "TrendWatch/pkg/logger"
)

type stubRunner struct {
	mu    sync.Mutex
	calls int
	res   models.CycleResult
	err   error
	done  chan struct{}
}

func (s *stubRunner) TryRun(context.Context) (models.CycleResult, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.done != nil {
		close(s.done)
	}
	return s.res, s.err
}

func newTestEcho(t *testing.T, runner CycleRunner) (*echo.Echo, *CycleEchoHandler) {
	t.Helper()
	store := repository.NewCacheStateStore(cache.NewMemoryCache())
	t.Cleanup(func() { _ = store.Close() })

	err := store.Put(context.Background(), models.PersistedState{
		Symbol:     "AAPL",
		Condition:  models.ConditionFlatBuy,
		ActionDate: time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC),
		Price:      171.25,
	})
	if err != nil {
		t.Fatal(err)
	}

	h := NewCycleEchoHandler(xlogger.Nop(), runner, store)
	e := echo.New()
	h.RegisterRoutes(e)
	return e, h
}

func do(e *echo.Echo, method, target string) (*httptest.ResponseRecorder, xhttp.APIResponse) {
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	var body xhttp.APIResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	return rec, body
}

func TestRunCycleReturnsCycleStatus(t *testing.T) {
	tests := []struct {
		name   string
		runner *stubRunner
		want   int
	}{
		{"success", &stubRunner{res: models.CycleResult{StatusCode: 200, Message: "ok"}}, http.StatusOK},
		{"notification failed", &stubRunner{res: models.CycleResult{StatusCode: 500, Message: "Notification failed: x"}}, http.StatusInternalServerError},
		{"busy", &stubRunner{err: usecase.ErrCycleInProgress}, http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, _ := newTestEcho(t, tt.runner)
			rec, body := do(e, http.MethodPost, "/api/cycles")
			if rec.Code != tt.want || body.Status != tt.want {
				t.Fatalf("code = %d body.status = %d, want %d", rec.Code, body.Status, tt.want)
			}
			if tt.runner.calls != 1 {
				t.Fatalf("runner calls = %d", tt.runner.calls)
			}
		})
	}
}

func TestRunCycleAsync(t *testing.T) {
	runner := &stubRunner{res: models.CycleResult{StatusCode: 200}, done: make(chan struct{})}
	e, _ := newTestEcho(t, runner)

	rec, _ := do(e, http.MethodPost, "/api/cycles?async=true")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("code = %d", rec.Code)
	}
	select {
	case <-runner.done:
	case <-time.After(2 * time.Second):
		t.Fatal("background cycle did not run")
	}

	rec, _ = do(e, http.MethodPost, "/api/cycles?async=maybe")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad flag code = %d", rec.Code)
	}
}

func TestGetState(t *testing.T) {
	e, _ := newTestEcho(t, &stubRunner{})

	rec, body := do(e, http.MethodGet, "/api/state/aapl")
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d: %s", rec.Code, rec.Body.String())
	}
	data, _ := json.Marshal(body.Data)
	var got models.StateRecord
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}
	if got.Symbol != "AAPL" || got.Action != "flat_buy" || got.ActionDate != "2024-03-04" || got.Price != "171.25" {
		t.Fatalf("unexpected record: %+v", got)
	}

	rec, _ = do(e, http.MethodGet, "/api/state/TSLA")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing symbol code = %d", rec.Code)
	}

	rec, _ = do(e, http.MethodGet, "/api/state/"+strings.Repeat("X", 20))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("long symbol code = %d", rec.Code)
	}
}

func TestListStateAndHealth(t *testing.T) {
	e, _ := newTestEcho(t, &stubRunner{})

	rec, body := do(e, http.MethodGet, "/api/state")
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d", rec.Code)
	}
	rows, ok := body.Data.([]interface{})
	if !ok || len(rows) != 1 {
		t.Fatalf("data = %#v", body.Data)
	}

	rec, _ = do(e, http.MethodGet, "/healthz")
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz code = %d", rec.Code)
	}
}
