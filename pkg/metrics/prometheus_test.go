package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"TrendWatch/internal/domain/models"
	drepo "TrendWatch/internal/domain/repository"
)

var _ drepo.Metrics = (*Recorder)(nil)

func TestRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewWithRegistry(reg)

	r.RecordCycle(200, 42)
	r.RecordCycle(500, 3)
	r.RecordCycle(200, 12)
	r.RecordFetchAttempt("alphavantage", false)
	r.RecordFetchAttempt("alphavantage", true)
	r.RecordDecision("AAPL", models.ConditionFlatBuy, 171.25)
	r.RecordNotification("smtp", false)
	r.RecordSymbolOutcome("MSFT", "unavailable")

	if got := testutil.ToFloat64(r.cycles.WithLabelValues("200")); got != 2 {
		t.Fatalf("cycles{200} = %v", got)
	}
	if got := testutil.ToFloat64(r.fetches.WithLabelValues("alphavantage", "error")); got != 1 {
		t.Fatalf("fetch errors = %v", got)
	}
	if got := testutil.ToFloat64(r.lastPrice.WithLabelValues("AAPL")); got != 171.25 {
		t.Fatalf("last price = %v", got)
	}
	if got := testutil.ToFloat64(r.notifications.WithLabelValues("smtp", "error")); got != 1 {
		t.Fatalf("notification errors = %v", got)
	}
	if n := testutil.CollectAndCount(r.outcomes); n != 1 {
		t.Fatalf("outcome series = %d", n)
	}
}
