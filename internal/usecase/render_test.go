package usecase

import (
	"strings"
	"testing"

	"TrendWatch/internal/domain/models"
)

func TestRenderHTMLColours(t *testing.T) {
	summaries := []models.SymbolSummary{
		{Symbol: "AAPL", Condition: models.ConditionRSIBuy, ActionDate: "2024-03-15", Price: "172.5"},
		{Symbol: "TSLA", Condition: models.ConditionDowntrendSell, ActionDate: "2024-03-14", Price: "160"},
	}
	diffs := []string{"Action for TSLA: flat_buy -> downtrend_sell", "Price for TSLA: 170 -> 160"}

	body := RenderHTML(summaries, diffs)

	green := strings.Index(body, `background-color:green;`)
	red := strings.Index(body, `background-color:red;`)
	if green < 0 || red < 0 || green > red {
		t.Fatalf("expected green block for AAPL then red for TSLA:\n%s", body)
	}
	if !strings.Contains(body, "Symbol: AAPL<br>") || !strings.Contains(body, "Price: 160<br>") {
		t.Fatalf("summary fields missing:\n%s", body)
	}
	if !strings.Contains(body, "flat_buy -&gt; downtrend_sell<br>Price for TSLA") {
		t.Fatalf("differences must be joined with <br>:\n%s", body)
	}
}

func TestRenderReportDefaults(t *testing.T) {
	r := RenderReport("c1", "", nil, []string{"Price for A: 1 -> 2"})
	if r.Subject != DefaultSubject {
		t.Fatalf("subject %q", r.Subject)
	}
	if !strings.Contains(r.Text, "- Price for A: 1 -> 2") {
		t.Fatalf("text variant missing diff:\n%s", r.Text)
	}
}
