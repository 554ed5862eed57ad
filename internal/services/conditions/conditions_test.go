package conditions

import (
	"math"
	"testing"
	"time"

	"TrendWatch/internal/domain/models"
	"TrendWatch/internal/services/indicators"
)

func seq(n int, idx ...int) []bool {
	out := make([]bool, n)
	for _, i := range idx {
		out[i] = true
	}
	return out
}

// only disables every kind r does not list.
func only(r models.Rules) models.Rules {
	out := models.Rules{}
	for _, kind := range models.AllConditions {
		out[kind] = []models.Predicate{}
	}
	for kind, preds := range r {
		out[kind] = preds
	}
	return out
}

func TestSelectMostRecentWins(t *testing.T) {
	ts := NewTriggerSet(20, map[models.Condition][]bool{
		models.ConditionFlatBuy:  seq(20, 3),
		models.ConditionFallSell: seq(20, 7, 10),
		models.ConditionRSIBuy:   seq(20, 7),
	})

	idx, kind, ok := Select(ts)
	if !ok || idx != 10 || kind != models.ConditionFallSell {
		t.Fatalf("got idx=%d kind=%s ok=%v, want 10 fall_sell", idx, kind, ok)
	}
}

func TestSelectPrecedence(t *testing.T) {
	tests := []struct {
		name  string
		fired []models.Condition
		want  models.Condition
	}{
		{"buy beats sell", []models.Condition{models.ConditionFallSell, models.ConditionHypeBuy}, models.ConditionHypeBuy},
		{"flat beats hype", []models.Condition{models.ConditionHypeBuy, models.ConditionFlatBuy}, models.ConditionFlatBuy},
		{"uptrend beats downtrend", []models.Condition{models.ConditionDowntrendSell, models.ConditionUptrendSell}, models.ConditionUptrendSell},
		{"rsi beats sells", []models.Condition{models.ConditionRSIBuy, models.ConditionUptrendSell}, models.ConditionRSIBuy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fired := map[models.Condition][]bool{}
			for _, k := range tt.fired {
				fired[k] = seq(5, 4)
			}
			_, kind, ok := Select(NewTriggerSet(5, fired))
			if !ok || kind != tt.want {
				t.Fatalf("got %s, want %s", kind, tt.want)
			}
		})
	}
}

func TestSelectNone(t *testing.T) {
	idx, kind, ok := Select(NewTriggerSet(10, nil))
	if ok || idx != -1 || kind != models.ConditionNone {
		t.Fatalf("expected no decision, got %d %s %v", idx, kind, ok)
	}
}

func TestActionDate(t *testing.T) {
	now := time.Date(2024, 3, 15, 16, 30, 0, 0, time.UTC)

	got := ActionDate(100, 93, now)
	want := time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("got %s, want %s", got, want)
	}

	// the most recent bar is still within today
	if d := ActionDate(100, 99, now); !d.Equal(time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("last bar: got %s", d)
	}

	// more recent index never yields an earlier date
	prev := ActionDate(100, 0, now)
	for i := 1; i < 100; i++ {
		d := ActionDate(100, i, now)
		if d.Before(prev) {
			t.Fatalf("date for %d before date for %d", i, i-1)
		}
		prev = d
	}
}

func TestTriggersCustomRules(t *testing.T) {
	closes := []float64{10, 11, 9, 12, 8}
	cfg := models.SymbolConfig{
		SMALength: 2, SMALong: 3, TSILength: 3, ROC: 5,
		Rules: only(models.Rules{
			models.ConditionHypeBuy:  {{Left: "price", Op: models.OpGT, Right: "11.5"}},
			models.ConditionFallSell: {{Left: "price", Op: models.OpCrossBelow, Right: "sma_short"}},
		}),
	}
	b := indicators.Compute(closes, cfg)
	ts, err := Triggers(closes, b, cfg)
	if err != nil {
		t.Fatal(err)
	}

	if got := ts.Indices(models.ConditionHypeBuy); len(got) != 1 || got[0] != 3 {
		t.Fatalf("hype_buy indices %v, want [3]", got)
	}
	// sma_short: NaN, 10.5, 10, 10.5, 10
	// price crosses below at 2 (11 >= 10.5, 9 < 10) and at 4 (12 >= 10.5, 8 < 10)
	if got := ts.Indices(models.ConditionFallSell); len(got) != 2 || got[0] != 2 || got[1] != 4 {
		t.Fatalf("fall_sell indices %v, want [2 4]", got)
	}
	// an explicit empty list disables the kind
	if len(ts.Indices(models.ConditionFlatBuy)) != 0 {
		t.Fatal("disabled flat_buy must not fire")
	}
}

func TestEffectiveRulesOverlayDefaults(t *testing.T) {
	fall := []models.Predicate{
		{Left: "roc", Op: models.OpLT, Right: "-roc_threshold"},
		{Left: "price", Op: models.OpLT, Right: "sma_long"},
	}
	cfg := models.SymbolConfig{Rules: models.Rules{
		models.ConditionFallSell: fall,
		models.ConditionRSIBuy:   {},
	}}
	rules := cfg.EffectiveRules()
	defaults := models.DefaultRules()

	if len(rules[models.ConditionFallSell]) != 2 {
		t.Fatalf("fall_sell override not applied: %v", rules[models.ConditionFallSell])
	}
	if len(rules[models.ConditionRSIBuy]) != 0 {
		t.Fatal("rsi_buy listed empty must be disabled")
	}
	for _, kind := range []models.Condition{
		models.ConditionFlatBuy, models.ConditionHypeBuy,
		models.ConditionUptrendSell, models.ConditionDowntrendSell,
	} {
		if len(rules[kind]) == 0 || len(rules[kind]) != len(defaults[kind]) {
			t.Fatalf("%s lost its default predicates: %v", kind, rules[kind])
		}
	}
	if len(cfg.Rules) != 2 {
		t.Fatal("overlay must not mutate the configured rules")
	}
}

func TestPartialOverrideStillBuys(t *testing.T) {
	// price climbs back over the lower band with a flat trend
	closes := []float64{100, 100, 100, 100, 90, 100}
	cfg := models.SymbolConfig{
		SMALength: 3, SMALong: 3, StdDev: 1, TSILength: 2, ROC: 50, Direction: 1000, TSIMin: -5,
		Rules: models.Rules{
			models.ConditionFallSell: {{Left: "roc", Op: models.OpLT, Right: "-roc_threshold"}},
		},
	}
	ts, err := Triggers(closes, indicators.Compute(closes, cfg), cfg)
	if err != nil {
		t.Fatal(err)
	}
	if !ts.Fired(models.ConditionFlatBuy, 5) {
		t.Fatalf("default flat_buy must survive a fall_sell override, fired at %v", ts.Indices(models.ConditionFlatBuy))
	}
}

func TestTriggersNegatedParam(t *testing.T) {
	closes := []float64{100, 90}
	cfg := models.SymbolConfig{
		SMALength: 1, SMALong: 1, TSILength: 1, ROC: 5,
		Rules: models.Rules{
			models.ConditionFallSell: {{Left: "roc", Op: models.OpLT, Right: "-roc_threshold"}},
		},
	}
	ts, err := Triggers(closes, indicators.Compute(closes, cfg), cfg)
	if err != nil {
		t.Fatal(err)
	}
	if !ts.Fired(models.ConditionFallSell, 1) || ts.Fired(models.ConditionFallSell, 0) {
		t.Fatal("expected fall_sell only at bar 1")
	}
}

func TestTriggersUnknownOperand(t *testing.T) {
	cfg := models.SymbolConfig{
		SMALength: 1, SMALong: 1, TSILength: 1,
		Rules: models.Rules{
			models.ConditionHypeBuy: {{Left: "macd", Op: models.OpGT, Right: "0"}},
		},
	}
	if _, err := Triggers([]float64{1, 2}, models.IndicatorBundle{}, cfg); err == nil {
		t.Fatal("expected error for unknown operand")
	}
}

func TestNaNNeverFires(t *testing.T) {
	closes := []float64{1, 2, 3}
	nan := []float64{math.NaN(), math.NaN(), math.NaN()}
	b := models.IndicatorBundle{TSI: nan, TSISignal: nan, ROC: nan}
	cfg := models.SymbolConfig{
		Rules: only(models.Rules{
			models.ConditionHypeBuy:  {{Left: "tsi", Op: models.OpCrossAbove, Right: "tsi_signal"}},
			models.ConditionFallSell: {{Left: "roc", Op: models.OpLTE, Right: "0"}},
			models.ConditionFlatBuy:  {{Left: "rsi", Op: models.OpGTE, Right: "0"}},
		}),
	}
	ts, err := Triggers(closes, b, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if _, _, ok := Select(ts); ok {
		t.Fatal("undefined values must never fire")
	}
}

func TestEvaluateDefaultRules(t *testing.T) {
	// steady rise then a sharp drop: fall_sell must fire on the drop
	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	closes[59] = 120
	series := models.PriceSeries{Symbol: "AAPL", Closes: closes}
	cfg := models.SymbolConfig{SMALength: 5, SMALong: 20, StdDev: 2, TSILength: 9, ROC: 3, Direction: 1000, TSIMin: -0.5}

	now := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	b := indicators.Compute(closes, cfg)
	d, ok, err := Evaluate(series, b, cfg, now)
	if err != nil || !ok {
		t.Fatalf("expected a decision, ok=%v err=%v", ok, err)
	}
	if d.TriggerIndex != 59 || d.Condition != models.ConditionFallSell {
		t.Fatalf("got %s at %d, want fall_sell at 59", d.Condition, d.TriggerIndex)
	}
	if d.Price != 120 || d.Symbol != "AAPL" {
		t.Fatalf("unexpected decision %+v", d)
	}

	again, _, _ := Evaluate(series, b, cfg, now)
	if again != d {
		t.Fatal("evaluation must be deterministic")
	}
}
