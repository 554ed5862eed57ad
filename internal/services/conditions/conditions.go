// Package conditions turns indicator series into trigger sequences and picks
// the most recent condition that fired.
package conditions

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"TrendWatch/internal/domain/models"
	"TrendWatch/pkg/util"
)

// BarsPerDay converts an elapsed bar count into calendar days.
const BarsPerDay = 7

// TriggerSet holds one boolean sequence per condition, index-aligned with the
// price series.
type TriggerSet struct {
	n     int
	fired map[models.Condition][]bool
}

// Len is the number of bars covered.
func (ts TriggerSet) Len() int { return ts.n }

// Fired reports whether kind fired at bar i.
func (ts TriggerSet) Fired(kind models.Condition, i int) bool {
	seq := ts.fired[kind]
	return i >= 0 && i < len(seq) && seq[i]
}

// Indices returns every bar at which kind fired.
func (ts TriggerSet) Indices(kind models.Condition) []int {
	var out []int
	for i, ok := range ts.fired[kind] {
		if ok {
			out = append(out, i)
		}
	}
	return out
}

// NewTriggerSet builds a set directly from sequences. Missing kinds never fire.
func NewTriggerSet(n int, fired map[models.Condition][]bool) TriggerSet {
	return TriggerSet{n: n, fired: fired}
}

type operand func(i int) float64

type compiled struct {
	left, right operand
	op          models.Operator
}

// Triggers evaluates the symbol's rules over every bar.
func Triggers(closes []float64, b models.IndicatorBundle, cfg models.SymbolConfig) (TriggerSet, error) {
	n := len(closes)
	series := map[string][]float64{
		models.SeriesPrice:     closes,
		models.SeriesSMAShort:  b.SMAShort,
		models.SeriesSMALong:   b.SMALong,
		models.SeriesUpperBand: b.UpperBand,
		models.SeriesLowerBand: b.LowerBand,
		models.SeriesTSI:       b.TSI,
		models.SeriesTSISignal: b.TSISignal,
		models.SeriesROC:       b.ROC,
		models.SeriesRSI:       b.RSI,
		models.SeriesDirection: b.Direction,
	}

	ts := TriggerSet{n: n, fired: make(map[models.Condition][]bool, len(models.AllConditions))}
	rules := cfg.EffectiveRules()
	for _, kind := range models.AllConditions {
		seq := make([]bool, n)
		ts.fired[kind] = seq

		preds := rules[kind]
		if len(preds) == 0 {
			continue
		}
		cs := make([]compiled, 0, len(preds))
		for _, p := range preds {
			c, err := compile(p, series, cfg)
			if err != nil {
				return TriggerSet{}, fmt.Errorf("%s: %w", kind, err)
			}
			cs = append(cs, c)
		}

		for i := 0; i < n; i++ {
			seq[i] = all(cs, i)
		}
	}
	return ts, nil
}

func all(cs []compiled, i int) bool {
	for _, c := range cs {
		if !c.holds(i) {
			return false
		}
	}
	return true
}

// holds relies on every comparison with NaN being false.
func (c compiled) holds(i int) bool {
	l, r := c.left(i), c.right(i)
	switch c.op {
	case models.OpGT:
		return l > r
	case models.OpGTE:
		return l >= r
	case models.OpLT:
		return l < r
	case models.OpLTE:
		return l <= r
	case models.OpCrossAbove:
		if i == 0 {
			return false
		}
		return c.left(i-1) <= c.right(i-1) && l > r
	case models.OpCrossBelow:
		if i == 0 {
			return false
		}
		return c.left(i-1) >= c.right(i-1) && l < r
	}
	return false
}

func compile(p models.Predicate, series map[string][]float64, cfg models.SymbolConfig) (compiled, error) {
	switch p.Op {
	case models.OpGT, models.OpGTE, models.OpLT, models.OpLTE, models.OpCrossAbove, models.OpCrossBelow:
	default:
		return compiled{}, fmt.Errorf("unknown operator %q", p.Op)
	}
	left, err := resolve(p.Left, series, cfg)
	if err != nil {
		return compiled{}, err
	}
	right, err := resolve(p.Right, series, cfg)
	if err != nil {
		return compiled{}, err
	}
	return compiled{left: left, right: right, op: p.Op}, nil
}

func resolve(name string, series map[string][]float64, cfg models.SymbolConfig) (operand, error) {
	if s, ok := series[name]; ok {
		return func(i int) float64 {
			if i >= len(s) {
				return math.NaN()
			}
			return s[i]
		}, nil
	}

	neg := strings.HasPrefix(name, "-")
	if v, ok := cfg.Param(strings.TrimPrefix(name, "-")); ok {
		if neg {
			v = -v
		}
		return func(int) float64 { return v }, nil
	}

	if v, err := strconv.ParseFloat(name, 64); err == nil {
		return func(int) float64 { return v }, nil
	}
	return nil, fmt.Errorf("unknown operand %q", name)
}

// Select scans from the most recent bar backwards and returns the first bar at
// which any condition fired, resolving ties by precedence.
func Select(ts TriggerSet) (int, models.Condition, bool) {
	for i := ts.n - 1; i >= 0; i-- {
		for _, kind := range models.AllConditions {
			if ts.Fired(kind, i) {
				return i, kind, true
			}
		}
	}
	return -1, models.ConditionNone, false
}

// ActionDate maps a trigger index to a calendar date relative to now.
func ActionDate(n, index int, now time.Time) time.Time {
	days := (n - index) / BarsPerDay
	return util.StartOfDay(now).AddDate(0, 0, -days)
}

// Evaluate computes the decision for a symbol. ok is false when no condition
// ever fired.
func Evaluate(series models.PriceSeries, b models.IndicatorBundle, cfg models.SymbolConfig, now time.Time) (models.Decision, bool, error) {
	ts, err := Triggers(series.Closes, b, cfg)
	if err != nil {
		return models.Decision{}, false, err
	}
	idx, kind, ok := Select(ts)
	if !ok {
		return models.Decision{}, false, nil
	}
	return models.Decision{
		Symbol:       series.Symbol,
		Condition:    kind,
		TriggerIndex: idx,
		ActionDate:   ActionDate(series.Len(), idx, now),
		Price:        series.Closes[idx],
	}, true, nil
}
