package models

import (
	"fmt"
	"strconv"
	"strings"
)

// Condition names a trading trigger. The declaration order of AllConditions is
// the precedence used when several triggers fire on the same bar.
type Condition string

const (
	ConditionNone          Condition = "none"
	ConditionFlatBuy       Condition = "flat_buy"
	ConditionHypeBuy       Condition = "hype_buy"
	ConditionRSIBuy        Condition = "rsi_buy"
	ConditionUptrendSell   Condition = "uptrend_sell"
	ConditionDowntrendSell Condition = "downtrend_sell"
	ConditionFallSell      Condition = "fall_sell"
)

// AllConditions lists every firing condition, highest precedence first.
var AllConditions = []Condition{
	ConditionFlatBuy,
	ConditionHypeBuy,
	ConditionRSIBuy,
	ConditionUptrendSell,
	ConditionDowntrendSell,
	ConditionFallSell,
}

// IsBuy reports whether the condition is one of the buy kinds.
func (c Condition) IsBuy() bool {
	return c == ConditionFlatBuy || c == ConditionHypeBuy || c == ConditionRSIBuy
}

// Valid reports whether c is a known firing condition.
func (c Condition) Valid() bool {
	for _, k := range AllConditions {
		if c == k {
			return true
		}
	}
	return false
}

// Operator is a comparison used by a rule predicate.
type Operator string

const (
	OpGT         Operator = "gt"
	OpGTE        Operator = "gte"
	OpLT         Operator = "lt"
	OpLTE        Operator = "lte"
	OpCrossAbove Operator = "cross_above"
	OpCrossBelow Operator = "cross_below"
)

// Series names usable as predicate operands.
const (
	SeriesPrice     = "price"
	SeriesSMAShort  = "sma_short"
	SeriesSMALong   = "sma_long"
	SeriesUpperBand = "upper_band"
	SeriesLowerBand = "lower_band"
	SeriesTSI       = "tsi"
	SeriesTSISignal = "tsi_signal"
	SeriesROC       = "roc"
	SeriesRSI       = "rsi"
	SeriesDirection = "direction"
)

// Parameter names usable as predicate operands, optionally prefixed with "-".
const (
	ParamROCThreshold       = "roc_threshold"
	ParamDirectionThreshold = "direction_threshold"
	ParamTSIMin             = "tsi_min"
)

var seriesNames = map[string]struct{}{
	SeriesPrice: {}, SeriesSMAShort: {}, SeriesSMALong: {}, SeriesUpperBand: {}, SeriesLowerBand: {},
	SeriesTSI: {}, SeriesTSISignal: {}, SeriesROC: {}, SeriesRSI: {}, SeriesDirection: {},
}

// IsSeriesName reports whether name refers to a computed series.
func IsSeriesName(name string) bool {
	_, ok := seriesNames[name]
	return ok
}

// Predicate compares two operands at a bar. A condition fires when all of its
// predicates hold.
type Predicate struct {
	Left  string   `json:"left" yaml:"left" validate:"required"`
	Op    Operator `json:"op" yaml:"op" validate:"required,oneof=gt gte lt lte cross_above cross_below"`
	Right string   `json:"right" yaml:"right" validate:"required"`
}

func (p Predicate) String() string {
	return fmt.Sprintf("%s %s %s", p.Left, p.Op, p.Right)
}

// Rules maps each condition to the conjunction of predicates that triggers it.
type Rules map[Condition][]Predicate

// DefaultRules returns the rule set for kinds a symbol does not override.
func DefaultRules() Rules {
	return Rules{
		ConditionFlatBuy: {
			{Left: SeriesPrice, Op: OpCrossAbove, Right: SeriesLowerBand},
			{Left: SeriesDirection, Op: OpGT, Right: "-" + ParamDirectionThreshold},
			{Left: SeriesDirection, Op: OpLT, Right: ParamDirectionThreshold},
		},
		ConditionHypeBuy: {
			{Left: SeriesTSI, Op: OpCrossAbove, Right: SeriesTSISignal},
			{Left: SeriesROC, Op: OpGT, Right: ParamROCThreshold},
		},
		ConditionRSIBuy: {
			{Left: SeriesRSI, Op: OpCrossAbove, Right: "30"},
			{Left: SeriesTSI, Op: OpLT, Right: ParamTSIMin},
		},
		ConditionUptrendSell: {
			{Left: SeriesPrice, Op: OpCrossBelow, Right: SeriesUpperBand},
			{Left: SeriesDirection, Op: OpGT, Right: ParamDirectionThreshold},
		},
		ConditionDowntrendSell: {
			{Left: SeriesTSI, Op: OpCrossBelow, Right: SeriesTSISignal},
			{Left: SeriesDirection, Op: OpLT, Right: "-" + ParamDirectionThreshold},
		},
		ConditionFallSell: {
			{Left: SeriesROC, Op: OpLT, Right: "-" + ParamROCThreshold},
		},
	}
}

// SymbolConfig holds the per-symbol indicator parameters. It is read once at
// load time and never mutated afterwards.
type SymbolConfig struct {
	SMALength int     `json:"sma_length" yaml:"sma_length" validate:"gte=1"`
	SMALong   int     `json:"sma_long" yaml:"sma_long" validate:"gte=1"`
	StdDev    float64 `json:"standard_deviation" yaml:"standard_deviation" validate:"gte=0"`
	TSILength int     `json:"tsi_length" yaml:"tsi_length" validate:"gte=1"`
	ROC       float64 `json:"ROC" yaml:"ROC"`
	Direction float64 `json:"SMA_direction_raw_number" yaml:"SMA_direction_raw_number"`
	TSIMin    float64 `json:"TSI_min" yaml:"TSI_min"`

	RSILength int   `json:"rsi_length,omitempty" yaml:"rsi_length" default:"14" validate:"gte=1"`
	ROCLength int   `json:"roc_length,omitempty" yaml:"roc_length" validate:"gte=0"`
	Rules     Rules `json:"rules,omitempty" yaml:"rules" validate:"omitempty,dive,dive"`
}

// EffectiveROCLength is the look-back used for rate of change.
func (c SymbolConfig) EffectiveROCLength() int {
	if c.ROCLength > 0 {
		return c.ROCLength
	}
	return c.SMALength
}

// EffectiveRules overlays the configured kinds on the defaults. A kind present
// with an empty list is disabled.
func (c SymbolConfig) EffectiveRules() Rules {
	rules := DefaultRules()
	for kind, preds := range c.Rules {
		rules[kind] = preds
	}
	return rules
}

// Param resolves a parameter name to its value.
func (c SymbolConfig) Param(name string) (float64, bool) {
	switch name {
	case ParamROCThreshold:
		return c.ROC, true
	case ParamDirectionThreshold:
		return c.Direction, true
	case ParamTSIMin:
		return c.TSIMin, true
	}
	return 0, false
}

// ValidateRules checks every predicate refers to known operands.
func (c SymbolConfig) ValidateRules() error {
	for kind, preds := range c.EffectiveRules() {
		if !kind.Valid() {
			return fmt.Errorf("unknown condition %q", kind)
		}
		for _, p := range preds {
			switch p.Op {
			case OpGT, OpGTE, OpLT, OpLTE, OpCrossAbove, OpCrossBelow:
			default:
				return fmt.Errorf("%s: unknown operator %q", kind, p.Op)
			}
			for _, operand := range []string{p.Left, p.Right} {
				if !c.validOperand(operand) {
					return fmt.Errorf("%s: unknown operand %q", kind, operand)
				}
			}
		}
	}
	return nil
}

func (c SymbolConfig) validOperand(s string) bool {
	if IsSeriesName(s) {
		return true
	}
	if _, ok := c.Param(strings.TrimPrefix(s, "-")); ok {
		return true
	}
	_, err := strconv.ParseFloat(s, 64)
	return err == nil
}
