package models

import "time"

// Bar is one provider observation.
type Bar struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// PriceSeries is the closing price history for a symbol, oldest first.
type PriceSeries struct {
	Symbol string
	Closes []float64
	Times  []time.Time
}

// Len returns the number of observations.
func (s PriceSeries) Len() int {
	return len(s.Closes)
}

// IndicatorBundle holds the derived series, index-aligned with PriceSeries.
// Undefined values are NaN.
type IndicatorBundle struct {
	SMAShort  []float64
	SMALong   []float64
	UpperBand []float64
	LowerBand []float64
	TSI       []float64
	TSISignal []float64
	ROC       []float64
	RSI       []float64
	Direction []float64
}
