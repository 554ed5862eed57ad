// Package indicators computes the derived series used by the condition
// evaluator. Every function is pure and returns a slice aligned with its
// input; undefined values are NaN.
package indicators

import (
	"math"

	"TrendWatch/internal/domain/models"
)

const defaultRSILength = 14

// Compute derives the full indicator bundle for a closing price series.
func Compute(closes []float64, cfg models.SymbolConfig) models.IndicatorBundle {
	smaShort := SMA(closes, cfg.SMALength)
	smaLong := SMA(closes, cfg.SMALong)
	upper, lower := Bands(closes, smaShort, cfg.SMALength, cfg.StdDev)
	tsi, signal := TSI(closes, cfg.TSILength)

	rsiLen := cfg.RSILength
	if rsiLen <= 0 {
		rsiLen = defaultRSILength
	}

	return models.IndicatorBundle{
		SMAShort:  smaShort,
		SMALong:   smaLong,
		UpperBand: upper,
		LowerBand: lower,
		TSI:       tsi,
		TSISignal: signal,
		ROC:       ROC(closes, cfg.EffectiveROCLength()),
		RSI:       RSI(closes, rsiLen),
		Direction: Direction(smaShort, smaLong),
	}
}

func nans(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// SMA is the simple moving average. The first n-1 values are undefined, as is
// any window containing an undefined input.
func SMA(xs []float64, n int) []float64 {
	out := nans(len(xs))
	if n <= 0 {
		return out
	}
	var sum float64
	bad := 0
	for i, x := range xs {
		if math.IsNaN(x) {
			bad++
		} else {
			sum += x
		}
		if i >= n {
			old := xs[i-n]
			if math.IsNaN(old) {
				bad--
			} else {
				sum -= old
			}
		}
		if i >= n-1 && bad == 0 {
			out[i] = sum / float64(n)
		}
	}
	return out
}

// EMA is the span-adjusted exponential mean: each value is the weighted
// average of all prior observations with weights (1-α)^k, α = 2/(span+1).
// Undefined inputs decay the weights without contributing and yield NaN.
func EMA(xs []float64, span int) []float64 {
	out := nans(len(xs))
	if span < 1 {
		span = 1
	}
	alpha := 2 / (float64(span) + 1)
	decay := 1 - alpha

	var num, den float64
	for i, x := range xs {
		num *= decay
		den *= decay
		if math.IsNaN(x) {
			continue
		}
		num += x
		den++
		out[i] = num / den
	}
	return out
}

// RollingStd is the rolling sample standard deviation (n-1 denominator).
func RollingStd(xs []float64, n int) []float64 {
	out := nans(len(xs))
	if n < 2 {
		return out
	}
	for i := n - 1; i < len(xs); i++ {
		window := xs[i-n+1 : i+1]
		var mean float64
		ok := true
		for _, v := range window {
			if math.IsNaN(v) {
				ok = false
				break
			}
			mean += v
		}
		if !ok {
			continue
		}
		mean /= float64(n)
		var ss float64
		for _, v := range window {
			d := v - mean
			ss += d * d
		}
		out[i] = math.Sqrt(ss / float64(n-1))
	}
	return out
}

// Bands returns mid ± mult × rolling std over n.
func Bands(xs, mid []float64, n int, mult float64) (upper, lower []float64) {
	std := RollingStd(xs, n)
	upper = make([]float64, len(xs))
	lower = make([]float64, len(xs))
	for i := range xs {
		upper[i] = mid[i] + mult*std[i]
		lower[i] = mid[i] - mult*std[i]
	}
	return upper, lower
}

// TSI is the true strength index as a ratio in [-1, 1] together with its
// signal line. Secondary smoothing uses r/2 and the signal r/3, each at least 1.
func TSI(xs []float64, r int) (tsi, signal []float64) {
	if r < 1 {
		r = 1
	}
	s := max(r/2, 1)
	g := max(r/3, 1)

	diff := make([]float64, len(xs))
	absDiff := make([]float64, len(xs))
	for i := 1; i < len(xs); i++ {
		diff[i] = xs[i] - xs[i-1]
		absDiff[i] = math.Abs(diff[i])
	}

	num := EMA(EMA(diff, r), s)
	den := EMA(EMA(absDiff, r), s)

	tsi = nans(len(xs))
	for i := range xs {
		if den[i] == 0 || math.IsNaN(den[i]) || math.IsNaN(num[i]) {
			continue
		}
		tsi[i] = num[i] / den[i]
	}
	return tsi, SMA(tsi, g)
}

// ROC is the percent change against the value n periods earlier.
func ROC(xs []float64, n int) []float64 {
	out := nans(len(xs))
	if n <= 0 {
		return out
	}
	for i := n; i < len(xs); i++ {
		base := xs[i-n]
		if base == 0 || math.IsNaN(base) || math.IsNaN(xs[i]) {
			continue
		}
		out[i] = (xs[i] - base) / base * 100
	}
	return out
}

// RSI is the relative strength index with Wilder smoothing. The first n values
// are undefined.
func RSI(xs []float64, n int) []float64 {
	out := nans(len(xs))
	if n <= 0 || len(xs) <= n {
		return out
	}

	var avgGain, avgLoss float64
	for i := 1; i <= n; i++ {
		d := xs[i] - xs[i-1]
		if math.IsNaN(d) {
			return out
		}
		if d > 0 {
			avgGain += d
		} else {
			avgLoss -= d
		}
	}
	avgGain /= float64(n)
	avgLoss /= float64(n)
	out[n] = rsiValue(avgGain, avgLoss)

	for i := n + 1; i < len(xs); i++ {
		d := xs[i] - xs[i-1]
		if math.IsNaN(d) {
			return out
		}
		gain, loss := 0.0, 0.0
		if d > 0 {
			gain = d
		} else {
			loss = -d
		}
		avgGain = (avgGain*float64(n-1) + gain) / float64(n)
		avgLoss = (avgLoss*float64(n-1) + loss) / float64(n)
		out[i] = rsiValue(avgGain, avgLoss)
	}
	return out
}

func rsiValue(gain, loss float64) float64 {
	if loss == 0 {
		if gain == 0 {
			return 50
		}
		return 100
	}
	return 100 - 100/(1+gain/loss)
}

// Direction is the raw spread between the short and long moving averages.
func Direction(short, long []float64) []float64 {
	out := make([]float64, len(short))
	for i := range short {
		out[i] = short[i] - long[i]
	}
	return out
}
