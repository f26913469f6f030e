package indicator

import (
	"fmt"
	"math"

	"github.com/wonny/picker/internal/market"
)

// Default computation windows.
const (
	maVolPeriod  = 5
	macdFast     = 12
	macdSlow     = 26
	macdSignal   = 9
	kdjPeriod    = 9
	kdjSmoothing = 3
	rsiPeriod    = 14
	bollPeriod   = 20
	bollStdDev   = 2
)

var maPeriods = []int{5, 10, 20, 60}

// Warning reports a degraded indicator computation. The affected columns
// hold their resting defaults and the rest of the set is unaffected.
type Warning struct {
	Indicator string `json:"indicator"`
	Message   string `json:"message"`
}

// Compute derives the full indicator set for a series. It never fails:
// a faulting computation leaves its columns at their documented defaults
// and is reported as a Warning. Volume-dependent columns are omitted for
// a series without volume data.
func Compute(series *market.Series) (*Set, []Warning) {
	n := series.Len()
	set := NewSet(n)
	var warnings []Warning

	closes := series.Closes()
	highs := series.Highs()
	lows := series.Lows()

	// guard confines a faulting block: its columns are refilled with the
	// block's resting default and a warning is recorded.
	guard := func(block string, defaults map[string][]float64, fn func()) {
		defer func() {
			if r := recover(); r != nil {
				for name, vals := range defaults {
					set.Put(name, vals)
				}
				warnings = append(warnings, Warning{
					Indicator: block,
					Message:   fmt.Sprintf("%v", r),
				})
			}
		}()
		fn()
	}

	guard("ma", nil, func() {
		for _, period := range maPeriods {
			set.Put(fmt.Sprintf("ma%d", period), rollingMean(closes, period))
		}
	})

	if series.HasVolume() {
		volumes := series.Volumes()

		guard(MAVol, nil, func() {
			set.Put(MAVol, rollingMean(volumes, maVolPeriod))
		})

		guard(OBV, map[string][]float64{OBV: constant(n, 0)}, func() {
			set.Put(OBV, onBalanceVolume(closes, volumes))
		})
	}

	guard("macd", map[string][]float64{
		MACDDif: constant(n, 0),
		MACDDea: constant(n, 0),
		MACDBar: constant(n, 0),
	}, func() {
		dif := sub(ewmSpan(closes, macdFast), ewmSpan(closes, macdSlow))
		dea := ewmSpan(dif, macdSignal)
		bar := make([]float64, n)
		for i := range bar {
			bar[i] = 2 * (dif[i] - dea[i])
		}
		set.Put(MACDDif, dif)
		set.Put(MACDDea, dea)
		set.Put(MACDBar, bar)
	})

	guard("kdj", map[string][]float64{
		KDJK: constant(n, 50),
		KDJD: constant(n, 50),
		KDJJ: constant(n, 50),
	}, func() {
		k, d, j := kdj(closes, highs, lows)
		set.Put(KDJK, k)
		set.Put(KDJD, d)
		set.Put(KDJJ, j)
	})

	guard(RSI, map[string][]float64{RSI: constant(n, 50)}, func() {
		set.Put(RSI, relativeStrength(closes, rsiPeriod))
	})

	guard("boll", map[string][]float64{
		BollUpper:  append([]float64(nil), closes...),
		BollMiddle: append([]float64(nil), closes...),
		BollLower:  append([]float64(nil), closes...),
	}, func() {
		middle := rollingMean(closes, bollPeriod)
		std := rollingStd(closes, bollPeriod)
		upper := make([]float64, n)
		lower := make([]float64, n)
		for i := range middle {
			upper[i] = middle[i] + std[i]*bollStdDev
			lower[i] = middle[i] - std[i]*bollStdDev
		}
		set.Put(BollMiddle, middle)
		set.Put(BollUpper, upper)
		set.Put(BollLower, lower)
	})

	return set, warnings
}

// kdj computes the K/D/J columns. The raw stochastic uses 9-bar extremes
// that shrink to the available history at the head of the series; a flat
// window (high == low) yields the neutral 50.
func kdj(closes, highs, lows []float64) (k, d, j []float64) {
	n := len(closes)
	lowMin := rollingMin(lows, kdjPeriod)
	highMax := rollingMax(highs, kdjPeriod)

	rsv := make([]float64, n)
	for i := 0; i < n; i++ {
		span := highMax[i] - lowMin[i]
		if span == 0 {
			rsv[i] = 50
			continue
		}
		rsv[i] = (closes[i] - lowMin[i]) / span * 100
	}

	alpha := 1.0 / (1.0 + float64(kdjSmoothing))
	k = ewm(rsv, alpha)
	d = ewm(k, alpha)
	j = make([]float64, n)
	for i := 0; i < n; i++ {
		j[i] = 3*k[i] - 2*d[i]
	}
	return k, d, j
}

// relativeStrength computes RSI over the given period. Positions without a
// full window of deltas are the neutral 50; a window with gains and no
// losses saturates at 100, and a fully flat window stays at 50.
func relativeStrength(closes []float64, period int) []float64 {
	n := len(closes)
	gains := make([]float64, n)
	losses := make([]float64, n)
	for i := 1; i < n; i++ {
		delta := closes[i] - closes[i-1]
		if delta > 0 {
			gains[i] = delta
		} else if delta < 0 {
			losses[i] = -delta
		}
	}

	avgGain := rollingMean(gains, period)
	avgLoss := rollingMean(losses, period)

	out := make([]float64, n)
	for i := 0; i < n; i++ {
		g, l := avgGain[i], avgLoss[i]
		switch {
		case math.IsNaN(g) || math.IsNaN(l):
			out[i] = 50
		case l == 0 && g == 0:
			out[i] = 50
		case l == 0:
			out[i] = 100
		default:
			rs := g / l
			out[i] = 100 - 100/(1+rs)
		}
	}
	return out
}

// onBalanceVolume accumulates signed volume; the first bar contributes 0.
func onBalanceVolume(closes, volumes []float64) []float64 {
	out := make([]float64, len(closes))
	acc := 0.0
	for i := 1; i < len(closes); i++ {
		switch {
		case closes[i] > closes[i-1]:
			acc += volumes[i]
		case closes[i] < closes[i-1]:
			acc -= volumes[i]
		}
		out[i] = acc
	}
	return out
}

// rollingMean is a simple moving average; positions with fewer than window
// samples are NaN.
func rollingMean(vals []float64, window int) []float64 {
	out := nanSlice(len(vals))
	if window <= 0 {
		return out
	}
	sum := 0.0
	for i, v := range vals {
		sum += v
		if i >= window {
			sum -= vals[i-window]
		}
		if i >= window-1 {
			out[i] = sum / float64(window)
		}
	}
	return out
}

// rollingStd is the rolling sample standard deviation (n-1 denominator);
// positions with fewer than window samples are NaN.
func rollingStd(vals []float64, window int) []float64 {
	out := nanSlice(len(vals))
	if window < 2 {
		return out
	}
	for i := window - 1; i < len(vals); i++ {
		start := i - window + 1
		mean := 0.0
		for _, v := range vals[start : i+1] {
			mean += v
		}
		mean /= float64(window)

		variance := 0.0
		for _, v := range vals[start : i+1] {
			diff := v - mean
			variance += diff * diff
		}
		out[i] = math.Sqrt(variance / float64(window-1))
	}
	return out
}

// rollingMin takes the window minimum, shrinking the window at the head of
// the series so every position has a value.
func rollingMin(vals []float64, window int) []float64 {
	out := make([]float64, len(vals))
	for i := range vals {
		start := i - window + 1
		if start < 0 {
			start = 0
		}
		m := vals[start]
		for _, v := range vals[start+1 : i+1] {
			if v < m {
				m = v
			}
		}
		out[i] = m
	}
	return out
}

// rollingMax is the window-maximum counterpart of rollingMin.
func rollingMax(vals []float64, window int) []float64 {
	out := make([]float64, len(vals))
	for i := range vals {
		start := i - window + 1
		if start < 0 {
			start = 0
		}
		m := vals[start]
		for _, v := range vals[start+1 : i+1] {
			if v > m {
				m = v
			}
		}
		out[i] = m
	}
	return out
}

// ewm is recursive exponential smoothing seeded with the first sample.
func ewm(vals []float64, alpha float64) []float64 {
	out := make([]float64, len(vals))
	if len(vals) == 0 {
		return out
	}
	out[0] = vals[0]
	for i := 1; i < len(vals); i++ {
		out[i] = alpha*vals[i] + (1-alpha)*out[i-1]
	}
	return out
}

// ewmSpan smooths with alpha = 2/(span+1).
func ewmSpan(vals []float64, span int) []float64 {
	return ewm(vals, 2.0/(float64(span)+1.0))
}

func sub(a, b []float64) []float64 {
	out := make([]float64, len(a))
	for i := range a {
		out[i] = a[i] - b[i]
	}
	return out
}

func constant(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func nanSlice(n int) []float64 {
	return constant(n, math.NaN())
}
