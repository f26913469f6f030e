package strategy

import (
	"math"

	"github.com/wonny/picker/internal/indicator"
)

// BottomAccumulation passes when OBV climbs while price drifts sideways in
// a low-volatility base, optionally confirmed by a growing MACD histogram.
type BottomAccumulation struct{ Base }

func (BottomAccumulation) Name() string { return "bottom_accumulation" }

func (BottomAccumulation) Description() string {
	return "Rising OBV under a flat low-volatility base"
}

func (BottomAccumulation) RequiredIndicators() []string {
	return []string{
		indicator.OBV, indicator.Close,
		indicator.MACDDif, indicator.MACDDea, indicator.MACDBar,
		indicator.Vol,
	}
}

func (BottomAccumulation) DefaultParams() Params {
	return Params{
		"obv_trend":            "up",
		"volatility_threshold": 0.05,
		"macd_red_grow":        true,
	}
}

func (s BottomAccumulation) Check(v *View, p Params) bool {
	if !v.HasAll(s.RequiredIndicators()...) {
		return false
	}
	if v.Len() < 20 {
		return false
	}
	n := v.Len()

	inflow := true
	if p.String("obv_trend", "up") == "up" {
		inflow = v.At(indicator.OBV, n-1) >= v.At(indicator.OBV, n-5)
	}

	flat := returnVolatility(v, 20) < p.Float("volatility_threshold", 0.05)

	strengthening := true
	if p.Bool("macd_red_grow", true) {
		b0 := v.At(indicator.MACDBar, n-3)
		b1 := v.At(indicator.MACDBar, n-2)
		b2 := v.At(indicator.MACDBar, n-1)
		strengthening = b2 > b1 && b1 > b0 && b2 > 0
	}

	return inflow && flat && strengthening
}

// Score rewards the steepness of the OBV climb over the last ten bars.
func (s BottomAccumulation) Score(v *View, p Params) float64 {
	n := v.Len()
	start := n - 10
	if start < 0 {
		start = 0
	}
	obv := make([]float64, 0, n-start)
	for i := start; i < n; i++ {
		obv = append(obv, v.At(indicator.OBV, i))
	}

	slope := linearSlope(obv)
	return scoreOr(60+math.Min(math.Abs(slope)/1e6*100, 40), DefaultScore)
}

// returnVolatility is the sample standard deviation of the daily returns
// inside the trailing window of closes.
func returnVolatility(v *View, window int) float64 {
	n := v.Len()
	start := n - window + 1
	if start < 1 {
		start = 1
	}
	rets := make([]float64, 0, n-start)
	for i := start; i < n; i++ {
		prev := v.Bar(i - 1).Close
		if prev == 0 {
			return math.Inf(1)
		}
		rets = append(rets, v.Bar(i).Close/prev-1)
	}
	return sampleStd(rets)
}

func sampleStd(vals []float64) float64 {
	if len(vals) < 2 {
		return math.NaN()
	}
	mean := 0.0
	for _, v := range vals {
		mean += v
	}
	mean /= float64(len(vals))

	variance := 0.0
	for _, v := range vals {
		diff := v - mean
		variance += diff * diff
	}
	return math.Sqrt(variance / float64(len(vals)-1))
}

// linearSlope is the least-squares slope of vals against their indexes.
func linearSlope(vals []float64) float64 {
	n := len(vals)
	if n < 2 {
		return 0
	}
	xMean := float64(n-1) / 2
	yMean := 0.0
	for _, v := range vals {
		yMean += v
	}
	yMean /= float64(n)

	num, den := 0.0, 0.0
	for i, v := range vals {
		dx := float64(i) - xMean
		num += dx * (v - yMean)
		den += dx * dx
	}
	if den == 0 {
		return 0
	}
	return num / den
}
