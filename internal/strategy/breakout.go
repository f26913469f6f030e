package strategy

import (
	"math"

	"github.com/wonny/picker/internal/indicator"
)

// Breakout passes when price clears the prior N-day high on heavy volume,
// optionally confirmed by the Bollinger bands opening up.
type Breakout struct{ Base }

func (Breakout) Name() string { return "breakout" }

func (Breakout) Description() string {
	return "Price clears a long-horizon high on strong volume"
}

func (Breakout) RequiredIndicators() []string {
	return []string{
		indicator.High, indicator.Low, indicator.Close,
		indicator.Vol, indicator.MAVol,
		indicator.BollUpper, indicator.BollLower,
	}
}

func (Breakout) DefaultParams() Params {
	return Params{
		"days_high":      60,
		"volume_ratio":   2.0,
		"boll_expansion": true,
	}
}

func (s Breakout) Check(v *View, p Params) bool {
	if !v.HasAll(s.RequiredIndicators()...) {
		return false
	}

	daysHigh := p.Int("days_high", 60)
	if v.Len() < daysHigh+10 {
		return false
	}

	last := v.Last()
	breakout := last.Close > priorHigh(v, daysHigh)
	expanding := last.Volume >= v.LastValue(indicator.MAVol)*p.Float("volume_ratio", 2.0)

	opening := true
	if p.Bool("boll_expansion", true) {
		opening = bandOpening(v)
	}

	return breakout && expanding && opening
}

// Score rewards the size of the breakout above the prior high.
func (s Breakout) Score(v *View, p Params) float64 {
	prior := priorHigh(v, p.Int("days_high", 60))
	ratio := (v.Last().Close - prior) / prior
	return scoreOr(60+math.Min(ratio*500, 40), DefaultScore)
}

// priorHigh is the highest high of the daysHigh bars preceding the current
// one. NaN when there is no preceding bar.
func priorHigh(v *View, daysHigh int) float64 {
	n := v.Len()
	start := n - 1 - daysHigh
	if start < 0 {
		start = 0
	}
	if start >= n-1 {
		return math.NaN()
	}
	high := v.Bar(start).High
	for i := start + 1; i < n-1; i++ {
		if h := v.Bar(i).High; h > high {
			high = h
		}
	}
	return high
}

// bandOpening reports whether the current band width exceeds 1.2x its
// 20-bar average width.
func bandOpening(v *View) bool {
	n := v.Len()
	width := v.LastValue(indicator.BollUpper) - v.LastValue(indicator.BollLower)

	start := n - 20
	if start < 0 {
		start = 0
	}
	sum, count := 0.0, 0
	for i := start; i < n; i++ {
		w := v.At(indicator.BollUpper, i) - v.At(indicator.BollLower, i)
		if math.IsNaN(w) {
			continue
		}
		sum += w
		count++
	}
	if count == 0 {
		return false
	}
	return width > sum/float64(count)*1.2
}
