package strategy

import (
	"math"

	"github.com/wonny/picker/internal/indicator"
)

// OversoldRebound passes when momentum gauges sit deep in oversold
// territory, optionally with price tagging the lower Bollinger band and
// volume starting to pick up.
type OversoldRebound struct{ Base }

func (OversoldRebound) Name() string { return "oversold_rebound" }

func (OversoldRebound) Description() string {
	return "Deeply oversold momentum with price near the lower band"
}

func (OversoldRebound) RequiredIndicators() []string {
	return []string{
		indicator.RSI,
		indicator.KDJK, indicator.KDJD, indicator.KDJJ,
		indicator.BollUpper, indicator.BollMiddle, indicator.BollLower,
		indicator.Vol, indicator.MAVol,
	}
}

func (OversoldRebound) DefaultParams() Params {
	return Params{
		"rsi_threshold":   20,
		"kdj_j_threshold": 10,
		"use_boll_lower":  true,
		"volume_increase": true,
	}
}

func (s OversoldRebound) Check(v *View, p Params) bool {
	if !v.HasAll(s.RequiredIndicators()...) {
		return false
	}

	oversold := v.LastValue(indicator.RSI) < p.Float("rsi_threshold", 20)
	jLow := v.LastValue(indicator.KDJJ) < p.Float("kdj_j_threshold", 10)

	nearLower := true
	if p.Bool("use_boll_lower", true) {
		nearLower = v.Last().Close <= v.LastValue(indicator.BollLower)*1.02
	}

	waking := true
	if p.Bool("volume_increase", true) {
		waking = v.Last().Volume >= v.LastValue(indicator.MAVol)*1.2
	}

	return oversold && jLow && nearLower && waking
}

// Score rises the deeper RSI and the J value sit below their rebound
// zones, weighted 60/40.
func (s OversoldRebound) Score(v *View, p Params) float64 {
	rsiScore := math.Max(0, (30-v.LastValue(indicator.RSI))/30*50)
	jScore := math.Max(0, (20-v.LastValue(indicator.KDJJ))/20*50)
	return scoreOr(0.6*rsiScore+0.4*jScore, DefaultScore)
}
