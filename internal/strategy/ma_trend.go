package strategy

import (
	"fmt"
	"math"

	"github.com/wonny/picker/internal/indicator"
)

// MATrend passes when the moving averages stack in strict bullish order,
// volume runs ahead of its average and price holds above the short MA.
type MATrend struct{ Base }

func (MATrend) Name() string { return "ma_trend" }

func (MATrend) Description() string {
	return "Moving averages in bullish alignment with expanding volume"
}

func (MATrend) RequiredIndicators() []string {
	return []string{
		indicator.MA5, indicator.MA10, indicator.MA20, indicator.MA60,
		indicator.Vol, indicator.MAVol,
	}
}

func (MATrend) DefaultParams() Params {
	return Params{
		"ma_short":     5,
		"ma_mid":       10,
		"ma_long":      20,
		"ma_vlong":     60,
		"volume_ratio": 1.5,
	}
}

func (s MATrend) Check(v *View, p Params) bool {
	if !v.HasAll(s.RequiredIndicators()...) {
		return false
	}

	maShort := v.LastValue(maColumn(p.Int("ma_short", 5)))
	maMid := v.LastValue(maColumn(p.Int("ma_mid", 10)))
	maLong := v.LastValue(maColumn(p.Int("ma_long", 20)))
	maVLong := v.LastValue(maColumn(p.Int("ma_vlong", 60)))

	aligned := maShort > maMid && maMid > maLong && maLong > maVLong
	expanding := v.Last().Volume >= v.LastValue(indicator.MAVol)*p.Float("volume_ratio", 1.5)
	aboveShort := v.Last().Close > maShort

	return aligned && expanding && aboveShort
}

// Score rewards a wide spread between the short and long averages on top
// of the 60-point base.
func (s MATrend) Score(v *View, p Params) float64 {
	maShort := v.LastValue(maColumn(p.Int("ma_short", 5)))
	maLong := v.LastValue(maColumn(p.Int("ma_long", 20)))

	gap := (maShort - maLong) / maLong
	return scoreOr(60+math.Min(gap*500, 40), DefaultScore)
}

func maColumn(period int) string {
	return fmt.Sprintf("ma%d", period)
}
