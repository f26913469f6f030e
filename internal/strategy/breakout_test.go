package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wonny/picker/internal/indicator"
	"github.com/wonny/picker/internal/market"
)

func constCol(n int, val float64) []float64 {
	col := make([]float64, n)
	for i := range col {
		col[i] = val
	}
	return col
}

// breakoutView is 75 flat bars at close 10 (highs 10.5) with the last bar
// overridden, plus band columns whose final width can be widened.
func breakoutView(t *testing.T, lastClose, lastVolume, lastUpper float64) *View {
	t.Helper()
	bars := flatBars(75, 10, 1000)
	bars[74].Close = lastClose
	bars[74].Volume = lastVolume

	upper := constCol(75, 11)
	upper[74] = lastUpper

	return viewWith(t, bars, map[string][]float64{
		indicator.MAVol:     constCol(75, 1000),
		indicator.BollUpper: upper,
		indicator.BollLower: constCol(75, 9),
	})
}

func TestBreakout_Check(t *testing.T) {
	s := Breakout{}
	params := s.DefaultParams()

	t.Run("clean breakout", func(t *testing.T) {
		v := breakoutView(t, 11, 5000, 12)
		assert.True(t, s.Check(v, params))
	})

	t.Run("no new high", func(t *testing.T) {
		v := breakoutView(t, 10.4, 5000, 12)
		assert.False(t, s.Check(v, params))
	})

	t.Run("volume too light", func(t *testing.T) {
		v := breakoutView(t, 11, 1900, 12)
		assert.False(t, s.Check(v, params))
	})

	t.Run("bands not opening", func(t *testing.T) {
		v := breakoutView(t, 11, 5000, 11)
		assert.False(t, s.Check(v, params))
	})

	t.Run("band check disabled", func(t *testing.T) {
		v := breakoutView(t, 11, 5000, 11)
		relaxed := params.Merge(Params{"boll_expansion": false})
		assert.True(t, s.Check(v, relaxed))
	})

	t.Run("history too short", func(t *testing.T) {
		bars := flatBars(69, 10, 1000)
		bars[68].Close = 11
		bars[68].Volume = 5000
		v := viewWith(t, bars, map[string][]float64{
			indicator.MAVol:     constCol(69, 1000),
			indicator.BollUpper: constCol(69, 12),
			indicator.BollLower: constCol(69, 9),
		})
		assert.False(t, s.Check(v, params))
	})
}

func TestBreakout_Check_WithoutVolume(t *testing.T) {
	s := Breakout{}
	bars := flatBars(75, 10, 0)
	bars[74].Close = 11

	ser, err := market.NewWithoutVolume("TEST", "", bars)
	assert.NoError(t, err)

	set := indicator.NewSet(75)
	set.Put(indicator.BollUpper, constCol(75, 12))
	set.Put(indicator.BollLower, constCol(75, 9))

	assert.False(t, s.Check(NewView(ser, set), s.DefaultParams()))
}

func TestBreakout_Score(t *testing.T) {
	s := Breakout{}
	v := breakoutView(t, 11, 5000, 12)

	// prior high 10.5, ratio 0.5/10.5
	assert.Equal(t, 83.81, s.Score(v, s.DefaultParams()))
}
