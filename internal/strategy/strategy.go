package strategy

import (
	"math"

	"github.com/wonny/picker/internal/indicator"
	"github.com/wonny/picker/internal/market"
)

// Contract defaults for strategies that do not override the optional
// methods.
const (
	DefaultScore      = 50.0
	DefaultStopLoss   = 0.05
	DefaultTakeProfit = 0.15
)

// Signal keys a passed result carries for downstream position sizing.
const (
	SignalStopLoss   = "stop_loss"
	SignalTakeProfit = "take_profit"
)

// Strategy is the contract every screening rule implements. Implementations
// are stateless and side-effect-free; a rule that cannot evaluate its
// conditions answers false rather than failing. Panics escaping Check or
// Score are converted into failed results by the registry.
type Strategy interface {
	Name() string
	Description() string
	RequiredIndicators() []string
	DefaultParams() Params
	Check(v *View, p Params) bool
	Score(v *View, p Params) float64
	StopLoss(p Params) float64
	TakeProfit(p Params) float64
}

// Base supplies the contract defaults for the optional methods.
type Base struct{}

func (Base) Score(*View, Params) float64 { return DefaultScore }

func (Base) StopLoss(Params) float64 { return DefaultStopLoss }

func (Base) TakeProfit(Params) float64 { return DefaultTakeProfit }

// Result is the outcome of evaluating one strategy against one view.
// It is created fresh per evaluation and never mutated afterwards.
type Result struct {
	StrategyName string             `json:"strategy_name"`
	Passed       bool               `json:"passed"`
	Score        float64            `json:"score"`
	Signals      map[string]float64 `json:"signals,omitempty"`
	Message      string             `json:"message,omitempty"`
}

// Params carries per-strategy tuning values keyed by name. Values decoded
// from configuration arrive loosely typed, so accessors coerce the common
// numeric encodings and fall back to the given default otherwise.
type Params map[string]any

// Float reads a numeric param.
func (p Params) Float(key string, def float64) float64 {
	switch n := p[key].(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	}
	return def
}

// Int reads an integer param.
func (p Params) Int(key string, def int) int {
	switch n := p[key].(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	case float32:
		return int(n)
	}
	return def
}

// Bool reads a boolean param.
func (p Params) Bool(key string, def bool) bool {
	if b, ok := p[key].(bool); ok {
		return b
	}
	return def
}

// String reads a string param.
func (p Params) String(key, def string) string {
	if s, ok := p[key].(string); ok {
		return s
	}
	return def
}

// Merge returns a copy of p overlaid with over. Neither input is modified.
func (p Params) Merge(over Params) Params {
	merged := make(Params, len(p)+len(over))
	for k, v := range p {
		merged[k] = v
	}
	for k, v := range over {
		merged[k] = v
	}
	return merged
}

// View pairs one instrument's price history with its computed indicators.
// It is the read-only unit strategies evaluate; name lookups cover both
// derived indicators and the raw bar columns.
type View struct {
	series *market.Series
	ind    *indicator.Set
}

// NewView wraps a series and its indicator set for evaluation.
func NewView(series *market.Series, ind *indicator.Set) *View {
	return &View{series: series, ind: ind}
}

// Series returns the underlying price history.
func (v *View) Series() *market.Series { return v.series }

// Len returns the number of bars.
func (v *View) Len() int { return v.series.Len() }

// Bar returns the bar at index i.
func (v *View) Bar(i int) market.Bar { return v.series.At(i) }

// Last returns the most recent bar.
func (v *View) Last() market.Bar { return v.series.Last() }

// Has reports whether the named column is available on this view.
func (v *View) Has(name string) bool {
	if indicator.IsRaw(name) {
		if name == indicator.Vol {
			return v.series.HasVolume()
		}
		return true
	}
	return v.ind.Has(name)
}

// HasAll reports whether every named column is available.
func (v *View) HasAll(names ...string) bool {
	for _, name := range names {
		if !v.Has(name) {
			return false
		}
	}
	return true
}

// At returns the named column's value at index i; NaN when the column is
// unavailable or i is out of range.
func (v *View) At(name string, i int) float64 {
	if indicator.IsRaw(name) {
		if i < 0 || i >= v.series.Len() {
			return math.NaN()
		}
		bar := v.series.At(i)
		switch name {
		case indicator.Open:
			return bar.Open
		case indicator.High:
			return bar.High
		case indicator.Low:
			return bar.Low
		case indicator.Close:
			return bar.Close
		case indicator.Vol:
			if !v.series.HasVolume() {
				return math.NaN()
			}
			return bar.Volume
		}
	}
	return v.ind.At(name, i)
}

// LastValue returns the named column's most recent value.
func (v *View) LastValue(name string) float64 {
	return v.At(name, v.series.Len()-1)
}

// scoreOr rounds a computed score to two decimals, substituting fallback
// when the computation did not produce a finite number.
func scoreOr(score, fallback float64) float64 {
	if math.IsNaN(score) || math.IsInf(score, 0) {
		return fallback
	}
	return round2(score)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
