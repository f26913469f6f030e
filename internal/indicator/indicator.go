package indicator

import (
	"math"
	"sort"
)

// Canonical names of the derived indicator columns.
const (
	MA5        = "ma5"
	MA10       = "ma10"
	MA20       = "ma20"
	MA60       = "ma60"
	MAVol      = "ma_vol"
	MACDDif    = "macd_dif"
	MACDDea    = "macd_dea"
	MACDBar    = "macd_bar"
	KDJK       = "kdj_k"
	KDJD       = "kdj_d"
	KDJJ       = "kdj_j"
	RSI        = "rsi"
	BollUpper  = "boll_upper"
	BollMiddle = "boll_middle"
	BollLower  = "boll_lower"
	OBV        = "obv"
)

// Raw series columns. Strategies list these alongside derived indicators
// when declaring requirements; they are satisfied by the bars themselves.
const (
	Open  = "open"
	High  = "high"
	Low   = "low"
	Close = "close"
	Vol   = "vol"
)

// IsRaw reports whether name refers to a raw bar column rather than a
// derived indicator.
func IsRaw(name string) bool {
	switch name {
	case Open, High, Low, Close, Vol:
		return true
	}
	return false
}

// Set holds named indicator columns aligned 1:1 with the source bars.
// Positions without enough history hold NaN; an indicator that cannot be
// computed for the series at all (e.g. volume-based ones on a volume-less
// series) is absent rather than zero-filled.
type Set struct {
	length int
	cols   map[string][]float64
}

// NewSet creates an empty indicator set for a series of the given length.
func NewSet(length int) *Set {
	return &Set{length: length, cols: make(map[string][]float64)}
}

// Put stores a column under the given name, replacing any previous one.
// The column must be aligned with the source bars.
func (s *Set) Put(name string, vals []float64) {
	s.cols[name] = vals
}

// Len returns the common column length, equal to the bar count.
func (s *Set) Len() int { return s.length }

// Has reports whether the named indicator was computed.
func (s *Set) Has(name string) bool {
	_, ok := s.cols[name]
	return ok
}

// Names returns the computed indicator names in sorted order.
func (s *Set) Names() []string {
	names := make([]string, 0, len(s.cols))
	for name := range s.cols {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// At returns the value of the named indicator at position i, or NaN when
// the indicator is absent or i is out of range.
func (s *Set) At(name string, i int) float64 {
	col, ok := s.cols[name]
	if !ok || i < 0 || i >= len(col) {
		return math.NaN()
	}
	return col[i]
}

// Last returns the most recent value of the named indicator, or NaN when
// the indicator is absent.
func (s *Set) Last(name string) float64 {
	return s.At(name, s.length-1)
}

// Values returns a copy of the named column.
func (s *Set) Values(name string) ([]float64, bool) {
	col, ok := s.cols[name]
	if !ok {
		return nil, false
	}
	out := make([]float64, len(col))
	copy(out, col)
	return out, true
}
