package market

import (
	"fmt"
	"math"
	"time"
)

// Bar is a single daily OHLCV record for one instrument.
type Bar struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
	Amount float64   `json:"amount,omitempty"`
}

// Instrument identifies one tradeable security in the scan universe.
type Instrument struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// DataError reports a missing or unusable price history.
type DataError struct {
	InstrumentID string
	Reason       string
}

func (e *DataError) Error() string {
	if e.InstrumentID == "" {
		return fmt.Sprintf("price data: %s", e.Reason)
	}
	return fmt.Sprintf("price data %s: %s", e.InstrumentID, e.Reason)
}

// Series is the immutable daily price history of one instrument.
// Bars are strictly date-ascending with unique dates; a Series always
// contains at least one bar.
type Series struct {
	id        string
	name      string
	bars      []Bar
	hasVolume bool
}

// New validates bars and builds a Series that carries volume data.
func New(id, name string, bars []Bar) (*Series, error) {
	return build(id, name, bars, true)
}

// NewWithoutVolume builds a Series for a source that reports no volume.
// Volume-dependent indicators are not computed for such a series.
func NewWithoutVolume(id, name string, bars []Bar) (*Series, error) {
	return build(id, name, bars, false)
}

func build(id, name string, bars []Bar, hasVolume bool) (*Series, error) {
	if len(bars) == 0 {
		return nil, &DataError{InstrumentID: id, Reason: "empty series"}
	}
	for i := 1; i < len(bars); i++ {
		if !bars[i].Date.After(bars[i-1].Date) {
			return nil, &DataError{
				InstrumentID: id,
				Reason:       fmt.Sprintf("bars out of order at %s", bars[i].Date.Format("2006-01-02")),
			}
		}
	}

	// Own a copy so later mutation of the caller's slice cannot leak in.
	owned := make([]Bar, len(bars))
	copy(owned, bars)

	return &Series{id: id, name: name, bars: owned, hasVolume: hasVolume}, nil
}

// ID returns the instrument identifier.
func (s *Series) ID() string { return s.id }

// Name returns the instrument display name, possibly empty.
func (s *Series) Name() string { return s.name }

// Len returns the number of bars.
func (s *Series) Len() int { return len(s.bars) }

// HasVolume reports whether the source series carries volume data.
func (s *Series) HasVolume() bool { return s.hasVolume }

// At returns the bar at index i (0 = oldest).
func (s *Series) At(i int) Bar { return s.bars[i] }

// Last returns the most recent bar.
func (s *Series) Last() Bar { return s.bars[len(s.bars)-1] }

// LastDate returns the date of the most recent bar.
func (s *Series) LastDate() time.Time { return s.Last().Date }

// Closes returns a copy of the close column.
func (s *Series) Closes() []float64 {
	return s.column(func(b Bar) float64 { return b.Close })
}

// Highs returns a copy of the high column.
func (s *Series) Highs() []float64 {
	return s.column(func(b Bar) float64 { return b.High })
}

// Lows returns a copy of the low column.
func (s *Series) Lows() []float64 {
	return s.column(func(b Bar) float64 { return b.Low })
}

// Volumes returns a copy of the volume column.
func (s *Series) Volumes() []float64 {
	return s.column(func(b Bar) float64 { return b.Volume })
}

func (s *Series) column(get func(Bar) float64) []float64 {
	out := make([]float64, len(s.bars))
	for i, b := range s.bars {
		out[i] = get(b)
	}
	return out
}

// ChangePct returns the latest close-over-close percentage move rounded
// to two decimals. It is 0.0 for a single-bar series or a zero previous
// close.
func (s *Series) ChangePct() float64 {
	n := len(s.bars)
	if n < 2 {
		return 0.0
	}
	prev := s.bars[n-2].Close
	if prev == 0 {
		return 0.0
	}
	return math.Round((s.bars[n-1].Close-prev)/prev*100*100) / 100
}
