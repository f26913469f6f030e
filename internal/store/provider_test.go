package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/picker/internal/market"
	"github.com/wonny/picker/pkg/config"
	"github.com/wonny/picker/pkg/redis"
)

type fakeSource struct {
	instruments map[string]*Instrument
	bars        map[string][]market.Bar
	err         error
}

func (f *fakeSource) GetInstrument(ctx context.Context, id string) (*Instrument, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.instruments[id], nil
}

func (f *fakeSource) BarsUpTo(ctx context.Context, instrumentID string, asOf time.Time, limit int) ([]market.Bar, error) {
	if f.err != nil {
		return nil, f.err
	}

	var out []market.Bar
	for _, b := range f.bars[instrumentID] {
		if !b.Date.After(asOf) {
			out = append(out, b)
		}
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func testBars(n int) []market.Bar {
	bars := make([]market.Bar, n)
	for i := range bars {
		bars[i] = market.Bar{
			Date:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i),
			Open:   10,
			High:   10.5,
			Low:    9.5,
			Close:  10,
			Volume: 1000,
		}
	}
	return bars
}

func TestProvider_GetSeries(t *testing.T) {
	src := &fakeSource{
		instruments: map[string]*Instrument{
			"600519": {ID: "600519", Name: "Kweichow Moutai", Active: true},
		},
		bars: map[string][]market.Bar{
			"600519": testBars(30),
		},
	}
	p := &Provider{src: src, maxBars: 120}

	asOf := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	series, err := p.GetSeries(context.Background(), "600519", asOf)
	require.NoError(t, err)
	require.NotNil(t, series)

	assert.Equal(t, "600519", series.ID())
	assert.Equal(t, "Kweichow Moutai", series.Name())
	assert.Equal(t, 30, series.Len())
	assert.True(t, series.HasVolume())
}

func TestProvider_GetSeries_RespectsAsOf(t *testing.T) {
	src := &fakeSource{
		instruments: map[string]*Instrument{},
		bars: map[string][]market.Bar{
			"600519": testBars(30),
		},
	}
	p := &Provider{src: src, maxBars: 120}

	// Only the first 10 bars fall on or before Jan 10
	asOf := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	series, err := p.GetSeries(context.Background(), "600519", asOf)
	require.NoError(t, err)
	require.NotNil(t, series)

	assert.Equal(t, 10, series.Len())
	assert.Equal(t, asOf, series.LastDate())
}

func TestProvider_GetSeries_MaxBars(t *testing.T) {
	src := &fakeSource{
		instruments: map[string]*Instrument{},
		bars: map[string][]market.Bar{
			"600519": testBars(200),
		},
	}
	p := &Provider{src: src, maxBars: 120}

	asOf := time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)
	series, err := p.GetSeries(context.Background(), "600519", asOf)
	require.NoError(t, err)
	require.NotNil(t, series)

	assert.Equal(t, 120, series.Len())
}

func TestProvider_GetSeries_NoHistory(t *testing.T) {
	src := &fakeSource{
		instruments: map[string]*Instrument{},
		bars:        map[string][]market.Bar{},
	}
	p := &Provider{src: src, maxBars: 120}

	series, err := p.GetSeries(context.Background(), "600000", time.Now())
	require.NoError(t, err)
	assert.Nil(t, series)
}

func TestProvider_GetSeries_UnknownInstrumentKeepsID(t *testing.T) {
	src := &fakeSource{
		instruments: map[string]*Instrument{},
		bars: map[string][]market.Bar{
			"600001": testBars(15),
		},
	}
	p := &Provider{src: src, maxBars: 120}

	series, err := p.GetSeries(context.Background(), "600001", time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.NotNil(t, series)

	assert.Equal(t, "600001", series.ID())
	assert.Equal(t, "", series.Name())
}

func TestProvider_GetSeries_SourceError(t *testing.T) {
	src := &fakeSource{err: errors.New("connection refused")}
	p := &Provider{src: src, maxBars: 120}

	_, err := p.GetSeries(context.Background(), "600519", time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load bars")
}

type countingLoader struct {
	series *market.Series
	calls  int
}

func (l *countingLoader) GetSeries(ctx context.Context, instrumentID string, asOf time.Time) (*market.Series, error) {
	l.calls++
	return l.series, nil
}

func TestCachedProvider_PassthroughWhenDisabled(t *testing.T) {
	client, err := redis.New(&config.Config{
		Redis: config.RedisConfig{Enabled: false},
	})
	require.NoError(t, err)
	cache := redis.NewCache(client, "picker-test")

	series, err := market.New("600519", "Kweichow Moutai", testBars(20))
	require.NoError(t, err)

	loader := &countingLoader{series: series}
	p := NewCachedProvider(loader, cache, time.Hour)

	asOf := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 2; i++ {
		got, err := p.GetSeries(context.Background(), "600519", asOf)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "600519", got.ID())
	}

	// Disabled cache never stores, both lookups hit the loader
	assert.Equal(t, 2, loader.calls)
}

func TestCachedProvider_AbsentSeriesNotCached(t *testing.T) {
	client, err := redis.New(&config.Config{
		Redis: config.RedisConfig{Enabled: false},
	})
	require.NoError(t, err)
	cache := redis.NewCache(client, "picker-test")

	loader := &countingLoader{series: nil}
	p := NewCachedProvider(loader, cache, time.Hour)

	got, err := p.GetSeries(context.Background(), "600000", time.Now())
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRebuildSeries(t *testing.T) {
	bars := testBars(10)

	t.Run("with volume", func(t *testing.T) {
		series, err := rebuildSeries(&cachedSeries{
			ID:        "600519",
			Name:      "Kweichow Moutai",
			HasVolume: true,
			Bars:      bars,
		})
		require.NoError(t, err)
		assert.True(t, series.HasVolume())
		assert.Equal(t, 10, series.Len())
	})

	t.Run("without volume", func(t *testing.T) {
		series, err := rebuildSeries(&cachedSeries{
			ID:        "000001",
			HasVolume: false,
			Bars:      bars,
		})
		require.NoError(t, err)
		assert.False(t, series.HasVolume())
	})

	t.Run("empty bars rejected", func(t *testing.T) {
		_, err := rebuildSeries(&cachedSeries{ID: "600519", HasVolume: true})
		assert.Error(t, err)
	})
}
