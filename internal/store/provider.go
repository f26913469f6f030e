package store

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/picker/internal/market"
	"github.com/wonny/picker/pkg/redis"
)

// DefaultMaxBars bounds the history loaded per instrument when no limit
// is configured.
const DefaultMaxBars = 120

// barSource is the slice of Repository the provider reads from.
type barSource interface {
	GetInstrument(ctx context.Context, id string) (*Instrument, error)
	BarsUpTo(ctx context.Context, instrumentID string, asOf time.Time, limit int) ([]market.Bar, error)
}

// Provider loads price series from the repository for screening. A nil
// series with a nil error means the instrument has no stored history.
type Provider struct {
	src     barSource
	maxBars int
}

// NewProvider creates a series provider reading at most maxBars bars per
// instrument.
func NewProvider(repo *Repository, maxBars int) *Provider {
	if maxBars <= 0 {
		maxBars = DefaultMaxBars
	}
	return &Provider{src: repo, maxBars: maxBars}
}

// GetSeries loads the bar history of one instrument up to asOf.
func (p *Provider) GetSeries(ctx context.Context, instrumentID string, asOf time.Time) (*market.Series, error) {
	bars, err := p.src.BarsUpTo(ctx, instrumentID, asOf, p.maxBars)
	if err != nil {
		return nil, fmt.Errorf("load bars: %w", err)
	}
	if len(bars) == 0 {
		return nil, nil
	}

	name := ""
	inst, err := p.src.GetInstrument(ctx, instrumentID)
	if err != nil {
		return nil, fmt.Errorf("load instrument: %w", err)
	}
	if inst != nil {
		name = inst.Name
	}

	return market.New(instrumentID, name, bars)
}

// seriesLoader matches the provider shape consumed by the screener.
type seriesLoader interface {
	GetSeries(ctx context.Context, instrumentID string, asOf time.Time) (*market.Series, error)
}

// cachedSeries is the wire form of a series in the cache.
type cachedSeries struct {
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	HasVolume bool         `json:"has_volume"`
	Bars      []market.Bar `json:"bars"`
}

// CachedProvider wraps a series provider with a Redis cache keyed by
// instrument and as-of date. Absent series are not cached.
type CachedProvider struct {
	next  seriesLoader
	cache *redis.Cache
	ttl   time.Duration
}

// NewCachedProvider creates a caching provider in front of next.
func NewCachedProvider(next seriesLoader, cache *redis.Cache, ttl time.Duration) *CachedProvider {
	if ttl <= 0 {
		ttl = redis.TTLLong
	}
	return &CachedProvider{next: next, cache: cache, ttl: ttl}
}

// GetSeries returns the cached series when present, loading and caching
// it otherwise.
func (p *CachedProvider) GetSeries(ctx context.Context, instrumentID string, asOf time.Time) (*market.Series, error) {
	key := redis.SeriesKey(instrumentID, asOf.Format("2006-01-02"))

	var cs cachedSeries
	found, err := p.cache.Get(ctx, key, &cs)
	if err == nil && found {
		return rebuildSeries(&cs)
	}

	series, err := p.next.GetSeries(ctx, instrumentID, asOf)
	if err != nil || series == nil {
		return series, err
	}

	bars := make([]market.Bar, series.Len())
	for i := range bars {
		bars[i] = series.At(i)
	}
	entry := cachedSeries{
		ID:        series.ID(),
		Name:      series.Name(),
		HasVolume: series.HasVolume(),
		Bars:      bars,
	}

	// Cache failures only cost the next lookup
	_ = p.cache.Set(ctx, key, entry, p.ttl)

	return series, nil
}

func rebuildSeries(cs *cachedSeries) (*market.Series, error) {
	if cs.HasVolume {
		return market.New(cs.ID, cs.Name, cs.Bars)
	}
	return market.NewWithoutVolume(cs.ID, cs.Name, cs.Bars)
}
