package screener

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/picker/internal/market"
	"github.com/wonny/picker/internal/registry"
	"github.com/wonny/picker/internal/strategy"
	"github.com/wonny/picker/pkg/logger"
)

// fixedRule passes for a fixed set of instruments with a fixed score.
type fixedRule struct {
	strategy.Base
	name  string
	score float64
	ids   map[string]bool
}

func rule(name string, score float64, ids ...string) fixedRule {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return fixedRule{name: name, score: score, ids: set}
}

func (r fixedRule) Name() string                   { return r.name }
func (r fixedRule) Description() string            { return "test rule " + r.name }
func (r fixedRule) RequiredIndicators() []string   { return nil }
func (r fixedRule) DefaultParams() strategy.Params { return nil }

func (r fixedRule) Check(v *strategy.View, _ strategy.Params) bool {
	return r.ids[v.Series().ID()]
}

func (r fixedRule) Score(*strategy.View, strategy.Params) float64 { return r.score }

// tightRule overrides the exit levels.
type tightRule struct{ fixedRule }

func (tightRule) StopLoss(strategy.Params) float64   { return 0.03 }
func (tightRule) TakeProfit(strategy.Params) float64 { return 0.2 }

// testRegistry disables the built-ins and installs the given rules.
func testRegistry(t *testing.T, impls ...strategy.Strategy) *registry.Registry {
	t.Helper()
	reg := registry.New()

	off := false
	overrides := make([]registry.Override, 0, 4)
	for _, d := range reg.Descriptors() {
		overrides = append(overrides, registry.Override{Name: d.Name, Enabled: &off})
	}
	require.NoError(t, reg.Configure(overrides))

	for _, impl := range impls {
		require.NoError(t, reg.Register(impl))
	}
	return reg
}

type fakeProvider struct {
	series map[string]*market.Series
	errs   map[string]error
	panics map[string]bool
}

func (f *fakeProvider) GetSeries(_ context.Context, id string, _ time.Time) (*market.Series, error) {
	if f.panics[id] {
		panic("provider blew up on " + id)
	}
	if err := f.errs[id]; err != nil {
		return nil, err
	}
	return f.series[id], nil
}

func flatSeries(t *testing.T, id, name string, n int, lastClose float64) *market.Series {
	t.Helper()
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
	bars[n-1].Close = lastClose
	ser, err := market.New(id, name, bars)
	require.NoError(t, err)
	return ser
}

func asOf() time.Time {
	return time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
}

func TestScan_EndToEnd(t *testing.T) {
	reg := testRegistry(t,
		rule("alpha", 90, "600001"),
		rule("beta", 70, "600001", "600002"),
	)
	provider := &fakeProvider{series: map[string]*market.Series{
		"600001": flatSeries(t, "600001", "Alpha Co", 30, 11),
		"600002": flatSeries(t, "600002", "", 30, 10),
		"600003": flatSeries(t, "600003", "Gamma Co", 30, 10),
	}}
	engine := New(provider, reg, logger.Nop())

	universe := []market.Instrument{
		{ID: "600001", Name: "Alpha Co"},
		{ID: "600002"},
		{ID: "600003", Name: "Gamma Co"},
	}
	res, err := engine.Scan(context.Background(), universe, asOf(), Options{})
	require.NoError(t, err)

	assert.Equal(t, StatusOK, res.Status)
	assert.Equal(t, 3, res.Evaluated)
	assert.Equal(t, 0, res.Skipped)
	assert.Equal(t, 0, res.Failed)
	require.Len(t, res.Picks, 2)

	first := res.Picks[0]
	assert.Equal(t, "600001", first.InstrumentID)
	assert.Equal(t, "Alpha Co", first.Name)
	assert.Equal(t, []string{"alpha", "beta"}, first.MatchedStrategies)
	assert.Equal(t, 2, first.StrategyCount)
	assert.Equal(t, 80.0, first.AvgScore)
	assert.Equal(t, 11.0, first.Close)
	assert.Equal(t, 10.0, first.ChangePct)
	assert.Equal(t, 1000.0, first.Volume)
	assert.Equal(t, time.Date(2024, 1, 30, 0, 0, 0, 0, time.UTC), first.Date)
	assert.Equal(t, strategy.DefaultStopLoss, first.StopLoss)
	assert.Equal(t, strategy.DefaultTakeProfit, first.TakeProfit)

	second := res.Picks[1]
	assert.Equal(t, "600002", second.InstrumentID)
	assert.Equal(t, "600002", second.Name) // falls back to the id
	assert.Equal(t, []string{"beta"}, second.MatchedStrategies)
	assert.Equal(t, 70.0, second.AvgScore)
	assert.Equal(t, 0.0, second.ChangePct)
}

func TestScan_ExitLevelsFromFirstPassed(t *testing.T) {
	reg := testRegistry(t,
		tightRule{rule("tight", 60, "600001")},
		rule("alpha", 90, "600001"),
	)
	provider := &fakeProvider{series: map[string]*market.Series{
		"600001": flatSeries(t, "600001", "Alpha Co", 30, 10),
	}}
	engine := New(provider, reg, logger.Nop())

	res, err := engine.Scan(context.Background(), []market.Instrument{{ID: "600001"}}, asOf(), Options{})
	require.NoError(t, err)
	require.Len(t, res.Picks, 1)

	pick := res.Picks[0]
	assert.Equal(t, []string{"tight", "alpha"}, pick.MatchedStrategies)
	assert.Equal(t, 0.03, pick.StopLoss)
	assert.Equal(t, 0.2, pick.TakeProfit)
	assert.Equal(t, 75.0, pick.AvgScore)
}

func TestScan_SkipsAndFailures(t *testing.T) {
	reg := testRegistry(t, rule("alpha", 90, "600004"))
	provider := &fakeProvider{
		series: map[string]*market.Series{
			"600004": flatSeries(t, "600004", "", 30, 10),
			"600005": flatSeries(t, "600005", "", 5, 10), // below MinBars
		},
		errs:   map[string]error{"600006": errors.New("connection refused")},
		panics: map[string]bool{"600007": true},
	}
	engine := New(provider, reg, logger.Nop())

	universe := []market.Instrument{
		{ID: "600004"},
		{ID: "600005"},
		{ID: "600006"},
		{ID: "600007"},
		{ID: "600008"}, // no data at all
	}
	res, err := engine.Scan(context.Background(), universe, asOf(), Options{})
	require.NoError(t, err)

	assert.Equal(t, StatusOK, res.Status)
	assert.Equal(t, 1, res.Evaluated)
	assert.Equal(t, 2, res.Skipped)
	assert.Equal(t, 2, res.Failed)
	require.Len(t, res.Picks, 1)
	assert.Equal(t, "600004", res.Picks[0].InstrumentID)
}

func TestScan_EmptyUniverse(t *testing.T) {
	engine := New(&fakeProvider{}, testRegistry(t, rule("alpha", 90)), logger.Nop())

	res, err := engine.Scan(context.Background(), nil, asOf(), Options{})
	require.NoError(t, err)
	assert.Equal(t, StatusEmptyUniverse, res.Status)
	assert.Empty(t, res.Picks)
}

func TestScan_NoEnabledStrategies(t *testing.T) {
	engine := New(&fakeProvider{}, testRegistry(t), logger.Nop())

	res, err := engine.Scan(context.Background(), []market.Instrument{{ID: "600001"}}, asOf(), Options{})
	require.NoError(t, err)
	assert.Equal(t, StatusNoStrategies, res.Status)
	assert.Empty(t, res.Picks)
}

func TestScan_Canceled(t *testing.T) {
	reg := testRegistry(t, rule("alpha", 90, "600001"))
	provider := &fakeProvider{series: map[string]*market.Series{
		"600001": flatSeries(t, "600001", "", 30, 10),
	}}
	engine := New(provider, reg, logger.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	universe := []market.Instrument{{ID: "600001"}, {ID: "600002"}, {ID: "600003"}}
	res, err := engine.Scan(ctx, universe, asOf(), Options{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StatusCanceled, res.Status)
}

func TestScan_Progress(t *testing.T) {
	reg := testRegistry(t, rule("alpha", 90, "600001"))
	provider := &fakeProvider{series: map[string]*market.Series{
		"600001": flatSeries(t, "600001", "", 30, 10),
		"600002": flatSeries(t, "600002", "", 30, 10),
		"600003": flatSeries(t, "600003", "", 30, 10),
	}}
	engine := New(provider, reg, logger.Nop())

	var calls []int
	opts := Options{OnProgress: func(done, total int) {
		assert.Equal(t, 3, total)
		calls = append(calls, done)
	}}
	universe := []market.Instrument{{ID: "600001"}, {ID: "600002"}, {ID: "600003"}}
	_, err := engine.Scan(context.Background(), universe, asOf(), opts)
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2, 3}, calls)
}

func TestSortPicks(t *testing.T) {
	picks := []Pick{
		{InstrumentID: "600003", StrategyCount: 1, AvgScore: 90},
		{InstrumentID: "600002", StrategyCount: 2, AvgScore: 10},
		{InstrumentID: "600001", StrategyCount: 1, AvgScore: 90},
		{InstrumentID: "600009", StrategyCount: 1, AvgScore: 50},
	}
	sortPicks(picks)

	ids := make([]string, 0, len(picks))
	for _, p := range picks {
		ids = append(ids, p.InstrumentID)
	}
	// count first, then score, then id
	assert.Equal(t, []string{"600002", "600001", "600003", "600009"}, ids)
}
