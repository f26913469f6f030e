package pipeline

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/picker/internal/market"
	"github.com/wonny/picker/internal/registry"
	"github.com/wonny/picker/internal/screener"
	"github.com/wonny/picker/internal/store"
	"github.com/wonny/picker/internal/strategy"
	"github.com/wonny/picker/internal/strategyconfig"
	"github.com/wonny/picker/pkg/logger"
)

// passAll matches every instrument with a fixed score.
type passAll struct {
	strategy.Base
}

func (passAll) Name() string                   { return "pass_all" }
func (passAll) Description() string            { return "accepts everything" }
func (passAll) RequiredIndicators() []string   { return nil }
func (passAll) DefaultParams() strategy.Params { return nil }

func (passAll) Check(*strategy.View, strategy.Params) bool     { return true }
func (passAll) Score(*strategy.View, strategy.Params) float64 { return 77 }

// testPipeline builds a pipeline against the database named by
// DATABASE_URL. Tests are skipped when no database is available.
func testPipeline(t *testing.T) (*Pipeline, *store.Repository) {
	t.Helper()

	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	db, err := pgxpool.New(context.Background(), url)
	require.NoError(t, err, "database connection failed")
	t.Cleanup(db.Close)

	repo := store.NewRepository(db)
	require.NoError(t, repo.EnsureSchema(context.Background()))

	reg := registry.New()
	off := false
	overrides := make([]registry.Override, 0, 4)
	for _, d := range reg.Descriptors() {
		overrides = append(overrides, registry.Override{Name: d.Name, Enabled: &off})
	}
	require.NoError(t, reg.Configure(overrides))
	require.NoError(t, reg.Register(passAll{}))

	log := logger.Nop()
	engine := screener.New(store.NewProvider(repo, 0), reg, log)
	return NewPipeline(nil, repo, engine, nil, log), repo
}

func seedBars(t *testing.T, repo *store.Repository, id string, days int) time.Time {
	t.Helper()
	ctx := context.Background()

	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]market.Bar, 0, days)
	for i := 0; i < days; i++ {
		date := start.AddDate(0, 0, i)
		bars = append(bars, market.Bar{
			Date:   date,
			Open:   10,
			High:   10.5,
			Low:    9.8,
			Close:  10.2,
			Volume: 1000,
		})
	}
	require.NoError(t, repo.UpsertBars(ctx, id, bars))
	return bars[len(bars)-1].Date
}

func TestPipelineRun(t *testing.T) {
	p, repo := testPipeline(t)
	ctx := context.Background()

	require.NoError(t, repo.UpsertInstruments(ctx, []store.Instrument{
		{ID: "700001", Name: "pipeline test one", Exchange: "SH", Active: true},
		{ID: "700002", Name: "pipeline test two", Exchange: "SZ", Active: true},
	}))
	asOf := seedBars(t, repo, "700001", 30)
	seedBars(t, repo, "700002", 30)

	result, err := p.Run(ctx, RunConfig{
		Date:     asOf,
		SkipSync: true,
		Workers:  2,
		MinBars:  5,
	})
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.True(t, result.Success)
	assert.Greater(t, result.RunID, int64(0))
	assert.Contains(t, result.CompletedStages, "universe")
	assert.Contains(t, result.CompletedStages, "scan")
	assert.Contains(t, result.CompletedStages, "persist")

	require.NotNil(t, result.Scan)
	assert.Equal(t, screener.StatusOK, result.Scan.Status)

	// Both seeded instruments pass the catch-all strategy.
	var seeded int
	for _, pick := range result.Scan.Picks {
		if pick.InstrumentID == "700001" || pick.InstrumentID == "700002" {
			seeded++
			assert.Equal(t, []string{"pass_all"}, pick.MatchedStrategies)
			assert.InDelta(t, 77, pick.AvgScore, 0.01)
		}
	}
	assert.Equal(t, 2, seeded)

	run, err := repo.GetScanRun(ctx, result.RunID)
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, len(result.Scan.Picks), run.PickCount)

	picks, err := repo.PicksByRun(ctx, result.RunID)
	require.NoError(t, err)
	assert.Len(t, picks, len(result.Scan.Picks))
}

func TestPipelineRunRecordsSnapshot(t *testing.T) {
	p, repo := testPipeline(t)
	ctx := context.Background()

	require.NoError(t, repo.UpsertInstruments(ctx, []store.Instrument{
		{ID: "700003", Name: "pipeline test three", Exchange: "SH", Active: true},
	}))
	asOf := seedBars(t, repo, "700003", 20)

	snap := &strategyconfig.Snapshot{
		ConfigID:   "pipeline-test",
		ConfigHash: fmt.Sprintf("hash-%d", time.Now().UnixNano()),
		ConfigYAML: "meta:\n  config_id: pipeline-test\n",
		CreatedAt:  time.Now().UTC(),
	}

	result, err := p.Run(ctx, RunConfig{
		Date:     asOf,
		SkipSync: true,
		MinBars:  5,
		Snapshot: snap,
	})
	require.NoError(t, err)

	run, err := repo.GetScanRun(ctx, result.RunID)
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, "pipeline-test", run.ConfigID)
	assert.Equal(t, snap.ConfigHash, run.ConfigHash)

	stored, err := repo.GetConfigSnapshot(ctx, snap.ConfigHash)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, snap.ConfigYAML, stored.ConfigYAML)
}
