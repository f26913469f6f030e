// Package pipeline wires the daily flow end to end, from data refresh
// through screening to report delivery.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/picker/internal/feed"
	"github.com/wonny/picker/internal/market"
	"github.com/wonny/picker/internal/report"
	"github.com/wonny/picker/internal/screener"
	"github.com/wonny/picker/internal/store"
	"github.com/wonny/picker/internal/strategyconfig"
	"github.com/wonny/picker/pkg/logger"
)

// Pipeline coordinates one full screening pass.
type Pipeline struct {
	syncer   *feed.Syncer
	repo     *store.Repository
	engine   *screener.Engine
	reporter *report.Reporter
	logger   *logger.Logger
}

// RunConfig holds configuration for a pipeline run.
type RunConfig struct {
	Date        time.Time
	SkipSync    bool
	Workers     int
	MinBars     int
	HistoryDays int

	// Snapshot, when set, is stored and referenced by the run record.
	Snapshot *strategyconfig.Snapshot

	// OnProgress receives scan progress. Runs on the collecting
	// goroutine, never concurrently.
	OnProgress func(done, total int)
}

// RunResult holds the results of a complete pipeline run.
type RunResult struct {
	RunID           int64
	Date            time.Time
	Success         bool
	Error           error
	CompletedStages []string
	Scan            *screener.Result
	Duration        time.Duration
}

// NewPipeline creates a new Pipeline instance
func NewPipeline(
	syncer *feed.Syncer,
	repo *store.Repository,
	engine *screener.Engine,
	reporter *report.Reporter,
	log *logger.Logger,
) *Pipeline {
	return &Pipeline{
		syncer:   syncer,
		repo:     repo,
		engine:   engine,
		reporter: reporter,
		logger:   log.WithField("module", "pipeline"),
	}
}

// Run executes the pipeline: refresh, universe, scan, persist, report.
// Report delivery failures are logged but do not fail the run; the picks
// are already persisted by then.
func (p *Pipeline) Run(ctx context.Context, config RunConfig) (*RunResult, error) {
	startTime := time.Now()

	result := &RunResult{
		Date:            config.Date,
		CompletedStages: make([]string, 0),
	}

	p.logger.WithFields(map[string]interface{}{
		"date":      config.Date.Format("2006-01-02"),
		"skip_sync": config.SkipSync,
		"workers":   config.Workers,
	}).Info("Starting pipeline run")

	if !config.SkipSync {
		if err := p.runSync(ctx, config); err != nil {
			result.Error = fmt.Errorf("sync stage: %w", err)
			return result, result.Error
		}
		result.CompletedStages = append(result.CompletedStages, "sync")
	} else {
		p.logger.Info("Skipping data refresh")
	}

	universe, err := p.loadUniverse(ctx)
	if err != nil {
		result.Error = fmt.Errorf("universe stage: %w", err)
		return result, result.Error
	}
	result.CompletedStages = append(result.CompletedStages, "universe")

	scan, err := p.runScan(ctx, config, universe)
	if err != nil {
		result.Error = fmt.Errorf("scan stage: %w", err)
		return result, result.Error
	}
	result.Scan = scan
	result.CompletedStages = append(result.CompletedStages, "scan")

	runID, err := p.persistRun(ctx, config, scan, startTime)
	if err != nil {
		result.Error = fmt.Errorf("persist stage: %w", err)
		return result, result.Error
	}
	result.RunID = runID
	result.CompletedStages = append(result.CompletedStages, "persist")

	if p.reporter != nil {
		if err := p.reporter.Publish(ctx, scan); err != nil {
			p.logger.WithError(err).Error("Report delivery failed")
		} else {
			result.CompletedStages = append(result.CompletedStages, "report")
		}
	}

	result.Success = true
	result.Duration = time.Since(startTime)

	p.logger.WithFields(map[string]interface{}{
		"run_id":   result.RunID,
		"picks":    len(scan.Picks),
		"duration": result.Duration.Seconds(),
		"stages":   len(result.CompletedStages),
	}).Info("Pipeline run completed")

	return result, nil
}

// runSync refreshes the universe and daily bars.
func (p *Pipeline) runSync(ctx context.Context, config RunConfig) error {
	p.logger.Info("Running stage: data refresh")

	err := p.syncer.SyncAll(ctx, feed.SyncConfig{
		Workers:     config.Workers,
		HistoryDays: config.HistoryDays,
	})
	if err != nil {
		return err
	}

	p.logger.Info("Stage completed: data refresh")
	return nil
}

// loadUniverse reads the active instruments. An empty universe is not an
// error here; the scan records it as empty_universe.
func (p *Pipeline) loadUniverse(ctx context.Context) ([]market.Instrument, error) {
	instruments, err := p.repo.ActiveInstruments(ctx)
	if err != nil {
		return nil, fmt.Errorf("load universe: %w", err)
	}
	if len(instruments) == 0 {
		p.logger.Warn("Universe is empty")
	}

	universe := make([]market.Instrument, 0, len(instruments))
	for _, inst := range instruments {
		universe = append(universe, market.Instrument{ID: inst.ID, Name: inst.Name})
	}

	p.logger.WithField("instrument_count", len(universe)).Info("Stage completed: universe")
	return universe, nil
}

// runScan screens the universe as of the run date.
func (p *Pipeline) runScan(ctx context.Context, config RunConfig, universe []market.Instrument) (*screener.Result, error) {
	p.logger.Info("Running stage: screen")

	scan, err := p.engine.Scan(ctx, universe, config.Date, screener.Options{
		MinBars:    config.MinBars,
		Workers:    config.Workers,
		OnProgress: config.OnProgress,
	})
	if err != nil {
		return nil, err
	}

	p.logger.WithFields(map[string]interface{}{
		"picks":     len(scan.Picks),
		"evaluated": scan.Evaluated,
		"skipped":   scan.Skipped,
		"failed":    scan.Failed,
	}).Info("Stage completed: screen")

	return scan, nil
}

// persistRun stores the run record and its picks, plus the config
// snapshot when one was supplied.
func (p *Pipeline) persistRun(ctx context.Context, config RunConfig, scan *screener.Result, startedAt time.Time) (int64, error) {
	run := &store.ScanRun{
		RunDate:    scan.Date,
		Status:     string(scan.Status),
		Evaluated:  scan.Evaluated,
		Skipped:    scan.Skipped,
		Failed:     scan.Failed,
		PickCount:  len(scan.Picks),
		StartedAt:  startedAt,
		FinishedAt: time.Now(),
	}

	if config.Snapshot != nil {
		if err := p.repo.SaveConfigSnapshot(ctx, config.Snapshot); err != nil {
			return 0, fmt.Errorf("save config snapshot: %w", err)
		}
		run.ConfigID = config.Snapshot.ConfigID
		run.ConfigHash = config.Snapshot.ConfigHash
	}

	runID, err := p.repo.InsertScanRun(ctx, run)
	if err != nil {
		return 0, fmt.Errorf("save scan run: %w", err)
	}

	if err := p.repo.SavePicks(ctx, runID, scan.Picks); err != nil {
		return 0, fmt.Errorf("save picks: %w", err)
	}

	p.logger.WithFields(map[string]interface{}{
		"run_id": runID,
		"picks":  len(scan.Picks),
	}).Info("Stage completed: persist")

	return runID, nil
}
