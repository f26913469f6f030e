package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/picker/internal/pipeline"
	"github.com/wonny/picker/internal/strategyconfig"
	"github.com/wonny/picker/pkg/config"
	"github.com/wonny/picker/pkg/logger"
)

// DailyScanJob runs the full pipeline once per trading day: refresh the
// data, screen the universe, persist and deliver the picks.
type DailyScanJob struct {
	pipeline *pipeline.Pipeline
	snapshot *strategyconfig.Snapshot
	config   *config.Config
	logger   *logger.Logger
}

// NewDailyScanJob creates a new daily scan job. The snapshot may be nil
// when no strategy file is configured.
func NewDailyScanJob(p *pipeline.Pipeline, snap *strategyconfig.Snapshot, cfg *config.Config, log *logger.Logger) *DailyScanJob {
	return &DailyScanJob{
		pipeline: p,
		snapshot: snap,
		config:   cfg,
		logger:   log,
	}
}

// Name returns the job name
func (j *DailyScanJob) Name() string {
	return "daily_scan"
}

// Schedule returns the configured cron spec, by default shortly after
// the session close.
func (j *DailyScanJob) Schedule() string {
	return j.config.Scan.Schedule
}

// Run executes the pipeline for today.
func (j *DailyScanJob) Run(ctx context.Context) error {
	now := time.Now().UTC()
	date := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	j.logger.WithField("date", date.Format("2006-01-02")).Info("Starting scheduled scan")

	result, err := j.pipeline.Run(ctx, pipeline.RunConfig{
		Date:        date,
		Workers:     j.config.Scan.Workers,
		MinBars:     j.config.Scan.MinBars,
		HistoryDays: j.config.Scan.HistoryDays,
		Snapshot:    j.snapshot,
	})
	if err != nil {
		return fmt.Errorf("pipeline run: %w", err)
	}

	j.logger.WithFields(map[string]interface{}{
		"run_id": result.RunID,
		"picks":  len(result.Scan.Picks),
	}).Info("Scheduled scan completed")

	return nil
}
