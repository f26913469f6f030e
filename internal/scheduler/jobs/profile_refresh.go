package jobs

import (
	"context"
	"fmt"

	"github.com/wonny/picker/internal/feed"
	"github.com/wonny/picker/pkg/config"
	"github.com/wonny/picker/pkg/logger"
)

// ProfileRefreshJob re-scrapes company profiles for the whole universe.
// Names and industry tags drift slowly, so once a week is enough.
type ProfileRefreshJob struct {
	syncer *feed.Syncer
	config *config.Config
	logger *logger.Logger
}

// NewProfileRefreshJob creates a new profile refresh job
func NewProfileRefreshJob(syncer *feed.Syncer, cfg *config.Config, log *logger.Logger) *ProfileRefreshJob {
	return &ProfileRefreshJob{
		syncer: syncer,
		config: cfg,
		logger: log,
	}
}

// Name returns the job name
func (j *ProfileRefreshJob) Name() string {
	return "profile_refresh"
}

// Schedule returns the cron schedule: Saturday 09:00, outside trading hours.
func (j *ProfileRefreshJob) Schedule() string {
	return "0 0 9 * * 6"
}

// Run refreshes profiles for every active instrument.
func (j *ProfileRefreshJob) Run(ctx context.Context) error {
	results, err := j.syncer.SyncProfiles(ctx, feed.SyncConfig{
		Workers: j.config.Scan.Workers,
	})
	if err != nil {
		return fmt.Errorf("profile refresh: %w", err)
	}

	failed := 0
	for _, r := range results {
		if r.Error != nil {
			failed++
		}
	}
	if len(results) > 0 && failed == len(results) {
		return fmt.Errorf("profile refresh failed for all %d instruments", failed)
	}

	j.logger.WithFields(map[string]interface{}{
		"refreshed": len(results) - failed,
		"failed":    failed,
	}).Info("Profile refresh completed")

	return nil
}
