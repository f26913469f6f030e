// Package report turns ranked scan results into CSV exports, console
// tables and push notifications.
package report

import (
	"context"

	"github.com/wonny/picker/internal/screener"
	"github.com/wonny/picker/pkg/config"
	"github.com/wonny/picker/pkg/logger"
)

// Reporter fans one scan result out to the enabled sinks.
type Reporter struct {
	outputDir string
	notifier  *Notifier
	logger    *logger.Logger
}

// NewReporter creates a new Reporter instance
func NewReporter(cfg *config.Config, notifier *Notifier, log *logger.Logger) *Reporter {
	return &Reporter{
		outputDir: cfg.Scan.OutputDir,
		notifier:  notifier,
		logger:    log.WithField("module", "report"),
	}
}

// Publish exports the CSV and pushes the notification. One sink failing
// does not stop the others; the first error is returned.
func (r *Reporter) Publish(ctx context.Context, result *screener.Result) error {
	var firstErr error

	if r.outputDir != "" && len(result.Picks) > 0 {
		path, err := SaveCSV(r.outputDir, result.Date, result.Picks)
		if err != nil {
			r.logger.WithError(err).Error("Failed to export picks CSV")
			firstErr = err
		} else {
			r.logger.WithFields(map[string]interface{}{
				"path":  path,
				"picks": len(result.Picks),
			}).Info("Picks exported")
		}
	}

	if r.notifier != nil && r.notifier.Enabled() {
		if err := r.notifier.Send(ctx, MessageTitle(result), FormatMessage(result)); err != nil {
			r.logger.WithError(err).Error("Failed to push scan notification")
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	return firstErr
}
