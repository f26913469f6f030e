package logger_test

import (
	"errors"

	"github.com/wonny/picker/pkg/config"
	"github.com/wonny/picker/pkg/logger"
)

// Example_basic demonstrates basic logger usage
func Example_basic() {
	cfg := &config.Config{
		Env:       "development",
		LogLevel:  "info",
		LogFormat: "console",
	}

	log := logger.New(cfg)

	log.Debug("This won't appear (level is info)")
	log.Info("Application started")
	log.Warn("Strategy file missing, using builtin defaults")
	log.Error("Failed to connect")

	log.Infof("Universe size %d", 4821)
	log.Warnf("Retry attempt %d of %d", 3, 5)
}

// Example_withFields demonstrates structured logging with fields
func Example_withFields() {
	cfg := &config.Config{
		Env:       "production",
		LogLevel:  "info",
		LogFormat: "json",
	}

	log := logger.New(cfg)

	scanLog := log.WithField("scan_id", "20260820-1")
	scanLog.Info("Scan started")

	pickLog := log.WithFields(map[string]interface{}{
		"instrument_id": "600519",
		"avg_score":     86.5,
		"strategies":    2,
	})
	pickLog.Info("Instrument picked")
}

// Example_withError demonstrates error logging
func Example_withError() {
	cfg := &config.Config{
		Env:       "production",
		LogLevel:  "error",
		LogFormat: "json",
	}

	log := logger.New(cfg)

	err := errors.New("database connection timeout")
	log.WithError(err).Error("Failed to load price series")

	log.WithError(err).
		WithFields(map[string]interface{}{
			"retry_count": 3,
			"timeout_ms":  5000,
		}).
		Error("Connection failed after retries")
}
