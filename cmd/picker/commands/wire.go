package commands

import (
	"fmt"

	"github.com/wonny/picker/internal/registry"
	"github.com/wonny/picker/internal/strategy"
	"github.com/wonny/picker/internal/strategyconfig"
	"github.com/wonny/picker/pkg/config"
	"github.com/wonny/picker/pkg/logger"
)

// configureRegistry applies the strategy file named in cfg.Scan.StrategyFile
// to the registry. Scan settings from the file replace the environment
// defaults in cfg. Returns the audit snapshot referenced by run records,
// or nil when no file is configured.
func configureRegistry(cfg *config.Config, reg *registry.Registry, log *logger.Logger) (*strategyconfig.Snapshot, error) {
	if cfg.Scan.StrategyFile == "" {
		return nil, nil
	}

	fileCfg, raw, err := strategyconfig.Load(cfg.Scan.StrategyFile)
	if err != nil {
		return nil, fmt.Errorf("load strategy file %s: %w", cfg.Scan.StrategyFile, err)
	}

	for _, w := range strategyconfig.Warn(fileCfg) {
		log.WithField("code", w.Code).Warn(w.Message)
	}

	overrides := make([]registry.Override, 0, len(fileCfg.Strategies))
	for _, entry := range fileCfg.Strategies {
		overrides = append(overrides, registry.Override{
			Name:    entry.Name,
			Enabled: entry.Enabled,
			Weight:  entry.Weight,
			Params:  strategy.Params(entry.Params),
		})
	}
	if err := reg.Configure(overrides); err != nil {
		return nil, fmt.Errorf("configure strategies: %w", err)
	}

	// Scan settings in the file win over environment defaults
	if fileCfg.Scan.Workers > 0 {
		cfg.Scan.Workers = fileCfg.Scan.Workers
	}
	if fileCfg.Scan.MinBars > 0 {
		cfg.Scan.MinBars = fileCfg.Scan.MinBars
	}
	if fileCfg.Scan.TopN > 0 {
		cfg.Scan.TopN = fileCfg.Scan.TopN
	}
	if fileCfg.Scan.HistoryDays > 0 {
		cfg.Scan.HistoryDays = fileCfg.Scan.HistoryDays
	}

	return strategyconfig.NewSnapshot(fileCfg, raw)
}
