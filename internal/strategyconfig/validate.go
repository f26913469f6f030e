package strategyconfig

import "fmt"

// ValidationError is a hard constraint violation; the program refuses to
// start on one.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Warning is a recommended-constraint violation; logged, never fatal.
type Warning struct {
	Code    string
	Message string
}

// Validate checks all required constraints.
func Validate(cfg *Config) error {
	if cfg.Meta.ConfigID == "" {
		return ValidationError{"meta.config_id", "required"}
	}

	if cfg.Scan.Workers < 0 {
		return ValidationError{"scan.workers", "must be >= 0"}
	}
	if cfg.Scan.MinBars < 0 {
		return ValidationError{"scan.min_bars", "must be >= 0"}
	}
	if cfg.Scan.TopN < 0 {
		return ValidationError{"scan.top_n", "must be >= 0"}
	}
	if cfg.Scan.HistoryDays < 0 {
		return ValidationError{"scan.history_days", "must be >= 0"}
	}

	seen := make(map[string]bool, len(cfg.Strategies))
	for i, entry := range cfg.Strategies {
		if entry.Name == "" {
			return ValidationError{fmt.Sprintf("strategies[%d].name", i), "required"}
		}
		if seen[entry.Name] {
			return ValidationError{
				Field:   fmt.Sprintf("strategies[%d].name", i),
				Message: fmt.Sprintf("duplicate entry for %q", entry.Name),
			}
		}
		seen[entry.Name] = true

		if entry.Weight != nil && *entry.Weight < 0 {
			return ValidationError{fmt.Sprintf("strategies[%d].weight", i), "must be >= 0"}
		}
	}

	return nil
}

// Warn checks recommended constraints.
func Warn(cfg *Config) []Warning {
	var warnings []Warning

	if len(cfg.Strategies) > 0 {
		allOff := true
		for _, entry := range cfg.Strategies {
			if entry.Enabled == nil || *entry.Enabled {
				allOff = false
				break
			}
		}
		if allOff {
			warnings = append(warnings, Warning{
				Code:    "ALL_DISABLED",
				Message: "every configured strategy is disabled; scans will return no picks",
			})
		}
	}

	for _, entry := range cfg.Strategies {
		if entry.Weight != nil && *entry.Weight == 0 {
			warnings = append(warnings, Warning{
				Code:    "ZERO_WEIGHT",
				Message: fmt.Sprintf("strategy %q has weight 0", entry.Name),
			})
		}
	}

	if cfg.Scan.MinBars > 0 && cfg.Scan.MinBars < 10 {
		warnings = append(warnings, Warning{
			Code:    "LOW_MIN_BARS",
			Message: "min_bars below 10 lets thin histories through the indicator defaults",
		})
	}

	if cfg.Scan.Workers > 64 {
		warnings = append(warnings, Warning{
			Code:    "HIGH_WORKERS",
			Message: "more than 64 workers rarely helps and hammers the data source",
		})
	}

	return warnings
}
