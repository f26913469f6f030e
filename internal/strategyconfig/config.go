package strategyconfig

import "time"

// Config is the screening strategy file. It tunes the built-in strategy
// set and the scan defaults; anything left at its zero value keeps the
// environment default.
type Config struct {
	Meta       Meta            `yaml:"meta" json:"meta"`
	Scan       Scan            `yaml:"scan" json:"scan"`
	Strategies []StrategyEntry `yaml:"strategies" json:"strategies"`
}

// Meta identifies the config for audit records.
type Meta struct {
	ConfigID string `yaml:"config_id" json:"config_id"`
	Version  string `yaml:"version" json:"version"`
}

// Scan overrides the screening run defaults. Zero values mean "keep the
// environment setting".
type Scan struct {
	Workers     int `yaml:"workers" json:"workers"`
	MinBars     int `yaml:"min_bars" json:"min_bars"`
	TopN        int `yaml:"top_n" json:"top_n"`
	HistoryDays int `yaml:"history_days" json:"history_days"`
}

// StrategyEntry adjusts one registered strategy. The entry order in the
// file becomes the execution order. Nil Enabled/Weight keep the
// registered defaults; Params are merged over the strategy's own.
type StrategyEntry struct {
	Name    string                 `yaml:"name" json:"name"`
	Enabled *bool                  `yaml:"enabled,omitempty" json:"enabled,omitempty"`
	Weight  *float64               `yaml:"weight,omitempty" json:"weight,omitempty"`
	Params  map[string]interface{} `yaml:"params,omitempty" json:"params,omitempty"`
}

// Snapshot freezes the loaded config for audit. Stored next to scan runs
// so any pick list can be traced back to the exact file that produced it.
type Snapshot struct {
	ConfigID   string    `json:"config_id"`
	ConfigHash string    `json:"config_hash"`
	ConfigYAML string    `json:"config_yaml"`
	CreatedAt  time.Time `json:"created_at"`
}
