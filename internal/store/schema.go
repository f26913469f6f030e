package store

import (
	"context"
	"fmt"
)

// schemaStatements create the picker tables. Statements are idempotent so
// EnsureSchema is safe to run on every start.
var schemaStatements = []string{
	`CREATE SCHEMA IF NOT EXISTS data`,

	`CREATE TABLE IF NOT EXISTS data.instruments (
		id         TEXT PRIMARY KEY,
		name       TEXT NOT NULL DEFAULT '',
		exchange   TEXT NOT NULL DEFAULT '',
		industry   TEXT NOT NULL DEFAULT '',
		active     BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS data.daily_bars (
		instrument_id TEXT NOT NULL,
		trade_date    DATE NOT NULL,
		open_price    DOUBLE PRECISION NOT NULL,
		high_price    DOUBLE PRECISION NOT NULL,
		low_price     DOUBLE PRECISION NOT NULL,
		close_price   DOUBLE PRECISION NOT NULL,
		volume        DOUBLE PRECISION NOT NULL DEFAULT 0,
		amount        DOUBLE PRECISION NOT NULL DEFAULT 0,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (instrument_id, trade_date)
	)`,

	`CREATE INDEX IF NOT EXISTS idx_daily_bars_trade_date
		ON data.daily_bars (trade_date)`,

	`CREATE TABLE IF NOT EXISTS data.scan_runs (
		id          BIGSERIAL PRIMARY KEY,
		run_date    DATE NOT NULL,
		status      TEXT NOT NULL,
		evaluated   INTEGER NOT NULL DEFAULT 0,
		skipped     INTEGER NOT NULL DEFAULT 0,
		failed      INTEGER NOT NULL DEFAULT 0,
		pick_count  INTEGER NOT NULL DEFAULT 0,
		config_id   TEXT NOT NULL DEFAULT '',
		config_hash TEXT NOT NULL DEFAULT '',
		started_at  TIMESTAMPTZ NOT NULL,
		finished_at TIMESTAMPTZ NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_scan_runs_run_date
		ON data.scan_runs (run_date)`,

	`CREATE TABLE IF NOT EXISTS data.scan_picks (
		run_id             BIGINT NOT NULL REFERENCES data.scan_runs(id) ON DELETE CASCADE,
		rank               INTEGER NOT NULL,
		instrument_id      TEXT NOT NULL,
		name               TEXT NOT NULL DEFAULT '',
		trade_date         DATE NOT NULL,
		close_price        DOUBLE PRECISION NOT NULL,
		change_pct         DOUBLE PRECISION NOT NULL,
		volume             DOUBLE PRECISION NOT NULL,
		matched_strategies TEXT[] NOT NULL,
		strategy_count     INTEGER NOT NULL,
		avg_score          DOUBLE PRECISION NOT NULL,
		stop_loss          DOUBLE PRECISION NOT NULL,
		take_profit        DOUBLE PRECISION NOT NULL,
		PRIMARY KEY (run_id, instrument_id)
	)`,

	`CREATE INDEX IF NOT EXISTS idx_scan_picks_trade_date
		ON data.scan_picks (trade_date)`,

	`CREATE TABLE IF NOT EXISTS data.config_snapshots (
		id          BIGSERIAL PRIMARY KEY,
		config_id   TEXT NOT NULL,
		config_hash TEXT NOT NULL UNIQUE,
		config_yaml TEXT NOT NULL,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
}

// EnsureSchema creates the picker schema and tables when missing.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := r.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
