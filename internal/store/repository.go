package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/picker/internal/market"
	"github.com/wonny/picker/internal/screener"
	"github.com/wonny/picker/internal/strategyconfig"
)

// batchSize limits rows per transaction on bulk upserts.
const batchSize = 500

// Instrument is one listed security as persisted in the universe table.
type Instrument struct {
	ID        string
	Name      string
	Exchange  string
	Industry  string
	Active    bool
	UpdatedAt time.Time
}

// ScanRun records one completed screening pass.
type ScanRun struct {
	ID         int64
	RunDate    time.Time
	Status     string
	Evaluated  int
	Skipped    int
	Failed     int
	PickCount  int
	ConfigID   string
	ConfigHash string
	StartedAt  time.Time
	FinishedAt time.Time
}

// Repository handles persistence for instruments, bars and scan results.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new Repository instance
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Pool returns the underlying database pool
func (r *Repository) Pool() *pgxpool.Pool {
	return r.db
}

// UpsertInstruments saves the instrument universe (bulk upsert).
func (r *Repository) UpsertInstruments(ctx context.Context, instruments []Instrument) error {
	if len(instruments) == 0 {
		return nil
	}

	query := `
		INSERT INTO data.instruments (
			id, name, exchange, industry, active, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			exchange = EXCLUDED.exchange,
			industry = EXCLUDED.industry,
			active = EXCLUDED.active,
			updated_at = NOW()
	`

	// Batch insert using transactions
	for i := 0; i < len(instruments); i += batchSize {
		end := i + batchSize
		if end > len(instruments) {
			end = len(instruments)
		}
		batch := instruments[i:end]

		tx, err := r.db.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin transaction (batch %d): %w", i/batchSize, err)
		}

		for _, inst := range batch {
			_, err := tx.Exec(ctx, query,
				inst.ID, inst.Name, inst.Exchange, inst.Industry, inst.Active,
			)
			if err != nil {
				tx.Rollback(ctx)
				return fmt.Errorf("insert instrument %s: %w", inst.ID, err)
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit transaction (batch %d): %w", i/batchSize, err)
		}
	}

	return nil
}

// ActiveInstruments retrieves all active instruments ordered by id.
func (r *Repository) ActiveInstruments(ctx context.Context) ([]Instrument, error) {
	query := `
		SELECT id, name, exchange, industry, active, updated_at
		FROM data.instruments
		WHERE active
		ORDER BY id
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query active instruments: %w", err)
	}
	defer rows.Close()

	var instruments []Instrument
	for rows.Next() {
		var inst Instrument
		if err := rows.Scan(&inst.ID, &inst.Name, &inst.Exchange, &inst.Industry, &inst.Active, &inst.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan instrument: %w", err)
		}
		instruments = append(instruments, inst)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return instruments, nil
}

// ActiveInstrumentIDs retrieves the ids of all active instruments. This is
// the scan universe.
func (r *Repository) ActiveInstrumentIDs(ctx context.Context) ([]string, error) {
	query := `
		SELECT id
		FROM data.instruments
		WHERE active
		ORDER BY id
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query active instrument ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan instrument id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return ids, nil
}

// GetInstrument retrieves one instrument. Returns nil when unknown.
func (r *Repository) GetInstrument(ctx context.Context, id string) (*Instrument, error) {
	query := `
		SELECT id, name, exchange, industry, active, updated_at
		FROM data.instruments
		WHERE id = $1
	`

	var inst Instrument
	err := r.db.QueryRow(ctx, query, id).Scan(
		&inst.ID, &inst.Name, &inst.Exchange, &inst.Industry, &inst.Active, &inst.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("query instrument: %w", err)
	}

	return &inst, nil
}

// DeactivateMissing marks instruments absent from the given id set as
// inactive. Returns the number of instruments deactivated.
func (r *Repository) DeactivateMissing(ctx context.Context, seen []string) (int64, error) {
	if len(seen) == 0 {
		return 0, nil
	}

	query := `
		UPDATE data.instruments
		SET active = FALSE, updated_at = NOW()
		WHERE active AND NOT (id = ANY($1))
	`

	tag, err := r.db.Exec(ctx, query, seen)
	if err != nil {
		return 0, fmt.Errorf("deactivate missing instruments: %w", err)
	}

	return tag.RowsAffected(), nil
}

// UpsertBars saves daily bars for one instrument (bulk upsert).
func (r *Repository) UpsertBars(ctx context.Context, instrumentID string, bars []market.Bar) error {
	if len(bars) == 0 {
		return nil
	}

	query := `
		INSERT INTO data.daily_bars (
			instrument_id, trade_date, open_price, high_price, low_price,
			close_price, volume, amount, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
		ON CONFLICT (instrument_id, trade_date) DO UPDATE SET
			open_price = EXCLUDED.open_price,
			high_price = EXCLUDED.high_price,
			low_price = EXCLUDED.low_price,
			close_price = EXCLUDED.close_price,
			volume = EXCLUDED.volume,
			amount = EXCLUDED.amount,
			updated_at = NOW()
	`

	// Batch insert using transactions
	for i := 0; i < len(bars); i += batchSize {
		end := i + batchSize
		if end > len(bars) {
			end = len(bars)
		}
		batch := bars[i:end]

		tx, err := r.db.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin transaction (batch %d): %w", i/batchSize, err)
		}

		for _, b := range batch {
			_, err := tx.Exec(ctx, query,
				instrumentID, b.Date, b.Open, b.High, b.Low,
				b.Close, b.Volume, b.Amount,
			)
			if err != nil {
				tx.Rollback(ctx)
				return fmt.Errorf("insert bar %s %s: %w", instrumentID, b.Date.Format("2006-01-02"), err)
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit transaction (batch %d): %w", i/batchSize, err)
		}
	}

	return nil
}

// BarsUpTo retrieves up to limit bars for one instrument with trade dates
// at or before asOf, oldest first.
func (r *Repository) BarsUpTo(ctx context.Context, instrumentID string, asOf time.Time, limit int) ([]market.Bar, error) {
	if limit <= 0 {
		limit = 500
	}

	query := `
		SELECT trade_date, open_price, high_price, low_price, close_price, volume, amount
		FROM data.daily_bars
		WHERE instrument_id = $1 AND trade_date <= $2
		ORDER BY trade_date DESC
		LIMIT $3
	`

	rows, err := r.db.Query(ctx, query, instrumentID, asOf, limit)
	if err != nil {
		return nil, fmt.Errorf("query bars: %w", err)
	}
	defer rows.Close()

	var bars []market.Bar
	for rows.Next() {
		var b market.Bar
		if err := rows.Scan(&b.Date, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume, &b.Amount); err != nil {
			return nil, fmt.Errorf("scan bar: %w", err)
		}
		bars = append(bars, b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	// Query returns newest first, flip to ascending
	for i, j := 0, len(bars)-1; i < j; i, j = i+1, j-1 {
		bars[i], bars[j] = bars[j], bars[i]
	}

	return bars, nil
}

// LatestBarDate retrieves the most recent trade date stored for one
// instrument. Returns the zero time when no bars exist.
func (r *Repository) LatestBarDate(ctx context.Context, instrumentID string) (time.Time, error) {
	query := `
		SELECT trade_date
		FROM data.daily_bars
		WHERE instrument_id = $1
		ORDER BY trade_date DESC
		LIMIT 1
	`

	var date time.Time
	err := r.db.QueryRow(ctx, query, instrumentID).Scan(&date)
	if err != nil {
		if err == pgx.ErrNoRows {
			return time.Time{}, nil
		}
		return time.Time{}, fmt.Errorf("query latest bar date: %w", err)
	}

	return date, nil
}

// InsertScanRun persists a scan run record and returns its id.
func (r *Repository) InsertScanRun(ctx context.Context, run *ScanRun) (int64, error) {
	query := `
		INSERT INTO data.scan_runs (
			run_date, status, evaluated, skipped, failed, pick_count,
			config_id, config_hash, started_at, finished_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`

	var id int64
	err := r.db.QueryRow(ctx, query,
		run.RunDate, run.Status, run.Evaluated, run.Skipped, run.Failed, run.PickCount,
		run.ConfigID, run.ConfigHash, run.StartedAt, run.FinishedAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert scan run: %w", err)
	}

	return id, nil
}

// SavePicks persists the picks of one scan run in rank order.
func (r *Repository) SavePicks(ctx context.Context, runID int64, picks []screener.Pick) error {
	if len(picks) == 0 {
		return nil
	}

	query := `
		INSERT INTO data.scan_picks (
			run_id, rank, instrument_id, name, trade_date, close_price,
			change_pct, volume, matched_strategies, strategy_count,
			avg_score, stop_loss, take_profit
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for i, p := range picks {
		_, err := tx.Exec(ctx, query,
			runID, i+1, p.InstrumentID, p.Name, p.Date, p.Close,
			p.ChangePct, p.Volume, p.MatchedStrategies, p.StrategyCount,
			p.AvgScore, p.StopLoss, p.TakeProfit,
		)
		if err != nil {
			return fmt.Errorf("insert pick %s: %w", p.InstrumentID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

// GetScanRun retrieves one scan run by id. Returns nil when unknown.
func (r *Repository) GetScanRun(ctx context.Context, id int64) (*ScanRun, error) {
	query := `
		SELECT id, run_date, status, evaluated, skipped, failed, pick_count,
			config_id, config_hash, started_at, finished_at
		FROM data.scan_runs
		WHERE id = $1
	`

	var run ScanRun
	err := r.db.QueryRow(ctx, query, id).Scan(
		&run.ID, &run.RunDate, &run.Status, &run.Evaluated, &run.Skipped, &run.Failed,
		&run.PickCount, &run.ConfigID, &run.ConfigHash, &run.StartedAt, &run.FinishedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("query scan run: %w", err)
	}

	return &run, nil
}

// LatestScanRun retrieves the most recent scan run. Returns nil when no
// runs exist yet.
func (r *Repository) LatestScanRun(ctx context.Context) (*ScanRun, error) {
	query := `
		SELECT id, run_date, status, evaluated, skipped, failed, pick_count,
			config_id, config_hash, started_at, finished_at
		FROM data.scan_runs
		ORDER BY id DESC
		LIMIT 1
	`

	var run ScanRun
	err := r.db.QueryRow(ctx, query).Scan(
		&run.ID, &run.RunDate, &run.Status, &run.Evaluated, &run.Skipped, &run.Failed,
		&run.PickCount, &run.ConfigID, &run.ConfigHash, &run.StartedAt, &run.FinishedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("query latest scan run: %w", err)
	}

	return &run, nil
}

// ListScanRuns retrieves the most recent scan runs, newest first.
func (r *Repository) ListScanRuns(ctx context.Context, limit int) ([]ScanRun, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT id, run_date, status, evaluated, skipped, failed, pick_count,
			config_id, config_hash, started_at, finished_at
		FROM data.scan_runs
		ORDER BY id DESC
		LIMIT $1
	`

	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query scan runs: %w", err)
	}
	defer rows.Close()

	var runs []ScanRun
	for rows.Next() {
		var run ScanRun
		if err := rows.Scan(
			&run.ID, &run.RunDate, &run.Status, &run.Evaluated, &run.Skipped, &run.Failed,
			&run.PickCount, &run.ConfigID, &run.ConfigHash, &run.StartedAt, &run.FinishedAt,
		); err != nil {
			return nil, fmt.Errorf("scan run row: %w", err)
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return runs, nil
}

// PicksByRun retrieves the picks of one run in rank order.
func (r *Repository) PicksByRun(ctx context.Context, runID int64) ([]screener.Pick, error) {
	query := `
		SELECT instrument_id, name, trade_date, close_price, change_pct, volume,
			matched_strategies, strategy_count, avg_score, stop_loss, take_profit
		FROM data.scan_picks
		WHERE run_id = $1
		ORDER BY rank
	`

	rows, err := r.db.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("query picks: %w", err)
	}
	defer rows.Close()

	return scanPicks(rows)
}

// PicksByDate retrieves the picks of the latest run on the given date.
func (r *Repository) PicksByDate(ctx context.Context, date time.Time) ([]screener.Pick, error) {
	query := `
		SELECT instrument_id, name, trade_date, close_price, change_pct, volume,
			matched_strategies, strategy_count, avg_score, stop_loss, take_profit
		FROM data.scan_picks
		WHERE run_id = (SELECT MAX(id) FROM data.scan_runs WHERE run_date = $1)
		ORDER BY rank
	`

	rows, err := r.db.Query(ctx, query, date)
	if err != nil {
		return nil, fmt.Errorf("query picks by date: %w", err)
	}
	defer rows.Close()

	return scanPicks(rows)
}

func scanPicks(rows pgx.Rows) ([]screener.Pick, error) {
	var picks []screener.Pick
	for rows.Next() {
		var p screener.Pick
		if err := rows.Scan(
			&p.InstrumentID, &p.Name, &p.Date, &p.Close, &p.ChangePct, &p.Volume,
			&p.MatchedStrategies, &p.StrategyCount, &p.AvgScore, &p.StopLoss, &p.TakeProfit,
		); err != nil {
			return nil, fmt.Errorf("scan pick: %w", err)
		}
		picks = append(picks, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return picks, nil
}

// SaveConfigSnapshot persists a strategy config snapshot for audit. A
// snapshot with an already recorded hash is kept as is.
func (r *Repository) SaveConfigSnapshot(ctx context.Context, snap *strategyconfig.Snapshot) error {
	query := `
		INSERT INTO data.config_snapshots (
			config_id, config_hash, config_yaml, created_at
		) VALUES ($1, $2, $3, $4)
		ON CONFLICT (config_hash) DO NOTHING
	`

	_, err := r.db.Exec(ctx, query,
		snap.ConfigID, snap.ConfigHash, snap.ConfigYAML, snap.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert config snapshot: %w", err)
	}

	return nil
}

// GetConfigSnapshot retrieves a config snapshot by hash. Returns nil when
// no snapshot with that hash was recorded.
func (r *Repository) GetConfigSnapshot(ctx context.Context, hash string) (*strategyconfig.Snapshot, error) {
	query := `
		SELECT config_id, config_hash, config_yaml, created_at
		FROM data.config_snapshots
		WHERE config_hash = $1
	`

	var snap strategyconfig.Snapshot
	err := r.db.QueryRow(ctx, query, hash).Scan(
		&snap.ConfigID, &snap.ConfigHash, &snap.ConfigYAML, &snap.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("query config snapshot: %w", err)
	}

	return &snap, nil
}
