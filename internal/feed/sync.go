package feed

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/wonny/picker/internal/market"
	"github.com/wonny/picker/internal/store"
	"github.com/wonny/picker/pkg/logger"
)

const (
	defaultSyncWorkers = 4
	defaultHistoryDays = 120

	// Extra bars requested past the stored gap so reruns on the same day
	// and adjusted closes get refreshed.
	barFetchPad = 5
)

// SyncStore is the persistence surface the syncer writes through.
type SyncStore interface {
	UpsertInstruments(ctx context.Context, instruments []store.Instrument) error
	DeactivateMissing(ctx context.Context, seen []string) (int64, error)
	ActiveInstrumentIDs(ctx context.Context) ([]string, error)
	GetInstrument(ctx context.Context, id string) (*store.Instrument, error)
	LatestBarDate(ctx context.Context, instrumentID string) (time.Time, error)
	UpsertBars(ctx context.Context, instrumentID string, bars []market.Bar) error
}

// Syncer orchestrates data acquisition from the quote gateway into the
// store.
type Syncer struct {
	client *Client
	store  SyncStore
	logger *logger.Logger
}

// SyncConfig holds sync parameters.
type SyncConfig struct {
	Workers     int
	HistoryDays int
	OnProgress  func(done, total int)
}

// SyncResult represents the outcome for one instrument.
type SyncResult struct {
	InstrumentID string
	BarCount     int
	Error        error
}

// NewSyncer creates a new Syncer instance
func NewSyncer(client *Client, st SyncStore, log *logger.Logger) *Syncer {
	return &Syncer{
		client: client,
		store:  st,
		logger: log.WithField("module", "sync"),
	}
}

// SyncInstruments refreshes the instrument universe from the exchange
// stock list. Instruments that dropped off the list are deactivated.
// Returns the number of listed instruments.
func (s *Syncer) SyncInstruments(ctx context.Context) (int, error) {
	listings, err := s.client.FetchListings(ctx)
	if err != nil {
		return 0, fmt.Errorf("fetch listings: %w", err)
	}
	if len(listings) == 0 {
		return 0, fmt.Errorf("empty listing response")
	}

	instruments := make([]store.Instrument, 0, len(listings))
	ids := make([]string, 0, len(listings))
	for _, l := range listings {
		instruments = append(instruments, store.Instrument{
			ID:       l.Code,
			Name:     l.Name,
			Exchange: l.Exchange,
			Active:   true,
		})
		ids = append(ids, l.Code)
	}

	if err := s.store.UpsertInstruments(ctx, instruments); err != nil {
		return 0, fmt.Errorf("save instruments: %w", err)
	}

	deactivated, err := s.store.DeactivateMissing(ctx, ids)
	if err != nil {
		return 0, fmt.Errorf("deactivate missing: %w", err)
	}

	s.logger.WithFields(map[string]interface{}{
		"listed":      len(instruments),
		"deactivated": deactivated,
	}).Info("Instrument universe synced")

	return len(instruments), nil
}

// SyncBars fetches daily bars for all active instruments. Instruments
// already up to date only request the gap since their last stored bar.
func (s *Syncer) SyncBars(ctx context.Context, cfg SyncConfig) ([]SyncResult, error) {
	ids, err := s.store.ActiveInstrumentIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("load universe: %w", err)
	}
	if len(ids) == 0 {
		s.logger.Warn("No active instruments to sync")
		return nil, nil
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = defaultSyncWorkers
	}

	s.logger.WithFields(map[string]interface{}{
		"instrument_count": len(ids),
		"workers":          workers,
	}).Info("Starting bar sync")

	jobCh := make(chan string, len(ids))
	resultCh := make(chan SyncResult, len(ids))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.barWorker(ctx, workerID, cfg.HistoryDays, jobCh, resultCh)
		}(i)
	}

	for _, id := range ids {
		jobCh <- id
	}
	close(jobCh)

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	results := make([]SyncResult, 0, len(ids))
	successCount := 0
	failCount := 0
	for result := range resultCh {
		results = append(results, result)
		if result.Error != nil {
			failCount++
		} else {
			successCount++
		}
		if cfg.OnProgress != nil {
			cfg.OnProgress(len(results), len(ids))
		}
	}

	s.logger.WithFields(map[string]interface{}{
		"success": successCount,
		"failed":  failCount,
		"total":   len(results),
	}).Info("Bar sync completed")

	return results, nil
}

// barWorker fetches and stores bars for instruments off the job channel.
func (s *Syncer) barWorker(ctx context.Context, workerID int, historyDays int, jobCh <-chan string, resultCh chan<- SyncResult) {
	for id := range jobCh {
		select {
		case <-ctx.Done():
			resultCh <- SyncResult{InstrumentID: id, Error: ctx.Err()}
			return
		default:
		}

		latest, err := s.store.LatestBarDate(ctx, id)
		if err != nil {
			s.logger.WithError(err).WithFields(map[string]interface{}{
				"worker":        workerID,
				"instrument_id": id,
			}).Error("Failed to read latest bar date")
			resultCh <- SyncResult{InstrumentID: id, Error: err}
			continue
		}

		klines, err := s.client.FetchKlines(ctx, id, barLimit(latest, historyDays))
		if err != nil {
			s.logger.WithError(err).WithFields(map[string]interface{}{
				"worker":        workerID,
				"instrument_id": id,
			}).Error("Failed to fetch klines")
			resultCh <- SyncResult{InstrumentID: id, Error: err}
			continue
		}

		if err := s.store.UpsertBars(ctx, id, klines.Bars); err != nil {
			s.logger.WithError(err).WithFields(map[string]interface{}{
				"worker":        workerID,
				"instrument_id": id,
			}).Error("Failed to save bars")
			resultCh <- SyncResult{InstrumentID: id, BarCount: len(klines.Bars), Error: err}
			continue
		}

		s.logger.WithFields(map[string]interface{}{
			"worker":        workerID,
			"instrument_id": id,
			"count":         len(klines.Bars),
		}).Debug("Synced bars")

		resultCh <- SyncResult{InstrumentID: id, BarCount: len(klines.Bars)}
	}
}

// barLimit chooses how many bars to request. A fresh instrument needs the
// full window, an instrument synced recently only the gap since its last
// stored bar.
func barLimit(latest time.Time, historyDays int) int {
	if historyDays <= 0 {
		historyDays = defaultHistoryDays
	}
	if latest.IsZero() {
		return historyDays
	}
	gap := int(time.Since(latest).Hours()/24) + barFetchPad
	if gap < historyDays {
		return gap
	}
	return historyDays
}

// SyncProfiles enriches active instruments with scraped company profile
// data. Profile failures are logged and counted, not fatal.
func (s *Syncer) SyncProfiles(ctx context.Context, cfg SyncConfig) ([]SyncResult, error) {
	ids, err := s.store.ActiveInstrumentIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("load universe: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = defaultSyncWorkers
	}

	s.logger.WithFields(map[string]interface{}{
		"instrument_count": len(ids),
		"workers":          workers,
	}).Info("Starting profile sync")

	jobCh := make(chan string, len(ids))
	resultCh := make(chan SyncResult, len(ids))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.profileWorker(ctx, jobCh, resultCh)
		}()
	}

	for _, id := range ids {
		jobCh <- id
	}
	close(jobCh)

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	results := make([]SyncResult, 0, len(ids))
	successCount := 0
	failCount := 0
	for result := range resultCh {
		results = append(results, result)
		if result.Error != nil {
			failCount++
		} else {
			successCount++
		}
		if cfg.OnProgress != nil {
			cfg.OnProgress(len(results), len(ids))
		}
	}

	s.logger.WithFields(map[string]interface{}{
		"success": successCount,
		"failed":  failCount,
	}).Info("Profile sync completed")

	return results, nil
}

// profileWorker scrapes and stores profiles for instruments off the job
// channel.
func (s *Syncer) profileWorker(ctx context.Context, jobCh <-chan string, resultCh chan<- SyncResult) {
	for id := range jobCh {
		select {
		case <-ctx.Done():
			resultCh <- SyncResult{InstrumentID: id, Error: ctx.Err()}
			return
		default:
		}

		inst, err := s.store.GetInstrument(ctx, id)
		if err != nil {
			resultCh <- SyncResult{InstrumentID: id, Error: err}
			continue
		}
		if inst == nil {
			resultCh <- SyncResult{InstrumentID: id, Error: fmt.Errorf("instrument %s not stored", id)}
			continue
		}

		profile, err := s.client.FetchProfile(ctx, id)
		if err != nil {
			s.logger.WithError(err).WithField("instrument_id", id).Warn("Failed to fetch profile")
			resultCh <- SyncResult{InstrumentID: id, Error: err}
			continue
		}

		if profile.Industry != "" {
			inst.Industry = profile.Industry
		}
		if inst.Name == "" && profile.Name != "" {
			inst.Name = profile.Name
		}

		if err := s.store.UpsertInstruments(ctx, []store.Instrument{*inst}); err != nil {
			resultCh <- SyncResult{InstrumentID: id, Error: err}
			continue
		}

		resultCh <- SyncResult{InstrumentID: id}
	}
}

// SyncAll refreshes the universe, then the bars. Bar failures for single
// instruments do not fail the pass unless nothing succeeded.
func (s *Syncer) SyncAll(ctx context.Context, cfg SyncConfig) error {
	if _, err := s.SyncInstruments(ctx); err != nil {
		return err
	}

	results, err := s.SyncBars(ctx, cfg)
	if err != nil {
		return err
	}

	failCount := 0
	for _, r := range results {
		if r.Error != nil {
			failCount++
		}
	}
	if len(results) > 0 && failCount == len(results) {
		return fmt.Errorf("bar sync failed for all %d instruments", failCount)
	}

	return nil
}
