// Package screener runs the screening pipeline: load series, compute
// indicators, execute strategies, rank the survivors.
package screener

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/wonny/picker/internal/indicator"
	"github.com/wonny/picker/internal/market"
	"github.com/wonny/picker/internal/registry"
	"github.com/wonny/picker/internal/strategy"
	"github.com/wonny/picker/pkg/logger"
)

// SeriesProvider hands the engine one instrument's price history. A nil
// series with a nil error means the instrument has no data and is skipped.
type SeriesProvider interface {
	GetSeries(ctx context.Context, instrumentID string, asOf time.Time) (*market.Series, error)
}

const (
	// DefaultMinBars is the shortest history worth evaluating.
	DefaultMinBars = 10
	// DefaultWorkers bounds the per-instrument pipeline concurrency.
	DefaultWorkers = 4
)

// Options tune one scan run.
type Options struct {
	MinBars int
	Workers int
	// OnProgress, when set, is called after each instrument finishes.
	// It runs on the collection goroutine, never concurrently.
	OnProgress func(done, total int)
}

// Status classifies a scan outcome.
type Status string

const (
	StatusOK            Status = "ok"
	StatusEmptyUniverse Status = "empty_universe"
	StatusNoStrategies  Status = "no_strategies"
	StatusCanceled      Status = "canceled"
)

// Pick is the output record for one instrument that passed at least one
// strategy. Every field is populated before the pick is emitted.
type Pick struct {
	InstrumentID      string    `json:"instrument_id"`
	Name              string    `json:"name"`
	Date              time.Time `json:"date"`
	Close             float64   `json:"close"`
	ChangePct         float64   `json:"change_pct"`
	Volume            float64   `json:"volume"`
	MatchedStrategies []string  `json:"matched_strategies"`
	StrategyCount     int       `json:"strategy_count"`
	AvgScore          float64   `json:"avg_score"`
	StopLoss          float64   `json:"stop_loss"`
	TakeProfit        float64   `json:"take_profit"`
}

// Result is one scan run's ranked picks plus run accounting.
type Result struct {
	Status    Status    `json:"status"`
	Date      time.Time `json:"date"`
	Picks     []Pick    `json:"picks"`
	Evaluated int       `json:"evaluated"`
	Skipped   int       `json:"skipped"`
	Failed    int       `json:"failed"`
}

// Engine screens an instrument universe against the registered strategies.
// It holds no mutable state between runs.
type Engine struct {
	provider SeriesProvider
	registry *registry.Registry
	logger   *logger.Logger
}

// New creates a screening engine.
func New(provider SeriesProvider, reg *registry.Registry, log *logger.Logger) *Engine {
	return &Engine{
		provider: provider,
		registry: reg,
		logger:   log.WithField("module", "screener"),
	}
}

// outcome is one instrument's contribution to a scan.
type outcome struct {
	instrumentID string
	pick         *Pick
	skipped      bool
	err          error
}

// Scan evaluates the universe as of the given date and returns picks
// sorted by (strategy_count desc, avg_score desc, instrument_id asc).
// Cancellation aborts between instruments; already-collected picks are
// returned sorted alongside the context error.
func (e *Engine) Scan(ctx context.Context, universe []market.Instrument, asOf time.Time, opts Options) (*Result, error) {
	if opts.MinBars <= 0 {
		opts.MinBars = DefaultMinBars
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}

	res := &Result{Status: StatusOK, Date: asOf, Picks: make([]Pick, 0)}

	if len(universe) == 0 {
		e.logger.Warn("Scan requested with empty universe")
		res.Status = StatusEmptyUniverse
		return res, nil
	}

	enabled := e.registry.Enabled()
	if len(enabled) == 0 {
		e.logger.Warn("Scan requested with no enabled strategies")
		res.Status = StatusNoStrategies
		return res, nil
	}
	names := make([]string, 0, len(enabled))
	for _, d := range enabled {
		names = append(names, d.Name)
	}

	e.logger.WithFields(map[string]interface{}{
		"universe":   len(universe),
		"strategies": names,
		"as_of":      asOf.Format("2006-01-02"),
		"workers":    opts.Workers,
	}).Info("Starting scan")

	jobCh := make(chan market.Instrument, len(universe))
	outCh := make(chan outcome, len(universe))

	var wg sync.WaitGroup
	for i := 0; i < opts.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			e.worker(ctx, workerID, names, asOf, opts.MinBars, jobCh, outCh)
		}(i)
	}

	for _, inst := range universe {
		jobCh <- inst
	}
	close(jobCh)

	go func() {
		wg.Wait()
		close(outCh)
	}()

	done := 0
	for out := range outCh {
		done++
		switch {
		case out.err != nil:
			res.Failed++
		case out.skipped:
			res.Skipped++
		default:
			res.Evaluated++
			if out.pick != nil {
				res.Picks = append(res.Picks, *out.pick)
			}
		}
		if opts.OnProgress != nil {
			opts.OnProgress(done, len(universe))
		}
	}

	sortPicks(res.Picks)

	if err := ctx.Err(); err != nil {
		res.Status = StatusCanceled
		e.logger.WithFields(map[string]interface{}{
			"processed": done,
			"universe":  len(universe),
		}).Warn("Scan canceled")
		return res, err
	}

	e.logger.WithFields(map[string]interface{}{
		"picked":    len(res.Picks),
		"evaluated": res.Evaluated,
		"skipped":   res.Skipped,
		"failed":    res.Failed,
	}).Info("Scan completed")

	return res, nil
}

// worker drains the job channel, one full pipeline per instrument.
func (e *Engine) worker(ctx context.Context, workerID int, names []string, asOf time.Time, minBars int, jobCh <-chan market.Instrument, outCh chan<- outcome) {
	for inst := range jobCh {
		select {
		case <-ctx.Done():
			return
		default:
		}

		pick, skipped, err := e.evaluate(ctx, inst, asOf, names, minBars)
		if err != nil {
			e.logger.WithError(err).WithFields(map[string]interface{}{
				"worker":        workerID,
				"instrument_id": inst.ID,
			}).Error("Failed to evaluate instrument")
		}
		outCh <- outcome{instrumentID: inst.ID, pick: pick, skipped: skipped, err: err}
	}
}

// evaluate runs the per-instrument pipeline. Panics from any stage are
// converted to an error so one bad instrument never stops the scan.
func (e *Engine) evaluate(ctx context.Context, inst market.Instrument, asOf time.Time, names []string, minBars int) (pick *Pick, skipped bool, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			pick, skipped, err = nil, false, fmt.Errorf("evaluate %s: %v", inst.ID, rec)
		}
	}()

	series, err := e.provider.GetSeries(ctx, inst.ID, asOf)
	if err != nil {
		return nil, false, fmt.Errorf("load series: %w", err)
	}
	if series == nil || series.Len() == 0 {
		return nil, true, nil
	}
	if series.Len() < minBars {
		e.logger.WithFields(map[string]interface{}{
			"instrument_id": inst.ID,
			"bars":          series.Len(),
		}).Debug("Series too short, skipping")
		return nil, true, nil
	}

	set, warnings := indicator.Compute(series)
	for _, w := range warnings {
		e.logger.WithFields(map[string]interface{}{
			"instrument_id": inst.ID,
			"indicator":     w.Indicator,
			"message":       w.Message,
		}).Debug("Indicator fell back to default")
	}

	view := strategy.NewView(series, set)
	results := e.registry.ExecuteAll(view, names...)

	return e.buildPick(inst, series, results), false, nil
}

// buildPick synthesizes the pick record from the passed results, or nil
// when none passed.
func (e *Engine) buildPick(inst market.Instrument, series *market.Series, results []strategy.Result) *Pick {
	var passed []strategy.Result
	for _, r := range results {
		if r.Passed {
			passed = append(passed, r)
		}
	}
	if len(passed) == 0 {
		return nil
	}

	matched := make([]string, 0, len(passed))
	total := 0.0
	for _, r := range passed {
		matched = append(matched, r.StrategyName)
		total += r.Score
	}

	stopLoss := strategy.DefaultStopLoss
	takeProfit := strategy.DefaultTakeProfit
	if v, ok := passed[0].Signals[strategy.SignalStopLoss]; ok {
		stopLoss = v
	}
	if v, ok := passed[0].Signals[strategy.SignalTakeProfit]; ok {
		takeProfit = v
	}

	name := inst.Name
	if name == "" {
		name = inst.ID
	}
	last := series.Last()

	return &Pick{
		InstrumentID:      inst.ID,
		Name:              name,
		Date:              series.LastDate(),
		Close:             last.Close,
		ChangePct:         series.ChangePct(),
		Volume:            last.Volume,
		MatchedStrategies: matched,
		StrategyCount:     len(passed),
		AvgScore:          round2(total / float64(len(passed))),
		StopLoss:          stopLoss,
		TakeProfit:        takeProfit,
	}
}

// sortPicks orders by strategy count, then average score, then id. The
// final key is total, so concurrent collection order never shows through.
func sortPicks(picks []Pick) {
	sort.Slice(picks, func(i, j int) bool {
		if picks[i].StrategyCount != picks[j].StrategyCount {
			return picks[i].StrategyCount > picks[j].StrategyCount
		}
		if picks[i].AvgScore != picks[j].AvgScore {
			return picks[i].AvgScore > picks[j].AvgScore
		}
		return picks[i].InstrumentID < picks[j].InstrumentID
	})
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
