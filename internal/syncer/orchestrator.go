// Package syncer composes the planner, the inventory probe, the remote
// catalog, and the fetcher into the synchronization engine: one bounded
// worker pool per symbol, strictly sequential across symbols. Per-bucket
// failures never abort a symbol or a run; partial failure is visible only
// through the outcome counts and the run statistics.
package syncer

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/halcyondata/visionsync/internal/dataset"
	"github.com/halcyondata/visionsync/internal/fetch"
	"github.com/halcyondata/visionsync/internal/inventory"
	"github.com/halcyondata/visionsync/internal/plan"
	"github.com/halcyondata/visionsync/internal/stats"
)

// platformFloor is the earliest date the remote service has data for any
// symbol. Requests before it are pointless.
var platformFloor = time.Date(2017, 1, 1, 0, 0, 0, 0, time.UTC)

// FloorFinder resolves a symbol's remote availability floor.
type FloorFinder interface {
	Floor(ctx context.Context, symbol string) time.Time
}

// Fetcher downloads one bucket.
type Fetcher interface {
	Fetch(ctx context.Context, b dataset.Bucket) fetch.Outcome
}

// Options control one synchronization pass.
type Options struct {
	// DateStart is the first date to consider. Zero means the platform floor.
	DateStart time.Time
	// DateEnd is the last date to consider. Zero means yesterday; values in
	// the future are clamped to yesterday since today's data is incomplete.
	DateEnd time.Time
	// UpdateExisting re-fetches buckets that already exist locally.
	UpdateExisting bool
}

// GranularityResult counts outcomes for one granularity of one symbol.
type GranularityResult struct {
	Planned  int `json:"planned"`
	Fetched  int `json:"fetched"`
	Saved    int `json:"saved"`
	NotFound int `json:"not_found"`
	Skipped  int `json:"skipped"`
	Failed   int `json:"failed"`
}

// SymbolResult is the per-symbol summary of one pass.
type SymbolResult struct {
	Symbol  string            `json:"symbol"`
	Monthly GranularityResult `json:"monthly"`
	Daily   GranularityResult `json:"daily"`
}

// RunResult is the whole-run summary.
type RunResult struct {
	Symbols []SymbolResult `json:"symbols"`
	Stats   stats.Snapshot `json:"stats"`
}

// Orchestrator synchronizes the local archive tree with the remote bucket.
type Orchestrator struct {
	ds             dataset.Dataset
	probe          inventory.Probe
	floors         FloorFinder
	fetcher        Fetcher
	run            *stats.Run
	maxConcurrency int
	now            func() time.Time
	log            zerolog.Logger
}

// New creates an orchestrator. maxConcurrency <= 0 selects the dataset's
// default policy (1 for trades, 5 otherwise).
func New(ds dataset.Dataset, probe inventory.Probe, floors FloorFinder, fetcher Fetcher, run *stats.Run, maxConcurrency int, log zerolog.Logger) *Orchestrator {
	if maxConcurrency <= 0 {
		maxConcurrency = ds.DefaultConcurrency()
	}
	return &Orchestrator{
		ds:             ds,
		probe:          probe,
		floors:         floors,
		fetcher:        fetcher,
		run:            run,
		maxConcurrency: maxConcurrency,
		now:            time.Now,
		log:            log.With().Str("component", "syncer").Logger(),
	}
}

// SetClock replaces the time source. Test hook.
func (o *Orchestrator) SetClock(now func() time.Time) { o.now = now }

// SyncSymbol synchronizes one symbol over the requested interval. The
// interval is clamped to [platform floor ∨ remote floor, yesterday], then
// split at the first day of the end month: everything before the boundary
// is fetched as monthly archives, the tail (or, for daily-only data types,
// the whole range) as daily archives.
//
// "Yesterday" is computed from wall-clock UTC at call time, so in a run
// spanning midnight later symbols see a later end date than earlier ones.
// This matches the long-standing behavior and is deliberate.
func (o *Orchestrator) SyncSymbol(ctx context.Context, symbol string, opts Options) SymbolResult {
	result := SymbolResult{Symbol: symbol}

	start := opts.DateStart
	if start.IsZero() || start.Before(platformFloor) {
		start = platformFloor
	}
	yesterday := o.today().AddDate(0, 0, -1)
	end := opts.DateEnd
	if end.IsZero() || end.After(yesterday) {
		end = yesterday
	}

	floor := o.floors.Floor(ctx, symbol)
	if start.Before(floor) {
		o.log.Debug().
			Str("symbol", symbol).
			Time("floor", floor).
			Msg("Clamping start date to remote floor")
		start = floor
	}

	if start.After(end) {
		o.log.Debug().Str("symbol", symbol).Msg("Nothing to sync for symbol")
		return result
	}

	boundary := time.Date(end.Year(), end.Month(), 1, 0, 0, 0, 0, time.UTC)

	if o.ds.HasMonthlyArchives() && boundary.AddDate(0, 0, -1).After(start) {
		result.Monthly = o.syncGranularity(ctx, symbol, start, boundary.AddDate(0, 0, -1), dataset.Monthly, opts.UpdateExisting)
	}

	// The clamped start can fall inside the end month; daily planning must
	// never reach back before it, or every earlier date is a guaranteed 404.
	dailyStart := boundary
	if !o.ds.HasMonthlyArchives() || dailyStart.Before(start) {
		dailyStart = start
	}
	result.Daily = o.syncGranularity(ctx, symbol, dailyStart, end, dataset.Daily, opts.UpdateExisting)

	o.log.Info().
		Str("symbol", symbol).
		Int("months_saved", result.Monthly.Saved).
		Int("days_saved", result.Daily.Saved).
		Int("failed", result.Monthly.Failed+result.Daily.Failed).
		Msg("Symbol synchronized")
	return result
}

// syncGranularity plans the buckets for one granularity, subtracts the
// local inventory, and drains the remainder through the worker pool.
func (o *Orchestrator) syncGranularity(ctx context.Context, symbol string, start, end time.Time, g dataset.Granularity, updateExisting bool) GranularityResult {
	var result GranularityResult

	dates, err := plan.Range(start, end, g)
	if err != nil {
		// Unreachable after clamping; guard anyway.
		o.log.Error().Err(err).Str("symbol", symbol).Msg("Invalid date range")
		return result
	}
	result.Planned = len(dates)

	if !updateExisting {
		existing := make(map[time.Time]bool)
		for _, d := range o.probe.Dates(symbol, g) {
			existing[d] = true
		}
		filtered := dates[:0]
		for _, d := range dates {
			if !existing[d] {
				filtered = append(filtered, d)
			}
		}
		dates = filtered
	}

	result.Fetched = len(dates)
	if len(dates) == 0 {
		o.log.Debug().
			Str("symbol", symbol).
			Str("granularity", g.String()).
			Msg("No new dates to download")
		return result
	}

	o.log.Debug().
		Str("symbol", symbol).
		Str("granularity", g.String()).
		Int("pending", len(dates)).
		Msg("Dispatching downloads")

	for outcome := range o.pool(ctx, symbol, g, dates) {
		switch outcome.Status {
		case fetch.Saved:
			result.Saved++
		case fetch.NotFound:
			result.NotFound++
		case fetch.Skipped:
			result.Skipped++
		case fetch.Failed:
			result.Failed++
		}
	}
	return result
}

// pool fans the dates out over a bounded worker pool and streams outcomes
// back as they complete. Completion order is unconstrained.
func (o *Orchestrator) pool(ctx context.Context, symbol string, g dataset.Granularity, dates []time.Time) <-chan fetch.Outcome {
	workers := o.maxConcurrency
	if len(dates) < workers {
		workers = len(dates)
	}

	jobs := make(chan dataset.Bucket)
	outcomes := make(chan fetch.Outcome)

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for b := range jobs {
				outcomes <- o.fetcher.Fetch(ctx, b)
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, d := range dates {
			select {
			case jobs <- dataset.Bucket{Dataset: o.ds, Symbol: symbol, Date: d, Granularity: g}:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(outcomes)
	}()

	return outcomes
}

// SyncRun synchronizes all symbols sequentially, then renders the run
// statistics report. One symbol's pool fully drains before the next starts;
// the simplicity of the sequential outer loop is deliberate.
func (o *Orchestrator) SyncRun(ctx context.Context, symbols []string, opts Options) RunResult {
	o.run.Reset()
	o.log.Info().
		Int("symbols", len(symbols)).
		Str("asset_class", o.ds.AssetClass).
		Str("data_type", o.ds.DataType).
		Msg("Starting synchronization run")

	result := RunResult{Symbols: make([]SymbolResult, 0, len(symbols))}
	for i, symbol := range symbols {
		if ctx.Err() != nil {
			o.log.Warn().Int("completed", i).Msg("Run cancelled")
			break
		}
		o.log.Info().
			Str("symbol", symbol).
			Int("index", i+1).
			Int("total", len(symbols)).
			Msg("Processing symbol")
		result.Symbols = append(result.Symbols, o.SyncSymbol(ctx, symbol, opts))
	}

	o.run.Report()
	result.Stats = o.run.Snapshot()
	return result
}

// PruneRedundantDaily deletes daily files whose whole month is covered by a
// monthly archive. Deletion failures are logged and skipped, never fatal.
// Returns the number of files deleted per symbol.
func (o *Orchestrator) PruneRedundantDaily() map[string]int {
	o.log.Info().Msg("Pruning daily files covered by monthly archives")
	deleted := make(map[string]int)

	for _, symbol := range o.probe.Symbols(dataset.Daily) {
		monthly := make(map[time.Time]bool)
		for _, d := range o.probe.Dates(symbol, dataset.Monthly) {
			monthly[d] = true
		}

		for _, day := range o.probe.Dates(symbol, dataset.Daily) {
			monthStart := time.Date(day.Year(), day.Month(), 1, 0, 0, 0, 0, time.UTC)
			if !monthly[monthStart] {
				continue
			}
			if err := o.probe.Remove(symbol, dataset.Daily, day); err != nil {
				o.log.Warn().
					Err(err).
					Str("symbol", symbol).
					Time("date", day).
					Msg("Unable to delete redundant daily file")
				continue
			}
			deleted[symbol]++
		}
	}

	o.log.Info().Int("symbols", len(deleted)).Msg("Prune completed")
	return deleted
}

func (o *Orchestrator) today() time.Time {
	now := o.now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}
