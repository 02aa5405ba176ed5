package scheduler

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/halcyondata/visionsync/internal/symbols"
	"github.com/halcyondata/visionsync/internal/syncer"
)

// SyncEngine is the part of the orchestrator the job drives.
type SyncEngine interface {
	SyncRun(ctx context.Context, syms []string, opts syncer.Options) syncer.RunResult
	PruneRedundantDaily() map[string]int
}

// SymbolSource lists the symbols to synchronize.
type SymbolSource interface {
	List(ctx context.Context, f symbols.Filter) ([]string, error)
}

// SyncJob runs one full synchronization pass: discover symbols, sync them
// all, then prune daily files made redundant by new monthly archives. A
// pass over many symbols can outlast the cron interval, so overlapping
// triggers are skipped rather than queued.
type SyncJob struct {
	engine SyncEngine
	source SymbolSource
	filter symbols.Filter
	opts   syncer.Options
	prune  bool
	busy   atomic.Bool
	// onResult, when set, receives each completed run's summary.
	onResult func(syncer.RunResult)
	log      zerolog.Logger
}

// NewSyncJob creates the scheduled synchronization job.
func NewSyncJob(engine SyncEngine, source SymbolSource, filter symbols.Filter, opts syncer.Options, prune bool, log zerolog.Logger) *SyncJob {
	return &SyncJob{
		engine: engine,
		source: source,
		filter: filter,
		opts:   opts,
		prune:  prune,
		log:    log.With().Str("component", "sync_job").Logger(),
	}
}

// OnResult registers a callback invoked with each completed run's summary.
func (j *SyncJob) OnResult(fn func(syncer.RunResult)) { j.onResult = fn }

// Name implements Job.
func (j *SyncJob) Name() string { return "sync" }

// Run implements Job.
func (j *SyncJob) Run() error {
	if !j.busy.CompareAndSwap(false, true) {
		j.log.Warn().Msg("Previous sync still running, skipping this trigger")
		return nil
	}
	defer j.busy.Store(false)

	ctx := context.Background()
	syms, err := j.source.List(ctx, j.filter)
	if err != nil {
		return fmt.Errorf("failed to list symbols: %w", err)
	}
	if len(syms) == 0 {
		j.log.Warn().Msg("Symbol list is empty, nothing to sync")
		return nil
	}

	result := j.engine.SyncRun(ctx, syms, j.opts)
	if j.onResult != nil {
		j.onResult(result)
	}

	if j.prune {
		j.engine.PruneRedundantDaily()
	}
	return nil
}
