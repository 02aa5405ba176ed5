// Package main is the entry point for visionsync, a bulk downloader that
// keeps a local tree of historical market-data archives in sync with the
// public Binance Vision bucket.
//
// Startup sequence:
//  1. Load configuration from environment variables (.env supported)
//  2. Initialize logging
//  3. Wire the sync engine: remote catalog, circuit breaker, statistics,
//     fetcher, orchestrator, symbol discovery
//  4. Start the status HTTP server
//  5. Run one sync pass, or start the cron scheduler when SYNC_SCHEDULE
//     is set, and wait for a shutdown signal
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/halcyondata/visionsync/internal/breaker"
	"github.com/halcyondata/visionsync/internal/catalog"
	"github.com/halcyondata/visionsync/internal/config"
	"github.com/halcyondata/visionsync/internal/fetch"
	"github.com/halcyondata/visionsync/internal/inventory"
	"github.com/halcyondata/visionsync/internal/scheduler"
	"github.com/halcyondata/visionsync/internal/server"
	"github.com/halcyondata/visionsync/internal/stats"
	"github.com/halcyondata/visionsync/internal/symbols"
	"github.com/halcyondata/visionsync/internal/syncer"
	"github.com/halcyondata/visionsync/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})

	log.Info().
		Str("asset_class", cfg.Dataset.AssetClass).
		Str("data_type", cfg.Dataset.DataType).
		Str("frequency", cfg.Dataset.Frequency).
		Str("data_dir", cfg.DataDir).
		Msg("Starting visionsync")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Sync engine wiring.
	maxConcurrency := cfg.MaxConcurrentDownloads
	if maxConcurrency <= 0 {
		maxConcurrency = cfg.Dataset.DefaultConcurrency()
	}

	run := stats.New(maxConcurrency, log)
	brk := breaker.New(breaker.DefaultThreshold, breaker.DefaultCooldown, log)
	probe := inventory.NewDirProbe(cfg.DataDir, cfg.Dataset, log)
	fetcher := fetch.New(cfg.DataDir, brk, run, log)

	lister, err := catalog.NewS3Lister(ctx, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize remote catalog client")
	}
	cat := catalog.New(lister, cfg.Dataset, log)

	engine := syncer.New(cfg.Dataset, probe, cat, fetcher, run, maxConcurrency, log)

	source := symbols.NewClient(cfg.Dataset, log)
	filter := symbols.Filter{
		Include:    cfg.Tickers,
		Exclude:    cfg.TickersExclude,
		QuoteAsset: cfg.QuoteAsset,
		Max:        cfg.MaxTickers,
	}
	opts := syncer.Options{
		DateStart:      cfg.DateStart,
		DateEnd:        cfg.DateEnd,
		UpdateExisting: cfg.UpdateExisting,
	}

	// Status API.
	srv := server.New(cfg.Port, run, brk, log)
	srv.Start()

	runPass := func() error {
		syms, err := source.List(ctx, filter)
		if err != nil {
			return err
		}
		result := engine.SyncRun(ctx, syms, opts)
		srv.SetLastResult(result)
		if cfg.PruneDaily {
			engine.PruneRedundantDaily()
		}
		return nil
	}

	if cfg.SyncSchedule == "" {
		// One-shot mode.
		if err := runPass(); err != nil {
			shutdownServer(srv, log)
			log.Fatal().Err(err).Msg("Sync run failed")
		}
		shutdownServer(srv, log)
		return
	}

	// Daemon mode: run on the configured cron schedule until signalled.
	sched := scheduler.New(log)
	job := scheduler.NewSyncJob(engine, source, filter, opts, cfg.PruneDaily, log)
	job.OnResult(srv.SetLastResult)
	if err := sched.AddJob(cfg.SyncSchedule, job); err != nil {
		log.Fatal().Err(err).Str("schedule", cfg.SyncSchedule).Msg("Invalid sync schedule")
	}
	sched.Start()

	// First pass immediately; subsequent ones follow the schedule.
	go func() {
		if err := sched.RunNow(job); err != nil {
			log.Error().Err(err).Msg("Initial sync run failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info().Str("signal", sig.String()).Msg("Shutting down")

	cancel()
	sched.Stop()
	shutdownServer(srv, log)
	log.Info().Msg("Shutdown complete")
}

func shutdownServer(srv *server.Server, log zerolog.Logger) {
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Status server shutdown failed")
	}
}
