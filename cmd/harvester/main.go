// Package main implements the Harvest harvester service.
// The harvester fetches records from configured sources, validates and scores
// them, adapts its pacing to source health, and serves run snapshots via HTTP API.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tidemark/harvest/cmd/harvester/config"
	"github.com/tidemark/harvest/cmd/harvester/logger"
	"github.com/tidemark/harvest/cmd/harvester/metrics"
	"github.com/tidemark/harvest/cmd/harvester/router"
	"github.com/tidemark/harvest/cmd/harvester/rules"
	srcfactory "github.com/tidemark/harvest/cmd/harvester/sources"
	"github.com/tidemark/harvest/cmd/harvester/store"
	"github.com/tidemark/harvest/pkg/engine"
	"github.com/tidemark/harvest/pkg/httpx"
	"github.com/tidemark/harvest/pkg/report"
	"github.com/tidemark/harvest/pkg/strategy"
)

func main() {
	cfg := config.ParseFlags()

	logger := logger.New(cfg)
	slog.SetDefault(logger)

	logger.Info("starting harvest harvester",
		"version", "v0.1.0",
		"run", cfg.Run,
		"max_records", cfg.MaxRecords,
	)

	srcs := srcfactory.New(cfg, logger)
	validationRules := rules.New(cfg, logger)
	snapshotStore := store.New(cfg, logger)
	m := metrics.New()

	policy := strategy.Policy{
		QualityThreshold: cfg.QualityThreshold,
		SuccessFloor:     cfg.SuccessFloor,
	}

	reporter := &report.FileReporter{Dir: cfg.ReportDir}

	var eng *engine.Engine
	hooks := engine.Hooks{
		OnFetch: func(source string, records int, duration time.Duration, err error) {
			status := "success"
			if err != nil {
				status = "error"
			}
			m.RecordSourceRequest(source, status)
			m.ObserveSourceFetch(source, duration.Seconds())
		},
		OnCycle: func(stats engine.Stats, batchScore float64, action strategy.Action) {
			m.RecordCycle()
			m.SetBatchQuality(batchScore)
			m.SetDelayMultiplier(stats.DelayMultiplier)
			m.SetDatasetRecords(len(eng.Dataset()))
		},
		OnFallback: func(source string, stats engine.Stats) {
			m.RecordFallback(source)
		},
	}

	eng, err := engine.New(
		engine.Config{
			Run:           cfg.Run,
			MaxRecords:    cfg.MaxRecords,
			BaseDelay:     cfg.BaseDelay,
			MaxRecordAge:  cfg.MaxRecordAge,
			FallbackAfter: cfg.FallbackAfter,
		},
		srcs,
		validationRules,
		policy,
		reporter,
		snapshotStore,
		logger,
		hooks,
	)
	if err != nil {
		logger.Error("failed to create engine", "error", err)
		os.Exit(1)
	}

	staleAfter := time.Hour // Snapshots come from finished runs; flag old ones
	mux := router.SetupRoutes(snapshotStore, staleAfter, logger)
	httpServer := httpx.NewServer(cfg.Listen, mux, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runErr := make(chan error, 1)
	go func() {
		summary, err := eng.Run(ctx)
		if err == nil {
			logger.Info("collection run finished",
				"records", summary.RecordsCollected,
				"success_rate", summary.SuccessRate,
				"mean_quality", summary.MeanQuality,
			)
			m.SetDatasetRecords(summary.RecordsCollected)
		}
		runErr <- err
	}()

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- httpServer.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	exitCode := 0
	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
		if err := <-runErr; err != nil && err != context.Canceled {
			logger.Error("collection run failed", "error", err)
			exitCode = 1
		}
	case err := <-runErr:
		if err != nil {
			logger.Error("collection run failed", "error", err)
			exitCode = 1
			break
		}
		// Keep serving snapshots and metrics until asked to stop.
		select {
		case sig := <-sigCh:
			logger.Info("received shutdown signal", "signal", sig)
		case err := <-serverErr:
			if err != nil {
				logger.Error("server failed", "error", err)
				exitCode = 1
			}
		}
	case err := <-serverErr:
		if err != nil {
			logger.Error("server failed", "error", err)
			exitCode = 1
		}
		cancel()
		<-runErr
	}

	logger.Info("shutting down")
	cancel()

	if err := httpServer.Stop(10 * time.Second); err != nil {
		logger.Error("server shutdown failed", "error", err)
		exitCode = 1
	}

	if closer, ok := snapshotStore.(interface{ Close() error }); ok {
		closer.Close()
	}

	logger.Info("shutdown complete")
	os.Exit(exitCode)
}
