package main

import (
	"context"
	"time"

	"obligo/internal/cli"
	"obligo/internal/ledger"
	"obligo/internal/log"
	"obligo/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger("obligo-worker")

	logger.Info("Starting obligo-worker")

	cfg := cli.LoadAndValidateConfig(logger)

	store := cli.OpenStore(logger, cfg)
	sink, closeSink := cli.OpenSink(logger, cfg)

	ledgerOpts := []ledger.Option{ledger.WithLeaseTTL(cfg.LeaseTTL)}
	scanner := services.NewDueScanner(sink, []*ledger.Ledger{
		ledger.New(ledger.KindBills, store, sink, ledgerOpts...),
		ledger.New(ledger.KindPolicies, store, sink, ledgerOpts...),
		ledger.New(ledger.KindGoals, store, sink,
			append(ledgerOpts, ledger.WithFutureDueRequired())...),
	})

	logger.Info("Due scanner configured",
		"interval", cfg.ScanInterval,
		"backend", cfg.DataBackend)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func() {
		closeSink()
		if err := store.Close(); err != nil {
			logger.Warn("Failed to close store", "error", err)
		}
	})

	// Run an initial scan on startup, then tick.
	runScan(ctx, logger, scanner)

	ticker := time.NewTicker(cfg.ScanInterval)
	defer ticker.Stop()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				runScan(ctx, logger, scanner)
			}
		}
	}()

	cli.WaitForShutdown(ctx, done)
}

func runScan(ctx context.Context, logger *log.Logger, scanner *services.DueScanner) {
	count, err := scanner.Scan(ctx)
	if err != nil {
		logger.Error("Due scan failed", "error", err)
		return
	}
	logger.Info("Due scan complete", "past_due", count)
}
