package main

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"household/internal/amqp"
	"household/internal/cli"
	applog "household/internal/log"
	"household/internal/services"
	"household/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	cfg, logger := cli.LoadAndValidateConfig()
	logger = logger.WithComponent(applog.ComponentWorker)

	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the export worker")
		os.Exit(1)
	}

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", applog.FieldError, err.Error())
		os.Exit(1)
	}
	defer amqpClient.Close()

	ctx, done := cli.GracefulShutdown(logger, cfg.ShutdownTimeout, nil)

	// Ledger writes happen in the server process; keep summaries short-lived.
	cfg.CacheTTL = time.Second
	svc, _ := cli.NewLedgerService(ctx, logger, cfg, repo, services.WithConfinedDestinations())
	exportWorker := worker.NewExportWorker(svc)

	logger.Info("Starting export worker", "queue", cfg.AMQPQueue, applog.FieldOperation, applog.OpStartup)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return amqpClient.ConsumeReportExport(gctx, exportWorker.HandleExportMessage)
	})
	g.Go(func() error {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				exported, failed, dropped := exportWorker.Stats()
				logger.Info("Export worker stats", "exported", exported, "failed", failed, "dropped", dropped)
			}
		}
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Export worker stopped", applog.FieldError, err.Error())
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	exported, failed, dropped := exportWorker.Stats()
	logger.Info("Export worker shutdown complete", "exported", exported, "failed", failed, "dropped", dropped)
}
