package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"household/internal/amqp"
	"household/internal/cache"
	"household/internal/cli"
	apphttp "household/internal/http"
	applog "household/internal/log"
	"household/internal/services"
)

func main() {
	cli.LoadEnvFile()
	cfg, logger := cli.LoadAndValidateConfig()

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	var opts []services.Option
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		c, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			// Exports still work inline without the broker.
			logger.WithComponent(applog.ComponentAMQP).Warn("AMQP unavailable, exports run synchronously",
				applog.FieldError, err.Error())
		} else {
			amqpClient = c
			defer amqpClient.Close()
			opts = append(opts, services.WithPublisher(amqpClient))
			logger.WithComponent(applog.ComponentAMQP).Info("AMQP publisher ready",
				"exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	}

	opts = append(opts, services.WithConfinedDestinations())
	svc, agg := cli.NewLedgerService(context.Background(), logger, cfg, repo, opts...)

	caches := cache.NewManager()
	caches.Register(agg.Cache())
	caches.StartCleanup(time.Minute)

	srv := apphttp.NewServer(":"+cfg.Port, svc, apphttp.Options{
		Logger: logger,
		Ready:  repo.Ping,
	})

	ctx, done := cli.GracefulShutdown(logger, cfg.ShutdownTimeout, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", applog.FieldError, err.Error())
		}
		caches.Stop()
		logger.Info("Final request stats", "stats", srv.Stats())
	})

	logger.Info("Starting household server",
		"port", cfg.Port,
		"db", cfg.SQLiteDBPath,
		"async_exports", amqpClient != nil,
		applog.FieldOperation, applog.OpStartup)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", applog.FieldError, err.Error(), "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
