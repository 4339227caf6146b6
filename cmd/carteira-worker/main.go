package main

import (
	"context"
	"errors"
	"os"
	"time"

	"carteira/internal/cli"
	"carteira/internal/log"
	"carteira/internal/services"
	"carteira/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentWorker)
	logger.Info("Starting carteira-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the worker")
		os.Exit(1)
	}

	res, factory, bcfg := cli.InitBackend(context.Background(), logger, cfg)
	if res.Broker == nil {
		logger.Error("Message broker unavailable, cannot consume ledger events")
		_ = res.Cleanup()
		os.Exit(1)
	}

	journal, err := factory.CreateJournal(context.Background(), bcfg)
	if err != nil {
		logger.Error("Failed to initialize Google Sheets journal", log.FieldError, err)
		_ = res.Cleanup()
		os.Exit(1)
	}
	if journal == nil {
		logger.Info("Google Sheets disabled - no GOOGLE_SPREADSHEET_ID provided")
	}

	opts := []services.Option{
		services.WithPublisher(res.Publisher),
		services.WithLogger(logger),
	}
	reconciler := services.NewReconciler(res.Store, services.NewWallets(res.Store, opts...), opts...)
	mirror := worker.NewMirrorWorker(res.Store, journal, reconciler, logger)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(context.Context) {
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", log.FieldError, err)
		}
	})

	logger.Info("Consuming ledger events",
		"exchange", cfg.AMQPExchange,
		"queue", cfg.AMQPQueue,
		"sheets", journal != nil)
	if err := res.Broker.ConsumeWithRetry(ctx, mirror.HandleEvent); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", log.FieldError, err)
		_ = res.Cleanup()
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped gracefully")
}
