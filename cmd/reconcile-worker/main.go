package main

import (
	"context"
	"time"

	"carteira/internal/cli"
	"carteira/internal/log"
	"carteira/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentReconcile)
	logger.Info("Starting reconcile-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	res, _, _ := cli.InitBackend(context.Background(), logger, cfg)

	opts := []services.Option{
		services.WithPublisher(res.Publisher),
		services.WithLogger(logger),
	}
	reconciler := services.NewReconciler(res.Store, services.NewWallets(res.Store, opts...), opts...)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(context.Context) {
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", log.FieldError, err)
		}
	})

	logger.Info("Drift scan configured", "interval", cfg.ReconcileInterval)
	scan := func() {
		if _, err := reconciler.Scan(ctx); err != nil && ctx.Err() == nil {
			logger.Error("Drift scan failed", log.FieldError, err)
		}
	}

	scan()

	ticker := time.NewTicker(cfg.ReconcileInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			cli.WaitForShutdown(ctx, done)
			logger.Info("Reconcile-worker stopped")
			return
		case <-ticker.C:
			scan()
		}
	}
}
