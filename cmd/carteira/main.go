package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"carteira/internal/cache"
	"carteira/internal/cli"
	"carteira/internal/fx"
	apphttp "carteira/internal/http"
	"carteira/internal/log"
	"carteira/internal/services"
)

type pinger interface {
	Ping(ctx context.Context) error
}

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)

	res, _, bcfg := cli.InitBackend(context.Background(), logger, cfg)

	opts := []services.Option{
		services.WithPublisher(res.Publisher),
		services.WithLogger(logger),
	}
	budgets := services.NewBudgets(res.Store, opts...)
	rates := fx.NewService(cfg.FXRatesURL, cfg.FXTTL, fx.WithLogger(logger))

	caches := cache.NewManager(logger)
	caches.Register(rates.Cache())
	caches.StartCleanup(cfg.FXTTL)

	ready := func(ctx context.Context) error {
		if p, ok := res.Store.(pinger); ok {
			return p.Ping(ctx)
		}
		return nil
	}

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Services{
		Ledger:        services.NewLedger(res.Store, opts...),
		Wallets:       services.NewWallets(res.Store, opts...),
		Obligations:   services.NewObligations(res.Store, opts...),
		Budgets:       budgets,
		Goals:         services.NewGoals(res.Store, opts...),
		Notifications: services.NewNotifications(res.Store, budgets, opts...),
		Importer:      services.NewImporter(res.Store, opts...),
		Categories:    services.NewCategories(res.Store, opts...),
		FX:            rates,
	}, apphttp.Options{
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		TrustedProxies:     cfg.TrustedProxies,
		Logger:             logger,
		Ready:              ready,
	})

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		if err := caches.Stop(ctx); err != nil {
			logger.Warn("Cache sweeper did not stop in time", log.FieldError, err)
		}
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", log.FieldError, err)
		}
	})

	logger.Info("Starting carteira server",
		"port", cfg.Port,
		"backend", bcfg.Type.String(),
		"events", res.Broker != nil)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
