package main

import (
	"context"
	"errors"
	"net/http"
	"os"

	"golang.org/x/sync/errgroup"

	"wallet/internal/backend"
	"wallet/internal/cli"
	apphttp "wallet/internal/http"
	"wallet/internal/ledger"
	"wallet/internal/log"
	"wallet/internal/taxonomy"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}

	result, err := backend.NewFactory(logger).CreateBackend(context.Background(), backendCfg)
	if err != nil {
		logger.Error("Failed to create backend", log.FieldError, err, log.FieldBackend, cfg.DataBackend)
		os.Exit(1)
	}

	categories := taxonomy.Load(cfg.Categories, cfg.CategoriesFile)
	walletLedger, err := ledger.Open(context.Background(), result.Store, ledger.Options{
		DefaultBalance: cfg.DefaultBalanceMoney(),
		Categories:     categories,
		Logger:         logger,
	})
	if err != nil {
		logger.Error("Failed to open wallet", log.FieldError, err)
		_ = result.Cleanup()
		os.Exit(1)
	}

	srv := apphttp.NewServer(apphttp.Options{
		Addr:           ":" + cfg.Port,
		Ledger:         walletLedger,
		Categories:     categories.Names(),
		CurrencySymbol: cfg.CurrencySymbol,
		AllowedOrigins: cfg.AllowedOrigins,
		Logger:         logger,

		RequestsPerMinute: cfg.RateLimit,
	})

	ctx, done := cli.GracefulShutdown(logger, cfg.ShutdownTimeout, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
	})

	g, gctx := errgroup.WithContext(ctx)

	if result.Publisher != nil {
		walletLedger.Subscribe(gctx, result.Publisher)
		g.Go(func() error { return result.Publisher.Run(gctx) })
	}

	g.Go(func() error {
		logger.Info("Starting wallet server",
			"port", cfg.Port,
			log.FieldBackend, cfg.DataBackend,
			"categories", categories.Len())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		_ = srv.Shutdown(context.Background())
		_ = result.Cleanup()
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	if err := result.Cleanup(); err != nil {
		logger.Error("Backend cleanup failed", log.FieldError, err)
	}
	logger.Info("Server stopped gracefully")
}
