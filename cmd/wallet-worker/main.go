package main

import (
	"context"
	"errors"
	"os"

	"golang.org/x/sync/errgroup"

	"wallet/internal/amqp"
	"wallet/internal/cli"
	"wallet/internal/config"
	"wallet/internal/log"
	"wallet/internal/sheets"
	gsheet "wallet/internal/sheets/google"
	mem "wallet/internal/sheets/memory"
	"wallet/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentWorker)
	cfg := cli.LoadAndValidateConfig(logger)

	logger.Info("Starting wallet-worker")

	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required by the worker")
		os.Exit(1)
	}

	mirror, err := newMirror(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize expense mirror", log.FieldError, err)
		os.Exit(1)
	}

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger.WithComponent(log.ComponentAMQP))
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}

	ctx, done := cli.GracefulShutdown(logger, cfg.ShutdownTimeout, func(context.Context) {
		if err := client.Close(); err != nil {
			logger.Warn("AMQP close failed", log.FieldError, err)
		}
	})

	w := worker.NewMirrorWorker(mirror, logger)
	if n, err := w.StartupCheck(ctx); err != nil {
		// The next message replaces the whole sheet anyway.
		logger.Error("Startup mirror check failed", log.FieldError, err)
	} else if n >= 0 {
		logger.Info("Mirror reachable", log.FieldExpenses, n)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := client.ConsumeExpenseListUpdates(gctx, w.HandleExpenseListUpdated)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	if err := g.Wait(); err != nil {
		logger.Error("Message consumption failed", log.FieldError, err)
		_ = client.Close()
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped")
}

// newMirror picks Google Sheets when credentials are configured and an
// in-process mirror otherwise, so the worker can run locally.
func newMirror(ctx context.Context, cfg *config.Config, logger *log.Logger) (sheets.ExpenseMirror, error) {
	if !cfg.SheetsConfigured() {
		logger.Warn("Google Sheets not configured, mirroring to memory only")
		return mem.New(), nil
	}
	client, err := gsheet.New(ctx, gsheet.Config{
		SpreadsheetID:      cfg.GoogleSpreadsheetID,
		SheetName:          cfg.GoogleSheetName,
		ServiceAccountJSON: cfg.GoogleServiceAccountJSON,
		ServiceAccountFile: cfg.GoogleServiceAccountFile,
		OAuthClientJSON:    cfg.GoogleOAuthClientJSON,
		OAuthClientFile:    cfg.GoogleOAuthClientFile,
		OAuthTokenJSON:     cfg.GoogleOAuthTokenJSON,
		OAuthTokenFile:     cfg.GoogleOAuthTokenFile,
	}, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("Google Sheets mirror initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	return client, nil
}
