package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"FeedIngestor/internal/app"
	"FeedIngestor/internal/config"
	"FeedIngestor/internal/logging"
)

func main() {
	mode := flag.String("mode", "serve", "serve | ingest | ingest-all")
	userID := flag.Uint("user", 0, "user id for -mode ingest (0 runs the general queries)")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()
	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("application init failed", "error", err)
		os.Exit(1)
	}

	err = run(ctx, application, *mode, *userID)
	if cerr := application.Close(); cerr != nil {
		logger.Warn("close application", "error", cerr)
	}
	if err != nil {
		logger.Error("application stopped", "mode", *mode, "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, application *app.Application, mode string, userID uint) error {
	switch mode {
	case "serve":
		return application.Serve(ctx)
	case "ingest":
		var user *uint
		if userID != 0 {
			user = &userID
		}
		_, err := application.IngestOnce(ctx, user)
		return err
	case "ingest-all":
		_, err := application.IngestAll(ctx)
		return err
	default:
		return fmt.Errorf("unknown mode %q", mode)
	}
}
