package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/samvad-hq/samvad-feed-importer/internal/app"
	"github.com/samvad-hq/samvad-feed-importer/internal/config"
	"github.com/samvad-hq/samvad-feed-importer/internal/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "importer failed: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.Init(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Close()

	log.InfoObj("importer starting", "config", cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	importer, err := app.NewImporter(ctx, cfg, log)
	if err != nil {
		log.ErrorObj("failed to initialize importer", "error", err.Error())
		return err
	}

	if err := importer.Run(ctx); err != nil {
		return fmt.Errorf("importer run: %w", err)
	}
	return nil
}
