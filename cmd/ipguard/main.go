package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ipguard/internal/alert"
	"ipguard/internal/api"
	"ipguard/internal/config"
	"ipguard/internal/ingest"
	"ipguard/internal/logging"
	"ipguard/internal/publish"
	"ipguard/internal/scheduler"
	"ipguard/internal/storage"
)

const version = "0.1.0"

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "ipguard:", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to YAML or JSON config file")
	flag.Parse()

	cfg, err := config.Load(config.ResolvePath(*configPath))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := logging.NewLogger(cfg.LogLevel, cfg.LogFormat)
	logger.Info("starting ipguard",
		"version", version,
		"storage_driver", cfg.Storage.Driver,
		"model_path", cfg.Inference.ModelPath,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := storage.NewStore(cfg.Storage)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()
	if err := store.Init(ctx); err != nil {
		return fmt.Errorf("init store: %w", err)
	}

	publisher, err := publish.Connect(cfg.Broker, cfg.Publish, logger.With("component", "publish"))
	if err != nil {
		return fmt.Errorf("connect publisher: %w", err)
	}
	defer publisher.Close()

	history := alert.NewHistory(cfg.Alerts.StoreLimit)
	sched := scheduler.New(cfg, store, publisher, history, logger.With("component", "scheduler"))
	go sched.Run(ctx)

	ingestLogger := logger.With("component", "ingest")
	gateway := ingest.NewGateway(store, ingestLogger)
	ingest.StartKafka(ctx, cfg.Ingest.Kafka, gateway, ingestLogger)
	api.Start(ctx, cfg, sched, history, logger.With("component", "api"), version)

	// The consumer owns the broker connection for ingest. When it drops we
	// exit nonzero and let process supervision restart the service.
	consumer := ingest.NewConsumer(cfg, gateway, ingestLogger)
	consumerErr := make(chan error, 1)
	go func() { consumerErr <- consumer.Run(ctx) }()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		// Give the in-flight delivery a moment to resolve before the
		// deferred closes tear the connections down.
		select {
		case <-consumerErr:
		case <-time.After(5 * time.Second):
		}
		return nil
	case err := <-consumerErr:
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("consumer: %w", err)
		}
		return nil
	}
}
