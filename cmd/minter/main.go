package main

import (
	"log"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"go.temporal.io/sdk/client"
	sdklog "go.temporal.io/sdk/log"
	"go.temporal.io/sdk/worker"

	"github.com/samirrijal/geodrop/internal/adapters/engine"
	"github.com/samirrijal/geodrop/internal/pkg/config"
	"github.com/samirrijal/geodrop/internal/pkg/logging"
	"github.com/samirrijal/geodrop/internal/workflows"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load("geodrop-minter")
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}
	logging.Setup(logLevel, "json")

	c, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
		Logger:    sdklog.NewStructuredLogger(slog.Default()),
	})
	if err != nil {
		log.Fatalf("temporal client: %v", err)
	}
	defer c.Close()

	minter := engine.New(engine.Config{
		URL:             cfg.Engine.URL,
		AccessToken:     cfg.Engine.AccessToken,
		BackendWallet:   cfg.Engine.BackendWallet,
		Chain:           cfg.Engine.Chain,
		ContractAddress: cfg.Engine.ContractAddress,
		Timeout:         cfg.Engine.RequestTimeout,
	})
	if err := minter.Ready(); err != nil {
		// Activities fail with a non-retryable configuration error until fixed.
		slog.Error("engine is not configured", "error", err)
	}

	w := worker.New(c, cfg.Temporal.TaskQueue, worker.Options{})

	w.RegisterWorkflow(workflows.MintWorkflow)
	w.RegisterActivity(&workflows.MintActivities{Minter: minter})

	slog.Info("mint worker started", "task_queue", cfg.Temporal.TaskQueue)
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatalf("worker: %v", err)
	}
}
