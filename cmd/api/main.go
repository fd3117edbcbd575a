package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
	"go.temporal.io/sdk/client"
	sdklog "go.temporal.io/sdk/log"

	"github.com/samirrijal/geodrop/internal/adapters/engine"
	"github.com/samirrijal/geodrop/internal/adapters/http"
	natsadapter "github.com/samirrijal/geodrop/internal/adapters/nats"
	"github.com/samirrijal/geodrop/internal/adapters/postgres"
	temporaladapter "github.com/samirrijal/geodrop/internal/adapters/temporal"
	"github.com/samirrijal/geodrop/internal/adapters/valkey"
	"github.com/samirrijal/geodrop/internal/core/ports"
	"github.com/samirrijal/geodrop/internal/core/usecases"
	"github.com/samirrijal/geodrop/internal/pkg/config"
	"github.com/samirrijal/geodrop/internal/pkg/logging"
	"github.com/samirrijal/geodrop/internal/pkg/telemetry"
)

func main() {
	// A local .env is optional; real deployments inject the environment.
	_ = godotenv.Load()

	cfg, err := config.Load("geodrop-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	// Structured logging
	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}
	logging.Setup(logLevel, "json")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	// Database
	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()
	go db.ReportPoolStats(ctx, 15*time.Second)

	deps := &http.Dependencies{DB: db}

	// Cache and claim lock
	var (
		cacheSvc ports.CacheService
		locker   ports.ClaimLocker
	)
	cache, err := valkey.New(cfg.Valkey.Addr)
	if err != nil {
		slog.Warn("valkey unavailable, claims are deduplicated in-process only", "error", err)
	} else {
		defer cache.Close()
		cacheSvc = cache
		locker = cache.Locker()
		deps.Cache = cache
	}

	// NATS
	var events ports.EventPublisher
	pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats unavailable, claim events are not published", "error", err)
	} else {
		defer pub.Close()
		events = pub
	}

	// Separate connection for the WebSocket relay
	if natsConn, err := natsadapter.RawConn(cfg.NATS.URL); err != nil {
		slog.Warn("nats ws conn unavailable", "error", err)
	} else {
		defer natsConn.Close()
		deps.Feed = natsadapter.NewFeed(natsConn)
	}

	// Minter
	minter, closeMinter, err := newMinter(cfg)
	if err != nil {
		log.Fatalf("minter: %v", err)
	}
	defer closeMinter()
	if err := minter.Ready(); err != nil {
		// Not fatal: claims fail closed and /v1/ready reports it.
		slog.Error("minter is not configured", "backend", cfg.Minter.Backend, "error", err)
	}

	// Use cases
	assetSvc := usecases.NewAssetService(postgres.NewAssetRepo(db), cacheSvc)
	deps.Assets = assetSvc
	deps.Eligibility = usecases.NewEligibilityService(assetSvc, cfg.Hint.Policy())
	deps.Claims = usecases.NewClaimService(assetSvc, minter, locker, events, usecases.ClaimConfig{
		Policy:      cfg.Claim.Policy(),
		MintTimeout: cfg.Claim.MintTimeout,
	})

	slog.Info("claim policy",
		"claim_radius", cfg.Claim.Policy().String(),
		"hint_radius", cfg.Hint.Policy().String(),
		"minter", cfg.Minter.Backend,
	)

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    1024 * 1024, // 1 MB max request body
		AppName:      "GeoDrop API",
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     "*",
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept",
		AllowCredentials: false,
		MaxAge:           3600,
	}))

	http.SetupRoutes(app, deps)

	// Graceful shutdown
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())

	// In-flight claims get the mint timeout to finish so a granted claim is
	// not cut off mid-mint.
	grace := cfg.Claim.MintTimeout + 5*time.Second
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), grace)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("server stopped")
}

// newMinter builds the configured minting backend. The engine backend calls
// the engine directly; the temporal backend hands each mint to a workflow
// run by cmd/minter.
func newMinter(cfg *config.Config) (ports.Minter, func(), error) {
	switch cfg.Minter.Backend {
	case config.MinterTemporal:
		c, err := client.Dial(client.Options{
			HostPort:  cfg.Temporal.HostPort,
			Namespace: cfg.Temporal.Namespace,
			Logger:    sdklog.NewStructuredLogger(slog.Default()),
		})
		if err != nil {
			return nil, nil, fmt.Errorf("temporal client: %w", err)
		}
		// The worker mints with the same engine settings; checking them here
		// makes claims fail closed before a workflow starts.
		minter := temporaladapter.NewMinter(c, cfg.Temporal.TaskQueue, cfg.Claim.MintTimeout, engine.New(engineConfig(cfg)))
		return minter, c.Close, nil
	default:
		return engine.New(engineConfig(cfg)), func() {}, nil
	}
}

func engineConfig(cfg *config.Config) engine.Config {
	return engine.Config{
		URL:             cfg.Engine.URL,
		AccessToken:     cfg.Engine.AccessToken,
		BackendWallet:   cfg.Engine.BackendWallet,
		Chain:           cfg.Engine.Chain,
		ContractAddress: cfg.Engine.ContractAddress,
		Timeout:         cfg.Engine.RequestTimeout,
	}
}
