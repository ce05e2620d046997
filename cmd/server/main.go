package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgallion1/hansardgest/internal/api"
	"github.com/dgallion1/hansardgest/internal/config"
	"github.com/dgallion1/hansardgest/internal/extract"
	"github.com/dgallion1/hansardgest/internal/observe"
	"github.com/dgallion1/hansardgest/internal/pipeline"
	"github.com/dgallion1/hansardgest/internal/source"
	"github.com/dgallion1/hansardgest/internal/store"
	"github.com/dgallion1/hansardgest/internal/store/postgres"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry.
	shutdownTelemetry, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceVersion: version})
	if err != nil {
		log.Error("telemetry init failed", "error", err)
		os.Exit(1)
	}

	// Extraction engine with operator date corrections.
	var engineOpts []extract.Option
	if cfg.OverridesFile != "" {
		overrides, err := config.LoadOverrides(cfg.OverridesFile)
		if err != nil {
			log.Error("load overrides failed", "error", err)
			os.Exit(1)
		}
		engineOpts = append(engineOpts, extract.WithDateOverrides(overrides.DateOverrides))
		log.Info("loaded date overrides", "count", len(overrides.DateOverrides))
	}
	engine := extract.New(engineOpts...)

	// Persistence.
	var st store.Store
	if cfg.DatabaseURL != "" {
		pg, err := postgres.NewStore(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Error("database connect failed", "error", err)
			os.Exit(1)
		}
		st = pg
	} else {
		log.Warn("DATABASE_URL not set, keeping documents in memory")
		st = store.NewMemory()
	}

	// Initialize pipeline.
	fetcher := source.NewFetcher()
	orch := pipeline.NewOrchestrator(cfg, engine, st, fetcher, observe.DefaultMetrics(), log)
	orch.Start(ctx)

	// Initialize HTTP server.
	srv := api.NewServer(orch, fetcher, log, cfg)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		orch.Stop()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)

		st.Close()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			log.Warn("telemetry shutdown failed", "error", err)
		}
	}()

	log.Info("starting hansardgest", "port", cfg.Port, "version", version, "workers", cfg.WorkerCount)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}
