package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgallion1/docjournal/internal/api"
	"github.com/dgallion1/docjournal/internal/config"
	"github.com/dgallion1/docjournal/internal/pipeline"
	"github.com/dgallion1/docjournal/internal/sink"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	if err := cfg.ValidateServer(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	snk := sink.New(sink.Settings{
		OutputDir:     cfg.OutputDir,
		PublishURL:    cfg.PublishURL,
		PublishAPIKey: cfg.PublishAPIKey,
	})
	if snk == nil {
		log.Warn("no OUTPUT_DIR or PUBLISH_URL set, results are kept in memory only")
	}

	// Initialize pipeline.
	orch := pipeline.NewOrchestrator(cfg, snk, log)
	orch.Start(ctx)

	// Initialize HTTP server.
	srv := api.NewServer(orch, log, cfg)

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

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)

		orch.Stop()
	}()

	log.Info("starting docjournal",
		"port", cfg.Port,
		"workers", cfg.WorkerCount,
		"output_dir", cfg.OutputDir,
		"publish_url", cfg.PublishURL,
	)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}
