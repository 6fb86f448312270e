// Command server runs the audit API: snapshot and QA issue access, run
// triggering, snapshot diffs, websocket progress and prometheus metrics.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"fidcetl/internal/config"
	"fidcetl/internal/differ"
	"fidcetl/internal/exporter"
	"fidcetl/internal/fetch"
	"fidcetl/internal/infrastructure"
	"fidcetl/internal/pipeline"
	"fidcetl/internal/services"
	transport "fidcetl/internal/transport/http"
	"fidcetl/internal/websocket"
)

func main() {
	configFile := flag.String("config", "", "optional YAML config file")
	inputFile := flag.String("input", "funds.csv", "input list (CSV: cnpj,name)")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		slog.Error("configuration invalid", "error", err)
		os.Exit(1)
	}
	logger := infrastructure.InitializeLogger(cfg.Logging)

	registry, provider, err := infrastructure.InitializeMetrics()
	if err != nil {
		logger.Error("metrics initialization failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	entries, err := pipeline.ReadEntriesFile(*inputFile)
	if err != nil {
		logger.Error("input list unreadable", slog.String("error", err.Error()))
		os.Exit(1)
	}

	hub := websocket.NewHub(logger)
	hub.Start()

	runner, err := pipeline.New(cfg, fetch.NewClient(cfg.Fetch, logger), logger,
		pipeline.WithProgress(func(ev pipeline.ProgressEvent) {
			hub.Broadcast(websocket.Message{Type: websocket.TypeProgress, Payload: ev})
		}))
	if err != nil {
		logger.Error("pipeline initialization failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	svc := services.NewRunService(runner,
		exporter.New(cfg.Export, logger),
		differ.New(cfg.Diff.Tolerance, logger),
		entries, hub, logger)

	server := transport.NewServer(cfg.Server, svc, hub, registry, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("server failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
	case <-ctx.Done():
		logger.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown incomplete", slog.String("error", err.Error()))
	}
	hub.Stop()
	provider.Shutdown(shutdownCtx) //nolint:errcheck
}
