// Command etl runs one extraction over an input list of funds and writes
// the snapshot, QA issue, error and workbook exports.
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
)

func main() {
	configFile := flag.String("config", "", "optional YAML config file")
	inputFile := flag.String("input", "funds.csv", "input list (CSV: cnpj,name)")
	outDir := flag.String("out", "", "override the output directory")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		slog.Error("configuration invalid", "error", err)
		os.Exit(1)
	}
	if *outDir != "" {
		cfg.Export.OutputDir = *outDir
	}

	logger := infrastructure.InitializeLogger(cfg.Logging)
	_, provider, err := infrastructure.InitializeMetrics()
	if err != nil {
		logger.Error("metrics initialization failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	entries, err := pipeline.ReadEntriesFile(*inputFile)
	if err != nil {
		logger.Error("input list unreadable", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if len(entries) == 0 {
		logger.Error("input list is empty", slog.String("path", *inputFile))
		os.Exit(1)
	}

	runner, err := pipeline.New(cfg, fetch.NewClient(cfg.Fetch, logger), logger)
	if err != nil {
		logger.Error("pipeline initialization failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	svc := services.NewRunService(runner,
		exporter.New(cfg.Export, logger),
		differ.New(cfg.Diff.Tolerance, logger),
		entries, nil, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, paths, err := svc.RunSync(ctx, entries)
	provider.Shutdown(context.Background()) //nolint:errcheck

	if result == nil {
		logger.Error("run failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if err != nil {
		logger.Warn("run incomplete", slog.String("error", err.Error()))
	}

	logger.Info("exports written",
		slog.String("snapshot", paths.Snapshot),
		slog.String("issues", paths.Issues),
		slog.String("errors", paths.Errors),
		slog.String("workbook", paths.Workbook))
}
