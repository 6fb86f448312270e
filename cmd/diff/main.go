// Command diff compares two snapshot CSV exports and writes the field-level
// diff report.
package main

import (
	"flag"
	"log/slog"
	"os"

	"fidcetl/internal/config"
	"fidcetl/internal/differ"
	"fidcetl/internal/exporter"
	"fidcetl/internal/infrastructure"
)

func main() {
	configFile := flag.String("config", "", "optional YAML config file")
	beforePath := flag.String("before", "", "older snapshot CSV (required)")
	afterPath := flag.String("after", "", "newer snapshot CSV (required)")
	outDir := flag.String("out", "", "override the output directory")
	flag.Parse()

	if *beforePath == "" || *afterPath == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		slog.Error("configuration invalid", "error", err)
		os.Exit(1)
	}
	if *outDir != "" {
		cfg.Export.OutputDir = *outDir
	}
	logger := infrastructure.InitializeLogger(cfg.Logging)

	before, err := exporter.ReadSnapshotFile(*beforePath)
	if err != nil {
		logger.Error("before snapshot unreadable", slog.String("error", err.Error()))
		os.Exit(1)
	}
	after, err := exporter.ReadSnapshotFile(*afterPath)
	if err != nil {
		logger.Error("after snapshot unreadable", slog.String("error", err.Error()))
		os.Exit(1)
	}

	report := differ.New(cfg.Diff.Tolerance, logger).Compare(before, after)

	path, err := exporter.New(cfg.Export, logger).WriteDiff(report)
	if err != nil {
		logger.Error("diff export failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("diff written",
		slog.String("path", path),
		slog.Int("field_diffs", len(report.Rows)),
		slog.Int("added", len(report.Added)),
		slog.Int("removed", len(report.Removed)))

	if !report.Empty() {
		os.Exit(3)
	}
}
