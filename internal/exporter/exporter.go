// Package exporter renders run results into the audit deliverables: locale
// CSV files (semicolon separated, decimal comma, UTF-8 BOM) and a
// multi-sheet Excel workbook. It also reads snapshot CSVs back, which is
// how historical snapshots enter a diff.
package exporter

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"fidcetl/internal/config"
	"fidcetl/internal/qa"
	"fidcetl/pkg/contracts/domain"
)

// Exported file names inside the output directory.
const (
	SnapshotFile = "fidc_snapshot.csv"
	IssuesFile   = "fidc_issues.csv"
	ErrorsFile   = "fidc_errors.csv"
	DiffFile     = "fidc_diff.csv"
	WorkbookFile = "fidc_report.xlsx"
)

// Exporter writes deliverables into the configured output directory.
type Exporter struct {
	outputDir string
	logger    *slog.Logger
}

// New creates an Exporter.
func New(cfg config.ExportConfig, logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{outputDir: cfg.OutputDir, logger: logger}
}

// Paths lists the files one run export produced.
type Paths struct {
	Snapshot string `json:"snapshot"`
	Issues   string `json:"issues"`
	Errors   string `json:"errors"`
	Workbook string `json:"workbook"`
}

// WriteRun exports a run result: snapshot CSV, QA issues CSV, errors CSV
// and the Excel workbook.
func (e *Exporter) WriteRun(result *domain.RunResult) (Paths, error) {
	if err := os.MkdirAll(e.outputDir, 0o755); err != nil {
		return Paths{}, fmt.Errorf("create output directory: %w", err)
	}

	paths := Paths{
		Snapshot: filepath.Join(e.outputDir, SnapshotFile),
		Issues:   filepath.Join(e.outputDir, IssuesFile),
		Errors:   filepath.Join(e.outputDir, ErrorsFile),
		Workbook: filepath.Join(e.outputDir, WorkbookFile),
	}

	if err := e.writeFile(paths.Snapshot, func(f *os.File) error {
		return WriteSnapshotCSV(f, &result.Snapshot)
	}); err != nil {
		return Paths{}, err
	}
	if err := e.writeFile(paths.Issues, func(f *os.File) error {
		return WriteIssuesCSV(f, qa.Issues(result.Snapshot.Records))
	}); err != nil {
		return Paths{}, err
	}
	if err := e.writeFile(paths.Errors, func(f *os.File) error {
		return WriteErrorsCSV(f, result.Errors)
	}); err != nil {
		return Paths{}, err
	}
	if err := e.writeWorkbook(paths.Workbook, result); err != nil {
		return Paths{}, err
	}

	e.logger.Info("run exported",
		slog.String("dir", e.outputDir),
		slog.Int("records", len(result.Snapshot.Records)),
		slog.Int("errors", len(result.Errors)))
	return paths, nil
}

// WriteDiff exports a diff report CSV and returns its path.
func (e *Exporter) WriteDiff(report *domain.DiffReport) (string, error) {
	if err := os.MkdirAll(e.outputDir, 0o755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}
	path := filepath.Join(e.outputDir, DiffFile)
	if err := e.writeFile(path, func(f *os.File) error {
		return WriteDiffCSV(f, report)
	}); err != nil {
		return "", err
	}
	return path, nil
}

func (e *Exporter) writeFile(path string, write func(*os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", filepath.Base(path), err)
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", filepath.Base(path), err)
	}
	return nil
}

// writeWorkbook renders the Excel report: one sheet each for the snapshot,
// the flagged records, the per-entity errors and the parse warnings.
// Amounts become real numeric cells; absent values become empty cells.
func (e *Exporter) writeWorkbook(path string, result *domain.RunResult) error {
	wb := excelize.NewFile()
	defer wb.Close()

	const mainSheet = "Snapshot"
	if err := wb.SetSheetName(wb.GetSheetName(0), mainSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	if err := writeRecordSheet(wb, mainSheet, result.Snapshot.Records); err != nil {
		return err
	}

	if _, err := wb.NewSheet("Issues"); err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	if err := writeRecordSheet(wb, "Issues", qa.Issues(result.Snapshot.Records)); err != nil {
		return err
	}

	if _, err := wb.NewSheet("Errors"); err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	if err := setRow(wb, "Errors", 1, []interface{}{"key", "kind", "message"}); err != nil {
		return err
	}
	for i, runErr := range result.Errors {
		row := []interface{}{runErr.Key, string(runErr.Kind), runErr.Message}
		if err := setRow(wb, "Errors", i+2, row); err != nil {
			return err
		}
	}

	if _, err := wb.NewSheet("Warnings"); err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	if err := setRow(wb, "Warnings", 1, []interface{}{"key", "field", "raw"}); err != nil {
		return err
	}
	for i, warning := range result.Warnings {
		row := []interface{}{warning.Key, warning.Field, warning.Raw}
		if err := setRow(wb, "Warnings", i+2, row); err != nil {
			return err
		}
	}

	if err := wb.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}

func writeRecordSheet(wb *excelize.File, sheet string, records []domain.FundRecord) error {
	header := snapshotHeader()
	cells := make([]interface{}, len(header))
	for i, name := range header {
		cells[i] = name
	}
	if err := setRow(wb, sheet, 1, cells); err != nil {
		return err
	}
	for i := range records {
		if err := setRow(wb, sheet, i+2, workbookRow(&records[i])); err != nil {
			return err
		}
	}
	return nil
}

func workbookRow(rec *domain.FundRecord) []interface{} {
	schema := domain.Schema()
	row := make([]interface{}, 0, len(schema)+len(indicatorColumns)+len(flagColumns)+3)
	row = append(row, rec.Key(), rec.ID.Name)
	for _, f := range schema {
		switch f.Kind {
		case domain.KindString:
			row = append(row, f.String(rec))
		case domain.KindAmount:
			row = append(row, amountCell(f.Amount(rec)))
		}
	}
	row = append(row,
		amountCell(rec.Indicators.NPLRatio),
		amountCell(rec.Indicators.LiquidityRatio),
		amountCell(rec.Indicators.ConcentrationRatio),
		amountCell(rec.Indicators.NonperformingTotal),
		rec.Flags.AssetZero,
		rec.Flags.LiquidityDivergence,
		rec.Flags.EmptyPortfolioWithDefault,
		rec.Flags.NPLDivergence,
		rec.Flags.NoPosition,
		rec.DocumentID,
	)
	return row
}

func amountCell(a domain.Amount) interface{} {
	if !a.Valid {
		return nil
	}
	return a.Value
}

func setRow(wb *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("cell name: %w", err)
	}
	if err := wb.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("write %s row %d: %w", sheet, row, err)
	}
	return nil
}
