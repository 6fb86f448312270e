package exporter

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"fidcetl/pkg/contracts/domain"
)

// utf8BOM makes spreadsheet tools detect UTF-8 in exported CSV files.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// indicatorColumns and flagColumns extend the schema columns in every
// snapshot export. Order is fixed and shared with the reader.
var indicatorColumns = []string{
	"npl_ratio",
	"liquidity_ratio",
	"concentration_ratio",
	"nonperforming_total",
}

var flagColumns = []string{
	"flag_asset_zero",
	"flag_liquidity_divergence",
	"flag_empty_portfolio_with_default",
	"flag_npl_divergence",
	"flag_no_position",
}

// formatAmount renders an amount in the pt-BR convention used across the
// exports: decimal comma, no thousands separators, empty for absent.
func formatAmount(a domain.Amount) string {
	if !a.Valid {
		return ""
	}
	return strings.ReplaceAll(strconv.FormatFloat(a.Value, 'f', -1, 64), ".", ",")
}

// parseExportedAmount is the inverse of formatAmount.
func parseExportedAmount(s string) (domain.Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return domain.Absent, nil
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
	if err != nil {
		return domain.Absent, fmt.Errorf("parse amount %q: %w", s, err)
	}
	return domain.AmountOf(v), nil
}

func formatFlag(v bool) string {
	if v {
		return "true"
	}
	return "false"
}

// newLocaleWriter starts a semicolon-separated CSV stream with a BOM.
func newLocaleWriter(w io.Writer) (*csv.Writer, error) {
	if _, err := w.Write(utf8BOM); err != nil {
		return nil, fmt.Errorf("write BOM: %w", err)
	}
	cw := csv.NewWriter(w)
	cw.Comma = ';'
	return cw, nil
}

// snapshotHeader is the column list of the snapshot export: entity key and
// name, the schema fields in canonical order, indicators, flags, then the
// document id.
func snapshotHeader() []string {
	schema := domain.Schema()
	header := make([]string, 0, len(schema)+len(indicatorColumns)+len(flagColumns)+3)
	header = append(header, "key", "name")
	for _, f := range schema {
		header = append(header, f.Name)
	}
	header = append(header, indicatorColumns...)
	header = append(header, flagColumns...)
	header = append(header, "document_id")
	return header
}

func snapshotRow(rec *domain.FundRecord) []string {
	schema := domain.Schema()
	row := make([]string, 0, len(schema)+len(indicatorColumns)+len(flagColumns)+3)
	row = append(row, rec.Key(), rec.ID.Name)
	for _, f := range schema {
		switch f.Kind {
		case domain.KindString:
			row = append(row, f.String(rec))
		case domain.KindAmount:
			row = append(row, formatAmount(f.Amount(rec)))
		}
	}
	row = append(row,
		formatAmount(rec.Indicators.NPLRatio),
		formatAmount(rec.Indicators.LiquidityRatio),
		formatAmount(rec.Indicators.ConcentrationRatio),
		formatAmount(rec.Indicators.NonperformingTotal),
		formatFlag(rec.Flags.AssetZero),
		formatFlag(rec.Flags.LiquidityDivergence),
		formatFlag(rec.Flags.EmptyPortfolioWithDefault),
		formatFlag(rec.Flags.NPLDivergence),
		formatFlag(rec.Flags.NoPosition),
		rec.DocumentID,
	)
	return row
}

// WriteSnapshotCSV streams the snapshot to w in the locale CSV format.
func WriteSnapshotCSV(w io.Writer, snapshot *domain.Snapshot) error {
	cw, err := newLocaleWriter(w)
	if err != nil {
		return err
	}
	if err := cw.Write(snapshotHeader()); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i := range snapshot.Records {
		if err := cw.Write(snapshotRow(&snapshot.Records[i])); err != nil {
			return fmt.Errorf("write record %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteIssuesCSV writes only the flagged records, same columns as the
// snapshot export.
func WriteIssuesCSV(w io.Writer, issues []domain.FundRecord) error {
	return WriteSnapshotCSV(w, &domain.Snapshot{Records: issues})
}

// WriteErrorsCSV writes the per-entity failures of a run.
func WriteErrorsCSV(w io.Writer, errs []domain.RunError) error {
	cw, err := newLocaleWriter(w)
	if err != nil {
		return err
	}
	if err := cw.Write([]string{"key", "kind", "message"}); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, e := range errs {
		if err := cw.Write([]string{e.Key, string(e.Kind), e.Message}); err != nil {
			return fmt.Errorf("write error row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteDiffCSV writes a diff report: added/removed keys first, then the
// field-level rows.
func WriteDiffCSV(w io.Writer, report *domain.DiffReport) error {
	cw, err := newLocaleWriter(w)
	if err != nil {
		return err
	}
	if err := cw.Write([]string{"key", "field", "before", "after", "delta"}); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, key := range report.Added {
		if err := cw.Write([]string{key, "(entity)", "", "added", ""}); err != nil {
			return fmt.Errorf("write added row: %w", err)
		}
	}
	for _, key := range report.Removed {
		if err := cw.Write([]string{key, "(entity)", "removed", "", ""}); err != nil {
			return fmt.Errorf("write removed row: %w", err)
		}
	}
	for _, row := range report.Rows {
		rec := []string{row.Key, row.Field, row.Before, row.After, formatAmount(row.Delta)}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write diff row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
