package exporter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"fidcetl/pkg/contracts/domain"
)

// ReadSnapshotCSV loads a snapshot previously written by WriteSnapshotCSV.
// Columns are matched by header name, so exports from builds with fewer
// fields still load; unknown columns are ignored. Indicators and flags are
// restored when present.
func ReadSnapshotCSV(r io.Reader) (*domain.Snapshot, error) {
	buf, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	buf = bytes.TrimPrefix(buf, utf8BOM)

	cr := csv.NewReader(bytes.NewReader(buf))
	cr.Comma = ';'
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("snapshot file is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.TrimSpace(name)] = i
	}
	if _, ok := col["key"]; !ok {
		return nil, fmt.Errorf("snapshot header has no key column")
	}

	schema := domain.Schema()
	snapshot := &domain.Snapshot{}
	for line := 2; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read snapshot line %d: %w", line, err)
		}

		cell := func(name string) (string, bool) {
			i, ok := col[name]
			if !ok || i >= len(row) {
				return "", false
			}
			return row[i], true
		}

		rec := domain.FundRecord{Finalized: true}
		key, _ := cell("key")
		rec.ID.CNPJ, rec.ID.Class, _ = strings.Cut(key, "/")
		rec.ID.Name, _ = cell("name")
		rec.DocumentID, _ = cell("document_id")

		for _, f := range schema {
			raw, ok := cell(f.Name)
			if !ok {
				continue
			}
			switch f.Kind {
			case domain.KindString:
				f.SetString(&rec, raw)
			case domain.KindAmount:
				a, err := parseExportedAmount(raw)
				if err != nil {
					return nil, fmt.Errorf("line %d, column %s: %w", line, f.Name, err)
				}
				f.SetAmount(&rec, a)
			}
		}

		if err := readIndicators(&rec, cell); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		readFlags(&rec, cell)

		snapshot.Records = append(snapshot.Records, rec)
	}
	return snapshot, nil
}

// ReadSnapshotFile loads a snapshot export from disk.
func ReadSnapshotFile(path string) (*domain.Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open snapshot: %w", err)
	}
	defer f.Close()
	return ReadSnapshotCSV(f)
}

func readIndicators(rec *domain.FundRecord, cell func(string) (string, bool)) error {
	targets := map[string]*domain.Amount{
		"npl_ratio":           &rec.Indicators.NPLRatio,
		"liquidity_ratio":     &rec.Indicators.LiquidityRatio,
		"concentration_ratio": &rec.Indicators.ConcentrationRatio,
		"nonperforming_total": &rec.Indicators.NonperformingTotal,
	}
	for name, target := range targets {
		raw, ok := cell(name)
		if !ok {
			continue
		}
		a, err := parseExportedAmount(raw)
		if err != nil {
			return fmt.Errorf("column %s: %w", name, err)
		}
		*target = a
	}
	return nil
}

func readFlags(rec *domain.FundRecord, cell func(string) (string, bool)) {
	targets := map[string]*bool{
		"flag_asset_zero":                   &rec.Flags.AssetZero,
		"flag_liquidity_divergence":         &rec.Flags.LiquidityDivergence,
		"flag_empty_portfolio_with_default": &rec.Flags.EmptyPortfolioWithDefault,
		"flag_npl_divergence":               &rec.Flags.NPLDivergence,
		"flag_no_position":                  &rec.Flags.NoPosition,
	}
	for name, target := range targets {
		if raw, ok := cell(name); ok {
			*target = strings.EqualFold(strings.TrimSpace(raw), "true")
		}
	}
}
