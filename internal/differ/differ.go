// Package differ compares two snapshots of the same entity set and reports
// field-level numeric deltas for audit.
package differ

import (
	"log/slog"

	"fidcetl/pkg/contracts/domain"
)

// Differ aligns snapshots by entity key and reports disagreements beyond
// tolerance.
type Differ struct {
	tolerance float64
	logger    *slog.Logger
}

// New creates a differ. Tolerance applies to numeric fields only; string
// fields compare exactly.
func New(tolerance float64, logger *slog.Logger) *Differ {
	if logger == nil {
		logger = slog.Default()
	}
	return &Differ{tolerance: tolerance, logger: logger}
}

// Compare produces the diff report of before vs after.
//
// Ordering is deterministic: entities follow the key order of after (then
// removed keys in before order), and fields follow the canonical schema
// order. Keys present on only one side are reported as added/removed, not
// as field diffs. Absence-to-value transitions are always reported
// regardless of tolerance.
func (d *Differ) Compare(before, after *domain.Snapshot) *domain.DiffReport {
	report := &domain.DiffReport{}
	beforeIdx := before.Index()
	afterIdx := after.Index()

	seen := make(map[string]bool, len(after.Records))
	for i := range after.Records {
		key := after.Records[i].Key()
		if seen[key] {
			continue
		}
		seen[key] = true

		prev, ok := beforeIdx[key]
		if !ok {
			report.Added = append(report.Added, key)
			continue
		}
		report.Rows = append(report.Rows, d.compareRecords(key, prev, &after.Records[i])...)
	}

	for i := range before.Records {
		key := before.Records[i].Key()
		if _, ok := afterIdx[key]; !ok {
			report.Removed = append(report.Removed, key)
		}
	}

	d.logger.Info("snapshots compared",
		slog.Int("field_diffs", len(report.Rows)),
		slog.Int("added", len(report.Added)),
		slog.Int("removed", len(report.Removed)))

	return report
}

func (d *Differ) compareRecords(key string, before, after *domain.FundRecord) []domain.DiffRow {
	var rows []domain.DiffRow
	for _, f := range domain.Schema() {
		switch f.Kind {
		case domain.KindAmount:
			b, a := f.Amount(before), f.Amount(after)
			if row, changed := d.compareAmounts(key, f.Name, b, a); changed {
				rows = append(rows, row)
			}
		case domain.KindString:
			b, a := f.String(before), f.String(after)
			if b != a {
				rows = append(rows, domain.DiffRow{
					Key:    key,
					Field:  f.Name,
					Before: b,
					After:  a,
					Delta:  domain.Absent,
				})
			}
		}
	}
	return rows
}

func (d *Differ) compareAmounts(key, field string, before, after domain.Amount) (domain.DiffRow, bool) {
	row := domain.DiffRow{
		Key:    key,
		Field:  field,
		Before: before.String(),
		After:  after.String(),
		Delta:  before.AbsDelta(after),
	}

	switch {
	case !before.Valid && !after.Valid:
		return domain.DiffRow{}, false
	case before.Valid != after.Valid:
		// Going from "no data" to "some data" (or back) is never a no-op.
		return row, true
	default:
		if row.Delta.Value > d.tolerance {
			return row, true
		}
		return domain.DiffRow{}, false
	}
}
