package differ

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fidcetl/pkg/contracts/domain"
)

func record(cnpj string, total, cash float64) domain.FundRecord {
	return domain.FundRecord{
		ID:           domain.FundID{CNPJ: cnpj, Name: "FIDC " + cnpj},
		FundCNPJ:     cnpj,
		TotalAssets:  domain.AmountOf(total),
		CashHoldings: domain.AmountOf(cash),
	}
}

func snapshot(records ...domain.FundRecord) *domain.Snapshot {
	return &domain.Snapshot{RunID: "test", Records: records}
}

func TestCompare(t *testing.T) {
	d := New(0.5, nil)

	t.Run("identical snapshots diff empty", func(t *testing.T) {
		s := snapshot(record("1", 100, 10), record("2", 200, 20))
		report := d.Compare(s, s)
		assert.True(t, report.Empty())
	})

	t.Run("numeric change beyond tolerance", func(t *testing.T) {
		before := snapshot(record("1", 100, 10))
		after := snapshot(record("1", 150, 10))

		report := d.Compare(before, after)
		require.Len(t, report.Rows, 1)
		row := report.Rows[0]
		assert.Equal(t, "1", row.Key)
		assert.Equal(t, "total_assets", row.Field)
		assert.Equal(t, "100", row.Before)
		assert.Equal(t, "150", row.After)
		assert.Equal(t, domain.AmountOf(50), row.Delta)
	})

	t.Run("change within tolerance is not reported", func(t *testing.T) {
		before := snapshot(record("1", 100, 10))
		after := snapshot(record("1", 100.4, 10))

		report := d.Compare(before, after)
		assert.Empty(t, report.Rows)
	})

	t.Run("string change is reported exactly", func(t *testing.T) {
		before := snapshot(record("1", 100, 10))
		after := snapshot(record("1", 100, 10))
		after.Records[0].CondominiumType = "Aberto"

		report := d.Compare(before, after)
		require.Len(t, report.Rows, 1)
		assert.Equal(t, "condominium_type", report.Rows[0].Field)
		assert.False(t, report.Rows[0].Delta.Valid)
	})

	t.Run("absence transitions always reported", func(t *testing.T) {
		before := snapshot(record("1", 100, 10))
		after := snapshot(record("1", 100, 10))
		// Tiny value, far below tolerance, but it appeared from absent.
		before.Records[0].DerivativesTotal = domain.Absent
		after.Records[0].DerivativesTotal = domain.AmountOf(0.001)

		report := d.Compare(before, after)
		require.Len(t, report.Rows, 1)
		row := report.Rows[0]
		assert.Equal(t, "derivatives_total", row.Field)
		assert.Equal(t, "", row.Before)
		assert.Equal(t, "0.001", row.After)
		assert.False(t, row.Delta.Valid)
	})

	t.Run("added and removed keys are not field diffs", func(t *testing.T) {
		before := snapshot(record("1", 100, 10), record("2", 200, 20))
		after := snapshot(record("2", 200, 20), record("3", 300, 30))

		report := d.Compare(before, after)
		assert.Equal(t, []string{"3"}, report.Added)
		assert.Equal(t, []string{"1"}, report.Removed)
		assert.Empty(t, report.Rows)
	})

	t.Run("antisymmetry", func(t *testing.T) {
		a := snapshot(record("1", 100, 10), record("2", 200, 20))
		b := snapshot(record("1", 170, 10), record("2", 200, 95))

		ab := d.Compare(a, b)
		ba := d.Compare(b, a)
		require.Len(t, ab.Rows, 2)
		require.Len(t, ba.Rows, 2)

		for i := range ab.Rows {
			assert.Equal(t, ab.Rows[i].Key, ba.Rows[i].Key)
			assert.Equal(t, ab.Rows[i].Field, ba.Rows[i].Field)
			assert.Equal(t, ab.Rows[i].Before, ba.Rows[i].After)
			assert.Equal(t, ab.Rows[i].After, ba.Rows[i].Before)
			assert.Equal(t, ab.Rows[i].Delta, ba.Rows[i].Delta)
		}
	})

	t.Run("ordering follows after key order then schema order", func(t *testing.T) {
		before := snapshot(record("1", 100, 10), record("2", 200, 20))
		after := snapshot(record("2", 201, 22), record("1", 101, 12))

		report := d.Compare(before, after)
		require.Len(t, report.Rows, 4)
		assert.Equal(t, "2", report.Rows[0].Key)
		assert.Equal(t, "total_assets", report.Rows[0].Field)
		assert.Equal(t, "2", report.Rows[1].Key)
		assert.Equal(t, "cash_holdings", report.Rows[1].Field)
		assert.Equal(t, "1", report.Rows[2].Key)
		assert.Equal(t, "1", report.Rows[3].Key)
	})

	t.Run("sub-fund keys align independently", func(t *testing.T) {
		r1 := record("1", 100, 10)
		r1.ID.Class = "SENIOR"
		r2 := record("1", 200, 20)
		r2.ID.Class = "SUB"

		before := snapshot(r1, r2)
		changed := r2
		changed.TotalAssets = domain.AmountOf(900)
		after := snapshot(r1, changed)

		report := d.Compare(before, after)
		require.Len(t, report.Rows, 1)
		assert.Equal(t, "1/SUB", report.Rows[0].Key)
	})
}

func TestCompareEmptySnapshots(t *testing.T) {
	d := New(0.5, nil)
	report := d.Compare(snapshot(), snapshot())
	assert.True(t, report.Empty())
}
