package exporter

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"fidcetl/internal/config"
	"fidcetl/pkg/contracts/domain"
)

func sampleRecord() domain.FundRecord {
	rec := domain.FundRecord{
		ID:              domain.FundID{CNPJ: "11111111000111", Name: "FIDC Alfa"},
		FundCNPJ:        "11111111000111",
		ReferenceMonth:  "11/2025",
		CondominiumType: "Fechado",
		TotalAssets:     domain.AmountOf(1500000.5),
		CashHoldings:    domain.AmountOf(120000),
		AcquiredCredits: domain.AmountOf(1000000),
		DocumentID:      "901",
		Finalized:       true,
	}
	rec.Indicators.NPLRatio = domain.AmountOf(0.0625)
	rec.Flags.NPLDivergence = true
	return rec
}

func TestSnapshotCSVRoundTrip(t *testing.T) {
	original := &domain.Snapshot{Records: []domain.FundRecord{sampleRecord()}}
	sub := sampleRecord()
	sub.ID.Class = "SENIOR"
	sub.TotalAssets = domain.Absent
	original.Records = append(original.Records, sub)

	var buf bytes.Buffer
	require.NoError(t, WriteSnapshotCSV(&buf, original))

	// BOM, semicolons and decimal commas on the wire.
	assert.True(t, bytes.HasPrefix(buf.Bytes(), utf8BOM))
	assert.Contains(t, buf.String(), ";1500000,5;")

	loaded, err := ReadSnapshotCSV(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	require.Len(t, loaded.Records, 2)

	got := loaded.Records[0]
	assert.Equal(t, "11111111000111", got.Key())
	assert.Equal(t, "FIDC Alfa", got.ID.Name)
	assert.Equal(t, "Fechado", got.CondominiumType)
	assert.Equal(t, domain.AmountOf(1500000.5), got.TotalAssets)
	assert.Equal(t, domain.AmountOf(0.0625), got.Indicators.NPLRatio)
	assert.True(t, got.Flags.NPLDivergence)
	assert.False(t, got.Flags.AssetZero)
	assert.Equal(t, "901", got.DocumentID)
	assert.True(t, got.Finalized)

	// Absent survives the round trip as absent, not zero.
	assert.Equal(t, "11111111000111/SENIOR", loaded.Records[1].Key())
	assert.False(t, loaded.Records[1].TotalAssets.Valid)
}

func TestReadSnapshotCSVRejectsBadAmount(t *testing.T) {
	csv := "key;name;total_assets\n11111111000111;FIDC;not-a-number\n"
	_, err := ReadSnapshotCSV(strings.NewReader(csv))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "total_assets")
}

func TestReadSnapshotCSVRequiresKeyColumn(t *testing.T) {
	_, err := ReadSnapshotCSV(strings.NewReader("name;total_assets\n"))
	require.Error(t, err)
}

func TestWriteErrorsCSV(t *testing.T) {
	var buf bytes.Buffer
	errs := []domain.RunError{
		{Key: "11111111000111", Kind: domain.ErrorKindFetch, Message: "status 503"},
	}
	require.NoError(t, WriteErrorsCSV(&buf, errs))

	lines := strings.Split(strings.TrimSpace(strings.TrimPrefix(buf.String(), string(utf8BOM))), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "key;kind;message", lines[0])
	assert.Equal(t, "11111111000111;fetch;status 503", lines[1])
}

func TestWriteDiffCSV(t *testing.T) {
	var buf bytes.Buffer
	report := &domain.DiffReport{
		Added:   []string{"33333333000133"},
		Removed: []string{"22222222000122"},
		Rows: []domain.DiffRow{
			{Key: "11111111000111", Field: "total_assets", Before: "100", After: "150.5", Delta: domain.AmountOf(50.5)},
		},
	}
	require.NoError(t, WriteDiffCSV(&buf, report))

	out := buf.String()
	assert.Contains(t, out, "33333333000133;(entity);;added;")
	assert.Contains(t, out, "22222222000122;(entity);removed;;")
	assert.Contains(t, out, "11111111000111;total_assets;100;150.5;50,5")
}

func TestWriteRun(t *testing.T) {
	dir := t.TempDir()
	e := New(config.ExportConfig{OutputDir: dir}, nil)

	result := &domain.RunResult{
		Snapshot: domain.Snapshot{
			RunID:   "test-run",
			Records: []domain.FundRecord{sampleRecord()},
		},
		Errors: []domain.RunError{
			{Key: "22222222000122", Kind: domain.ErrorKindMapping, Message: "bad xml"},
		},
		Warnings: []domain.ParseWarning{
			{Key: "11111111000111", Field: "credit_position", Raw: "n/a"},
		},
	}

	paths, err := e.WriteRun(result)
	require.NoError(t, err)

	loaded, err := ReadSnapshotFile(paths.Snapshot)
	require.NoError(t, err)
	require.Len(t, loaded.Records, 1)

	// The flagged record appears in the issues export too.
	issues, err := ReadSnapshotFile(paths.Issues)
	require.NoError(t, err)
	require.Len(t, issues.Records, 1)
	assert.True(t, issues.Records[0].Flags.NPLDivergence)

	wb, err := excelize.OpenFile(paths.Workbook)
	require.NoError(t, err)
	defer wb.Close()
	assert.ElementsMatch(t, []string{"Snapshot", "Issues", "Errors", "Warnings"}, wb.GetSheetList())

	total, err := wb.GetCellValue("Snapshot", "A2")
	require.NoError(t, err)
	assert.Equal(t, "11111111000111", total)

	errKey, err := wb.GetCellValue("Errors", "A2")
	require.NoError(t, err)
	assert.Equal(t, "22222222000122", errKey)
}
