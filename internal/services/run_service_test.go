package services

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fidcetl/internal/config"
	"fidcetl/internal/differ"
	"fidcetl/internal/exporter"
	"fidcetl/internal/pipeline"
)

const testCNPJ = "11111111000111"

type slowFetcher struct {
	delay time.Duration
	calls atomic.Int32
}

func (f *slowFetcher) Fetch(ctx context.Context, entry pipeline.Entry) (pipeline.Filing, error) {
	f.calls.Add(1)
	select {
	case <-ctx.Done():
		return pipeline.Filing{}, ctx.Err()
	case <-time.After(f.delay):
	}
	raw := fmt.Sprintf(`<INFORME_MENSAL>
		<NR_CNPJ_FUNDO>%s</NR_CNPJ_FUNDO>
		<VL_SOM_APLIC_ATIVO>1.000,00</VL_SOM_APLIC_ATIVO>
	</INFORME_MENSAL>`, entry.CNPJ)
	return pipeline.Filing{DocumentID: "1", Raw: []byte(raw)}, nil
}

func newTestService(t *testing.T, fetcher pipeline.Fetcher) *RunService {
	t.Helper()
	cfg := config.Default()
	cfg.Pipeline.Concurrency = 1
	cfg.Export.OutputDir = t.TempDir()

	runner, err := pipeline.New(&cfg, fetcher, nil)
	require.NoError(t, err)

	entries := []pipeline.Entry{{CNPJ: testCNPJ, Name: "FIDC Um"}}
	return NewRunService(runner,
		exporter.New(cfg.Export, nil),
		differ.New(cfg.Diff.Tolerance, nil),
		entries, nil, nil)
}

func TestTriggerRejectsConcurrentRuns(t *testing.T) {
	svc := newTestService(t, &slowFetcher{delay: 200 * time.Millisecond})

	require.NoError(t, svc.Trigger(context.Background(), nil))
	assert.ErrorIs(t, svc.Trigger(context.Background(), nil), ErrRunActive)

	require.Eventually(t, func() bool { return !svc.Active() },
		5*time.Second, 10*time.Millisecond)

	// The slot frees up once the run completes.
	result, err := svc.Latest()
	require.NoError(t, err)
	assert.Len(t, result.Snapshot.Records, 1)
	require.NoError(t, svc.Trigger(context.Background(), nil))
}

func TestLatestBeforeAnyRun(t *testing.T) {
	svc := newTestService(t, &slowFetcher{})

	_, err := svc.Latest()
	assert.ErrorIs(t, err, ErrNoSnapshot)
	_, err = svc.Issues()
	assert.ErrorIs(t, err, ErrNoSnapshot)
	_, err = svc.Diff("missing.csv")
	assert.ErrorIs(t, err, ErrNoSnapshot)
}

func TestRunSync(t *testing.T) {
	svc := newTestService(t, &slowFetcher{})

	result, paths, err := svc.RunSync(context.Background(),
		[]pipeline.Entry{{CNPJ: testCNPJ, Name: "FIDC Um"}})
	require.NoError(t, err)
	require.Len(t, result.Snapshot.Records, 1)
	assert.FileExists(t, paths.Snapshot)
	assert.FileExists(t, paths.Workbook)

	st := svc.Status()
	assert.False(t, st.RunActive)
	assert.Equal(t, result.Snapshot.RunID, st.LastRunID)
	assert.Equal(t, 1, st.RecordCount)
}

func TestDiffAgainstLatest(t *testing.T) {
	svc := newTestService(t, &slowFetcher{})

	_, paths, err := svc.RunSync(context.Background(),
		[]pipeline.Entry{{CNPJ: testCNPJ, Name: "FIDC Um"}})
	require.NoError(t, err)

	// The export of the same run diffs clean against it.
	report, err := svc.Diff(paths.Snapshot)
	require.NoError(t, err)
	assert.True(t, report.Empty())
}
