// Package pipeline orchestrates one extraction run: fetch the latest
// monthly filing per entity, map it, compute indicators, evaluate QA rules,
// and assemble the snapshot. Entities are processed concurrently but the
// snapshot always follows input-list order, so two runs over the same input
// produce identical exports.
package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"fidcetl/internal/config"
	apperrors "fidcetl/internal/errors"
	"fidcetl/internal/indicators"
	"fidcetl/internal/mapper"
	"fidcetl/internal/qa"
	"fidcetl/pkg/contracts/domain"
)

// Entry is one line of the input list: the entity to process, identified by
// CNPJ in whatever formatting the list carries, plus a display name.
type Entry struct {
	CNPJ string `json:"cnpj"`
	Name string `json:"name"`
}

// Filing is one downloaded document ready for mapping.
type Filing struct {
	DocumentID string
	Raw        []byte
}

// Fetcher retrieves the most recent monthly filing for an entity.
type Fetcher interface {
	Fetch(ctx context.Context, entry Entry) (Filing, error)
}

// Stages reported through progress events.
const (
	StageFetch  = "fetch"
	StageMap    = "map"
	StageDone   = "done"
	StageFailed = "failed"
)

// ProgressEvent is emitted as each entity moves through the run.
type ProgressEvent struct {
	Index int    `json:"index"`
	Total int    `json:"total"`
	Key   string `json:"key"`
	Stage string `json:"stage"`
	Error string `json:"error,omitempty"`
}

// Runner executes pipeline runs.
type Runner struct {
	fetcher     Fetcher
	mapper      *mapper.Mapper
	calc        *indicators.Calculator
	rules       *qa.Engine
	concurrency int
	logger      *slog.Logger
	metrics     *Metrics
	progress    func(ProgressEvent)
}

// Option customizes a Runner.
type Option func(*Runner)

// WithProgress registers a callback invoked for every stage transition. The
// callback runs on worker goroutines and must be safe for concurrent use.
func WithProgress(fn func(ProgressEvent)) Option {
	return func(r *Runner) { r.progress = fn }
}

// New creates a Runner from the run configuration. Instruments register on
// the globally installed meter provider.
func New(cfg *config.Config, fetcher Fetcher, logger *slog.Logger, opts ...Option) (*Runner, error) {
	if logger == nil {
		logger = slog.Default()
	}
	metrics, err := NewMetrics(otel.Meter(meterName))
	if err != nil {
		return nil, err
	}

	r := &Runner{
		fetcher:     fetcher,
		mapper:      mapper.New(logger),
		calc:        indicators.New(logger),
		rules:       qa.New(cfg.QA.Tolerance, logger),
		concurrency: cfg.Pipeline.Concurrency,
		logger:      logger,
		metrics:     metrics,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// entityResult is one worker's output, slotted by input position so the
// aggregation loop can rebuild input order without sorting.
type entityResult struct {
	records  []domain.FundRecord
	warnings []domain.ParseWarning
	runErr   *domain.RunError
	skipped  bool
}

// Run processes every entry and returns the assembled result. Recoverable
// per-entity failures never abort the run; they are collected as RunError
// rows. A failure outside that taxonomy skips the entity without recording
// an error row. On context cancellation no new entities are started and the
// partial result is returned together with the context error.
func (r *Runner) Run(ctx context.Context, entries []Entry) (*domain.RunResult, error) {
	start := time.Now()
	runID := uuid.NewString()
	logger := r.logger.With(slog.String("run_id", runID))
	logger.InfoContext(ctx, "run started",
		slog.Int("entities", len(entries)),
		slog.Int("concurrency", r.concurrency))

	slots := make([]entityResult, len(entries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i := range entries {
		if gctx.Err() != nil {
			slots[i].skipped = true
			continue
		}
		i := i
		g.Go(func() error {
			slots[i] = r.processEntity(gctx, logger, i, len(entries), entries[i])
			return nil
		})
	}
	g.Wait() //nolint:errcheck // workers record failures in their slot

	result := &domain.RunResult{
		Snapshot: domain.Snapshot{RunID: runID, CreatedAt: time.Now().UTC()},
	}
	var skipped, flagged int
	for i := range slots {
		if slots[i].skipped {
			skipped++
			continue
		}
		result.Snapshot.Records = append(result.Snapshot.Records, slots[i].records...)
		result.Warnings = append(result.Warnings, slots[i].warnings...)
		if slots[i].runErr != nil {
			result.Errors = append(result.Errors, *slots[i].runErr)
		}
		for _, rec := range slots[i].records {
			if rec.Flags.Any() {
				flagged++
			}
		}
	}

	elapsed := time.Since(start)
	r.metrics.runDuration.Record(ctx, elapsed.Seconds())
	r.metrics.flagsRaised.Add(ctx, int64(flagged))
	r.metrics.parseWarnings.Add(ctx, int64(len(result.Warnings)))

	logger.InfoContext(ctx, "run finished",
		slog.Int("records", len(result.Snapshot.Records)),
		slog.Int("errors", len(result.Errors)),
		slog.Int("warnings", len(result.Warnings)),
		slog.Int("flagged", flagged),
		slog.Int("skipped", skipped),
		slog.Duration("elapsed", elapsed))

	if err := ctx.Err(); err != nil {
		logger.WarnContext(ctx, "run canceled, snapshot is partial",
			slog.Int("skipped", skipped))
		return result, err
	}
	return result, nil
}

func (r *Runner) processEntity(ctx context.Context, logger *slog.Logger, idx, total int, entry Entry) entityResult {
	if ctx.Err() != nil {
		return entityResult{skipped: true}
	}

	id := domain.FundID{
		CNPJ:    mapper.CleanCNPJ(entry.CNPJ),
		RawCNPJ: entry.CNPJ,
		Name:    entry.Name,
	}
	key := id.Key()
	if key == "" {
		key = entry.Name
	}

	r.emit(ProgressEvent{Index: idx, Total: total, Key: key, Stage: StageFetch})
	filing, err := r.fetcher.Fetch(ctx, entry)
	if err != nil {
		return r.fail(ctx, logger, idx, total, key, domain.ErrorKindFetch, err)
	}

	r.emit(ProgressEvent{Index: idx, Total: total, Key: key, Stage: StageMap})
	records, warnings, err := r.mapper.Map(id, filing.Raw)
	if err != nil {
		return r.fail(ctx, logger, idx, total, key, domain.ErrorKindMapping, err)
	}

	for i := range records {
		records[i].DocumentID = filing.DocumentID
		records[i] = r.rules.Apply(r.calc.Apply(records[i]))
	}

	r.metrics.entitiesProcessed.Add(ctx, 1)
	r.emit(ProgressEvent{Index: idx, Total: total, Key: key, Stage: StageDone})
	return entityResult{records: records, warnings: warnings}
}

func (r *Runner) fail(ctx context.Context, logger *slog.Logger, idx, total int, key string, kind domain.ErrorKind, err error) entityResult {
	if !apperrors.IsRecoverable(err) {
		// Outside the fetch/mapping taxonomy the failure is not the
		// entity's: a canceled context or an infrastructure fault. The
		// entity is skipped instead of charged a run error.
		logger.WarnContext(ctx, "entity skipped",
			slog.String("key", key),
			slog.String("error", err.Error()))
		r.emit(ProgressEvent{Index: idx, Total: total, Key: key, Stage: StageFailed, Error: err.Error()})
		return entityResult{skipped: true}
	}
	logger.WarnContext(ctx, "entity failed",
		slog.String("key", key),
		slog.String("kind", string(kind)),
		slog.String("error", err.Error()))
	r.metrics.entityFailures.Add(ctx, 1,
		metric.WithAttributes(attribute.String("kind", string(kind))))
	r.emit(ProgressEvent{Index: idx, Total: total, Key: key, Stage: StageFailed, Error: err.Error()})
	return entityResult{runErr: &domain.RunError{Key: key, Kind: kind, Message: err.Error()}}
}

func (r *Runner) emit(ev ProgressEvent) {
	if r.progress != nil {
		r.progress(ev)
	}
}
