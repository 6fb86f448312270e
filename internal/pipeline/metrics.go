package pipeline

import (
	"fmt"

	"go.opentelemetry.io/otel/metric"
)

const meterName = "fidcetl.pipeline"

// Metrics holds the pipeline instruments, registered on the globally
// installed meter provider.
type Metrics struct {
	entitiesProcessed metric.Int64Counter
	entityFailures    metric.Int64Counter
	flagsRaised       metric.Int64Counter
	parseWarnings     metric.Int64Counter
	runDuration       metric.Float64Histogram
}

// NewMetrics creates the pipeline instruments on the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	if m.entitiesProcessed, err = meter.Int64Counter("fidc_entities_processed_total",
		metric.WithDescription("Entities that produced at least one finalized record")); err != nil {
		return nil, fmt.Errorf("create entities counter: %w", err)
	}
	if m.entityFailures, err = meter.Int64Counter("fidc_entity_failures_total",
		metric.WithDescription("Entities skipped due to fetch or mapping failures")); err != nil {
		return nil, fmt.Errorf("create failures counter: %w", err)
	}
	if m.flagsRaised, err = meter.Int64Counter("fidc_qa_flags_raised_total",
		metric.WithDescription("Finalized records with at least one QA flag")); err != nil {
		return nil, fmt.Errorf("create flags counter: %w", err)
	}
	if m.parseWarnings, err = meter.Int64Counter("fidc_parse_warnings_total",
		metric.WithDescription("Optional fields degraded to absent during mapping")); err != nil {
		return nil, fmt.Errorf("create warnings counter: %w", err)
	}
	if m.runDuration, err = meter.Float64Histogram("fidc_run_duration_seconds",
		metric.WithDescription("Wall-clock duration of one pipeline run")); err != nil {
		return nil, fmt.Errorf("create duration histogram: %w", err)
	}

	return m, nil
}
