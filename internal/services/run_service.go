// Package services holds the application services behind the audit API:
// run lifecycle, snapshot access and diffing. Handlers stay thin; state
// and coordination live here.
package services

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"fidcetl/internal/differ"
	"fidcetl/internal/exporter"
	"fidcetl/internal/pipeline"
	"fidcetl/internal/qa"
	"fidcetl/internal/websocket"
	"fidcetl/pkg/contracts/domain"
)

// ErrRunActive is returned when a run is requested while one is in flight.
var ErrRunActive = errors.New("a pipeline run is already active")

// ErrNoSnapshot is returned when no run has completed yet.
var ErrNoSnapshot = errors.New("no snapshot has been produced yet")

// RunService owns the run lifecycle: at most one run at a time, the latest
// result kept in memory, exports written after every run.
type RunService struct {
	runner   *pipeline.Runner
	exporter *exporter.Exporter
	differ   *differ.Differ
	entries  []pipeline.Entry
	hub      *websocket.Hub
	logger   *slog.Logger

	mu        sync.Mutex
	active    bool
	last      *domain.RunResult
	lastPaths exporter.Paths
	lastAt    time.Time
}

// NewRunService creates the service. hub may be nil when no UI is attached.
func NewRunService(runner *pipeline.Runner, exp *exporter.Exporter, d *differ.Differ,
	entries []pipeline.Entry, hub *websocket.Hub, logger *slog.Logger) *RunService {
	if logger == nil {
		logger = slog.Default()
	}
	return &RunService{
		runner:   runner,
		exporter: exp,
		differ:   d,
		entries:  entries,
		hub:      hub,
		logger:   logger.With(slog.String("service", "run")),
	}
}

// Trigger starts a run in the background. Only one run may be active. A
// nil entries slice runs the configured input list.
func (s *RunService) Trigger(ctx context.Context, entries []pipeline.Entry) error {
	if entries == nil {
		entries = s.entries
	}

	s.mu.Lock()
	if s.active {
		s.mu.Unlock()
		return ErrRunActive
	}
	s.active = true
	s.mu.Unlock()

	s.broadcast(websocket.Message{Type: websocket.TypeRunStarted,
		Payload: map[string]int{"entities": len(entries)}})

	go s.execute(context.WithoutCancel(ctx), entries)
	return nil
}

func (s *RunService) execute(ctx context.Context, entries []pipeline.Entry) {
	defer func() {
		s.mu.Lock()
		s.active = false
		s.mu.Unlock()
	}()

	result, err := s.runner.Run(ctx, entries)
	if err != nil {
		s.logger.Warn("run interrupted", slog.String("error", err.Error()))
	}
	if result == nil {
		return
	}

	paths, exportErr := s.exporter.WriteRun(result)
	if exportErr != nil {
		s.logger.Error("export failed", slog.String("error", exportErr.Error()))
	}

	s.mu.Lock()
	s.last = result
	s.lastPaths = paths
	s.lastAt = time.Now().UTC()
	s.mu.Unlock()

	s.broadcast(websocket.Message{Type: websocket.TypeRunDone, Payload: map[string]interface{}{
		"run_id":  result.Snapshot.RunID,
		"records": len(result.Snapshot.Records),
		"errors":  len(result.Errors),
	}})
}

// RunSync executes a run in the calling goroutine. Used by the CLI, where
// there is no background lifecycle to manage.
func (s *RunService) RunSync(ctx context.Context, entries []pipeline.Entry) (*domain.RunResult, exporter.Paths, error) {
	result, runErr := s.runner.Run(ctx, entries)
	if result == nil {
		return nil, exporter.Paths{}, runErr
	}

	paths, err := s.exporter.WriteRun(result)
	if err != nil {
		return result, exporter.Paths{}, err
	}

	s.mu.Lock()
	s.last = result
	s.lastPaths = paths
	s.lastAt = time.Now().UTC()
	s.mu.Unlock()

	return result, paths, runErr
}

// Active reports whether a run is in flight.
func (s *RunService) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Status summarizes the service for health reporting.
type Status struct {
	RunActive   bool      `json:"run_active"`
	LastRunID   string    `json:"last_run_id,omitempty"`
	LastRunAt   time.Time `json:"last_run_at,omitempty"`
	RecordCount int       `json:"record_count"`
	ErrorCount  int       `json:"error_count"`
}

// Status returns the current service status.
func (s *RunService) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{RunActive: s.active}
	if s.last != nil {
		st.LastRunID = s.last.Snapshot.RunID
		st.LastRunAt = s.lastAt
		st.RecordCount = len(s.last.Snapshot.Records)
		st.ErrorCount = len(s.last.Errors)
	}
	return st
}

// Latest returns the most recent run result.
func (s *RunService) Latest() (*domain.RunResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return nil, ErrNoSnapshot
	}
	return s.last, nil
}

// Issues returns the flagged records of the latest run.
func (s *RunService) Issues() ([]domain.FundRecord, error) {
	result, err := s.Latest()
	if err != nil {
		return nil, err
	}
	return qa.Issues(result.Snapshot.Records), nil
}

// Diff compares a historical snapshot export against the latest snapshot.
func (s *RunService) Diff(beforePath string) (*domain.DiffReport, error) {
	result, err := s.Latest()
	if err != nil {
		return nil, err
	}
	before, err := exporter.ReadSnapshotFile(beforePath)
	if err != nil {
		return nil, err
	}
	return s.differ.Compare(before, &result.Snapshot), nil
}

// DiffSnapshots compares two snapshots directly.
func (s *RunService) DiffSnapshots(before, after *domain.Snapshot) *domain.DiffReport {
	return s.differ.Compare(before, after)
}

func (s *RunService) broadcast(msg websocket.Message) {
	if s.hub != nil {
		s.hub.Broadcast(msg)
	}
}
