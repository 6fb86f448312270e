package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	apperrors "fidcetl/internal/errors"
	"fidcetl/internal/exporter"
	"fidcetl/internal/pipeline"
	"fidcetl/internal/services"
	"fidcetl/internal/websocket"
	"fidcetl/pkg/contracts"
	"fidcetl/pkg/contracts/domain"
)

// Handler serves the audit API.
type Handler struct {
	service *services.RunService
	hub     *websocket.Hub
	logger  *slog.Logger
}

// NewHandler creates the API handler set.
func NewHandler(service *services.RunService, hub *websocket.Hub, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		service: service,
		hub:     hub,
		logger:  logger.With(slog.String("handler", "api")),
	}
}

// Health handles GET /api/health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]interface{}{
		"status":  "ok",
		"version": contracts.GetVersionInfo(),
		"run":     h.service.Status(),
	})
}

// Snapshot handles GET /api/snapshot.
func (h *Handler) Snapshot(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.Latest()
	if err != nil {
		render.Render(w, r, apperrors.ErrNoSnapshot)
		return
	}
	render.JSON(w, r, result.Snapshot)
}

// Errors handles GET /api/errors.
func (h *Handler) Errors(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.Latest()
	if err != nil {
		render.Render(w, r, apperrors.ErrNoSnapshot)
		return
	}
	render.JSON(w, r, map[string]interface{}{
		"errors":   result.Errors,
		"warnings": result.Warnings,
	})
}

// Issues handles GET /api/qa/issues.
func (h *Handler) Issues(w http.ResponseWriter, r *http.Request) {
	issues, err := h.service.Issues()
	if err != nil {
		render.Render(w, r, apperrors.ErrNoSnapshot)
		return
	}
	render.JSON(w, r, map[string]interface{}{
		"count":  len(issues),
		"issues": issues,
	})
}

// runRequest is the optional POST /api/run body. Without a body the run
// processes the configured input list.
type runRequest struct {
	Entries []pipeline.Entry `json:"entries"`
}

// TriggerRun handles POST /api/run.
func (h *Handler) TriggerRun(w http.ResponseWriter, r *http.Request) {
	var entries []pipeline.Entry
	if r.Body != nil && r.ContentLength != 0 {
		var req runRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			render.Render(w, r, apperrors.InvalidRequestWithError(err))
			return
		}
		entries = req.Entries
	}

	if err := h.service.Trigger(r.Context(), entries); err != nil {
		if errors.Is(err, services.ErrRunActive) {
			render.Render(w, r, apperrors.ErrRunActive)
			return
		}
		h.logger.ErrorContext(r.Context(), "run trigger failed",
			slog.String("error", err.Error()))
		render.Render(w, r, apperrors.RunFailedError(err))
		return
	}

	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, map[string]string{"status": "started"})
}

// diffRequest is the POST /api/diff body. BeforePath is a snapshot CSV
// export; AfterPath defaults to the latest in-memory snapshot.
type diffRequest struct {
	BeforePath string `json:"before_path"`
	AfterPath  string `json:"after_path,omitempty"`
}

// Bind implements render.Binder.
func (req *diffRequest) Bind(r *http.Request) error {
	if req.BeforePath == "" {
		return errors.New("before_path is required")
	}
	return nil
}

// Diff handles POST /api/diff.
func (h *Handler) Diff(w http.ResponseWriter, r *http.Request) {
	req := &diffRequest{}
	if err := render.Bind(r, req); err != nil {
		render.Render(w, r, apperrors.InvalidRequestWithError(err))
		return
	}

	report, err := h.diff(req)
	if err != nil {
		if errors.Is(err, services.ErrNoSnapshot) {
			render.Render(w, r, apperrors.ErrNoSnapshot)
			return
		}
		render.Render(w, r, apperrors.InvalidRequestWithError(err))
		return
	}
	render.JSON(w, r, report)
}

func (h *Handler) diff(req *diffRequest) (*domain.DiffReport, error) {
	if req.AfterPath == "" {
		return h.service.Diff(req.BeforePath)
	}

	before, err := exporter.ReadSnapshotFile(req.BeforePath)
	if err != nil {
		return nil, err
	}
	after, err := exporter.ReadSnapshotFile(req.AfterPath)
	if err != nil {
		return nil, err
	}
	return h.service.DiffSnapshots(before, after), nil
}

// ServeWS handles GET /ws.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	websocket.ServeWS(h.hub, w, r)
}
