package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/miradorstack/mirador-correlate/internal/models"
	"github.com/miradorstack/mirador-correlate/internal/services"
)

const (
	defaultPageLimit = 50
	maxPageLimit     = 500
)

// Handlers exposes the correlation engine's HTTP contract.
type Handlers struct {
	service *services.CorrelationService
	logger  *slog.Logger
}

// NewHandlers constructs the handler set over the service facade.
func NewHandlers(service *services.CorrelationService, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{service: service, logger: logger}
}

// Mux builds the route table.
func (h *Handlers) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/investigations", h.handleCorrelate)
	mux.HandleFunc("GET /api/v1/incidents", h.handleListIncidents)
	mux.HandleFunc("GET /api/v1/incidents/{id}", h.handleGetIncident)
	mux.HandleFunc("GET /api/v1/investigations/{id}/incident", h.handleIncidentForInvestigation)
	mux.HandleFunc("POST /api/v1/incidents/merge", h.handleMerge)
	mux.HandleFunc("PUT /api/v1/incidents/{id}/status", h.handleUpdateStatus)
	mux.HandleFunc("GET /health", h.handleHealth)
	return mux
}

func (h *Handlers) handleCorrelate(w http.ResponseWriter, r *http.Request) {
	var rec models.InvestigationRecord
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	inc, err := h.service.Correlate(r.Context(), rec)
	if err != nil {
		var verr *models.ValidationError
		if errors.As(err, &verr) {
			writeError(w, http.StatusBadRequest, verr.Error())
			return
		}
		h.logger.Error("correlate failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "correlation failed")
		return
	}
	writeJSON(w, http.StatusOK, inc)
}

func (h *Handlers) handleListIncidents(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	var statusFilter *models.Status
	if raw := query.Get("status"); raw != "" {
		status, err := models.ParseStatus(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		statusFilter = &status
	}

	limit, err := intParam(query.Get("limit"), defaultPageLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid limit")
		return
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	offset, err := intParam(query.Get("offset"), 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid offset")
		return
	}

	incidents := h.service.ListIncidents(statusFilter, limit, offset)
	writeJSON(w, http.StatusOK, map[string]any{
		"incidents": incidents,
		"count":     len(incidents),
	})
}

func (h *Handlers) handleGetIncident(w http.ResponseWriter, r *http.Request) {
	inc, ok := h.service.GetIncident(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "incident not found")
		return
	}
	writeJSON(w, http.StatusOK, inc)
}

func (h *Handlers) handleIncidentForInvestigation(w http.ResponseWriter, r *http.Request) {
	inc, ok := h.service.IncidentForInvestigation(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "investigation not found")
		return
	}
	writeJSON(w, http.StatusOK, inc)
}

type mergeRequest struct {
	SourceID string `json:"source_id"`
	TargetID string `json:"target_id"`
}

func (h *Handlers) handleMerge(w http.ResponseWriter, r *http.Request) {
	var req mergeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	inc, ok := h.service.Merge(r.Context(), req.SourceID, req.TargetID)
	if !ok {
		writeError(w, http.StatusNotFound, "merge rejected: unknown, merged, or identical incident ids")
		return
	}
	writeJSON(w, http.StatusOK, inc)
}

type statusRequest struct {
	Status string `json:"status"`
}

func (h *Handlers) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	status, err := models.ParseStatus(req.Status)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	inc, ok := h.service.UpdateStatus(r.Context(), r.PathValue("id"), status)
	if !ok {
		writeError(w, http.StatusNotFound, "incident not found or merged")
		return
	}
	writeJSON(w, http.StatusOK, inc)
}

func (h *Handlers) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func intParam(raw string, fallback int) (int, error) {
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return 0, errors.New("must be a non-negative integer")
	}
	return value, nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
