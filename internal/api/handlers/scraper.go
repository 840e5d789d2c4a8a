package handlers

import (
	"errors"
	"net/http"

	"github.com/finsight/quorum/internal/domain"
	"github.com/finsight/quorum/internal/service"
	"github.com/go-chi/chi/v5"
)

type ScraperHandler struct {
	svc *service.OrchestratorService
}

func NewScraperHandler(svc *service.OrchestratorService) *ScraperHandler {
	return &ScraperHandler{svc: svc}
}

func (h *ScraperHandler) List(w http.ResponseWriter, r *http.Request) {
	configs, err := h.svc.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list scrapers")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"scrapers": configs})
}

func (h *ScraperHandler) Get(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, service.ErrScraperNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get scraper")
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

// Enabled is the hot path consumed by the collection scheduler: the ordered
// list of enabled scrapers for a category, optionally scoped to a ticker.
func (h *ScraperHandler) Enabled(w http.ResponseWriter, r *http.Request) {
	category := r.URL.Query().Get("category")
	if category == "" {
		writeError(w, http.StatusBadRequest, "category is required")
		return
	}

	var ticker *string
	if t := r.URL.Query().Get("ticker"); t != "" {
		ticker = &t
	}

	configs, err := h.svc.EnabledSources(r.Context(), ticker, domain.Category(category))
	if err != nil {
		if errors.Is(err, service.ErrInvalidCategory) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to resolve enabled sources")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"scrapers": configs})
}

type createScraperRequest struct {
	ID           string                `json:"id" validate:"required"`
	Name         string                `json:"name" validate:"required"`
	RuntimeClass string                `json:"runtime_class" validate:"required"`
	Category     string                `json:"category" validate:"required"`
	Enabled      bool                  `json:"enabled"`
	Priority     int                   `json:"priority" validate:"required,min=1"`
	Tickers      []string              `json:"tickers"`
	Params       *domain.ScraperParams `json:"params"`
}

func (h *ScraperHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createScraperRequest
	if !decodeValid(w, r, &req) {
		return
	}

	cfg := &domain.ScraperConfig{
		ID:           req.ID,
		Name:         req.Name,
		RuntimeClass: domain.RuntimeClass(req.RuntimeClass),
		Category:     domain.Category(req.Category),
		Enabled:      req.Enabled,
		Priority:     req.Priority,
		Tickers:      req.Tickers,
	}
	if req.Params != nil {
		cfg.Params = *req.Params
	}

	created, err := h.svc.Create(r.Context(), cfg, auditMeta(r, nil))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCategory),
			errors.Is(err, service.ErrInvalidRuntimeClass),
			errors.Is(err, service.ErrInvalidPriority):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrScraperExists),
			errors.Is(err, service.ErrDuplicatePriority):
			writeError(w, http.StatusConflict, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "failed to create scraper")
		}
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

type updateScraperRequest struct {
	Name     *string               `json:"name"`
	Enabled  *bool                 `json:"enabled"`
	Priority *int                  `json:"priority"`
	Tickers  *[]string             `json:"tickers"`
	Params   *domain.ScraperParams `json:"params"`
	Reason   *string               `json:"reason"`
}

func (h *ScraperHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req updateScraperRequest
	if !decodeValid(w, r, &req) {
		return
	}

	cfg, err := h.svc.Update(r.Context(), chi.URLParam(r, "id"), service.UpdateScraperInput{
		Name:     req.Name,
		Enabled:  req.Enabled,
		Priority: req.Priority,
		Tickers:  req.Tickers,
		Params:   req.Params,
	}, auditMeta(r, req.Reason))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrScraperNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, service.ErrInvalidPriority):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrDuplicatePriority),
			errors.Is(err, service.ErrEnabledFloor):
			writeError(w, http.StatusConflict, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "failed to update scraper")
		}
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

type toggleRequest struct {
	Reason *string `json:"reason"`
}

func (h *ScraperHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	var req toggleRequest
	// Body is optional on toggle.
	_ = decodeBodyIfPresent(r, &req)

	cfg, err := h.svc.ToggleEnabled(r.Context(), chi.URLParam(r, "id"), auditMeta(r, req.Reason))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrScraperNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, service.ErrEnabledFloor):
			writeError(w, http.StatusConflict, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "failed to toggle scraper")
		}
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

type bulkToggleRequest struct {
	IDs     []string `json:"ids" validate:"required,min=1"`
	Enabled bool     `json:"enabled"`
	Reason  *string  `json:"reason"`
}

func (h *ScraperHandler) BulkToggle(w http.ResponseWriter, r *http.Request) {
	var req bulkToggleRequest
	if !decodeValid(w, r, &req) {
		return
	}

	count, err := h.svc.BulkToggle(r.Context(), req.IDs, req.Enabled, auditMeta(r, req.Reason))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEmptyBatch):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrEnabledFloor):
			writeError(w, http.StatusConflict, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "failed to bulk toggle")
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"updated": count})
}

type updatePrioritiesRequest struct {
	Priorities []domain.PriorityAssignment `json:"priorities" validate:"required,min=1,dive"`
	Reason     *string                     `json:"reason"`
}

func (h *ScraperHandler) UpdatePriorities(w http.ResponseWriter, r *http.Request) {
	var req updatePrioritiesRequest
	if !decodeValid(w, r, &req) {
		return
	}

	err := h.svc.UpdatePriorities(r.Context(), req.Priorities, auditMeta(r, req.Reason))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEmptyBatch),
			errors.Is(err, service.ErrInvalidPriority),
			errors.Is(err, service.ErrDuplicateInputPriority):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrScraperNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, service.ErrDuplicatePriority):
			writeError(w, http.StatusConflict, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "failed to update priorities")
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

type previewImpactRequest struct {
	IDs []string `json:"ids" validate:"required,min=1"`
}

// PreviewImpact is the what-if cost calculator; it never mutates anything.
func (h *ScraperHandler) PreviewImpact(w http.ResponseWriter, r *http.Request) {
	var req previewImpactRequest
	if !decodeValid(w, r, &req) {
		return
	}

	est, err := h.svc.PreviewImpact(r.Context(), req.IDs)
	if err != nil {
		if errors.Is(err, service.ErrScraperNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to estimate impact")
		return
	}
	writeJSON(w, http.StatusOK, est)
}
