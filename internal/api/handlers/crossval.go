package handlers

import (
	"errors"
	"net/http"

	"github.com/finsight/quorum/internal/service"
)

type CrossValHandler struct {
	svc *service.CrossValidationService
}

func NewCrossValHandler(svc *service.CrossValidationService) *CrossValHandler {
	return &CrossValHandler{svc: svc}
}

func (h *CrossValHandler) Get(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.svc.Get(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load cross-validation config")
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

type updateCrossValRequest struct {
	MinSources       *int               `json:"min_sources"`
	ThresholdHigh    *float64           `json:"threshold_high"`
	ThresholdMedium  *float64           `json:"threshold_medium"`
	DefaultTolerance *float64           `json:"default_tolerance"`
	FieldTolerances  map[string]float64 `json:"field_tolerances"`
	SourcePriority   []string           `json:"source_priority"`
	Version          int                `json:"version" validate:"min=0"`
	Reason           *string            `json:"reason"`
}

func (h *CrossValHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req updateCrossValRequest
	if !decodeValid(w, r, &req) {
		return
	}

	cfg, err := h.svc.Update(r.Context(), service.UpdateCrossValInput{
		MinSources:       req.MinSources,
		ThresholdHigh:    req.ThresholdHigh,
		ThresholdMedium:  req.ThresholdMedium,
		DefaultTolerance: req.DefaultTolerance,
		FieldTolerances:  req.FieldTolerances,
		SourcePriority:   req.SourcePriority,
		Version:          req.Version,
	}, auditMeta(r, req.Reason))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrCrossValMinSources),
			errors.Is(err, service.ErrCrossValThresholds),
			errors.Is(err, service.ErrCrossValTolerance):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrStaleConfigVersion):
			writeError(w, http.StatusConflict, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "failed to update cross-validation config")
		}
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}
