package handlers

import (
	"errors"
	"net/http"

	"github.com/finsight/quorum/internal/domain"
	"github.com/finsight/quorum/internal/service"
	"github.com/go-chi/chi/v5"
)

type ProfileHandler struct {
	svc *service.ProfileService
}

func NewProfileHandler(svc *service.ProfileService) *ProfileHandler {
	return &ProfileHandler{svc: svc}
}

func (h *ProfileHandler) List(w http.ResponseWriter, r *http.Request) {
	profiles, err := h.svc.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list profiles")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"profiles": profiles})
}

func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, service.ErrProfileNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get profile")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type profileRequest struct {
	ID            string   `json:"id" validate:"required"`
	Name          string   `json:"name" validate:"required"`
	Description   string   `json:"description"`
	ScraperIDs    []string `json:"scraper_ids" validate:"required,min=1"`
	PriorityOrder []string `json:"priority_order" validate:"required,min=1"`
	MinSources    int      `json:"min_sources" validate:"required,min=2"`
	Reason        *string  `json:"reason"`
}

func (req *profileRequest) toDomain() *domain.ExecutionProfile {
	return &domain.ExecutionProfile{
		ID:            req.ID,
		Name:          req.Name,
		Description:   req.Description,
		ScraperIDs:    req.ScraperIDs,
		PriorityOrder: req.PriorityOrder,
		MinSources:    req.MinSources,
	}
}

func (h *ProfileHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if !decodeValid(w, r, &req) {
		return
	}

	p, err := h.svc.Create(r.Context(), req.toDomain(), auditMeta(r, req.Reason))
	if err != nil {
		writeProfileError(w, err, "failed to create profile")
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *ProfileHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	req.ID = chi.URLParam(r, "id") // path wins over body
	if !decodeValid(w, r, &req) {
		return
	}

	p, err := h.svc.Update(r.Context(), chi.URLParam(r, "id"), req.toDomain(), auditMeta(r, req.Reason))
	if err != nil {
		writeProfileError(w, err, "failed to update profile")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *ProfileHandler) Delete(w http.ResponseWriter, r *http.Request) {
	var req toggleRequest
	_ = decodeBodyIfPresent(r, &req)

	if err := h.svc.Delete(r.Context(), chi.URLParam(r, "id"), auditMeta(r, req.Reason)); err != nil {
		writeProfileError(w, err, "failed to delete profile")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *ProfileHandler) Apply(w http.ResponseWriter, r *http.Request) {
	var req toggleRequest
	_ = decodeBodyIfPresent(r, &req)

	result, err := h.svc.Apply(r.Context(), chi.URLParam(r, "id"), auditMeta(r, req.Reason))
	if err != nil {
		writeProfileError(w, err, "failed to apply profile")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func writeProfileError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, service.ErrProfileNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrProfileExists),
		errors.Is(err, service.ErrSystemProfile),
		errors.Is(err, service.ErrEnabledFloor):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrOrderNotPermutation),
		errors.Is(err, service.ErrUnknownScraper),
		errors.Is(err, service.ErrProfileMinSources),
		errors.Is(err, service.ErrProfileTooFew),
		errors.Is(err, service.ErrProfileEmpty):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, fallback)
	}
}
