package handlers

import (
	"net/http"
	"strconv"

	"github.com/finsight/quorum/internal/domain"
)

type AuditHandler struct {
	store domain.AuditStore
}

func NewAuditHandler(store domain.AuditStore) *AuditHandler {
	return &AuditHandler{store: store}
}

// List returns recent audit entries, newest first. Read-only view over an
// append-only log.
func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 500 {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 500")
			return
		}
		limit = n
	}

	var action *domain.AuditAction
	if v := r.URL.Query().Get("action"); v != "" {
		a := domain.AuditAction(v)
		action = &a
	}

	entries, err := h.store.List(r.Context(), action, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list audit entries")
		return
	}
	if entries == nil {
		entries = []domain.AuditEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}
