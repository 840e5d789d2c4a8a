package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/finsight/quorum/internal/api/middleware"
	"github.com/finsight/quorum/internal/domain"
	"github.com/go-playground/validator/v10"
)

// validate checks request payloads via struct tags before anything reaches
// a service.
var validate = validator.New(validator.WithRequiredStructEnabled())

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// decodeValid decodes the request body into v and runs struct validation.
// It writes the error response itself and reports whether decoding passed.
func decodeValid(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	if err := validate.Struct(v); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

// decodeBodyIfPresent decodes an optional JSON body, treating an empty body
// as the zero value.
func decodeBodyIfPresent(r *http.Request, v any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	return json.NewDecoder(r.Body).Decode(v)
}

// auditMeta assembles request attribution for the audit trail.
func auditMeta(r *http.Request, reason *string) domain.AuditMeta {
	meta := domain.AuditMeta{
		Actor:  middleware.ActorFromContext(r.Context()),
		Reason: reason,
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		meta.IP = &ip
	} else if r.RemoteAddr != "" {
		addr := r.RemoteAddr
		meta.IP = &addr
	}
	if ua := r.UserAgent(); ua != "" {
		meta.UserAgent = &ua
	}
	return meta
}
