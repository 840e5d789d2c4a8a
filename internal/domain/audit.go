package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AuditAction identifies the kind of mutation an audit entry records.
type AuditAction string

const (
	AuditCreate         AuditAction = "CREATE"
	AuditUpdate         AuditAction = "UPDATE"
	AuditToggle         AuditAction = "TOGGLE"
	AuditBulkToggle     AuditAction = "BULK_TOGGLE"
	AuditUpdatePriority AuditAction = "UPDATE_PRIORITY"
	AuditApplyProfile   AuditAction = "APPLY_PROFILE"
	AuditCreateProfile  AuditAction = "CREATE_PROFILE"
	AuditUpdateProfile  AuditAction = "UPDATE_PROFILE"
	AuditDeleteProfile  AuditAction = "DELETE_PROFILE"
	AuditUpdateCrossVal AuditAction = "UPDATE_CROSS_VALIDATION"
)

// AuditEntry is an immutable record of one configuration mutation.
// Entries are append-only; failing to write one never fails the mutation
// that triggered it.
type AuditEntry struct {
	ID        uuid.UUID       `json:"id"`
	Action    AuditAction     `json:"action"`
	Actor     *string         `json:"actor,omitempty"` // nil for system actions
	TargetIDs []string        `json:"target_ids"`
	Before    json.RawMessage `json:"before,omitempty"`
	After     json.RawMessage `json:"after,omitempty"`
	Reason    *string         `json:"reason,omitempty"`
	IP        *string         `json:"ip,omitempty"`
	UserAgent *string         `json:"user_agent,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// AuditMeta carries request attribution into mutating service calls.
type AuditMeta struct {
	Actor     *string
	Reason    *string
	IP        *string
	UserAgent *string
}
