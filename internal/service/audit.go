package service

import (
	"context"
	"encoding/json"

	"github.com/finsight/quorum/internal/domain"
	"go.uber.org/zap"
)

// AuditRecorder writes audit entries best-effort: a failed write is logged
// and swallowed so it can never roll back or fail the business operation
// that triggered it. Record is always called after commit and after cache
// invalidation.
type AuditRecorder struct {
	store  domain.AuditStore
	logger *zap.Logger
}

func NewAuditRecorder(store domain.AuditStore, logger *zap.Logger) *AuditRecorder {
	return &AuditRecorder{store: store, logger: logger}
}

func (r *AuditRecorder) Record(ctx context.Context, action domain.AuditAction, meta domain.AuditMeta, targetIDs []string, before, after any) {
	entry := &domain.AuditEntry{
		Action:    action,
		Actor:     meta.Actor,
		TargetIDs: targetIDs,
		Before:    snapshot(before),
		After:     snapshot(after),
		Reason:    meta.Reason,
		IP:        meta.IP,
		UserAgent: meta.UserAgent,
	}
	if err := r.store.Create(ctx, entry); err != nil {
		r.logger.Warn("audit write failed",
			zap.String("action", string(action)),
			zap.Strings("target_ids", targetIDs),
			zap.Error(err))
	}
}

func snapshot(v any) json.RawMessage {
	if v == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return b
}
