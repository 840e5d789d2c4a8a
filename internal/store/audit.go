package store

import (
	"context"

	"github.com/finsight/quorum/internal/domain"
)

// AuditStore appends to and reads from the append-only audit log. Rows are
// never updated or deleted.
type AuditStore struct {
	db DB
}

func NewAuditStore(db DB) *AuditStore {
	return &AuditStore{db: db}
}

func (s *AuditStore) Create(ctx context.Context, e *domain.AuditEntry) error {
	return s.db.QueryRow(ctx,
		`INSERT INTO audit_log (action, actor, target_ids, before, after, reason, ip, user_agent)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id, created_at`,
		e.Action, e.Actor, e.TargetIDs, e.Before, e.After, e.Reason, e.IP, e.UserAgent,
	).Scan(&e.ID, &e.CreatedAt)
}

func (s *AuditStore) List(ctx context.Context, action *domain.AuditAction, limit int) ([]domain.AuditEntry, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, action, actor, target_ids, before, after, reason, ip, user_agent, created_at
		 FROM audit_log
		 WHERE $1::text IS NULL OR action = $1
		 ORDER BY created_at DESC
		 LIMIT $2`,
		action, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.AuditEntry
	for rows.Next() {
		var e domain.AuditEntry
		if err := rows.Scan(&e.ID, &e.Action, &e.Actor, &e.TargetIDs, &e.Before, &e.After, &e.Reason, &e.IP, &e.UserAgent, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
