package store

import (
	"context"
	"errors"

	"github.com/finsight/quorum/internal/domain"
	"github.com/jackc/pgx/v5"
)

// CrossValidationStore persists the singleton engine config as one row with
// an optimistic version counter.
type CrossValidationStore struct {
	db DB
}

func NewCrossValidationStore(db DB) *CrossValidationStore {
	return &CrossValidationStore{db: db}
}

func (s *CrossValidationStore) Get(ctx context.Context) (*domain.CrossValidationConfig, error) {
	c := &domain.CrossValidationConfig{}
	err := s.db.QueryRow(ctx,
		`SELECT min_sources, threshold_high, threshold_medium, default_tolerance,
		        field_tolerances, source_priority, version, updated_at
		 FROM cross_validation_config WHERE id = 1`,
	).Scan(
		&c.MinSources, &c.ThresholdHigh, &c.ThresholdMedium, &c.DefaultTolerance,
		&c.FieldTolerances, &c.SourcePriority, &c.Version, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return c, nil
}

func (s *CrossValidationStore) Update(ctx context.Context, c *domain.CrossValidationConfig, expectedVersion int) error {
	err := s.db.QueryRow(ctx,
		`UPDATE cross_validation_config
		 SET min_sources = $1, threshold_high = $2, threshold_medium = $3,
		     default_tolerance = $4, field_tolerances = $5, source_priority = $6,
		     version = version + 1, updated_at = now()
		 WHERE id = 1 AND version = $7
		 RETURNING version, updated_at`,
		c.MinSources, c.ThresholdHigh, c.ThresholdMedium,
		c.DefaultTolerance, c.FieldTolerances, c.SourcePriority,
		expectedVersion,
	).Scan(&c.Version, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrStaleVersion
		}
		return err
	}
	return nil
}
