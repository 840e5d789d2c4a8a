package store

import (
	"context"
	"errors"

	"github.com/finsight/quorum/internal/domain"
	"github.com/jackc/pgx/v5"
)

type ProfileStore struct {
	db DB
}

func NewProfileStore(db DB) *ProfileStore {
	return &ProfileStore{db: db}
}

const profileColumns = `id, name, description, scraper_ids, priority_order, min_sources, system, created_at, updated_at`

func scanProfile(row rowScanner) (*domain.ExecutionProfile, error) {
	p := &domain.ExecutionProfile{}
	err := row.Scan(
		&p.ID, &p.Name, &p.Description, &p.ScraperIDs, &p.PriorityOrder,
		&p.MinSources, &p.System, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return p, nil
}

func (s *ProfileStore) Create(ctx context.Context, p *domain.ExecutionProfile) error {
	err := s.db.QueryRow(ctx,
		`INSERT INTO execution_profiles (id, name, description, scraper_ids, priority_order, min_sources, system)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING created_at, updated_at`,
		p.ID, p.Name, p.Description, p.ScraperIDs, p.PriorityOrder, p.MinSources, p.System,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return err
	}
	return nil
}

func (s *ProfileStore) GetByID(ctx context.Context, id string) (*domain.ExecutionProfile, error) {
	return scanProfile(s.db.QueryRow(ctx,
		`SELECT `+profileColumns+` FROM execution_profiles WHERE id = $1`, id))
}

func (s *ProfileStore) List(ctx context.Context) ([]domain.ExecutionProfile, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+profileColumns+` FROM execution_profiles ORDER BY system DESC, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var profiles []domain.ExecutionProfile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, *p)
	}
	return profiles, rows.Err()
}

func (s *ProfileStore) Update(ctx context.Context, p *domain.ExecutionProfile) error {
	err := s.db.QueryRow(ctx,
		`UPDATE execution_profiles
		 SET name = $2, description = $3, scraper_ids = $4, priority_order = $5, min_sources = $6, updated_at = now()
		 WHERE id = $1
		 RETURNING updated_at`,
		p.ID, p.Name, p.Description, p.ScraperIDs, p.PriorityOrder, p.MinSources,
	).Scan(&p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

func (s *ProfileStore) Delete(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM execution_profiles WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
