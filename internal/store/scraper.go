package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/finsight/quorum/internal/domain"
	"github.com/jackc/pgx/v5"
)

type ScraperStore struct {
	db DB
}

func NewScraperStore(db DB) *ScraperStore {
	return &ScraperStore{db: db}
}

const scraperColumns = `id, name, runtime_class, category, enabled, priority, tickers, params, success_rate, avg_latency_ms, created_at, updated_at`

// Partial unique index guarding priorities of enabled rows; see migrations.
const enabledPriorityIdx = "scraper_configs_enabled_priority_idx"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanScraper(row rowScanner) (*domain.ScraperConfig, error) {
	c := &domain.ScraperConfig{}
	err := row.Scan(
		&c.ID, &c.Name, &c.RuntimeClass, &c.Category, &c.Enabled, &c.Priority,
		&c.Tickers, &c.Params, &c.SuccessRate, &c.AvgLatencyMs, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return c, nil
}

func (s *ScraperStore) Create(ctx context.Context, c *domain.ScraperConfig) error {
	err := s.db.QueryRow(ctx,
		`INSERT INTO scraper_configs (id, name, runtime_class, category, enabled, priority, tickers, params)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING created_at, updated_at`,
		c.ID, c.Name, c.RuntimeClass, c.Category, c.Enabled, c.Priority, c.Tickers, c.Params,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		// An insert can trip either the primary key or the enabled-priority
		// index; the caller reports them differently.
		if constraint, ok := uniqueViolation(err); ok {
			if constraint == enabledPriorityIdx {
				return fmt.Errorf("%w: priority %d", ErrPriorityConflict, c.Priority)
			}
			return ErrConflict
		}
		return err
	}
	return nil
}

func (s *ScraperStore) GetByID(ctx context.Context, id string) (*domain.ScraperConfig, error) {
	return scanScraper(s.db.QueryRow(ctx,
		`SELECT `+scraperColumns+` FROM scraper_configs WHERE id = $1`, id))
}

func (s *ScraperStore) List(ctx context.Context) ([]domain.ScraperConfig, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+scraperColumns+` FROM scraper_configs ORDER BY category, priority, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectScrapers(rows)
}

func (s *ScraperStore) ListEnabled(ctx context.Context, category domain.Category) ([]domain.ScraperConfig, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+scraperColumns+` FROM scraper_configs
		 WHERE enabled AND category = $1
		 ORDER BY priority`,
		category)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectScrapers(rows)
}

func collectScrapers(rows pgx.Rows) ([]domain.ScraperConfig, error) {
	var configs []domain.ScraperConfig
	for rows.Next() {
		c, err := scanScraper(rows)
		if err != nil {
			return nil, err
		}
		configs = append(configs, *c)
	}
	return configs, rows.Err()
}

func (s *ScraperStore) CountEnabled(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRow(ctx, `SELECT count(*) FROM scraper_configs WHERE enabled`).Scan(&n)
	return n, err
}

func (s *ScraperStore) GetEnabledByPriority(ctx context.Context, priority int, excludeID string) (*domain.ScraperConfig, error) {
	return scanScraper(s.db.QueryRow(ctx,
		`SELECT `+scraperColumns+` FROM scraper_configs
		 WHERE enabled AND priority = $1 AND id <> $2`,
		priority, excludeID))
}

// Update persists every mutable field of c. The row is locked first; when
// the update disables a currently enabled row, the enabled count is re-read
// under the lock and the transaction fails below the floor.
func (s *ScraperStore) Update(ctx context.Context, c *domain.ScraperConfig, minEnabled int) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var wasEnabled bool
	err = tx.QueryRow(ctx,
		`SELECT enabled FROM scraper_configs WHERE id = $1 FOR UPDATE`, c.ID,
	).Scan(&wasEnabled)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}

	if wasEnabled && !c.Enabled {
		var enabled int
		if err := tx.QueryRow(ctx, `SELECT count(*) FROM scraper_configs WHERE enabled`).Scan(&enabled); err != nil {
			return err
		}
		if enabled-1 < minEnabled {
			return fmt.Errorf("%w: disabling %q would leave %d enabled", ErrEnabledFloor, c.ID, enabled-1)
		}
	}

	err = tx.QueryRow(ctx,
		`UPDATE scraper_configs
		 SET name = $2, enabled = $3, priority = $4, tickers = $5, params = $6, updated_at = now()
		 WHERE id = $1
		 RETURNING updated_at`,
		c.ID, c.Name, c.Enabled, c.Priority, c.Tickers, c.Params,
	).Scan(&c.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return err
	}

	return tx.Commit(ctx)
}

// ToggleEnabled flips the enabled flag under a row lock. Two concurrent
// toggles serialize on the lock, so the second one re-counts against the
// first one's committed state and rejects correctly.
func (s *ScraperStore) ToggleEnabled(ctx context.Context, id string, minEnabled int) (*domain.ScraperConfig, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	cfg, err := scanScraper(tx.QueryRow(ctx,
		`SELECT `+scraperColumns+` FROM scraper_configs WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, err
	}

	if cfg.Enabled {
		var enabled int
		if err := tx.QueryRow(ctx, `SELECT count(*) FROM scraper_configs WHERE enabled`).Scan(&enabled); err != nil {
			return nil, err
		}
		if enabled-1 < minEnabled {
			return nil, fmt.Errorf("%w: disabling %q would leave %d enabled", ErrEnabledFloor, cfg.Name, enabled-1)
		}
	}

	cfg.Enabled = !cfg.Enabled
	err = tx.QueryRow(ctx,
		`UPDATE scraper_configs SET enabled = $2, updated_at = now() WHERE id = $1 RETURNING updated_at`,
		id, cfg.Enabled,
	).Scan(&cfg.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return cfg, nil
}

// BulkSetEnabled flips all ids in one statement, then re-counts the whole
// table. Below the floor nothing is applied.
func (s *ScraperStore) BulkSetEnabled(ctx context.Context, ids []string, enabled bool, minEnabled int) (int64, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx,
		`UPDATE scraper_configs SET enabled = $2, updated_at = now() WHERE id = ANY($1)`,
		ids, enabled)
	if err != nil {
		return 0, err
	}

	var total int
	if err := tx.QueryRow(ctx, `SELECT count(*) FROM scraper_configs WHERE enabled`).Scan(&total); err != nil {
		return 0, err
	}
	if total < minEnabled {
		return 0, fmt.Errorf("%w: bulk toggle would leave %d enabled", ErrEnabledFloor, total)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// UpdatePriorities applies the assignments in two passes: first each row
// gets a unique negative placeholder, then the final positive value. The
// partial unique index on priority (scoped to enabled rows) therefore never
// sees an intermediate collision.
func (s *ScraperStore) UpdatePriorities(ctx context.Context, assignments []domain.PriorityAssignment) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := reassignPriorities(ctx, tx, assignments); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func reassignPriorities(ctx context.Context, tx pgx.Tx, assignments []domain.PriorityAssignment) error {
	for i, a := range assignments {
		tag, err := tx.Exec(ctx,
			`UPDATE scraper_configs SET priority = $2, updated_at = now() WHERE id = $1`,
			a.ID, -(i + 1))
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("%w: scraper %q", ErrNotFound, a.ID)
		}
	}
	for _, a := range assignments {
		if _, err := tx.Exec(ctx,
			`UPDATE scraper_configs SET priority = $2, updated_at = now() WHERE id = $1`,
			a.ID, a.Priority); err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: priority %d", ErrConflict, a.Priority)
			}
			return err
		}
	}
	return nil
}

// ApplyProfile is the one big state transition: disable everything, enable
// exactly scraperIDs, then write priorities 1..N following priorityOrder.
// Disabled rows keep stale priorities; the unique index only covers enabled
// rows, so those are allowed to collide. The enabled count is re-read before
// commit so a profile can never land the table below the floor.
func (s *ScraperStore) ApplyProfile(ctx context.Context, scraperIDs, priorityOrder []string, minEnabled int) (int, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx,
		`UPDATE scraper_configs SET enabled = false, updated_at = now() WHERE enabled`); err != nil {
		return 0, err
	}

	tag, err := tx.Exec(ctx,
		`UPDATE scraper_configs SET enabled = true, updated_at = now() WHERE id = ANY($1)`,
		scraperIDs)
	if err != nil {
		return 0, err
	}
	if int(tag.RowsAffected()) != len(scraperIDs) {
		return 0, fmt.Errorf("%w: profile names %d scrapers, matched %d",
			ErrNotFound, len(scraperIDs), tag.RowsAffected())
	}

	assignments := make([]domain.PriorityAssignment, len(priorityOrder))
	for i, id := range priorityOrder {
		assignments[i] = domain.PriorityAssignment{ID: id, Priority: i + 1}
	}
	if err := reassignPriorities(ctx, tx, assignments); err != nil {
		return 0, err
	}

	var enabled int
	if err := tx.QueryRow(ctx, `SELECT count(*) FROM scraper_configs WHERE enabled`).Scan(&enabled); err != nil {
		return 0, err
	}
	if enabled < minEnabled {
		return 0, fmt.Errorf("%w: applying profile would leave %d enabled", ErrEnabledFloor, enabled)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return len(scraperIDs), nil
}
