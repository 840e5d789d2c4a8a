package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the subset of pgxpool.Pool the stores use. pgxmock's pool satisfies
// it, which keeps store tests off a live database.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
	// ErrPriorityConflict is returned when a write trips the unique index
	// on (priority) WHERE enabled rather than a primary key.
	ErrPriorityConflict = errors.New("priority conflict")
	// ErrEnabledFloor is returned when a mutation would leave fewer enabled
	// scrapers than the business floor allows.
	ErrEnabledFloor = errors.New("enabled scraper floor")
	// ErrStaleVersion is returned when an optimistic-version update loses
	// the race.
	ErrStaleVersion = errors.New("stale version")
)

func isUniqueViolation(err error) bool {
	_, ok := uniqueViolation(err)
	return ok
}

// uniqueViolation reports the violated constraint name when err is a
// Postgres unique violation.
func uniqueViolation(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return pgErr.ConstraintName, true
	}
	return "", false
}
