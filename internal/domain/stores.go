package domain

import "context"

// ScraperStore persists scraper configurations. Mutations that could break
// the enabled floor or the unique-priority invariant run inside a single
// transaction with row locks held before re-validation.
type ScraperStore interface {
	Create(ctx context.Context, c *ScraperConfig) error
	GetByID(ctx context.Context, id string) (*ScraperConfig, error)
	List(ctx context.Context) ([]ScraperConfig, error)
	ListEnabled(ctx context.Context, category Category) ([]ScraperConfig, error)
	CountEnabled(ctx context.Context) (int, error)
	// GetEnabledByPriority finds the enabled row holding a priority,
	// excluding excludeID. Used to name the conflicting scraper on
	// duplicate-priority violations.
	GetEnabledByPriority(ctx context.Context, priority int, excludeID string) (*ScraperConfig, error)

	// Update persists every mutable field of c. Inside its transaction it
	// locks the row and, when the update disables a currently enabled row,
	// rejects if fewer than minEnabled rows would remain enabled.
	Update(ctx context.Context, c *ScraperConfig, minEnabled int) error
	// ToggleEnabled flips the enabled flag under a row lock, enforcing the
	// floor when disabling. Returns the updated row.
	ToggleEnabled(ctx context.Context, id string, minEnabled int) (*ScraperConfig, error)
	// BulkSetEnabled sets enabled for all ids in one statement, then
	// re-counts; below the floor the whole transaction rolls back.
	BulkSetEnabled(ctx context.Context, ids []string, enabled bool, minEnabled int) (int64, error)
	// UpdatePriorities applies each assignment in one transaction using a
	// negative-placeholder first pass so the partial unique index on
	// (priority) WHERE enabled never trips mid-flight.
	UpdatePriorities(ctx context.Context, assignments []PriorityAssignment) error
	// ApplyProfile disables every row, enables scraperIDs and assigns
	// priorities 1..N following priorityOrder, atomically. The transaction
	// rolls back if fewer than minEnabled rows would end up enabled.
	ApplyProfile(ctx context.Context, scraperIDs, priorityOrder []string, minEnabled int) (int, error)
}

// ProfileStore persists execution profiles.
type ProfileStore interface {
	Create(ctx context.Context, p *ExecutionProfile) error
	GetByID(ctx context.Context, id string) (*ExecutionProfile, error)
	List(ctx context.Context) ([]ExecutionProfile, error)
	Update(ctx context.Context, p *ExecutionProfile) error
	Delete(ctx context.Context, id string) error
}

// CrossValidationStore persists the singleton cross-validation config with
// an optimistic version counter.
type CrossValidationStore interface {
	Get(ctx context.Context) (*CrossValidationConfig, error)
	// Update persists c if the stored version still equals expectedVersion,
	// bumping the version on success.
	Update(ctx context.Context, c *CrossValidationConfig, expectedVersion int) error
}

// AuditStore appends and reads audit entries. Writers treat failures as
// non-fatal.
type AuditStore interface {
	Create(ctx context.Context, e *AuditEntry) error
	List(ctx context.Context, action *AuditAction, limit int) ([]AuditEntry, error)
}
