package domain

import "time"

// ExecutionProfile is a named, reusable target configuration. Applying a
// profile enables exactly ScraperIDs and assigns priorities following
// PriorityOrder, disabling everything else.
type ExecutionProfile struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description,omitempty"`
	ScraperIDs    []string  `json:"scraper_ids"`
	PriorityOrder []string  `json:"priority_order"` // permutation of ScraperIDs; index 0 = priority 1
	MinSources    int       `json:"min_sources"`
	System        bool      `json:"system"` // seeded profiles, immutable
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
