package service

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/finsight/quorum/internal/domain"
	"github.com/finsight/quorum/internal/store"
)

// mockScraperStore is an in-memory ScraperStore with the same invariant
// semantics as the SQL implementation.
type mockScraperStore struct {
	scrapers map[string]*domain.ScraperConfig
}

func newMockScraperStore() *mockScraperStore {
	return &mockScraperStore{scrapers: make(map[string]*domain.ScraperConfig)}
}

func (m *mockScraperStore) add(id string, category domain.Category, class domain.RuntimeClass, enabled bool, priority int) *domain.ScraperConfig {
	c := &domain.ScraperConfig{
		ID:           id,
		Name:         id,
		Category:     category,
		RuntimeClass: class,
		Enabled:      enabled,
		Priority:     priority,
	}
	m.scrapers[id] = c
	return c
}

func (m *mockScraperStore) sortedIDs() []string {
	ids := make([]string, 0, len(m.scrapers))
	for id := range m.scrapers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (m *mockScraperStore) enabledCount() int {
	n := 0
	for _, c := range m.scrapers {
		if c.Enabled {
			n++
		}
	}
	return n
}

func (m *mockScraperStore) Create(ctx context.Context, c *domain.ScraperConfig) error {
	if _, ok := m.scrapers[c.ID]; ok {
		return store.ErrConflict
	}
	cp := *c
	m.scrapers[c.ID] = &cp
	return nil
}

func (m *mockScraperStore) GetByID(ctx context.Context, id string) (*domain.ScraperConfig, error) {
	c, ok := m.scrapers[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *mockScraperStore) List(ctx context.Context) ([]domain.ScraperConfig, error) {
	var out []domain.ScraperConfig
	for _, id := range m.sortedIDs() {
		out = append(out, *m.scrapers[id])
	}
	return out, nil
}

func (m *mockScraperStore) ListEnabled(ctx context.Context, category domain.Category) ([]domain.ScraperConfig, error) {
	var out []domain.ScraperConfig
	for _, id := range m.sortedIDs() {
		c := m.scrapers[id]
		if c.Enabled && c.Category == category {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Priority < out[j].Priority })
	return out, nil
}

func (m *mockScraperStore) CountEnabled(ctx context.Context) (int, error) {
	return m.enabledCount(), nil
}

func (m *mockScraperStore) GetEnabledByPriority(ctx context.Context, priority int, excludeID string) (*domain.ScraperConfig, error) {
	for _, id := range m.sortedIDs() {
		c := m.scrapers[id]
		if c.Enabled && c.Priority == priority && c.ID != excludeID {
			cp := *c
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *mockScraperStore) Update(ctx context.Context, c *domain.ScraperConfig, minEnabled int) error {
	existing, ok := m.scrapers[c.ID]
	if !ok {
		return store.ErrNotFound
	}
	if existing.Enabled && !c.Enabled && m.enabledCount()-1 < minEnabled {
		return fmt.Errorf("%w: disabling %q would leave %d enabled", store.ErrEnabledFloor, c.ID, m.enabledCount()-1)
	}
	if c.Enabled {
		for _, other := range m.scrapers {
			if other.ID != c.ID && other.Enabled && other.Priority == c.Priority {
				return store.ErrConflict
			}
		}
	}
	cp := *c
	m.scrapers[c.ID] = &cp
	return nil
}

func (m *mockScraperStore) ToggleEnabled(ctx context.Context, id string, minEnabled int) (*domain.ScraperConfig, error) {
	c, ok := m.scrapers[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if c.Enabled && m.enabledCount()-1 < minEnabled {
		return nil, fmt.Errorf("%w: disabling %q would leave %d enabled", store.ErrEnabledFloor, c.Name, m.enabledCount()-1)
	}
	c.Enabled = !c.Enabled
	cp := *c
	return &cp, nil
}

func (m *mockScraperStore) BulkSetEnabled(ctx context.Context, ids []string, enabled bool, minEnabled int) (int64, error) {
	// Stage the change, count, and only commit if the floor holds.
	staged := make(map[string]bool)
	for _, c := range m.scrapers {
		staged[c.ID] = c.Enabled
	}
	var affected int64
	for _, id := range ids {
		if _, ok := staged[id]; ok {
			staged[id] = enabled
			affected++
		}
	}
	total := 0
	for _, en := range staged {
		if en {
			total++
		}
	}
	if total < minEnabled {
		return 0, fmt.Errorf("%w: bulk toggle would leave %d enabled", store.ErrEnabledFloor, total)
	}
	for id, en := range staged {
		m.scrapers[id].Enabled = en
	}
	return affected, nil
}

func (m *mockScraperStore) UpdatePriorities(ctx context.Context, assignments []domain.PriorityAssignment) error {
	for _, a := range assignments {
		if _, ok := m.scrapers[a.ID]; !ok {
			return fmt.Errorf("%w: scraper %q", store.ErrNotFound, a.ID)
		}
	}
	for _, a := range assignments {
		m.scrapers[a.ID].Priority = a.Priority
	}
	return nil
}

func (m *mockScraperStore) ApplyProfile(ctx context.Context, scraperIDs, priorityOrder []string, minEnabled int) (int, error) {
	for _, id := range scraperIDs {
		if _, ok := m.scrapers[id]; !ok {
			return 0, fmt.Errorf("%w: scraper %q", store.ErrNotFound, id)
		}
	}
	// The applied state enables exactly scraperIDs; check the floor before
	// mutating anything.
	if len(scraperIDs) < minEnabled {
		return 0, fmt.Errorf("%w: applying profile would leave %d enabled", store.ErrEnabledFloor, len(scraperIDs))
	}
	for _, c := range m.scrapers {
		c.Enabled = false
	}
	for _, id := range scraperIDs {
		m.scrapers[id].Enabled = true
	}
	for i, id := range priorityOrder {
		m.scrapers[id].Priority = i + 1
	}
	return len(scraperIDs), nil
}

type mockProfileStore struct {
	profiles map[string]*domain.ExecutionProfile
}

func newMockProfileStore() *mockProfileStore {
	return &mockProfileStore{profiles: make(map[string]*domain.ExecutionProfile)}
}

func (m *mockProfileStore) Create(ctx context.Context, p *domain.ExecutionProfile) error {
	if _, ok := m.profiles[p.ID]; ok {
		return store.ErrConflict
	}
	cp := *p
	m.profiles[p.ID] = &cp
	return nil
}

func (m *mockProfileStore) GetByID(ctx context.Context, id string) (*domain.ExecutionProfile, error) {
	p, ok := m.profiles[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *mockProfileStore) List(ctx context.Context) ([]domain.ExecutionProfile, error) {
	ids := make([]string, 0, len(m.profiles))
	for id := range m.profiles {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	var out []domain.ExecutionProfile
	for _, id := range ids {
		out = append(out, *m.profiles[id])
	}
	return out, nil
}

func (m *mockProfileStore) Update(ctx context.Context, p *domain.ExecutionProfile) error {
	if _, ok := m.profiles[p.ID]; !ok {
		return store.ErrNotFound
	}
	cp := *p
	m.profiles[p.ID] = &cp
	return nil
}

func (m *mockProfileStore) Delete(ctx context.Context, id string) error {
	if _, ok := m.profiles[id]; !ok {
		return store.ErrNotFound
	}
	delete(m.profiles, id)
	return nil
}

type mockAuditStore struct {
	entries  []domain.AuditEntry
	failNext bool
}

func newMockAuditStore() *mockAuditStore {
	return &mockAuditStore{}
}

func (m *mockAuditStore) Create(ctx context.Context, e *domain.AuditEntry) error {
	if m.failNext {
		m.failNext = false
		return errors.New("audit store down")
	}
	m.entries = append(m.entries, *e)
	return nil
}

func (m *mockAuditStore) List(ctx context.Context, action *domain.AuditAction, limit int) ([]domain.AuditEntry, error) {
	var out []domain.AuditEntry
	for i := len(m.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if action == nil || m.entries[i].Action == *action {
			out = append(out, m.entries[i])
		}
	}
	return out, nil
}

type mockCrossValStore struct {
	cfg domain.CrossValidationConfig
}

func newMockCrossValStore() *mockCrossValStore {
	return &mockCrossValStore{cfg: domain.CrossValidationConfig{
		MinSources:       3,
		ThresholdHigh:    20,
		ThresholdMedium:  10,
		DefaultTolerance: 5,
	}}
}

func (m *mockCrossValStore) Get(ctx context.Context) (*domain.CrossValidationConfig, error) {
	cp := m.cfg
	return &cp, nil
}

func (m *mockCrossValStore) Update(ctx context.Context, c *domain.CrossValidationConfig, expectedVersion int) error {
	if m.cfg.Version != expectedVersion {
		return store.ErrStaleVersion
	}
	cp := *c
	cp.Version = expectedVersion + 1
	m.cfg = cp
	c.Version = cp.Version
	return nil
}
