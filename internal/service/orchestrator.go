package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/finsight/quorum/internal/cache"
	"github.com/finsight/quorum/internal/domain"
	"github.com/finsight/quorum/internal/store"
	"go.uber.org/zap"
)

var (
	ErrScraperNotFound        = errors.New("scraper not found")
	ErrScraperExists          = errors.New("scraper already exists")
	ErrInvalidCategory        = errors.New("invalid category")
	ErrInvalidRuntimeClass    = errors.New("invalid runtime class")
	ErrInvalidPriority        = errors.New("priority must be >= 1")
	ErrDuplicatePriority      = errors.New("duplicate priority among enabled scrapers")
	ErrDuplicateInputPriority = errors.New("duplicate priorities in request")
	ErrEnabledFloor           = errors.New("at least 2 scrapers must remain enabled")
	ErrEmptyBatch             = errors.New("no scraper ids given")
)

// OrchestratorService is the control plane over scraper configurations:
// the enabled-sources hot path plus every per-source mutation.
type OrchestratorService struct {
	scrapers domain.ScraperStore
	cache    *cache.SourceCache
	audit    *AuditRecorder
	logger   *zap.Logger
}

func NewOrchestratorService(scrapers domain.ScraperStore, c *cache.SourceCache, audit *AuditRecorder, logger *zap.Logger) *OrchestratorService {
	return &OrchestratorService{scrapers: scrapers, cache: c, audit: audit, logger: logger}
}

// EnabledSources returns the enabled scrapers for a category, filtered by
// ticker allow-list and sorted by ascending priority. Reads go through the
// cache; fewer than the floor at read time is logged as a warning but still
// returned, since collection callers own their fallback behaviour.
func (s *OrchestratorService) EnabledSources(ctx context.Context, ticker *string, category domain.Category) ([]domain.ScraperConfig, error) {
	if !domain.ValidCategory(string(category)) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidCategory, category)
	}

	key := cache.Key(category, ticker)
	if cached, ok := s.cache.Get(key); ok {
		return cached, nil
	}

	configs, err := s.scrapers.ListEnabled(ctx, category)
	if err != nil {
		return nil, err
	}

	filtered := configs[:0:0]
	for _, c := range configs {
		if ticker == nil || c.AppliesTo(*ticker) {
			filtered = append(filtered, c)
		}
	}
	if filtered == nil {
		filtered = []domain.ScraperConfig{}
	}

	if len(filtered) < domain.MinEnabledScrapers {
		s.logger.Warn("fewer than minimum sources enabled for category",
			zap.String("category", string(category)),
			zap.Int("count", len(filtered)))
	}

	s.cache.Set(key, filtered)
	return filtered, nil
}

func (s *OrchestratorService) Get(ctx context.Context, id string) (*domain.ScraperConfig, error) {
	cfg, err := s.scrapers.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: %q", ErrScraperNotFound, id)
		}
		return nil, err
	}
	return cfg, nil
}

func (s *OrchestratorService) List(ctx context.Context) ([]domain.ScraperConfig, error) {
	configs, err := s.scrapers.List(ctx)
	if err != nil {
		return nil, err
	}
	if configs == nil {
		configs = []domain.ScraperConfig{}
	}
	return configs, nil
}

func (s *OrchestratorService) Create(ctx context.Context, cfg *domain.ScraperConfig, meta domain.AuditMeta) (*domain.ScraperConfig, error) {
	if !domain.ValidCategory(string(cfg.Category)) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidCategory, cfg.Category)
	}
	if !domain.ValidRuntimeClass(string(cfg.RuntimeClass)) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRuntimeClass, cfg.RuntimeClass)
	}
	if cfg.Priority < 1 {
		return nil, ErrInvalidPriority
	}

	if cfg.Enabled {
		if err := s.checkPriorityFree(ctx, cfg.Priority, cfg.ID); err != nil {
			return nil, err
		}
	}

	if err := s.scrapers.Create(ctx, cfg); err != nil {
		switch {
		case errors.Is(err, store.ErrConflict):
			return nil, fmt.Errorf("%w: %q", ErrScraperExists, cfg.ID)
		case errors.Is(err, store.ErrPriorityConflict):
			return nil, fmt.Errorf("%w: priority %d", ErrDuplicatePriority, cfg.Priority)
		}
		return nil, err
	}

	s.cache.InvalidateCategory(cfg.Category)
	s.audit.Record(ctx, domain.AuditCreate, meta, []string{cfg.ID}, nil, cfg)
	return cfg, nil
}

// UpdateScraperInput is a partial update: only non-nil fields are applied,
// and Params merges key-by-key into the existing bag.
type UpdateScraperInput struct {
	Name     *string
	Enabled  *bool
	Priority *int
	Tickers  *[]string
	Params   *domain.ScraperParams
}

func (s *OrchestratorService) Update(ctx context.Context, id string, in UpdateScraperInput, meta domain.AuditMeta) (*domain.ScraperConfig, error) {
	cfg, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	before := *cfg

	if in.Name != nil {
		cfg.Name = *in.Name
	}
	if in.Enabled != nil {
		cfg.Enabled = *in.Enabled
	}
	if in.Priority != nil {
		if *in.Priority < 1 {
			return nil, ErrInvalidPriority
		}
		cfg.Priority = *in.Priority
	}
	if in.Tickers != nil {
		cfg.Tickers = *in.Tickers
	}
	if in.Params != nil {
		cfg.Params = cfg.Params.Merge(*in.Params)
	}

	if cfg.Enabled && cfg.Priority != before.Priority {
		if err := s.checkPriorityFree(ctx, cfg.Priority, cfg.ID); err != nil {
			return nil, err
		}
	}

	if err := s.scrapers.Update(ctx, cfg, domain.MinEnabledScrapers); err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			return nil, fmt.Errorf("%w: %q", ErrScraperNotFound, id)
		case errors.Is(err, store.ErrEnabledFloor):
			return nil, fmt.Errorf("%w: %v", ErrEnabledFloor, err)
		case errors.Is(err, store.ErrConflict):
			return nil, fmt.Errorf("%w: priority %d", ErrDuplicatePriority, cfg.Priority)
		}
		return nil, err
	}

	s.cache.InvalidateCategory(cfg.Category)
	s.audit.Record(ctx, domain.AuditUpdate, meta, []string{cfg.ID}, before, cfg)
	return cfg, nil
}

func (s *OrchestratorService) checkPriorityFree(ctx context.Context, priority int, excludeID string) error {
	holder, err := s.scrapers.GetEnabledByPriority(ctx, priority, excludeID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return err
	}
	return fmt.Errorf("%w: priority %d is held by %q", ErrDuplicatePriority, priority, holder.Name)
}

// ToggleEnabled flips a scraper's enabled flag. The store runs the flip
// under a row lock and re-counts after the lock, so concurrent toggles
// cannot jointly break the floor.
func (s *OrchestratorService) ToggleEnabled(ctx context.Context, id string, meta domain.AuditMeta) (*domain.ScraperConfig, error) {
	cfg, err := s.scrapers.ToggleEnabled(ctx, id, domain.MinEnabledScrapers)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			return nil, fmt.Errorf("%w: %q", ErrScraperNotFound, id)
		case errors.Is(err, store.ErrEnabledFloor):
			return nil, fmt.Errorf("%w: %v", ErrEnabledFloor, err)
		}
		return nil, err
	}

	// Commit first, then invalidate, then audit: audit failures must never
	// undo a successful toggle.
	s.cache.InvalidateCategory(cfg.Category)
	s.audit.Record(ctx, domain.AuditToggle, meta, []string{cfg.ID},
		map[string]bool{"enabled": !cfg.Enabled},
		map[string]bool{"enabled": cfg.Enabled})
	return cfg, nil
}

// BulkToggle sets enabled for all ids in one transaction. It either fully
// applies or fully fails; no partial batch survives.
func (s *OrchestratorService) BulkToggle(ctx context.Context, ids []string, enabled bool, meta domain.AuditMeta) (int64, error) {
	if len(ids) == 0 {
		return 0, ErrEmptyBatch
	}

	// Snapshot prior enabled flags for the audit trail before anything
	// changes; ids that match no row are skipped by the bulk update too.
	before := make(map[string]bool, len(ids))
	for _, id := range ids {
		cfg, err := s.scrapers.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			return 0, err
		}
		before[id] = cfg.Enabled
	}

	count, err := s.scrapers.BulkSetEnabled(ctx, ids, enabled, domain.MinEnabledScrapers)
	if err != nil {
		if errors.Is(err, store.ErrEnabledFloor) {
			return 0, fmt.Errorf("%w: %v", ErrEnabledFloor, err)
		}
		return 0, err
	}

	// Affected categories are not tracked per call, so every category
	// cache entry goes.
	s.cache.InvalidateAll()
	s.audit.Record(ctx, domain.AuditBulkToggle, meta,
		ids,
		map[string]any{"enabled": before},
		map[string]any{"enabled": enabled, "count": count})
	return count, nil
}

// UpdatePriorities applies a new priority ordering. The submitted set is
// treated as the authoritative ordering for the rows it names: input
// priorities must be pairwise distinct (checked before any storage is
// touched) and the store writes them with the two-pass placeholder scheme.
func (s *OrchestratorService) UpdatePriorities(ctx context.Context, assignments []domain.PriorityAssignment, meta domain.AuditMeta) error {
	if len(assignments) == 0 {
		return ErrEmptyBatch
	}
	seen := make(map[int]string, len(assignments))
	for _, a := range assignments {
		if a.Priority < 1 {
			return ErrInvalidPriority
		}
		if prev, ok := seen[a.Priority]; ok {
			return fmt.Errorf("%w: priority %d given to both %q and %q",
				ErrDuplicateInputPriority, a.Priority, prev, a.ID)
		}
		seen[a.Priority] = a.ID
	}

	if err := s.scrapers.UpdatePriorities(ctx, assignments); err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			return fmt.Errorf("%w: %v", ErrScraperNotFound, err)
		case errors.Is(err, store.ErrConflict):
			return fmt.Errorf("%w: %v", ErrDuplicatePriority, err)
		}
		return err
	}

	ids := make([]string, len(assignments))
	for i, a := range assignments {
		ids[i] = a.ID
	}
	s.cache.InvalidateAll()
	s.audit.Record(ctx, domain.AuditUpdatePriority, meta, ids, nil, assignments)
	return nil
}

// PreviewImpact resolves the candidate ids and runs the pure what-if
// estimator. Nothing is persisted and no audit entry is written.
func (s *OrchestratorService) PreviewImpact(ctx context.Context, ids []string) (*domain.ImpactEstimate, error) {
	configs := make([]domain.ScraperConfig, 0, len(ids))
	for _, id := range ids {
		cfg, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		configs = append(configs, *cfg)
	}
	est := EstimateImpact(configs)
	return &est, nil
}
