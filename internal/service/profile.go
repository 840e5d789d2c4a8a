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
	ErrProfileNotFound     = errors.New("profile not found")
	ErrProfileExists       = errors.New("profile already exists")
	ErrSystemProfile       = errors.New("system profiles cannot be modified or deleted")
	ErrOrderNotPermutation = errors.New("priority_order must be a permutation of scraper_ids")
	ErrUnknownScraper      = errors.New("profile references unknown scraper")
	ErrProfileMinSources   = errors.New("min_sources must be at least 2")
	ErrProfileTooFew       = errors.New("profile must name at least min_sources scrapers")
	ErrProfileEmpty        = errors.New("profile must name at least one scraper")
)

// ProfileService manages execution profiles and the atomic profile-apply
// state transition.
type ProfileService struct {
	profiles domain.ProfileStore
	scrapers domain.ScraperStore
	cache    *cache.SourceCache
	audit    *AuditRecorder
	logger   *zap.Logger
}

func NewProfileService(profiles domain.ProfileStore, scrapers domain.ScraperStore, c *cache.SourceCache, audit *AuditRecorder, logger *zap.Logger) *ProfileService {
	return &ProfileService{profiles: profiles, scrapers: scrapers, cache: c, audit: audit, logger: logger}
}

func (s *ProfileService) Get(ctx context.Context, id string) (*domain.ExecutionProfile, error) {
	p, err := s.profiles.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: %q", ErrProfileNotFound, id)
		}
		return nil, err
	}
	return p, nil
}

func (s *ProfileService) List(ctx context.Context) ([]domain.ExecutionProfile, error) {
	profiles, err := s.profiles.List(ctx)
	if err != nil {
		return nil, err
	}
	if profiles == nil {
		profiles = []domain.ExecutionProfile{}
	}
	return profiles, nil
}

func (s *ProfileService) Create(ctx context.Context, p *domain.ExecutionProfile, meta domain.AuditMeta) (*domain.ExecutionProfile, error) {
	if err := s.validate(ctx, p); err != nil {
		return nil, err
	}
	p.System = false

	if err := s.profiles.Create(ctx, p); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, fmt.Errorf("%w: %q", ErrProfileExists, p.ID)
		}
		return nil, err
	}

	s.audit.Record(ctx, domain.AuditCreateProfile, meta, []string{p.ID}, nil, p)
	return p, nil
}

func (s *ProfileService) Update(ctx context.Context, id string, p *domain.ExecutionProfile, meta domain.AuditMeta) (*domain.ExecutionProfile, error) {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing.System {
		return nil, fmt.Errorf("%w: %q", ErrSystemProfile, id)
	}

	p.ID = id
	if err := s.validate(ctx, p); err != nil {
		return nil, err
	}

	if err := s.profiles.Update(ctx, p); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: %q", ErrProfileNotFound, id)
		}
		return nil, err
	}

	// A reordered profile can affect any category once applied, so the
	// whole cache goes.
	s.cache.InvalidateAll()
	s.audit.Record(ctx, domain.AuditUpdateProfile, meta, []string{id}, existing, p)
	return p, nil
}

func (s *ProfileService) Delete(ctx context.Context, id string, meta domain.AuditMeta) error {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if existing.System {
		return fmt.Errorf("%w: %q", ErrSystemProfile, id)
	}

	if err := s.profiles.Delete(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: %q", ErrProfileNotFound, id)
		}
		return err
	}

	s.audit.Record(ctx, domain.AuditDeleteProfile, meta, []string{id}, existing, nil)
	return nil
}

// ApplyResult reports the outcome of applying a profile.
type ApplyResult struct {
	AppliedCount int    `json:"applied_count"`
	Message      string `json:"message"`
}

// Apply performs the one big state transition: enable exactly the profile's
// scraper set with priorities following its order, disable everything else,
// all in one transaction. Any failure rolls the whole thing back.
func (s *ProfileService) Apply(ctx context.Context, id string, meta domain.AuditMeta) (*ApplyResult, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	// Scrapers may have been created or renamed since the profile was
	// saved; re-validate the references before touching state.
	if err := s.validate(ctx, p); err != nil {
		return nil, err
	}

	count, err := s.scrapers.ApplyProfile(ctx, p.ScraperIDs, p.PriorityOrder, domain.MinEnabledScrapers)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			return nil, fmt.Errorf("%w: %v", ErrUnknownScraper, err)
		case errors.Is(err, store.ErrEnabledFloor):
			return nil, fmt.Errorf("%w: %v", ErrEnabledFloor, err)
		}
		return nil, err
	}

	s.cache.InvalidateAll()
	s.audit.Record(ctx, domain.AuditApplyProfile, meta, append([]string{id}, p.ScraperIDs...),
		nil, map[string]any{"profile": id, "enabled": p.ScraperIDs, "order": p.PriorityOrder})

	s.logger.Info("profile applied",
		zap.String("profile", id),
		zap.Int("scrapers", count))

	return &ApplyResult{
		AppliedCount: count,
		Message:      fmt.Sprintf("profile %q applied: %d scrapers enabled", p.Name, count),
	}, nil
}

func (s *ProfileService) validate(ctx context.Context, p *domain.ExecutionProfile) error {
	if len(p.ScraperIDs) == 0 {
		return ErrProfileEmpty
	}
	if p.MinSources < domain.MinEnabledScrapers {
		return ErrProfileMinSources
	}
	// Applying a profile enables exactly its scraper set, so a profile
	// naming fewer scrapers than min_sources could never satisfy the
	// enabled floor once applied.
	if len(p.ScraperIDs) < p.MinSources {
		return fmt.Errorf("%w: %d named, min_sources %d", ErrProfileTooFew, len(p.ScraperIDs), p.MinSources)
	}

	// priority_order must be exactly a permutation of scraper_ids: same
	// length, containment both directions, no duplicates.
	if len(p.PriorityOrder) != len(p.ScraperIDs) {
		return ErrOrderNotPermutation
	}
	ids := make(map[string]bool, len(p.ScraperIDs))
	for _, id := range p.ScraperIDs {
		if ids[id] {
			return fmt.Errorf("%w: duplicate scraper id %q", ErrOrderNotPermutation, id)
		}
		ids[id] = true
	}
	ordered := make(map[string]bool, len(p.PriorityOrder))
	for _, id := range p.PriorityOrder {
		if !ids[id] {
			return fmt.Errorf("%w: %q not in scraper_ids", ErrOrderNotPermutation, id)
		}
		if ordered[id] {
			return fmt.Errorf("%w: %q listed twice in priority_order", ErrOrderNotPermutation, id)
		}
		ordered[id] = true
	}

	for _, id := range p.ScraperIDs {
		if _, err := s.scrapers.GetByID(ctx, id); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("%w: %q", ErrUnknownScraper, id)
			}
			return err
		}
	}
	return nil
}
