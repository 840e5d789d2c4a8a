package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/finsight/quorum/internal/domain"
	"github.com/finsight/quorum/internal/store"
	"go.uber.org/zap"
)

var (
	ErrCrossValMinSources = errors.New("min_sources must be at least 2")
	ErrCrossValThresholds = errors.New("threshold_high must be >= threshold_medium and both positive")
	ErrCrossValTolerance  = errors.New("tolerances must be >= 0")
	ErrStaleConfigVersion = errors.New("cross-validation config was modified concurrently")
)

// CrossValidationService owns the singleton engine config. Consensus itself
// is pure: callers fetch the config here and pass it into ComputeConsensus.
type CrossValidationService struct {
	store  domain.CrossValidationStore
	audit  *AuditRecorder
	logger *zap.Logger
}

func NewCrossValidationService(s domain.CrossValidationStore, audit *AuditRecorder, logger *zap.Logger) *CrossValidationService {
	return &CrossValidationService{store: s, audit: audit, logger: logger}
}

func (s *CrossValidationService) Get(ctx context.Context) (*domain.CrossValidationConfig, error) {
	return s.store.Get(ctx)
}

// UpdateCrossValInput is a partial update over the singleton config.
type UpdateCrossValInput struct {
	MinSources       *int
	ThresholdHigh    *float64
	ThresholdMedium  *float64
	DefaultTolerance *float64
	FieldTolerances  map[string]float64
	SourcePriority   []string
	// Version is the version the caller read; the update fails if someone
	// else committed in between.
	Version int
}

func (s *CrossValidationService) Update(ctx context.Context, in UpdateCrossValInput, meta domain.AuditMeta) (*domain.CrossValidationConfig, error) {
	cfg, err := s.store.Get(ctx)
	if err != nil {
		return nil, err
	}
	before := *cfg

	if in.MinSources != nil {
		cfg.MinSources = *in.MinSources
	}
	if in.ThresholdHigh != nil {
		cfg.ThresholdHigh = *in.ThresholdHigh
	}
	if in.ThresholdMedium != nil {
		cfg.ThresholdMedium = *in.ThresholdMedium
	}
	if in.DefaultTolerance != nil {
		cfg.DefaultTolerance = *in.DefaultTolerance
	}
	if in.FieldTolerances != nil {
		cfg.FieldTolerances = in.FieldTolerances
	}
	if in.SourcePriority != nil {
		cfg.SourcePriority = in.SourcePriority
	}

	// Consensus over a single source is no consensus; the floor matches
	// the enabled-scraper minimum.
	if cfg.MinSources < domain.MinEnabledScrapers {
		return nil, ErrCrossValMinSources
	}
	if cfg.ThresholdHigh <= 0 || cfg.ThresholdMedium <= 0 || cfg.ThresholdHigh < cfg.ThresholdMedium {
		return nil, ErrCrossValThresholds
	}
	if cfg.DefaultTolerance < 0 {
		return nil, ErrCrossValTolerance
	}
	for field, t := range cfg.FieldTolerances {
		if t < 0 {
			return nil, fmt.Errorf("%w: field %q", ErrCrossValTolerance, field)
		}
	}

	if err := s.store.Update(ctx, cfg, in.Version); err != nil {
		if errors.Is(err, store.ErrStaleVersion) {
			return nil, ErrStaleConfigVersion
		}
		return nil, err
	}

	s.audit.Record(ctx, domain.AuditUpdateCrossVal, meta, nil, before, cfg)
	return cfg, nil
}
