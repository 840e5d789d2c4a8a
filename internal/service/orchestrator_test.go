package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/finsight/quorum/internal/cache"
	"github.com/finsight/quorum/internal/domain"
	"go.uber.org/zap"
)

func setupOrchestratorTest() (*OrchestratorService, *mockScraperStore, *mockAuditStore, *cache.SourceCache) {
	scrapers := newMockScraperStore()
	auditStore := newMockAuditStore()
	c := cache.New(64, time.Minute)
	svc := NewOrchestratorService(scrapers, c, NewAuditRecorder(auditStore, zap.NewNop()), zap.NewNop())
	return svc, scrapers, auditStore, c
}

func seedThree(scrapers *mockScraperStore) {
	scrapers.add("alpha", domain.CategoryFundamental, domain.RuntimeAPI, true, 1)
	scrapers.add("beta", domain.CategoryFundamental, domain.RuntimeAPI, true, 2)
	scrapers.add("gamma", domain.CategoryFundamental, domain.RuntimeBrowser, true, 3)
}

func TestEnabledSources_SortedByPriority(t *testing.T) {
	svc, scrapers, _, _ := setupOrchestratorTest()
	scrapers.add("slow", domain.CategoryFundamental, domain.RuntimeBrowser, true, 3)
	scrapers.add("fast", domain.CategoryFundamental, domain.RuntimeAPI, true, 1)
	scrapers.add("mid", domain.CategoryFundamental, domain.RuntimeAPI, true, 2)
	scrapers.add("other", domain.CategoryCrypto, domain.RuntimeAPI, true, 4)
	scrapers.add("off", domain.CategoryFundamental, domain.RuntimeAPI, false, 5)

	got, err := svc.EnabledSources(context.Background(), nil, domain.CategoryFundamental)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 sources, got %d", len(got))
	}
	for i, want := range []string{"fast", "mid", "slow"} {
		if got[i].ID != want {
			t.Errorf("position %d: expected %s, got %s", i, want, got[i].ID)
		}
	}
}

func TestEnabledSources_TickerAllowList(t *testing.T) {
	svc, scrapers, _, _ := setupOrchestratorTest()
	seedThree(scrapers)
	scrapers.scrapers["beta"].Tickers = []string{"MSFT"}

	ticker := "AAPL"
	got, err := svc.EnabledSources(context.Background(), &ticker, domain.CategoryFundamental)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	// beta only applies to MSFT; alpha and gamma have nil allow-lists.
	if len(got) != 2 {
		t.Fatalf("expected 2 sources, got %d", len(got))
	}
	if got[0].ID != "alpha" || got[1].ID != "gamma" {
		t.Fatalf("unexpected sources: %s, %s", got[0].ID, got[1].ID)
	}
}

func TestEnabledSources_CacheHit(t *testing.T) {
	svc, scrapers, _, _ := setupOrchestratorTest()
	seedThree(scrapers)

	first, err := svc.EnabledSources(context.Background(), nil, domain.CategoryFundamental)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	// A direct store mutation without invalidation must not be visible
	// until the TTL expires or the cache is invalidated.
	scrapers.scrapers["alpha"].Enabled = false
	second, err := svc.EnabledSources(context.Background(), nil, domain.CategoryFundamental)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(second) != len(first) {
		t.Fatalf("expected cached result of %d sources, got %d", len(first), len(second))
	}
}

func TestEnabledSources_InvalidCategory(t *testing.T) {
	svc, _, _, _ := setupOrchestratorTest()
	_, err := svc.EnabledSources(context.Background(), nil, "astrology")
	if !errors.Is(err, ErrInvalidCategory) {
		t.Fatalf("expected ErrInvalidCategory, got %v", err)
	}
}

func TestEnabledSources_BelowFloorStillReturned(t *testing.T) {
	svc, scrapers, _, _ := setupOrchestratorTest()
	scrapers.add("lonely", domain.CategoryOptions, domain.RuntimeAPI, true, 1)

	got, err := svc.EnabledSources(context.Background(), nil, domain.CategoryOptions)
	if err != nil {
		t.Fatalf("read-time floor is soft; expected no error, got %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 source, got %d", len(got))
	}
}

func TestToggleEnabled_FloorScenario(t *testing.T) {
	svc, scrapers, _, _ := setupOrchestratorTest()
	seedThree(scrapers)
	ctx := context.Background()
	meta := domain.AuditMeta{}

	// 3 enabled: disabling the priority-1 row leaves 2, which is allowed.
	cfg, err := svc.ToggleEnabled(ctx, "alpha", meta)
	if err != nil {
		t.Fatalf("first disable should succeed, got %v", err)
	}
	if cfg.Enabled {
		t.Fatal("expected alpha to be disabled")
	}

	// 2 enabled: any further disable would leave 1 and must be rejected.
	_, err = svc.ToggleEnabled(ctx, "beta", meta)
	if !errors.Is(err, ErrEnabledFloor) {
		t.Fatalf("expected ErrEnabledFloor, got %v", err)
	}
	if !scrapers.scrapers["beta"].Enabled || !scrapers.scrapers["gamma"].Enabled {
		t.Fatal("rejected toggle must leave both rows enabled")
	}
}

func TestToggleEnabled_ReEnableAlwaysAllowed(t *testing.T) {
	svc, scrapers, _, _ := setupOrchestratorTest()
	seedThree(scrapers)
	scrapers.scrapers["alpha"].Enabled = false

	cfg, err := svc.ToggleEnabled(context.Background(), "alpha", domain.AuditMeta{})
	if err != nil {
		t.Fatalf("enabling never violates the floor, got %v", err)
	}
	if !cfg.Enabled {
		t.Fatal("expected alpha to be enabled")
	}
}

func TestToggleEnabled_NotFound(t *testing.T) {
	svc, _, _, _ := setupOrchestratorTest()
	_, err := svc.ToggleEnabled(context.Background(), "ghost", domain.AuditMeta{})
	if !errors.Is(err, ErrScraperNotFound) {
		t.Fatalf("expected ErrScraperNotFound, got %v", err)
	}
}

func TestToggleEnabled_WritesAuditEntry(t *testing.T) {
	svc, scrapers, audit, _ := setupOrchestratorTest()
	seedThree(scrapers)

	actor := "ops"
	_, err := svc.ToggleEnabled(context.Background(), "alpha", domain.AuditMeta{Actor: &actor})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(audit.entries) != 1 {
		t.Fatalf("expected 1 audit entry, got %d", len(audit.entries))
	}
	e := audit.entries[0]
	if e.Action != domain.AuditToggle || e.Actor == nil || *e.Actor != "ops" {
		t.Fatalf("unexpected audit entry: %+v", e)
	}
}

func TestToggleEnabled_AuditFailureDoesNotFailToggle(t *testing.T) {
	svc, scrapers, audit, _ := setupOrchestratorTest()
	seedThree(scrapers)
	audit.failNext = true

	cfg, err := svc.ToggleEnabled(context.Background(), "alpha", domain.AuditMeta{})
	if err != nil {
		t.Fatalf("audit failures must be swallowed, got %v", err)
	}
	if cfg.Enabled {
		t.Fatal("toggle itself must still have applied")
	}
}

func TestToggleEnabled_InvalidatesCategoryCache(t *testing.T) {
	svc, scrapers, _, _ := setupOrchestratorTest()
	seedThree(scrapers)
	ctx := context.Background()

	before, _ := svc.EnabledSources(ctx, nil, domain.CategoryFundamental)
	if len(before) != 3 {
		t.Fatalf("expected 3 sources before toggle, got %d", len(before))
	}

	if _, err := svc.ToggleEnabled(ctx, "alpha", domain.AuditMeta{}); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	after, _ := svc.EnabledSources(ctx, nil, domain.CategoryFundamental)
	if len(after) != 2 {
		t.Fatalf("expected fresh read of 2 sources after toggle, got %d", len(after))
	}
}

func TestBulkToggle_RollsBackBelowFloor(t *testing.T) {
	svc, scrapers, audit, _ := setupOrchestratorTest()
	seedThree(scrapers)

	_, err := svc.BulkToggle(context.Background(), []string{"alpha", "beta"}, false, domain.AuditMeta{})
	if !errors.Is(err, ErrEnabledFloor) {
		t.Fatalf("expected ErrEnabledFloor, got %v", err)
	}
	// No partial application: both rows unchanged.
	if !scrapers.scrapers["alpha"].Enabled || !scrapers.scrapers["beta"].Enabled {
		t.Fatal("failed bulk toggle must leave rows unchanged")
	}
	if len(audit.entries) != 0 {
		t.Fatalf("failed operation must not write audit entries, got %d", len(audit.entries))
	}
}

func TestBulkToggle_Success(t *testing.T) {
	svc, scrapers, audit, _ := setupOrchestratorTest()
	seedThree(scrapers)
	scrapers.add("delta", domain.CategoryCrypto, domain.RuntimeAPI, true, 4)

	count, err := svc.BulkToggle(context.Background(), []string{"alpha", "beta"}, false, domain.AuditMeta{})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 updated, got %d", count)
	}
	if len(audit.entries) != 1 || audit.entries[0].Action != domain.AuditBulkToggle {
		t.Fatalf("expected one BULK_TOGGLE audit entry, got %+v", audit.entries)
	}
}

func TestBulkToggle_AuditCarriesPriorFlags(t *testing.T) {
	svc, scrapers, audit, _ := setupOrchestratorTest()
	seedThree(scrapers)
	scrapers.add("delta", domain.CategoryCrypto, domain.RuntimeAPI, false, 4)

	_, err := svc.BulkToggle(context.Background(), []string{"alpha", "delta"}, true, domain.AuditMeta{})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if len(audit.entries) != 1 {
		t.Fatalf("expected 1 audit entry, got %d", len(audit.entries))
	}
	var before struct {
		Enabled map[string]bool `json:"enabled"`
	}
	if err := json.Unmarshal(audit.entries[0].Before, &before); err != nil {
		t.Fatalf("before snapshot must be structured JSON: %v", err)
	}
	if got, ok := before.Enabled["alpha"]; !ok || !got {
		t.Fatalf("before snapshot must record alpha as enabled, got %v", before.Enabled)
	}
	if got, ok := before.Enabled["delta"]; !ok || got {
		t.Fatalf("before snapshot must record delta as disabled, got %v", before.Enabled)
	}
}

func TestBulkToggle_EmptyBatch(t *testing.T) {
	svc, _, _, _ := setupOrchestratorTest()
	_, err := svc.BulkToggle(context.Background(), nil, false, domain.AuditMeta{})
	if !errors.Is(err, ErrEmptyBatch) {
		t.Fatalf("expected ErrEmptyBatch, got %v", err)
	}
}

func TestUpdatePriorities_DuplicateInputFailsFast(t *testing.T) {
	svc, scrapers, _, _ := setupOrchestratorTest()
	seedThree(scrapers)

	err := svc.UpdatePriorities(context.Background(), []domain.PriorityAssignment{
		{ID: "alpha", Priority: 1},
		{ID: "beta", Priority: 1},
	}, domain.AuditMeta{})
	if !errors.Is(err, ErrDuplicateInputPriority) {
		t.Fatalf("expected ErrDuplicateInputPriority, got %v", err)
	}
	// Fail-fast means storage was never touched.
	if scrapers.scrapers["alpha"].Priority != 1 || scrapers.scrapers["beta"].Priority != 2 {
		t.Fatal("priorities must be unchanged after fail-fast rejection")
	}
}

func TestUpdatePriorities_AppliesNewOrdering(t *testing.T) {
	svc, scrapers, audit, _ := setupOrchestratorTest()
	seedThree(scrapers)

	err := svc.UpdatePriorities(context.Background(), []domain.PriorityAssignment{
		{ID: "gamma", Priority: 1},
		{ID: "alpha", Priority: 2},
		{ID: "beta", Priority: 3},
	}, domain.AuditMeta{})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if scrapers.scrapers["gamma"].Priority != 1 || scrapers.scrapers["alpha"].Priority != 2 || scrapers.scrapers["beta"].Priority != 3 {
		t.Fatal("new ordering not applied")
	}
	if len(audit.entries) != 1 || audit.entries[0].Action != domain.AuditUpdatePriority {
		t.Fatalf("expected one UPDATE_PRIORITY audit entry")
	}
}

func TestUpdate_DuplicatePriorityNamesConflict(t *testing.T) {
	svc, scrapers, _, _ := setupOrchestratorTest()
	seedThree(scrapers)

	p := 2
	_, err := svc.Update(context.Background(), "alpha", UpdateScraperInput{Priority: &p}, domain.AuditMeta{})
	if !errors.Is(err, ErrDuplicatePriority) {
		t.Fatalf("expected ErrDuplicatePriority, got %v", err)
	}
	// The error message names the scraper currently holding the priority.
	if want := "beta"; err != nil && !strings.Contains(err.Error(), want) {
		t.Fatalf("error should name conflicting scraper %q: %v", want, err)
	}
}

func TestUpdate_ParamsMergeKeyByKey(t *testing.T) {
	svc, scrapers, _, _ := setupOrchestratorTest()
	seedThree(scrapers)

	timeout := 5000
	weight := 0.9
	scrapers.scrapers["alpha"].Params = domain.ScraperParams{TimeoutMs: &timeout, ValidationWeight: &weight}

	retries := 4
	cfg, err := svc.Update(context.Background(), "alpha", UpdateScraperInput{
		Params: &domain.ScraperParams{Retries: &retries},
	}, domain.AuditMeta{})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.Params.TimeoutMs == nil || *cfg.Params.TimeoutMs != 5000 {
		t.Fatal("merge must preserve unset keys")
	}
	if cfg.Params.Retries == nil || *cfg.Params.Retries != 4 {
		t.Fatal("merge must apply patched keys")
	}
	if cfg.Params.ValidationWeight == nil || *cfg.Params.ValidationWeight != 0.9 {
		t.Fatal("merge must preserve validation weight")
	}
}

func TestUpdate_Idempotent(t *testing.T) {
	svc, scrapers, audit, _ := setupOrchestratorTest()
	seedThree(scrapers)

	name := "Alpha Prime"
	in := UpdateScraperInput{Name: &name}
	first, err := svc.Update(context.Background(), "alpha", in, domain.AuditMeta{})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	second, err := svc.Update(context.Background(), "alpha", in, domain.AuditMeta{})
	if err != nil {
		t.Fatalf("second identical update must not error, got %v", err)
	}
	if first.Name != second.Name || first.Priority != second.Priority || first.Enabled != second.Enabled {
		t.Fatal("identical updates must converge to the same row")
	}
	if len(audit.entries) != 2 {
		t.Fatalf("each update writes its own audit entry, got %d", len(audit.entries))
	}
}

func TestCreate_Validation(t *testing.T) {
	svc, _, _, _ := setupOrchestratorTest()
	ctx := context.Background()

	_, err := svc.Create(ctx, &domain.ScraperConfig{ID: "x", Category: "bogus", RuntimeClass: domain.RuntimeAPI, Priority: 1}, domain.AuditMeta{})
	if !errors.Is(err, ErrInvalidCategory) {
		t.Fatalf("expected ErrInvalidCategory, got %v", err)
	}

	_, err = svc.Create(ctx, &domain.ScraperConfig{ID: "x", Category: domain.CategoryNews, RuntimeClass: "quantum", Priority: 1}, domain.AuditMeta{})
	if !errors.Is(err, ErrInvalidRuntimeClass) {
		t.Fatalf("expected ErrInvalidRuntimeClass, got %v", err)
	}

	_, err = svc.Create(ctx, &domain.ScraperConfig{ID: "x", Category: domain.CategoryNews, RuntimeClass: domain.RuntimeAPI, Priority: 0}, domain.AuditMeta{})
	if !errors.Is(err, ErrInvalidPriority) {
		t.Fatalf("expected ErrInvalidPriority, got %v", err)
	}
}
