package cache

import (
	"testing"
	"time"

	"github.com/finsight/quorum/internal/domain"
)

func TestKey(t *testing.T) {
	if got := Key(domain.CategoryFundamental, nil); got != "fundamental|all" {
		t.Fatalf("nil ticker: got %q", got)
	}
	ticker := "AAPL"
	if got := Key(domain.CategoryFundamental, &ticker); got != "fundamental|AAPL" {
		t.Fatalf("ticker: got %q", got)
	}
	empty := ""
	if got := Key(domain.CategoryCrypto, &empty); got != "crypto|all" {
		t.Fatalf("empty ticker: got %q", got)
	}
}

func TestSourceCache_GetSet(t *testing.T) {
	c := New(8, time.Minute)

	if _, ok := c.Get("fundamental|all"); ok {
		t.Fatal("empty cache must miss")
	}

	configs := []domain.ScraperConfig{{ID: "yahoo"}, {ID: "finviz"}}
	c.Set("fundamental|all", configs)

	got, ok := c.Get("fundamental|all")
	if !ok {
		t.Fatal("expected hit after Set")
	}
	if len(got) != 2 || got[0].ID != "yahoo" {
		t.Fatalf("unexpected cached value: %+v", got)
	}
}

func TestSourceCache_TTLExpiry(t *testing.T) {
	c := New(8, 20*time.Millisecond)
	c.Set("news|all", []domain.ScraperConfig{{ID: "x"}})

	if _, ok := c.Get("news|all"); !ok {
		t.Fatal("expected hit before expiry")
	}
	time.Sleep(40 * time.Millisecond)
	if _, ok := c.Get("news|all"); ok {
		t.Fatal("expected miss after TTL")
	}
}

func TestSourceCache_InvalidateCategory(t *testing.T) {
	c := New(8, time.Minute)
	ticker := "AAPL"
	c.Set(Key(domain.CategoryFundamental, nil), []domain.ScraperConfig{{ID: "a"}})
	c.Set(Key(domain.CategoryFundamental, &ticker), []domain.ScraperConfig{{ID: "a"}})
	c.Set(Key(domain.CategoryNews, nil), []domain.ScraperConfig{{ID: "b"}})

	c.InvalidateCategory(domain.CategoryFundamental)

	if _, ok := c.Get(Key(domain.CategoryFundamental, nil)); ok {
		t.Fatal("category entry should be gone")
	}
	if _, ok := c.Get(Key(domain.CategoryFundamental, &ticker)); ok {
		t.Fatal("per-ticker entry of the category should be gone")
	}
	if _, ok := c.Get(Key(domain.CategoryNews, nil)); !ok {
		t.Fatal("other categories must survive")
	}
}

func TestSourceCache_InvalidateAll(t *testing.T) {
	c := New(8, time.Minute)
	c.Set(Key(domain.CategoryFundamental, nil), nil)
	c.Set(Key(domain.CategoryNews, nil), nil)

	c.InvalidateAll()
	if c.Len() != 0 {
		t.Fatalf("expected empty cache, got %d entries", c.Len())
	}
}
