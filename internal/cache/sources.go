// Package cache holds the short-TTL read-through cache for the enabled-
// sources hot path. It is the only state read outside a transaction; every
// mutation invalidates it synchronously right after commit.
package cache

import (
	"strings"
	"time"

	"github.com/finsight/quorum/internal/domain"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

const keySep = "|"

// SourceCache caches ordered enabled-source lists keyed by category plus
// ticker (or "all").
type SourceCache struct {
	lru *expirable.LRU[string, []domain.ScraperConfig]
}

func New(maxEntries int, ttl time.Duration) *SourceCache {
	return &SourceCache{
		lru: expirable.NewLRU[string, []domain.ScraperConfig](maxEntries, nil, ttl),
	}
}

// Key builds the cache key for a category and optional ticker.
func Key(category domain.Category, ticker *string) string {
	t := "all"
	if ticker != nil && *ticker != "" {
		t = *ticker
	}
	return string(category) + keySep + t
}

func (c *SourceCache) Get(key string) ([]domain.ScraperConfig, bool) {
	return c.lru.Get(key)
}

func (c *SourceCache) Set(key string, configs []domain.ScraperConfig) {
	c.lru.Add(key, configs)
}

// InvalidateCategory drops every entry for one category.
func (c *SourceCache) InvalidateCategory(category domain.Category) {
	prefix := string(category) + keySep
	for _, k := range c.lru.Keys() {
		if strings.HasPrefix(k, prefix) {
			c.lru.Remove(k)
		}
	}
}

// InvalidateAll drops everything. Used by bulk operations that do not track
// which categories they touched.
func (c *SourceCache) InvalidateAll() {
	c.lru.Purge()
}

func (c *SourceCache) Len() int {
	return c.lru.Len()
}
