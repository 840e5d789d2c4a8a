// Seed script for the canonical scraper set, system profiles, and default
// cross-validation config.
// Run with: go run ./scripts/seed.go
package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
)

type seedScraper struct {
	id, name, class, category string
	enabled                   bool
	priority                  int
	timeoutMs                 int
}

var scrapers = []seedScraper{
	{"yahoo_finance", "Yahoo Finance", "api", "fundamental", true, 1, 15000},
	{"alpha_vantage", "Alpha Vantage", "api", "fundamental", true, 2, 15000},
	{"finviz", "Finviz", "browser", "fundamental", true, 3, 60000},
	{"macrotrends", "Macrotrends", "browser", "fundamental", false, 4, 60000},
	{"tradingview", "TradingView", "browser", "technical", true, 5, 60000},
	{"stooq", "Stooq", "api", "market_data", true, 6, 10000},
	{"coingecko", "CoinGecko", "api", "crypto", true, 7, 10000},
	{"fred", "FRED", "api", "macro", true, 8, 15000},
}

func main() {
	envFile := os.Getenv("QUORUM_ENV")
	if envFile == "" {
		envFile = ".env"
	}
	_ = godotenv.Load(envFile)
	_ = godotenv.Load(envFile + ".secret")

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is required")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		log.Fatalf("connect: %v", err)
	}
	defer pool.Close()

	for _, s := range scrapers {
		params := fmt.Sprintf(`{"timeout_ms": %d, "retries": 2, "validation_weight": 0.8}`, s.timeoutMs)
		_, err := pool.Exec(ctx,
			`INSERT INTO scraper_configs (id, name, runtime_class, category, enabled, priority, params)
			 VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb)
			 ON CONFLICT (id) DO NOTHING`,
			s.id, s.name, s.class, s.category, s.enabled, s.priority, params)
		if err != nil {
			log.Fatalf("seed scraper %s: %v", s.id, err)
		}
	}
	log.Printf("seeded %d scrapers", len(scrapers))

	profiles := []struct {
		id, name, desc string
		ids, order     []string
		minSources     int
	}{
		{
			"minimal", "Minimal", "Two cheap API sources only.",
			[]string{"yahoo_finance", "alpha_vantage"},
			[]string{"yahoo_finance", "alpha_vantage"},
			2,
		},
		{
			"conservative", "Conservative", "API sources plus one browser fallback.",
			[]string{"yahoo_finance", "alpha_vantage", "stooq", "finviz"},
			[]string{"yahoo_finance", "alpha_vantage", "stooq", "finviz"},
			3,
		},
		{
			"aggressive", "Aggressive", "Everything that is worth running.",
			[]string{"yahoo_finance", "alpha_vantage", "finviz", "tradingview", "stooq", "coingecko", "fred"},
			[]string{"yahoo_finance", "alpha_vantage", "stooq", "finviz", "tradingview", "coingecko", "fred"},
			4,
		},
	}

	for _, p := range profiles {
		_, err := pool.Exec(ctx,
			`INSERT INTO execution_profiles (id, name, description, scraper_ids, priority_order, min_sources, system)
			 VALUES ($1, $2, $3, $4, $5, $6, true)
			 ON CONFLICT (id) DO NOTHING`,
			p.id, p.name, p.desc, p.ids, p.order, p.minSources)
		if err != nil {
			log.Fatalf("seed profile %s: %v", p.id, err)
		}
	}
	log.Printf("seeded %d system profiles", len(profiles))

	_, err = pool.Exec(ctx,
		`UPDATE cross_validation_config
		 SET source_priority = $1
		 WHERE id = 1 AND source_priority = '{}'`,
		[]string{"yahoo_finance", "alpha_vantage", "stooq", "finviz", "tradingview"})
	if err != nil {
		log.Fatalf("seed cross-validation config: %v", err)
	}
	log.Println("seed complete")
}
