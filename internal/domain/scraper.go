package domain

import "time"

// Category classifies what kind of data a scraper collects.
type Category string

const (
	CategoryFundamental Category = "fundamental"
	CategoryTechnical   Category = "technical"
	CategoryNews        Category = "news"
	CategoryAI          Category = "ai"
	CategoryMarketData  Category = "market_data"
	CategoryCrypto      Category = "crypto"
	CategoryOptions     Category = "options"
	CategoryMacro       Category = "macro"
)

// Categories returns every known category, in a fixed order.
func Categories() []Category {
	return []Category{
		CategoryFundamental,
		CategoryTechnical,
		CategoryNews,
		CategoryAI,
		CategoryMarketData,
		CategoryCrypto,
		CategoryOptions,
		CategoryMacro,
	}
}

func ValidCategory(s string) bool {
	for _, c := range Categories() {
		if string(c) == s {
			return true
		}
	}
	return false
}

// RuntimeClass distinguishes heavyweight browser-automation scrapers from
// lightweight API scrapers. It only affects cost estimation.
type RuntimeClass string

const (
	RuntimeBrowser RuntimeClass = "browser"
	RuntimeAPI     RuntimeClass = "api"
)

func ValidRuntimeClass(s string) bool {
	return s == string(RuntimeBrowser) || s == string(RuntimeAPI)
}

// ScraperParams is the tunable parameter bag for a scraper. All fields are
// optional; updates merge key-by-key rather than replacing the whole bag.
type ScraperParams struct {
	TimeoutMs        *int     `json:"timeout_ms,omitempty"`
	Retries          *int     `json:"retries,omitempty"`
	RetryDelayMs     *int     `json:"retry_delay_ms,omitempty"`
	MaxConcurrency   *int     `json:"max_concurrency,omitempty"`
	CacheTTLSeconds  *int     `json:"cache_ttl_seconds,omitempty"`
	WaitStrategy     *string  `json:"wait_strategy,omitempty"`
	ValidationWeight *float64 `json:"validation_weight,omitempty"`
}

// Merge returns a copy of p with every field set in patch applied on top.
func (p ScraperParams) Merge(patch ScraperParams) ScraperParams {
	out := p
	if patch.TimeoutMs != nil {
		out.TimeoutMs = patch.TimeoutMs
	}
	if patch.Retries != nil {
		out.Retries = patch.Retries
	}
	if patch.RetryDelayMs != nil {
		out.RetryDelayMs = patch.RetryDelayMs
	}
	if patch.MaxConcurrency != nil {
		out.MaxConcurrency = patch.MaxConcurrency
	}
	if patch.CacheTTLSeconds != nil {
		out.CacheTTLSeconds = patch.CacheTTLSeconds
	}
	if patch.WaitStrategy != nil {
		out.WaitStrategy = patch.WaitStrategy
	}
	if patch.ValidationWeight != nil {
		out.ValidationWeight = patch.ValidationWeight
	}
	return out
}

// ScraperConfig is the per-source configuration row. One exists per
// collection worker; rows are never hard-deleted.
type ScraperConfig struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	RuntimeClass RuntimeClass  `json:"runtime_class"`
	Category     Category      `json:"category"`
	Enabled      bool          `json:"enabled"`
	Priority     int           `json:"priority"`
	Tickers      []string      `json:"tickers,omitempty"` // nil = applies to all tickers
	Params       ScraperParams `json:"params"`
	SuccessRate  float64       `json:"success_rate"`    // maintained by the metrics collector
	AvgLatencyMs float64       `json:"avg_latency_ms"`  // maintained by the metrics collector
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// AppliesTo reports whether this scraper may run for the given ticker.
// A nil allow-list matches every ticker.
func (c *ScraperConfig) AppliesTo(ticker string) bool {
	if len(c.Tickers) == 0 {
		return true
	}
	for _, t := range c.Tickers {
		if t == ticker {
			return true
		}
	}
	return false
}

// PriorityAssignment pairs a scraper with its new priority for bulk
// priority reassignment.
type PriorityAssignment struct {
	ID       string `json:"id"`
	Priority int    `json:"priority"`
}

// MinEnabledScrapers is the business floor: the count of enabled scrapers
// must never drop below this after any successful mutation.
const MinEnabledScrapers = 2
