package service

import (
	"fmt"

	"github.com/finsight/quorum/internal/domain"
)

// Two-bucket cost model: browser-automation scrapers are slow and heavy,
// API scrapers are cheap. Coarse on purpose; per-source measured costs from
// the metrics collector could replace these constants without changing the
// contract.
const (
	browserDurationSec = 30
	apiDurationSec     = 5
	browserMemoryMB    = 600
	apiMemoryMB        = 50
	browserCPUPct      = 15

	durationCeilingSec    = 180
	memoryCeilingMB       = 4096
	browserTimeoutFloorMs = 30000
)

// EstimateImpact projects duration, memory and CPU for a candidate set of
// enabled scrapers. It is a pure what-if calculator: it reads the candidate
// configs and mutates nothing.
func EstimateImpact(configs []domain.ScraperConfig) domain.ImpactEstimate {
	var heavy, light int
	var warnings []string

	for _, c := range configs {
		switch c.RuntimeClass {
		case domain.RuntimeBrowser:
			heavy++
			if c.Params.TimeoutMs != nil && *c.Params.TimeoutMs < browserTimeoutFloorMs {
				warnings = append(warnings, fmt.Sprintf(
					"scraper %q: timeout %dms is below the %dms browser startup floor",
					c.ID, *c.Params.TimeoutMs, browserTimeoutFloorMs))
			}
		default:
			light++
		}
	}

	est := domain.ImpactEstimate{
		Heavyweight:     heavy,
		Lightweight:     light,
		DurationSeconds: heavy*browserDurationSec + light*apiDurationSec,
		MemoryMB:        heavy*browserMemoryMB + light*apiMemoryMB,
		CPUPercent:      heavy * browserCPUPct,
	}

	total := heavy + light
	switch {
	case total >= 5:
		est.Confidence = "high"
	case total >= 3:
		est.Confidence = "medium"
	default:
		est.Confidence = "low"
	}

	if total < domain.MinEnabledScrapers {
		warnings = append(warnings, fmt.Sprintf(
			"only %d sources selected; consensus needs at least %d", total, domain.MinEnabledScrapers))
	}
	if est.DurationSeconds > durationCeilingSec {
		warnings = append(warnings, fmt.Sprintf(
			"estimated duration %ds exceeds the %ds ceiling; callers may time out",
			est.DurationSeconds, durationCeilingSec))
	}
	if est.MemoryMB > memoryCeilingMB {
		warnings = append(warnings, fmt.Sprintf(
			"estimated memory %dMB exceeds the %dMB ceiling", est.MemoryMB, memoryCeilingMB))
	}
	if total > 0 && light == 0 {
		warnings = append(warnings, "no lightweight source selected; a pure browser mix is slow")
	}

	est.Warnings = warnings
	return est
}
