package service

import (
	"math"
	"sort"

	"github.com/finsight/quorum/internal/domain"
)

// ComputeConsensus reconciles raw per-source observations into one consensus
// value and a disagreement severity per field.
//
// The central statistic is the median. The source-priority list breaks ties
// only (the even-count middle pair); it never weights the value itself, so
// the result stays auditable. Output is fully deterministic: fields and
// observations are emitted in sorted order and the same input always
// produces byte-identical results.
func ComputeConsensus(observations []domain.FieldObservation, cfg domain.CrossValidationConfig) []domain.FieldConsensus {
	byField := make(map[string][]domain.FieldObservation)
	for _, o := range observations {
		byField[o.Field] = append(byField[o.Field], o)
	}

	fields := make([]string, 0, len(byField))
	for f := range byField {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	results := make([]domain.FieldConsensus, 0, len(fields))
	for _, field := range fields {
		results = append(results, consensusForField(field, byField[field], cfg))
	}
	return results
}

func consensusForField(field string, obs []domain.FieldObservation, cfg domain.CrossValidationConfig) domain.FieldConsensus {
	consensus := medianValue(obs, cfg)

	devs := make([]domain.ObservationDeviation, len(obs))
	maxDev := 0.0
	for i, o := range obs {
		d := deviationPct(o.Value, consensus)
		devs[i] = domain.ObservationDeviation{Source: o.Source, Value: o.Value, DeviationPct: d}
		if d > maxDev {
			maxDev = d
		}
	}
	sort.Slice(devs, func(i, j int) bool { return devs[i].Source < devs[j].Source })

	return domain.FieldConsensus{
		Field:         field,
		Consensus:     consensus,
		Severity:      classify(maxDev, cfg.Tolerance(field), cfg.ThresholdMedium, cfg.ThresholdHigh),
		MaxDeviation:  maxDev,
		LowConfidence: len(obs) < cfg.MinSources,
		Observations:  devs,
	}
}

// medianValue returns the median observation value. With an even count the
// two middle candidates are split by source priority: the value reported by
// the higher-priority source wins. Unranked sources fall back to source-name
// order so the choice stays deterministic.
func medianValue(obs []domain.FieldObservation, cfg domain.CrossValidationConfig) float64 {
	sorted := make([]domain.FieldObservation, len(obs))
	copy(sorted, obs)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Value != sorted[j].Value {
			return sorted[i].Value < sorted[j].Value
		}
		return sorted[i].Source < sorted[j].Source
	})

	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return sorted[n/2].Value
	}

	lo, hi := sorted[n/2-1], sorted[n/2]
	if better(lo, hi, cfg) {
		return lo.Value
	}
	return hi.Value
}

func better(a, b domain.FieldObservation, cfg domain.CrossValidationConfig) bool {
	ra, rb := cfg.SourceRank(a.Source), cfg.SourceRank(b.Source)
	if ra != rb {
		return ra < rb
	}
	return a.Source < b.Source
}

func deviationPct(value, consensus float64) float64 {
	if consensus == 0 {
		if value == 0 {
			return 0
		}
		return 100
	}
	return math.Abs(value-consensus) / math.Abs(consensus) * 100
}

// classify maps max deviation to a severity. Within tolerance there is no
// discrepancy at all; beyond it the two thresholds grade the disagreement.
func classify(maxDev, tolerance, medium, high float64) domain.Severity {
	if maxDev <= tolerance {
		return domain.SeverityNone
	}
	switch {
	case maxDev > high:
		return domain.SeverityHigh
	case maxDev > medium:
		return domain.SeverityMedium
	default:
		return domain.SeverityLow
	}
}
