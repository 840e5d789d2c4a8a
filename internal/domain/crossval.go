package domain

import "time"

// CrossValidationConfig is the process-wide singleton tuning the consensus
// engine. Callers fetch it and pass it into every consensus computation
// rather than reaching into shared state; Version guards concurrent updates.
type CrossValidationConfig struct {
	MinSources       int                `json:"min_sources"`
	ThresholdHigh    float64            `json:"threshold_high"`    // percent deviation
	ThresholdMedium  float64            `json:"threshold_medium"`  // percent deviation
	DefaultTolerance float64            `json:"default_tolerance"` // percent
	FieldTolerances  map[string]float64 `json:"field_tolerances,omitempty"`
	SourcePriority   []string           `json:"source_priority,omitempty"` // tie-break only, never a weight
	Version          int                `json:"version"`
	UpdatedAt        time.Time          `json:"updated_at"`
}

// Tolerance returns the tolerance percent for a field, honouring the
// per-field override when present.
func (c *CrossValidationConfig) Tolerance(field string) float64 {
	if t, ok := c.FieldTolerances[field]; ok {
		return t
	}
	return c.DefaultTolerance
}

// SourceRank returns the tie-break rank of a source, lower is better.
// Sources absent from the priority list rank equally last.
func (c *CrossValidationConfig) SourceRank(source string) int {
	for i, s := range c.SourcePriority {
		if s == source {
			return i
		}
	}
	return len(c.SourcePriority)
}

// FieldObservation is one raw value for one field from one source. It is
// supplied by the caller at consensus time and never persisted here.
type FieldObservation struct {
	Source string  `json:"source"`
	Field  string  `json:"field"`
	Value  float64 `json:"value"`
}

// Severity classifies how badly sources disagree on a field.
type Severity string

const (
	SeverityNone   Severity = "none"
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// ObservationDeviation is one source's value and its percent deviation from
// the field consensus.
type ObservationDeviation struct {
	Source       string  `json:"source"`
	Value        float64 `json:"value"`
	DeviationPct float64 `json:"deviation_pct"`
}

// FieldConsensus is the engine's verdict for a single field.
type FieldConsensus struct {
	Field         string                 `json:"field"`
	Consensus     float64                `json:"consensus"`
	Severity      Severity               `json:"severity"`
	MaxDeviation  float64                `json:"max_deviation_pct"`
	LowConfidence bool                   `json:"low_confidence"` // fewer observations than MinSources
	Observations  []ObservationDeviation `json:"observations"`
}

// ImpactEstimate is the what-if resource projection for a candidate set of
// enabled scrapers. Purely advisory; computing it never touches state.
type ImpactEstimate struct {
	Heavyweight     int      `json:"heavyweight"`
	Lightweight     int      `json:"lightweight"`
	DurationSeconds int      `json:"duration_seconds"`
	MemoryMB        int      `json:"memory_mb"`
	CPUPercent      int      `json:"cpu_percent"`
	Confidence      string   `json:"confidence"` // high / medium / low
	Warnings        []string `json:"warnings,omitempty"`
}
