package domain

import (
	"time"
)

const (
	// ConfidenceFloor is claimed when every source failed and the result is
	// a zero placeholder. Never zero so callers can tell "no data" apart
	// from "field missing".
	ConfidenceFloor = 0.05
	// ConfidenceBase is granted as soon as a single source resolved.
	ConfidenceBase = 0.3
	// ConfidenceIncrement is added per additional corroborating source.
	ConfidenceIncrement = 0.2
	// ConfidenceCap bounds the score. Upstream data is inherently stale so
	// full certainty is never claimed.
	ConfidenceCap = 0.95
)

// AggregatedPrice is the combined best-effort price of one aggregation
// cycle. It is always well-formed: under total upstream outage it carries a
// zero price, the confidence floor and Stale set to true.
type AggregatedPrice struct {
	Sources    map[string]*Quote `json:"sources"`
	Price      Price             `json:"price"`
	Confidence float64           `json:"confidence"`
	Stale      bool              `json:"stale"`
	LastUpdate time.Time         `json:"last_update"`
}

// ConfidenceForSources returns the heuristic score for the given number of
// successfully resolved sources. Monotonic in resolved and bounded by
// [ConfidenceFloor, ConfidenceCap].
func ConfidenceForSources(resolved int) float64 {
	if resolved <= 0 {
		return ConfidenceFloor
	}
	score := ConfidenceBase + float64(resolved-1)*ConfidenceIncrement
	if score > ConfidenceCap {
		return ConfidenceCap
	}
	return score
}
