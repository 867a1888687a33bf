// Package detect holds the adapters to the external credibility layers.
// Every adapter satisfies the same contract: given text, return a verdict
// or an error within a bounded timeout. Adapters never block indefinitely
// and never panic by design of their callers (the aggregation engine wraps
// each call).
package detect

import (
	"context"

	"credcheck/internal/types"
)

// Detector is the uniform call contract to one credibility layer.
type Detector interface {
	Name() string
	Evaluate(ctx context.Context, text string) (types.LayerVerdict, error)
}

// Layer names as they appear in verdicts and stored analyses.
const (
	LayerCredibility = "credibility"
	LayerFactCheck   = "factcheck"
	LayerClaims      = "claimbuster"
)
