// Package aggregate combines per-layer credibility verdicts into one
// fake/real decision by majority rule.
package aggregate

import (
	"context"
	"fmt"
	"log/slog"

	"credcheck/internal/detect"
	"credcheck/internal/types"
)

// Aggregate counts the non-abstaining votes in verdicts and returns the
// majority decision. The rule is deterministic:
//
//   - a layer with IsFake == nil contributes no vote
//   - if no layer votes at all, the result is not fake
//   - otherwise is_fake = fakeVotes > totalVotes/2, so an exact tie
//     resolves to not fake
func Aggregate(verdicts []types.LayerVerdict) types.AggregationResult {
	fakeVotes := 0
	realVotes := 0

	for _, v := range verdicts {
		if v.IsFake == nil {
			continue
		}
		if *v.IsFake {
			fakeVotes++
		} else {
			realVotes++
		}
	}

	total := fakeVotes + realVotes
	isFake := total > 0 && fakeVotes*2 > total

	return types.AggregationResult{
		IsFake:       isFake,
		VotesForFake: fakeVotes,
		VotesForReal: realVotes,
		Label:        types.ClassifyVerdict(isFake),
	}
}

// Engine evaluates a fixed set of detector layers against one text and
// aggregates their verdicts. Each layer call is individually isolated: an
// error or panic becomes an abstaining verdict and never reaches the caller.
type Engine struct {
	detectors []detect.Detector
	logger    *slog.Logger
}

func NewEngine(detectors []detect.Detector, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{detectors: detectors, logger: logger}
}

// Evaluate runs every configured layer against text and returns the final
// decision together with the per-layer verdicts that produced it.
func (e *Engine) Evaluate(ctx context.Context, text string) (types.AggregationResult, []types.LayerVerdict) {
	verdicts := make([]types.LayerVerdict, 0, len(e.detectors))

	for _, d := range e.detectors {
		verdict := e.evaluateLayer(ctx, d, text)
		verdicts = append(verdicts, verdict)
	}

	result := Aggregate(verdicts)
	e.logger.Info("aggregated verdict",
		"classification", result.Label,
		"fake_votes", result.VotesForFake,
		"real_votes", result.VotesForReal,
		"layers", len(verdicts),
	)
	return result, verdicts
}

func (e *Engine) evaluateLayer(ctx context.Context, d detect.Detector, text string) (verdict types.LayerVerdict) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("detector panicked", "layer", d.Name(), "panic", fmt.Sprint(r))
			verdict = types.Abstain(d.Name(), "panic during evaluation")
		}
	}()

	verdict, err := d.Evaluate(ctx, text)
	if err != nil {
		e.logger.Warn("detector failed, counting as abstention", "layer", d.Name(), "error", err)
		return types.Abstain(d.Name(), err.Error())
	}

	if verdict.Layer == "" {
		verdict.Layer = d.Name()
	}
	return verdict
}
