package detect

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"credcheck/internal/types"
)

const factCheckPrompt = `You are a fact-checking AI. Assess whether the following news text is fake or real based on your knowledge of verifiable facts, known events and plausibility.

News text:
"""
%s
"""

Respond with a single JSON object and nothing else:
{"is_fake": true or false, "verdict": "one short sentence explaining the assessment"}`

// FactCheck is the LLM-based fact-checking layer.
type FactCheck struct {
	llm     *OllamaClient
	timeout time.Duration
}

func NewFactCheck(llm *OllamaClient, timeout time.Duration) *FactCheck {
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return &FactCheck{llm: llm, timeout: timeout}
}

func (f *FactCheck) Name() string {
	return LayerFactCheck
}

func (f *FactCheck) Evaluate(ctx context.Context, text string) (types.LayerVerdict, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	raw, err := f.llm.Complete(ctx, fmt.Sprintf(factCheckPrompt, text))
	if err != nil {
		return types.LayerVerdict{}, types.NewDetectorError(f.Name(), "generation failed", err)
	}

	verdict, err := parseFactCheckResponse(raw)
	if err != nil {
		return types.LayerVerdict{}, types.NewDetectorError(f.Name(), "unparseable response", err)
	}

	return types.Vote(f.Name(), verdict.IsFake, map[string]any{
		"verdict": verdict.Verdict,
	}), nil
}

type factCheckResponse struct {
	IsFake  bool   `json:"is_fake"`
	Verdict string `json:"verdict"`
}

// parseFactCheckResponse pulls the first JSON object out of a model reply.
// Models occasionally wrap the object in prose or code fences.
func parseFactCheckResponse(raw string) (factCheckResponse, error) {
	var parsed factCheckResponse

	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return parsed, fmt.Errorf("no JSON object in response")
	}

	if err := json.Unmarshal([]byte(raw[start:end+1]), &parsed); err != nil {
		return parsed, err
	}
	if parsed.Verdict == "" {
		parsed.Verdict = "No verdict available"
	}
	return parsed, nil
}
