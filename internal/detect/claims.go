package detect

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"credcheck/internal/types"
)

// claimFakeThreshold is the plausibility score below which a single claim
// is classified fake.
const claimFakeThreshold = 0.66

// ClaimScorer is the claim-plausibility layer. Unlike the other layers it
// scores individual claims; the layer's vote is derived from the fraction of
// claims falling below the plausibility threshold.
type ClaimScorer struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

func NewClaimScorer(endpoint, apiKey string) *ClaimScorer {
	return &ClaimScorer{
		endpoint: endpoint,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *ClaimScorer) Name() string {
	return LayerClaims
}

func (c *ClaimScorer) Evaluate(ctx context.Context, text string) (types.LayerVerdict, error) {
	scores, err := c.scoreClaims(ctx, text)
	if err != nil {
		return types.LayerVerdict{}, types.NewDetectorError(c.Name(), "claim scoring failed", err)
	}

	return ClaimVerdict(c.Name(), scores), nil
}

// ClaimVerdict turns per-claim scores into the layer's verdict: a fake vote
// when more than half of the claims score below the threshold, a real vote
// otherwise, and an abstention only when there are no claims at all.
func ClaimVerdict(layer string, scores []types.ClaimScore) types.LayerVerdict {
	if len(scores) == 0 {
		return types.Abstain(layer, "no claims returned")
	}

	fakeClaims := 0
	for i := range scores {
		if scores[i].Score < claimFakeThreshold {
			scores[i].Classification = types.LabelFake
			fakeClaims++
		} else {
			scores[i].Classification = types.LabelReal
		}
	}

	isFake := fakeClaims*2 > len(scores)
	return types.Vote(layer, isFake, map[string]any{
		"claims":      scores,
		"fake_claims": fakeClaims,
	})
}

// ClaimDetail extracts the scored claims from a claim-layer verdict for
// persistence and display.
func ClaimDetail(verdicts []types.LayerVerdict) []types.ClaimScore {
	for _, v := range verdicts {
		if v.Layer != LayerClaims || v.Payload == nil {
			continue
		}
		if claims, ok := v.Payload["claims"].([]types.ClaimScore); ok {
			return claims
		}
	}
	return nil
}

func (c *ClaimScorer) scoreClaims(ctx context.Context, text string) ([]types.ClaimScore, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+url.PathEscape(text), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("x-api-key", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("claim API returned %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	var parsed struct {
		Results []struct {
			Text  string  `json:"text"`
			Score float64 `json:"score"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode claim response: %w", err)
	}

	scores := make([]types.ClaimScore, 0, len(parsed.Results))
	for _, r := range parsed.Results {
		scores = append(scores, types.ClaimScore{Text: r.Text, Score: r.Score})
	}
	return scores, nil
}
