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

	"github.com/tmc/langchaingo/embeddings"
	"github.com/viterin/vek/vek32"

	"credcheck/internal/types"
)

// Decision thresholds carried over from the original detector tuning.
const (
	similarityFakeThreshold  = 0.78
	credibilityFakeThreshold = 0.17
	trustedSourceBonus       = 0.5
)

// trustedSources are domains whose presence among search hits raises the
// credibility component of the score.
var trustedSources = []string{
	"bbc.com", "reuters.com", "apnews.com", "snopes.com", "theguardian.com", "nytimes.com", "washingtonpost.com",
	"bbc.co.uk", "cnn.com", "forbes.com", "npr.org", "wsj.com", "time.com", "usatoday.com", "bloomberg.com",
	"thehill.com", "guardian.co.uk", "huffpost.com", "independent.co.uk", "scientificamerican.com", "wired.com",
	"nationalgeographic.com", "marketwatch.com", "businessinsider.com", "abcnews.go.com", "news.yahoo.com",
	"theverge.com", "techcrunch.com", "theatlantic.com", "axios.com", "cnbc.com", "newsweek.com",
	"latimes.com", "thetimes.co.uk", "sky.com", "thehindu.com", "straitstimes.com", "foreignpolicy.com",
	"dw.com", "indianexpress.com", "dailymail.co.uk", "smh.com.au", "livemint.com",
}

// SearchHit is one result from the web search collaborator.
type SearchHit struct {
	Title       string
	Description string
	Link        string
}

// SearchClient is the web-search collaborator contract.
type SearchClient interface {
	Search(ctx context.Context, query string) ([]SearchHit, error)
}

// Similarity is the trusted-source similarity layer: it compares the
// headline against current web search results using embedding cosine
// similarity and a trusted-domain credibility bonus.
type Similarity struct {
	search   SearchClient
	embedder embeddings.Embedder
	timeout  time.Duration
}

func NewSimilarity(search SearchClient, embedder embeddings.Embedder, timeout time.Duration) *Similarity {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Similarity{search: search, embedder: embedder, timeout: timeout}
}

func (s *Similarity) Name() string {
	return LayerCredibility
}

func (s *Similarity) Evaluate(ctx context.Context, text string) (types.LayerVerdict, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	hits, err := s.search.Search(ctx, strings.TrimSpace(text))
	if err != nil {
		return types.LayerVerdict{}, types.NewDetectorError(s.Name(), "search failed", err)
	}
	if len(hits) == 0 {
		// No comparable sources found: the layer has no opinion.
		return types.Abstain(s.Name(), "no comparable sources found"), nil
	}

	avgSim, err := s.averageSimilarity(ctx, text, hits)
	if err != nil {
		return types.LayerVerdict{}, types.NewDetectorError(s.Name(), "embedding failed", err)
	}

	avgCred := averageCredibility(hits)
	isFake := avgSim < similarityFakeThreshold && avgCred <= credibilityFakeThreshold

	return types.Vote(s.Name(), isFake, map[string]any{
		"average_similarity":  avgSim,
		"average_credibility": avgCred,
		"score":               avgSim,
		"results":             len(hits),
	}), nil
}

func (s *Similarity) averageSimilarity(ctx context.Context, text string, hits []SearchHit) (float64, error) {
	docs := make([]string, len(hits))
	for i, hit := range hits {
		docs[i] = hit.Title + " " + hit.Description
	}

	queryVec, err := s.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return 0, err
	}

	docVecs, err := s.embedder.EmbedDocuments(ctx, docs)
	if err != nil {
		return 0, err
	}

	var sum float64
	count := 0
	for _, vec := range docVecs {
		if len(vec) != len(queryVec) || len(vec) == 0 {
			continue
		}
		sum += float64(vek32.CosineSimilarity(queryVec, vec))
		count++
	}
	if count == 0 {
		return 0, fmt.Errorf("no comparable embeddings")
	}
	return sum / float64(count), nil
}

func averageCredibility(hits []SearchHit) float64 {
	var sum float64
	for _, hit := range hits {
		if isTrustedSource(hit.Link) {
			sum += trustedSourceBonus
		}
	}
	return sum / float64(len(hits))
}

func isTrustedSource(link string) bool {
	for _, source := range trustedSources {
		if strings.Contains(link, source) {
			return true
		}
	}
	return false
}

// CredibilityScore extracts the numeric score from a credibility-layer
// verdict, used to annotate buffered articles once analysis completes.
func CredibilityScore(verdicts []types.LayerVerdict) *float64 {
	for _, v := range verdicts {
		if v.Layer != LayerCredibility || v.Payload == nil {
			continue
		}
		if score, ok := v.Payload["score"].(float64); ok {
			return &score
		}
	}
	return nil
}

// GoogleSearch implements SearchClient against the Google Custom Search
// JSON API.
type GoogleSearch struct {
	apiKey     string
	engineID   string
	endpoint   string
	maxResults int
	client     *http.Client
}

func NewGoogleSearch(apiKey, engineID string, maxResults int) *GoogleSearch {
	if maxResults <= 0 {
		maxResults = 5
	}
	return &GoogleSearch{
		apiKey:     apiKey,
		engineID:   engineID,
		endpoint:   "https://www.googleapis.com/customsearch/v1",
		maxResults: maxResults,
		client:     &http.Client{Timeout: 15 * time.Second},
	}
}

// NewSearchClientAt points the client at a non-default endpoint.
func NewSearchClientAt(endpoint, apiKey, engineID string, maxResults int) *GoogleSearch {
	s := NewGoogleSearch(apiKey, engineID, maxResults)
	s.endpoint = endpoint
	return s
}

func (g *GoogleSearch) Search(ctx context.Context, query string) ([]SearchHit, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("key", g.apiKey)
	params.Set("cx", g.engineID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("search API returned %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	var parsed struct {
		Items []struct {
			Title   string `json:"title"`
			Snippet string `json:"snippet"`
			Link    string `json:"link"`
		} `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	hits := make([]SearchHit, 0, g.maxResults)
	for _, item := range parsed.Items {
		hits = append(hits, SearchHit{
			Title:       item.Title,
			Description: item.Snippet,
			Link:        item.Link,
		})
		if len(hits) >= g.maxResults {
			break
		}
	}
	return hits, nil
}
