package types

import (
	"sync"
	"time"
)

const (
	LabelFake = "🔴 Fake"
	LabelReal = "🟢 Real"
)

// ClassifyVerdict maps a final fake/real decision to its display label.
func ClassifyVerdict(isFake bool) string {
	if isFake {
		return LabelFake
	}
	return LabelReal
}

// ContentItem is one unit of analyzable content flowing through the pipeline.
// Fields are guarded by an internal mutex because the monitor's polling
// goroutine and the analysis workers both touch buffered items.
type ContentItem struct {
	ID               string
	Title            string
	Text             string
	Link             string
	Source           string
	PublishedAt      string
	DiscoveredAt     time.Time
	Analyzed         bool
	IsFake           *bool
	CredibilityScore *float64

	mu sync.RWMutex
}

func NewContentItem(id, title, source string) *ContentItem {
	return &ContentItem{
		ID:           id,
		Title:        title,
		Source:       source,
		DiscoveredAt: time.Now(),
	}
}

func (c *ContentItem) GetID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ID
}

func (c *ContentItem) GetTitle() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Title
}

func (c *ContentItem) GetSource() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Source
}

func (c *ContentItem) GetText() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Text
}

func (c *ContentItem) SetText(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Text = text
}

func (c *ContentItem) IsAnalyzed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Analyzed
}

// SetVerdict promotes the item from discovered to analyzed. A nil score
// leaves any previous score in place.
func (c *ContentItem) SetVerdict(isFake bool, score *float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Analyzed = true
	c.IsFake = &isFake
	if score != nil {
		c.CredibilityScore = score
	}
}

// Snapshot returns a copy safe to hand to encoders and templates.
func (c *ContentItem) Snapshot() ContentItemView {
	c.mu.RLock()
	defer c.mu.RUnlock()

	view := ContentItemView{
		ID:           c.ID,
		Title:        c.Title,
		Text:         c.Text,
		Link:         c.Link,
		Source:       c.Source,
		PublishedAt:  c.PublishedAt,
		DiscoveredAt: c.DiscoveredAt,
		Analyzed:     c.Analyzed,
	}
	if c.IsFake != nil {
		v := *c.IsFake
		view.IsFake = &v
	}
	if c.CredibilityScore != nil {
		v := *c.CredibilityScore
		view.CredibilityScore = &v
	}
	return view
}

// ContentItemView is the immutable, JSON-facing form of a ContentItem.
type ContentItemView struct {
	ID               string    `json:"id"`
	Title            string    `json:"title"`
	Text             string    `json:"text,omitempty"`
	Link             string    `json:"link,omitempty"`
	Source           string    `json:"source"`
	PublishedAt      string    `json:"published,omitempty"`
	DiscoveredAt     time.Time `json:"discovered_at"`
	Analyzed         bool      `json:"analyzed"`
	IsFake           *bool     `json:"is_fake"`
	CredibilityScore *float64  `json:"credibility_score"`
}

// LayerVerdict is the output of one detector layer for one item. A nil
// IsFake means the layer abstained and contributes no vote.
type LayerVerdict struct {
	Layer   string         `json:"layer"`
	IsFake  *bool          `json:"is_fake"`
	Payload map[string]any `json:"payload,omitempty"`
}

// Abstain builds an abstaining verdict, optionally carrying the reason.
func Abstain(layer, reason string) LayerVerdict {
	v := LayerVerdict{Layer: layer}
	if reason != "" {
		v.Payload = map[string]any{"abstained": reason}
	}
	return v
}

// Vote builds a voting verdict.
func Vote(layer string, isFake bool, payload map[string]any) LayerVerdict {
	return LayerVerdict{Layer: layer, IsFake: &isFake, Payload: payload}
}

// AggregationResult is the aggregation engine's final decision for one item.
// IsFake is always concrete; abstention never leaks out of the engine.
type AggregationResult struct {
	IsFake       bool   `json:"is_fake"`
	VotesForFake int    `json:"votes_for_fake"`
	VotesForReal int    `json:"votes_for_real"`
	Label        string `json:"classification"`
}

// EntryKind distinguishes the three record shapes the live cache can hold.
type EntryKind string

const (
	EntryResult      EntryKind = "result"
	EntryPlaceholder EntryKind = "placeholder"
	EntryError       EntryKind = "error"
)

// LiveResultEntry is one record surfaced to consumers of the live feed.
// Entries are owned exclusively by the live result cache.
type LiveResultEntry struct {
	Timestamp  time.Time         `json:"timestamp"`
	Source     string            `json:"source"`
	SourceText string            `json:"transcript,omitempty"`
	Claim      string            `json:"news"`
	Verdict    AggregationResult `json:"verdict"`
	Display    string            `json:"classification"`
	Kind       EntryKind         `json:"kind"`
}

// ClaimScore is one claim-level plausibility score from the claim layer,
// retained in verdict payloads for display.
type ClaimScore struct {
	Text           string  `json:"text"`
	Score          float64 `json:"score"`
	Classification string  `json:"classification"`
}
