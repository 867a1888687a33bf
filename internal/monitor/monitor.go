// Package monitor maintains a live, deduplicated, source-diverse stream of
// content items polled from a set of news feeds.
package monitor

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/mmcdole/gofeed"

	"credcheck/internal/types"
)

// minEmbeddedContent is the length below which feed-embedded content is
// considered too thin and the linked page is fetched instead.
const minEmbeddedContent = 100

// Callback receives each newly admitted item, on the polling goroutine, in
// registration order.
type Callback func(item *types.ContentItem)

// Source is one polled feed.
type Source struct {
	Name string
	URL  string
}

// Config controls a Monitor.
type Config struct {
	Sources       []Source
	CheckInterval time.Duration
	MaxRecent     int           // ring buffer capacity
	PerCycleCap   int           // max items admitted per poll cycle
	SeenMaxAge    time.Duration // dedup-set entry lifetime
}

// Monitor polls the configured sources on a fixed interval, deduplicates by
// content id, applies diversity selection and fans admitted items out to the
// registered callbacks. One mutex guards the dedup set and the recent ring.
type Monitor struct {
	cfg       Config
	parser    *gofeed.Parser
	extractor *Extractor
	sanitizer *bluemonday.Policy
	logger    *slog.Logger

	mu        sync.Mutex
	seen      map[string]time.Time
	recent    []*types.ContentItem
	callbacks []Callback

	runMu   sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func New(cfg Config, extractor *Extractor, logger *slog.Logger) *Monitor {
	if cfg.CheckInterval == 0 {
		cfg.CheckInterval = 5 * time.Minute
	}
	if cfg.MaxRecent == 0 {
		cfg.MaxRecent = 30
	}
	if cfg.PerCycleCap == 0 {
		cfg.PerCycleCap = 10
	}
	if cfg.SeenMaxAge == 0 {
		cfg.SeenMaxAge = 24 * time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Monitor{
		cfg:       cfg,
		parser:    gofeed.NewParser(),
		extractor: extractor,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger,
		seen:      make(map[string]time.Time),
	}
}

// RegisterCallback appends fn to the callback list. Append-only; callbacks
// registered after Start still receive subsequent cycles.
func (m *Monitor) RegisterCallback(fn Callback) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callbacks = append(m.callbacks, fn)
}

// Start launches the polling loop. Calling Start while running is a no-op.
func (m *Monitor) Start(ctx context.Context) {
	m.runMu.Lock()
	defer m.runMu.Unlock()

	if m.running {
		m.logger.Warn("monitor already running")
		return
	}
	m.running = true
	m.stopCh = make(chan struct{})
	m.doneCh = make(chan struct{})

	go m.loop(ctx)
	m.logger.Info("started feed monitoring",
		"feeds", len(m.cfg.Sources), "interval", m.cfg.CheckInterval)
}

// Stop signals the loop to exit and waits for it, bounded by one poll
// interval. After Stop returns no further callbacks are invoked.
func (m *Monitor) Stop() {
	m.runMu.Lock()
	defer m.runMu.Unlock()

	if !m.running {
		return
	}
	close(m.stopCh)

	select {
	case <-m.doneCh:
	case <-time.After(m.cfg.CheckInterval + 5*time.Second):
		m.logger.Warn("timed out waiting for polling loop to exit")
	}
	m.running = false
	m.logger.Info("stopped feed monitoring")
}

func (m *Monitor) IsRunning() bool {
	m.runMu.Lock()
	defer m.runMu.Unlock()
	return m.running
}

func (m *Monitor) loop(ctx context.Context) {
	defer close(m.doneCh)

	ticker := time.NewTicker(m.cfg.CheckInterval)
	defer ticker.Stop()

	m.pollOnce(ctx)

	for {
		select {
		case <-m.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.pollOnce(ctx)
			m.CleanupSeen(m.cfg.SeenMaxAge)
		}
	}
}

// pollOnce fetches every source, applies diversity selection to the new
// entries and admits the survivors. Per-source failures are logged and do
// not affect the other sources.
func (m *Monitor) pollOnce(ctx context.Context) {
	var candidates []*types.ContentItem

	for _, src := range m.cfg.Sources {
		items, err := m.fetchSource(ctx, src)
		if err != nil {
			m.logger.Error("feed fetch failed", "url", src.URL, "error", err)
			continue
		}
		candidates = append(candidates, items...)
	}

	selected := selectDiverse(candidates, m.cfg.PerCycleCap)
	if len(selected) == 0 {
		return
	}

	admitted := m.admit(selected)
	m.logger.Info("admitted new articles", "count", len(admitted), "candidates", len(candidates))

	for _, item := range admitted {
		m.invokeCallbacks(item)
	}
}

func (m *Monitor) fetchSource(ctx context.Context, src Source) ([]*types.ContentItem, error) {
	feed, err := m.parser.ParseURLWithContext(src.URL, ctx)
	if err != nil {
		return nil, err
	}

	sourceName := src.Name
	if sourceName == "" {
		sourceName = feed.Title
	}
	if sourceName == "" {
		if u, err := url.Parse(src.URL); err == nil {
			sourceName = u.Host
		}
	}

	var items []*types.ContentItem
	for _, entry := range feed.Items {
		id := entry.GUID
		if id == "" {
			id = entry.Link
		}
		if id == "" || entry.Title == "" {
			continue
		}
		if m.alreadySeen(id) {
			continue
		}

		item := types.NewContentItem(id, entry.Title, sourceName)
		item.Link = entry.Link
		item.PublishedAt = entry.Published
		item.Text = m.entryText(ctx, entry)
		items = append(items, item)
	}
	return items, nil
}

// entryText prefers feed-embedded content and falls back to scraping the
// linked page when the embedded text is absent or too short.
func (m *Monitor) entryText(ctx context.Context, entry *gofeed.Item) string {
	text := entry.Content
	if text == "" {
		text = entry.Description
	}
	text = collapseWhitespace(html.UnescapeString(m.sanitizer.Sanitize(text)))

	if len(text) >= minEmbeddedContent || entry.Link == "" {
		return text
	}

	extracted, err := m.extractor.FromURL(ctx, entry.Link)
	if err != nil {
		if IsBlockedDomain(err) {
			return err.Error()
		}
		m.logger.Debug("article extraction failed", "link", entry.Link, "error", err)
		return text
	}
	return extracted
}

func (m *Monitor) alreadySeen(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.seen[id]
	return ok
}

// selectDiverse caps how many items one source may contribute in a single
// cycle: first pass one per source, second pass up to two per source, both
// bounded by the overall per-cycle cap.
func selectDiverse(candidates []*types.ContentItem, limit int) []*types.ContentItem {
	var selected []*types.ContentItem
	perSource := make(map[string]int)

	for _, item := range candidates {
		if len(selected) >= limit {
			break
		}
		if perSource[item.Source] == 0 {
			selected = append(selected, item)
			perSource[item.Source]++
		}
	}

	if len(selected) < limit {
		for _, item := range candidates {
			if len(selected) >= limit {
				break
			}
			if perSource[item.Source] == 1 {
				selected = append(selected, item)
				perSource[item.Source]++
			}
		}
	}

	return selected
}

// admit records the items in the dedup set and the recent ring. Items whose
// id raced into the seen set since fetching are dropped here.
func (m *Monitor) admit(items []*types.ContentItem) []*types.ContentItem {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	admitted := make([]*types.ContentItem, 0, len(items))

	for _, item := range items {
		if _, dup := m.seen[item.ID]; dup {
			continue
		}
		m.seen[item.ID] = now

		m.recent = append([]*types.ContentItem{item}, m.recent...)
		if len(m.recent) > m.cfg.MaxRecent {
			m.recent = m.recent[:m.cfg.MaxRecent]
		}
		admitted = append(admitted, item)
	}
	return admitted
}

// invokeCallbacks runs every registered callback for one item, in
// registration order, on the polling goroutine. A callback failure never
// aborts the cycle.
func (m *Monitor) invokeCallbacks(item *types.ContentItem) {
	m.mu.Lock()
	callbacks := make([]Callback, len(m.callbacks))
	copy(callbacks, m.callbacks)
	m.mu.Unlock()

	for _, fn := range callbacks {
		func() {
			defer func() {
				if r := recover(); r != nil {
					m.logger.Error("callback panicked", "item", item.GetID(), "panic", fmt.Sprint(r))
				}
			}()
			fn(item)
		}()
	}
}

// CleanupSeen drops dedup-set entries older than maxAge, bounding the seen
// set over long uptimes.
func (m *Monitor) CleanupSeen(maxAge time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for id, ts := range m.seen {
		if ts.Before(cutoff) {
			delete(m.seen, id)
			removed++
		}
	}
	if removed > 0 {
		m.logger.Debug("cleaned up dedup cache", "removed", removed)
	}
	return removed
}

// Recent returns a snapshot of the most recent limit items, newest first.
func (m *Monitor) Recent(limit int) []*types.ContentItem {
	m.mu.Lock()
	defer m.mu.Unlock()

	if limit <= 0 || limit > len(m.recent) {
		limit = len(m.recent)
	}
	out := make([]*types.ContentItem, limit)
	copy(out, m.recent[:limit])
	return out
}

// RecentViews returns JSON-ready snapshots of the most recent limit items.
func (m *Monitor) RecentViews(limit int) []types.ContentItemView {
	items := m.Recent(limit)
	views := make([]types.ContentItemView, len(items))
	for i, item := range items {
		views[i] = item.Snapshot()
	}
	return views
}

// AddCredibilityScore promotes a buffered item to analyzed once its verdict
// is known. Returns false when the item has already aged out of the ring.
func (m *Monitor) AddCredibilityScore(id string, isFake bool, score *float64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, item := range m.recent {
		if item.GetID() == id {
			item.SetVerdict(isFake, score)
			return true
		}
	}
	return false
}
