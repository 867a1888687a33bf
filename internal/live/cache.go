// Package live holds the bounded cache of completed live analyses and the
// chunked media processing loop that feeds it.
package live

import (
	"strings"
	"sync"
	"time"

	"golang.org/x/text/unicode/norm"

	"credcheck/internal/types"
)

// SourceState is the processing state of the currently tracked live source.
type SourceState string

const (
	StateIdle       SourceState = "idle"
	StateProcessing SourceState = "processing"
	StateResults    SourceState = "results"
	StateError      SourceState = "error"
)

// placeholderPrefix marks transient "in progress" entries.
const placeholderPrefix = "Processing video: "

// NewPlaceholder builds the transient entry shown while a live source is
// being processed, before any real result exists.
func NewPlaceholder(source string) types.LiveResultEntry {
	return types.LiveResultEntry{
		Timestamp: time.Now(),
		Source:    source,
		Claim:     placeholderPrefix + source,
		Display:   "⏳ Processing",
		Kind:      types.EntryPlaceholder,
	}
}

// NewErrorEntry builds a terminal entry explaining an unrecoverable
// processing failure. Error entries are never superseded automatically.
func NewErrorEntry(source, explanation string) types.LiveResultEntry {
	return types.LiveResultEntry{
		Timestamp: time.Now(),
		Source:    source,
		Claim:     explanation,
		Display:   "⚠️ Error",
		Kind:      types.EntryError,
	}
}

// ResultCache is the bounded, insertion-ordered store of completed live
// analyses. It is the single writer of its entries; producers submit through
// Add only. One mutex guards the list, the tracked source and the state.
type ResultCache struct {
	mu       sync.Mutex
	capacity int
	entries  []types.LiveResultEntry
	liveURL  string
	state    SourceState
}

func NewResultCache(capacity int) *ResultCache {
	if capacity <= 0 {
		capacity = 10
	}
	return &ResultCache{capacity: capacity, state: StateIdle}
}

// SetLiveSource records the live source currently being analyzed and moves
// the tracked state to processing.
func (c *ResultCache) SetLiveSource(url string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.liveURL = url
	c.state = StateProcessing
}

// SetIdle marks the tracked source as no longer being processed.
func (c *ResultCache) SetIdle() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = StateIdle
}

// Add inserts an entry at the front of the cache. Entries whose claim text
// duplicates an existing entry are silently rejected — overlapping media
// chunks re-detect the same claim. A real result supersedes any placeholder
// for the same source; insertion beyond capacity evicts from the tail.
func (c *ResultCache) Add(entry types.LiveResultEntry) bool {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	key := dedupKey(entry.Claim)
	for _, existing := range c.entries {
		if dedupKey(existing.Claim) == key {
			return false
		}
	}

	if entry.Kind == types.EntryResult {
		c.removePlaceholders(entry.Source)
		c.state = StateResults
	}
	if entry.Kind == types.EntryError {
		c.state = StateError
	}

	c.entries = append([]types.LiveResultEntry{entry}, c.entries...)
	if len(c.entries) > c.capacity {
		c.entries = c.entries[:c.capacity]
	}
	return true
}

func (c *ResultCache) removePlaceholders(source string) {
	kept := c.entries[:0]
	for _, e := range c.entries {
		if e.Kind == types.EntryPlaceholder && e.Source == source {
			continue
		}
		kept = append(kept, e)
	}
	c.entries = kept
}

// Snapshot returns a copy of the cached entries, most recent first, along
// with the currently tracked live source and its state.
func (c *ResultCache) Snapshot() ([]types.LiveResultEntry, string, SourceState) {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]types.LiveResultEntry, len(c.entries))
	copy(out, c.entries)
	return out, c.liveURL, c.state
}

// Len reports the current number of cached entries.
func (c *ResultCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// dedupKey normalizes claim text so trivially re-worded duplicates from
// overlapping chunks compare equal.
func dedupKey(claim string) string {
	folded := strings.ToLower(strings.Join(strings.Fields(claim), " "))
	return norm.NFC.String(folded)
}

// IsPlaceholder reports whether an entry is a transient processing record.
func IsPlaceholder(e types.LiveResultEntry) bool {
	return e.Kind == types.EntryPlaceholder || strings.HasPrefix(e.Claim, placeholderPrefix)
}
