package monitor

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"credcheck/internal/types"
)

func rssFeed(title string, items ...string) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?><rss version="2.0"><channel>`)
	fmt.Fprintf(&b, "<title>%s</title>", title)
	b.WriteString(items[0])
	for _, item := range items[1:] {
		b.WriteString(item)
	}
	b.WriteString(`</channel></rss>`)
	return b.String()
}

func rssItem(guid, title string) string {
	return fmt.Sprintf(`<item><guid>%s</guid><title>%s</title><description>%s</description></item>`,
		guid, title, strings.Repeat("Detailed coverage of the story. ", 5))
}

func serveFeed(t *testing.T, body func() string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, body())
	}))
	t.Cleanup(server.Close)
	return server
}

func newTestMonitor(cfg Config) *Monitor {
	return New(cfg, NewExtractor(nil, 0, nil), nil)
}

func TestDiversitySelection(t *testing.T) {
	var itemsA []string
	for i := 0; i < 6; i++ {
		itemsA = append(itemsA, rssItem(fmt.Sprintf("a-%d", i), fmt.Sprintf("Story A%d", i)))
	}
	feedA := serveFeed(t, func() string { return rssFeed("Feed A", itemsA...) })
	feedB := serveFeed(t, func() string { return rssFeed("Feed B", rssItem("b-0", "Story B0")) })

	m := newTestMonitor(Config{
		Sources: []Source{
			{Name: "A", URL: feedA.URL},
			{Name: "B", URL: feedB.URL},
		},
		PerCycleCap: 10,
	})
	m.pollOnce(context.Background())

	perSource := map[string]int{}
	for _, item := range m.Recent(0) {
		perSource[item.Source]++
	}

	if perSource["A"] > 2 {
		t.Errorf("source A contributed %d items in one cycle, want at most 2", perSource["A"])
	}
	if perSource["B"] != 1 {
		t.Errorf("source B contributed %d items, want 1", perSource["B"])
	}
}

func TestSelectDiverseHonorsCycleCap(t *testing.T) {
	var candidates []*types.ContentItem
	for s := 0; s < 8; s++ {
		for i := 0; i < 3; i++ {
			item := types.NewContentItem(fmt.Sprintf("s%d-i%d", s, i), "t", fmt.Sprintf("source-%d", s))
			candidates = append(candidates, item)
		}
	}

	selected := selectDiverse(candidates, 10)
	if len(selected) != 10 {
		t.Fatalf("selected %d items, want cycle cap of 10", len(selected))
	}

	perSource := map[string]int{}
	for _, item := range selected {
		perSource[item.Source]++
		if perSource[item.Source] > 2 {
			t.Fatalf("source %s selected more than twice", item.Source)
		}
	}
}

func TestCrossCycleDedup(t *testing.T) {
	feed := serveFeed(t, func() string {
		return rssFeed("Feed", rssItem("x-1", "Same story"), rssItem("x-2", "Other story"))
	})

	m := newTestMonitor(Config{Sources: []Source{{Name: "X", URL: feed.URL}}})
	m.pollOnce(context.Background())
	m.pollOnce(context.Background())

	if got := len(m.Recent(0)); got != 2 {
		t.Errorf("got %d items after two polls of the same feed, want 2", got)
	}
}

func TestRecentRingBound(t *testing.T) {
	cycle := 0
	feed := serveFeed(t, func() string {
		return rssFeed("Feed",
			rssItem(fmt.Sprintf("c%d-1", cycle), "First"),
			rssItem(fmt.Sprintf("c%d-2", cycle), "Second"))
	})

	m := newTestMonitor(Config{Sources: []Source{{Name: "X", URL: feed.URL}}, MaxRecent: 3})
	for ; cycle < 4; cycle++ {
		m.pollOnce(context.Background())
	}

	if got := len(m.Recent(0)); got != 3 {
		t.Errorf("ring holds %d items, want bound of 3", got)
	}
	if newest := m.Recent(1)[0]; !strings.HasPrefix(newest.ID, "c3-") {
		t.Errorf("newest item %q should come from the last cycle", newest.ID)
	}
}

func TestAddCredibilityScore(t *testing.T) {
	feed := serveFeed(t, func() string { return rssFeed("Feed", rssItem("y-1", "Story")) })

	m := newTestMonitor(Config{Sources: []Source{{Name: "Y", URL: feed.URL}}})
	m.pollOnce(context.Background())

	score := 0.83
	if !m.AddCredibilityScore("y-1", false, &score) {
		t.Fatal("buffered item not found")
	}

	view := m.RecentViews(1)[0]
	if !view.Analyzed || view.IsFake == nil || *view.IsFake {
		t.Errorf("item not promoted to analyzed real: %+v", view)
	}
	if view.CredibilityScore == nil || *view.CredibilityScore != score {
		t.Errorf("score not recorded: %v", view.CredibilityScore)
	}

	if m.AddCredibilityScore("aged-out", true, nil) {
		t.Error("unknown id should report false")
	}
}

func TestCleanupSeen(t *testing.T) {
	m := newTestMonitor(Config{Sources: []Source{{Name: "X", URL: "http://unused"}}})

	m.mu.Lock()
	m.seen["old"] = time.Now().Add(-48 * time.Hour)
	m.seen["fresh"] = time.Now()
	m.mu.Unlock()

	if removed := m.CleanupSeen(24 * time.Hour); removed != 1 {
		t.Errorf("removed %d entries, want 1", removed)
	}
	if m.alreadySeen("old") {
		t.Error("expired entry still present")
	}
	if !m.alreadySeen("fresh") {
		t.Error("fresh entry was removed")
	}
}

func TestCallbackOrderAndPanicIsolation(t *testing.T) {
	feed := serveFeed(t, func() string { return rssFeed("Feed", rssItem("z-1", "Story")) })

	m := newTestMonitor(Config{Sources: []Source{{Name: "Z", URL: feed.URL}}})

	var order []string
	m.RegisterCallback(func(item *types.ContentItem) { order = append(order, "first") })
	m.RegisterCallback(func(item *types.ContentItem) {
		order = append(order, "second")
		panic("callback failure")
	})
	m.RegisterCallback(func(item *types.ContentItem) { order = append(order, "third") })

	m.pollOnce(context.Background())

	want := []string{"first", "second", "third"}
	if len(order) != len(want) {
		t.Fatalf("got callback order %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("got callback order %v, want %v", order, want)
		}
	}
}

func TestFetchSkipsUntitledEntries(t *testing.T) {
	feed := serveFeed(t, func() string {
		return rssFeed("Feed",
			`<item><guid>no-title</guid><description>text</description></item>`,
			rssItem("titled", "Has a title"))
	})

	m := newTestMonitor(Config{Sources: []Source{{Name: "X", URL: feed.URL}}})
	m.pollOnce(context.Background())

	items := m.Recent(0)
	if len(items) != 1 || items[0].ID != "titled" {
		t.Errorf("expected only the titled entry, got %+v", items)
	}
}
