package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"credcheck/internal/aggregate"
	"credcheck/internal/config"
	"credcheck/internal/detect"
	"credcheck/internal/live"
	"credcheck/internal/monitor"
	"credcheck/internal/storage"
	"credcheck/internal/types"
)

type slowDetector struct {
	delay time.Duration
}

func (d *slowDetector) Name() string { return "slow" }

func (d *slowDetector) Evaluate(ctx context.Context, text string) (types.LayerVerdict, error) {
	select {
	case <-time.After(d.delay):
	case <-ctx.Done():
	}
	return types.Vote(d.Name(), false, nil), nil
}

type memStore struct {
	mu    sync.Mutex
	saved []storage.AnalysisRecord
}

func (s *memStore) SaveAnalysis(ctx context.Context, rec storage.AnalysisRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = append(s.saved, rec)
	return nil
}

func (s *memStore) RecentAnalyses(ctx context.Context, limit int) ([]storage.AnalysisRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]storage.AnalysisRecord, len(s.saved))
	copy(out, s.saved)
	return out, nil
}

func (s *memStore) Counts(ctx context.Context) (int, int, error) { return 0, 0, nil }

func (s *memStore) Close() error { return nil }

func (s *memStore) savedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.saved)
}

func newAnalysisPipeline(store storage.AnalysisStore, d detect.Detector) *Pipeline {
	mon := monitor.New(monitor.Config{
		Sources: []monitor.Source{{Name: "X", URL: "http://unused"}},
	}, monitor.NewExtractor(nil, 0, nil), nil)

	return &Pipeline{
		cfg:     &config.Config{},
		logger:  slog.Default(),
		store:   store,
		engine:  aggregate.NewEngine([]detect.Detector{d}, nil),
		monitor: mon,
		cache:   live.NewResultCache(10),
	}
}

// A slow detector must not block the monitor callback: the callback returns
// immediately and the detector work runs on a worker goroutine.
func TestCallbackDoesNotBlockOnDetectors(t *testing.T) {
	store := &memStore{}
	p := newAnalysisPipeline(store, &slowDetector{delay: 500 * time.Millisecond})

	item := types.NewContentItem("id-1", "Headline under test", "X")

	start := time.Now()
	p.onNewArticle(item)
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Fatalf("callback blocked for %v on detector work", elapsed)
	}

	deadline := time.Now().Add(3 * time.Second)
	for store.savedCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("dispatched analysis never completed")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// Workers dispatched by the callback are joined before the pipeline reports
// itself stopped, so in-flight analyses finish rather than being abandoned
// mid-write.
func TestWorkersDrainOnWait(t *testing.T) {
	store := &memStore{}
	p := newAnalysisPipeline(store, &slowDetector{delay: 50 * time.Millisecond})

	for i := 0; i < 3; i++ {
		p.onNewArticle(types.NewContentItem("id", "Headline", "X"))
	}
	p.workers.Wait()

	if got := store.savedCount(); got != 3 {
		t.Errorf("got %d persisted analyses after drain, want 3", got)
	}
}
