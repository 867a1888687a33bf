package live

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"credcheck/internal/aggregate"
	"credcheck/internal/detect"
	"credcheck/internal/types"
)

// AudioCapturer grabs the next fixed-duration audio chunk from a live
// stream. Implementations wrap external tooling (yt-dlp/ffmpeg); a missing
// tool surfaces as an error on the first capture.
type AudioCapturer interface {
	CaptureChunk(ctx context.Context, streamURL string, duration time.Duration) ([]byte, error)
}

// Transcriber converts one audio chunk to text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte) (string, error)
}

// ResultSink receives each completed live analysis, off the worker that
// produced it (bus publication, persistence, alerting).
type ResultSink func(ctx context.Context, msg types.AnalysisResultMessage)

type chunkJob struct {
	index int
	audio []byte
}

// ChunkerConfig controls the live media loop.
type ChunkerConfig struct {
	ChunkDuration time.Duration
	QueueSize     int
}

// Chunker runs the capture → transcribe → extract → classify sequence for
// one live media source. Captured chunks move through a bounded work queue;
// when the queue is full, capture blocks rather than piling up chunks.
type Chunker struct {
	cfg       ChunkerConfig
	capturer  AudioCapturer
	transcrib Transcriber
	extractor *detect.NewsExtractor
	engine    *aggregate.Engine
	cache     *ResultCache
	sink      ResultSink
	logger    *slog.Logger

	runMu   sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewChunker(cfg ChunkerConfig, capturer AudioCapturer, transcriber Transcriber,
	extractor *detect.NewsExtractor, engine *aggregate.Engine, cache *ResultCache,
	sink ResultSink, logger *slog.Logger) *Chunker {

	if cfg.ChunkDuration == 0 {
		cfg.ChunkDuration = 90 * time.Second
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 4
	}
	if logger == nil {
		logger = slog.Default()
	}
	if sink == nil {
		sink = func(context.Context, types.AnalysisResultMessage) {}
	}

	return &Chunker{
		cfg:       cfg,
		capturer:  capturer,
		transcrib: transcriber,
		extractor: extractor,
		engine:    engine,
		cache:     cache,
		sink:      sink,
		logger:    logger,
	}
}

// Start begins processing streamURL. A placeholder entry is inserted
// immediately; starting while already running restarts on the new source.
// The lock is held from stopping the old loop through arming the new one,
// so concurrent Start calls cannot both arm and leak a capture loop.
func (c *Chunker) Start(ctx context.Context, streamURL string) {
	c.runMu.Lock()
	defer c.runMu.Unlock()

	c.stopLocked()

	c.running = true
	c.stopCh = make(chan struct{})
	c.doneCh = make(chan struct{})
	stopCh, doneCh := c.stopCh, c.doneCh

	c.cache.SetLiveSource(streamURL)
	c.cache.Add(NewPlaceholder(streamURL))

	go c.run(ctx, streamURL, stopCh, doneCh)
	c.logger.Info("started live media processing", "url", streamURL, "chunk", c.cfg.ChunkDuration)
}

// Stop halts capture and processing. In-flight chunk work is allowed to
// finish; its results are discarded by the closed queue.
func (c *Chunker) Stop() {
	c.runMu.Lock()
	defer c.runMu.Unlock()
	c.stopLocked()
}

func (c *Chunker) stopLocked() {
	if !c.running {
		return
	}
	close(c.stopCh)

	select {
	case <-c.doneCh:
	case <-time.After(c.cfg.ChunkDuration + 10*time.Second):
		c.logger.Warn("timed out waiting for media loop to exit")
	}
	c.running = false
}

func (c *Chunker) IsRunning() bool {
	c.runMu.Lock()
	defer c.runMu.Unlock()
	return c.running
}

func (c *Chunker) run(ctx context.Context, streamURL string, stopCh, doneCh chan struct{}) {
	defer close(doneCh)

	queue := make(chan chunkJob, c.cfg.QueueSize)
	var workers sync.WaitGroup

	workers.Add(1)
	go func() {
		defer workers.Done()
		for job := range queue {
			c.processChunk(ctx, streamURL, job)
		}
	}()

	index := 0
captureLoop:
	for {
		select {
		case <-stopCh:
			break captureLoop
		case <-ctx.Done():
			break captureLoop
		default:
		}

		audio, err := c.capturer.CaptureChunk(ctx, streamURL, c.cfg.ChunkDuration)
		if err != nil {
			// Capture failure is unrecoverable for this source: surface a
			// single terminal entry instead of silently stopping.
			c.logger.Error("audio capture failed", "url", streamURL, "chunk", index, "error", err)
			c.cache.Add(NewErrorEntry(streamURL,
				fmt.Sprintf("Live broadcast analysis stopped: %v", err)))
			break captureLoop
		}

		select {
		case queue <- chunkJob{index: index, audio: audio}:
		case <-stopCh:
			break captureLoop
		case <-ctx.Done():
			break captureLoop
		}
		index++
	}

	close(queue)
	workers.Wait()
	c.cache.SetIdle()
	c.logger.Info("live media processing finished", "url", streamURL, "chunks", index)
}

// processChunk runs one chunk through transcription, news extraction and
// classification. Per-chunk failures are logged and skipped; the loop moves
// on to the next chunk.
func (c *Chunker) processChunk(ctx context.Context, streamURL string, job chunkJob) {
	transcript, err := c.transcrib.Transcribe(ctx, job.audio)
	if err != nil {
		c.logger.Warn("transcription failed, skipping chunk", "chunk", job.index, "error", err)
		return
	}

	newsItem, found, err := c.extractor.Extract(ctx, transcript)
	if err != nil {
		c.logger.Warn("news extraction failed, skipping chunk", "chunk", job.index, "error", err)
		return
	}
	if !found {
		c.logger.Debug("no news content in chunk", "chunk", job.index)
		return
	}

	result, _ := c.engine.Evaluate(ctx, newsItem)

	entry := types.LiveResultEntry{
		Timestamp:  time.Now(),
		Source:     streamURL,
		SourceText: transcript,
		Claim:      newsItem,
		Verdict:    result,
		Display:    result.Label,
		Kind:       types.EntryResult,
	}
	if !c.cache.Add(entry) {
		c.logger.Debug("skipping duplicate news item", "chunk", job.index)
		return
	}

	c.sink(ctx, types.AnalysisResultMessage{
		Timestamp:  entry.Timestamp,
		Source:     streamURL,
		SourceText: transcript,
		Claim:      newsItem,
		Verdict:    result,
	})
}
