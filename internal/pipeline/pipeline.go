// Package pipeline assembles the monitor, detectors, bus, live loop, storage
// and server into one running system.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"credcheck/internal/aggregate"
	"credcheck/internal/bus"
	"credcheck/internal/config"
	"credcheck/internal/detect"
	"credcheck/internal/live"
	"credcheck/internal/monitor"
	"credcheck/internal/server"
	"credcheck/internal/storage"
	_ "credcheck/internal/storage/sqlite"
	"credcheck/internal/targets"
	"credcheck/internal/types"
)

// Pipeline owns every long-lived component and their lifecycles.
type Pipeline struct {
	cfg    *config.Config
	logger *slog.Logger

	store   storage.AnalysisStore
	engine  *aggregate.Engine
	monitor *monitor.Monitor
	cache   *live.ResultCache
	chunker *live.Chunker
	alerter *targets.DiscordAlerter
	server  *server.Server

	redis           *redis.Client
	producer        *bus.Producer
	contentConsumer *bus.Consumer
	resultsConsumer *bus.Consumer

	workers sync.WaitGroup
}

// New builds the full pipeline from config. Detector layers whose external
// collaborators are not configured are left out; the aggregation engine
// works with whatever layers remain.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Pipeline, error) {
	if logger == nil {
		logger = slog.Default()
	}

	p := &Pipeline{cfg: cfg, logger: logger}

	store, err := storage.Open(cfg.Storage.Type, cfg.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}
	p.store = store

	llm, err := detect.NewOllamaClient(cfg.Detectors.FactCheck.Model)
	if err != nil {
		return nil, fmt.Errorf("failed to create ollama client: %w", err)
	}
	p.engine = aggregate.NewEngine(p.buildDetectors(llm), logger)

	extractor := monitor.NewExtractor(cfg.Monitor.BlockedDomains, cfg.Monitor.MaxArticleLen, logger)
	sources := make([]monitor.Source, len(cfg.Monitor.Feeds))
	for i, feed := range cfg.Monitor.Feeds {
		sources[i] = monitor.Source{Name: feed.Name, URL: feed.URL}
	}
	p.monitor = monitor.New(monitor.Config{
		Sources:       sources,
		CheckInterval: config.Duration(cfg.Monitor.CheckInterval),
		MaxRecent:     cfg.Monitor.MaxRecent,
		PerCycleCap:   cfg.Monitor.PerCycleCap,
		SeenMaxAge:    config.Duration(cfg.Monitor.SeenMaxAge),
	}, extractor, logger)

	p.cache = live.NewResultCache(cfg.Live.CacheSize)
	p.chunker = live.NewChunker(
		live.ChunkerConfig{
			ChunkDuration: config.Duration(cfg.Live.ChunkDuration),
			QueueSize:     cfg.Live.QueueSize,
		},
		live.NewFFmpegCapturer(),
		live.NewWhisperTranscriber(cfg.Live.WhisperEndpoint),
		detect.NewNewsExtractor(llm, config.Duration(cfg.Detectors.FactCheck.Timeout)),
		p.engine,
		p.cache,
		p.liveResultSink,
		logger,
	)

	if cfg.Bus.Enabled {
		client, err := bus.NewClient(ctx, cfg.Bus.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to message bus: %w", err)
		}
		p.redis = client
		p.producer = bus.NewProducer(client, logger)
		p.contentConsumer = bus.NewConsumer(client, bus.RawContentStream, bus.ContentGroup,
			p.handleRawContent, logger)
		p.resultsConsumer = bus.NewConsumer(client, bus.AnalysisResultsStream, bus.ResultsGroup,
			p.handleAnalysisResult, logger)
	}

	if cfg.Alerts.Enabled {
		alerter, err := targets.NewDiscordAlerter(cfg.Alerts.BotToken, cfg.Alerts.ChannelID, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create alerter: %w", err)
		}
		p.alerter = alerter
	}

	p.server = server.New(server.Config{Port: cfg.Server.Port, Name: cfg.App.Name},
		p.monitor, p.cache, p.store, p, logger)

	p.monitor.RegisterCallback(p.onNewArticle)
	return p, nil
}

// buildDetectors assembles the layers whose collaborators are configured.
func (p *Pipeline) buildDetectors(llm *detect.OllamaClient) []detect.Detector {
	var detectors []detect.Detector
	cfg := p.cfg.Detectors

	if cfg.Similarity.SearchAPIKey != "" && cfg.Similarity.SearchEngineID != "" {
		embedder, err := detect.NewOllamaEmbedder(cfg.Similarity.EmbedModel)
		if err != nil {
			p.logger.Warn("skipping credibility layer, embedder unavailable", "error", err)
		} else {
			search := detect.NewGoogleSearch(cfg.Similarity.SearchAPIKey,
				cfg.Similarity.SearchEngineID, cfg.Similarity.MaxResults)
			detectors = append(detectors, detect.NewSimilarity(search, embedder, 0))
		}
	} else {
		p.logger.Warn("skipping credibility layer, search API not configured")
	}

	detectors = append(detectors, detect.NewFactCheck(llm, config.Duration(cfg.FactCheck.Timeout)))

	if cfg.Claims.Endpoint != "" {
		detectors = append(detectors, detect.NewClaimScorer(cfg.Claims.Endpoint, cfg.Claims.APIKey))
	} else {
		p.logger.Warn("skipping claim layer, endpoint not configured")
	}

	p.logger.Info("detector layers assembled", "count", len(detectors))
	return detectors
}

// Run starts every component. Blocks until ctx is cancelled.
func (p *Pipeline) Run(ctx context.Context) error {
	if p.contentConsumer != nil {
		if err := p.contentConsumer.Start(ctx); err != nil {
			return err
		}
		if err := p.resultsConsumer.Start(ctx); err != nil {
			return err
		}
	}

	p.monitor.Start(ctx)

	if url := p.cfg.Live.DefaultStreamURL; url != "" {
		p.chunker.Start(ctx, url)
	}

	if err := p.server.Start(ctx); err != nil {
		return err
	}

	p.logger.Info("pipeline running", "app", p.cfg.App.Name)
	<-ctx.Done()
	return nil
}

// Shutdown stops components in reverse start order: no new work is accepted,
// then in-flight work drains, then the stores close.
func (p *Pipeline) Shutdown(ctx context.Context) {
	if err := p.server.Shutdown(ctx); err != nil {
		p.logger.Error("server shutdown failed", "error", err)
	}

	p.chunker.Stop()
	p.monitor.Stop()
	p.workers.Wait()

	if p.contentConsumer != nil {
		p.contentConsumer.Stop()
		p.resultsConsumer.Stop()
	}
	if p.redis != nil {
		p.redis.Close()
	}

	if p.alerter != nil {
		p.alerter.Close()
	}
	if err := p.store.Close(); err != nil {
		p.logger.Error("storage close failed", "error", err)
	}
	p.logger.Info("pipeline stopped")
}

// onNewArticle handles each item the monitor admits. With the bus enabled
// the article is published for a consumer to pick up; otherwise analysis is
// dispatched onto a worker goroutine. The callback itself never performs
// detector network calls: those can block for tens of seconds and would
// starve the polling loop.
func (p *Pipeline) onNewArticle(item *types.ContentItem) {
	ctx := context.Background()
	article := item.Snapshot()

	if p.producer != nil {
		p.producer.PublishRawContent(ctx, types.NewsMessage(article))
		return
	}

	p.workers.Add(1)
	go func() {
		defer p.workers.Done()
		p.analyzeArticle(ctx, article)
	}()
}

// analyzeArticle runs one article through the engine, annotates the buffered
// item, persists the verdict and alerts on fake.
func (p *Pipeline) analyzeArticle(ctx context.Context, article types.ContentItemView) {
	result, verdicts := p.engine.Evaluate(ctx, article.Title)

	p.monitor.AddCredibilityScore(article.ID, result.IsFake, detect.CredibilityScore(verdicts))
	p.persist(ctx, article.Title, "rss", result, verdicts)

	if p.alerter != nil {
		p.alerter.Notify(article.Title, article.Source, result)
	}

	p.logger.Info("article analyzed",
		"headline", article.Title, "source", article.Source, "verdict", result.Label)
}

// persist writes one completed analysis. A single attempt; a storage failure
// costs the record, not the pipeline.
func (p *Pipeline) persist(ctx context.Context, headline, sourceType string,
	result types.AggregationResult, verdicts []types.LayerVerdict) {

	err := p.store.SaveAnalysis(ctx, storage.AnalysisRecord{
		Headline:       headline,
		IsFake:         result.IsFake,
		Classification: result.Label,
		SourceType:     sourceType,
		ClaimDetail:    detect.ClaimDetail(verdicts),
		CreatedAt:      time.Now(),
	})
	if err != nil {
		p.logger.Error("failed to persist analysis", "headline", headline, "error", err)
	}
}

// liveResultSink receives each completed live chunk analysis from the
// chunker worker.
func (p *Pipeline) liveResultSink(ctx context.Context, msg types.AnalysisResultMessage) {
	if p.producer != nil {
		p.producer.PublishAnalysisResult(ctx, msg)
	}
	p.persist(ctx, msg.Claim, "live", msg.Verdict, nil)

	if p.alerter != nil {
		p.alerter.Notify(msg.Claim, msg.Source, msg.Verdict)
	}
}

// AnalyzeText is the in-process single-item analysis path used by the HTTP
// API.
func (p *Pipeline) AnalyzeText(ctx context.Context, headline, sourceType string) (types.AggregationResult, []types.LayerVerdict) {
	result, verdicts := p.engine.Evaluate(ctx, headline)
	p.persist(ctx, headline, sourceType, result, verdicts)
	return result, verdicts
}

// SubmitLiveStream routes a live stream URL into analysis, through the bus
// when enabled and directly into the chunker otherwise.
func (p *Pipeline) SubmitLiveStream(ctx context.Context, url string) {
	if p.producer != nil {
		p.producer.PublishRawContent(ctx, types.LiveVideoMessage(url))
		return
	}
	p.chunker.Start(context.WithoutCancel(ctx), url)
}

// handleRawContent consumes the raw-content channel: news articles go
// through analysis, live-video messages restart the chunker on the new URL.
func (p *Pipeline) handleRawContent(ctx context.Context, payload []byte) {
	msg, err := types.DecodeRawContent(payload)
	if err != nil {
		p.logger.Warn("dropping raw-content message", "error", err)
		return
	}

	switch msg.Type {
	case types.ContentTypeNews:
		p.analyzeArticle(ctx, *msg.Article)
	case types.ContentTypeLiveVideo:
		p.chunker.Start(context.WithoutCancel(ctx), msg.StreamURL)
	}
}

// handleAnalysisResult consumes the analysis-results channel into the live
// cache.
func (p *Pipeline) handleAnalysisResult(ctx context.Context, payload []byte) {
	msg, err := types.DecodeAnalysisResult(payload)
	if err != nil {
		p.logger.Warn("dropping analysis-result message", "error", err)
		return
	}

	p.cache.Add(types.LiveResultEntry{
		Timestamp:  msg.Timestamp,
		Source:     msg.Source,
		SourceText: msg.SourceText,
		Claim:      msg.Claim,
		Verdict:    msg.Verdict,
		Display:    msg.Verdict.Label,
		Kind:       types.EntryResult,
	})
}
