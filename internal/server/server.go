// Package server exposes the consumer-facing read API and the
// HTTP-triggered single-item analysis path.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/feeds"

	"credcheck/internal/live"
	"credcheck/internal/monitor"
	"credcheck/internal/storage"
	"credcheck/internal/types"
)

// Analyzer is the in-process single-item analysis path.
type Analyzer interface {
	AnalyzeText(ctx context.Context, headline, sourceType string) (types.AggregationResult, []types.LayerVerdict)
	SubmitLiveStream(ctx context.Context, url string)
}

type Config struct {
	Port string
	Name string
}

type Server struct {
	cfg      Config
	monitor  *monitor.Monitor
	cache    *live.ResultCache
	store    storage.AnalysisStore
	analyzer Analyzer
	logger   *slog.Logger
	server   *http.Server
}

func New(cfg Config, mon *monitor.Monitor, cache *live.ResultCache,
	store storage.AnalysisStore, analyzer Analyzer, logger *slog.Logger) *Server {

	if cfg.Port == "" {
		cfg.Port = "8080"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{cfg: cfg, monitor: mon, cache: cache, store: store, analyzer: analyzer, logger: logger}
}

func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/articles", s.handleRecentArticles)
	mux.HandleFunc("GET /api/live", s.handleLiveResults)
	mux.HandleFunc("POST /api/analyze", s.handleAnalyze)
	mux.HandleFunc("POST /api/live-stream", s.handleLiveStream)
	mux.HandleFunc("GET /api/stats", s.handleStats)
	mux.HandleFunc("GET /feed.rss", s.handleRSSFeed)
	mux.HandleFunc("GET /health", s.handleHealth)

	s.server = &http.Server{
		Addr:    ":" + s.cfg.Port,
		Handler: mux,
	}

	go func() {
		s.logger.Info("http server starting", "port", s.cfg.Port)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("http server error", "error", err)
		}
	}()
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.server.Shutdown(shutdownCtx)
}

// handleRecentArticles serves the most recent monitored articles, newest
// first. Pure read, safe concurrently with ingestion.
func (s *Server) handleRecentArticles(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 10)
	writeJSON(w, http.StatusOK, map[string]any{
		"articles": s.monitor.RecentViews(limit),
	})
}

// handleLiveResults serves the live analysis cache snapshot.
func (s *Server) handleLiveResults(w http.ResponseWriter, r *http.Request) {
	entries, liveURL, state := s.cache.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"youtube_url": liveURL,
		"state":       state,
		"results":     entries,
	})
}

// handleAnalyze runs the in-process analysis path for one submitted
// headline and returns the full per-layer detail.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Headline string `json:"headline"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Headline == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Please enter a headline."})
		return
	}

	result, verdicts := s.analyzer.AnalyzeText(r.Context(), req.Headline, "text")
	writeJSON(w, http.StatusOK, map[string]any{
		"headline":       req.Headline,
		"result":         result,
		"layers":         verdicts,
		"classification": result.Label,
	})
}

// handleLiveStream switches live analysis to a new stream URL.
func (s *Server) handleLiveStream(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.URL == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Please provide a stream URL."})
		return
	}

	s.analyzer.SubmitLiveStream(r.Context(), req.URL)
	writeJSON(w, http.StatusAccepted, map[string]any{"status": "processing", "url": req.URL})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	fake, real, err := s.store.Counts(r.Context())
	if err != nil {
		s.logger.Error("failed to read stats", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "stats unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"fake_count": fake,
		"real_count": real,
		"total":      fake + real,
	})
}

// handleRSSFeed publishes recently analyzed articles that were classified
// real as an RSS feed.
func (s *Server) handleRSSFeed(w http.ResponseWriter, r *http.Request) {
	views := s.monitor.RecentViews(0)

	feed := &feeds.Feed{
		Title:       s.cfg.Name + " verified news",
		Link:        &feeds.Link{Href: "http://localhost:" + s.cfg.Port + "/feed.rss"},
		Description: "Recently monitored articles that passed credibility analysis",
		Created:     time.Now(),
	}

	for _, view := range views {
		if !view.Analyzed || view.IsFake == nil || *view.IsFake {
			continue
		}
		item := &feeds.Item{
			Id:      view.ID,
			Title:   view.Title,
			Link:    &feeds.Link{Href: view.Link},
			Author:  &feeds.Author{Name: view.Source},
			Created: view.DiscoveredAt,
		}
		if view.CredibilityScore != nil {
			item.Description = fmt.Sprintf("credibility score: %.2f", *view.CredibilityScore)
		}
		feed.Items = append(feed.Items, item)
	}

	rss, err := feed.ToRss()
	if err != nil {
		s.logger.Error("failed to generate rss", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/rss+xml; charset=utf-8")
	fmt.Fprint(w, rss)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"status":"ok","name":"%s","time":"%s"}`, s.cfg.Name, time.Now().UTC().Format(time.RFC3339))
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
