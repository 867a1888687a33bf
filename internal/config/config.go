package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	App       AppConfig       `toml:"app"`
	Monitor   MonitorConfig   `toml:"monitor"`
	Bus       BusConfig       `toml:"bus"`
	Storage   StorageConfig   `toml:"storage"`
	Server    ServerConfig    `toml:"server"`
	Live      LiveConfig      `toml:"live"`
	Detectors DetectorsConfig `toml:"detectors"`
	Alerts    AlertsConfig    `toml:"alerts"`
}

type AppConfig struct {
	Name     string `toml:"name"`
	LogLevel string `toml:"log_level"`
}

type FeedConfig struct {
	Name string `toml:"name"`
	URL  string `toml:"url"`
}

type MonitorConfig struct {
	Feeds          []FeedConfig `toml:"feeds"`
	CheckInterval  string       `toml:"check_interval"`
	MaxRecent      int          `toml:"max_recent"`
	PerCycleCap    int          `toml:"per_cycle_cap"`
	SeenMaxAge     string       `toml:"seen_max_age"`
	BlockedDomains []string     `toml:"blocked_domains"`
	MaxArticleLen  int          `toml:"max_article_len"`
}

type BusConfig struct {
	Enabled  bool   `toml:"enabled"`
	RedisURL string `toml:"redis_url"`
}

type StorageConfig struct {
	Type string `toml:"type"`
	Path string `toml:"path"`
}

type ServerConfig struct {
	Port string `toml:"port"`
}

type LiveConfig struct {
	ChunkDuration    string `toml:"chunk_duration"`
	QueueSize        int    `toml:"queue_size"`
	DefaultStreamURL string `toml:"default_stream_url"`
	CacheSize        int    `toml:"cache_size"`
	WhisperEndpoint  string `toml:"whisper_endpoint"`
}

type DetectorsConfig struct {
	Similarity SimilarityConfig `toml:"similarity"`
	FactCheck  FactCheckConfig  `toml:"factcheck"`
	Claims     ClaimsConfig     `toml:"claims"`
}

type SimilarityConfig struct {
	SearchAPIKey   string `toml:"search_api_key"`
	SearchEngineID string `toml:"search_engine_id"`
	EmbedModel     string `toml:"embed_model"`
	MaxResults     int    `toml:"max_results"`
}

type FactCheckConfig struct {
	Model   string `toml:"model"`
	Timeout string `toml:"timeout"`
}

type ClaimsConfig struct {
	Endpoint string `toml:"endpoint"`
	APIKey   string `toml:"api_key"`
}

type AlertsConfig struct {
	Enabled   bool   `toml:"enabled"`
	BotToken  string `toml:"bot_token"`
	ChannelID string `toml:"channel_id"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}

func validateConfig(config *Config) error {
	if config.App.Name == "" {
		config.App.Name = "credcheck"
	}

	if config.Monitor.CheckInterval == "" {
		config.Monitor.CheckInterval = "60s"
	}
	if _, err := time.ParseDuration(config.Monitor.CheckInterval); err != nil {
		return fmt.Errorf("invalid check_interval: %w", err)
	}

	if config.Monitor.SeenMaxAge == "" {
		config.Monitor.SeenMaxAge = "24h"
	}
	if _, err := time.ParseDuration(config.Monitor.SeenMaxAge); err != nil {
		return fmt.Errorf("invalid seen_max_age: %w", err)
	}

	if config.Monitor.MaxRecent == 0 {
		config.Monitor.MaxRecent = 30
	}
	if config.Monitor.PerCycleCap == 0 {
		config.Monitor.PerCycleCap = 10
	}
	if config.Monitor.MaxArticleLen == 0 {
		config.Monitor.MaxArticleLen = 1000
	}
	if len(config.Monitor.Feeds) == 0 {
		return fmt.Errorf("at least one feed must be configured")
	}
	for _, feed := range config.Monitor.Feeds {
		if feed.URL == "" {
			return fmt.Errorf("feed %q has no url", feed.Name)
		}
	}

	if config.Bus.Enabled && config.Bus.RedisURL == "" {
		config.Bus.RedisURL = "redis://localhost:6379"
	}

	if config.Storage.Type == "" {
		config.Storage.Type = "sqlite"
	}
	if config.Storage.Path == "" {
		config.Storage.Path = "./credcheck.db"
	}

	if config.Server.Port == "" {
		config.Server.Port = "8080"
	}

	if config.Live.ChunkDuration == "" {
		config.Live.ChunkDuration = "90s"
	}
	if _, err := time.ParseDuration(config.Live.ChunkDuration); err != nil {
		return fmt.Errorf("invalid chunk_duration: %w", err)
	}
	if config.Live.QueueSize == 0 {
		config.Live.QueueSize = 4
	}
	if config.Live.CacheSize == 0 {
		config.Live.CacheSize = 10
	}
	if config.Live.WhisperEndpoint == "" {
		config.Live.WhisperEndpoint = "http://localhost:8090/inference"
	}

	if config.Detectors.Similarity.EmbedModel == "" {
		config.Detectors.Similarity.EmbedModel = "nomic-embed-text"
	}
	if config.Detectors.Similarity.MaxResults == 0 {
		config.Detectors.Similarity.MaxResults = 5
	}
	if config.Detectors.FactCheck.Model == "" {
		config.Detectors.FactCheck.Model = "qwen2.5:0.5b"
	}
	if config.Detectors.FactCheck.Timeout == "" {
		config.Detectors.FactCheck.Timeout = "60s"
	}
	if _, err := time.ParseDuration(config.Detectors.FactCheck.Timeout); err != nil {
		return fmt.Errorf("invalid factcheck timeout: %w", err)
	}

	if config.Alerts.Enabled {
		if config.Alerts.BotToken == "" || config.Alerts.ChannelID == "" {
			return fmt.Errorf("alerts enabled but bot_token or channel_id missing")
		}
	}

	return nil
}

// Duration returns an already-validated duration field.
func Duration(value string) time.Duration {
	d, _ := time.ParseDuration(value)
	return d
}
