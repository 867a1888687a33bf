package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadFillsDefaults(t *testing.T) {
	path := writeConfig(t, `
[[monitor.feeds]]
name = "BBC News"
url = "http://feeds.bbci.co.uk/news/rss.xml"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.App.Name != "credcheck" {
		t.Errorf("got app name %q", cfg.App.Name)
	}
	if cfg.Monitor.CheckInterval != "60s" || cfg.Monitor.MaxRecent != 30 || cfg.Monitor.PerCycleCap != 10 {
		t.Errorf("monitor defaults not applied: %+v", cfg.Monitor)
	}
	if cfg.Storage.Type != "sqlite" || cfg.Storage.Path != "./credcheck.db" {
		t.Errorf("storage defaults not applied: %+v", cfg.Storage)
	}
	if cfg.Server.Port != "8080" {
		t.Errorf("got port %q", cfg.Server.Port)
	}
	if cfg.Live.ChunkDuration != "90s" || cfg.Live.CacheSize != 10 {
		t.Errorf("live defaults not applied: %+v", cfg.Live)
	}
	if cfg.Detectors.FactCheck.Model != "qwen2.5:0.5b" {
		t.Errorf("got factcheck model %q", cfg.Detectors.FactCheck.Model)
	}
}

func TestLoadRequiresFeeds(t *testing.T) {
	path := writeConfig(t, `
[app]
name = "credcheck"
`)

	if _, err := Load(path); err == nil {
		t.Error("expected error for config without feeds")
	}
}

func TestLoadRejectsBadDuration(t *testing.T) {
	path := writeConfig(t, `
[monitor]
check_interval = "every hour"

[[monitor.feeds]]
url = "http://example.com/rss"
`)

	if _, err := Load(path); err == nil {
		t.Error("expected error for unparseable duration")
	}
}

func TestLoadRequiresAlertCredentials(t *testing.T) {
	path := writeConfig(t, `
[[monitor.feeds]]
url = "http://example.com/rss"

[alerts]
enabled = true
`)

	if _, err := Load(path); err == nil {
		t.Error("expected error when alerts enabled without credentials")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.toml")); err == nil {
		t.Error("expected error for missing config file")
	}
}
