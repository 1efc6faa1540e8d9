package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseDefaultConfig(t *testing.T) {
	cfg, err := parse(DefaultConfigYAML)
	if err != nil {
		t.Fatalf("failed to parse default config: %v", err)
	}

	if len(cfg.Sources.Feeds) == 0 {
		t.Error("expected feeds to be populated")
	}

	if cfg.Clustering.SimilarityThreshold != 0.55 {
		t.Errorf("expected threshold 0.55, got %v", cfg.Clustering.SimilarityThreshold)
	}

	if cfg.Pretranslate.Workers != 4 {
		t.Errorf("expected 4 workers, got %d", cfg.Pretranslate.Workers)
	}

	if cfg.Summarization.Provider != "ollama" {
		t.Errorf("expected provider 'ollama', got %q", cfg.Summarization.Provider)
	}

	markets := cfg.EnabledMarkets()
	if len(markets) != 1 || markets[0].PivotLang != "en" {
		t.Errorf("expected one enabled market with pivot 'en', got %+v", markets)
	}
}

func TestParseMinimalConfig(t *testing.T) {
	data := []byte(`
summarization:
  provider: openai
server:
  port: 9000
`)
	cfg, err := parse(data)
	if err != nil {
		t.Fatalf("failed to parse minimal config: %v", err)
	}

	if cfg.Summarization.Provider != "openai" {
		t.Errorf("expected provider 'openai', got %q", cfg.Summarization.Provider)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("expected port 9000, got %d", cfg.Server.Port)
	}
	// Defaults should still be set for unspecified fields
	if cfg.Clustering.WindowHours != 72 {
		t.Errorf("expected default window_hours 72, got %d", cfg.Clustering.WindowHours)
	}
	if cfg.Translation.ChunkChars != 2800 {
		t.Errorf("expected default chunk_chars 2800, got %d", cfg.Translation.ChunkChars)
	}
	if cfg.Pretranslate.ProcessedCap != 10000 {
		t.Errorf("expected default processed_cap 10000, got %d", cfg.Pretranslate.ProcessedCap)
	}
	if cfg.Enrichment.WindowHours != 72 {
		t.Errorf("expected default enrichment window_hours 72, got %d", cfg.Enrichment.WindowHours)
	}
}

func TestParseEnrichmentWindowOverride(t *testing.T) {
	data := []byte(`
enrichment:
  window_hours: 24
`)
	cfg, err := parse(data)
	if err != nil {
		t.Fatalf("failed to parse config: %v", err)
	}
	if cfg.Enrichment.WindowHours != 24 {
		t.Errorf("expected window_hours 24, got %d", cfg.Enrichment.WindowHours)
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, DefaultConfigYAML, 0o644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if len(cfg.Markets) == 0 {
		t.Error("expected markets to be populated from file")
	}
}

func TestGetDataDir(t *testing.T) {
	cfg := &Config{}
	if cfg.GetDataDir() == "" {
		t.Error("expected non-empty default data dir")
	}

	cfg.Output.DataDir = "/custom/path"
	if cfg.GetDataDir() != "/custom/path" {
		t.Errorf("expected '/custom/path', got %q", cfg.GetDataDir())
	}
}
