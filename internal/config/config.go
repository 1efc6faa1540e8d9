package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

type Config struct {
	Sources       Sources       `yaml:"sources"`
	Markets       []Market      `yaml:"markets"`
	Clustering    Clustering    `yaml:"clustering"`
	Stance        Stance        `yaml:"stance"`
	Enrichment    Enrichment    `yaml:"enrichment"`
	Pretranslate  Pretranslate  `yaml:"pretranslate"`
	Translation   Translation   `yaml:"translation"`
	Summarization Summarization `yaml:"summarization"`
	Output        Output        `yaml:"output"`
	Server        Server        `yaml:"server"`
	Logging       Logging       `yaml:"logging"`
}

type Sources struct {
	Feeds []Feed `yaml:"feeds"`
}

type Feed struct {
	URL      string `yaml:"url"`
	Name     string `yaml:"name"`
	Language string `yaml:"language"`
}

// Market describes one reader market: the language its pivot summaries are
// written in and the languages it wants pretranslated copies for.
type Market struct {
	Code      string   `yaml:"code"`
	PivotLang string   `yaml:"pivot_lang"`
	ShowLangs []string `yaml:"show_langs"`
	Enabled   bool     `yaml:"enabled"`
}

type Clustering struct {
	Enabled             bool    `yaml:"enabled"`
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
	WindowHours         int     `yaml:"window_hours"`
	MaxCandidates       int     `yaml:"max_candidates"`
}

// Stance selects how timeline entries get their stance label:
// "off", "rules", or "llm".
type Stance struct {
	Mode string `yaml:"mode"`
}

type Enrichment struct {
	UseProvider   bool `yaml:"use_provider"`
	RecentUpdates int  `yaml:"recent_updates"`
	MaxClusters   int  `yaml:"max_clusters"`
	WindowHours   int  `yaml:"window_hours"`
	ThrottleMS    int  `yaml:"throttle_ms"`
}

type Pretranslate struct {
	WindowHours       int `yaml:"window_hours"`
	MaxClusters       int `yaml:"max_clusters"`
	Workers           int `yaml:"workers"`
	JobTimeoutSeconds int `yaml:"job_timeout_seconds"`
	ProcessedCap      int `yaml:"processed_cap"`
}

type Translation struct {
	ChunkChars       int `yaml:"chunk_chars"`
	MaxDocumentChars int `yaml:"max_document_chars"`
	MemoryCacheSize  int `yaml:"memory_cache_size"`
}

type Summarization struct {
	Provider    string `yaml:"provider"`
	Model       string `yaml:"model"`
	OllamaURL   string `yaml:"ollama_url"`
	OpenAIModel string `yaml:"openai_model"`
	APIKeyEnv   string `yaml:"api_key_env"`
	MaxTokens   int    `yaml:"max_tokens"`
}

type Output struct {
	DataDir string `yaml:"data_dir"`
}

type Server struct {
	Port int `yaml:"port"`
}

type Logging struct {
	Level string `yaml:"level"`
}

// ConfigDir returns the XDG config directory for newsbabel.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "newsbabel")
}

// DataDir returns the XDG data directory for newsbabel.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "newsbabel")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/newsbabel/config.yaml > ./config.yaml
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", fmt.Errorf(
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'newsbabel init' to create a default config",
		xdgConfig,
	)
}

// Load reads and parses a config YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return parse(data)
}

// parse parses YAML bytes into a Config, applying defaults.
func parse(data []byte) (*Config, error) {
	cfg := &Config{
		Clustering: Clustering{
			Enabled:             true,
			SimilarityThreshold: 0.55,
			WindowHours:         72,
			MaxCandidates:       10,
		},
		Stance: Stance{Mode: "rules"},
		Enrichment: Enrichment{
			UseProvider:   true,
			RecentUpdates: 3,
			MaxClusters:   50,
			WindowHours:   72,
			ThrottleMS:    250,
		},
		Pretranslate: Pretranslate{
			WindowHours:       72,
			MaxClusters:       100,
			Workers:           4,
			JobTimeoutSeconds: 8,
			ProcessedCap:      10000,
		},
		Translation: Translation{
			ChunkChars:       2800,
			MaxDocumentChars: 50000,
			MemoryCacheSize:  2048,
		},
		Summarization: Summarization{
			Provider:    "ollama",
			Model:       "qwen2.5:7b",
			OllamaURL:   "http://localhost:11434",
			OpenAIModel: "gpt-4o-mini",
			APIKeyEnv:   "OPENAI_API_KEY",
			MaxTokens:   512,
		},
		Server:  Server{Port: 8000},
		Logging: Logging{Level: "INFO"},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}

// GetDataDir returns the effective data directory from config or XDG default.
func (c *Config) GetDataDir() string {
	if c.Output.DataDir != "" {
		return c.Output.DataDir
	}
	return DataDir()
}

// EnabledMarkets returns the markets with enabled=true, in config order.
func (c *Config) EnabledMarkets() []Market {
	var out []Market
	for _, m := range c.Markets {
		if m.Enabled {
			out = append(out, m)
		}
	}
	return out
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
