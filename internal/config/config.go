package config

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
)

type ServerConfig struct {
	Port string `toml:"port"`
}

type StoreConfig struct {
	URI      string `toml:"uri"`
	User     string `toml:"user"`
	Password string `toml:"password"`
}

type TranscriptionConfig struct {
	URL             string `toml:"url"`
	Language        string `toml:"language"`
	BaseTimeoutSec  int    `toml:"base_timeout_sec"`
	MaxPayloadBytes int64  `toml:"max_payload_bytes"`
	ChunkUploadURL  string `toml:"chunk_upload_url"`
	ChunkMaxRetries int    `toml:"chunk_max_retries"`
}

type EmbeddingConfig struct {
	Provider string `toml:"provider"` // "local" or "openai"
	URL      string `toml:"url"`
	Model    string `toml:"model"`
	APIKey   string `toml:"api_key"`
}

type PipelineConfig struct {
	MaxConcurrent    int `toml:"max_concurrent"`
	MaxRetries       int `toml:"max_retries"`
	RetryAttemptCeil int `toml:"retry_attempt_ceiling"`
	BatchSize        int `toml:"batch_size"`
	BackoffBaseMs    int `toml:"backoff_base_ms"`
}

type DiscoveryConfig struct {
	StrongThreshold     float64 `toml:"strong_threshold"`
	ModerateThreshold   float64 `toml:"moderate_threshold"`
	WeakThreshold       float64 `toml:"weak_threshold"`
	SemanticWeight      float64 `toml:"semantic_weight"`
	RuleWeight          float64 `toml:"rule_weight"`
	KeyPhraseOverlapMin float64 `toml:"keyphrase_overlap_min"`
	MinRatingSamples    int     `toml:"min_rating_samples"`
	ThresholdStep       float64 `toml:"threshold_step"`
	MaxThresholdAdjust  float64 `toml:"max_threshold_adjust"`
	TopSemanticEdges    int     `toml:"top_semantic_edges"`
	NotifyScoreFloor    float64 `toml:"notify_score_floor"`
}

type Config struct {
	Server        ServerConfig        `toml:"server"`
	Store         StoreConfig         `toml:"store"`
	Transcription TranscriptionConfig `toml:"transcription"`
	Embedding     EmbeddingConfig     `toml:"embedding"`
	Pipeline      PipelineConfig      `toml:"pipeline"`
	Discovery     DiscoveryConfig     `toml:"discovery"`
}

// Default returns the configuration used when no file overrides a value.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Port: "8080"},
		Store:  StoreConfig{URI: "bolt://localhost:7687"},
		Transcription: TranscriptionConfig{
			BaseTimeoutSec:  60,
			MaxPayloadBytes: 20 * 1024 * 1024,
			ChunkMaxRetries: 3,
		},
		Embedding: EmbeddingConfig{
			Provider: "local",
			Model:    "text-embedding-3-small",
		},
		Pipeline: PipelineConfig{
			MaxConcurrent:    5,
			MaxRetries:       3,
			RetryAttemptCeil: 5,
			BatchSize:        50,
			BackoffBaseMs:    1000,
		},
		Discovery: DiscoveryConfig{
			StrongThreshold:     0.85,
			ModerateThreshold:   0.75,
			WeakThreshold:       0.70,
			SemanticWeight:      0.6,
			RuleWeight:          0.4,
			KeyPhraseOverlapMin: 0.1,
			MinRatingSamples:    20,
			ThresholdStep:       0.03,
			MaxThresholdAdjust:  0.10,
			TopSemanticEdges:    10,
			NotifyScoreFloor:    0.80,
		},
	}
}

// Load reads a TOML config file on top of the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse TOML: %w", err)
	}

	return cfg, nil
}

// ApplyEnv overrides secrets and endpoints from the environment.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("PORT"); v != "" {
		c.Server.Port = v
	}
	if v := os.Getenv("MEMGRAPH_URI"); v != "" {
		c.Store.URI = v
	}
	if v := os.Getenv("MEMGRAPH_USER"); v != "" {
		c.Store.User = v
	}
	if v := os.Getenv("MEMGRAPH_PASSWORD"); v != "" {
		c.Store.Password = v
	}
	if v := os.Getenv("TRANSCRIBE_URL"); v != "" {
		c.Transcription.URL = v
	}
	if v := os.Getenv("EMBEDDING_URL"); v != "" {
		c.Embedding.URL = v
	}
	if v := os.Getenv("EMBEDDING_PROVIDER"); v != "" {
		c.Embedding.Provider = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" && c.Embedding.APIKey == "" {
		c.Embedding.APIKey = v
	}
}

// BaseTimeout returns the configured base HTTP timeout for transcription.
func (c *TranscriptionConfig) BaseTimeout() time.Duration {
	return time.Duration(c.BaseTimeoutSec) * time.Second
}
