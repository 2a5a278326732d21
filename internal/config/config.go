package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Config is the full harness configuration
type Config struct {
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Queue      QueueConfig      `yaml:"queue" mapstructure:"queue"`
	Providers  ProvidersConfig  `yaml:"providers" mapstructure:"providers"`
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Guards     GuardsConfig     `yaml:"guards" mapstructure:"guards"`
	Similarity SimilarityConfig `yaml:"similarity" mapstructure:"similarity"`
	Understand UnderstandConfig `yaml:"understand" mapstructure:"understand"`
	Webhook    WebhookConfig    `yaml:"webhook" mapstructure:"webhook"`
	Fetch      FetchConfig      `yaml:"fetch" mapstructure:"fetch"`
	Authority  AuthorityConfig  `yaml:"authority" mapstructure:"authority"`
}

// ServerConfig configures the exposed HTTP surface
type ServerConfig struct {
	Addr        string `yaml:"addr" mapstructure:"addr"`
	AuthToken   string `yaml:"auth_token" mapstructure:"auth_token"`
	Environment string `yaml:"environment" mapstructure:"environment"` // "development" or "production"
}

// QueueConfig configures the job queue / concurrency limiter
type QueueConfig struct {
	MaxConcurrency int           `yaml:"max_concurrency" mapstructure:"max_concurrency"`
	Timeout        time.Duration `yaml:"timeout" mapstructure:"timeout"` // Staleness eviction threshold
}

// ProvidersConfig configures external provider gating
type ProvidersConfig struct {
	FailureThreshold int          `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	LLM              LLMConfig    `yaml:"llm" mapstructure:"llm"`
	Search           SearchConfig `yaml:"search" mapstructure:"search"`
}

// LLMConfig configures the LLM collaborator
type LLMConfig struct {
	Provider      string  `yaml:"provider" mapstructure:"provider"` // "openai" or "" (disabled)
	Model         string  `yaml:"model" mapstructure:"model"`
	APIKey        string  `yaml:"api_key" mapstructure:"api_key"`
	BaseURL       string  `yaml:"base_url" mapstructure:"base_url"`
	Timeout       int     `yaml:"timeout" mapstructure:"timeout"` // seconds
	MaxTokens     int     `yaml:"max_tokens" mapstructure:"max_tokens"`
	RatePerSecond float64 `yaml:"rate_per_second" mapstructure:"rate_per_second"`
	Burst         int     `yaml:"burst" mapstructure:"burst"`
}

// SearchConfig configures the evidence search collaborator
type SearchConfig struct {
	BaseURL       string  `yaml:"base_url" mapstructure:"base_url"`
	APIKey        string  `yaml:"api_key" mapstructure:"api_key"`
	Timeout       int     `yaml:"timeout" mapstructure:"timeout"` // seconds
	MaxResults    int     `yaml:"max_results" mapstructure:"max_results"`
	RatePerSecond float64 `yaml:"rate_per_second" mapstructure:"rate_per_second"`
	Burst         int     `yaml:"burst" mapstructure:"burst"`
	Parallelism   int     `yaml:"parallelism" mapstructure:"parallelism"` // Concurrent searches per job
}

// StoreConfig configures the job source and status/result sink
type StoreConfig struct {
	BaseURL  string        `yaml:"base_url" mapstructure:"base_url"`
	Token    string        `yaml:"token" mapstructure:"token"`
	Timeout  int           `yaml:"timeout" mapstructure:"timeout"` // seconds
	CacheTTL time.Duration `yaml:"cache_ttl" mapstructure:"cache_ttl"`
}

// GuardsConfig configures the consistency guards
type GuardsConfig struct {
	Grounding GroundingConfig `yaml:"grounding" mapstructure:"grounding"`
	Recency   RecencyConfig   `yaml:"recency" mapstructure:"recency"`
}

// GroundingConfig configures the key-term grounding penalty
type GroundingConfig struct {
	Enabled    bool    `yaml:"enabled" mapstructure:"enabled"`
	Threshold  float64 `yaml:"threshold" mapstructure:"threshold"`     // Ratio below which penalties apply
	MaxPenalty float64 `yaml:"max_penalty" mapstructure:"max_penalty"` // Confidence points at ratio 0
}

// RecencyConfig configures the temporal guard
type RecencyConfig struct {
	HighTruthThreshold float64 `yaml:"high_truth_threshold" mapstructure:"high_truth_threshold"`
	UnverifiedCeiling  float64 `yaml:"unverified_ceiling" mapstructure:"unverified_ceiling"`
	ConfidenceFloor    float64 `yaml:"confidence_floor" mapstructure:"confidence_floor"`
}

// SimilarityConfig configures the batch similarity scorer
type SimilarityConfig struct {
	ChunkSize  int `yaml:"chunk_size" mapstructure:"chunk_size"`
	MaxRetries int `yaml:"max_retries" mapstructure:"max_retries"`
}

// UnderstandConfig configures input normalization
type UnderstandConfig struct {
	PredicateStarters []string `yaml:"predicate_starters" mapstructure:"predicate_starters"`
	AdjectiveSuffixes []string `yaml:"adjective_suffixes" mapstructure:"adjective_suffixes"`
}

// WebhookConfig configures outbound notifications
type WebhookConfig struct {
	URL     string `yaml:"url" mapstructure:"url"`
	Secret  string `yaml:"secret" mapstructure:"secret"`
	Timeout int    `yaml:"timeout" mapstructure:"timeout"` // seconds
}

// FetchConfig configures URL input fetching
type FetchConfig struct {
	Timeout       time.Duration `yaml:"timeout" mapstructure:"timeout"`
	UserAgent     string        `yaml:"user_agent" mapstructure:"user_agent"`
	MaxBodyBytes  int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	RespectRobots bool          `yaml:"respect_robots" mapstructure:"respect_robots"`
}

// AuthorityConfig configures source authority classification
type AuthorityConfig struct {
	PrimaryDomains   []string          `yaml:"primary_domains" mapstructure:"primary_domains"`
	SecondaryDomains []string          `yaml:"secondary_domains" mapstructure:"secondary_domains"`
	DomainMap        map[string]string `yaml:"domain_map" mapstructure:"domain_map"`
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:        ":8090",
			Environment: "development",
		},
		Queue: QueueConfig{
			MaxConcurrency: 3,
			Timeout:        5 * time.Minute,
		},
		Providers: ProvidersConfig{
			FailureThreshold: 3,
			LLM: LLMConfig{
				Provider:      "openai",
				Model:         "gpt-4o-mini",
				Timeout:       60,
				MaxTokens:     4000,
				RatePerSecond: 2,
				Burst:         4,
			},
			Search: SearchConfig{
				Timeout:       20,
				MaxResults:    8,
				RatePerSecond: 4,
				Burst:         8,
				Parallelism:   4,
			},
		},
		Store: StoreConfig{
			BaseURL:  "http://localhost:8080",
			Timeout:  15,
			CacheTTL: 30 * time.Second,
		},
		Guards: GuardsConfig{
			Grounding: GroundingConfig{
				Enabled:    true,
				Threshold:  0.5,
				MaxPenalty: 40,
			},
			Recency: RecencyConfig{
				HighTruthThreshold: 70,
				UnverifiedCeiling:  50,
				ConfidenceFloor:    30,
			},
		},
		Similarity: SimilarityConfig{
			ChunkSize:  25,
			MaxRetries: 3,
		},
		Understand: UnderstandConfig{
			PredicateStarters: []string{
				"is", "are", "was", "were", "does", "do", "did",
				"can", "could", "will", "would", "has", "have", "had",
			},
			AdjectiveSuffixes: []string{
				"able", "ible", "ful", "ous", "ive", "al", "ic",
				"ent", "ant", "less", "ish",
			},
		},
		Webhook: WebhookConfig{
			Timeout: 10,
		},
		Fetch: FetchConfig{
			Timeout:       20 * time.Second,
			UserAgent:     "ArbiterBot/1.0 (+https://github.com/arbiterhq/arbiter)",
			MaxBodyBytes:  2 * 1024 * 1024,
			RespectRobots: true,
		},
		Authority: AuthorityConfig{
			PrimaryDomains: []string{
				"gov", "gov.uk", "europa.eu", "who.int", "un.org",
				"nature.com", "science.org", "nih.gov", "arxiv.org",
			},
			SecondaryDomains: []string{
				"wikipedia.org", "britannica.com", "reuters.com",
				"apnews.com", "bbc.co.uk", "nytimes.com",
			},
		},
	}
}

// Load builds the configuration from viper (flags > env > file > defaults)
func Load() (*Config, error) {
	cfg := DefaultConfig()

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// Secrets come from well-known env vars when not set explicitly.
	// OPENAI_API_KEY is deliberately unprefixed: it is the variable the
	// generated config file tells operators to export.
	if cfg.Providers.LLM.APIKey == "" {
		cfg.Providers.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks invariants that would otherwise surface mid-run
func (c *Config) Validate() error {
	if c.Queue.MaxConcurrency <= 0 {
		return fmt.Errorf("queue.max_concurrency must be positive, got %d", c.Queue.MaxConcurrency)
	}
	if c.Queue.Timeout <= 0 {
		return fmt.Errorf("queue.timeout must be positive, got %s", c.Queue.Timeout)
	}
	if c.Providers.FailureThreshold <= 0 {
		return fmt.Errorf("providers.failure_threshold must be positive, got %d", c.Providers.FailureThreshold)
	}
	if c.Similarity.ChunkSize <= 0 {
		return fmt.Errorf("similarity.chunk_size must be positive, got %d", c.Similarity.ChunkSize)
	}
	return nil
}
