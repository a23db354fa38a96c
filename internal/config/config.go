package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// ConfigDirName is the per-project state directory.
const ConfigDirName = ".ctxasm"

// CurrentVersion is the config schema version written by Save.
const CurrentVersion = 1

// Config represents the complete ctxasm configuration
type Config struct {
	Version int `json:"version" mapstructure:"version"`

	Embedding EmbeddingConfig `json:"embedding" mapstructure:"embedding"`
	Cache     CacheConfig     `json:"cache" mapstructure:"cache"`
	Index     IndexConfig     `json:"index" mapstructure:"index"`
	Search    SearchConfig    `json:"search" mapstructure:"search"`
	Budget    BudgetConfig    `json:"budget" mapstructure:"budget"`
	Resolver  ResolverConfig  `json:"resolver" mapstructure:"resolver"`
	Store     StoreConfig     `json:"store" mapstructure:"store"`
	Logging   LoggingConfig   `json:"logging" mapstructure:"logging"`
	Telemetry TelemetryConfig `json:"telemetry" mapstructure:"telemetry"`
}

// EmbeddingConfig configures the embedding provider and batching
type EmbeddingConfig struct {
	Provider       string `json:"provider" mapstructure:"provider"` // hash, openai, ollama
	Model          string `json:"model" mapstructure:"model"`
	BaseURL        string `json:"baseUrl" mapstructure:"baseUrl"`
	APIKey         string `json:"apiKey,omitempty" mapstructure:"apiKey"`
	Dimensions     int    `json:"dimensions" mapstructure:"dimensions"` // 0 uses the provider default
	BatchSize      int    `json:"batchSize" mapstructure:"batchSize"`
	BatchDelayMs   int    `json:"batchDelayMs" mapstructure:"batchDelayMs"`
	BatchTimeoutMs int    `json:"batchTimeoutMs" mapstructure:"batchTimeoutMs"`
	RetryBackoffMs int    `json:"retryBackoffMs" mapstructure:"retryBackoffMs"`
	MaxChars       int    `json:"maxChars" mapstructure:"maxChars"`
	HTTPTimeoutMs  int    `json:"httpTimeoutMs" mapstructure:"httpTimeoutMs"`
	HTTPRetryMax   int    `json:"httpRetryMax" mapstructure:"httpRetryMax"`
}

// CacheConfig contains embedding cache configuration
type CacheConfig struct {
	MemoryTtlSeconds int `json:"memoryTtlSeconds" mapstructure:"memoryTtlSeconds"`
}

// IndexConfig selects and tunes the vector index backend
type IndexConfig struct {
	Backend     string  `json:"backend" mapstructure:"backend"` // sqlite, memory, pgvector
	PostgresDSN string  `json:"postgresDsn,omitempty" mapstructure:"postgresDsn"`
	Threshold   float64 `json:"threshold" mapstructure:"threshold"`
	Limit       int     `json:"limit" mapstructure:"limit"`
}

// SearchConfig contains request-time search settings
type SearchConfig struct {
	SemanticDeadlineMs   int `json:"semanticDeadlineMs" mapstructure:"semanticDeadlineMs"`
	MaxFiles             int `json:"maxFiles" mapstructure:"maxFiles"`
	LexicalMaxCandidates int `json:"lexicalMaxCandidates" mapstructure:"lexicalMaxCandidates"`
	MessageLimit         int `json:"messageLimit" mapstructure:"messageLimit"`
}

// BudgetConfig contains the token budget and its percentage split
type BudgetConfig struct {
	DefaultTokens int  `json:"defaultTokens" mapstructure:"defaultTokens"`
	History       int  `json:"history" mapstructure:"history"`
	Config        int  `json:"config" mapstructure:"config"`
	Relevant      int  `json:"relevant" mapstructure:"relevant"`
	Dependencies  int  `json:"dependencies" mapstructure:"dependencies"`
	Slack         int  `json:"slack" mapstructure:"slack"`
	Rollover      bool `json:"rollover" mapstructure:"rollover"`
}

// ResolverConfig contains dependency resolution settings
type ResolverConfig struct {
	Aliases map[string]string `json:"aliases" mapstructure:"aliases"`
	Depth   int               `json:"depth" mapstructure:"depth"`
}

// StoreConfig locates project files on disk
type StoreConfig struct {
	Root         string `json:"root" mapstructure:"root"`
	MaxFileBytes int64  `json:"maxFileBytes" mapstructure:"maxFileBytes"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Format string `json:"format" mapstructure:"format"`
	Level  string `json:"level" mapstructure:"level"`
}

// TelemetryConfig toggles tracing
type TelemetryConfig struct {
	Tracing bool `json:"tracing" mapstructure:"tracing"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Version: CurrentVersion,
		Embedding: EmbeddingConfig{
			Provider:       "hash",
			Model:          "",
			Dimensions:     0,
			BatchSize:      50,
			BatchDelayMs:   200,
			BatchTimeoutMs: 30000,
			RetryBackoffMs: 2000,
			MaxChars:       8000,
			HTTPTimeoutMs:  60000,
			HTTPRetryMax:   2,
		},
		Cache: CacheConfig{
			MemoryTtlSeconds: 300,
		},
		Index: IndexConfig{
			Backend:   "sqlite",
			Threshold: 0.3,
			Limit:     20,
		},
		Search: SearchConfig{
			SemanticDeadlineMs:   1500,
			MaxFiles:             10,
			LexicalMaxCandidates: 50,
			MessageLimit:         10,
		},
		Budget: BudgetConfig{
			DefaultTokens: 8000,
			History:       20,
			Config:        10,
			Relevant:      40,
			Dependencies:  20,
			Slack:         10,
			Rollover:      true,
		},
		Resolver: ResolverConfig{
			Aliases: map[string]string{
				"@/": "",
				"~/": "",
			},
			Depth: 1,
		},
		Store: StoreConfig{
			Root:         ".",
			MaxFileBytes: 1 << 20,
		},
		Logging: LoggingConfig{
			Format: "human",
			Level:  "warn",
		},
	}
}

// LoadConfig loads configuration from <root>/.ctxasm/config.{json,yaml,toml}
// and applies CTXASM_* environment overrides.
func LoadConfig(root string) (*Config, error) {
	cfg, _, err := LoadConfigWithDetails(root)
	return cfg, err
}

// LoadConfigWithDetails is LoadConfig that also reports which environment
// overrides were applied.
func LoadConfigWithDetails(root string) (*Config, []EnvOverride, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.AddConfigPath(filepath.Join(root, ConfigDirName))

	if path := os.Getenv("CTXASM_CONFIG_PATH"); path != "" {
		v.SetConfigFile(path)
	}

	cfg := DefaultConfig()
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, nil, fmt.Errorf("failed to read config: %w", err)
		}
	} else if err := v.Unmarshal(cfg); err != nil {
		return nil, nil, fmt.Errorf("failed to decode config: %w", err)
	}

	overrides, err := ApplyEnvOverrides(cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, overrides, nil
}

// Save writes the configuration to <root>/.ctxasm/config.json
func (c *Config) Save(root string) error {
	dir := filepath.Join(root, ConfigDirName)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "config.json"), data, 0644)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Version != CurrentVersion {
		return &ConfigError{Field: "version", Message: "unsupported config version"}
	}

	b := c.Budget
	for field, pct := range map[string]int{
		"budget.history":      b.History,
		"budget.config":       b.Config,
		"budget.relevant":     b.Relevant,
		"budget.dependencies": b.Dependencies,
		"budget.slack":        b.Slack,
	} {
		if pct < 0 {
			return &ConfigError{Field: field, Message: "percentage must not be negative"}
		}
	}
	if sum := b.History + b.Config + b.Relevant + b.Dependencies + b.Slack; sum != 100 {
		return &ConfigError{Field: "budget", Message: fmt.Sprintf("split must sum to 100, got %d", sum)}
	}
	if b.DefaultTokens <= 0 {
		return &ConfigError{Field: "budget.defaultTokens", Message: "must be positive"}
	}

	if c.Embedding.BatchSize <= 0 {
		return &ConfigError{Field: "embedding.batchSize", Message: "must be positive"}
	}
	if c.Embedding.MaxChars <= 0 {
		return &ConfigError{Field: "embedding.maxChars", Message: "must be positive"}
	}
	switch c.Embedding.Provider {
	case "hash", "openai", "ollama":
	default:
		return &ConfigError{Field: "embedding.provider", Message: "unknown provider " + strconv.Quote(c.Embedding.Provider)}
	}

	switch c.Index.Backend {
	case "sqlite", "memory":
	case "pgvector":
		if c.Index.PostgresDSN == "" {
			return &ConfigError{Field: "index.postgresDsn", Message: "required for pgvector backend"}
		}
	default:
		return &ConfigError{Field: "index.backend", Message: "unknown backend " + strconv.Quote(c.Index.Backend)}
	}
	if c.Index.Threshold < 0 || c.Index.Threshold >= 1 {
		return &ConfigError{Field: "index.threshold", Message: "must be in [0, 1)"}
	}

	for prefix := range c.Resolver.Aliases {
		if strings.TrimSpace(prefix) == "" {
			return &ConfigError{Field: "resolver.aliases", Message: "alias prefix must not be empty"}
		}
	}
	return nil
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config error in field '" + e.Field + "': " + e.Message
}
