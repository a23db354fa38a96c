package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
)

// EnvOverride records one applied environment override.
type EnvOverride struct {
	Var   string `json:"var"`
	Path  string `json:"path"`
	Value string `json:"value"`
}

type envSetter struct {
	path  string
	apply func(cfg *Config, value string) error
}

func setString(dst func(*Config) *string) func(*Config, string) error {
	return func(cfg *Config, value string) error {
		*dst(cfg) = value
		return nil
	}
}

func setInt(dst func(*Config) *int) func(*Config, string) error {
	return func(cfg *Config, value string) error {
		n, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		*dst(cfg) = n
		return nil
	}
}

func setFloat(dst func(*Config) *float64) func(*Config, string) error {
	return func(cfg *Config, value string) error {
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		*dst(cfg) = f
		return nil
	}
}

func setBool(dst func(*Config) *bool) func(*Config, string) error {
	return func(cfg *Config, value string) error {
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		*dst(cfg) = b
		return nil
	}
}

var envSetters = map[string]envSetter{
	"CTXASM_EMBEDDING_PROVIDER":    {"embedding.provider", setString(func(c *Config) *string { return &c.Embedding.Provider })},
	"CTXASM_EMBEDDING_MODEL":       {"embedding.model", setString(func(c *Config) *string { return &c.Embedding.Model })},
	"CTXASM_EMBEDDING_BASE_URL":    {"embedding.baseUrl", setString(func(c *Config) *string { return &c.Embedding.BaseURL })},
	"CTXASM_EMBEDDING_API_KEY":     {"embedding.apiKey", setString(func(c *Config) *string { return &c.Embedding.APIKey })},
	"CTXASM_EMBEDDING_DIMENSIONS":  {"embedding.dimensions", setInt(func(c *Config) *int { return &c.Embedding.Dimensions })},
	"CTXASM_EMBEDDING_BATCH_SIZE":  {"embedding.batchSize", setInt(func(c *Config) *int { return &c.Embedding.BatchSize })},
	"CTXASM_EMBEDDING_BATCH_DELAY": {"embedding.batchDelayMs", setInt(func(c *Config) *int { return &c.Embedding.BatchDelayMs })},
	"CTXASM_INDEX_BACKEND":         {"index.backend", setString(func(c *Config) *string { return &c.Index.Backend })},
	"CTXASM_INDEX_POSTGRES_DSN":    {"index.postgresDsn", setString(func(c *Config) *string { return &c.Index.PostgresDSN })},
	"CTXASM_INDEX_THRESHOLD":       {"index.threshold", setFloat(func(c *Config) *float64 { return &c.Index.Threshold })},
	"CTXASM_SEARCH_DEADLINE_MS":    {"search.semanticDeadlineMs", setInt(func(c *Config) *int { return &c.Search.SemanticDeadlineMs })},
	"CTXASM_SEARCH_MAX_FILES":      {"search.maxFiles", setInt(func(c *Config) *int { return &c.Search.MaxFiles })},
	"CTXASM_BUDGET_TOKENS":         {"budget.defaultTokens", setInt(func(c *Config) *int { return &c.Budget.DefaultTokens })},
	"CTXASM_BUDGET_ROLLOVER":       {"budget.rollover", setBool(func(c *Config) *bool { return &c.Budget.Rollover })},
	"CTXASM_STORE_ROOT":            {"store.root", setString(func(c *Config) *string { return &c.Store.Root })},
	"CTXASM_LOG_LEVEL":             {"logging.level", setString(func(c *Config) *string { return &c.Logging.Level })},
	"CTXASM_LOG_FORMAT":            {"logging.format", setString(func(c *Config) *string { return &c.Logging.Format })},
	"CTXASM_TRACING":               {"telemetry.tracing", setBool(func(c *Config) *bool { return &c.Telemetry.Tracing })},
}

// ApplyEnvOverrides applies every set CTXASM_* variable to cfg in a stable
// order and returns what was applied.
func ApplyEnvOverrides(cfg *Config) ([]EnvOverride, error) {
	var applied []EnvOverride
	for _, name := range GetSupportedEnvVars() {
		value, ok := os.LookupEnv(name)
		if !ok || value == "" {
			continue
		}
		setter := envSetters[name]
		if err := setter.apply(cfg, value); err != nil {
			return nil, &ConfigError{Field: setter.path, Message: fmt.Sprintf("invalid value %q from %s: %v", value, name, err)}
		}
		applied = append(applied, EnvOverride{Var: name, Path: setter.path, Value: value})
	}
	return applied, nil
}

// GetSupportedEnvVars returns the sorted list of recognised variables.
func GetSupportedEnvVars() []string {
	names := make([]string, 0, len(envSetters))
	for name := range envSetters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
