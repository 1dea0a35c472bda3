// Package config provides YAML-based configuration for ragstore.
// Configuration is loaded with a layered precedence: defaults → YAML file → env vars.
// Environment variables always win, so existing workflows are unaffected.
//
// File search order:
//  1. --config CLI flag (explicit path)
//  2. RAGSTORE_CONFIG environment variable
//  3. ~/.ragstore/config.yaml
//  4. ./ragstore.yaml
//
// If no file is found the system runs entirely from env vars.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the top-level YAML configuration structure.
// Field names use yaml tags that mirror the env var naming (lowercase, underscored).
type Config struct {
	// Store configures the on-disk embedding store.
	Store StoreConfig `yaml:"store"`

	// Chunking configures document splitting.
	Chunking ChunkingConfig `yaml:"chunking"`

	// Embedding configures the embedding provider.
	Embedding EmbeddingConfig `yaml:"embedding"`

	// Query configures retrieval defaults.
	Query QueryConfig `yaml:"query"`

	// Journal configures ingestion journal persistence.
	Journal JournalConfig `yaml:"journal"`

	// Logging configures structured logging.
	Logging LoggingConfig `yaml:"logging"`
}

// StoreConfig holds embedding store settings.
type StoreConfig struct {
	// Dir is the directory holding vectors, metadata and manifest files.
	Dir string `yaml:"dir"`
}

// ChunkingConfig holds document splitting settings.
type ChunkingConfig struct {
	// Size is the maximum chunk length in runes.
	Size int `yaml:"size"`
	// Overlap is the number of runes shared between adjacent chunks.
	Overlap int `yaml:"overlap"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	// Provider selects the embedding backend (ollama, openai).
	Provider string `yaml:"provider"`
	// Model is the embedding model name.
	Model string `yaml:"model"`
	// Dimensions overrides the embedding vector size.
	Dimensions int `yaml:"dimensions"`
	// APIKey is the embedding API key. Prefer env var EMBEDDING_API_KEY.
	APIKey string `yaml:"api_key"`
	// Endpoint is the embedding API endpoint.
	Endpoint string `yaml:"endpoint"`
	// RPS caps embedding requests per second (0 = unlimited).
	RPS float64 `yaml:"rps"`
	// Burst is the rate limiter burst size.
	Burst int `yaml:"burst"`
	// Retries is the number of attempts per embedding call.
	Retries int `yaml:"retries"`
}

// QueryConfig holds retrieval defaults.
type QueryConfig struct {
	// TopN is the default number of results per query.
	TopN int `yaml:"top_n"`
	// Lambda balances relevance against diversity (0.0–1.0).
	Lambda float64 `yaml:"lambda"`
	// PoolSize bounds the candidate pool considered for diversification.
	PoolSize int `yaml:"pool_size"`
	// MinScore drops results scoring below this relevance floor.
	MinScore float64 `yaml:"min_score"`
}

// JournalConfig holds ingestion journal settings.
type JournalConfig struct {
	// DBPath is the SQLite database path. Set to "disabled" to disable.
	DBPath string `yaml:"db_path"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error.
	Level string `yaml:"level"`
	// Format is the log output format: json, text.
	Format string `yaml:"format"`
}

// envMapping maps YAML config fields to their corresponding env var names.
// Only non-empty YAML values are applied; env vars always take precedence.
var envMapping = []struct {
	envKey string
	value  func(*Config) string
}{
	{"RAG_STORE_DIR", func(c *Config) string { return c.Store.Dir }},
	{"CHUNK_SIZE", func(c *Config) string { return intStr(c.Chunking.Size) }},
	{"CHUNK_OVERLAP", func(c *Config) string { return intStr(c.Chunking.Overlap) }},
	{"EMBEDDING_PROVIDER", func(c *Config) string { return c.Embedding.Provider }},
	{"EMBEDDING_MODEL", func(c *Config) string { return c.Embedding.Model }},
	{"EMBEDDING_DIMENSIONS", func(c *Config) string { return intStr(c.Embedding.Dimensions) }},
	{"EMBEDDING_API_KEY", func(c *Config) string { return c.Embedding.APIKey }},
	{"EMBEDDING_ENDPOINT", func(c *Config) string { return c.Embedding.Endpoint }},
	{"EMBEDDING_RPS", func(c *Config) string { return floatStr(c.Embedding.RPS) }},
	{"EMBEDDING_BURST", func(c *Config) string { return intStr(c.Embedding.Burst) }},
	{"EMBEDDING_RETRIES", func(c *Config) string { return intStr(c.Embedding.Retries) }},
	{"RAG_TOP_N", func(c *Config) string { return intStr(c.Query.TopN) }},
	{"RAG_LAMBDA", func(c *Config) string { return floatStr(c.Query.Lambda) }},
	{"RAG_POOL_SIZE", func(c *Config) string { return intStr(c.Query.PoolSize) }},
	{"RAG_MIN_SCORE", func(c *Config) string { return floatStr(c.Query.MinScore) }},
	{"RAGSTORE_JOURNAL_DB", func(c *Config) string { return c.Journal.DBPath }},
	{"LOG_LEVEL", func(c *Config) string { return c.Logging.Level }},
	{"LOG_FORMAT", func(c *Config) string { return c.Logging.Format }},
}

// Load reads a YAML config file and applies non-empty values as environment
// variables. Existing env vars are never overwritten (env always wins).
// Returns the path that was loaded, or empty string if no file was found.
func Load(explicitPath string, log *slog.Logger) (string, error) {
	path := resolveConfigPath(explicitPath)
	if path == "" {
		log.Debug("config: no YAML config file found, using env vars only")
		return "", nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("config: failed to read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return "", fmt.Errorf("config: failed to parse %s: %w", path, err)
	}

	applied := 0
	for _, m := range envMapping {
		yamlVal := m.value(&cfg)
		if yamlVal == "" {
			continue
		}
		if os.Getenv(m.envKey) != "" {
			continue // env var already set — do not override
		}
		os.Setenv(m.envKey, yamlVal)
		applied++
	}

	log.Info("config: loaded YAML config",
		slog.String("path", path),
		slog.Int("keys_applied", applied),
	)

	return path, nil
}

// resolveConfigPath returns the first config file path that exists.
func resolveConfigPath(explicit string) string {
	if explicit != "" {
		if _, err := os.Stat(explicit); err == nil {
			return explicit
		}
		return ""
	}

	if envPath := os.Getenv("RAGSTORE_CONFIG"); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	home, err := os.UserHomeDir()
	if err == nil {
		p := filepath.Join(home, ".ragstore", "config.yaml")
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	if _, err := os.Stat("ragstore.yaml"); err == nil {
		return "ragstore.yaml"
	}

	return ""
}

// intStr converts an int to string, returning "" for zero values.
func intStr(v int) string {
	if v == 0 {
		return ""
	}
	return fmt.Sprintf("%d", v)
}

// floatStr converts a float64 to string, returning "" for zero values.
func floatStr(v float64) string {
	if v == 0 {
		return ""
	}
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.4f", v), "0"), ".")
}
