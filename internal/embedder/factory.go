package embedder

import (
	"fmt"
	"os"
	"strconv"

	"github.com/recoveryos/ragstore-go/internal/corpus"
)

// Default embedding models per backend.
const (
	defaultOllamaModel = "nomic-embed-text"
	defaultOpenAIModel = "text-embedding-3-small"
)

// NewFromEnv constructs a corpus.Embedder from environment variables.
//
// Resolution:
//
//	EMBEDDING_PROVIDER   ollama (default) or openai
//	EMBEDDING_MODEL      overrides the backend's default model
//	EMBEDDING_ENDPOINT   overrides the backend's base URL
//	EMBEDDING_API_KEY    API key (openai; falls back to OPENAI_API_KEY)
//	EMBEDDING_DIMENSIONS requested vector length (openai only)
func NewFromEnv() (corpus.Embedder, error) {
	backend := getEnvOrDefault("EMBEDDING_PROVIDER", "ollama")

	switch backend {
	case "ollama":
		host := os.Getenv("EMBEDDING_ENDPOINT")
		if host == "" {
			host = os.Getenv("OLLAMA_HOST")
		}
		return NewOllama(&OllamaConfig{
			Host:  host,
			Model: getEnvOrDefault("EMBEDDING_MODEL", defaultOllamaModel),
		}), nil

	case "openai":
		apiKey := os.Getenv("EMBEDDING_API_KEY")
		if apiKey == "" {
			apiKey = os.Getenv("OPENAI_API_KEY")
		}
		if apiKey == "" {
			return nil, fmt.Errorf("embedder: openai requires OPENAI_API_KEY or EMBEDDING_API_KEY")
		}
		return NewOpenAI(&OpenAIConfig{
			BaseURL:    os.Getenv("EMBEDDING_ENDPOINT"),
			APIKey:     apiKey,
			Model:      getEnvOrDefault("EMBEDDING_MODEL", defaultOpenAIModel),
			Dimensions: getEnvInt("EMBEDDING_DIMENSIONS", 0),
		}), nil

	default:
		return nil, fmt.Errorf("embedder: unknown backend %q — valid values: ollama, openai", backend)
	}
}

// ModelLabel returns the embedding model name the environment resolves to,
// for recording in the store manifest.
func ModelLabel() string {
	if m := os.Getenv("EMBEDDING_MODEL"); m != "" {
		return m
	}
	if getEnvOrDefault("EMBEDDING_PROVIDER", "ollama") == "openai" {
		return defaultOpenAIModel
	}
	return defaultOllamaModel
}

// getEnvOrDefault returns the value of the named environment variable, or
// fallback if the variable is unset or empty.
func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvInt returns the integer value of the named environment variable, or
// fallback if the variable is unset, empty, or not parseable.
func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
