package commands

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/recoveryos/ragstore-go/internal/corpus"
	"github.com/recoveryos/ragstore-go/internal/embedder"
	"github.com/recoveryos/ragstore-go/internal/journal"
	"github.com/recoveryos/ragstore-go/internal/metrics"
	"github.com/recoveryos/ragstore-go/internal/store"
)

// buildManager wires the embedding store, embedder, journal, and metrics
// into a corpus.Manager from the current environment. The returned cleanup
// func closes the journal and must be called when the command finishes.
func buildManager(log *slog.Logger) (*corpus.Manager, func(), error) {
	noop := func() {}

	dir := getEnvOrDefault("RAG_STORE_DIR", "rag_store")
	st, err := store.Open(dir, embedder.ModelLabel())
	if err != nil {
		return nil, noop, fmt.Errorf("open store %s: %w", dir, err)
	}

	if err := embedder.ValidateEnv(log); err != nil {
		return nil, noop, err
	}
	emb, err := embedder.NewFromEnv()
	if err != nil {
		return nil, noop, fmt.Errorf("initialise embedder: %w", err)
	}
	if retries := getEnvInt("EMBEDDING_RETRIES", 0); retries > 1 {
		emb = embedder.WithRetry(emb, retries, time.Second)
	}
	if rps := getEnvFloat("EMBEDDING_RPS", 0); rps > 0 {
		emb = embedder.WithRateLimit(emb, rps, getEnvInt("EMBEDDING_BURST", 1))
	}

	var jnl *journal.Journal
	dbPath := os.Getenv("RAGSTORE_JOURNAL_DB")
	if dbPath != "disabled" {
		if dbPath == "" {
			dbPath, err = journal.DefaultDBPath()
			if err != nil {
				return nil, noop, fmt.Errorf("resolve journal path: %w", err)
			}
		}
		jnl, err = journal.Open(dbPath)
		if err != nil {
			return nil, noop, fmt.Errorf("open journal %s: %w", dbPath, err)
		}
	}
	cleanup := func() {
		if jnl != nil {
			if err := jnl.Close(); err != nil {
				log.Warn("journal close failed", slog.String("error", err.Error()))
			}
		}
	}

	mgr, err := corpus.NewManager(st, emb, &corpus.Config{
		ChunkSize:    getEnvInt("CHUNK_SIZE", 0),
		ChunkOverlap: getEnvInt("CHUNK_OVERLAP", 0),
		Lambda:       getEnvFloat("RAG_LAMBDA", 0),
		MinScore:     float32(getEnvFloat("RAG_MIN_SCORE", 0)),
		Journal:      jnl,
		Metrics:      metrics.New(prometheus.NewRegistry()),
		Logger:       log,
	})
	if err != nil {
		cleanup()
		return nil, noop, fmt.Errorf("initialise corpus manager: %w", err)
	}

	return mgr, cleanup, nil
}

// resolveQueryOptions merges explicit query flag values with environment
// defaults. A flag left at its zero value falls back to RAG_TOP_N /
// RAG_POOL_SIZE; an explicitly set flag always wins.
func resolveQueryOptions(topN int, lambda float64, poolSize int, minScore float64) corpus.QueryOptions {
	if topN <= 0 {
		topN = getEnvInt("RAG_TOP_N", 0)
	}
	if poolSize <= 0 {
		poolSize = getEnvInt("RAG_POOL_SIZE", 0)
	}
	return corpus.QueryOptions{
		TopN:     topN,
		Lambda:   lambda,
		PoolSize: poolSize,
		MinScore: float32(minScore),
	}
}

// readDocument returns the document text from path, or from stdin when
// path is "-".
func readDocument(path string) (string, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("read document: %w", err)
	}
	return string(data), nil
}

// parseMeta converts repeated key=value flags into a metadata map.
func parseMeta(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	meta := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid --meta %q, expected key=value", p)
		}
		meta[k] = v
	}
	return meta, nil
}

// getEnvOrDefault returns the env var value or fallback when unset.
func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvInt returns the env var parsed as int, or fallback when unset
// or unparseable.
func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

// getEnvFloat returns the env var parsed as float64, or fallback when
// unset or unparseable.
func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}
