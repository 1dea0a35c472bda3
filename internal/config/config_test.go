package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_NoFile(t *testing.T) {
	t.Parallel()

	log := slog.Default()
	path, err := Load("/nonexistent/path/config.yaml", log)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if path != "" {
		t.Errorf("expected empty path, got %q", path)
	}
}

func TestLoad_ValidFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	content := []byte(`
store:
  dir: /var/lib/ragstore
chunking:
  size: 900
  overlap: 150
embedding:
  provider: openai
  model: text-embedding-3-small
  rps: 4
  retries: 3
query:
  top_n: 5
  lambda: 0.6
  min_score: 0.3
logging:
  level: debug
  format: text
`)

	if err := os.WriteFile(cfgPath, content, 0o644); err != nil {
		t.Fatal(err)
	}

	// Clear env vars that the YAML should set.
	envKeys := []string{
		"RAG_STORE_DIR", "CHUNK_SIZE", "CHUNK_OVERLAP",
		"EMBEDDING_PROVIDER", "EMBEDDING_MODEL", "EMBEDDING_RPS", "EMBEDDING_RETRIES",
		"RAG_TOP_N", "RAG_LAMBDA", "RAG_MIN_SCORE",
		"LOG_LEVEL", "LOG_FORMAT",
	}
	for _, k := range envKeys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}

	log := slog.Default()
	loaded, err := Load(cfgPath, log)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded != cfgPath {
		t.Errorf("loaded path: got %q, want %q", loaded, cfgPath)
	}

	checks := map[string]string{
		"RAG_STORE_DIR":      "/var/lib/ragstore",
		"CHUNK_SIZE":         "900",
		"CHUNK_OVERLAP":      "150",
		"EMBEDDING_PROVIDER": "openai",
		"EMBEDDING_MODEL":    "text-embedding-3-small",
		"EMBEDDING_RPS":      "4",
		"EMBEDDING_RETRIES":  "3",
		"RAG_TOP_N":          "5",
		"RAG_LAMBDA":         "0.6",
		"RAG_MIN_SCORE":      "0.3",
		"LOG_LEVEL":          "debug",
		"LOG_FORMAT":         "text",
	}
	for k, want := range checks {
		got := os.Getenv(k)
		if got != want {
			t.Errorf("%s: got %q, want %q", k, got, want)
		}
	}
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	content := []byte(`
embedding:
  model: yaml-model
`)
	if err := os.WriteFile(cfgPath, content, 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("EMBEDDING_MODEL", "env-model")

	log := slog.Default()
	if _, err := Load(cfgPath, log); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if got := os.Getenv("EMBEDDING_MODEL"); got != "env-model" {
		t.Errorf("env var should win: got %q, want %q", got, "env-model")
	}
}

func TestLoad_MalformedYAML(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	if err := os.WriteFile(cfgPath, []byte("store: [unclosed"), 0o644); err != nil {
		t.Fatal(err)
	}

	log := slog.Default()
	if _, err := Load(cfgPath, log); err == nil {
		t.Fatal("expected parse error for malformed YAML")
	}
}

func TestLoad_SearchOrderEnvVar(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "from-env.yaml")

	content := []byte("store:\n  dir: env-located\n")
	if err := os.WriteFile(cfgPath, content, 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("RAGSTORE_CONFIG", cfgPath)
	t.Setenv("RAG_STORE_DIR", "")
	os.Unsetenv("RAG_STORE_DIR")

	log := slog.Default()
	loaded, err := Load("", log)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded != cfgPath {
		t.Errorf("loaded path: got %q, want %q", loaded, cfgPath)
	}
	if got := os.Getenv("RAG_STORE_DIR"); got != "env-located" {
		t.Errorf("RAG_STORE_DIR: got %q, want %q", got, "env-located")
	}
}
