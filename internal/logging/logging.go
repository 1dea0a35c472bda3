// Package logging provides the structured logger used across ragstore,
// built on [log/slog]. The logger is constructed once at startup and
// handed to commands through context values via [WithLogger] /
// [FromContext].
//
// Environment variables:
//
//	LOG_LEVEL  = debug | info | warn | error  (default: info)
//	LOG_FORMAT = json | text                  (default: json)
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Options controls logger construction. The zero value yields a JSON
// logger at info level writing to stderr.
type Options struct {
	// Level is the minimum severity: debug, info, warn, error.
	Level string
	// Format selects the handler: json or text.
	Format string
	// Output overrides the destination. Defaults to os.Stderr.
	Output io.Writer
}

// contextKey is an unexported type for context keys in this package.
type contextKey struct{}

// New constructs a [*slog.Logger] from opts. Unrecognised level or
// format strings fall back to the defaults rather than erroring, so a
// typo in config never leaves the process without a logger.
func New(opts Options) *slog.Logger {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	hopts := &slog.HandlerOptions{Level: parseLevel(opts.Level)}

	var handler slog.Handler
	if strings.ToLower(opts.Format) == "text" {
		handler = slog.NewTextHandler(out, hopts)
	} else {
		handler = slog.NewJSONHandler(out, hopts)
	}

	return slog.New(handler)
}

// NewFromEnv constructs a logger from the LOG_LEVEL and LOG_FORMAT
// environment variables. This is the normal entry point: the config
// layer resolves YAML values into env vars before this runs.
func NewFromEnv() *slog.Logger {
	return New(Options{
		Level:  os.Getenv("LOG_LEVEL"),
		Format: os.Getenv("LOG_FORMAT"),
	})
}

// WithLogger returns a copy of ctx carrying logger.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, logger)
}

// FromContext returns the [*slog.Logger] stored in ctx. If no logger
// is present it returns [slog.Default] so callers never need to
// nil-check.
func FromContext(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(contextKey{}).(*slog.Logger); ok && l != nil {
		return l
	}
	return slog.Default()
}

// parseLevel converts a string to a [slog.Level], defaulting to Info.
func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
