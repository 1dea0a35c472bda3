package embedder

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/recoveryos/ragstore-go/internal/corpus"
)

// WithRateLimit wraps an Embedder with a token-bucket rate limit of rps
// requests per second and the given burst. Each Embed call consumes one
// token regardless of batch size; callers that batch aggressively should
// size rps accordingly. Waiting respects the call's context.
func WithRateLimit(inner corpus.Embedder, rps float64, burst int) corpus.Embedder {
	return &rateLimited{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// rateLimited is an Embedder middleware that gates calls through a
// token bucket.
type rateLimited struct {
	inner   corpus.Embedder
	limiter *rate.Limiter
}

// Embed waits for a token then delegates to the wrapped Embedder.
func (r *rateLimited) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("embedder: rate limit wait: %w", err)
	}
	return r.inner.Embed(ctx, texts)
}

// WithRetry wraps an Embedder with simple fixed-delay retries. The corpus
// core treats embedding failures as opaque and non-retryable; this wrapper
// is the caller-side policy applied around it. attempts is the total number
// of tries; delay separates consecutive tries and is cut short by context
// cancellation.
func WithRetry(inner corpus.Embedder, attempts int, delay time.Duration) corpus.Embedder {
	if attempts < 1 {
		attempts = 1
	}
	return &retrying{inner: inner, attempts: attempts, delay: delay}
}

// retrying is an Embedder middleware that retries transient failures.
type retrying struct {
	inner    corpus.Embedder
	attempts int
	delay    time.Duration
}

// Embed delegates to the wrapped Embedder, retrying on failure up to the
// configured number of attempts.
func (r *retrying) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	var lastErr error
	for attempt := 1; attempt <= r.attempts; attempt++ {
		vectors, err := r.inner.Embed(ctx, texts)
		if err == nil {
			return vectors, nil
		}
		lastErr = err
		if attempt == r.attempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("embedder: retry abandoned: %w", ctx.Err())
		case <-time.After(r.delay):
		}
	}
	return nil, fmt.Errorf("embedder: %d attempts failed: %w", r.attempts, lastErr)
}
