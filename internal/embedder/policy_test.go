package embedder

import (
	"context"
	"errors"
	"testing"
	"time"
)

// countingEmbedder fails the first failures calls, then succeeds.
type countingEmbedder struct {
	calls    int
	failures int
}

func (c *countingEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	c.calls++
	if c.calls <= c.failures {
		return nil, errors.New("transient failure")
	}
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = []float32{1, 0}
	}
	return out, nil
}

func Test_WithRetry_SucceedsAfterTransientFailures(t *testing.T) {
	t.Parallel()
	inner := &countingEmbedder{failures: 2}
	emb := WithRetry(inner, 3, time.Millisecond)

	vectors, err := emb.Embed(context.Background(), []string{"a"})
	if err != nil {
		t.Fatalf("embed with retries: %v", err)
	}
	if len(vectors) != 1 {
		t.Errorf("want 1 vector, got %d", len(vectors))
	}
	if inner.calls != 3 {
		t.Errorf("want 3 attempts, got %d", inner.calls)
	}
}

func Test_WithRetry_ExhaustedAttemptsReturnLastError(t *testing.T) {
	t.Parallel()
	inner := &countingEmbedder{failures: 10}
	emb := WithRetry(inner, 2, time.Millisecond)

	if _, err := emb.Embed(context.Background(), []string{"a"}); err == nil {
		t.Fatalf("want error after exhausting attempts, got nil")
	}
	if inner.calls != 2 {
		t.Errorf("want exactly 2 attempts, got %d", inner.calls)
	}
}

func Test_WithRetry_CanceledContextStopsRetries(t *testing.T) {
	t.Parallel()
	inner := &countingEmbedder{failures: 10}
	emb := WithRetry(inner, 5, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := emb.Embed(ctx, []string{"a"}); !errors.Is(err, context.Canceled) {
		t.Errorf("want context.Canceled, got %v", err)
	}
	if inner.calls != 1 {
		t.Errorf("want 1 attempt before cancellation stop, got %d", inner.calls)
	}
}

func Test_WithRateLimit_PassesThrough(t *testing.T) {
	t.Parallel()
	inner := &countingEmbedder{}
	emb := WithRateLimit(inner, 1000, 10)

	vectors, err := emb.Embed(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if len(vectors) != 2 {
		t.Errorf("want 2 vectors, got %d", len(vectors))
	}
}

func Test_WithRateLimit_CanceledContext(t *testing.T) {
	t.Parallel()
	inner := &countingEmbedder{}
	// Zero burst means the first Wait can never be satisfied immediately.
	emb := WithRateLimit(inner, 0.001, 0)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if _, err := emb.Embed(ctx, []string{"a"}); err == nil {
		t.Errorf("want rate limit wait error under canceled context, got nil")
	}
	if inner.calls != 0 {
		t.Errorf("inner embedder called despite rate limit block: %d", inner.calls)
	}
}
