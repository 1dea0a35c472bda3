// Package corpus defines the retrieval corpus manager and the interfaces it
// orchestrates: chunking, embedding, durable vector storage, and
// diversity-aware similarity search. The manager is the only surface the
// surrounding application needs — ingest, query, delete, update.
package corpus

import (
	"context"
	"fmt"
)

// Embedder converts text into dense vector embeddings. It is the external
// collaborator of the corpus core: implementations may call remote APIs and
// fail transiently. The corpus never retries an embedding call — retry and
// backoff policy belongs to the caller, typically applied by wrapping the
// Embedder (see the embedder package's WithRetry and WithRateLimit).
// Implementations must be safe to call from multiple goroutines.
type Embedder interface {
	// Embed converts a batch of texts into their corresponding embeddings.
	// The returned slice is parallel to the input slice and every vector
	// has the same length.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// EmbedFunc adapts a plain function to the Embedder interface.
type EmbedFunc func(ctx context.Context, texts []string) ([][]float32, error)

// Embed calls f.
func (f EmbedFunc) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return f(ctx, texts)
}

// IngestError wraps any chunking, embedding, or store failure during an
// ingest. When an IngestError is returned the store is guaranteed unchanged:
// appends are all-or-nothing for the batch.
type IngestError struct {
	// DocID is the document whose ingest failed.
	DocID string
	// Err is the underlying failure.
	Err error
}

// Error implements the error interface.
func (e *IngestError) Error() string {
	return fmt.Sprintf("corpus: ingest %q: %v", e.DocID, e.Err)
}

// Unwrap exposes the underlying failure to errors.Is and errors.As.
func (e *IngestError) Unwrap() error { return e.Err }
