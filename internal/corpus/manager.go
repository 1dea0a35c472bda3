package corpus

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/recoveryos/ragstore-go/internal/chunker"
	"github.com/recoveryos/ragstore-go/internal/journal"
	"github.com/recoveryos/ragstore-go/internal/metrics"
	"github.com/recoveryos/ragstore-go/internal/similarity"
	"github.com/recoveryos/ragstore-go/internal/store"
)

// Query defaults applied when options are left at their zero values.
const (
	// DefaultTopN is the number of results returned when the caller passes 0.
	DefaultTopN = 3

	// DefaultMinScore is the relevance floor below which results are dropped.
	DefaultMinScore = 0.25
)

// Result is one query hit, a stored chunk with its relevance to the query.
type Result struct {
	// Chunk is the full stored chunk record.
	Chunk store.Chunk

	// Score is the cosine relevance of the chunk to the query, in [-1, 1].
	Score float32
}

// QueryOptions tune a single query. Unset counts fall back to defaults;
// Lambda and MinScore use negative values to mean "default"/"disabled"
// because zero is meaningful for both.
type QueryOptions struct {
	// TopN is the maximum number of results. 0 means DefaultTopN.
	TopN int

	// Lambda balances relevance against diversity in [0, 1]; 1 is pure
	// relevance ranking, 0 pure diversity. Negative means the manager's
	// configured default.
	Lambda float64

	// PoolSize bounds the MMR candidate pool. 0 means 5*TopN.
	PoolSize int

	// MinScore drops results scoring below the floor. Negative disables the
	// floor; 0 means the manager's configured default.
	MinScore float32
}

// Config holds the settings for constructing a Manager.
type Config struct {
	// ChunkSize is the maximum chunk length in runes. Defaults to
	// chunker.DefaultChunkSize if zero.
	ChunkSize int

	// ChunkOverlap is the rune overlap between consecutive chunks. Defaults
	// to chunker.DefaultOverlap if negative or unset (-1 selects 0).
	ChunkOverlap int

	// Lambda is the default relevance/diversity balance for queries.
	// Defaults to similarity.DefaultLambda if zero.
	Lambda float64

	// MinScore is the default relevance floor for queries. Defaults to
	// DefaultMinScore if zero.
	MinScore float32

	// Journal, when non-nil, records every document-level mutation.
	Journal *journal.Journal

	// Metrics, when non-nil, receives operation counters and timings.
	Metrics *metrics.Metrics

	// Logger is the structured logger. Defaults to slog.Default if nil.
	Logger *slog.Logger
}

// Manager orchestrates ingestion and querying against the embedding store.
// It owns the store's lifecycle; the embedding call is the only step outside
// its control and happens before the store's write lock is taken, so a slow
// or failing embedding provider never blocks readers or holds the store
// hostage.
type Manager struct {
	// store persists chunk embeddings and metadata.
	store *store.EmbeddingStore

	// embedder converts text to vectors. Failures are opaque and propagated.
	embedder Embedder

	// cfg holds the resolved configuration.
	cfg Config

	// log is the structured logger for corpus operations.
	log *slog.Logger
}

// NewManager constructs a Manager from the given store, embedder, and config.
func NewManager(st *store.EmbeddingStore, emb Embedder, cfg *Config) (*Manager, error) {
	if st == nil {
		return nil, fmt.Errorf("corpus: store must not be nil")
	}
	if emb == nil {
		return nil, fmt.Errorf("corpus: embedder must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	resolved := *cfg
	if resolved.ChunkSize <= 0 {
		resolved.ChunkSize = chunker.DefaultChunkSize
	}
	if resolved.ChunkOverlap == 0 {
		resolved.ChunkOverlap = chunker.DefaultOverlap
	}
	if resolved.ChunkOverlap < 0 {
		resolved.ChunkOverlap = 0
	}
	if resolved.ChunkOverlap >= resolved.ChunkSize {
		return nil, fmt.Errorf("corpus: chunk overlap %d must be smaller than chunk size %d", resolved.ChunkOverlap, resolved.ChunkSize)
	}
	if resolved.Lambda <= 0 || resolved.Lambda > 1 {
		resolved.Lambda = similarity.DefaultLambda
	}
	if resolved.MinScore == 0 {
		resolved.MinScore = DefaultMinScore
	}
	if resolved.Logger == nil {
		resolved.Logger = slog.Default()
	}

	return &Manager{
		store:    st,
		embedder: emb,
		cfg:      resolved,
		log:      resolved.Logger,
	}, nil
}

// Store returns the underlying embedding store.
func (m *Manager) Store() *store.EmbeddingStore { return m.store }

// Ingest chunks text, embeds each chunk, and appends the batch to the store.
// Chunk ids are derived from the document id and chunk index ("docID#i").
// The append is all-or-nothing: any failure returns an *IngestError and
// leaves the store exactly as it was. Returns the number of chunks ingested;
// a document with no embeddable content ingests zero chunks without error.
func (m *Manager) Ingest(ctx context.Context, docID, title, text string, extra map[string]string) (int, error) {
	count, err := m.ingest(ctx, docID, title, text, extra)
	if err != nil {
		return 0, err
	}
	if count > 0 {
		m.recordJournal(ctx, docID, journal.ActionIngest, count)
	}
	return count, nil
}

// ingest implements Ingest without journaling, so Update can record a single
// "update" event instead of a misleading "ingest".
func (m *Manager) ingest(ctx context.Context, docID, title, text string, extra map[string]string) (int, error) {
	if strings.TrimSpace(docID) == "" {
		return 0, &IngestError{DocID: docID, Err: fmt.Errorf("document id must not be empty")}
	}

	texts, err := chunker.Split(text, m.cfg.ChunkSize, m.cfg.ChunkOverlap)
	if err != nil {
		return 0, m.failIngest(docID, err)
	}
	if len(texts) == 0 {
		m.log.Warn("corpus: nothing to ingest", slog.String("doc_id", docID))
		return 0, nil
	}

	// The embedding call may be slow and happens before the store's write
	// lock is taken.
	vectors, err := m.embedder.Embed(ctx, texts)
	if err != nil {
		return 0, m.failIngest(docID, fmt.Errorf("embedding failed: %w", err))
	}
	if len(vectors) != len(texts) {
		return 0, m.failIngest(docID, fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(texts)))
	}

	chunks := make([]store.Chunk, len(texts))
	for i, t := range texts {
		chunks[i] = store.Chunk{
			ID:         fmt.Sprintf("%s#%d", docID, i),
			DocID:      docID,
			Title:      title,
			Text:       t,
			ChunkIndex: i,
			Extra:      extra,
		}
	}

	if err := m.store.Append(chunks, vectors); err != nil {
		return 0, m.failIngest(docID, err)
	}

	m.cfg.Metrics.ObserveIngest(nil, m.store.Count())
	m.log.Info("corpus: document ingested",
		slog.String("doc_id", docID),
		slog.Int("chunks", len(chunks)),
		slog.Int("total", m.store.Count()),
	)
	return len(chunks), nil
}

// Query embeds the query text, scores it against a point-in-time snapshot of
// the store, applies MMR re-ranking, and returns the selected chunks with
// their relevance scores attached, most relevant first. An empty store (or
// blank query) returns no results and no error; scoring and load failures
// surface to the caller rather than degrading silently.
func (m *Manager) Query(ctx context.Context, text string, opts QueryOptions) ([]Result, error) {
	start := time.Now()
	results, err := m.query(ctx, text, opts)
	m.cfg.Metrics.ObserveQuery(err, time.Since(start))
	return results, err
}

func (m *Manager) query(ctx context.Context, text string, opts QueryOptions) ([]Result, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	topN := opts.TopN
	if topN <= 0 {
		topN = DefaultTopN
	}
	lambda := opts.Lambda
	if lambda < 0 {
		lambda = m.cfg.Lambda
	}
	minScore := opts.MinScore
	if minScore == 0 {
		minScore = m.cfg.MinScore
	}

	vectors, err := m.embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("corpus: embedding query failed: %w", err)
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("corpus: embedder returned no vector for query")
	}
	query := vectors[0]

	snap := m.store.Load()
	if snap.Count() == 0 {
		return nil, nil
	}

	// Relevance is computed once against the snapshot and reused for both
	// selection and the scores attached to results.
	scores, err := similarity.Scores(query, snap.Vectors)
	if err != nil {
		return nil, fmt.Errorf("corpus: scoring failed: %w", err)
	}

	// Diversification only matters when there are more candidates than
	// result slots; otherwise plain relevance order is returned.
	var rows []int
	if lambda >= 1 || topN <= 1 || snap.Count() <= topN {
		ranked := similarity.SortByRelevance(append([]similarity.Score(nil), scores...))
		for i := 0; i < len(ranked) && i < topN; i++ {
			rows = append(rows, ranked[i].Row)
		}
	} else {
		rows = similarity.SelectMMR(scores, snap.Vectors, topN, lambda, opts.PoolSize)
	}

	results := make([]Result, 0, len(rows))
	for _, row := range rows {
		score := scores[row].Relevance
		if minScore >= 0 && score < minScore {
			continue
		}
		results = append(results, Result{Chunk: snap.Chunks[row], Score: score})
	}

	m.log.Debug("corpus: query complete",
		slog.Int("candidates", snap.Count()),
		slog.Int("results", len(results)),
		slog.Float64("lambda", lambda),
	)
	return results, nil
}

// Delete removes every chunk belonging to docID by rebuilding the store
// without them. Returns the number of chunks removed; deleting an absent
// document removes zero chunks without error.
func (m *Manager) Delete(ctx context.Context, docID string) (int, error) {
	removed, err := m.store.Rebuild(func(c store.Chunk) bool { return c.DocID != docID })
	if err != nil {
		return 0, fmt.Errorf("corpus: delete %q: %w", docID, err)
	}
	if removed > 0 {
		m.recordJournal(ctx, docID, journal.ActionDelete, removed)
		m.cfg.Metrics.SetStoreSize(m.store.Count())
		m.log.Info("corpus: document deleted",
			slog.String("doc_id", docID),
			slog.Int("chunks", removed),
		)
	}
	return removed, nil
}

// Update replaces a document: its existing chunks are removed via rebuild,
// then the new text is ingested. The store is never mutated in place; a
// failure during the ingest phase leaves the document deleted but the store
// structurally intact. Returns the number of chunks the new text produced.
func (m *Manager) Update(ctx context.Context, docID, title, text string, extra map[string]string) (int, error) {
	if _, err := m.store.Rebuild(func(c store.Chunk) bool { return c.DocID != docID }); err != nil {
		return 0, fmt.Errorf("corpus: update %q: %w", docID, err)
	}
	count, err := m.ingest(ctx, docID, title, text, extra)
	if err != nil {
		return 0, err
	}
	m.recordJournal(ctx, docID, journal.ActionUpdate, count)
	return count, nil
}

// failIngest wraps err in an *IngestError, records the failure, and logs it.
func (m *Manager) failIngest(docID string, err error) error {
	m.cfg.Metrics.ObserveIngest(err, 0)
	m.log.Error("corpus: ingest failed",
		slog.String("doc_id", docID),
		slog.String("error", err.Error()),
	)
	return &IngestError{DocID: docID, Err: err}
}

// recordJournal best-effort records a mutation event. Journal failures are
// logged, never propagated: the store mutation has already succeeded.
func (m *Manager) recordJournal(ctx context.Context, docID string, action journal.Action, chunks int) {
	if m.cfg.Journal == nil {
		return
	}
	if _, err := m.cfg.Journal.Record(ctx, docID, action, chunks); err != nil {
		m.log.Warn("corpus: journal record failed",
			slog.String("doc_id", docID),
			slog.String("action", string(action)),
			slog.String("error", err.Error()),
		)
	}
}
