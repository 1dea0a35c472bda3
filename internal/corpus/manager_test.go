package corpus

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/recoveryos/ragstore-go/internal/store"
)

// fakeEmbedder returns fixed vectors keyed by exact text, so tests control
// the geometry of the embedding space.
type fakeEmbedder struct {
	vectors map[string][]float32
	// fallback is returned for texts without an explicit vector.
	fallback []float32
	// err, when set, fails every call.
	err error
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if v, ok := f.vectors[t]; ok {
			out[i] = v
		} else {
			out[i] = f.fallback
		}
	}
	return out, nil
}

// newTestManager wires a Manager over a temp-dir store and the given embedder.
func newTestManager(t *testing.T, emb Embedder) *Manager {
	t.Helper()
	st, err := store.Open(t.TempDir(), "test-model")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	m, err := NewManager(st, emb, &Config{ChunkSize: 200, ChunkOverlap: 20})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return m
}

func Test_Manager_IngestAndQuery(t *testing.T) {
	t.Parallel()
	emb := &fakeEmbedder{fallback: []float32{1, 0}}
	m := newTestManager(t, emb)
	ctx := context.Background()

	count, err := m.Ingest(ctx, "doc-a", "Doc A", "some short text", map[string]string{"tag": "clinical"})
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if count != 1 {
		t.Fatalf("want 1 chunk, got %d", count)
	}

	results, err := m.Query(ctx, "anything", QueryOptions{TopN: 5, Lambda: 1})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("want 1 result, got %d", len(results))
	}
	r := results[0]
	if r.Chunk.ID != "doc-a#0" || r.Chunk.DocID != "doc-a" || r.Chunk.Title != "Doc A" {
		t.Errorf("chunk identity wrong: %+v", r.Chunk)
	}
	if r.Chunk.Extra["tag"] != "clinical" {
		t.Errorf("caller metadata lost: %+v", r.Chunk.Extra)
	}
	if r.Score < 0.999 {
		t.Errorf("identical embedding should score ~1.0, got %f", r.Score)
	}
}

func Test_Manager_IngestEmptyDocumentIsNoop(t *testing.T) {
	t.Parallel()
	m := newTestManager(t, &fakeEmbedder{fallback: []float32{1, 0}})

	count, err := m.Ingest(context.Background(), "doc-empty", "", "   ", nil)
	if err != nil {
		t.Fatalf("ingest empty: %v", err)
	}
	if count != 0 || m.Store().Count() != 0 {
		t.Errorf("empty document ingested chunks: count=%d store=%d", count, m.Store().Count())
	}
}

func Test_Manager_IngestEmbedderFailureLeavesStoreUntouched(t *testing.T) {
	t.Parallel()
	boom := errors.New("rate limited")
	m := newTestManager(t, &fakeEmbedder{err: boom})

	_, err := m.Ingest(context.Background(), "doc-a", "", "some text", nil)
	var ingestErr *IngestError
	if !errors.As(err, &ingestErr) {
		t.Fatalf("want *IngestError, got %T: %v", err, err)
	}
	if !errors.Is(err, boom) {
		t.Errorf("underlying embedder error not wrapped: %v", err)
	}
	if m.Store().Count() != 0 {
		t.Errorf("failed ingest mutated the store: count=%d", m.Store().Count())
	}
}

func Test_Manager_IngestDuplicateDocument(t *testing.T) {
	t.Parallel()
	m := newTestManager(t, &fakeEmbedder{fallback: []float32{1, 0}})
	ctx := context.Background()

	if _, err := m.Ingest(ctx, "doc-a", "", "text", nil); err != nil {
		t.Fatalf("first ingest: %v", err)
	}
	_, err := m.Ingest(ctx, "doc-a", "", "text again", nil)
	if !errors.Is(err, store.ErrDuplicateChunkID) {
		t.Errorf("want ErrDuplicateChunkID through IngestError, got %v", err)
	}
}

func Test_Manager_QueryEmptyStore(t *testing.T) {
	t.Parallel()
	m := newTestManager(t, &fakeEmbedder{fallback: []float32{1, 0}})

	results, err := m.Query(context.Background(), "anything", QueryOptions{})
	if err != nil {
		t.Fatalf("query empty store: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("want no results from empty store, got %d", len(results))
	}
}

func Test_Manager_QueryBlankTextReturnsNothing(t *testing.T) {
	t.Parallel()
	m := newTestManager(t, &fakeEmbedder{fallback: []float32{1, 0}})

	results, err := m.Query(context.Background(), "   ", QueryOptions{})
	if err != nil {
		t.Fatalf("blank query: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("want no results for blank query, got %d", len(results))
	}
}

func Test_Manager_QueryEmbedderFailureSurfaces(t *testing.T) {
	t.Parallel()
	emb := &fakeEmbedder{fallback: []float32{1, 0}}
	m := newTestManager(t, emb)
	if _, err := m.Ingest(context.Background(), "doc-a", "", "text", nil); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	emb.err = errors.New("provider down")
	if _, err := m.Query(context.Background(), "query", QueryOptions{}); err == nil {
		t.Errorf("want embedder failure to surface, got nil")
	}
}

func Test_Manager_QueryMMRDiversifiesNearDuplicates(t *testing.T) {
	t.Parallel()
	// Two near-duplicate chunks aligned with the query and one distinct
	// chunk. MMR at lambda=0.5 must return the distinct chunk alongside
	// exactly one duplicate, never both duplicates.
	emb := &fakeEmbedder{vectors: map[string][]float32{
		"craving wave":      {1, 0},
		"craving wave copy": {0.99, 0.01},
		"sleep hygiene":     {0, 1},
		"query":             {1, 0},
	}}
	m := newTestManager(t, emb)
	ctx := context.Background()

	for _, doc := range []struct{ id, text string }{
		{"dup-1", "craving wave"},
		{"dup-2", "craving wave copy"},
		{"distinct", "sleep hygiene"},
	} {
		if _, err := m.Ingest(ctx, doc.id, "", doc.text, nil); err != nil {
			t.Fatalf("ingest %s: %v", doc.id, err)
		}
	}

	results, err := m.Query(ctx, "query", QueryOptions{TopN: 2, Lambda: 0.5, MinScore: -1})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("want 2 results, got %d", len(results))
	}
	if results[0].Chunk.DocID != "dup-1" {
		t.Errorf("first pick: want most relevant dup-1, got %s", results[0].Chunk.DocID)
	}
	if results[1].Chunk.DocID != "distinct" {
		t.Errorf("second pick: want diverse chunk, got %s", results[1].Chunk.DocID)
	}
}

func Test_Manager_QuerySmallStoreRanksByRelevance(t *testing.T) {
	t.Parallel()
	// Fewer chunks than result slots: diversification has nothing to decide,
	// so the results come back in plain relevance order even at lambda<1.
	emb := &fakeEmbedder{vectors: map[string][]float32{
		"exact match":   {1, 0},
		"orthogonal":    {0, 1},
		"partial match": {0.9, 0.1},
		"query":         {1, 0},
	}}
	m := newTestManager(t, emb)
	ctx := context.Background()

	for _, doc := range []struct{ id, text string }{
		{"best", "exact match"},
		{"worst", "orthogonal"},
		{"middle", "partial match"},
	} {
		if _, err := m.Ingest(ctx, doc.id, "", doc.text, nil); err != nil {
			t.Fatalf("ingest %s: %v", doc.id, err)
		}
	}

	results, err := m.Query(ctx, "query", QueryOptions{TopN: 5, Lambda: 0.5, MinScore: -1})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("want all 3 chunks, got %d", len(results))
	}
	want := []string{"best", "middle", "worst"}
	for i, id := range want {
		if results[i].Chunk.DocID != id {
			t.Errorf("result %d: want %s, got %s", i, id, results[i].Chunk.DocID)
		}
	}
}

func Test_Manager_QueryMinScoreFloor(t *testing.T) {
	t.Parallel()
	emb := &fakeEmbedder{vectors: map[string][]float32{
		"relevant":   {1, 0},
		"irrelevant": {0, 1},
		"query":      {1, 0},
	}}
	m := newTestManager(t, emb)
	ctx := context.Background()

	for _, doc := range []string{"relevant", "irrelevant"} {
		if _, err := m.Ingest(ctx, doc, "", doc, nil); err != nil {
			t.Fatalf("ingest: %v", err)
		}
	}

	results, err := m.Query(ctx, "query", QueryOptions{TopN: 5, Lambda: 1, MinScore: 0.5})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(results) != 1 || results[0].Chunk.DocID != "relevant" {
		t.Errorf("min score floor not applied: %+v", results)
	}
}

func Test_Manager_DeleteRemovesOnlyTargetDocument(t *testing.T) {
	t.Parallel()
	emb := &fakeEmbedder{fallback: []float32{1, 0}}
	m := newTestManager(t, emb)
	ctx := context.Background()

	if _, err := m.Ingest(ctx, "keep", "", "kept text", nil); err != nil {
		t.Fatalf("ingest keep: %v", err)
	}
	if _, err := m.Ingest(ctx, "drop", "", "dropped text", nil); err != nil {
		t.Fatalf("ingest drop: %v", err)
	}

	removed, err := m.Delete(ctx, "drop")
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if removed != 1 {
		t.Errorf("want 1 chunk removed, got %d", removed)
	}

	snap := m.Store().Load()
	if snap.Count() != 1 || snap.Chunks[0].DocID != "keep" {
		t.Errorf("wrong survivors after delete: %+v", snap.Chunks)
	}
}

func Test_Manager_DeleteAbsentDocument(t *testing.T) {
	t.Parallel()
	m := newTestManager(t, &fakeEmbedder{fallback: []float32{1, 0}})

	removed, err := m.Delete(context.Background(), "never-ingested")
	if err != nil {
		t.Fatalf("delete absent: %v", err)
	}
	if removed != 0 {
		t.Errorf("want 0 removed, got %d", removed)
	}
}

func Test_Manager_UpdateReplacesDocument(t *testing.T) {
	t.Parallel()
	emb := &fakeEmbedder{fallback: []float32{1, 0}}
	m := newTestManager(t, emb)
	ctx := context.Background()

	if _, err := m.Ingest(ctx, "doc-a", "Old", "old text", nil); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	count, err := m.Update(ctx, "doc-a", "New", "new text", nil)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if count != 1 {
		t.Errorf("want 1 chunk from update, got %d", count)
	}

	snap := m.Store().Load()
	if snap.Count() != 1 {
		t.Fatalf("want 1 chunk after update, got %d", snap.Count())
	}
	if snap.Chunks[0].Title != "New" || snap.Chunks[0].Text != "new text" {
		t.Errorf("update did not replace content: %+v", snap.Chunks[0])
	}
}

func Test_Manager_LongDocumentChunksAndQueries(t *testing.T) {
	t.Parallel()
	emb := &fakeEmbedder{fallback: []float32{0.5, 0.5}}
	m := newTestManager(t, emb)
	ctx := context.Background()

	var long string
	for i := range 30 {
		long += fmt.Sprintf("Sentence number %d about recovery practice. ", i)
	}
	count, err := m.Ingest(ctx, "long-doc", "Long", long, nil)
	if err != nil {
		t.Fatalf("ingest long: %v", err)
	}
	if count < 2 {
		t.Fatalf("want multiple chunks for a long document, got %d", count)
	}
	if m.Store().Count() != count {
		t.Errorf("store count %d disagrees with ingest count %d", m.Store().Count(), count)
	}

	results, err := m.Query(ctx, "recovery practice", QueryOptions{TopN: 3, Lambda: 1, MinScore: -1})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(results) != 3 {
		t.Errorf("want 3 results, got %d", len(results))
	}
}
