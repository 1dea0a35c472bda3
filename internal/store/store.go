// Package store provides the durable embedding store for the corpus: a
// row-major float32 matrix of embeddings plus a parallel metadata list, both
// persisted under a single directory and replaced atomically on every write.
//
// The store is single-writer, many-reader. Appends and rebuilds are
// serialized behind an in-process mutex and a cross-process file lock;
// readers obtain an immutable point-in-time Snapshot that a concurrent write
// can never mutate.
package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
)

// Store error taxonomy. Callers match with errors.Is.
var (
	// ErrDimensionMismatch is returned when an appended embedding's length
	// differs from the store's fixed dimension.
	ErrDimensionMismatch = errors.New("store: embedding dimension mismatch")

	// ErrDuplicateChunkID is returned when an appended chunk's id is already
	// present in the store or repeated within the batch.
	ErrDuplicateChunkID = errors.New("store: duplicate chunk id")

	// ErrCorrupt is returned when the on-disk artifacts violate a store
	// invariant (row count vs metadata length, malformed files, manifest
	// disagreement).
	ErrCorrupt = errors.New("store: corrupt")
)

// Chunk is one embeddable unit of text with its provenance and caller-defined
// metadata. The chunk's embedding lives in the store matrix at the row
// matching the chunk's position in the metadata list.
type Chunk struct {
	// ID uniquely identifies the chunk across the store ("docID#index").
	ID string `json:"id"`

	// DocID identifies the source document the chunk was cut from.
	DocID string `json:"doc_id"`

	// Title is the human-readable title of the source document.
	Title string `json:"title,omitempty"`

	// Text is the chunk's raw text content.
	Text string `json:"text"`

	// ChunkIndex is the chunk's position within its source document.
	ChunkIndex int `json:"chunk_index"`

	// Extra holds caller-defined key-value metadata.
	Extra map[string]string `json:"extra,omitempty"`
}

// clone returns a deep copy of the chunk so snapshots never share mutable
// state with the store.
func (c Chunk) clone() Chunk {
	out := c
	if c.Extra != nil {
		out.Extra = make(map[string]string, len(c.Extra))
		for k, v := range c.Extra {
			out.Extra[k] = v
		}
	}
	return out
}

// Snapshot is an immutable point-in-time view of the store. Vectors[i] is the
// embedding of Chunks[i]. A snapshot is safe to read while writers append.
type Snapshot struct {
	// Vectors is the (N, D) embedding matrix, one row per chunk.
	Vectors [][]float32

	// Chunks is the metadata list parallel to Vectors.
	Chunks []Chunk
}

// Count returns the number of rows in the snapshot.
func (s *Snapshot) Count() int { return len(s.Chunks) }

// Dim returns the embedding dimension, or 0 for an empty snapshot.
func (s *Snapshot) Dim() int {
	if len(s.Vectors) == 0 {
		return 0
	}
	return len(s.Vectors[0])
}

// EmbeddingStore owns the embedding matrix and metadata for one corpus
// directory. All access to the matrix goes through Append/Rebuild/Load;
// nothing else mutates it.
type EmbeddingStore struct {
	// dir is the store directory holding all persisted artifacts.
	dir string

	// model is the embedding model label recorded in the manifest.
	model string

	// fileLock serializes writers across processes sharing the directory.
	// It is only acquired while mu is held exclusively, so within one
	// process exactly one goroutine owns the OS lock at a time.
	fileLock *flock.Flock

	// mu guards the in-memory state below. Writers take it exclusively for
	// the duration of matrix mutation and file replacement only.
	mu sync.RWMutex

	// dim is the embedding dimension, fixed by the first append.
	dim int

	// vectors is the in-memory (N, D) matrix.
	vectors [][]float32

	// chunks is the metadata list parallel to vectors.
	chunks []Chunk

	// ids indexes present chunk ids for duplicate rejection.
	ids map[string]struct{}
}

// Open opens (or initializes) an EmbeddingStore rooted at dir. The model
// label is recorded in the store manifest on every save and may be empty.
// A missing or empty directory opens as an empty store; malformed artifacts
// fail with ErrCorrupt.
func Open(dir, model string) (*EmbeddingStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("store: directory must not be empty")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("store: create %s: %w", dir, err)
	}

	s := &EmbeddingStore{
		dir:      dir,
		model:    model,
		fileLock: flock.New(filepath.Join(dir, lockFile)),
		ids:      make(map[string]struct{}),
	}
	if err := s.read(); err != nil {
		return nil, err
	}
	return s, nil
}

// Dir returns the store directory.
func (s *EmbeddingStore) Dir() string { return s.dir }

// Count returns the current number of stored chunks.
func (s *EmbeddingStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks)
}

// Dim returns the store's embedding dimension, or 0 if the store is empty
// and the dimension has not been fixed yet.
func (s *EmbeddingStore) Dim() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dim
}

// Load returns an immutable snapshot of the current store contents. The
// snapshot shares nothing with the store's internal state, so concurrent
// appends never mutate a snapshot a reader is iterating.
func (s *EmbeddingStore) Load() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := &Snapshot{
		Vectors: make([][]float32, len(s.vectors)),
		Chunks:  make([]Chunk, len(s.chunks)),
	}
	for i, v := range s.vectors {
		row := make([]float32, len(v))
		copy(row, v)
		snap.Vectors[i] = row
	}
	for i, c := range s.chunks {
		snap.Chunks[i] = c.clone()
	}
	return snap
}

// Append validates and adds a batch of chunks with their embeddings, then
// persists the full store atomically. The batch is all-or-nothing: any
// validation or persistence failure leaves both the in-memory state and the
// previously persisted files untouched.
//
// The first append to an empty store fixes the embedding dimension; every
// later embedding must match it or the append fails with
// ErrDimensionMismatch. Chunk ids already present, or repeated within the
// batch, fail with ErrDuplicateChunkID.
func (s *EmbeddingStore) Append(chunks []Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("store: %d chunks but %d vectors", len(chunks), len(vectors))
	}
	if len(chunks) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fileLock.Lock(); err != nil {
		return fmt.Errorf("store: acquire writer lock: %w", err)
	}
	defer func() { _ = s.fileLock.Unlock() }()

	dim := s.dim
	if dim == 0 {
		dim = len(vectors[0])
		if dim == 0 {
			return fmt.Errorf("%w: empty embedding", ErrDimensionMismatch)
		}
	}

	batch := make(map[string]struct{}, len(chunks))
	for i, c := range chunks {
		if c.ID == "" {
			return fmt.Errorf("store: chunk %d has empty id", i)
		}
		if _, ok := s.ids[c.ID]; ok {
			return fmt.Errorf("%w: %q", ErrDuplicateChunkID, c.ID)
		}
		if _, ok := batch[c.ID]; ok {
			return fmt.Errorf("%w: %q repeated in batch", ErrDuplicateChunkID, c.ID)
		}
		batch[c.ID] = struct{}{}
		if len(vectors[i]) != dim {
			return fmt.Errorf("%w: chunk %q has %d dimensions, store has %d", ErrDimensionMismatch, c.ID, len(vectors[i]), dim)
		}
	}

	// Copy the batch so the store never shares slices or Extra maps with the
	// caller; mutating the arguments after a successful append must not
	// reach the store's state.
	added := make([][]float32, len(vectors))
	for i, v := range vectors {
		row := make([]float32, len(v))
		copy(row, v)
		added[i] = row
	}
	addedChunks := make([]Chunk, len(chunks))
	for i, c := range chunks {
		addedChunks[i] = c.clone()
	}

	newVectors := append(s.vectors[:len(s.vectors):len(s.vectors)], added...)
	newChunks := append(s.chunks[:len(s.chunks):len(s.chunks)], addedChunks...)

	if err := s.persist(dim, newVectors, newChunks); err != nil {
		return err
	}

	s.dim = dim
	s.vectors = newVectors
	s.chunks = newChunks
	for id := range batch {
		s.ids[id] = struct{}{}
	}
	return nil
}

// Rebuild rewrites the store keeping only chunks for which keep returns
// true, atomically replacing the persisted files. It returns the number of
// chunks removed. Deletion and update semantics are built on Rebuild; rows
// are never edited in place.
func (s *EmbeddingStore) Rebuild(keep func(Chunk) bool) (int, error) {
	if keep == nil {
		return 0, fmt.Errorf("store: keep predicate must not be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fileLock.Lock(); err != nil {
		return 0, fmt.Errorf("store: acquire writer lock: %w", err)
	}
	defer func() { _ = s.fileLock.Unlock() }()

	keptVectors := make([][]float32, 0, len(s.vectors))
	keptChunks := make([]Chunk, 0, len(s.chunks))
	for i, c := range s.chunks {
		if keep(c) {
			keptVectors = append(keptVectors, s.vectors[i])
			keptChunks = append(keptChunks, c)
		}
	}
	removed := len(s.chunks) - len(keptChunks)
	if removed == 0 {
		return 0, nil
	}

	if err := s.persist(s.dim, keptVectors, keptChunks); err != nil {
		return 0, err
	}

	s.vectors = keptVectors
	s.chunks = keptChunks
	s.ids = make(map[string]struct{}, len(keptChunks))
	for _, c := range keptChunks {
		s.ids[c.ID] = struct{}{}
	}
	return removed, nil
}

// Clear removes every persisted artifact and resets the store to empty,
// including the fixed dimension. Destructive and not undoable.
func (s *EmbeddingStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fileLock.Lock(); err != nil {
		return fmt.Errorf("store: acquire writer lock: %w", err)
	}
	defer func() { _ = s.fileLock.Unlock() }()

	for _, name := range []string{vectorsFile, metadataFile, manifestFile} {
		p := filepath.Join(s.dir, name)
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("store: remove %s: %w", p, err)
		}
	}
	s.dim = 0
	s.vectors = nil
	s.chunks = nil
	s.ids = make(map[string]struct{})
	return nil
}
