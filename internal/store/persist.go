package store

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"
)

// On-disk artifacts, all co-located in the store directory.
const (
	// vectorsFile holds the embedding matrix: a fixed header followed by
	// row-major little-endian float32 values.
	vectorsFile = "vectors.bin"

	// metadataFile holds the chunk metadata list as JSON, one record per
	// matrix row, in row order.
	metadataFile = "metadata.json"

	// manifestFile summarizes the store state (model, dim, count, updated_at).
	manifestFile = "manifest.json"

	// lockFile is the cross-process writer lock target. Never read or written,
	// only flocked.
	lockFile = ".writer.lock"
)

// Vectors file header (24 bytes):
//
//	0..7   magic "RAGVEC01"
//	8..15  dim   (uint64, little-endian)
//	16..23 count (uint64, little-endian)
const headerSize = 24

var vectorsMagic = [8]byte{'R', 'A', 'G', 'V', 'E', 'C', '0', '1'}

// manifest mirrors manifest.json. It is advisory: vectors and metadata are
// authoritative, but a manifest that disagrees with them marks corruption.
type manifest struct {
	// Model is the embedding model label the store was built with.
	Model string `json:"model"`
	// Dim is the embedding dimension.
	Dim int `json:"dim"`
	// Count is the number of stored chunks.
	Count int `json:"count"`
	// UpdatedAt is the RFC3339 UTC time of the last successful save.
	UpdatedAt string `json:"updated_at"`
}

// persist writes the full store state to disk. Every artifact is first
// staged as an fsynced temp file in the store directory; only when all
// three are staged are they renamed over the previous copies. A failure
// before the first rename leaves the prior files fully intact, so the
// window in which the files can disagree is just the rename sequence
// itself. The manifest is renamed last; its timestamp therefore marks a
// fully replaced store.
func (s *EmbeddingStore) persist(dim int, vectors [][]float32, chunks []Chunk) error {
	meta, err := json.MarshalIndent(chunks, "", "  ")
	if err != nil {
		return fmt.Errorf("store: marshal metadata: %w", err)
	}
	man, err := json.MarshalIndent(manifest{
		Model:     s.model,
		Dim:       dim,
		Count:     len(chunks),
		UpdatedAt: time.Now().UTC().Format(time.RFC3339),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("store: marshal manifest: %w", err)
	}

	artifacts := []struct {
		name string
		data []byte
	}{
		{vectorsFile, encodeVectors(dim, vectors)},
		{metadataFile, meta},
		{manifestFile, man},
	}

	tmps := make([]string, len(artifacts))
	defer func() {
		for _, tmp := range tmps {
			if tmp != "" {
				os.Remove(tmp) // no-op for temps that were renamed
			}
		}
	}()

	for i, a := range artifacts {
		tmp, err := stageFile(filepath.Join(s.dir, a.name), a.data)
		if err != nil {
			return fmt.Errorf("store: stage %s: %w", a.name, err)
		}
		tmps[i] = tmp
	}

	for i, a := range artifacts {
		if err := os.Rename(tmps[i], filepath.Join(s.dir, a.name)); err != nil {
			return fmt.Errorf("store: replace %s: %w", a.name, err)
		}
	}
	return nil
}

// read loads the persisted store into memory. A store with neither vectors
// nor metadata present loads as empty; anything malformed or internally
// inconsistent fails with ErrCorrupt.
func (s *EmbeddingStore) read() error {
	vecPath := filepath.Join(s.dir, vectorsFile)
	metaPath := filepath.Join(s.dir, metadataFile)

	vecData, vecErr := os.ReadFile(vecPath)
	metaData, metaErr := os.ReadFile(metaPath)

	if os.IsNotExist(vecErr) && os.IsNotExist(metaErr) {
		return nil
	}
	if vecErr != nil {
		return fmt.Errorf("%w: read %s: %v", ErrCorrupt, vecPath, vecErr)
	}
	if metaErr != nil {
		return fmt.Errorf("%w: read %s: %v", ErrCorrupt, metaPath, metaErr)
	}

	dim, vectors, err := decodeVectors(vecData)
	if err != nil {
		return err
	}

	var chunks []Chunk
	if err := json.Unmarshal(metaData, &chunks); err != nil {
		return fmt.Errorf("%w: parse %s: %v", ErrCorrupt, metaPath, err)
	}
	if len(chunks) != len(vectors) {
		return fmt.Errorf("%w: %d metadata records for %d matrix rows", ErrCorrupt, len(chunks), len(vectors))
	}

	if manData, err := os.ReadFile(filepath.Join(s.dir, manifestFile)); err == nil {
		var man manifest
		if err := json.Unmarshal(manData, &man); err != nil {
			return fmt.Errorf("%w: parse manifest: %v", ErrCorrupt, err)
		}
		if man.Dim != dim || man.Count != len(chunks) {
			return fmt.Errorf("%w: manifest says dim=%d count=%d, store has dim=%d count=%d",
				ErrCorrupt, man.Dim, man.Count, dim, len(chunks))
		}
	}

	ids := make(map[string]struct{}, len(chunks))
	for _, c := range chunks {
		if _, ok := ids[c.ID]; ok {
			return fmt.Errorf("%w: %v present twice in metadata", ErrCorrupt, c.ID)
		}
		ids[c.ID] = struct{}{}
	}

	s.dim = dim
	s.vectors = vectors
	s.chunks = chunks
	s.ids = ids
	return nil
}

// encodeVectors serializes the matrix to the vectors file layout.
func encodeVectors(dim int, vectors [][]float32) []byte {
	buf := make([]byte, headerSize+len(vectors)*dim*4)
	copy(buf[0:8], vectorsMagic[:])
	binary.LittleEndian.PutUint64(buf[8:16], uint64(dim))
	binary.LittleEndian.PutUint64(buf[16:24], uint64(len(vectors)))

	off := headerSize
	for _, row := range vectors {
		for _, v := range row {
			binary.LittleEndian.PutUint32(buf[off:off+4], math.Float32bits(v))
			off += 4
		}
	}
	return buf
}

// decodeVectors parses the vectors file layout back into a matrix.
func decodeVectors(data []byte) (int, [][]float32, error) {
	if len(data) < headerSize {
		return 0, nil, fmt.Errorf("%w: vectors file too small for header (%d bytes)", ErrCorrupt, len(data))
	}
	var magic [8]byte
	copy(magic[:], data[0:8])
	if magic != vectorsMagic {
		return 0, nil, fmt.Errorf("%w: vectors file magic mismatch", ErrCorrupt)
	}

	dim := binary.LittleEndian.Uint64(data[8:16])
	count := binary.LittleEndian.Uint64(data[16:24])
	if dim == 0 && count > 0 {
		return 0, nil, fmt.Errorf("%w: vectors file has rows but zero dimension", ErrCorrupt)
	}

	// Validate the header against the payload in uint64 space so a crafted
	// dim or count cannot overflow the size check and reach allocation.
	payload := uint64(len(data) - headerSize)
	if payload%4 != 0 {
		return 0, nil, fmt.Errorf("%w: vectors file payload is %d bytes, not a multiple of 4", ErrCorrupt, payload)
	}
	floats := payload / 4
	if dim == 0 {
		if floats != 0 {
			return 0, nil, fmt.Errorf("%w: vectors file has %d values but header says empty", ErrCorrupt, floats)
		}
	} else if floats%dim != 0 || floats/dim != count {
		return 0, nil, fmt.Errorf("%w: vectors file is %d bytes, header implies dim=%d count=%d", ErrCorrupt, len(data), dim, count)
	}

	vectors := make([][]float32, count)
	off := headerSize
	for i := range vectors {
		row := make([]float32, dim)
		for j := range row {
			row[j] = math.Float32frombits(binary.LittleEndian.Uint32(data[off : off+4]))
			off += 4
		}
		vectors[i] = row
	}
	return int(dim), vectors, nil
}

// stageFile writes data to an fsynced temp file next to path and returns the
// temp file's name. The caller renames it over path once every sibling
// artifact is staged; a reader never observes a partially written file.
func stageFile(path string, data []byte) (string, error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("write %s: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("sync %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("close %s: %w", tmpName, err)
	}
	return tmpName, nil
}
