// Package chunker splits raw document text into bounded, overlapping chunks
// suitable for embedding. Splitting is deterministic and stateless: the same
// input always produces the same chunks, and the chunks cover the input with
// no characters dropped.
package chunker

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidConfig is returned when the chunking parameters are unusable,
// e.g. a non-positive chunk size or an overlap as large as the chunk size.
var ErrInvalidConfig = errors.New("chunker: invalid config")

// DefaultChunkSize is the default maximum chunk length in runes.
const DefaultChunkSize = 700

// DefaultOverlap is the default number of runes shared between consecutive chunks.
const DefaultOverlap = 120

// boundaryFloor is the fraction of a window below which a sentence or
// paragraph boundary is rejected and a hard cut is used instead, so boundary
// splitting never produces degenerately short chunks.
const boundaryFloor = 0.6

// Split divides text into chunks of at most maxLen runes, each consecutive
// pair sharing overlap runes. Leading and trailing whitespace is stripped
// before splitting. Split points prefer the last sentence period or
// newline in the window; when no boundary falls in the final 40% of the
// window the chunk is cut hard at maxLen. The final chunk may be shorter
// than maxLen.
//
// Trimming the first overlap runes from every chunk after the first and
// concatenating the results reconstructs the stripped text exactly. Empty
// or whitespace-only input yields no chunks.
func Split(text string, maxLen, overlap int) ([]string, error) {
	if maxLen <= 0 {
		return nil, fmt.Errorf("%w: max length %d must be positive", ErrInvalidConfig, maxLen)
	}
	if overlap < 0 || overlap >= maxLen {
		return nil, fmt.Errorf("%w: overlap %d must be in [0, %d)", ErrInvalidConfig, overlap, maxLen)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}

	runes := []rune(text)
	if len(runes) <= maxLen {
		return []string{text}, nil
	}

	var chunks []string
	start := 0
	for start < len(runes) {
		end := min(start+maxLen, len(runes))
		window := runes[start:end]

		cut := len(window)
		if end < len(runes) {
			if b := lastBoundary(window); b > overlap && float64(b) >= boundaryFloor*float64(len(window)) {
				cut = b
			}
		}

		chunks = append(chunks, string(window[:cut]))
		if start+cut >= len(runes) {
			break
		}
		start += cut - overlap
	}
	return chunks, nil
}

// lastBoundary returns the cut position just past the last sentence period or
// newline in window, or 0 if the window contains neither.
func lastBoundary(window []rune) int {
	for i := len(window) - 1; i >= 0; i-- {
		if window[i] == '.' || window[i] == '\n' {
			return i + 1
		}
	}
	return 0
}
