package chunker

import (
	"errors"
	"strings"
	"testing"
)

// reconstruct trims the leading overlap runes from every chunk after the
// first and concatenates the remainder, reversing the overlap applied by Split.
func reconstruct(chunks []string, overlap int) string {
	var b strings.Builder
	for i, c := range chunks {
		r := []rune(c)
		if i > 0 {
			r = r[overlap:]
		}
		b.WriteString(string(r))
	}
	return b.String()
}

func Test_Split_EmptyInput(t *testing.T) {
	t.Parallel()
	chunks, err := Split("", 100, 10)
	if err != nil {
		t.Fatalf("split empty: %v", err)
	}
	if len(chunks) != 0 {
		t.Errorf("want no chunks for empty input, got %d", len(chunks))
	}
}

func Test_Split_WhitespaceOnlyInput(t *testing.T) {
	t.Parallel()
	for _, text := range []string{"   ", "\n\n", " \t \n "} {
		chunks, err := Split(text, 100, 10)
		if err != nil {
			t.Fatalf("split %q: %v", text, err)
		}
		if len(chunks) != 0 {
			t.Errorf("want no chunks for whitespace-only input %q, got %d", text, len(chunks))
		}
	}
}

func Test_Split_StripsSurroundingWhitespace(t *testing.T) {
	t.Parallel()
	chunks, err := Split("  a short document.\n", 100, 10)
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	if len(chunks) != 1 || chunks[0] != "a short document." {
		t.Errorf("want single stripped chunk, got %v", chunks)
	}
}

func Test_Split_ShortInputSingleChunk(t *testing.T) {
	t.Parallel()
	text := "a short document."
	chunks, err := Split(text, 100, 10)
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	if len(chunks) != 1 || chunks[0] != text {
		t.Errorf("want single chunk %q, got %v", text, chunks)
	}
}

func Test_Split_InvalidConfig(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		maxLen  int
		overlap int
	}{
		{"zero max length", 0, 0},
		{"negative max length", -5, 0},
		{"negative overlap", 100, -1},
		{"overlap equals max length", 100, 100},
		{"overlap exceeds max length", 100, 150},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := Split("some text", tt.maxLen, tt.overlap); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("want ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func Test_Split_BoundsRespected(t *testing.T) {
	t.Parallel()
	text := strings.Repeat("the quick brown fox jumps over the lazy dog. ", 40)
	chunks, err := Split(text, 100, 20)
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	if len(chunks) < 2 {
		t.Fatalf("want multiple chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if n := len([]rune(c)); n > 100 {
			t.Errorf("chunk %d length %d exceeds max 100", i, n)
		}
	}
}

func Test_Split_PrefersSentenceBoundary(t *testing.T) {
	t.Parallel()
	// The period sits at 80% of the window, past the boundary floor, so the
	// first chunk should end exactly at it.
	text := strings.Repeat("x", 79) + "." + strings.Repeat("y", 120)
	chunks, err := Split(text, 100, 10)
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	if !strings.HasSuffix(chunks[0], ".") {
		t.Errorf("want first chunk to end at sentence boundary, got %q tail", chunks[0][len(chunks[0])-5:])
	}
}

func Test_Split_HardCutWhenBoundaryTooEarly(t *testing.T) {
	t.Parallel()
	// Only boundary is at 10% of the window — below the floor, so a hard cut
	// at maxLen is expected.
	text := strings.Repeat("a", 9) + "." + strings.Repeat("b", 300)
	chunks, err := Split(text, 100, 10)
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	if n := len([]rune(chunks[0])); n != 100 {
		t.Errorf("want hard cut at 100 runes, got %d", n)
	}
}

func Test_Split_NoBoundaryAtAll(t *testing.T) {
	t.Parallel()
	text := strings.Repeat("z", 250)
	chunks, err := Split(text, 100, 0)
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	if len(chunks) != 3 {
		t.Fatalf("want 3 chunks for 250 runes at 100/0, got %d", len(chunks))
	}
	if got := strings.Join(chunks, ""); got != text {
		t.Errorf("zero-overlap concatenation does not reconstruct input")
	}
}

func Test_Split_LosslessReconstruction(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		text    string
		maxLen  int
		overlap int
	}{
		{"sentences", strings.Repeat("one sentence here. another follows.\n", 50), 120, 30},
		{"no boundaries", strings.Repeat("abcdefghij", 100), 83, 17},
		{"paragraphs", strings.Repeat("para one\npara two\npara three\n", 60), 200, 50},
		{"unicode", strings.Repeat("héllo wörld. 日本語のテキスト。改行\n", 40), 90, 15},
		{"large overlap", strings.Repeat("w", 500), 50, 40},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			chunks, err := Split(tt.text, tt.maxLen, tt.overlap)
			if err != nil {
				t.Fatalf("split: %v", err)
			}
			want := strings.TrimSpace(tt.text)
			if got := reconstruct(chunks, tt.overlap); got != want {
				t.Errorf("reconstruction mismatch: want %d runes, got %d", len([]rune(want)), len([]rune(got)))
			}
		})
	}
}

func Test_Split_Deterministic(t *testing.T) {
	t.Parallel()
	text := strings.Repeat("determinism matters for testing. ", 30)
	a, err := Split(text, 150, 25)
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	b, err := Split(text, 150, 25)
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	if len(a) != len(b) {
		t.Fatalf("non-deterministic chunk count: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Errorf("chunk %d differs between runs", i)
		}
	}
}
