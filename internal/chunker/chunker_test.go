package chunker

import (
	"strings"
	"testing"
)

func TestSplit(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		chunkSize int
		overlap   int
		want      []string
	}{
		{
			name:      "empty input yields no chunks",
			text:      "",
			chunkSize: 100,
			overlap:   20,
			want:      nil,
		},
		{
			name:      "whitespace-only input yields no chunks",
			text:      "   \n\t  \n  ",
			chunkSize: 100,
			overlap:   20,
			want:      nil,
		},
		{
			name:      "text within limit is a single trimmed chunk",
			text:      "  short text  ",
			chunkSize: 100,
			overlap:   20,
			want:      []string{"short text"},
		},
		{
			name:      "text exactly at the limit stays whole",
			text:      strings.Repeat("a", 100),
			chunkSize: 100,
			overlap:   20,
			want:      []string{strings.Repeat("a", 100)},
		},
		{
			name:      "paragraph break is preferred over sentence break",
			text:      "First paragraph here.\n\nSecond paragraph is also present.",
			chunkSize: 40,
			overlap:   5,
			want:      []string{"First paragraph here.", "Second paragraph is also present."},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Split(tt.text, tt.chunkSize, tt.overlap)
			if len(got) != len(tt.want) {
				t.Fatalf("Split() returned %d chunks, want %d: %q", len(got), len(tt.want), got)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("chunk %d = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestSplit_ChunkSizeBound(t *testing.T) {
	text := strings.Repeat("Sentence one is here. ", 100)

	for _, chunk := range Split(text, 120, 20) {
		if len(chunk) > 120 {
			t.Errorf("chunk length %d exceeds limit 120: %q", len(chunk), chunk)
		}
	}
}

func TestSplit_HardSliceOverlap(t *testing.T) {
	// 1200 bytes with no separator at all: windows start at 0, 400, 800.
	text := strings.Repeat("x", 1200)

	got := Split(text, 500, 100)

	wantLens := []int{500, 500, 400}
	if len(got) != len(wantLens) {
		t.Fatalf("got %d chunks, want %d", len(got), len(wantLens))
	}
	for i, chunk := range got {
		if len(chunk) != wantLens[i] {
			t.Errorf("chunk %d length = %d, want %d", i, len(chunk), wantLens[i])
		}
	}

	// Consecutive windows share exactly overlap bytes.
	for i := 1; i < len(got); i++ {
		prevTail := got[i-1][len(got[i-1])-100:]
		currHead := got[i][:100]
		if prevTail != currHead {
			t.Errorf("chunks %d and %d do not share a 100-byte overlap", i-1, i)
		}
	}
}

func TestSplit_HardSliceReconstruction(t *testing.T) {
	// Distinct content so dropping the overlap re-yields the original.
	var sb strings.Builder
	for sb.Len() < 1200 {
		sb.WriteByte(byte('a' + (sb.Len() % 26)))
	}
	text := sb.String()

	chunks := Split(text, 500, 100)
	if len(chunks) == 0 {
		t.Fatal("expected chunks")
	}

	rebuilt := chunks[0]
	for _, c := range chunks[1:] {
		rebuilt += c[100:]
	}
	if rebuilt != text {
		t.Error("dropping overlaps did not reconstruct the original text")
	}
}

func TestSplit_NoEmptyChunks(t *testing.T) {
	text := "one.\n\n\n\ntwo.\n\n\n\nthree." + strings.Repeat(" filler", 50)

	for i, chunk := range Split(text, 40, 10) {
		if strings.TrimSpace(chunk) == "" {
			t.Errorf("chunk %d is blank", i)
		}
	}
}

func TestWithMetadata(t *testing.T) {
	t.Run("annotates position and identity", func(t *testing.T) {
		text := strings.Repeat("a", 1200)

		chunks := WithMetadata(text, 500, 100, "guide.txt", TypeText)

		if len(chunks) != 3 {
			t.Fatalf("got %d chunks, want 3", len(chunks))
		}
		for i, c := range chunks {
			if c.Source != "guide.txt" {
				t.Errorf("chunk %d Source = %q, want %q", i, c.Source, "guide.txt")
			}
			if c.DocType != TypeText {
				t.Errorf("chunk %d DocType = %q, want %q", i, c.DocType, TypeText)
			}
			if c.Index != i {
				t.Errorf("chunk %d Index = %d", i, c.Index)
			}
			if c.TotalChunks != 3 {
				t.Errorf("chunk %d TotalChunks = %d, want 3", i, c.TotalChunks)
			}
			if c.CharCount != len(c.Text) {
				t.Errorf("chunk %d CharCount = %d, want %d", i, c.CharCount, len(c.Text))
			}
		}
	})

	t.Run("empty text yields no chunks", func(t *testing.T) {
		if got := WithMetadata("", 500, 100, "empty.txt", TypeText); len(got) != 0 {
			t.Errorf("got %d chunks, want 0", len(got))
		}
	})
}
