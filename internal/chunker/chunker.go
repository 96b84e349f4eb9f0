// Package chunker splits raw document text into bounded-size retrievable
// segments along natural language boundaries.
//
// Splitting walks a priority-ordered list of separators (paragraph break,
// line break, sentence terminators, clause separators, space) and
// accumulates parts into chunks of at most chunkSize bytes. A part that
// exceeds the limit on its own is re-split at the next separator level;
// when no separator remains it is hard-sliced into fixed windows stepping
// chunkSize-overlap, which is the only place adjacent chunks share
// characters.
//
// Lengths are measured in bytes. overlap must be smaller than chunkSize;
// behavior is undefined otherwise.
package chunker

import "strings"

// DocType identifies the source document format.
type DocType string

// Supported document formats.
const (
	TypeText DocType = "txt"
	TypeHTML DocType = "html"
)

// Chunk is one indexed unit of a source document. Immutable once created;
// identity is (Source, Index).
type Chunk struct {
	Text        string
	Source      string
	DocType     DocType
	Index       int
	TotalChunks int
	CharCount   int
}

// separators in priority order. Earlier entries produce more natural
// boundaries; later ones are fallbacks for long unbroken runs.
var separators = []string{"\n\n", "\n", ". ", "! ", "? ", "; ", ", ", " "}

// Split splits text into chunks of at most chunkSize bytes.
//
// Text that already fits is returned as a single trimmed chunk; empty or
// whitespace-only input yields no chunks.
func Split(text string, chunkSize, overlap int) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if len(text) <= chunkSize {
		return []string{strings.TrimSpace(text)}
	}

	chunks := splitRecursive(text, separators, chunkSize, overlap)

	out := chunks[:0]
	for _, c := range chunks {
		if strings.TrimSpace(c) != "" {
			out = append(out, c)
		}
	}
	return out
}

// splitRecursive splits text at the first separator present in it,
// descending to later separators for oversized parts.
func splitRecursive(text string, seps []string, chunkSize, overlap int) []string {
	if text == "" {
		return nil
	}
	if len(text) <= chunkSize {
		return []string{text}
	}

	for si, sep := range seps {
		if !strings.Contains(text, sep) {
			continue
		}

		parts := strings.Split(text, sep)
		var result []string
		var current string

		for pi, part := range parts {
			withSep := part
			if pi < len(parts)-1 {
				withSep += sep
			}

			if len(current)+len(withSep) <= chunkSize {
				current += withSep
				continue
			}

			if current != "" {
				result = append(result, strings.TrimSpace(current))
			}

			if len(withSep) > chunkSize {
				if si+1 < len(seps) {
					result = append(result, splitRecursive(withSep, seps[si+1:], chunkSize, overlap)...)
				} else {
					result = append(result, hardSlice(withSep, chunkSize, overlap)...)
				}
				current = ""
			} else {
				current = withSep
			}
		}

		if current != "" {
			result = append(result, strings.TrimSpace(current))
		}
		return result
	}

	// No separator present at all: one unbroken run.
	return hardSlice(text, chunkSize, overlap)
}

// hardSlice cuts text into fixed windows of chunkSize bytes, stepping
// chunkSize-overlap so consecutive windows share overlap bytes.
func hardSlice(text string, chunkSize, overlap int) []string {
	step := chunkSize - overlap
	var out []string
	for i := 0; i < len(text); i += step {
		end := i + chunkSize
		if end > len(text) {
			end = len(text)
		}
		out = append(out, text[i:end])
	}
	return out
}

// WithMetadata splits text and wraps each chunk with its position metadata
// alongside the caller-supplied source and document type.
func WithMetadata(text string, chunkSize, overlap int, source string, docType DocType) []Chunk {
	parts := Split(text, chunkSize, overlap)

	chunks := make([]Chunk, len(parts))
	for i, p := range parts {
		chunks[i] = Chunk{
			Text:        p,
			Source:      source,
			DocType:     docType,
			Index:       i,
			TotalChunks: len(parts),
			CharCount:   len(p),
		}
	}
	return chunks
}
