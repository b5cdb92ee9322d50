// Package chunker splits extracted document text into fixed-size overlapping
// windows for embedding.
package chunker

import (
	"fmt"
	"strings"
)

// Chunk is one window of the source text. Start is the rune offset into the
// normalized text; Index is the zero-based position of the chunk within its
// document.
type Chunk struct {
	Index int
	Start int
	Text  string
}

type Chunker struct {
	size    int
	overlap int
}

// New returns a Chunker with the given window size and overlap, both in
// runes. Overlap must be non-negative and strictly smaller than size.
func New(size, overlap int) (*Chunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("overlap must satisfy 0 <= overlap < size, got %d/%d", overlap, size)
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

// Split produces consecutive windows starting at offsets 0, size-overlap,
// 2*(size-overlap) and so on. The last window may be shorter than size.
// Text that is empty or whitespace-only yields no chunks. Splitting is
// deterministic: the same input always yields the same chunks.
func (c *Chunker) Split(text string) []Chunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	runes := []rune(text)
	step := c.size - c.overlap

	var chunks []Chunk
	for start := 0; start < len(runes); start += step {
		end := start + c.size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, Chunk{
			Index: len(chunks),
			Start: start,
			Text:  string(runes[start:end]),
		})
		if end == len(runes) {
			break
		}
	}
	return chunks
}
