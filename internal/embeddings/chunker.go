package embeddings

import "strings"

// Chunker splits extracted text into overlapping windows sized for the
// embedding model.
type Chunker struct {
	ChunkSize int
	Overlap   int
	MaxChunks int
}

// NewChunker applies defaults for any non-positive setting.
func NewChunker(size, overlap, maxChunks int) Chunker {
	if size <= 0 {
		size = 1000
	}
	if overlap < 0 || overlap >= size {
		overlap = 200
		if overlap >= size {
			overlap = size / 5
		}
	}
	if maxChunks <= 0 {
		maxChunks = 500
	}
	return Chunker{ChunkSize: size, Overlap: overlap, MaxChunks: maxChunks}
}

// Split breaks text into chunks. Chunk boundaries prefer a paragraph break,
// then a sentence break, within the window. Output is capped at MaxChunks;
// text past the cap is dropped.
func (c Chunker) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if len(text) <= c.ChunkSize {
		return []string{text}
	}

	var chunks []string
	start := 0
	for start < len(text) {
		end := start + c.ChunkSize
		if end < len(text) {
			if p := strings.LastIndex(text[start:end], "\n\n"); p > 0 {
				end = start + p
			} else if s := strings.LastIndex(text[start:end], ". "); s > 0 {
				end = start + s + 1
			}
		} else {
			end = len(text)
		}

		if chunk := strings.TrimSpace(text[start:end]); chunk != "" {
			chunks = append(chunks, chunk)
			if len(chunks) >= c.MaxChunks {
				break
			}
		}
		if end >= len(text) {
			break
		}
		// A break inside the overlap region would move the next window
		// backwards; give up the overlap there and continue from the break.
		if next := end - c.Overlap; next > start {
			start = next
		} else {
			start = end
		}
	}
	return chunks
}

// EstimateTokens gives a rough token count for budgeting. Whitespace-split
// word count is close enough for per-chunk accounting.
func EstimateTokens(chunk string) int {
	return len(strings.Fields(chunk))
}
