package embeddings

import (
	"context"
	"errors"
)

// Embedder turns text chunks into dense vectors.
type Embedder interface {
	// Embed returns one vector per input, in input order.
	Embed(ctx context.Context, inputs []string) ([][]float32, error)
}

// ErrCountMismatch is returned when the provider answers with a different
// number of vectors than inputs.
var ErrCountMismatch = errors.New("embeddings: vector count does not match input count")

// Chunk pairs a text window with its embedding.
type Chunk struct {
	Index         int
	Content       string
	Embedding     []float32
	TokenEstimate int
}

// EmbedChunks splits text and embeds every chunk. The returned slice is
// indexed in document order.
func EmbedChunks(ctx context.Context, chunker Chunker, embedder Embedder, text string) ([]Chunk, error) {
	parts := chunker.Split(text)
	if len(parts) == 0 {
		return nil, nil
	}
	vectors, err := embedder.Embed(ctx, parts)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(parts) {
		return nil, ErrCountMismatch
	}
	chunks := make([]Chunk, len(parts))
	for i, content := range parts {
		chunks[i] = Chunk{
			Index:         i,
			Content:       content,
			Embedding:     vectors[i],
			TokenEstimate: EstimateTokens(content),
		}
	}
	return chunks, nil
}
