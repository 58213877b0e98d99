package llm

import (
	"context"
	"errors"

	"library-backend/internal/workflow"
)

// Client abstracts LLM providers for document metadata extraction.
type Client interface {
	ExtractMetadata(ctx context.Context, input MetadataInput) (workflow.Metadata, error)
}

// MetadataInput captures what the extraction prompt needs.
type MetadataInput struct {
	Filename string
	Text     string
}

// ErrNotImplemented is returned by the placeholder client.
var ErrNotImplemented = errors.New("LLM not implemented")

// PlaceholderClient is a stub implementation until provider wiring is added.
type PlaceholderClient struct{}

// ExtractMetadata returns ErrNotImplemented.
func (PlaceholderClient) ExtractMetadata(ctx context.Context, input MetadataInput) (workflow.Metadata, error) {
	_ = ctx
	_ = input
	return workflow.Metadata{}, ErrNotImplemented
}
