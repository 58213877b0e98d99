package documents

import (
	"context"
	"time"
)

// DocumentsRepo defines persistence operations for documents and chunks.
type DocumentsRepo interface {
	Create(ctx context.Context, doc Document) error
	GetByID(ctx context.Context, documentID string) (Document, error)
	ListActive(ctx context.Context, filter ListFilter) ([]Document, error)
	ListByStatus(ctx context.Context, status string, limit, offset int) ([]Document, error)
	ExistsByHash(ctx context.Context, contentHash string) (bool, error)
	SetReviewOutcome(ctx context.Context, documentID, reviewerID, notes, status string, at time.Time) error
	SoftDelete(ctx context.Context, documentID string, at time.Time) error
	Archive(ctx context.Context, documentID string, at time.Time) error
	Stats(ctx context.Context) (Stats, error)

	CreateChunks(ctx context.Context, chunks []Chunk) error
	CountChunks(ctx context.Context, documentID string) (int, error)
}
