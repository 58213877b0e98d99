package processing

import (
	"context"
	"time"

	"library-backend/internal/workflow"
)

// Repo defines persistence for batches and processing files. ApplyTransition
// must be a compare-and-set on the file's current status; everything the
// workflow engine needs goes through here.
type Repo interface {
	CreateBatch(ctx context.Context, batch Batch) error
	GetBatch(ctx context.Context, batchID string) (Batch, error)
	ListBatches(ctx context.Context, createdBy string, limit, offset int) ([]Batch, error)
	SetBatchStatus(ctx context.Context, batchID string, status workflow.BatchStatus, counts workflow.BatchCounts, at time.Time) error
	SetBatchError(ctx context.Context, batchID, message string, at time.Time) error

	CreateFile(ctx context.Context, file File) error
	GetFile(ctx context.Context, fileID string) (File, error)
	ListFilesByBatch(ctx context.Context, batchID string) ([]File, error)
	ListFilesByStatus(ctx context.Context, status workflow.FileStatus, limit, offset int) ([]File, error)
	ListStatusesByBatch(ctx context.Context, batchID string) ([]workflow.FileStatus, error)
	ApplyTransition(ctx context.Context, update workflow.TransitionUpdate) error
	LinkDocument(ctx context.Context, fileID, documentID string) error
	SetStoredObject(ctx context.Context, fileID, storedPath, contentHash string, size int64) error
	SetExtractedTextKey(ctx context.Context, fileID, key string) error
	FindActiveByHash(ctx context.Context, contentHash string) (File, error)
	ListRetryDue(ctx context.Context, now time.Time, limit int) ([]File, error)
}
