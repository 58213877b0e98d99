package processing

import (
	"context"
	"sort"
	"sync"
	"time"

	"library-backend/internal/workflow"
)

// MemoryRepo is an in-memory implementation of Repo for dev and tests.
type MemoryRepo struct {
	mu      sync.RWMutex
	batches map[string]*Batch
	files   map[string]*File
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		batches: make(map[string]*Batch),
		files:   make(map[string]*File),
	}
}

func (r *MemoryRepo) CreateBatch(ctx context.Context, batch Batch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := batch
	r.batches[batch.ID] = &stored
	return nil
}

func (r *MemoryRepo) GetBatch(ctx context.Context, batchID string) (Batch, error) {
	if err := ctx.Err(); err != nil {
		return Batch{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	batch, ok := r.batches[batchID]
	if !ok {
		return Batch{}, ErrNotFound
	}
	return *batch, nil
}

func (r *MemoryRepo) ListBatches(ctx context.Context, createdBy string, limit, offset int) ([]Batch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	var out []Batch
	for _, batch := range r.batches {
		if createdBy == "" || batch.CreatedBy == createdBy {
			out = append(out, *batch)
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if offset < 0 {
		offset = 0
	}
	if offset >= len(out) {
		return []Batch{}, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryRepo) SetBatchStatus(ctx context.Context, batchID string, status workflow.BatchStatus, counts workflow.BatchCounts, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	batch, ok := r.batches[batchID]
	if !ok {
		return ErrNotFound
	}
	if batch.Status == workflow.BatchCancelled {
		return nil
	}
	batch.Status = status
	batch.ProcessedFiles = counts.Processed
	batch.CompletedFiles = counts.Completed
	batch.FailedFiles = counts.Failed
	batch.UpdatedAt = at
	switch status {
	case workflow.BatchCompleted, workflow.BatchPartiallyCompleted, workflow.BatchReviewComplete, workflow.BatchFailed:
		if batch.CompletedAt == nil {
			done := at
			batch.CompletedAt = &done
		}
	}
	return nil
}

func (r *MemoryRepo) SetBatchError(ctx context.Context, batchID, message string, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	batch, ok := r.batches[batchID]
	if !ok {
		return ErrNotFound
	}
	batch.ErrorMessage = message
	batch.UpdatedAt = at
	return nil
}

func (r *MemoryRepo) CreateFile(ctx context.Context, file File) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := file
	r.files[file.ID] = &stored
	return nil
}

func (r *MemoryRepo) GetFile(ctx context.Context, fileID string) (File, error) {
	if err := ctx.Err(); err != nil {
		return File{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	file, ok := r.files[fileID]
	if !ok {
		return File{}, workflow.ErrFileNotFound
	}
	return *file, nil
}

func (r *MemoryRepo) ListFilesByBatch(ctx context.Context, batchID string) ([]File, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	var out []File
	for _, file := range r.files {
		if file.BatchID == batchID {
			out = append(out, *file)
		}
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (r *MemoryRepo) ListFilesByStatus(ctx context.Context, status workflow.FileStatus, limit, offset int) ([]File, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	var out []File
	for _, file := range r.files {
		if file.Status == status {
			out = append(out, *file)
		}
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if offset < 0 {
		offset = 0
	}
	if offset >= len(out) {
		return []File{}, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryRepo) ListStatusesByBatch(ctx context.Context, batchID string) ([]workflow.FileStatus, error) {
	files, err := r.ListFilesByBatch(ctx, batchID)
	if err != nil {
		return nil, err
	}
	out := make([]workflow.FileStatus, 0, len(files))
	for _, file := range files {
		out = append(out, file.Status)
	}
	return out, nil
}

func (r *MemoryRepo) ApplyTransition(ctx context.Context, update workflow.TransitionUpdate) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	file, ok := r.files[update.FileID]
	if !ok {
		return workflow.ErrFileNotFound
	}
	if file.Status != update.From {
		return workflow.ErrStaleTransition
	}

	file.Status = update.To
	file.UpdatedAt = update.At
	if update.RetryCount != nil {
		file.RetryCount = *update.RetryCount
	}
	if update.NextRetryAt != nil {
		at := *update.NextRetryAt
		file.NextRetryAt = &at
	}
	if update.LastRetryAt != nil {
		at := *update.LastRetryAt
		file.LastRetryAt = &at
	}
	if update.ErrorMessage != nil {
		file.ErrorMessage = *update.ErrorMessage
	}
	if update.Stats != nil {
		file.WordCount = update.Stats.WordCount
		file.PageCount = update.Stats.PageCount
		file.CharCount = update.Stats.CharCount
	}
	if update.Metadata != nil {
		meta := *update.Metadata
		file.Metadata = &meta
	}
	if update.ChunkCount != nil {
		file.ChunkCount = *update.ChunkCount
	}
	if update.ReviewerID != nil {
		file.ReviewedBy = *update.ReviewerID
	}
	if update.ClearReviewer {
		file.ReviewedBy = ""
	}
	if update.ReviewedAt != nil {
		at := *update.ReviewedAt
		file.ReviewedAt = &at
	}
	if update.ReviewNotes != nil {
		file.ReviewNotes = *update.ReviewNotes
	}
	return nil
}

func (r *MemoryRepo) LinkDocument(ctx context.Context, fileID, documentID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	file, ok := r.files[fileID]
	if !ok {
		return workflow.ErrFileNotFound
	}
	if file.DocumentID == "" {
		file.DocumentID = documentID
	}
	return nil
}

func (r *MemoryRepo) SetStoredObject(ctx context.Context, fileID, storedPath, contentHash string, size int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	file, ok := r.files[fileID]
	if !ok {
		return workflow.ErrFileNotFound
	}
	file.StoredPath = storedPath
	file.ContentHash = contentHash
	file.FileSize = size
	return nil
}

func (r *MemoryRepo) SetExtractedTextKey(ctx context.Context, fileID, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	file, ok := r.files[fileID]
	if !ok {
		return workflow.ErrFileNotFound
	}
	file.ExtractedTextKey = key
	return nil
}

func (r *MemoryRepo) FindActiveByHash(ctx context.Context, contentHash string) (File, error) {
	if err := ctx.Err(); err != nil {
		return File{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var found *File
	for _, file := range r.files {
		if file.ContentHash != contentHash {
			continue
		}
		switch file.Status {
		case workflow.StatusUploadFailed, workflow.StatusRejected, workflow.StatusDuplicate, workflow.StatusCancelled:
			continue
		}
		if found == nil || file.CreatedAt.Before(found.CreatedAt) {
			found = file
		}
	}
	if found == nil {
		return File{}, ErrNotFound
	}
	return *found, nil
}

func (r *MemoryRepo) ListRetryDue(ctx context.Context, now time.Time, limit int) ([]File, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	var out []File
	for _, file := range r.files {
		if file.Status == workflow.StatusRetryPending && file.NextRetryAt != nil && !file.NextRetryAt.After(now) {
			out = append(out, *file)
		}
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		return out[i].NextRetryAt.Before(*out[j].NextRetryAt)
	})
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

var _ Repo = (*MemoryRepo)(nil)
