package processing

import (
	"context"
	"time"

	"library-backend/internal/workflow"
)

// Store adapts a Repo to the workflow engine's persistence boundary.
type Store struct {
	Repo Repo
}

func (s *Store) GetFile(ctx context.Context, fileID string) (workflow.FileRecord, error) {
	file, err := s.Repo.GetFile(ctx, fileID)
	if err != nil {
		return workflow.FileRecord{}, err
	}
	return file.Record(), nil
}

func (s *Store) ApplyTransition(ctx context.Context, update workflow.TransitionUpdate) error {
	return s.Repo.ApplyTransition(ctx, update)
}

func (s *Store) LinkDocument(ctx context.Context, fileID, documentID string) error {
	return s.Repo.LinkDocument(ctx, fileID, documentID)
}

func (s *Store) ListStatusesByBatch(ctx context.Context, batchID string) ([]workflow.FileStatus, error) {
	return s.Repo.ListStatusesByBatch(ctx, batchID)
}

func (s *Store) SetBatchStatus(ctx context.Context, batchID string, status workflow.BatchStatus, counts workflow.BatchCounts, at time.Time) error {
	return s.Repo.SetBatchStatus(ctx, batchID, status, counts, at)
}

var _ workflow.FileStore = (*Store)(nil)
