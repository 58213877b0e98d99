package review

import (
	"context"
	"errors"

	"library-backend/internal/processing"
	"library-backend/internal/workflow"
)

var ErrInvalidInput = errors.New("invalid input")

// Service drives the human review workflow. Every state change goes through
// the workflow engine; this layer only adds queue listing and input checks.
type Service struct {
	Repo   processing.Repo
	Engine *workflow.Engine
}

// NewService constructs a Service.
func NewService(repo processing.Repo, engine *workflow.Engine) *Service {
	return &Service{Repo: repo, Engine: engine}
}

// QueueItem is one file awaiting or under review.
type QueueItem struct {
	File processing.File
}

// Queue returns files waiting for review, oldest first, followed by files
// currently under review.
func (s *Service) Queue(ctx context.Context, limit, offset int) ([]processing.File, error) {
	pending, err := s.Repo.ListFilesByStatus(ctx, workflow.StatusReviewPending, limit, offset)
	if err != nil {
		return nil, err
	}
	inProgress, err := s.Repo.ListFilesByStatus(ctx, workflow.StatusUnderReview, limit, 0)
	if err != nil {
		return nil, err
	}
	return append(pending, inProgress...), nil
}

// Start claims a pending file for a reviewer.
func (s *Service) Start(ctx context.Context, fileID, reviewerID string) (processing.File, error) {
	if reviewerID == "" {
		return processing.File{}, ErrInvalidInput
	}
	if _, err := s.Engine.Transition(ctx, fileID, workflow.Event{
		Type:       workflow.EventReviewStarted,
		ReviewerID: reviewerID,
	}); err != nil {
		return processing.File{}, err
	}
	return s.Repo.GetFile(ctx, fileID)
}

// Return puts an under-review file back into the queue without a verdict.
// Metadata edits already persisted stay in place.
func (s *Service) Return(ctx context.Context, fileID string) (processing.File, error) {
	if _, err := s.Engine.Transition(ctx, fileID, workflow.Event{
		Type: workflow.EventReviewReturned,
	}); err != nil {
		return processing.File{}, err
	}
	return s.Repo.GetFile(ctx, fileID)
}

// Approve finalizes review with approval: the file closes out and its
// document becomes part of the active library.
func (s *Service) Approve(ctx context.Context, fileID, reviewerID, notes string) (processing.File, error) {
	if reviewerID == "" {
		return processing.File{}, ErrInvalidInput
	}
	if _, err := s.Engine.Transition(ctx, fileID, workflow.Event{
		Type:        workflow.EventApproved,
		ReviewerID:  reviewerID,
		ReviewNotes: notes,
	}); err != nil {
		return processing.File{}, err
	}
	return s.Repo.GetFile(ctx, fileID)
}

// Reject finalizes review with rejection: the document row is retained but
// excluded from the library.
func (s *Service) Reject(ctx context.Context, fileID, reviewerID, notes string) (processing.File, error) {
	if reviewerID == "" {
		return processing.File{}, ErrInvalidInput
	}
	if _, err := s.Engine.Transition(ctx, fileID, workflow.Event{
		Type:        workflow.EventRejected,
		ReviewerID:  reviewerID,
		ReviewNotes: notes,
	}); err != nil {
		return processing.File{}, err
	}
	return s.Repo.GetFile(ctx, fileID)
}
