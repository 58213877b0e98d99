package review

import (
	"context"
	"errors"
	"testing"
	"time"

	"library-backend/internal/documents"
	"library-backend/internal/processing"
	"library-backend/internal/workflow"
)

type fixture struct {
	repo     *processing.MemoryRepo
	docsRepo *documents.MemoryRepo
	svc      *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo := processing.NewMemoryRepo()
	docsRepo := documents.NewMemoryRepo()
	docs := documents.NewService(docsRepo)
	engine := workflow.NewEngine(&processing.Store{Repo: repo}, docs)
	return &fixture{repo: repo, docsRepo: docsRepo, svc: NewService(repo, engine)}
}

// seedReviewFile plants a file that has finished the automated pipeline and
// its pending library document.
func (f *fixture) seedReviewFile(t *testing.T, fileID, docID string, at time.Time) {
	t.Helper()
	ctx := context.Background()

	batchID := "batch-" + fileID
	if err := f.repo.CreateBatch(ctx, processing.Batch{
		ID:         batchID,
		Status:     workflow.BatchReviewReady,
		TotalFiles: 1,
		CreatedBy:  "user-1",
		CreatedAt:  at,
		UpdatedAt:  at,
	}); err != nil {
		t.Fatalf("seed batch: %v", err)
	}
	if err := f.repo.CreateFile(ctx, processing.File{
		ID:               fileID,
		BatchID:          batchID,
		DocumentID:       docID,
		Status:           workflow.StatusReviewPending,
		OriginalFilename: fileID + ".pdf",
		UploadedBy:       "user-1",
		CreatedAt:        at,
		UpdatedAt:        at,
	}); err != nil {
		t.Fatalf("seed file: %v", err)
	}
	if err := f.docsRepo.Create(ctx, documents.Document{
		ID:           docID,
		SourceFileID: fileID,
		Title:        "Seeded " + fileID,
		DocType:      "article",
		DocCategory:  "WD",
		Status:       documents.StatusReviewPending,
		CreatedAt:    at,
		UpdatedAt:    at,
	}); err != nil {
		t.Fatalf("seed document: %v", err)
	}
}

func TestQueueListsPendingThenClaimed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	base := time.Now().UTC()

	f.seedReviewFile(t, "file-1", "doc-1", base)
	f.seedReviewFile(t, "file-2", "doc-2", base.Add(time.Second))
	if _, err := f.svc.Start(ctx, "file-1", "reviewer-1"); err != nil {
		t.Fatalf("Start: %v", err)
	}

	queue, err := f.svc.Queue(ctx, 20, 0)
	if err != nil {
		t.Fatalf("Queue: %v", err)
	}
	if len(queue) != 2 {
		t.Fatalf("expected 2 queue items, got %d", len(queue))
	}
	if queue[0].ID != "file-2" || queue[0].Status != workflow.StatusReviewPending {
		t.Fatalf("expected pending file first, got %+v", queue[0])
	}
	if queue[1].ID != "file-1" || queue[1].Status != workflow.StatusUnderReview {
		t.Fatalf("expected claimed file last, got %+v", queue[1])
	}
}

func TestStartClaimsFile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedReviewFile(t, "file-1", "doc-1", time.Now().UTC())

	file, err := f.svc.Start(ctx, "file-1", "reviewer-1")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if file.Status != workflow.StatusUnderReview {
		t.Fatalf("expected under_review, got %q", file.Status)
	}
	if file.ReviewedBy != "reviewer-1" {
		t.Fatalf("expected claim by reviewer-1, got %q", file.ReviewedBy)
	}

	// A second claim must lose.
	if _, err := f.svc.Start(ctx, "file-1", "reviewer-2"); !errors.Is(err, workflow.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestStartRequiresReviewer(t *testing.T) {
	f := newFixture(t)
	f.seedReviewFile(t, "file-1", "doc-1", time.Now().UTC())

	if _, err := f.svc.Start(context.Background(), "file-1", ""); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestReturnReleasesClaim(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedReviewFile(t, "file-1", "doc-1", time.Now().UTC())

	if _, err := f.svc.Start(ctx, "file-1", "reviewer-1"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	file, err := f.svc.Return(ctx, "file-1")
	if err != nil {
		t.Fatalf("Return: %v", err)
	}
	if file.Status != workflow.StatusReviewPending {
		t.Fatalf("expected review_pending, got %q", file.Status)
	}
	if file.ReviewedBy != "" {
		t.Fatalf("expected claim released, still held by %q", file.ReviewedBy)
	}
}

func TestApproveActivatesDocument(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedReviewFile(t, "file-1", "doc-1", time.Now().UTC())

	if _, err := f.svc.Start(ctx, "file-1", "reviewer-1"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	file, err := f.svc.Approve(ctx, "file-1", "reviewer-1", "citation verified")
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if file.Status != workflow.StatusApproved {
		t.Fatalf("expected approved, got %q", file.Status)
	}
	if file.ReviewNotes != "citation verified" {
		t.Fatalf("expected notes recorded, got %q", file.ReviewNotes)
	}

	doc, err := f.docsRepo.GetByID(ctx, "doc-1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if doc.Status != documents.StatusActive || !doc.IsReviewed {
		t.Fatalf("expected active reviewed document, got %+v", doc)
	}
	if doc.ReviewedBy != "reviewer-1" {
		t.Fatalf("expected reviewer recorded, got %q", doc.ReviewedBy)
	}

	batch, err := f.repo.GetBatch(ctx, file.BatchID)
	if err != nil {
		t.Fatalf("GetBatch: %v", err)
	}
	if batch.Status != workflow.BatchCompleted {
		t.Fatalf("expected completed batch, got %q", batch.Status)
	}
}

func TestRejectKeepsDocumentOutOfLibrary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedReviewFile(t, "file-1", "doc-1", time.Now().UTC())

	if _, err := f.svc.Start(ctx, "file-1", "reviewer-1"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	file, err := f.svc.Reject(ctx, "file-1", "reviewer-1", "not relevant")
	if err != nil {
		t.Fatalf("Reject: %v", err)
	}
	if file.Status != workflow.StatusRejected {
		t.Fatalf("expected rejected, got %q", file.Status)
	}

	doc, err := f.docsRepo.GetByID(ctx, "doc-1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if doc.Status != documents.StatusRejected {
		t.Fatalf("expected rejected document, got %q", doc.Status)
	}

	active, err := f.docsRepo.ListActive(ctx, documents.ListFilter{})
	if err != nil {
		t.Fatalf("ListActive: %v", err)
	}
	if len(active) != 0 {
		t.Fatalf("rejected document leaked into the library: %+v", active)
	}
}

func TestVerdictOnUnclaimedFileFails(t *testing.T) {
	f := newFixture(t)
	f.seedReviewFile(t, "file-1", "doc-1", time.Now().UTC())

	if _, err := f.svc.Approve(context.Background(), "file-1", "reviewer-1", ""); !errors.Is(err, workflow.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}
