package documents

import (
	"context"
	"testing"
	"time"

	"library-backend/internal/workflow"
)

func TestCreateFromFileSeedsMetadata(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	docID, err := svc.CreateFromFile(context.Background(), workflow.FileRecord{
		ID:               "file-1",
		OriginalFilename: "brief.pdf",
		StoredPath:       "u/brief.pdf",
		MimeType:         "application/pdf",
		ContentHash:      "abc123",
		FileSize:         2048,
		WordCount:        120,
		PageCount:        4,
		CharCount:        900,
		ChunkCount:       2,
		UploadedBy:       "user-1",
		Metadata: &workflow.Metadata{
			Title:           "Lost Earnings in Wrongful Death Claims",
			Authors:         []string{"J. Rivera"},
			PublicationDate: "2021-06-01",
			DocType:         "article",
			DocCategory:     "WD",
			Keywords:        []string{"damages"},
			Confidence:      map[string]float64{"title": 0.92},
		},
	})
	if err != nil {
		t.Fatalf("CreateFromFile: %v", err)
	}

	doc, err := repo.GetByID(context.Background(), docID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if doc.Title != "Lost Earnings in Wrongful Death Claims" {
		t.Fatalf("unexpected title %q", doc.Title)
	}
	if doc.DocType != "article" || doc.DocCategory != "WD" {
		t.Fatalf("unexpected classification %q/%q", doc.DocType, doc.DocCategory)
	}
	if doc.Status != StatusReviewPending {
		t.Fatalf("expected review_pending, got %q", doc.Status)
	}
	if doc.SourceFileID != "file-1" || doc.ContentHash != "abc123" {
		t.Fatalf("source fields not carried over: %+v", doc)
	}
}

func TestCreateFromFileFallsBackToFilename(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	docID, err := svc.CreateFromFile(context.Background(), workflow.FileRecord{
		ID:               "file-1",
		OriginalFilename: "statute_excerpt.txt",
	})
	if err != nil {
		t.Fatalf("CreateFromFile: %v", err)
	}

	doc, err := repo.GetByID(context.Background(), docID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if doc.Title != "statute_excerpt.txt" {
		t.Fatalf("expected filename title, got %q", doc.Title)
	}
	if doc.DocType != "other" || doc.DocCategory != "Other" {
		t.Fatalf("expected default classification, got %q/%q", doc.DocType, doc.DocCategory)
	}
}

func TestSetReviewOutcome(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)
	ctx := context.Background()

	docID, err := svc.CreateFromFile(ctx, workflow.FileRecord{ID: "file-1", OriginalFilename: "a.txt"})
	if err != nil {
		t.Fatalf("CreateFromFile: %v", err)
	}

	now := time.Now().UTC()
	if err := svc.SetReviewOutcome(ctx, docID, "reviewer-1", "solid source", true, now); err != nil {
		t.Fatalf("SetReviewOutcome: %v", err)
	}
	doc, _ := repo.GetByID(ctx, docID)
	if doc.Status != StatusActive || !doc.IsReviewed {
		t.Fatalf("expected active reviewed document, got %+v", doc)
	}
	if doc.ReviewedBy != "reviewer-1" || doc.ReviewNotes != "solid source" {
		t.Fatalf("review fields not recorded: %+v", doc)
	}

	rejectedID, err := svc.CreateFromFile(ctx, workflow.FileRecord{ID: "file-2", OriginalFilename: "b.txt"})
	if err != nil {
		t.Fatalf("CreateFromFile: %v", err)
	}
	if err := svc.SetReviewOutcome(ctx, rejectedID, "reviewer-1", "off topic", false, now); err != nil {
		t.Fatalf("SetReviewOutcome: %v", err)
	}
	doc, _ = repo.GetByID(ctx, rejectedID)
	if doc.Status != StatusRejected {
		t.Fatalf("expected rejected, got %q", doc.Status)
	}

	active, err := svc.List(ctx, ListFilter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(active) != 1 || active[0].ID != docID {
		t.Fatalf("expected only the approved document in the library, got %+v", active)
	}
}

func TestSaveChunksFillsIdentifiers(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)
	ctx := context.Background()

	err := svc.SaveChunks(ctx, "doc-1", "file-1", []Chunk{
		{Index: 0, Content: "first", Embedding: []float32{0.1}, TokenEstimate: 1},
		{Index: 1, Content: "second", Embedding: []float32{0.2}, TokenEstimate: 1},
	})
	if err != nil {
		t.Fatalf("SaveChunks: %v", err)
	}

	n, err := repo.CountChunks(ctx, "doc-1")
	if err != nil {
		t.Fatalf("CountChunks: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 chunks, got %d", n)
	}

	// A replay of the same indexes must not duplicate rows.
	err = svc.SaveChunks(ctx, "doc-1", "file-1", []Chunk{
		{Index: 0, Content: "first", Embedding: []float32{0.1}, TokenEstimate: 1},
	})
	if err != nil {
		t.Fatalf("SaveChunks replay: %v", err)
	}
	n, _ = repo.CountChunks(ctx, "doc-1")
	if n != 2 {
		t.Fatalf("replay duplicated chunks: %d", n)
	}

	if err := svc.SaveChunks(ctx, "", "file-1", nil); err != ErrInvalidInput {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestExistsByHashEmptyHash(t *testing.T) {
	svc := NewService(NewMemoryRepo())

	exists, err := svc.ExistsByHash(context.Background(), "")
	if err != nil {
		t.Fatalf("ExistsByHash: %v", err)
	}
	if exists {
		t.Fatal("empty hash must never match")
	}
}
