package processing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"library-backend/internal/workflow"
)

func newMockRepo(t *testing.T) (*PGRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return &PGRepo{DB: db}, mock
}

func TestPGRepoCreateBatch(t *testing.T) {
	repo, mock := newMockRepo(t)

	now := time.Now().UTC()
	mock.ExpectExec("INSERT INTO processing_batches").
		WithArgs("batch-1", workflow.BatchCreated, 3, "user-1", now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.CreateBatch(context.Background(), Batch{
		ID:         "batch-1",
		Status:     workflow.BatchCreated,
		TotalFiles: 3,
		CreatedBy:  "user-1",
		CreatedAt:  now,
	})
	if err != nil {
		t.Fatalf("CreateBatch: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPGRepoGetBatchNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery("SELECT .+ FROM processing_batches WHERE id").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.GetBatch(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPGRepoSetBatchStatusSkipsCancelled(t *testing.T) {
	repo, mock := newMockRepo(t)

	now := time.Now().UTC()
	mock.ExpectExec(`(?s)UPDATE processing_batches.+status <> 'cancelled'`).
		WithArgs(workflow.BatchCompleted, 3, 2, 1, true, now, "batch-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	counts := workflow.BatchCounts{Total: 3, Processed: 3, Completed: 2, Failed: 1}
	if err := repo.SetBatchStatus(context.Background(), "batch-1", workflow.BatchCompleted, counts, now); err != nil {
		t.Fatalf("SetBatchStatus: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPGRepoSetBatchStatusNonTerminal(t *testing.T) {
	repo, mock := newMockRepo(t)

	now := time.Now().UTC()
	mock.ExpectExec(`UPDATE processing_batches`).
		WithArgs(workflow.BatchProcessing, 1, 0, 0, false, now, "batch-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	counts := workflow.BatchCounts{Total: 3, Processed: 1}
	if err := repo.SetBatchStatus(context.Background(), "batch-1", workflow.BatchProcessing, counts, now); err != nil {
		t.Fatalf("SetBatchStatus: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPGRepoCreateFile(t *testing.T) {
	repo, mock := newMockRepo(t)

	now := time.Now().UTC()
	mock.ExpectExec("INSERT INTO processing_files").
		WithArgs("file-1", "batch-1", workflow.StatusUploading, "brief.pdf", "u/brief.pdf",
			"application/pdf", "abc123", int64(2048), "user-1", now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.CreateFile(context.Background(), File{
		ID:               "file-1",
		BatchID:          "batch-1",
		Status:           workflow.StatusUploading,
		OriginalFilename: "brief.pdf",
		StoredPath:       "u/brief.pdf",
		MimeType:         "application/pdf",
		ContentHash:      "abc123",
		FileSize:         2048,
		UploadedBy:       "user-1",
		CreatedAt:        now,
	})
	if err != nil {
		t.Fatalf("CreateFile: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPGRepoApplyTransitionPinsFromStatus(t *testing.T) {
	repo, mock := newMockRepo(t)

	now := time.Now().UTC()
	next := now.Add(2 * time.Minute)
	retries := 1
	errMsg := "extraction timed out"

	mock.ExpectExec(`UPDATE processing_files SET status = \$1, updated_at = \$2.+WHERE id = \$\d+ AND status = \$\d+`).
		WithArgs(workflow.StatusRetryPending, now, retries, next, now, errMsg,
			"file-1", workflow.StatusExtractingText).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.ApplyTransition(context.Background(), workflow.TransitionUpdate{
		FileID:       "file-1",
		From:         workflow.StatusExtractingText,
		To:           workflow.StatusRetryPending,
		At:           now,
		RetryCount:   &retries,
		NextRetryAt:  &next,
		LastRetryAt:  &now,
		ErrorMessage: &errMsg,
	})
	if err != nil {
		t.Fatalf("ApplyTransition: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPGRepoApplyTransitionStale(t *testing.T) {
	repo, mock := newMockRepo(t)

	now := time.Now().UTC()
	mock.ExpectExec(`UPDATE processing_files SET`).
		WithArgs(workflow.StatusExtractingText, now, "file-1", workflow.StatusQueued).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("file-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	err := repo.ApplyTransition(context.Background(), workflow.TransitionUpdate{
		FileID: "file-1",
		From:   workflow.StatusQueued,
		To:     workflow.StatusExtractingText,
		At:     now,
	})
	if !errors.Is(err, workflow.ErrStaleTransition) {
		t.Fatalf("expected ErrStaleTransition, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPGRepoApplyTransitionMissingFile(t *testing.T) {
	repo, mock := newMockRepo(t)

	now := time.Now().UTC()
	mock.ExpectExec(`UPDATE processing_files SET`).
		WithArgs(workflow.StatusExtractingText, now, "gone", workflow.StatusQueued).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("gone").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	err := repo.ApplyTransition(context.Background(), workflow.TransitionUpdate{
		FileID: "gone",
		From:   workflow.StatusQueued,
		To:     workflow.StatusExtractingText,
		At:     now,
	})
	if !errors.Is(err, workflow.ErrFileNotFound) {
		t.Fatalf("expected ErrFileNotFound, got %v", err)
	}
}

func TestPGRepoApplyTransitionWritesMetadataJSON(t *testing.T) {
	repo, mock := newMockRepo(t)

	now := time.Now().UTC()
	meta := &workflow.Metadata{
		Title:       "Lost Earnings in Wrongful Death Claims",
		Authors:     []string{"J. Rivera"},
		DocType:     "article",
		DocCategory: "WD",
		Keywords:    []string{"damages"},
		Confidence:  map[string]float64{"title": 0.92},
	}

	mock.ExpectExec(`UPDATE processing_files SET`).
		WithArgs(workflow.StatusGeneratingEmbeddings, now,
			meta.Title, `["J. Rivera"]`, "", "article", "WD", "", `["damages"]`, "", `{"title":0.92}`,
			"file-1", workflow.StatusAnalyzingMetadata).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.ApplyTransition(context.Background(), workflow.TransitionUpdate{
		FileID:   "file-1",
		From:     workflow.StatusAnalyzingMetadata,
		To:       workflow.StatusGeneratingEmbeddings,
		At:       now,
		Metadata: meta,
	})
	if err != nil {
		t.Fatalf("ApplyTransition: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPGRepoGetFileScansNullables(t *testing.T) {
	repo, mock := newMockRepo(t)

	now := time.Now().UTC()
	cols := []string{
		"id", "batch_id", "document_id", "status", "original_filename", "stored_path", "extracted_text_key",
		"mime_type", "content_hash", "file_size", "word_count", "page_count", "char_count", "chunk_count",
		"retry_count", "next_retry_at", "last_retry_at", "error_message",
		"ai_title", "ai_authors", "ai_publication_date", "ai_doc_type", "ai_doc_category",
		"ai_description", "ai_keywords", "ai_bluebook_citation", "ai_confidence",
		"reviewed_by", "reviewed_at", "review_notes", "uploaded_by", "created_at", "updated_at",
	}
	rows := sqlmock.NewRows(cols).AddRow(
		"file-1", "batch-1", nil, workflow.StatusReviewPending, "brief.pdf", "u/brief.pdf", "u/brief.pdf.extracted.txt",
		"application/pdf", "abc123", int64(2048), 120, 4, 900, 2,
		0, nil, nil, nil,
		"Lost Earnings", `["J. Rivera"]`, "2021-06-01", "article", "WD",
		"", `["damages"]`, "", `{"title":0.92}`,
		nil, nil, nil, "user-1", now, now,
	)
	mock.ExpectQuery("FROM processing_files WHERE id").
		WithArgs("file-1").
		WillReturnRows(rows)

	f, err := repo.GetFile(context.Background(), "file-1")
	if err != nil {
		t.Fatalf("GetFile: %v", err)
	}
	if f.Status != workflow.StatusReviewPending {
		t.Fatalf("unexpected status %q", f.Status)
	}
	if f.ExtractedTextKey != "u/brief.pdf.extracted.txt" {
		t.Fatalf("unexpected extracted key %q", f.ExtractedTextKey)
	}
	if f.Metadata == nil || f.Metadata.Title != "Lost Earnings" {
		t.Fatalf("expected metadata title, got %+v", f.Metadata)
	}
	if len(f.Metadata.Authors) != 1 || f.Metadata.Authors[0] != "J. Rivera" {
		t.Fatalf("unexpected authors %v", f.Metadata.Authors)
	}
	if f.Metadata.Confidence["title"] != 0.92 {
		t.Fatalf("unexpected confidence %v", f.Metadata.Confidence)
	}
	if f.DocumentID != "" || f.NextRetryAt != nil {
		t.Fatalf("expected null fields to stay zero valued")
	}
}

func TestPGRepoGetFileNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery("FROM processing_files WHERE id").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.GetFile(context.Background(), "missing")
	if !errors.Is(err, workflow.ErrFileNotFound) {
		t.Fatalf("expected ErrFileNotFound, got %v", err)
	}
}

func TestPGRepoListRetryDue(t *testing.T) {
	repo, mock := newMockRepo(t)

	now := time.Now().UTC()
	mock.ExpectQuery(`FROM processing_files\s+WHERE status = 'retry_pending' AND next_retry_at <=`).
		WithArgs(now, 50).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	out, err := repo.ListRetryDue(context.Background(), now, 0)
	if err != nil {
		t.Fatalf("ListRetryDue: %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("expected no rows, got %d", len(out))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
