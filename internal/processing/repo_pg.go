package processing

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"library-backend/internal/workflow"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

// CreateBatch inserts a new batch.
func (r *PGRepo) CreateBatch(ctx context.Context, batch Batch) error {
	const query = `
INSERT INTO processing_batches (id, status, total_files, created_by, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $5)`
	_, err := r.DB.ExecContext(ctx, query,
		batch.ID,
		batch.Status,
		batch.TotalFiles,
		batch.CreatedBy,
		batch.CreatedAt,
	)
	return err
}

const batchColumns = `id, status, total_files, processed_files, completed_files, failed_files, error_message, created_by, created_at, updated_at, completed_at`

func scanBatch(row interface{ Scan(...any) error }) (Batch, error) {
	var batch Batch
	var errMsg sql.NullString
	var completedAt sql.NullTime
	err := row.Scan(
		&batch.ID,
		&batch.Status,
		&batch.TotalFiles,
		&batch.ProcessedFiles,
		&batch.CompletedFiles,
		&batch.FailedFiles,
		&errMsg,
		&batch.CreatedBy,
		&batch.CreatedAt,
		&batch.UpdatedAt,
		&completedAt,
	)
	if err != nil {
		return Batch{}, err
	}
	if errMsg.Valid {
		batch.ErrorMessage = errMsg.String
	}
	if completedAt.Valid {
		batch.CompletedAt = &completedAt.Time
	}
	return batch, nil
}

// GetBatch returns a batch by ID.
func (r *PGRepo) GetBatch(ctx context.Context, batchID string) (Batch, error) {
	query := `SELECT ` + batchColumns + ` FROM processing_batches WHERE id = $1 LIMIT 1`
	batch, err := scanBatch(r.DB.QueryRowContext(ctx, query, batchID))
	if errors.Is(err, sql.ErrNoRows) {
		return Batch{}, ErrNotFound
	}
	return batch, err
}

// ListBatches lists batches newest-first, optionally scoped to a creator.
func (r *PGRepo) ListBatches(ctx context.Context, createdBy string, limit, offset int) ([]Batch, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	query := `SELECT ` + batchColumns + ` FROM processing_batches`
	args := []any{}
	if createdBy != "" {
		query += ` WHERE created_by = $1`
		args = append(args, createdBy)
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Batch
	for rows.Next() {
		batch, err := scanBatch(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, batch)
	}
	return out, rows.Err()
}

// SetBatchStatus writes the recomputed projection. A cancelled batch is a
// user override and never leaves that status.
func (r *PGRepo) SetBatchStatus(ctx context.Context, batchID string, status workflow.BatchStatus, counts workflow.BatchCounts, at time.Time) error {
	const query = `
UPDATE processing_batches
SET status = $1,
    processed_files = $2,
    completed_files = $3,
    failed_files = $4,
    completed_at = CASE WHEN $5 THEN COALESCE(completed_at, $6) ELSE completed_at END,
    updated_at = $6
WHERE id = $7 AND status <> 'cancelled'`
	terminal := status == workflow.BatchCompleted ||
		status == workflow.BatchPartiallyCompleted ||
		status == workflow.BatchReviewComplete ||
		status == workflow.BatchFailed
	_, err := r.DB.ExecContext(ctx, query,
		status,
		counts.Processed,
		counts.Completed,
		counts.Failed,
		terminal,
		at,
		batchID,
	)
	return err
}

// SetBatchError records a batch-level error message.
func (r *PGRepo) SetBatchError(ctx context.Context, batchID, message string, at time.Time) error {
	const query = `UPDATE processing_batches SET error_message = $1, updated_at = $2 WHERE id = $3`
	_, err := r.DB.ExecContext(ctx, query, message, at, batchID)
	return err
}

// CreateFile inserts a new processing file.
func (r *PGRepo) CreateFile(ctx context.Context, file File) error {
	const query = `
INSERT INTO processing_files (
	id, batch_id, status, original_filename, stored_path, mime_type,
	content_hash, file_size, uploaded_by, created_at, updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)`
	_, err := r.DB.ExecContext(ctx, query,
		file.ID,
		file.BatchID,
		file.Status,
		file.OriginalFilename,
		file.StoredPath,
		file.MimeType,
		file.ContentHash,
		file.FileSize,
		file.UploadedBy,
		file.CreatedAt,
	)
	return err
}

const fileColumns = `id, batch_id, document_id, status, original_filename, stored_path, extracted_text_key,
       mime_type, content_hash, file_size, word_count, page_count, char_count, chunk_count,
       retry_count, next_retry_at, last_retry_at, error_message,
       ai_title, ai_authors, ai_publication_date, ai_doc_type, ai_doc_category,
       ai_description, ai_keywords, ai_bluebook_citation, ai_confidence,
       reviewed_by, reviewed_at, review_notes, uploaded_by, created_at, updated_at`

func scanFile(row interface{ Scan(...any) error }) (File, error) {
	var f File
	var documentID, extractedKey, errMsg sql.NullString
	var nextRetryAt, lastRetryAt, reviewedAt sql.NullTime
	var aiTitle, aiAuthors, aiPubDate, aiDocType, aiDocCategory sql.NullString
	var aiDescription, aiKeywords, aiCitation, aiConfidence sql.NullString
	var reviewedBy, reviewNotes sql.NullString

	err := row.Scan(
		&f.ID,
		&f.BatchID,
		&documentID,
		&f.Status,
		&f.OriginalFilename,
		&f.StoredPath,
		&extractedKey,
		&f.MimeType,
		&f.ContentHash,
		&f.FileSize,
		&f.WordCount,
		&f.PageCount,
		&f.CharCount,
		&f.ChunkCount,
		&f.RetryCount,
		&nextRetryAt,
		&lastRetryAt,
		&errMsg,
		&aiTitle,
		&aiAuthors,
		&aiPubDate,
		&aiDocType,
		&aiDocCategory,
		&aiDescription,
		&aiKeywords,
		&aiCitation,
		&aiConfidence,
		&reviewedBy,
		&reviewedAt,
		&reviewNotes,
		&f.UploadedBy,
		&f.CreatedAt,
		&f.UpdatedAt,
	)
	if err != nil {
		return File{}, err
	}

	if documentID.Valid {
		f.DocumentID = documentID.String
	}
	if extractedKey.Valid {
		f.ExtractedTextKey = extractedKey.String
	}
	if errMsg.Valid {
		f.ErrorMessage = errMsg.String
	}
	if nextRetryAt.Valid {
		f.NextRetryAt = &nextRetryAt.Time
	}
	if lastRetryAt.Valid {
		f.LastRetryAt = &lastRetryAt.Time
	}
	if reviewedBy.Valid {
		f.ReviewedBy = reviewedBy.String
	}
	if reviewedAt.Valid {
		f.ReviewedAt = &reviewedAt.Time
	}
	if reviewNotes.Valid {
		f.ReviewNotes = reviewNotes.String
	}

	if aiTitle.Valid || aiDocType.Valid || aiAuthors.Valid {
		meta := workflow.Metadata{}
		if aiTitle.Valid {
			meta.Title = aiTitle.String
		}
		if aiAuthors.Valid {
			_ = json.Unmarshal([]byte(aiAuthors.String), &meta.Authors)
		}
		if aiPubDate.Valid {
			meta.PublicationDate = aiPubDate.String
		}
		if aiDocType.Valid {
			meta.DocType = aiDocType.String
		}
		if aiDocCategory.Valid {
			meta.DocCategory = aiDocCategory.String
		}
		if aiDescription.Valid {
			meta.Description = aiDescription.String
		}
		if aiKeywords.Valid {
			_ = json.Unmarshal([]byte(aiKeywords.String), &meta.Keywords)
		}
		if aiCitation.Valid {
			meta.BluebookCitation = aiCitation.String
		}
		if aiConfidence.Valid {
			_ = json.Unmarshal([]byte(aiConfidence.String), &meta.Confidence)
		}
		f.Metadata = &meta
	}
	return f, nil
}

// GetFile returns a file by ID.
func (r *PGRepo) GetFile(ctx context.Context, fileID string) (File, error) {
	query := `SELECT ` + fileColumns + ` FROM processing_files WHERE id = $1 LIMIT 1`
	f, err := scanFile(r.DB.QueryRowContext(ctx, query, fileID))
	if errors.Is(err, sql.ErrNoRows) {
		return File{}, workflow.ErrFileNotFound
	}
	return f, err
}

// ListFilesByBatch returns all files in a batch in upload order.
func (r *PGRepo) ListFilesByBatch(ctx context.Context, batchID string) ([]File, error) {
	query := `SELECT ` + fileColumns + ` FROM processing_files WHERE batch_id = $1 ORDER BY created_at ASC`
	rows, err := r.DB.QueryContext(ctx, query, batchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []File
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// ListFilesByStatus returns files in a given status, oldest first.
func (r *PGRepo) ListFilesByStatus(ctx context.Context, status workflow.FileStatus, limit, offset int) ([]File, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	query := `SELECT ` + fileColumns + `
FROM processing_files
WHERE status = $1
ORDER BY created_at ASC
LIMIT $2 OFFSET $3`
	rows, err := r.DB.QueryContext(ctx, query, status, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []File
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// ListStatusesByBatch returns just the statuses of a batch's files.
func (r *PGRepo) ListStatusesByBatch(ctx context.Context, batchID string) ([]workflow.FileStatus, error) {
	const query = `SELECT status FROM processing_files WHERE batch_id = $1`
	rows, err := r.DB.QueryContext(ctx, query, batchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []workflow.FileStatus
	for rows.Next() {
		var s workflow.FileStatus
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ApplyTransition performs the compare-and-set status write. The WHERE clause
// pins the row to the status the engine validated against; zero rows updated
// means either the row is gone or another worker moved it first.
func (r *PGRepo) ApplyTransition(ctx context.Context, update workflow.TransitionUpdate) error {
	sets := []string{"status = $1", "updated_at = $2"}
	args := []any{update.To, update.At}

	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if update.RetryCount != nil {
		add("retry_count", *update.RetryCount)
	}
	if update.NextRetryAt != nil {
		add("next_retry_at", *update.NextRetryAt)
	}
	if update.LastRetryAt != nil {
		add("last_retry_at", *update.LastRetryAt)
	}
	if update.ErrorMessage != nil {
		add("error_message", *update.ErrorMessage)
		if update.ErrorDetails != nil {
			payload, err := json.Marshal(update.ErrorDetails)
			if err != nil {
				return err
			}
			add("error_details", string(payload))
		}
	}
	if update.Stats != nil {
		add("word_count", update.Stats.WordCount)
		add("page_count", update.Stats.PageCount)
		add("char_count", update.Stats.CharCount)
	}
	if update.Metadata != nil {
		meta := update.Metadata
		authors, err := json.Marshal(meta.Authors)
		if err != nil {
			return err
		}
		keywords, err := json.Marshal(meta.Keywords)
		if err != nil {
			return err
		}
		confidence, err := json.Marshal(meta.Confidence)
		if err != nil {
			return err
		}
		add("ai_title", meta.Title)
		add("ai_authors", string(authors))
		add("ai_publication_date", meta.PublicationDate)
		add("ai_doc_type", meta.DocType)
		add("ai_doc_category", meta.DocCategory)
		add("ai_description", meta.Description)
		add("ai_keywords", string(keywords))
		add("ai_bluebook_citation", meta.BluebookCitation)
		add("ai_confidence", string(confidence))
	}
	if update.ChunkCount != nil {
		add("chunk_count", *update.ChunkCount)
	}
	if update.ReviewerID != nil {
		add("reviewed_by", *update.ReviewerID)
	}
	if update.ClearReviewer {
		sets = append(sets, "reviewed_by = NULL")
	}
	if update.ReviewedAt != nil {
		add("reviewed_at", *update.ReviewedAt)
	}
	if update.ReviewNotes != nil {
		add("review_notes", *update.ReviewNotes)
	}

	args = append(args, update.FileID, update.From)
	query := fmt.Sprintf(
		`UPDATE processing_files SET %s WHERE id = $%d AND status = $%d`,
		strings.Join(sets, ", "), len(args)-1, len(args),
	)

	res, err := r.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		var exists bool
		if err := r.DB.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM processing_files WHERE id = $1)`, update.FileID,
		).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return workflow.ErrFileNotFound
		}
		return workflow.ErrStaleTransition
	}
	return nil
}

// LinkDocument records the created document on the file, first writer wins.
func (r *PGRepo) LinkDocument(ctx context.Context, fileID, documentID string) error {
	const query = `
UPDATE processing_files SET document_id = $1, updated_at = now()
WHERE id = $2 AND document_id IS NULL`
	_, err := r.DB.ExecContext(ctx, query, documentID, fileID)
	return err
}

// SetStoredObject records the saved object's key, hash, and size.
func (r *PGRepo) SetStoredObject(ctx context.Context, fileID, storedPath, contentHash string, size int64) error {
	const query = `
UPDATE processing_files
SET stored_path = $1, content_hash = $2, file_size = $3, updated_at = now()
WHERE id = $4`
	_, err := r.DB.ExecContext(ctx, query, storedPath, contentHash, size, fileID)
	return err
}

// SetExtractedTextKey records where the derived plain text landed.
func (r *PGRepo) SetExtractedTextKey(ctx context.Context, fileID, key string) error {
	const query = `UPDATE processing_files SET extracted_text_key = $1, updated_at = now() WHERE id = $2`
	_, err := r.DB.ExecContext(ctx, query, key, fileID)
	return err
}

// FindActiveByHash returns a live (non-terminal) file with the same content
// hash, for duplicate detection at upload time.
func (r *PGRepo) FindActiveByHash(ctx context.Context, contentHash string) (File, error) {
	query := `SELECT ` + fileColumns + `
FROM processing_files
WHERE content_hash = $1
  AND status NOT IN ('upload_failed', 'rejected', 'duplicate', 'cancelled')
ORDER BY created_at ASC
LIMIT 1`
	f, err := scanFile(r.DB.QueryRowContext(ctx, query, contentHash))
	if errors.Is(err, sql.ErrNoRows) {
		return File{}, ErrNotFound
	}
	return f, err
}

// ListRetryDue returns retry_pending files whose backoff has elapsed.
func (r *PGRepo) ListRetryDue(ctx context.Context, now time.Time, limit int) ([]File, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + fileColumns + `
FROM processing_files
WHERE status = 'retry_pending' AND next_retry_at <= $1
ORDER BY next_retry_at ASC
LIMIT $2`
	rows, err := r.DB.QueryContext(ctx, query, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []File
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

var _ Repo = (*PGRepo)(nil)
