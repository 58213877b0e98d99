package documents

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// PGRepo implements DocumentsRepo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

const documentColumns = `id, source_file_id, title, authors, publication_date, doc_type, doc_category,
       description, keywords, bluebook_citation, confidence_scores,
       original_filename, stored_path, mime_type, content_hash, file_size,
       word_count, page_count, char_count, chunk_count,
       status, is_reviewed, is_deleted, is_archived,
       uploaded_by, reviewed_by, reviewed_at, review_notes, created_at, updated_at`

// Create inserts a new document.
func (r *PGRepo) Create(ctx context.Context, doc Document) error {
	const query = `
INSERT INTO documents (
	id, source_file_id, title, authors, publication_date, doc_type, doc_category,
	description, keywords, bluebook_citation, confidence_scores,
	original_filename, stored_path, mime_type, content_hash, file_size,
	word_count, page_count, char_count, chunk_count,
	status, uploaded_by, created_at, updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $23)`

	authors, err := json.Marshal(doc.Authors)
	if err != nil {
		return err
	}
	keywords, err := json.Marshal(doc.Keywords)
	if err != nil {
		return err
	}
	confidence, err := json.Marshal(doc.Confidence)
	if err != nil {
		return err
	}

	var sourceFileID sql.NullString
	if doc.SourceFileID != "" {
		sourceFileID = sql.NullString{String: doc.SourceFileID, Valid: true}
	}

	_, err = r.DB.ExecContext(ctx, query,
		doc.ID,
		sourceFileID,
		doc.Title,
		string(authors),
		doc.PublicationDate,
		doc.DocType,
		doc.DocCategory,
		doc.Description,
		string(keywords),
		doc.BluebookCitation,
		string(confidence),
		doc.OriginalFilename,
		doc.StoredPath,
		doc.MimeType,
		doc.ContentHash,
		doc.FileSize,
		doc.WordCount,
		doc.PageCount,
		doc.CharCount,
		doc.ChunkCount,
		doc.Status,
		doc.UploadedBy,
		doc.CreatedAt,
	)
	return err
}

func scanDocument(row interface{ Scan(...any) error }) (Document, error) {
	var doc Document
	var sourceFileID, pubDate, description, citation sql.NullString
	var authors, keywords, confidence sql.NullString
	var reviewedBy, reviewNotes sql.NullString
	var reviewedAt sql.NullTime

	err := row.Scan(
		&doc.ID,
		&sourceFileID,
		&doc.Title,
		&authors,
		&pubDate,
		&doc.DocType,
		&doc.DocCategory,
		&description,
		&keywords,
		&citation,
		&confidence,
		&doc.OriginalFilename,
		&doc.StoredPath,
		&doc.MimeType,
		&doc.ContentHash,
		&doc.FileSize,
		&doc.WordCount,
		&doc.PageCount,
		&doc.CharCount,
		&doc.ChunkCount,
		&doc.Status,
		&doc.IsReviewed,
		&doc.IsDeleted,
		&doc.IsArchived,
		&doc.UploadedBy,
		&reviewedBy,
		&reviewedAt,
		&reviewNotes,
		&doc.CreatedAt,
		&doc.UpdatedAt,
	)
	if err != nil {
		return Document{}, err
	}

	if sourceFileID.Valid {
		doc.SourceFileID = sourceFileID.String
	}
	if pubDate.Valid {
		doc.PublicationDate = pubDate.String
	}
	if description.Valid {
		doc.Description = description.String
	}
	if citation.Valid {
		doc.BluebookCitation = citation.String
	}
	if authors.Valid {
		_ = json.Unmarshal([]byte(authors.String), &doc.Authors)
	}
	if keywords.Valid {
		_ = json.Unmarshal([]byte(keywords.String), &doc.Keywords)
	}
	if confidence.Valid {
		_ = json.Unmarshal([]byte(confidence.String), &doc.Confidence)
	}
	if reviewedBy.Valid {
		doc.ReviewedBy = reviewedBy.String
	}
	if reviewedAt.Valid {
		doc.ReviewedAt = &reviewedAt.Time
	}
	if reviewNotes.Valid {
		doc.ReviewNotes = reviewNotes.String
	}
	return doc, nil
}

// GetByID fetches a document by ID.
func (r *PGRepo) GetByID(ctx context.Context, documentID string) (Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE id = $1 AND NOT is_deleted LIMIT 1`
	doc, err := scanDocument(r.DB.QueryRowContext(ctx, query, documentID))
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, ErrNotFound
	}
	return doc, err
}

// ListActive lists approved library documents, newest first.
func (r *PGRepo) ListActive(ctx context.Context, filter ListFilter) ([]Document, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := `SELECT ` + documentColumns + ` FROM documents WHERE status = 'active' AND NOT is_deleted`
	args := []any{}
	if filter.DocType != "" {
		args = append(args, filter.DocType)
		query += fmt.Sprintf(` AND doc_type = $%d`, len(args))
	}
	if filter.DocCategory != "" {
		args = append(args, filter.DocCategory)
		query += fmt.Sprintf(` AND doc_category = $%d`, len(args))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		query += fmt.Sprintf(` AND (title ILIKE $%d OR description ILIKE $%d)`, len(args), len(args))
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

// ListByStatus lists documents in a given status, oldest first.
func (r *PGRepo) ListByStatus(ctx context.Context, status string, limit, offset int) ([]Document, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	query := `SELECT ` + documentColumns + `
FROM documents
WHERE status = $1 AND NOT is_deleted
ORDER BY created_at ASC
LIMIT $2 OFFSET $3`
	rows, err := r.DB.QueryContext(ctx, query, status, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

// ExistsByHash reports whether a live document carries the content hash.
func (r *PGRepo) ExistsByHash(ctx context.Context, contentHash string) (bool, error) {
	const query = `
SELECT EXISTS (
	SELECT 1 FROM documents
	WHERE content_hash = $1 AND NOT is_deleted AND status <> 'rejected'
)`
	var exists bool
	err := r.DB.QueryRowContext(ctx, query, contentHash).Scan(&exists)
	return exists, err
}

// SetReviewOutcome records the reviewer's verdict on a document.
func (r *PGRepo) SetReviewOutcome(ctx context.Context, documentID, reviewerID, notes, status string, at time.Time) error {
	const query = `
UPDATE documents
SET status = $1, is_reviewed = TRUE, reviewed_by = $2, reviewed_at = $3, review_notes = $4, updated_at = $3
WHERE id = $5 AND NOT is_deleted`
	res, err := r.DB.ExecContext(ctx, query, status, reviewerID, at, notes, documentID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// SoftDelete marks a document deleted; the row stays for audit.
func (r *PGRepo) SoftDelete(ctx context.Context, documentID string, at time.Time) error {
	const query = `
UPDATE documents
SET status = 'deleted', is_deleted = TRUE, updated_at = $1
WHERE id = $2 AND NOT is_deleted`
	res, err := r.DB.ExecContext(ctx, query, at, documentID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Archive moves an active document out of the default listing.
func (r *PGRepo) Archive(ctx context.Context, documentID string, at time.Time) error {
	const query = `
UPDATE documents
SET status = 'archived', is_archived = TRUE, updated_at = $1
WHERE id = $2 AND status = 'active' AND NOT is_deleted`
	res, err := r.DB.ExecContext(ctx, query, at, documentID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Stats aggregates the active library.
func (r *PGRepo) Stats(ctx context.Context) (Stats, error) {
	stats := Stats{
		ByType:     map[string]int{},
		ByCategory: map[string]int{},
	}

	const totals = `
SELECT COUNT(*), COALESCE(SUM(chunk_count), 0), COALESCE(SUM(word_count), 0)
FROM documents
WHERE status = 'active' AND NOT is_deleted`
	if err := r.DB.QueryRowContext(ctx, totals).Scan(&stats.TotalDocuments, &stats.TotalChunks, &stats.TotalWords); err != nil {
		return Stats{}, err
	}

	const byType = `
SELECT doc_type, COUNT(*)
FROM documents
WHERE status = 'active' AND NOT is_deleted
GROUP BY doc_type`
	rows, err := r.DB.QueryContext(ctx, byType)
	if err != nil {
		return Stats{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var docType string
		var n int
		if err := rows.Scan(&docType, &n); err != nil {
			return Stats{}, err
		}
		stats.ByType[docType] = n
	}
	if err := rows.Err(); err != nil {
		return Stats{}, err
	}

	const byCategory = `
SELECT doc_category, COUNT(*)
FROM documents
WHERE status = 'active' AND NOT is_deleted
GROUP BY doc_category`
	catRows, err := r.DB.QueryContext(ctx, byCategory)
	if err != nil {
		return Stats{}, err
	}
	defer catRows.Close()
	for catRows.Next() {
		var category string
		var n int
		if err := catRows.Scan(&category, &n); err != nil {
			return Stats{}, err
		}
		stats.ByCategory[category] = n
	}
	return stats, catRows.Err()
}

// CreateChunks inserts chunk rows; replayed inserts on the same
// (document, index) pair are ignored.
func (r *PGRepo) CreateChunks(ctx context.Context, chunks []Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	const query = `
INSERT INTO document_chunks (id, processing_file_id, document_id, chunk_index, content, embedding, token_estimate, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (document_id, chunk_index) DO NOTHING`

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, chunk := range chunks {
		embedding, err := json.Marshal(chunk.Embedding)
		if err != nil {
			return err
		}
		var fileID sql.NullString
		if chunk.ProcessingFileID != "" {
			fileID = sql.NullString{String: chunk.ProcessingFileID, Valid: true}
		}
		if _, err := tx.ExecContext(ctx, query,
			chunk.ID,
			fileID,
			chunk.DocumentID,
			chunk.Index,
			chunk.Content,
			string(embedding),
			chunk.TokenEstimate,
			chunk.CreatedAt,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// CountChunks returns the number of stored chunks for a document.
func (r *PGRepo) CountChunks(ctx context.Context, documentID string) (int, error) {
	const query = `SELECT COUNT(*) FROM document_chunks WHERE document_id = $1`
	var n int
	err := r.DB.QueryRowContext(ctx, query, documentID).Scan(&n)
	return n, err
}

var _ DocumentsRepo = (*PGRepo)(nil)
