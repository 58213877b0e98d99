package documents

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"library-backend/internal/workflow"
)

// Service contains business logic for library documents. It is also the
// workflow engine's document sink: the engine calls CreateFromFile when a
// processing file completes and SetReviewOutcome when review finishes.
type Service struct {
	Repo DocumentsRepo

	now func() time.Time
}

// NewService constructs a Service.
func NewService(repo DocumentsRepo) *Service {
	return &Service{Repo: repo, now: time.Now}
}

// CreateFromFile creates the library document for a completed processing
// file, seeded from the AI-extracted metadata.
func (s *Service) CreateFromFile(ctx context.Context, file workflow.FileRecord) (string, error) {
	now := s.now().UTC()
	doc := Document{
		ID:               uuid.NewString(),
		SourceFileID:     file.ID,
		Title:            strings.TrimSpace(file.OriginalFilename),
		DocType:          "other",
		DocCategory:      "Other",
		OriginalFilename: file.OriginalFilename,
		StoredPath:       file.StoredPath,
		MimeType:         file.MimeType,
		ContentHash:      file.ContentHash,
		FileSize:         file.FileSize,
		WordCount:        file.WordCount,
		PageCount:        file.PageCount,
		CharCount:        file.CharCount,
		ChunkCount:       file.ChunkCount,
		Status:           StatusReviewPending,
		UploadedBy:       file.UploadedBy,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if meta := file.Metadata; meta != nil {
		if title := strings.TrimSpace(meta.Title); title != "" {
			doc.Title = title
		}
		doc.Authors = meta.Authors
		doc.PublicationDate = meta.PublicationDate
		if meta.DocType != "" {
			doc.DocType = meta.DocType
		}
		if meta.DocCategory != "" {
			doc.DocCategory = meta.DocCategory
		}
		doc.Description = meta.Description
		doc.Keywords = meta.Keywords
		doc.BluebookCitation = meta.BluebookCitation
		doc.Confidence = meta.Confidence
	}

	if err := s.Repo.Create(ctx, doc); err != nil {
		return "", err
	}
	return doc.ID, nil
}

// SetReviewOutcome finalizes a document after review. Approval makes it an
// active library document; rejection keeps the row but hides it from the
// library.
func (s *Service) SetReviewOutcome(ctx context.Context, documentID, reviewerID, notes string, approved bool, at time.Time) error {
	status := StatusRejected
	if approved {
		status = StatusActive
	}
	return s.Repo.SetReviewOutcome(ctx, documentID, reviewerID, notes, status, at)
}

var _ workflow.DocumentSink = (*Service)(nil)

// ExistsByHash reports whether the library already holds this content.
func (s *Service) ExistsByHash(ctx context.Context, contentHash string) (bool, error) {
	if contentHash == "" {
		return false, nil
	}
	return s.Repo.ExistsByHash(ctx, contentHash)
}

// Get returns one document.
func (s *Service) Get(ctx context.Context, documentID string) (Document, error) {
	if documentID == "" {
		return Document{}, ErrInvalidInput
	}
	return s.Repo.GetByID(ctx, documentID)
}

// List returns active library documents matching the filter.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Document, error) {
	return s.Repo.ListActive(ctx, filter)
}

// Stats summarizes the active library.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	return s.Repo.Stats(ctx)
}

// Delete soft-deletes a document.
func (s *Service) Delete(ctx context.Context, documentID string) error {
	if documentID == "" {
		return ErrInvalidInput
	}
	return s.Repo.SoftDelete(ctx, documentID, s.now().UTC())
}

// Archive moves an active document out of the default listing.
func (s *Service) Archive(ctx context.Context, documentID string) error {
	if documentID == "" {
		return ErrInvalidInput
	}
	return s.Repo.Archive(ctx, documentID, s.now().UTC())
}

// SaveChunks persists the embedded chunks for a document. Replays of the
// same chunk indexes are absorbed by the repo.
func (s *Service) SaveChunks(ctx context.Context, documentID, processingFileID string, chunks []Chunk) error {
	if documentID == "" {
		return ErrInvalidInput
	}
	now := s.now().UTC()
	for i := range chunks {
		if chunks[i].ID == "" {
			chunks[i].ID = uuid.NewString()
		}
		chunks[i].DocumentID = documentID
		chunks[i].ProcessingFileID = processingFileID
		if chunks[i].CreatedAt.IsZero() {
			chunks[i].CreatedAt = now
		}
	}
	return s.Repo.CreateChunks(ctx, chunks)
}
