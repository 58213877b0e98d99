package processing

import (
	"time"

	"library-backend/internal/workflow"
)

// Batch is one upload batch and its cached status projection.
type Batch struct {
	ID             string
	Status         workflow.BatchStatus
	TotalFiles     int
	ProcessedFiles int
	CompletedFiles int
	FailedFiles    int
	ErrorMessage   string
	CreatedBy      string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	CompletedAt    *time.Time
}

// File is one uploaded file moving through the pipeline.
type File struct {
	ID               string
	BatchID          string
	DocumentID       string
	Status           workflow.FileStatus
	OriginalFilename string
	StoredPath       string
	ExtractedTextKey string
	MimeType         string
	ContentHash      string
	FileSize         int64
	WordCount        int
	PageCount        int
	CharCount        int
	ChunkCount       int
	RetryCount       int
	NextRetryAt      *time.Time
	LastRetryAt      *time.Time
	ErrorMessage     string
	Metadata         *workflow.Metadata
	ReviewedBy       string
	ReviewedAt       *time.Time
	ReviewNotes      string
	UploadedBy       string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Record converts the row to the engine's view of it.
func (f File) Record() workflow.FileRecord {
	return workflow.FileRecord{
		ID:               f.ID,
		BatchID:          f.BatchID,
		DocumentID:       f.DocumentID,
		Status:           f.Status,
		RetryCount:       f.RetryCount,
		OriginalFilename: f.OriginalFilename,
		StoredPath:       f.StoredPath,
		MimeType:         f.MimeType,
		ContentHash:      f.ContentHash,
		FileSize:         f.FileSize,
		WordCount:        f.WordCount,
		PageCount:        f.PageCount,
		CharCount:        f.CharCount,
		ChunkCount:       f.ChunkCount,
		Metadata:         f.Metadata,
		UploadedBy:       f.UploadedBy,
		ErrorMessage:     f.ErrorMessage,
	}
}
