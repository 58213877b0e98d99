package processing

import (
	"time"

	"library-backend/internal/workflow"
)

// FileResponse is the outward-facing representation of a processing file.
type FileResponse struct {
	FileID           string             `json:"fileId"`
	BatchID          string             `json:"batchId"`
	DocumentID       string             `json:"documentId,omitempty"`
	Status           string             `json:"status"`
	OriginalFilename string             `json:"originalFilename"`
	MimeType         string             `json:"mimeType"`
	FileSize         int64              `json:"fileSize"`
	ContentHash      string             `json:"contentHash,omitempty"`
	WordCount        int                `json:"wordCount,omitempty"`
	PageCount        int                `json:"pageCount,omitempty"`
	ChunkCount       int                `json:"chunkCount,omitempty"`
	RetryCount       int                `json:"retryCount"`
	NextRetryAt      *time.Time         `json:"nextRetryAt,omitempty"`
	ErrorMessage     string             `json:"errorMessage,omitempty"`
	Metadata         *workflow.Metadata `json:"aiMetadata,omitempty"`
	UploadedAt       time.Time          `json:"uploadedAt"`
	UpdatedAt        time.Time          `json:"updatedAt"`
}

func toFileResponse(f File) FileResponse {
	return FileResponse{
		FileID:           f.ID,
		BatchID:          f.BatchID,
		DocumentID:       f.DocumentID,
		Status:           string(f.Status),
		OriginalFilename: f.OriginalFilename,
		MimeType:         f.MimeType,
		FileSize:         f.FileSize,
		ContentHash:      f.ContentHash,
		WordCount:        f.WordCount,
		PageCount:        f.PageCount,
		ChunkCount:       f.ChunkCount,
		RetryCount:       f.RetryCount,
		NextRetryAt:      f.NextRetryAt,
		ErrorMessage:     f.ErrorMessage,
		Metadata:         f.Metadata,
		UploadedAt:       f.CreatedAt,
		UpdatedAt:        f.UpdatedAt,
	}
}

// BatchResponse is the outward-facing representation of a batch.
type BatchResponse struct {
	BatchID        string     `json:"batchId"`
	Status         string     `json:"status"`
	TotalFiles     int        `json:"totalFiles"`
	ProcessedFiles int        `json:"processedFiles"`
	CompletedFiles int        `json:"completedFiles"`
	FailedFiles    int        `json:"failedFiles"`
	ErrorMessage   string     `json:"errorMessage,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
	CompletedAt    *time.Time `json:"completedAt,omitempty"`
}

func toBatchResponse(b Batch) BatchResponse {
	return BatchResponse{
		BatchID:        b.ID,
		Status:         string(b.Status),
		TotalFiles:     b.TotalFiles,
		ProcessedFiles: b.ProcessedFiles,
		CompletedFiles: b.CompletedFiles,
		FailedFiles:    b.FailedFiles,
		ErrorMessage:   b.ErrorMessage,
		CreatedAt:      b.CreatedAt,
		UpdatedAt:      b.UpdatedAt,
		CompletedAt:    b.CompletedAt,
	}
}

// BatchStatusResponse is the batch status endpoint payload.
type BatchStatusResponse struct {
	BatchResponse
	ProgressPercent int            `json:"progressPercent"`
	FilesByStatus   map[string]int `json:"filesByStatus"`
	Files           []FileResponse `json:"files"`
}

func toBatchStatusResponse(view BatchView) BatchStatusResponse {
	byStatus := make(map[string]int, len(view.FilesByStatus))
	for status, n := range view.FilesByStatus {
		byStatus[string(status)] = n
	}
	files := make([]FileResponse, 0, len(view.Files))
	for _, f := range view.Files {
		files = append(files, toFileResponse(f))
	}
	return BatchStatusResponse{
		BatchResponse:   toBatchResponse(view.Batch),
		ProgressPercent: view.ProgressPercent,
		FilesByStatus:   byStatus,
		Files:           files,
	}
}

// LogEntryResponse is one processing log line.
type LogEntryResponse struct {
	BatchID   string    `json:"batchId"`
	FileID    string    `json:"fileId,omitempty"`
	Status    string    `json:"status,omitempty"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}

func toLogEntryResponse(e LogEntry) LogEntryResponse {
	return LogEntryResponse{
		BatchID:   e.BatchID,
		FileID:    e.FileID,
		Status:    string(e.Status),
		Level:     e.Level,
		Message:   e.Message,
		CreatedAt: e.CreatedAt,
	}
}
