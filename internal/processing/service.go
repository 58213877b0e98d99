package processing

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"library-backend/internal/queue"
	"library-backend/internal/shared/metrics"
	"library-backend/internal/shared/storage/object"
	"library-backend/internal/shared/telemetry"
	"library-backend/internal/workflow"
)

// DuplicateChecker reports whether a library document with the given content
// hash already exists.
type DuplicateChecker interface {
	ExistsByHash(ctx context.Context, contentHash string) (bool, error)
}

// Service owns uploads, batch status, and cancellation.
type Service struct {
	Repo      Repo
	Engine    *workflow.Engine
	Store     object.ObjectStore
	Queue     queue.Client
	Documents DuplicateChecker

	MaxFileBytes  int64
	MaxBatchFiles int

	now func() time.Time
}

// NewService constructs a Service with default limits.
func NewService(repo Repo, engine *workflow.Engine, store object.ObjectStore, q queue.Client, docs DuplicateChecker) *Service {
	return &Service{
		Repo:          repo,
		Engine:        engine,
		Store:         store,
		Queue:         q,
		Documents:     docs,
		MaxFileBytes:  50 << 20,
		MaxBatchFiles: 50,
		now:           time.Now,
	}
}

// Upload is one file in an incoming batch.
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Reader      io.Reader
}

var allowedMimeTypes = map[string]struct{}{
	"application/pdf": {},
	"text/plain":      {},
	"text/markdown":   {},
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": {},
}

var extensionMimeTypes = map[string]string{
	".pdf":  "application/pdf",
	".txt":  "text/plain",
	".md":   "text/markdown",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
}

func resolveMime(filename, contentType string) (string, error) {
	contentType = strings.TrimSpace(strings.ToLower(strings.Split(contentType, ";")[0]))
	if _, ok := allowedMimeTypes[contentType]; ok {
		return contentType, nil
	}
	ext := strings.ToLower(filepath.Ext(filename))
	if mime, ok := extensionMimeTypes[ext]; ok {
		return mime, nil
	}
	return "", ErrUnsupportedMime
}

// CreateBatch validates the uploads, stores them, creates the batch and file
// rows, and drives each file through Uploaded into the queue. Individual file
// failures do not abort the batch; they land as upload_failed or duplicate.
func (s *Service) CreateBatch(ctx context.Context, userID string, uploads []Upload) (Batch, []File, error) {
	if len(uploads) == 0 {
		return Batch{}, nil, ErrInvalidInput
	}
	if len(uploads) > s.MaxBatchFiles {
		return Batch{}, nil, ErrBatchTooLarge
	}
	for _, up := range uploads {
		if strings.TrimSpace(up.Filename) == "" {
			return Batch{}, nil, ErrInvalidInput
		}
		if up.Size > s.MaxFileBytes {
			return Batch{}, nil, ErrFileTooLarge
		}
		if _, err := resolveMime(up.Filename, up.ContentType); err != nil {
			return Batch{}, nil, err
		}
	}

	now := s.now().UTC()
	batch := Batch{
		ID:         uuid.NewString(),
		Status:     workflow.BatchUploading,
		TotalFiles: len(uploads),
		CreatedBy:  userID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.Repo.CreateBatch(ctx, batch); err != nil {
		return Batch{}, nil, err
	}

	files := make([]File, 0, len(uploads))
	for _, up := range uploads {
		file, err := s.ingestFile(ctx, batch.ID, userID, up)
		if err != nil {
			return Batch{}, nil, err
		}
		files = append(files, file)
	}

	updated, err := s.Repo.GetBatch(ctx, batch.ID)
	if err != nil {
		return Batch{}, nil, err
	}
	return updated, files, nil
}

// ingestFile stores one upload and moves it through the front of the
// workflow. Only infrastructure errors are returned; per-file processing
// failures are recorded on the row.
func (s *Service) ingestFile(ctx context.Context, batchID, userID string, up Upload) (File, error) {
	mime, _ := resolveMime(up.Filename, up.ContentType)
	now := s.now().UTC()
	file := File{
		ID:               uuid.NewString(),
		BatchID:          batchID,
		Status:           workflow.StatusUploading,
		OriginalFilename: up.Filename,
		MimeType:         mime,
		FileSize:         up.Size,
		UploadedBy:       userID,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.Repo.CreateFile(ctx, file); err != nil {
		return File{}, err
	}

	hasher := sha256.New()
	storedPath, size, _, err := s.Store.Save(ctx, userID, up.Filename, io.TeeReader(up.Reader, hasher))
	if err != nil {
		telemetry.Error("upload.store_failed", map[string]any{
			"file_id": file.ID, "batch_id": batchID, "error": err.Error(),
		})
		if _, terr := s.Engine.Transition(ctx, file.ID, workflow.Event{
			Type:         workflow.EventUploadFailed,
			ErrorMessage: err.Error(),
		}); terr != nil {
			return File{}, terr
		}
		return s.Repo.GetFile(ctx, file.ID)
	}

	contentHash := hex.EncodeToString(hasher.Sum(nil))
	if err := s.Repo.SetStoredObject(ctx, file.ID, storedPath, contentHash, size); err != nil {
		return File{}, err
	}

	if _, err := s.Engine.Transition(ctx, file.ID, workflow.Event{Type: workflow.EventUploaded}); err != nil {
		return File{}, err
	}
	metrics.IncFileUploads()

	duplicate, err := s.isDuplicate(ctx, file.ID, contentHash)
	if err != nil {
		return File{}, err
	}
	if duplicate {
		metrics.IncFilesDuplicate()
		if _, err := s.Engine.Transition(ctx, file.ID, workflow.Event{
			Type:         workflow.EventDuplicateDetected,
			ErrorMessage: "content hash matches an existing document",
		}); err != nil {
			return File{}, err
		}
		return s.Repo.GetFile(ctx, file.ID)
	}

	if err := s.enqueue(ctx, file.ID); err != nil {
		return File{}, err
	}
	return s.Repo.GetFile(ctx, file.ID)
}

func (s *Service) isDuplicate(ctx context.Context, fileID, contentHash string) (bool, error) {
	if s.Documents != nil {
		exists, err := s.Documents.ExistsByHash(ctx, contentHash)
		if err != nil {
			return false, err
		}
		if exists {
			return true, nil
		}
	}
	existing, err := s.Repo.FindActiveByHash(ctx, contentHash)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return existing.ID != fileID, nil
}

// enqueue fires the Queued transition and publishes the pipeline job.
func (s *Service) enqueue(ctx context.Context, fileID string) error {
	if _, err := s.Engine.Transition(ctx, fileID, workflow.Event{Type: workflow.EventQueued}); err != nil {
		return err
	}
	if s.Queue == nil {
		return nil
	}
	msg := queue.Message{
		FileID:     fileID,
		RequestID:  uuid.NewString(),
		EnqueuedAt: s.now().UTC().Format(time.RFC3339),
		Version:    1,
	}
	if err := s.Queue.Send(ctx, msg); err != nil {
		telemetry.Error("queue.send_failed", map[string]any{
			"file_id": fileID, "error": err.Error(),
		})
		return err
	}
	return nil
}

// Requeue re-enters a retry_pending file into the pipeline. Used by the
// retry dispatcher once the backoff has elapsed.
func (s *Service) Requeue(ctx context.Context, fileID string) error {
	return s.enqueue(ctx, fileID)
}

// BatchView is a batch with its files and a progress summary.
type BatchView struct {
	Batch           Batch
	Files           []File
	FilesByStatus   map[workflow.FileStatus]int
	ProgressPercent int
}

// GetBatch returns the batch, its files, and the status breakdown.
func (s *Service) GetBatch(ctx context.Context, batchID string) (BatchView, error) {
	batch, err := s.Repo.GetBatch(ctx, batchID)
	if err != nil {
		return BatchView{}, err
	}
	files, err := s.Repo.ListFilesByBatch(ctx, batchID)
	if err != nil {
		return BatchView{}, err
	}

	byStatus := make(map[workflow.FileStatus]int, len(files))
	for _, f := range files {
		byStatus[f.Status]++
	}
	progress := 0
	if batch.TotalFiles > 0 {
		progress = batch.ProcessedFiles * 100 / batch.TotalFiles
	}
	return BatchView{
		Batch:           batch,
		Files:           files,
		FilesByStatus:   byStatus,
		ProgressPercent: progress,
	}, nil
}

// ListBatches lists batches for a creator, newest first.
func (s *Service) ListBatches(ctx context.Context, createdBy string, limit, offset int) ([]Batch, error) {
	return s.Repo.ListBatches(ctx, createdBy, limit, offset)
}

// GetFile returns one processing file.
func (s *Service) GetFile(ctx context.Context, fileID string) (File, error) {
	return s.Repo.GetFile(ctx, fileID)
}

// CancelFile cancels one file.
func (s *Service) CancelFile(ctx context.Context, fileID, reason string) (File, error) {
	if _, err := s.Engine.Cancel(ctx, fileID, reason); err != nil {
		return File{}, err
	}
	return s.Repo.GetFile(ctx, fileID)
}

// CancelBatch cancels every non-terminal file in the batch, then pins the
// batch to cancelled. The pinned status is a user override; later file
// events can no longer move it.
func (s *Service) CancelBatch(ctx context.Context, batchID, reason string) (Batch, error) {
	if _, err := s.Repo.GetBatch(ctx, batchID); err != nil {
		return Batch{}, err
	}
	files, err := s.Repo.ListFilesByBatch(ctx, batchID)
	if err != nil {
		return Batch{}, err
	}

	for _, f := range files {
		if workflow.IsTerminal(f.Status) {
			continue
		}
		if _, err := s.Engine.Cancel(ctx, f.ID, reason); err != nil {
			// Lost a race against a concurrent transition; the file will be
			// re-read as terminal on the next pass or stay live, either way
			// the batch override below still lands.
			if errors.Is(err, workflow.ErrStaleTransition) || errors.Is(err, workflow.ErrInvalidTransition) {
				continue
			}
			return Batch{}, err
		}
	}

	statuses, err := s.Repo.ListStatusesByBatch(ctx, batchID)
	if err != nil {
		return Batch{}, err
	}
	now := s.now().UTC()
	if err := s.Repo.SetBatchStatus(ctx, batchID, workflow.BatchCancelled, workflow.CountStatuses(statuses), now); err != nil {
		return Batch{}, err
	}
	if reason != "" {
		if err := s.Repo.SetBatchError(ctx, batchID, reason, now); err != nil {
			return Batch{}, err
		}
	}
	telemetry.Info("batch.cancelled", map[string]any{"batch_id": batchID})
	return s.Repo.GetBatch(ctx, batchID)
}

// LogEntry is one synthesized processing log line. Logs are a projection of
// the batch and file rows, not separately stored records.
type LogEntry struct {
	BatchID   string
	Level     string
	Message   string
	FileID    string
	Status    workflow.FileStatus
	CreatedAt time.Time
}

// BatchLogs builds the processing log for a batch: a summary line plus one
// line per file that has finished, failed, or recorded an error.
func (s *Service) BatchLogs(ctx context.Context, batchID string) ([]LogEntry, error) {
	batch, err := s.Repo.GetBatch(ctx, batchID)
	if err != nil {
		return nil, err
	}
	files, err := s.Repo.ListFilesByBatch(ctx, batchID)
	if err != nil {
		return nil, err
	}

	logs := make([]LogEntry, 0, len(files)+1)
	summaryLevel := "info"
	if batch.Status == workflow.BatchFailed {
		summaryLevel = "error"
	}
	logs = append(logs, LogEntry{
		BatchID:   batchID,
		Level:     summaryLevel,
		Message:   "batch " + string(batch.Status),
		CreatedAt: batch.UpdatedAt,
	})

	for _, f := range files {
		entry := LogEntry{
			BatchID:   batchID,
			FileID:    f.ID,
			Status:    f.Status,
			CreatedAt: f.UpdatedAt,
		}
		if f.ErrorMessage != "" {
			entry.Level = "error"
			entry.Message = f.OriginalFilename + ": " + f.ErrorMessage
		} else {
			entry.Level = "info"
			entry.Message = f.OriginalFilename + ": " + string(f.Status)
		}
		logs = append(logs, entry)
	}
	return logs, nil
}
