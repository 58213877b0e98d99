package workflow

import (
	"context"
	"errors"
	"time"

	"library-backend/internal/shared/metrics"
	"library-backend/internal/shared/telemetry"
)

// FileRecord is the engine's view of a processing file row. The persistence
// layer owns the full row; the engine only needs the fields that feed
// validation, retry bookkeeping, and document creation.
type FileRecord struct {
	ID               string
	BatchID          string
	DocumentID       string
	Status           FileStatus
	RetryCount       int
	OriginalFilename string
	StoredPath       string
	MimeType         string
	ContentHash      string
	FileSize         int64
	WordCount        int
	PageCount        int
	CharCount        int
	ChunkCount       int
	Metadata         *Metadata
	UploadedBy       string
	ErrorMessage     string
}

// TransitionUpdate is the atomic write produced by a validated transition.
// From is the status the row must still hold when the write lands; a miss
// means the caller lost a race and surfaces as ErrStaleTransition.
type TransitionUpdate struct {
	FileID string
	From   FileStatus
	To     FileStatus
	At     time.Time

	RetryCount  *int
	NextRetryAt *time.Time
	LastRetryAt *time.Time

	ErrorMessage *string
	ErrorDetails map[string]any

	Stats      *TextStats
	Metadata   *Metadata
	ChunkCount *int

	ReviewerID    *string
	ReviewedAt    *time.Time
	ReviewNotes   *string
	ClearReviewer bool
}

// FileStore is the persistence boundary for per-file transitions and the
// derived batch projection. Implementations must make ApplyTransition a
// compare-and-set on the file's current status.
type FileStore interface {
	GetFile(ctx context.Context, fileID string) (FileRecord, error)
	ApplyTransition(ctx context.Context, update TransitionUpdate) error
	LinkDocument(ctx context.Context, fileID, documentID string) error
	ListStatusesByBatch(ctx context.Context, batchID string) ([]FileStatus, error)
	SetBatchStatus(ctx context.Context, batchID string, status BatchStatus, counts BatchCounts, at time.Time) error
}

// DocumentSink creates and finalizes the library document derived from a
// processing file.
type DocumentSink interface {
	CreateFromFile(ctx context.Context, file FileRecord) (documentID string, err error)
	SetReviewOutcome(ctx context.Context, documentID, reviewerID, notes string, approved bool, at time.Time) error
}

// Result reports what a successful Transition did.
type Result struct {
	FileID string
	From   FileStatus
	To     FileStatus

	// Discarded is true when a stage event arrived for a file already in a
	// terminal status and was dropped as a no-op.
	Discarded bool

	// Retry is set when the transition landed in a failed status.
	Retry RetryDecision
	// RetryExhausted is true when no further automatic retry will happen;
	// the file stays failed for manual intervention.
	RetryExhausted bool

	DocumentID      string
	DocumentCreated bool

	BatchStatus BatchStatus
}

// Engine validates and applies workflow transitions. It performs no blocking
// I/O of its own and holds no locks; per-file ordering is enforced by the
// compare-and-set write in FileStore, so any number of workers may call it
// concurrently.
type Engine struct {
	Files     FileStore
	Documents DocumentSink

	now func() time.Time
}

// NewEngine constructs an Engine over the given stores.
func NewEngine(files FileStore, documents DocumentSink) *Engine {
	return &Engine{Files: files, Documents: documents, now: time.Now}
}

// WithClock overrides the engine clock, for tests.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// Transition applies one event to one file. It validates the event against
// the canonical transition table and the file's current persisted status,
// writes the new status atomically, schedules retries for stage failures,
// creates the library document on entry to processing_complete, and
// recomputes the batch projection. All rejections are returned to the
// caller; nothing is silently dropped.
func (e *Engine) Transition(ctx context.Context, fileID string, event Event) (Result, error) {
	file, err := e.Files.GetFile(ctx, fileID)
	if err != nil {
		if errors.Is(err, ErrFileNotFound) {
			return Result{}, err
		}
		return Result{}, &PersistenceError{Op: "get file", Err: err}
	}

	at := event.OccurredAt
	if at.IsZero() {
		at = e.now().UTC()
	}

	if IsTerminal(file.Status) && event.isStageEvent() {
		// A late stage completion for a cancelled or otherwise finished file
		// is expected during cancellation races; drop it without error.
		telemetry.Info("file.event_discarded", map[string]any{
			"file_id":  file.ID,
			"batch_id": file.BatchID,
			"status":   string(file.Status),
			"event":    string(event.Type),
		})
		return Result{FileID: file.ID, From: file.Status, To: file.Status, Discarded: true}, nil
	}

	next, ok := NextStatus(file.Status, event.Type)
	if !ok {
		// A stage event may be delivered twice (queue redelivery, crash
		// between write and ack). When the file already sits in the event's
		// target status, absorb the duplicate instead of rejecting it. The
		// embedding-success duplicate still runs the document trigger so a
		// crash after the status write cannot lose the document.
		if rule, exists := transitionTable[event.Type]; exists && event.isStageEvent() && file.Status == rule.to {
			result := Result{FileID: file.ID, From: file.Status, To: file.Status, Discarded: true}
			if event.Type == EventEmbeddingsGenerated {
				if err := e.createDocument(ctx, file, event, at, &result); err != nil {
					return result, err
				}
			}
			return result, nil
		}
		return Result{}, &TransitionError{
			FileID: file.ID,
			Status: file.Status,
			Event:  event.Type,
			Err:    ErrInvalidTransition,
		}
	}

	update := buildUpdate(file, event, next, at)
	if err := e.Files.ApplyTransition(ctx, update); err != nil {
		if errors.Is(err, ErrStaleTransition) {
			return Result{}, &TransitionError{
				FileID: file.ID,
				Status: file.Status,
				Event:  event.Type,
				Err:    ErrStaleTransition,
			}
		}
		return Result{}, &PersistenceError{Op: "apply transition", Err: err}
	}

	result := Result{FileID: file.ID, From: file.Status, To: next}
	e.logTransition(file, event, next)

	switch {
	case IsFailed(next):
		if err := e.scheduleRetry(ctx, file, event, next, at, &result); err != nil {
			return result, err
		}
	case next == StatusProcessingComplete:
		if err := e.createDocument(ctx, file, event, at, &result); err != nil {
			return result, err
		}
	case next == StatusApproved || next == StatusRejected:
		if err := e.finishReview(ctx, file, event, next, at); err != nil {
			return result, err
		}
	}

	batchStatus, err := e.recomputeBatch(ctx, file.BatchID, at)
	if err != nil {
		return result, err
	}
	result.BatchStatus = batchStatus
	return result, nil
}

// Cancel moves a file to cancelled from any non-terminal status.
func (e *Engine) Cancel(ctx context.Context, fileID, reason string) (Result, error) {
	return e.Transition(ctx, fileID, Event{Type: EventCancelled, ErrorMessage: reason})
}

func buildUpdate(file FileRecord, event Event, next FileStatus, at time.Time) TransitionUpdate {
	update := TransitionUpdate{
		FileID: file.ID,
		From:   file.Status,
		To:     next,
		At:     at,
	}

	if event.ErrorMessage != "" {
		msg := event.ErrorMessage
		update.ErrorMessage = &msg
		update.ErrorDetails = event.ErrorDetails
	}

	switch event.Type {
	case EventTextExtracted:
		update.Stats = event.Stats
	case EventMetadataExtracted:
		update.Metadata = event.Metadata
	case EventEmbeddingsGenerated:
		chunks := event.ChunkCount
		update.ChunkCount = &chunks
	case EventReviewStarted:
		reviewer := event.ReviewerID
		update.ReviewerID = &reviewer
	case EventReviewReturned:
		// Return to queue clears the in-progress marker but keeps any
		// metadata edits already persisted.
		update.ClearReviewer = true
	case EventApproved, EventRejected:
		reviewer := event.ReviewerID
		update.ReviewerID = &reviewer
		update.ReviewedAt = &at
		if event.ReviewNotes != "" {
			notes := event.ReviewNotes
			update.ReviewNotes = &notes
		}
	}
	return update
}

func (e *Engine) scheduleRetry(ctx context.Context, file FileRecord, event Event, failed FileStatus, at time.Time, result *Result) error {
	decision := decideRetry(file.RetryCount)
	result.Retry = decision
	if !decision.Schedule {
		result.RetryExhausted = true
		metrics.IncFileRetriesExhausted()
		telemetry.Error("file.retries_exhausted", map[string]any{
			"file_id":     file.ID,
			"batch_id":    file.BatchID,
			"status":      string(failed),
			"retry_count": file.RetryCount,
		})
		return nil
	}

	wakeAt := at.Add(decision.Delay)
	update := TransitionUpdate{
		FileID:      file.ID,
		From:        failed,
		To:          StatusRetryPending,
		At:          at,
		RetryCount:  &decision.Attempt,
		NextRetryAt: &wakeAt,
		LastRetryAt: &at,
	}
	if err := e.Files.ApplyTransition(ctx, update); err != nil {
		if errors.Is(err, ErrStaleTransition) {
			return &TransitionError{FileID: file.ID, Status: failed, Event: event.Type, Err: ErrStaleTransition}
		}
		return &PersistenceError{Op: "schedule retry", Err: err}
	}
	result.To = StatusRetryPending
	metrics.IncFileRetriesScheduled()
	telemetry.Info("file.retry_scheduled", map[string]any{
		"file_id":       file.ID,
		"batch_id":      file.BatchID,
		"failed_status": string(failed),
		"attempt":       decision.Attempt,
		"delay_seconds": decision.Delay.Seconds(),
	})
	return nil
}

func (e *Engine) createDocument(ctx context.Context, file FileRecord, event Event, at time.Time, result *Result) error {
	if file.DocumentID != "" {
		// Duplicate completion event; the document already exists. Treated
		// as a no-op success, never a second row.
		result.DocumentID = file.DocumentID
		return nil
	}
	if e.Documents == nil {
		return nil
	}

	if event.ChunkCount > 0 {
		file.ChunkCount = event.ChunkCount
	}
	documentID, err := e.Documents.CreateFromFile(ctx, file)
	if err != nil {
		return &PersistenceError{Op: "create document", Err: err}
	}
	if err := e.Files.LinkDocument(ctx, file.ID, documentID); err != nil {
		return &PersistenceError{Op: "link document", Err: err}
	}
	result.DocumentID = documentID
	result.DocumentCreated = true
	metrics.IncDocumentsCreated()
	telemetry.Info("document.created", map[string]any{
		"file_id":     file.ID,
		"batch_id":    file.BatchID,
		"document_id": documentID,
	})
	return nil
}

func (e *Engine) finishReview(ctx context.Context, file FileRecord, event Event, next FileStatus, at time.Time) error {
	if e.Documents == nil || file.DocumentID == "" {
		return nil
	}
	approved := next == StatusApproved
	if err := e.Documents.SetReviewOutcome(ctx, file.DocumentID, event.ReviewerID, event.ReviewNotes, approved, at); err != nil {
		return &PersistenceError{Op: "set review outcome", Err: err}
	}
	return nil
}

func (e *Engine) recomputeBatch(ctx context.Context, batchID string, at time.Time) (BatchStatus, error) {
	statuses, err := e.Files.ListStatusesByBatch(ctx, batchID)
	if err != nil {
		return "", &PersistenceError{Op: "list batch statuses", Err: err}
	}
	status := AggregateStatus(statuses)
	counts := CountStatuses(statuses)
	if err := e.Files.SetBatchStatus(ctx, batchID, status, counts, at); err != nil {
		return "", &PersistenceError{Op: "set batch status", Err: err}
	}
	return status, nil
}

func (e *Engine) logTransition(file FileRecord, event Event, next FileStatus) {
	metrics.IncFileTransitions()
	fields := map[string]any{
		"file_id":           file.ID,
		"batch_id":          file.BatchID,
		"event":             string(event.Type),
		"status":            string(next),
		"status_transition": string(file.Status) + "->" + string(next),
	}
	if event.ErrorMessage != "" {
		fields["error"] = event.ErrorMessage
	}
	telemetry.Info("file.status", fields)
}
