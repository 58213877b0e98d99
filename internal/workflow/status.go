package workflow

// FileStatus is the processing status of a single uploaded file. The set of
// values matches the database check constraint exactly; status is only ever
// written through Engine.Transition.
type FileStatus string

const (
	// Upload phase.
	StatusUploading    FileStatus = "uploading"
	StatusUploaded     FileStatus = "uploaded"
	StatusUploadFailed FileStatus = "upload_failed"

	// Processing phase.
	StatusQueued               FileStatus = "queued"
	StatusExtractingText       FileStatus = "extracting_text"
	StatusExtractionFailed     FileStatus = "extraction_failed"
	StatusAnalyzingMetadata    FileStatus = "analyzing_metadata"
	StatusAnalysisFailed       FileStatus = "analysis_failed"
	StatusGeneratingEmbeddings FileStatus = "generating_embeddings"
	StatusEmbeddingFailed      FileStatus = "embedding_failed"
	StatusProcessingComplete   FileStatus = "processing_complete"

	// Review phase.
	StatusReviewPending FileStatus = "review_pending"
	StatusUnderReview   FileStatus = "under_review"
	StatusApproved      FileStatus = "approved"
	StatusRejected      FileStatus = "rejected"

	// Special states.
	StatusDuplicate    FileStatus = "duplicate"
	StatusCancelled    FileStatus = "cancelled"
	StatusRetryPending FileStatus = "retry_pending"
)

// BatchStatus is the aggregate status of an upload batch. Except for the
// explicit cancelled override it is always derived from the constituent file
// statuses via AggregateStatus.
type BatchStatus string

const (
	BatchCreated            BatchStatus = "created"
	BatchUploading          BatchStatus = "uploading"
	BatchProcessing         BatchStatus = "processing"
	BatchProcessingComplete BatchStatus = "processing_complete"
	BatchReviewReady        BatchStatus = "review_ready"
	BatchUnderReview        BatchStatus = "under_review"
	BatchReviewComplete     BatchStatus = "review_complete"
	BatchCompleted          BatchStatus = "completed"
	BatchPartiallyCompleted BatchStatus = "partially_completed"
	BatchFailed             BatchStatus = "failed"
	BatchCancelled          BatchStatus = "cancelled"
)

var fileStatuses = map[FileStatus]struct{}{
	StatusUploading:            {},
	StatusUploaded:             {},
	StatusUploadFailed:         {},
	StatusQueued:               {},
	StatusExtractingText:       {},
	StatusExtractionFailed:     {},
	StatusAnalyzingMetadata:    {},
	StatusAnalysisFailed:       {},
	StatusGeneratingEmbeddings: {},
	StatusEmbeddingFailed:      {},
	StatusProcessingComplete:   {},
	StatusReviewPending:        {},
	StatusUnderReview:          {},
	StatusApproved:             {},
	StatusRejected:             {},
	StatusDuplicate:            {},
	StatusCancelled:            {},
	StatusRetryPending:         {},
}

// ValidFileStatus reports whether s is one of the enumerated file statuses.
func ValidFileStatus(s FileStatus) bool {
	_, ok := fileStatuses[s]
	return ok
}

// IsTerminal reports whether no further automatic transition occurs from s.
// Upload failures are terminal because they are never retried automatically;
// approved/rejected/cancelled/duplicate end the workflow outright. Files
// sitting in extraction/analysis/embedding failure states with exhausted
// retries also stay put, but those statuses remain cancellable so they are
// not terminal here.
func IsTerminal(s FileStatus) bool {
	switch s {
	case StatusApproved, StatusRejected, StatusCancelled, StatusDuplicate, StatusUploadFailed:
		return true
	default:
		return false
	}
}

// IsFailed reports whether s is one of the stage failure statuses.
func IsFailed(s FileStatus) bool {
	switch s {
	case StatusExtractionFailed, StatusAnalysisFailed, StatusEmbeddingFailed:
		return true
	default:
		return false
	}
}

// isActivePipeline reports whether the file is still inside the automated
// pipeline (waiting or running) and will progress without human action.
func isActivePipeline(s FileStatus) bool {
	switch s {
	case StatusUploaded, StatusQueued, StatusRetryPending,
		StatusExtractingText, StatusAnalyzingMetadata, StatusGeneratingEmbeddings:
		return true
	default:
		return false
	}
}
