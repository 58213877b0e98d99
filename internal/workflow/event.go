package workflow

import "time"

// EventType identifies a workflow trigger reported by one of the engine's
// collaborators (upload handler, pipeline workers, review API, retry
// dispatcher).
type EventType string

const (
	EventUploaded     EventType = "uploaded"
	EventUploadFailed EventType = "upload_failed"

	EventQueued            EventType = "queued"
	EventDuplicateDetected EventType = "duplicate_detected"

	EventExtractionStarted EventType = "extraction_started"
	EventTextExtracted     EventType = "text_extracted"
	EventExtractionFailed  EventType = "extraction_failed"

	EventMetadataExtracted EventType = "metadata_extracted"
	EventAnalysisFailed    EventType = "analysis_failed"

	EventEmbeddingsGenerated EventType = "embeddings_generated"
	EventEmbeddingFailed     EventType = "embedding_failed"

	EventReviewReady    EventType = "review_ready"
	EventReviewStarted  EventType = "review_started"
	EventReviewReturned EventType = "review_returned"
	EventApproved       EventType = "approved"
	EventRejected       EventType = "rejected"

	EventCancelled EventType = "cancelled"
)

// TextStats carries extraction results attached to a TextExtracted event.
type TextStats struct {
	WordCount int
	PageCount int
	CharCount int
}

// Metadata carries the AI-derived fields attached to a MetadataExtracted
// event. Field names mirror the document record they eventually populate.
type Metadata struct {
	Title            string
	Authors          []string
	PublicationDate  string
	DocType          string
	DocCategory      string
	Description      string
	Keywords         []string
	BluebookCitation string
	Confidence       map[string]float64
}

// Event is a single workflow trigger for one file. Only the payload fields
// relevant to the event type are consulted.
type Event struct {
	Type EventType

	// Failure payload.
	ErrorMessage string
	ErrorDetails map[string]any

	// Stage-completion payloads.
	Stats      *TextStats
	Metadata   *Metadata
	ChunkCount int

	// Review payload.
	ReviewerID  string
	ReviewNotes string

	// OccurredAt defaults to the engine clock when zero.
	OccurredAt time.Time
}

// isStageEvent reports whether the event is produced by an automated pipeline
// stage. Stage events arriving for a file that already reached a terminal
// status are discarded as no-ops (a cancelled file's in-flight extraction may
// still complete), whereas user-initiated events are rejected.
func (e Event) isStageEvent() bool {
	switch e.Type {
	case EventQueued, EventExtractionStarted, EventTextExtracted, EventExtractionFailed,
		EventMetadataExtracted, EventAnalysisFailed,
		EventEmbeddingsGenerated, EventEmbeddingFailed, EventReviewReady:
		return true
	default:
		return false
	}
}
