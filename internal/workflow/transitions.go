package workflow

// transitionRule maps an event to its target status and the set of statuses
// it may fire from.
type transitionRule struct {
	from map[FileStatus]struct{}
	to   FileStatus
}

func from(statuses ...FileStatus) map[FileStatus]struct{} {
	set := make(map[FileStatus]struct{}, len(statuses))
	for _, s := range statuses {
		set[s] = struct{}{}
	}
	return set
}

// transitionTable is the single canonical adjacency table. Every status write
// in the system validates against it; there are no other paths to mutate a
// file's status.
var transitionTable = map[EventType]transitionRule{
	EventUploaded:     {from(StatusUploading), StatusUploaded},
	EventUploadFailed: {from(StatusUploading), StatusUploadFailed},

	EventQueued:            {from(StatusUploaded, StatusRetryPending), StatusQueued},
	EventDuplicateDetected: {from(StatusUploaded), StatusDuplicate},

	EventExtractionStarted: {from(StatusQueued), StatusExtractingText},
	EventTextExtracted:     {from(StatusExtractingText), StatusAnalyzingMetadata},
	EventExtractionFailed:  {from(StatusExtractingText), StatusExtractionFailed},

	EventMetadataExtracted: {from(StatusAnalyzingMetadata), StatusGeneratingEmbeddings},
	EventAnalysisFailed:    {from(StatusAnalyzingMetadata), StatusAnalysisFailed},

	EventEmbeddingsGenerated: {from(StatusGeneratingEmbeddings), StatusProcessingComplete},
	EventEmbeddingFailed:     {from(StatusGeneratingEmbeddings), StatusEmbeddingFailed},

	EventReviewReady:    {from(StatusProcessingComplete), StatusReviewPending},
	EventReviewStarted:  {from(StatusReviewPending), StatusUnderReview},
	EventReviewReturned: {from(StatusUnderReview), StatusReviewPending},
	EventApproved:       {from(StatusUnderReview), StatusApproved},
	EventRejected:       {from(StatusUnderReview), StatusRejected},

	// Cancellation is validated separately: any non-terminal status.
	EventCancelled: {nil, StatusCancelled},
}

// NextStatus returns the status the event moves a file into from current, or
// false when the transition is not in the table.
func NextStatus(current FileStatus, event EventType) (FileStatus, bool) {
	rule, ok := transitionTable[event]
	if !ok {
		return "", false
	}
	if event == EventCancelled {
		if IsTerminal(current) {
			return "", false
		}
		return StatusCancelled, true
	}
	if _, ok := rule.from[current]; !ok {
		return "", false
	}
	return rule.to, true
}

// Allowed reports whether the event may fire from the current status.
func Allowed(current FileStatus, event EventType) bool {
	_, ok := NextStatus(current, event)
	return ok
}
