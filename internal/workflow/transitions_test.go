package workflow

import "testing"

func TestNextStatusHappyPath(t *testing.T) {
	steps := []struct {
		current FileStatus
		event   EventType
		want    FileStatus
	}{
		{StatusUploading, EventUploaded, StatusUploaded},
		{StatusUploaded, EventQueued, StatusQueued},
		{StatusQueued, EventExtractionStarted, StatusExtractingText},
		{StatusExtractingText, EventTextExtracted, StatusAnalyzingMetadata},
		{StatusAnalyzingMetadata, EventMetadataExtracted, StatusGeneratingEmbeddings},
		{StatusGeneratingEmbeddings, EventEmbeddingsGenerated, StatusProcessingComplete},
		{StatusProcessingComplete, EventReviewReady, StatusReviewPending},
		{StatusReviewPending, EventReviewStarted, StatusUnderReview},
		{StatusUnderReview, EventApproved, StatusApproved},
	}
	for _, step := range steps {
		got, ok := NextStatus(step.current, step.event)
		if !ok {
			t.Fatalf("NextStatus(%s, %s): not allowed", step.current, step.event)
		}
		if got != step.want {
			t.Fatalf("NextStatus(%s, %s) = %s, want %s", step.current, step.event, got, step.want)
		}
	}
}

func TestNextStatusFailurePaths(t *testing.T) {
	steps := []struct {
		current FileStatus
		event   EventType
		want    FileStatus
	}{
		{StatusUploading, EventUploadFailed, StatusUploadFailed},
		{StatusExtractingText, EventExtractionFailed, StatusExtractionFailed},
		{StatusAnalyzingMetadata, EventAnalysisFailed, StatusAnalysisFailed},
		{StatusGeneratingEmbeddings, EventEmbeddingFailed, StatusEmbeddingFailed},
		{StatusUploaded, EventDuplicateDetected, StatusDuplicate},
		{StatusRetryPending, EventQueued, StatusQueued},
		{StatusUnderReview, EventRejected, StatusRejected},
		{StatusUnderReview, EventReviewReturned, StatusReviewPending},
	}
	for _, step := range steps {
		got, ok := NextStatus(step.current, step.event)
		if !ok || got != step.want {
			t.Fatalf("NextStatus(%s, %s) = %s/%t, want %s", step.current, step.event, got, ok, step.want)
		}
	}
}

func TestNextStatusRejectsEverythingOutsideTable(t *testing.T) {
	allStatuses := make([]FileStatus, 0, len(fileStatuses))
	for s := range fileStatuses {
		allStatuses = append(allStatuses, s)
	}
	allEvents := []EventType{
		EventUploaded, EventUploadFailed, EventQueued, EventDuplicateDetected,
		EventExtractionStarted, EventTextExtracted, EventExtractionFailed,
		EventMetadataExtracted, EventAnalysisFailed,
		EventEmbeddingsGenerated, EventEmbeddingFailed,
		EventReviewReady, EventReviewStarted, EventReviewReturned,
		EventApproved, EventRejected, EventCancelled,
	}

	for _, s := range allStatuses {
		for _, ev := range allEvents {
			next, ok := NextStatus(s, ev)
			if !ok {
				continue
			}
			if !ValidFileStatus(next) {
				t.Fatalf("NextStatus(%s, %s) produced unknown status %s", s, ev, next)
			}
			if ev == EventCancelled {
				if IsTerminal(s) {
					t.Fatalf("cancel allowed from terminal status %s", s)
				}
				continue
			}
			rule := transitionTable[ev]
			if _, allowed := rule.from[s]; !allowed {
				t.Fatalf("NextStatus(%s, %s) allowed outside the table", s, ev)
			}
		}
	}

	// Spot checks for transitions that must never be allowed.
	denied := []struct {
		current FileStatus
		event   EventType
	}{
		{StatusUploaded, EventTextExtracted},
		{StatusQueued, EventEmbeddingsGenerated},
		{StatusApproved, EventCancelled},
		{StatusCancelled, EventQueued},
		{StatusReviewPending, EventApproved},
		{StatusProcessingComplete, EventReviewStarted},
		{StatusExtractionFailed, EventExtractionStarted},
	}
	for _, d := range denied {
		if Allowed(d.current, d.event) {
			t.Fatalf("Allowed(%s, %s) = true, want false", d.current, d.event)
		}
	}
}

func TestCancelAllowedFromAnyNonTerminal(t *testing.T) {
	for s := range fileStatuses {
		got, ok := NextStatus(s, EventCancelled)
		if IsTerminal(s) {
			if ok {
				t.Fatalf("cancel from %s should be rejected", s)
			}
			continue
		}
		if !ok || got != StatusCancelled {
			t.Fatalf("cancel from %s = %s/%t, want cancelled", s, got, ok)
		}
	}
}

func TestTerminalStatuses(t *testing.T) {
	terminal := []FileStatus{StatusApproved, StatusRejected, StatusCancelled, StatusDuplicate, StatusUploadFailed}
	for _, s := range terminal {
		if !IsTerminal(s) {
			t.Fatalf("IsTerminal(%s) = false, want true", s)
		}
	}
	nonTerminal := []FileStatus{StatusUploading, StatusQueued, StatusExtractionFailed, StatusRetryPending, StatusUnderReview}
	for _, s := range nonTerminal {
		if IsTerminal(s) {
			t.Fatalf("IsTerminal(%s) = true, want false", s)
		}
	}
}
