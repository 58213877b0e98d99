package workflow

// BatchCounts summarizes a batch's files for the cached counters on the
// batch row.
type BatchCounts struct {
	Total     int
	Processed int
	Completed int
	Failed    int
}

// CountStatuses derives the batch counters from the file statuses.
// Processed counts files that left the automated pipeline; Completed counts
// approvals; Failed counts stage/upload failures, cancellations, and
// duplicates.
func CountStatuses(statuses []FileStatus) BatchCounts {
	counts := BatchCounts{Total: len(statuses)}
	for _, s := range statuses {
		switch {
		case s == StatusApproved:
			counts.Completed++
			counts.Processed++
		case s == StatusRejected:
			counts.Processed++
		case IsFailed(s) || s == StatusUploadFailed || s == StatusCancelled || s == StatusDuplicate:
			counts.Failed++
			counts.Processed++
		case s == StatusProcessingComplete || s == StatusReviewPending || s == StatusUnderReview:
			counts.Processed++
		}
	}
	return counts
}

// AggregateStatus computes the batch status from the multiset of file
// statuses. It is a pure function; rules are evaluated in order and the first
// match wins, so any multiset maps to exactly one status. The explicit
// user-cancelled batch override is handled by the caller, not here.
func AggregateStatus(statuses []FileStatus) BatchStatus {
	if len(statuses) == 0 {
		return BatchCreated
	}

	var (
		anyUploading     bool
		anyActive        bool
		anyProcComplete  bool
		anyReviewPending bool
		anyUnderReview   bool
		approved         int
		rejected         int
		failedLike       int
	)
	for _, s := range statuses {
		switch {
		case s == StatusUploading:
			anyUploading = true
		case isActivePipeline(s):
			anyActive = true
		case s == StatusProcessingComplete:
			anyProcComplete = true
		case s == StatusReviewPending:
			anyReviewPending = true
		case s == StatusUnderReview:
			anyUnderReview = true
		case s == StatusApproved:
			approved++
		case s == StatusRejected:
			rejected++
		default:
			// upload_failed, *_failed, cancelled, duplicate
			failedLike++
		}
	}

	switch {
	case anyUploading:
		return BatchUploading
	case anyActive:
		return BatchProcessing
	case anyProcComplete:
		return BatchProcessingComplete
	case anyUnderReview:
		return BatchUnderReview
	case anyReviewPending:
		return BatchReviewReady
	}

	// Every file is now in a decided or failed terminal status.
	total := len(statuses)
	switch {
	case approved == total:
		return BatchCompleted
	case approved > 0:
		return BatchPartiallyCompleted
	case rejected > 0:
		return BatchReviewComplete
	case failedLike == total:
		return BatchFailed
	default:
		return BatchFailed
	}
}
