package workflow

import "time"

// MaxRetries is the number of automatic retries granted to a file after a
// stage failure. Once exhausted the file stays in its failed status for
// manual intervention.
const MaxRetries = 3

// RetryDelay returns the backoff before the attempt-th retry re-enters the
// queue: 2, 4, 8 minutes for attempts 1..3. attempt is the retry counter
// after incrementing.
func RetryDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return time.Duration(1<<uint(attempt)) * time.Minute
}

// RetryDecision is the engine's verdict after a stage failure.
type RetryDecision struct {
	// Schedule is true when the file should move to retry_pending and be
	// re-queued after Delay.
	Schedule bool
	// Attempt is the retry counter after this decision (unchanged when
	// Schedule is false).
	Attempt int
	Delay   time.Duration
}

// decideRetry applies the retry policy to a file that just entered a failed
// status with the given prior retry count.
func decideRetry(retryCount int) RetryDecision {
	if retryCount >= MaxRetries {
		return RetryDecision{Schedule: false, Attempt: retryCount}
	}
	attempt := retryCount + 1
	return RetryDecision{Schedule: true, Attempt: attempt, Delay: RetryDelay(attempt)}
}
