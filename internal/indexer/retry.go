package indexer

import (
	"context"
	"time"
)

// Defaults for the per-chunk retry budget.
const (
	DefaultMaxAttempts  = 10
	DefaultRetryBackoff = 5 * time.Second
)

// ChunkOutcome is the terminal state of one chunk's processing.
type ChunkOutcome int

const (
	// ChunkSucceeded means fetch and commit completed.
	ChunkSucceeded ChunkOutcome = iota
	// ChunkSkipped means the retry budget was exhausted and the chunk
	// was abandoned.
	ChunkSkipped
	// ChunkAborted means the context was cancelled mid-chunk.
	ChunkAborted
)

// RetryPolicy bounds how often a chunk attempt runs before the chunk is
// skipped. An attempt is the full fetch+commit sequence; any error counts
// against the budget regardless of its cause.
type RetryPolicy struct {
	MaxAttempts int           // total attempts per chunk
	Backoff     time.Duration // fixed wait between attempts
}

// Execute runs attempt until it succeeds or the budget is exhausted, waiting
// a fixed backoff between attempts. It returns the outcome, the number of
// attempts made, and the last error. The in-flight attempt always runs to
// completion; only the backoff wait observes cancellation.
func (p RetryPolicy) Execute(ctx context.Context, attempt func(context.Context) error) (ChunkOutcome, int, error) {
	maxAttempts := p.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	backoff := p.Backoff
	if backoff <= 0 {
		backoff = DefaultRetryBackoff
	}

	var lastErr error
	for n := 1; n <= maxAttempts; n++ {
		lastErr = attempt(ctx)
		if lastErr == nil {
			return ChunkSucceeded, n, nil
		}
		if n == maxAttempts {
			return ChunkSkipped, n, lastErr
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ChunkAborted, n, ctx.Err()
		case <-timer.C:
		}
	}

	// Unreachable: the loop always returns.
	return ChunkSkipped, maxAttempts, lastErr
}
