package retry

import (
	"sync/atomic"
	"time"
)

// retryStats tracks retry outcomes with atomics so the hot path takes no lock.
type retryStats struct {
	totalAttempts           atomic.Int64 // Every call to the wrapped operation
	successfulRetries       atomic.Int64 // Calls that succeeded after at least one retry
	failedRetries           atomic.Int64 // Calls that exhausted every attempt
	successfulFirstAttempts atomic.Int64 // Calls that succeeded immediately
	nonRetryable            atomic.Int64 // Calls that stopped on a non-retryable error
	maxBackoff              atomic.Int64 // Longest delay applied, in nanoseconds
}

// Stats is a point-in-time snapshot of retry activity.
type Stats struct {
	TotalAttempts     int64         `json:"total_attempts"`
	SuccessfulRetries int64         `json:"successful_retries"`
	FailedRetries     int64         `json:"failed_retries"`
	NonRetryable      int64         `json:"non_retryable"`
	AverageAttempts   float64       `json:"average_attempts"`
	MaxBackoff        time.Duration `json:"max_backoff"`
}

func (s *retryStats) recordBackoff(backoff time.Duration) {
	nanos := backoff.Nanoseconds()
	for {
		current := s.maxBackoff.Load()
		if nanos <= current || s.maxBackoff.CompareAndSwap(current, nanos) {
			return
		}
	}
}

// Stats returns a snapshot of this Retrier's counters.
func (r *Retrier) Stats() Stats {
	total := r.stats.totalAttempts.Load()
	retried := r.stats.successfulRetries.Load()
	failed := r.stats.failedRetries.Load()
	first := r.stats.successfulFirstAttempts.Load()
	nonRetryable := r.stats.nonRetryable.Load()

	avg := 1.0
	if calls := first + retried + failed + nonRetryable; calls > 0 {
		avg = float64(total) / float64(calls)
	}

	return Stats{
		TotalAttempts:     total,
		SuccessfulRetries: retried,
		FailedRetries:     failed,
		NonRetryable:      nonRetryable,
		AverageAttempts:   avg,
		MaxBackoff:        time.Duration(r.stats.maxBackoff.Load()),
	}
}
