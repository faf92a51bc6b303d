package coingecko

import (
	"fmt"
	"net/http"
	"time"
)

// StatusError is returned once the retry budget is exhausted. It carries the
// last HTTP status so callers can distinguish persistent rate limiting from
// other upstream failures.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("coingecko: status %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("coingecko: status %d", e.Status)
}

// RateLimited reports whether the final failure was HTTP 429.
func (e *StatusError) RateLimited() bool {
	return e.Status == http.StatusTooManyRequests
}

// RetryPolicy decides, after a failed attempt, whether to try again and how
// long to wait first. Rate-limit responses back off linearly
// (attempt × BaseDelay: 2s, 4s, ...); other failures wait a flat BaseDelay.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// NextDelay is called with the 1-based index of the attempt that just failed
// and the HTTP status it observed (0 for a network error). The second return
// is false when the budget is exhausted.
func (p RetryPolicy) NextDelay(attempt, lastStatus int) (time.Duration, bool) {
	if attempt >= p.MaxAttempts {
		return 0, false
	}
	if lastStatus == http.StatusTooManyRequests {
		return time.Duration(attempt) * p.BaseDelay, true
	}
	return p.BaseDelay, true
}
