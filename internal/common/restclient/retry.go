package restclient

import (
	"time"

	"github.com/eduramiba/auth0-pkce-login/internal/common/resterror"
)

// Default retry policy values.
const (
	DefaultAttempts = 3
)

// DefaultDelays is the default backoff schedule: 1s, then 2s, with the last
// value reused for any remaining attempts.
var DefaultDelays = []time.Duration{1 * time.Second, 2 * time.Second}

// RetryPolicy governs whether, how many times, and after what delay a failed
// request is re-attempted.
type RetryPolicy struct {
	// Attempts is the total number of attempts, including the first.
	Attempts uint
	// Delays is the backoff schedule indexed by completed attempts. The
	// last value is reused once the schedule is exhausted.
	Delays []time.Duration
	// Classify decides whether the classified error is worth retrying.
	Classify func(*resterror.Error) bool
}

// DefaultRetryPolicy returns the standard policy: 3 attempts, delays of 1s
// then 2s, retrying every failure except those the taxonomy marks terminal.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Attempts: DefaultAttempts,
		Delays:   DefaultDelays,
		Classify: func(e *resterror.Error) bool { return e.Retryable() },
	}
}

// DelayFor returns the backoff delay after the given zero-based attempt.
func (p RetryPolicy) DelayFor(attempt uint) time.Duration {
	if len(p.Delays) == 0 {
		return 0
	}
	if int(attempt) >= len(p.Delays) {
		return p.Delays[len(p.Delays)-1]
	}
	return p.Delays[attempt]
}

func (p RetryPolicy) shouldRetry(e *resterror.Error) bool {
	if p.Classify == nil {
		return e.Retryable()
	}
	return p.Classify(e)
}
