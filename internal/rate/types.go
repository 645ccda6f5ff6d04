package rate

import (
	"fmt"
	"time"
)

// Limit is an outbound request budget for one provider.
type Limit struct {
	Provider string
	// PerMinute is the bucket capacity, refilled evenly over a minute.
	PerMinute int
	// MaxCooldown caps how long a Retry-After header may pause requests.
	MaxCooldown time.Duration
}

func (l Limit) Enabled() bool {
	return l.PerMinute > 0
}

// Reason explains why a request was blocked locally.
type Reason string

const (
	ReasonBudget   Reason = "budget"
	ReasonCooldown Reason = "cooldown"
)

// Decision is the outcome of Guard.Allow.
type Decision struct {
	Allowed bool
	Reason  Reason
	RetryAt time.Time
}

// RateLimitError is returned instead of performing a request the budget
// does not cover.
type RateLimitError struct {
	Provider string
	Reason   Reason
	RetryAt  time.Time
}

func (e *RateLimitError) Error() string {
	if e.RetryAt.IsZero() {
		return fmt.Sprintf("%s: rate limited (%s)", e.Provider, e.Reason)
	}
	return fmt.Sprintf("%s: rate limited (%s) until %s", e.Provider, e.Reason, e.RetryAt.Format(time.RFC3339))
}

// Temporary marks the error as retryable for callers that check it.
func (e *RateLimitError) Temporary() bool { return true }
