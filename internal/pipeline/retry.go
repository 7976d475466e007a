package pipeline

import (
	"math/rand"
	"time"

	"subflow/internal/faults"
)

// RetryPolicy controls attempt budgets and backoff between attempts.
type RetryPolicy struct {
	// MaxAttempts is the budget for fully retryable categories. Categories
	// with reduced or no budget derive theirs from it, see faults.RetryBudget.
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryPolicy matches the shipped configuration defaults.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		MaxDelay:    30 * time.Second,
	}
}

// Delay returns how long to wait after a failed attempt (1-based). The wait
// doubles per attempt with jitter in the upper half, so successive delays
// never shrink. A rate-limit hint from the failed call overrides the
// computed wait, still capped at MaxDelay.
func (p RetryPolicy) Delay(attempt int, err error) time.Duration {
	if hint, ok := faults.RetryAfterHint(err); ok && hint > 0 {
		if hint > p.MaxDelay {
			return p.MaxDelay
		}
		return hint
	}
	return backoffWithJitter(attempt, p.BaseDelay, p.MaxDelay)
}

func backoffWithJitter(attempt int, base, max time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	wait := base
	for i := 1; i < attempt; i++ {
		wait *= 2
		if wait >= max {
			wait = max
			break
		}
	}
	half := wait / 2
	return half + time.Duration(rand.Int63n(int64(half)+1))
}
