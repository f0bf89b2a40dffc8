package batch

import "time"

// backoffBaseDelay is the base delay for all three backoff strategies.
const backoffBaseDelay = 1000 * time.Millisecond

// computeRetryDelay calculates the delay before an item's next attempt,
// given the retry count of the failure that just occurred (0 for the first
// failure) and the phase's chosen backoff strategy.
//
// Factors: 2^r (exponential), r+1 (linear), 1 (constant). No jitter is
// added: the delay formula is exact (base * factor(r)), and a retried item
// is re-enqueued within the same phase pass rather than across a large
// shared worker pool, so there is no thundering-herd concern to jitter away.
func computeRetryDelay(retryCount int, backoff Backoff) time.Duration {
	switch backoff {
	case BackoffLinear:
		return backoffBaseDelay * time.Duration(retryCount+1)
	case BackoffConstant:
		return backoffBaseDelay
	case BackoffExponential:
		fallthrough
	default:
		return backoffBaseDelay * time.Duration(int64(1)<<uint(retryCount))
	}
}

// Validate checks a RetryStrategy's invariant (retryCount <= maxRetries, so
// MaxRetries must be non-negative) and that Backoff names a known strategy.
func (rs RetryStrategy) Validate() error {
	if rs.MaxRetries < 0 {
		return ErrInvalidRetryPolicy
	}
	switch rs.Backoff {
	case BackoffExponential, BackoffLinear, BackoffConstant, "":
		return nil
	default:
		return ErrInvalidRetryPolicy
	}
}

// resolve fills an unset Backoff with the default strategy.
func (rs RetryStrategy) resolve() RetryStrategy {
	if rs.Backoff == "" {
		rs.Backoff = BackoffExponential
	}
	return rs
}
