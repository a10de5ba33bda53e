package client

import "time"

// retryDelay computes the wait before the next attempt. attempt is the
// zero-based index of the attempt that just failed: attempt 0 waits base
// unscaled, each further attempt doubles, never exceeding max. A positive
// server hint replaces the exponential value outright but is still clamped
// to max. Pure function, safe for concurrent use.
func retryDelay(attempt int, hint, base, max time.Duration) time.Duration {
	if hint > 0 {
		if max > 0 && hint > max {
			return max
		}
		return hint
	}
	if base <= 0 {
		return 0
	}
	delay := base
	for i := 0; i < attempt; i++ {
		delay *= 2
		if max > 0 && delay >= max {
			return max
		}
	}
	if max > 0 && delay > max {
		return max
	}
	return delay
}
