package outbox

import (
	"math/rand"
	"time"
)

// backoff returns 1s * 2^(attempts-1), capped at maxBackoff.
func backoff(attempts int, maxBackoff time.Duration) time.Duration {
	if attempts <= 0 {
		return 0
	}
	if attempts > 31 {
		return maxBackoff
	}
	d := time.Second << uint(attempts-1)
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}

// jitter returns a duration in [0, maxJitter].
func jitter(r *rand.Rand, maxJitter time.Duration) time.Duration {
	if maxJitter <= 0 || r == nil {
		return 0
	}
	return time.Duration(r.Int63n(int64(maxJitter) + 1)) //nolint:gosec
}
