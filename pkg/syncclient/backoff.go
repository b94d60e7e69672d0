package syncclient

import "time"

const (
	DefaultBaseDelay   = time.Second
	DefaultMaxAttempts = 5
	maxJitterFraction  = 0.1
)

// Backoff returns the delay before reconnect attempt (1-based):
// base*2^(attempt-1) plus jitter*10% of that, with jitter in [0, 1).
func Backoff(base time.Duration, attempt int, jitter float64) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := base << (attempt - 1)
	if jitter < 0 {
		jitter = 0
	}
	if jitter >= 1 {
		jitter = 1
	}
	return delay + time.Duration(jitter*maxJitterFraction*float64(delay))
}
