package progress

import "time"

// DefaultBackoffSeed is the first reconnect delay.
const DefaultBackoffSeed = time.Second

// Backoff returns the delay before the attempt-th consecutive reconnect:
// seed doubled attempt-1 times, capped at ceiling.
func Backoff(attempt int, seed, ceiling time.Duration) time.Duration {
	if seed <= 0 {
		seed = DefaultBackoffSeed
	}
	if ceiling <= 0 {
		ceiling = 30 * seed
	}
	d := seed
	for i := 1; i < attempt; i++ {
		if d >= ceiling/2 {
			return ceiling
		}
		d *= 2
	}
	if d > ceiling {
		return ceiling
	}
	return d
}
