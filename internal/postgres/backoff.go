package postgres

import (
	"math"
	"math/rand"
	"time"
)

// backoff computes the delay before a retryable task becomes available
// again, given its attempt number (1-indexed: the attempt that just
// failed). Exponential with a jitter floor: with d = base * 2^(attempt-1),
// capped at 1h, the delay is drawn uniformly from [d/2, d]. Base 1s — spec.md
// leaves the exact curve open; this matches the ceiling the periodic
// scheduler's own self-reinsertion tolerates without drifting more than an
// hour off its cron schedule.
const (
	backoffBase = time.Second
	backoffCap  = time.Hour
)

func backoff(attempt int16) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	exp := math.Pow(2, float64(attempt-1)) * float64(backoffBase)
	capped := math.Min(exp, float64(backoffCap))
	floor := int64(capped) / 2
	return time.Duration(floor + rand.Int63n(int64(capped)-floor+1))
}
