package httpapi

import (
	"crypto/rand"
	"encoding/binary"
	"time"
)

// jitterFactor is the maximum jitter percentage applied to a 429 retry
// wait when Discord doesn't send a Retry-After header.
const jitterFactor = 0.5

// rateLimitWait computes how long to wait before retrying a 429, adding
// up to 50% jitter to the base delay to avoid a thundering herd of
// retries landing on the same instant.
func rateLimitWait(base time.Duration) time.Duration {
	return base + randomJitter(base)
}

// randomJitter returns a random duration between 0 and jitterFactor*delay,
// using crypto/rand so concurrent clients don't correlate their retries.
func randomJitter(delay time.Duration) time.Duration {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0
	}

	randUint := binary.BigEndian.Uint64(buf[:])
	randFloat := float64(randUint) / float64(^uint64(0))

	jitterNanos := randFloat * jitterFactor * float64(delay.Nanoseconds())
	return time.Duration(jitterNanos)
}
