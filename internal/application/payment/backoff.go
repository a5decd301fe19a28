package payment

import (
	"time"
)

// BackoffPolicy computes the delay before the n-th retry of a failed
// submission: base doubled per prior attempt, capped.
type BackoffPolicy struct {
	Base time.Duration
	Cap  time.Duration
}

// DefaultBackoff mirrors the configuration defaults.
func DefaultBackoff() BackoffPolicy {
	return BackoffPolicy{Base: 1 * time.Second, Cap: 5 * time.Minute}
}

// Delay returns the backoff for a payment that has already failed
// priorAttempts times.
func (b BackoffPolicy) Delay(priorAttempts int) time.Duration {
	if priorAttempts < 0 {
		priorAttempts = 0
	}
	d := b.Base
	for i := 0; i < priorAttempts; i++ {
		d *= 2
		if d >= b.Cap {
			return b.Cap
		}
	}
	if d > b.Cap {
		return b.Cap
	}
	return d
}
