package dispatch

import (
	"time"

	"scribed/internal/config"
)

// Backoff computes retry delays. Delay is a pure function of the attempt
// number and the supplied random source, so tests can pin the jitter.
type Backoff struct {
	Base time.Duration
	Cap  time.Duration
}

// BackoffFromConfig reads the provider's backoff parameters.
func BackoffFromConfig(cfg config.Provider) Backoff {
	return Backoff{
		Base: time.Duration(cfg.BackoffBaseMS) * time.Millisecond,
		Cap:  time.Duration(cfg.BackoffCapMS) * time.Millisecond,
	}
}

// Delay returns the wait before retry number attempt (zero-based for the
// first retry): min(base<<attempt, cap) plus jitter drawn from
// [0, base<<attempt), with both halves clamped to the cap. rnd must return a
// value in [0, n) for n > 0.
func (b Backoff) Delay(attempt int, rnd func(n int64) int64) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	exp := b.Base
	for i := 0; i < attempt; i++ {
		exp <<= 1
		if exp <= 0 || exp >= b.Cap {
			exp = b.Cap
			break
		}
	}
	if exp > b.Cap {
		exp = b.Cap
	}
	delay := exp
	if exp > 0 && rnd != nil {
		jitter := time.Duration(rnd(int64(exp)))
		if jitter > b.Cap {
			jitter = b.Cap
		}
		delay += jitter
	}
	return delay
}
