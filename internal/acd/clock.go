package acd

import (
	"math/rand/v2"
	"time"
)

// Clock sources monotonic time. Injectable so tests can drive the
// state machine without real timers; see spec.md §9 "Global state".
type Clock interface {
	Now() time.Time
}

// Rand sources the uniform integer draws RFC 5227 calls for (U[0, X)).
// Injectable for deterministic tests.
type Rand interface {
	// UniformDuration returns a uniform random duration in [0, n). If
	// n <= 0 it returns 0 — "X = 0 means no randomization is added"
	// per spec.md §4.4.
	UniformDuration(n time.Duration) time.Duration
}

// systemClock is the production Clock, backed by time.Now. Go's
// runtime clock is monotonic-aware for duration comparisons, which is
// what the reactor and the state machine both rely on.
type systemClock struct{}

// NewSystemClock returns the production Clock.
func NewSystemClock() Clock { return systemClock{} }

func (systemClock) Now() time.Time { return time.Now() }

// systemRand is the production Rand, backed by math/rand/v2 (the
// idiomatic non-cryptographic source for scheduling jitter).
type systemRand struct{}

// NewSystemRand returns the production Rand.
func NewSystemRand() Rand { return systemRand{} }

func (systemRand) UniformDuration(n time.Duration) time.Duration {
	if n <= 0 {
		return 0
	}
	return time.Duration(rand.Int64N(int64(n)))
}
