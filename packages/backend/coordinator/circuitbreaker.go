package coordinator

import (
	"sync"
	"time"
)

// CircuitBreaker is the optional consecutive-failure guard spec §7 leaves
// as an implementation choice. It is disabled by default (Threshold 0),
// matching the original agent this spec was distilled from, which carries
// no breaker at all: enabling it is an opt-in resolution of that Open
// Question, not a change to default observable behavior.
type CircuitBreaker struct {
	mu sync.Mutex

	// Threshold is the number of consecutive permanent failures that
	// trips the breaker. Zero disables it.
	Threshold int
	// Cooldown is how long the breaker stays open before half-opening.
	Cooldown time.Duration

	consecutive int
	openUntil   time.Time
}

// NewCircuitBreaker constructs a breaker with the given threshold and
// cooldown. A zero threshold disables the breaker permanently.
func NewCircuitBreaker(threshold int, cooldown time.Duration) *CircuitBreaker {
	return &CircuitBreaker{Threshold: threshold, Cooldown: cooldown}
}

// Allow reports whether a translation call should be attempted right now.
func (b *CircuitBreaker) Allow(now time.Time) bool {
	if b == nil || b.Threshold <= 0 {
		return true
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.openUntil.IsZero() {
		return true
	}
	if now.After(b.openUntil) {
		// Half-open: let one probe through by resetting the window and
		// leaving the count one short of the threshold, so the caller's
		// subsequent RecordResult will re-open on failure.
		b.openUntil = time.Time{}
		b.consecutive = b.Threshold - 1
		return true
	}
	return false
}

// RecordResult updates the consecutive-failure count. kindPermanent
// failures count toward the threshold; any other result resets it.
func (b *CircuitBreaker) RecordResult(now time.Time, kind errorKind, failed bool) {
	if b == nil || b.Threshold <= 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if !failed || kind != kindPermanent {
		b.consecutive = 0
		return
	}

	b.consecutive++
	if b.consecutive >= b.Threshold {
		b.openUntil = now.Add(b.Cooldown)
	}
}
