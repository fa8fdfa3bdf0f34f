// Package stt defines the inbound speech-to-text hypothesis stream the
// coordinator consumes. The actual recognizer is an external collaborator;
// this package only describes the contract and ships a deterministic stub
// for tests and local development.
package stt

import (
	"context"
	"time"
)

// HypothesisEvent is one emission from the speech-to-text source: either a
// revisable interim hypothesis or a confirmed final.
type HypothesisEvent struct {
	// Text is the UTF-8 transcript text, not yet trimmed.
	Text string
	// IsFinal marks this event as a confirmed, immutable utterance.
	IsFinal bool
	// DetectedLanguage is the optional source-language tag the STT engine
	// reports. The coordinator treats the configured source language as
	// authoritative and carries this only for observability.
	DetectedLanguage string
	// ArrivedAt is the monotonic arrival timestamp assigned by the source.
	ArrivedAt time.Time
}

// Source is a lazy, unbounded stream of HypothesisEvents in production
// order. The returned channel is closed when the underlying stream ends;
// the error channel carries a single terminal error, if any.
type Source interface {
	// Stream begins producing hypothesis events for the given session until
	// ctx is cancelled or the upstream source ends.
	Stream(ctx context.Context, sessionID string) (<-chan HypothesisEvent, <-chan error)
}
