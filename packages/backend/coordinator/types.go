// Package coordinator implements the streaming translation coordinator:
// debounced interim translation, adaptive batching of finals, strictly
// ordered dispatch, and minimal-delta outbound messages. One Coordinator
// is constructed per active session.
package coordinator

import "time"

// Sentence is one finalized utterance awaiting or undergoing translation.
type Sentence struct {
	// Sequence is the monotonic, per-session, zero-based sequence number.
	Sequence uint64
	// SourceText is the confirmed transcript text.
	SourceText string
	// SourceLang is the language this sentence was transcribed in.
	SourceLang string
	// DetectedLang is the STT-reported language tag, if any. Carried for
	// observability only; SourceLang (the configured source language)
	// remains authoritative for translation direction.
	DetectedLang string
	// EnqueuedAt is when this sentence entered the pending batch.
	EnqueuedAt time.Time
}

// TextBlock is one side (original or translation) of an outbound message.
type TextBlock struct {
	FullText string `json:"full_text"`
	Delta    string `json:"delta"`
	Language string `json:"language"`
}

// MessageKind distinguishes an evolving interim update from a confirmed
// final.
type MessageKind string

const (
	KindInterim MessageKind = "interim"
	KindFinal   MessageKind = "final"
)

// OutboundMessage is the wire shape delivered to the UI transport. A nil
// Translation means the message carries the original only: an interim
// that has not been translated yet (sync display mode off), or a final
// whose translation call failed.
type OutboundMessage struct {
	Type        MessageKind `json:"type"`
	Original    TextBlock   `json:"original"`
	Translation *TextBlock  `json:"translation"`
	TimestampMs int64       `json:"timestamp"`
	// CorrelationID links this message back to the hypothesis event or
	// sentence that produced it, for log correlation only; it is not part
	// of the wire contract's required fields.
	CorrelationID string `json:"correlation_id,omitempty"`
}
