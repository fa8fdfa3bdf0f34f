package coordinator

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"streamlation/packages/backend/delta"
)

// DefaultDispatchCap is the default bound on the number of sentences the
// Ordered Dispatcher will buffer awaiting their turn. It exists purely as
// a guard against a runaway upstream; spec §4.5 calls this an
// implementation choice ("MAY cap it").
const DefaultDispatchCap = 256

type dispatchEntry struct {
	sourceText     string
	sourceLang     string
	translatedText *string
	targetLang     string
}

// Dispatcher is the Ordered Dispatcher (C5): it buffers translated finals
// keyed by sequence number and releases them strictly in order,
// regardless of the order C4 completes translation calls in.
type Dispatcher struct {
	mu         sync.Mutex
	nextToEmit uint64
	pending    map[uint64]dispatchEntry
	cap        int

	sink   Sink
	logger *zap.SugaredLogger
}

// NewDispatcher constructs a Dispatcher delivering to sink with the given
// buffer cap. A cap of zero falls back to DefaultDispatchCap.
func NewDispatcher(sink Sink, cap int, logger *zap.SugaredLogger) *Dispatcher {
	if cap <= 0 {
		cap = DefaultDispatchCap
	}
	return &Dispatcher{
		pending: make(map[uint64]dispatchEntry),
		cap:     cap,
		sink:    sink,
		logger:  logger,
	}
}

// Submit inserts the sentence's result and flushes every entry now
// releasable in sequence order. translatedText is nil when translation
// failed for that sentence; the original is still delivered.
func (d *Dispatcher) Submit(ctx context.Context, sequence uint64, sourceText, sourceLang string, translatedText *string, targetLang string) error {
	d.mu.Lock()
	if len(d.pending) >= d.cap {
		if _, exists := d.pending[sequence]; !exists {
			d.mu.Unlock()
			d.logger.Errorw("dispatch buffer overflow", "sequence", sequence, "cap", d.cap)
			return ErrDispatchOverflow
		}
	}

	d.pending[sequence] = dispatchEntry{
		sourceText:     sourceText,
		sourceLang:     sourceLang,
		translatedText: translatedText,
		targetLang:     targetLang,
	}

	var toSend []OutboundMessage
	for {
		entry, ok := d.pending[d.nextToEmit]
		if !ok {
			break
		}
		delete(d.pending, d.nextToEmit)

		msg := OutboundMessage{
			Type: KindFinal,
			Original: TextBlock{
				FullText: entry.sourceText,
				// A final is a fresh sentence: its prev snapshot is
				// always empty, so the delta is the full text.
				Delta:    delta.Compute("", entry.sourceText),
				Language: entry.sourceLang,
			},
			TimestampMs: time.Now().UnixMilli(),
		}
		if entry.translatedText != nil {
			msg.Translation = &TextBlock{
				FullText: *entry.translatedText,
				Delta:    delta.Compute("", *entry.translatedText),
				Language: entry.targetLang,
			}
		}

		toSend = append(toSend, msg)
		d.nextToEmit++
	}
	sink := d.sink
	d.mu.Unlock()

	for _, msg := range toSend {
		if err := sink.Send(ctx, msg); err != nil {
			d.logger.Errorw("failed to deliver final message", "error", err)
			return err
		}
	}
	return nil
}

// NextToEmit reports the next sequence number the dispatcher is waiting
// on. Exposed for tests and diagnostics.
func (d *Dispatcher) NextToEmit() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.nextToEmit
}

// SetSink swaps the delivery sink. Safe to call concurrently with Submit;
// any flush already in flight finishes delivering to the sink it started
// with, and every flush after the call returns uses the new one.
func (d *Dispatcher) SetSink(sink Sink) {
	d.mu.Lock()
	d.sink = sink
	d.mu.Unlock()
}
