package coordinator

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"streamlation/packages/backend/delta"
	"streamlation/packages/backend/stt"
)

// Ingestor is the Event Ingestor (C1). It consumes the raw hypothesis
// stream, dedupes interim text, allocates sequence numbers for finals, and
// drives C3 and C4.
type Ingestor struct {
	config *Config
	sink   Sink
	interim *InterimTranslator
	batch   *BatchTranslator
	logger  *zap.SugaredLogger

	mu            sync.Mutex
	nextSequence  uint64
	lastInterim   string // dedupe baseline; reset when a final arrives
	lastOriginal  string // delta baseline for the original stream shown to the UI
}

// NewIngestor constructs a C1 instance wired to the given C3/C4 and sink.
func NewIngestor(cfg *Config, sink Sink, interim *InterimTranslator, batch *BatchTranslator, logger *zap.SugaredLogger) *Ingestor {
	return &Ingestor{
		config:  cfg,
		sink:    sink,
		interim: interim,
		batch:   batch,
		logger:  logger,
	}
}

// Handle classifies and routes one hypothesis event. Malformed events
// (empty text after trimming) are logged and skipped without aborting the
// session.
func (ig *Ingestor) Handle(ctx context.Context, ev stt.HypothesisEvent) {
	text := strings.TrimSpace(ev.Text)
	if text == "" {
		ig.logger.Debugw("discarding empty hypothesis event", "isFinal", ev.IsFinal)
		return
	}

	if !ev.IsFinal {
		ig.handleInterim(ctx, text, ev.DetectedLanguage)
		return
	}
	ig.handleFinal(ctx, text, ev.DetectedLanguage)
}

func (ig *Ingestor) handleInterim(ctx context.Context, text, detectedLang string) {
	ig.mu.Lock()
	if text == ig.lastInterim {
		ig.mu.Unlock()
		return
	}
	ig.lastInterim = text
	cfg := ig.config.Snapshot()
	var outbound *OutboundMessage
	if !cfg.SyncDisplayMode {
		outbound = &OutboundMessage{
			Type: KindInterim,
			Original: TextBlock{
				FullText: text,
				Delta:    delta.Compute(ig.lastOriginal, text),
				Language: cfg.SourceLang,
			},
			TimestampMs: time.Now().UnixMilli(),
		}
		ig.lastOriginal = text
	}
	ig.mu.Unlock()

	if outbound != nil {
		if err := ig.sink.Send(ctx, *outbound); err != nil {
			ig.logger.Errorw("failed to deliver interim original", "error", err)
		}
	}

	ig.interim.Submit(ctx, text)
}

func (ig *Ingestor) handleFinal(ctx context.Context, text, detectedLang string) {
	ig.interim.Cancel()

	ig.mu.Lock()
	sequence := ig.nextSequence
	ig.nextSequence++
	ig.lastInterim = ""
	ig.lastOriginal = ""
	ig.mu.Unlock()

	ig.interim.ResetDeliveredSnapshots()

	cfg := ig.config.Snapshot()
	ig.batch.Submit(Sentence{
		Sequence:     sequence,
		SourceText:   text,
		SourceLang:   cfg.SourceLang,
		DetectedLang: detectedLang,
		EnqueuedAt:   time.Now(),
	})
}

// NextSequence reports the next sequence number that will be allocated.
// Exposed for tests and diagnostics.
func (ig *Ingestor) NextSequence() uint64 {
	ig.mu.Lock()
	defer ig.mu.Unlock()
	return ig.nextSequence
}
