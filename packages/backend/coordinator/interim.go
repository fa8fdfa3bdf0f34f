package coordinator

import (
	"context"
	"sync"
	"time"

	"github.com/bep/debounce"
	"go.uber.org/zap"

	"streamlation/packages/backend/delta"
	"streamlation/packages/backend/translation"
)

// InterimTranslator is the Debounced Interim Translator (C3). At most one
// task is active at a time: submit cancels whatever came before it, and
// cancel() (called by the Ingestor on a final or on teardown) discards the
// current task's partial work entirely.
//
// github.com/bep/debounce gives us the trailing-debounce primitive; we
// wrap it with our own cancellation so a superseded submit also aborts an
// in-flight translation call, not just a pending sleep.
type InterimTranslator struct {
	translator translation.Translator
	config     *Config
	sink       Sink
	logger     *zap.SugaredLogger

	mu          sync.Mutex
	generation  uint64
	cancelFunc  context.CancelFunc
	lastSource  string // last delivered interim original snapshot
	lastTrans   string // last delivered interim translation snapshot
	debouncerMu sync.Mutex
	debouncer   func(func())
	debounceFor time.Duration
}

// NewInterimTranslator constructs a C3 instance for one session.
func NewInterimTranslator(t translation.Translator, cfg *Config, sink Sink, logger *zap.SugaredLogger) *InterimTranslator {
	it := &InterimTranslator{
		translator: t,
		config:     cfg,
		sink:       sink,
		logger:     logger,
	}
	it.rebuildDebouncer(cfg.Snapshot().DebounceMs)
	cfg.OnChange(func(rc RuntimeConfig) {
		it.debouncerMu.Lock()
		unchanged := it.debounceFor == rc.DebounceMs
		it.debouncerMu.Unlock()
		if !unchanged {
			it.rebuildDebouncer(rc.DebounceMs)
		}
	})
	return it
}

func (it *InterimTranslator) rebuildDebouncer(window time.Duration) {
	it.debouncerMu.Lock()
	defer it.debouncerMu.Unlock()
	it.debounceFor = window
	it.debouncer = debounce.New(window)
}

// Submit is called by the Ingestor on each interim event carrying the
// current source snapshot. It cancels any previously scheduled or
// in-flight task before scheduling a new one.
func (it *InterimTranslator) Submit(parent context.Context, sourceSnapshot string) {
	it.mu.Lock()
	if it.cancelFunc != nil {
		it.cancelFunc()
	}
	it.generation++
	gen := it.generation
	ctx, cancel := context.WithCancel(parent)
	it.cancelFunc = cancel
	it.mu.Unlock()

	cfg := it.config.Snapshot()

	it.debouncerMu.Lock()
	fire := it.debouncer
	it.debouncerMu.Unlock()

	if !cfg.InterimDebounceEnabled {
		go it.runTask(ctx, gen, sourceSnapshot, cfg)
		return
	}

	fire(func() {
		it.runTask(ctx, gen, sourceSnapshot, cfg)
	})
}

// Cancel aborts the current task, if any, with no observable effect on
// outbound messages. Called on final arrival and on session teardown.
func (it *InterimTranslator) Cancel() {
	it.mu.Lock()
	defer it.mu.Unlock()
	if it.cancelFunc != nil {
		it.cancelFunc()
		it.cancelFunc = nil
	}
	it.generation++
}

// ResetDeliveredSnapshots clears the delta baselines, called when a new
// sentence cycle begins (when a final arrives).
func (it *InterimTranslator) ResetDeliveredSnapshots() {
	it.mu.Lock()
	defer it.mu.Unlock()
	it.lastSource = ""
	it.lastTrans = ""
}

func (it *InterimTranslator) runTask(ctx context.Context, gen uint64, sourceSnapshot string, cfg RuntimeConfig) {
	select {
	case <-ctx.Done():
		return
	default:
	}

	result, err := it.translator.Translate(ctx, sourceSnapshot, cfg.SourceLang, cfg.TargetLang)

	it.mu.Lock()
	if gen != it.generation {
		it.mu.Unlock()
		return
	}
	select {
	case <-ctx.Done():
		it.mu.Unlock()
		return
	default:
	}

	if err != nil {
		it.logger.Warnw("interim translation failed, dropping", "error", err)
		it.mu.Unlock()
		return
	}

	msg := OutboundMessage{
		Type:        KindInterim,
		TimestampMs: time.Now().UnixMilli(),
	}

	if cfg.SyncDisplayMode {
		msg.Original = TextBlock{
			FullText: sourceSnapshot,
			Delta:    delta.Compute(it.lastSource, sourceSnapshot),
			Language: cfg.SourceLang,
		}
		it.lastSource = sourceSnapshot
	} else {
		// Original already shown by the Ingestor; carry the same snapshot
		// with an empty delta so the message is self-consistent.
		msg.Original = TextBlock{
			FullText: sourceSnapshot,
			Delta:    "",
			Language: cfg.SourceLang,
		}
	}

	msg.Translation = &TextBlock{
		FullText: result.TranslatedText,
		Delta:    delta.Compute(it.lastTrans, result.TranslatedText),
		Language: cfg.TargetLang,
	}
	it.lastTrans = result.TranslatedText
	sink := it.sink
	it.mu.Unlock()

	if sendErr := sink.Send(ctx, msg); sendErr != nil {
		it.logger.Errorw("failed to deliver interim message", "error", sendErr)
	}
}

// SetSink swaps the delivery sink used by any task that completes after
// the call returns.
func (it *InterimTranslator) SetSink(sink Sink) {
	it.mu.Lock()
	it.sink = sink
	it.mu.Unlock()
}
