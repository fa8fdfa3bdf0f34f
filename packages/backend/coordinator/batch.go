package coordinator

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"streamlation/packages/backend/translation"
)

// BatchTranslator is the Adaptive Batch Translator (C4). A single mutex
// guards the pending batch, the flush timer, and the in-flight flag; the
// translation call itself always runs outside the lock.
type BatchTranslator struct {
	translator translation.Translator
	config     *Config
	dispatcher *Dispatcher
	breaker    *CircuitBreaker
	logger     *zap.SugaredLogger

	mu         sync.Mutex
	pending    []Sentence
	timer      *time.Timer
	inFlight   bool
	rootCtx    context.Context

	// onFatal, if set, is invoked when the Ordered Dispatcher reports a
	// buffer overflow: a runaway upstream that per spec §7 is fatal for
	// the session.
	onFatal func(error)
}

// NewBatchTranslator constructs a C4 instance for one session. rootCtx is
// used for the lifetime of flush timers and is expected to be cancelled
// only at session teardown.
func NewBatchTranslator(rootCtx context.Context, t translation.Translator, cfg *Config, dispatcher *Dispatcher, breaker *CircuitBreaker, logger *zap.SugaredLogger) *BatchTranslator {
	return &BatchTranslator{
		translator: t,
		config:     cfg,
		dispatcher: dispatcher,
		breaker:    breaker,
		logger:     logger,
		rootCtx:    rootCtx,
	}
}

// OnFatal registers the session-fatal-error callback. Must be called
// before the first Submit.
func (bt *BatchTranslator) OnFatal(fn func(error)) {
	bt.onFatal = fn
}

// Submit is called by the Ingestor for each finalized Sentence, in
// allocation order.
func (bt *BatchTranslator) Submit(s Sentence) {
	cfg := bt.config.Snapshot()

	bt.mu.Lock()
	if !bt.inFlight && len(bt.pending) == 0 {
		bt.inFlight = true
		bt.mu.Unlock()
		go bt.flush(ctxOrBackground(bt.rootCtx), []Sentence{s}, cfg)
		return
	}

	bt.pending = append(bt.pending, s)
	shouldFlushNow := len(bt.pending) >= cfg.BatchSize
	if shouldFlushNow {
		batch := bt.pending
		bt.pending = nil
		bt.stopTimerLocked()
		if bt.inFlight {
			// A call is already running; the batch stays pending and
			// drainAfterFlush sends it when that call completes.
			bt.pending = batch
			bt.mu.Unlock()
			return
		}
		bt.inFlight = true
		bt.mu.Unlock()
		go bt.flush(ctxOrBackground(bt.rootCtx), batch, cfg)
		return
	}

	bt.armTimerLocked(cfg.BatchTimeoutMs)
	bt.mu.Unlock()
}

func (bt *BatchTranslator) armTimerLocked(timeout time.Duration) {
	if bt.timer != nil {
		return
	}
	bt.timer = time.AfterFunc(timeout, bt.onTimerFired)
}

func (bt *BatchTranslator) stopTimerLocked() {
	if bt.timer != nil {
		bt.timer.Stop()
		bt.timer = nil
	}
}

func (bt *BatchTranslator) onTimerFired() {
	bt.mu.Lock()
	bt.timer = nil
	if bt.inFlight || len(bt.pending) == 0 {
		bt.mu.Unlock()
		return
	}
	batch := bt.pending
	bt.pending = nil
	bt.inFlight = true
	cfg := bt.config.Snapshot()
	bt.mu.Unlock()

	go bt.flush(ctxOrBackground(bt.rootCtx), batch, cfg)
}

func (bt *BatchTranslator) flush(ctx context.Context, batch []Sentence, cfg RuntimeConfig) {
	var results []translation.Translation
	var err error

	if bt.breaker.Allow(time.Now()) {
		texts := lo.Map(batch, func(s Sentence, _ int) string { return s.SourceText })
		if len(batch) == 1 {
			var single translation.Translation
			single, err = bt.translator.Translate(ctx, texts[0], cfg.SourceLang, cfg.TargetLang)
			if err == nil {
				results = []translation.Translation{single}
			}
		} else {
			results, err = bt.translator.TranslateBatch(ctx, texts, cfg.SourceLang, cfg.TargetLang)
		}
	} else {
		err = ErrCircuitOpen
	}

	if err != nil {
		kind := classifyTranslationError(err)
		if !errors.Is(err, ErrCircuitOpen) {
			// A call skipped by the open breaker is not a new failure;
			// counting it would keep pushing the cooldown out.
			bt.breaker.RecordResult(time.Now(), kind, true)
		}
		bt.logger.Warnw("batch translation failed, submitting originals only",
			"batchSize", len(batch), "error", wrapTranslationError(err, kind))
		for _, s := range batch {
			if subErr := bt.dispatcher.Submit(ctx, s.Sequence, s.SourceText, s.SourceLang, nil, cfg.TargetLang); subErr != nil {
				bt.reportDispatchError(s.Sequence, subErr)
			}
		}
	} else {
		bt.breaker.RecordResult(time.Now(), kindTransient, false)
		for i, s := range batch {
			translated := results[i].TranslatedText
			if subErr := bt.dispatcher.Submit(ctx, s.Sequence, s.SourceText, s.SourceLang, &translated, cfg.TargetLang); subErr != nil {
				bt.reportDispatchError(s.Sequence, subErr)
			}
		}
	}

	bt.drainAfterFlush()
}

func (bt *BatchTranslator) reportDispatchError(sequence uint64, err error) {
	bt.logger.Errorw("dispatcher submit failed", "sequence", sequence, "error", err)
	if bt.onFatal != nil && errors.Is(err, ErrDispatchOverflow) {
		bt.onFatal(err)
	}
}

// drainAfterFlush clears the in-flight flag and, if more sentences
// accumulated while the previous call was running, immediately starts the
// next flush with up to BatchSize of them; the rest stay pending for the
// flush after that.
func (bt *BatchTranslator) drainAfterFlush() {
	bt.mu.Lock()
	bt.inFlight = false
	if len(bt.pending) == 0 {
		bt.mu.Unlock()
		return
	}
	cfg := bt.config.Snapshot()
	batch := bt.pending
	bt.pending = nil
	if cfg.BatchSize > 0 && len(batch) > cfg.BatchSize {
		bt.pending = append([]Sentence(nil), batch[cfg.BatchSize:]...)
		batch = batch[:cfg.BatchSize]
	}
	bt.stopTimerLocked()
	bt.inFlight = true
	bt.mu.Unlock()

	go bt.flush(ctxOrBackground(bt.rootCtx), batch, cfg)
}

func ctxOrBackground(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}
