package coordinator

import (
	"context"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"streamlation/packages/backend/stt"
	"streamlation/packages/backend/translation"
)

// Coordinator wires C1 through C5 plus Config Control into one running
// session. One Coordinator is constructed per active session and torn
// down when the session ends.
type Coordinator struct {
	SessionID string

	config     *Config
	sink       Sink
	ingestor   *Ingestor
	interim    *InterimTranslator
	batch      *BatchTranslator
	dispatcher *Dispatcher
	breaker    *CircuitBreaker
	logger     *zap.SugaredLogger

	cancel context.CancelFunc

	mu       sync.Mutex
	torndown bool
}

// Options configures a Coordinator. DispatchCap and Breaker are
// implementation-choice knobs left open by spec §4.5/§7; zero values fall
// back to sane defaults (no cap beyond DefaultDispatchCap, breaker
// disabled).
type Options struct {
	InitialConfig RuntimeConfig
	DispatchCap   int
	BreakerThreshold int
	BreakerCooldownMs int64
}

// New constructs a running Coordinator for sessionID, delivering outbound
// messages to sink and consuming translations from translator.
func New(ctx context.Context, sessionID string, translator translation.Translator, sink Sink, opts Options, logger *zap.SugaredLogger) *Coordinator {
	sessionCtx, cancel := context.WithCancel(ctx)

	cfg := NewConfig(opts.InitialConfig)
	breaker := NewCircuitBreaker(opts.BreakerThreshold, msToDuration(opts.BreakerCooldownMs))
	dispatcher := NewDispatcher(sink, opts.DispatchCap, logger)
	interimT := NewInterimTranslator(translator, cfg, sink, logger)
	batchT := NewBatchTranslator(sessionCtx, translator, cfg, dispatcher, breaker, logger)
	// The Ingestor sends through whatever sink is current, so SetSink also
	// redirects the interim originals it emits.
	var c *Coordinator
	currentSink := SinkFunc(func(ctx context.Context, msg OutboundMessage) error {
		c.mu.Lock()
		s := c.sink
		c.mu.Unlock()
		return s.Send(ctx, msg)
	})
	ingestor := NewIngestor(cfg, currentSink, interimT, batchT, logger)

	c = &Coordinator{
		SessionID:  sessionID,
		config:     cfg,
		sink:       sink,
		ingestor:   ingestor,
		interim:    interimT,
		batch:      batchT,
		dispatcher: dispatcher,
		breaker:    breaker,
		logger:     logger,
		cancel:     cancel,
	}

	batchT.OnFatal(func(err error) {
		c.handleFatalError(sessionCtx, err)
	})

	return c
}

// handleFatalError emits a terminal shutdown-error message (best-effort)
// and begins teardown, per spec §7's dispatcher-overflow handling.
func (c *Coordinator) handleFatalError(ctx context.Context, err error) {
	c.logger.Errorw("session-fatal error, tearing down", "session", c.SessionID, "error", err)
	shutdownMsg := OutboundMessage{
		Type: KindFinal,
		Original: TextBlock{
			FullText: "session terminated: " + err.Error(),
			Delta:    "session terminated: " + err.Error(),
		},
		TimestampMs:   time.Now().UnixMilli(),
		CorrelationID: c.SessionID,
	}
	c.mu.Lock()
	sink := c.sink
	c.mu.Unlock()
	_ = sink.Send(ctx, shutdownMsg)
	_ = c.Teardown()
}

func msToDuration(ms int64) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

// Config exposes the live RuntimeConfig for this session, e.g. for
// redisconfig to mirror it into a distributed store.
func (c *Coordinator) Config() *Config { return c.config }

// SetSink replaces the Delivery Sink for this session, e.g. when the UI
// connects after the STT side has already created the coordinator. The
// prior sink is not closed; the caller owns it.
func (c *Coordinator) SetSink(sink Sink) {
	c.mu.Lock()
	c.sink = sink
	c.mu.Unlock()

	c.dispatcher.SetSink(sink)
	c.interim.SetSink(sink)
}

// HandleEvent routes one hypothesis event through the Event Ingestor.
func (c *Coordinator) HandleEvent(ctx context.Context, ev stt.HypothesisEvent) {
	c.mu.Lock()
	down := c.torndown
	c.mu.Unlock()
	if down {
		c.logger.Debugw("dropping event after teardown", "session", c.SessionID)
		return
	}
	c.ingestor.Handle(ctx, ev)
}

// UpdateConfig applies a partial config update, per spec §4.6/§6.3.
// Out-of-range values are clamped and this always succeeds.
func (c *Coordinator) UpdateConfig(update ConfigUpdate) RuntimeConfig {
	return c.config.Update(update)
}

// RunSTTSource pumps events from src into HandleEvent until the source
// ends, ctx is cancelled, or the source reports an error. It returns the
// terminal error, if any. After a session-fatal error has torn the
// coordinator down, HandleEvent drops further events but this loop keeps
// reading until one of those conditions holds.
func (c *Coordinator) RunSTTSource(ctx context.Context, src stt.Source) error {
	events, errs := src.Stream(ctx, c.SessionID)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			c.HandleEvent(ctx, ev)
		case err, ok := <-errs:
			if !ok {
				continue
			}
			if err != nil {
				c.logger.Errorw("stt source terminated with error", "session", c.SessionID, "error", err)
				return err
			}
		}
	}
}

// Teardown cancels all outstanding work for this session: the in-flight
// interim task (if any), the batch translator's root context, and marks
// the coordinator as no longer accepting events. It is not an error;
// per spec §7 no further messages are emitted after it completes.
func (c *Coordinator) Teardown() error {
	c.mu.Lock()
	if c.torndown {
		c.mu.Unlock()
		return nil
	}
	c.torndown = true
	sink := c.sink
	c.mu.Unlock()

	var errs error
	c.interim.Cancel()
	c.cancel()

	if closer, ok := sink.(interface{ Close() error }); ok {
		errs = multierr.Append(errs, closer.Close())
	}
	return errs
}
