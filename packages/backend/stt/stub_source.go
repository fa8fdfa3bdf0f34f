package stt

import (
	"context"
	"time"
)

// StubSourceConfig configures the deterministic stub source.
type StubSourceConfig struct {
	// Events is the fixed sequence of hypotheses replayed verbatim.
	Events []HypothesisEvent
	// Gap is an optional delay inserted between successive events,
	// simulating real inter-arrival spacing.
	Gap time.Duration
}

// StubSource replays a predetermined sequence of hypothesis events. It is
// used by tests and local development in place of a real STT engine.
type StubSource struct {
	config StubSourceConfig
}

// NewStubSource constructs a stub source that replays the given events.
func NewStubSource(config StubSourceConfig) *StubSource {
	return &StubSource{config: config}
}

// Stream replays the configured events, honoring ctx cancellation.
func (s *StubSource) Stream(ctx context.Context, sessionID string) (<-chan HypothesisEvent, <-chan error) {
	events := make(chan HypothesisEvent)
	errs := make(chan error, 1)

	go func() {
		defer close(events)
		defer close(errs)

		for _, event := range s.config.Events {
			if s.config.Gap > 0 {
				select {
				case <-time.After(s.config.Gap):
				case <-ctx.Done():
					return
				}
			}

			select {
			case events <- event:
			case <-ctx.Done():
				return
			}
		}
	}()

	return events, errs
}

var _ Source = (*StubSource)(nil)
