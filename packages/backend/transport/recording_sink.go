package transport

import (
	"context"
	"sync"

	"streamlation/packages/backend/coordinator"
)

// RecordingSink is an in-memory coordinator.Sink for tests and local
// development: it appends every message it receives and makes the
// sequence available to callers under a lock.
type RecordingSink struct {
	mu       sync.Mutex
	messages []coordinator.OutboundMessage
	closed   bool
}

// NewRecordingSink constructs an empty RecordingSink.
func NewRecordingSink() *RecordingSink {
	return &RecordingSink{}
}

// Send implements coordinator.Sink.
func (s *RecordingSink) Send(ctx context.Context, msg coordinator.OutboundMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return coordinator.ErrSessionTornDown
	}
	s.messages = append(s.messages, msg)
	return nil
}

// Messages returns a snapshot of everything recorded so far.
func (s *RecordingSink) Messages() []coordinator.OutboundMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]coordinator.OutboundMessage{}, s.messages...)
}

// Close marks the sink as torn down; further Sends return
// coordinator.ErrSessionTornDown.
func (s *RecordingSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

var _ coordinator.Sink = (*RecordingSink)(nil)
