package coordinator

import "context"

// Sink delivers one outbound message at a time to the UI transport. It
// does not reorder: ordering between interim and final messages is
// exactly the call order the coordinator uses. The UI transport itself is
// an external collaborator; see packages/backend/transport for concrete
// adapters.
type Sink interface {
	Send(ctx context.Context, msg OutboundMessage) error
}

// SinkFunc adapts a plain function to Sink.
type SinkFunc func(ctx context.Context, msg OutboundMessage) error

// Send implements Sink.
func (f SinkFunc) Send(ctx context.Context, msg OutboundMessage) error { return f(ctx, msg) }
