// Package transport provides concrete adapters between the coordinator's
// Sink/stt.Source interfaces and the UI/STT websocket transports. The UI
// and STT engine are both external collaborators per spec; this package
// gives them a real wire implementation using github.com/gorilla/websocket
// rather than leaving them purely abstract.
package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"streamlation/packages/backend/coordinator"
)

// Upgrader is shared across session connections; CheckOrigin is permissive
// here because origin policy belongs to whatever reverse proxy fronts this
// service in production.
var Upgrader = websocket.Upgrader{
	CheckOrigin:     func(r *http.Request) bool { return true },
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// WriteTimeout bounds a single outbound message write.
const WriteTimeout = 5 * time.Second

// WebSocketSink delivers OutboundMessages to one UI client connection as
// JSON text frames. Writes are serialized: gorilla/websocket connections
// are not safe for concurrent writers.
type WebSocketSink struct {
	conn   *websocket.Conn
	logger *zap.SugaredLogger

	mu     sync.Mutex
	closed bool
}

// NewWebSocketSink wraps an already-upgraded connection.
func NewWebSocketSink(conn *websocket.Conn, logger *zap.SugaredLogger) *WebSocketSink {
	return &WebSocketSink{conn: conn, logger: logger}
}

// Send implements coordinator.Sink.
func (s *WebSocketSink) Send(ctx context.Context, msg coordinator.OutboundMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return coordinator.ErrSessionTornDown
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	deadline := time.Now().Add(WriteTimeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
		deadline = dl
	}
	if err := s.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return s.conn.WriteMessage(websocket.TextMessage, body)
}

// Close implements the optional io.Closer the coordinator checks for at
// teardown.
func (s *WebSocketSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	_ = s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return s.conn.Close()
}

var _ coordinator.Sink = (*WebSocketSink)(nil)
