package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Enriquefft/whatsapp-bot-bridge/internal/inbound"
)

// WSForwarder writes canonical messages as text frames on a WebSocket
// connection to the backend. The connection is dialled on first use and
// dropped after a failed write or a failed read so the next message redials.
// Frames sent by the backend are discarded.
type WSForwarder struct {
	url     string
	token   string
	timeout time.Duration
	conn    *websocket.Conn
	mu      sync.Mutex
}

// NewWSForwarder creates a WebSocket forwarder.
func NewWSForwarder(url, token string, timeout time.Duration) *WSForwarder {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WSForwarder{
		url:     url,
		token:   token,
		timeout: timeout,
	}
}

// Connect establishes the WebSocket connection.
func (f *WSForwarder) Connect(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connectLocked(ctx)
}

func (f *WSForwarder) connectLocked(ctx context.Context) error {
	if f.conn != nil {
		return nil
	}

	header := http.Header{}
	if f.token != "" {
		header.Set("Authorization", "Bearer "+f.token)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: f.timeout,
	}

	conn, _, err := dialer.DialContext(ctx, f.url, header)
	if err != nil {
		return fmt.Errorf("connect to backend: %w", err)
	}

	f.conn = conn
	go f.readLoop(conn)
	return nil
}

// readLoop consumes incoming frames so close and ping frames are handled.
// A read error means the backend went away: the connection is dropped and
// the next Forward redials.
func (f *WSForwarder) readLoop(conn *websocket.Conn) {
	for {
		if _, _, err := conn.NextReader(); err != nil {
			f.mu.Lock()
			if f.conn == conn {
				f.conn = nil
			}
			f.mu.Unlock()
			conn.Close()
			return
		}
	}
}

// Forward sends msg as a JSON text frame.
func (f *WSForwarder) Forward(ctx context.Context, msg inbound.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.connectLocked(ctx); err != nil {
		return err
	}

	deadline := time.Now().Add(f.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	f.conn.SetWriteDeadline(deadline)

	if err := f.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		f.conn.Close()
		f.conn = nil
		return fmt.Errorf("write message: %w", err)
	}

	return nil
}

// Close closes the WebSocket connection.
func (f *WSForwarder) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.conn == nil {
		return nil
	}
	err := f.conn.Close()
	f.conn = nil
	return err
}
