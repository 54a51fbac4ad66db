// Package backend forwards canonical inbound messages to the bot backend.
package backend

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Enriquefft/whatsapp-bot-bridge/internal/inbound"
)

// Transport names accepted by New.
const (
	TransportHTTP      = "http"
	TransportWebSocket = "websocket"
)

// Forwarder delivers one canonical message to the bot backend. A single
// attempt is made; callers decide what a failure means.
type Forwarder interface {
	Forward(ctx context.Context, msg inbound.Message) error
	Close() error
}

// New returns the Forwarder for transport.
func New(transport, url, token string, timeout time.Duration) (Forwarder, error) {
	switch transport {
	case TransportHTTP, "":
		return NewHTTPForwarder(url, token, &http.Client{Timeout: timeout}), nil
	case TransportWebSocket:
		return NewWSForwarder(url, token, timeout), nil
	default:
		return nil, fmt.Errorf("unknown backend transport %q", transport)
	}
}
