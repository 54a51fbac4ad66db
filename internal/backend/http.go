package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/Enriquefft/whatsapp-bot-bridge/internal/inbound"
)

// HTTPForwarder POSTs canonical messages to the backend's channel webhook.
type HTTPForwarder struct {
	URL        string
	Token      string
	HTTPClient *http.Client
}

// NewHTTPForwarder creates an HTTP forwarder.
func NewHTTPForwarder(url, token string, client *http.Client) *HTTPForwarder {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPForwarder{URL: url, Token: token, HTTPClient: client}
}

// Forward sends msg and reports transport failures and non-2xx answers.
func (f *HTTPForwarder) Forward(ctx context.Context, msg inbound.Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if f.Token != "" {
		req.Header.Set("Authorization", "Bearer "+f.Token)
	}

	resp, err := f.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("forward to backend: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("backend returned status %d", resp.StatusCode)
	}
	return nil
}

// Close is a no-op; the HTTP client owns no long-lived connection.
func (f *HTTPForwarder) Close() error { return nil }
