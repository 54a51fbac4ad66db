package infobip

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Client sends messages via the WhatsApp send API.
type Client struct {
	BaseURL    string // e.g. https://xxxxx.api.infobip.com/whatsapp/1
	APIKey     string
	HTTPClient *http.Client
}

// NewClient creates a send API client.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		APIKey:     apiKey,
		HTTPClient: http.DefaultClient,
	}
}

// Send POSTs payload as JSON to BaseURL+path.
func (c *Client) Send(ctx context.Context, path string, payload any) (*SendResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Authorization", "App "+c.APIKey)

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var result SendResponse
	if len(bytes.TrimSpace(respBody)) == 0 {
		return &result, nil
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	return &result, nil
}

// SendText sends a plain text message from the given sender number.
func (c *Client) SendText(ctx context.Context, from, to, messageID, text string) (*SendResponse, error) {
	return c.Send(ctx, "/message/text", TextMessage{
		From:      from,
		To:        to,
		MessageID: messageID,
		Content:   TextContent{Text: text},
	})
}

// APIError is a non-2xx answer from the send API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("whatsapp API error (status %d): %s", e.StatusCode, e.Body)
}
