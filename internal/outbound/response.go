package outbound

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnrecognizedShape means a bot response matches none of the known shapes.
var ErrUnrecognizedShape = errors.New("unrecognized bot response shape")

// Custom payload discriminants emitted by the bot backend.
const (
	customText = "TEXT"
	customList = "INTERACTIVE_LIST"
)

// Response is a decoded bot response. The set of implementations is closed:
// TextResponse and ListResponse.
type Response interface {
	Recipient() string
	isResponse()
}

// Button is a quick reply offered with a text response.
type Button struct {
	Title   string
	Payload string
}

// ListButton is an option row offered with a list response.
type ListButton struct {
	Title   string
	Payload string
	Desc    string
}

// TextResponse is plain text, optionally with reply buttons.
type TextResponse struct {
	RecipientID string
	Text        string
	Buttons     []Button
}

// ListResponse is an interactive option list.
type ListResponse struct {
	RecipientID string
	Text        string
	Rows        []ListButton
}

func (r TextResponse) Recipient() string { return r.RecipientID }
func (r ListResponse) Recipient() string { return r.RecipientID }

func (TextResponse) isResponse() {}
func (ListResponse) isResponse() {}

type wireButton struct {
	Title   string `json:"title"`
	Payload string `json:"payload"`
	Desc    string `json:"desc"`
}

type wireCustom struct {
	Type    string       `json:"type"`
	Text    *string      `json:"text"`
	Buttons []wireButton `json:"buttons"`
}

type wireResponse struct {
	RecipientID string       `json:"recipient_id"`
	Text        *string      `json:"text"`
	Buttons     []wireButton `json:"buttons"`
	Custom      *wireCustom  `json:"custom"`
}

// DecodeResponse decodes one bot response into its variant. Precedence:
// top-level text, then custom INTERACTIVE_LIST, then custom TEXT.
func DecodeResponse(raw json.RawMessage) (Response, error) {
	var w wireResponse
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnrecognizedShape, err)
	}
	if w.RecipientID == "" {
		return nil, fmt.Errorf("%w: missing recipient_id", ErrUnrecognizedShape)
	}

	if w.Text != nil {
		return TextResponse{
			RecipientID: w.RecipientID,
			Text:        *w.Text,
			Buttons:     replyButtons(w.Buttons),
		}, nil
	}

	if w.Custom == nil {
		return nil, fmt.Errorf("%w: neither text nor custom", ErrUnrecognizedShape)
	}

	switch w.Custom.Type {
	case customList:
		if w.Custom.Text == nil || len(w.Custom.Buttons) == 0 {
			return nil, fmt.Errorf("%w: %s needs text and buttons", ErrUnrecognizedShape, customList)
		}
		return ListResponse{
			RecipientID: w.RecipientID,
			Text:        *w.Custom.Text,
			Rows:        listButtons(w.Custom.Buttons),
		}, nil

	case customText:
		if w.Custom.Text == nil {
			return nil, fmt.Errorf("%w: %s without text", ErrUnrecognizedShape, customText)
		}
		return TextResponse{
			RecipientID: w.RecipientID,
			Text:        *w.Custom.Text,
			Buttons:     replyButtons(w.Custom.Buttons),
		}, nil

	default:
		return nil, fmt.Errorf("%w: custom type %q", ErrUnrecognizedShape, w.Custom.Type)
	}
}

func replyButtons(in []wireButton) []Button {
	if len(in) == 0 {
		return nil
	}
	out := make([]Button, len(in))
	for i, b := range in {
		out[i] = Button{Title: b.Title, Payload: b.Payload}
	}
	return out
}

func listButtons(in []wireButton) []ListButton {
	out := make([]ListButton, len(in))
	for i, b := range in {
		out[i] = ListButton{Title: b.Title, Payload: b.Payload, Desc: b.Desc}
	}
	return out
}
