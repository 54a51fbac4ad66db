package outbound

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/Enriquefft/whatsapp-bot-bridge/internal/infobip"
)

// Provider send endpoints, relative to the configured API base URL.
const (
	PathText    = "/message/text"
	PathButtons = "/message/interactive/buttons"
	PathList    = "/message/interactive/list"
)

const buttonTypeReply = "REPLY"

// ErrInvalidBatch means a batch body is neither a JSON array nor an object.
var ErrInvalidBatch = errors.New("bot response batch must be a JSON array or object")

// Request is a provider send request ready for dispatch.
type Request struct {
	URLPath     string
	RecipientID string
	Payload     any
}

// Result is the outcome of composing one element of a batch.
type Result struct {
	Index   int
	Request Request
	Err     error
}

// Composer builds provider requests from bot responses. It holds no mutable
// state and is safe for concurrent use.
type Composer struct {
	From      string // business sender number
	ListTitle string // list button prompt

	// NewMessageID returns the correlation ID for each composed request.
	// Nil means a random UUID per request.
	NewMessageID func() string
}

// NewComposer creates a Composer that generates a fresh message ID per send.
func NewComposer(from, listTitle string) *Composer {
	return &Composer{
		From:         from,
		ListTitle:    listTitle,
		NewMessageID: uuid.NewString,
	}
}

// FixedMessageID returns a generator that always yields id. Providers that
// deduplicate on messageId will drop every send after the first.
func FixedMessageID(id string) func() string {
	return func() string { return id }
}

// Compose converts a decoded response into a provider request.
func (c *Composer) Compose(resp Response) (Request, error) {
	switch r := resp.(type) {
	case TextResponse:
		return c.buildText(r), nil
	case ListResponse:
		return c.buildList(r), nil
	default:
		return Request{}, fmt.Errorf("%w: %T", ErrUnrecognizedShape, resp)
	}
}

// ComposeRaw decodes and composes a single bot response.
func (c *Composer) ComposeRaw(raw json.RawMessage) (Request, error) {
	resp, err := DecodeResponse(raw)
	if err != nil {
		return Request{}, err
	}
	return c.Compose(resp)
}

// ComposeBatch composes every response in body, in order. A failing element
// is reported in its Result and never stops the remaining ones. A single JSON
// object is treated as a batch of one.
func (c *Composer) ComposeBatch(body []byte) ([]Result, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, ErrInvalidBatch
	}

	var elems []json.RawMessage
	switch trimmed[0] {
	case '[':
		if err := json.Unmarshal(trimmed, &elems); err != nil {
			return nil, fmt.Errorf("decode response batch: %w", err)
		}
	case '{':
		elems = []json.RawMessage{trimmed}
	default:
		return nil, ErrInvalidBatch
	}

	results := make([]Result, len(elems))
	for i, raw := range elems {
		req, err := c.ComposeRaw(raw)
		results[i] = Result{Index: i, Request: req, Err: err}
	}
	return results, nil
}

func (c *Composer) buildText(r TextResponse) Request {
	if len(r.Buttons) > 0 {
		buttons := make([]infobip.ReplyButton, len(r.Buttons))
		for i, b := range r.Buttons {
			buttons[i] = infobip.ReplyButton{
				Type:  buttonTypeReply,
				ID:    b.Payload,
				Title: b.Title,
			}
		}
		return Request{
			URLPath:     PathButtons,
			RecipientID: r.RecipientID,
			Payload: infobip.ButtonsMessage{
				From:      c.From,
				To:        r.RecipientID,
				MessageID: c.messageID(),
				Content: infobip.ButtonsContent{
					Body:   infobip.Body{Text: r.Text},
					Action: infobip.ButtonsAction{Buttons: buttons},
				},
			},
		}
	}

	return Request{
		URLPath:     PathText,
		RecipientID: r.RecipientID,
		Payload: infobip.TextMessage{
			From:      c.From,
			To:        r.RecipientID,
			MessageID: c.messageID(),
			Content:   infobip.TextContent{Text: r.Text},
		},
	}
}

func (c *Composer) buildList(r ListResponse) Request {
	rows := make([]infobip.Row, len(r.Rows))
	for i, b := range r.Rows {
		rows[i] = infobip.Row{
			ID:          b.Payload,
			Title:       b.Title,
			Description: b.Desc,
		}
	}

	return Request{
		URLPath:     PathList,
		RecipientID: r.RecipientID,
		Payload: infobip.ListMessage{
			From:      c.From,
			To:        r.RecipientID,
			MessageID: c.messageID(),
			Content: infobip.ListContent{
				Body: infobip.Body{Text: r.Text},
				Action: infobip.ListAction{
					Title:    c.ListTitle,
					Sections: []infobip.Section{{Rows: rows}},
				},
			},
		},
	}
}

func (c *Composer) messageID() string {
	if c.NewMessageID == nil {
		return uuid.NewString()
	}
	return c.NewMessageID()
}
