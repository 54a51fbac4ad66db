package inbound

import (
	"fmt"

	"github.com/buger/jsonparser"
)

// Normalize converts a raw provider webhook body into a canonical Event.
// Only results[0] is inspected. It never returns a partially built message:
// on error the returned Event is always the zero value.
func Normalize(raw []byte) (Event, error) {
	result, typ, _, err := jsonparser.Get(raw, "results", "[0]")
	if err != nil || typ != jsonparser.Object {
		return Event{}, fmt.Errorf("%w: no results[0] object", ErrMalformedEvent)
	}

	from, ok := scalar(result, "from")
	if !ok {
		return Event{}, fmt.Errorf("%w: missing from", ErrMalformedEvent)
	}

	msgType, ok := scalar(result, "message", "type")
	if !ok {
		return Event{}, fmt.Errorf("%w: missing message.type", ErrMalformedEvent)
	}

	text, err := extractText(result, msgType)
	if err != nil {
		return Event{}, err
	}

	messageID, _ := scalar(result, "messageId")

	return Event{
		MessageID: messageID,
		Type:      msgType,
		Message: Message{
			Sender:   from,
			Text:     text,
			Metadata: map[string]any{},
		},
	}, nil
}

// extractText picks the semantic payload for the given message type.
// Interactive replies resolve to the option ID, never its title: the bot
// backend fills slots from IDs.
func extractText(result []byte, msgType string) (string, error) {
	switch msgType {
	case TypeText:
		text, ok := scalar(result, "message", "text")
		if !ok {
			return "", fmt.Errorf("%w: %s message without text", ErrMalformedEvent, msgType)
		}
		return text, nil

	case TypeListReply, TypeButtonReply:
		id, ok := scalar(result, "message", "id")
		if !ok {
			return "", fmt.Errorf("%w: %s message without id", ErrMalformedEvent, msgType)
		}
		return id, nil

	case TypeLocation:
		lat, okLat := scalar(result, "message", "latitude")
		lon, okLon := scalar(result, "message", "longitude")
		if !okLat || !okLon {
			return "", fmt.Errorf("%w: latitude=%t longitude=%t", ErrIncompleteLocation, okLat, okLon)
		}
		// Raw tokens keep the sender's precision (28.0 stays 28.0).
		return lat + "," + lon, nil

	default:
		return "", &UnsupportedTypeError{Type: msgType}
	}
}

// scalar returns the non-empty string or number at keys exactly as received.
// Missing, null, empty and composite values report false.
func scalar(data []byte, keys ...string) (string, bool) {
	value, typ, _, err := jsonparser.Get(data, keys...)
	if err != nil {
		return "", false
	}

	switch typ {
	case jsonparser.String:
		s, err := jsonparser.ParseString(value)
		if err != nil || s == "" {
			return "", false
		}
		return s, true
	case jsonparser.Number:
		return string(value), true
	default:
		return "", false
	}
}
