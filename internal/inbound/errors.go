package inbound

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedEvent means the envelope is missing required fields.
	ErrMalformedEvent = errors.New("malformed inbound event")

	// ErrIncompleteLocation means a LOCATION message lacks a coordinate.
	ErrIncompleteLocation = errors.New("incomplete location")

	// ErrUnsupportedMessageType means the message type has no canonical form.
	ErrUnsupportedMessageType = errors.New("unsupported message type")
)

// UnsupportedTypeError reports the rejected discriminant. It matches
// ErrUnsupportedMessageType under errors.Is.
type UnsupportedTypeError struct {
	Type string
}

func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("unsupported message type %q", e.Type)
}

func (e *UnsupportedTypeError) Is(target error) bool {
	return target == ErrUnsupportedMessageType
}
