package protocol

import (
	"errors"
	"fmt"
)

var (
	ErrShortMessage  = errors.New("message too short")
	ErrUnknownType   = errors.New("unknown message type")
	ErrTypeMismatch  = errors.New("message type mismatch")
	ErrNotIPv4       = errors.New("origin address is not IPv4")
	ErrTTLOutOfRange = errors.New("ttl out of range")
)

// TypeMismatchError is returned by a strict Codec when the tag of a buffer is
// not the kind the caller asked to decode.
type TypeMismatchError struct {
	Expected MessageType
	Actual   MessageType
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("invalid message type: expected %s, got %s", e.Expected, e.Actual)
}

func (e *TypeMismatchError) Unwrap() error {
	return ErrTypeMismatch
}
