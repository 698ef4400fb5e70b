package object

import (
	"errors"
	"fmt"
)

// ErrNotFound marks an absent object. Recoverable: callers may treat it
// as "not yet observed".
var ErrNotFound = errors.New("object not found")

// HashMismatchError is fatal for the affected object: the bytes read
// back do not hash to the requested ID.
type HashMismatchError struct {
	Want ID
	Got  ID
}

func (e *HashMismatchError) Error() string {
	return fmt.Sprintf("object %s: hash mismatch (computed %s)", e.Want, e.Got)
}

// InvalidEnvelopeError marks a malformed canonical envelope.
type InvalidEnvelopeError struct {
	Reason string
}

func (e *InvalidEnvelopeError) Error() string {
	return fmt.Sprintf("invalid envelope: %s", e.Reason)
}

// DeserializationError marks a typed payload that failed to decode.
type DeserializationError struct {
	Type TypeTag
	ID   ID
	Err  error
}

func (e *DeserializationError) Error() string {
	return fmt.Sprintf("deserialize %s %s: %v", e.Type, e.ID, e.Err)
}

func (e *DeserializationError) Unwrap() error { return e.Err }

// TypeMismatchError marks a typed read whose on-disk tag doesn't match
// the tag the caller asked for.
type TypeMismatchError struct {
	ID   ID
	Want TypeTag
	Got  TypeTag
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("object %s: type mismatch: got %q, want %q", e.ID, e.Got, e.Want)
}
