package service

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when an entity is absent after a fetch
	ErrNotFound = errors.New("not found")

	// ErrValidation is returned for malformed intent parameters
	ErrValidation = errors.New("validation failed")
)

// TransportError wraps a network or service failure. The intent that
// produced it can be retried as is.
type TransportError struct {
	Op  string
	Err error
}

// NewTransportError wraps err for operation op
func NewTransportError(op string, err error) *TransportError {
	return &TransportError{Op: op, Err: err}
}

// Error implements the error interface
func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error
func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsTransport reports whether err is a retryable transport failure
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
