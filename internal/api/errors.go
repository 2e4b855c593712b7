package api

import (
	"context"
	"errors"
	"fmt"

	"github.com/steemit/feedclient/internal/service"
)

// Error represents an API error
type Error struct {
	Code    int
	Message string
}

// NewError creates a new API error
func NewError(code int, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Error implements the error interface
func (e *Error) Error() string {
	return fmt.Sprintf("API error %d: %s", e.Code, e.Message)
}

// toAPIError maps a handler error onto a JSON-RPC error code
func toAPIError(err error) *Error {
	var apiErr *Error
	switch {
	case errors.As(err, &apiErr):
		return apiErr
	case errors.Is(err, service.ErrValidation):
		return NewError(ErrInvalidParams, "Invalid params")
	case errors.Is(err, service.ErrNotFound):
		return NewError(ErrNotFound, "Not found")
	case service.IsTransport(err):
		return NewError(ErrTransport, "Upstream unavailable")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return NewError(ErrTransport, "Request canceled")
	default:
		return NewError(ErrServerError, "Server error")
	}
}
