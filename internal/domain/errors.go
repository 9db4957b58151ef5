package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Transport maps these to status codes; match with errors.Is.
var (
	ErrValidation        = errors.New("validation failed")
	ErrConflict          = errors.New("conflict")
	ErrNotFound          = errors.New("not found")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrForbidden         = errors.New("insufficient permissions")
	ErrInvalidState      = errors.New("invalid state")
	ErrProductNotFound   = errors.New("product not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrTransactionFailed = errors.New("transaction failed")
)

// Error is a business error whose message is safe to return to clients.
type Error struct {
	Kind    error
	Message string
}

// NewError builds an Error of the given kind
func NewError(kind error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Kind
}
