package service

import (
	"errors"
	"fmt"

	"agrimart-orders/internal/store"
)

// Kind classifies business-rule failures. Anything that is not an *Error is
// an internal failure.
type Kind string

const (
	KindValidation  Kind = "validation"
	KindForbidden   Kind = "forbidden"
	KindState       Kind = "state"
	KindNotFound    Kind = "not_found"
	KindRateLimited Kind = "rate_limited"
)

// Error is a client-visible rejection. No state has been changed when it is returned.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func newError(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// AsError extracts a business error from err's chain
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

var errNotAuthorized = newError(KindForbidden, "Not authorized")

// notFound maps store.ErrNotFound to a not-found rejection and wraps anything else
func notFound(err error, msg string) error {
	if errors.Is(err, store.ErrNotFound) {
		return newError(KindNotFound, msg)
	}
	return fmt.Errorf("%s: %w", msg, err)
}
