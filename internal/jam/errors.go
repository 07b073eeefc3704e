package jam

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies operation failures. Every kind is terminal for the
// current call; retry policy belongs to the caller.
type Kind string

const (
	KindNotFound         Kind = "not_found"
	KindInvalidState     Kind = "invalid_state"
	KindForbidden        Kind = "forbidden"
	KindBadRequest       Kind = "bad_request"
	KindNoAvailableEntry Kind = "no_available_entry"
	KindRateLimited      Kind = "rate_limited"
)

// OpError is a failed precondition or validation, surfaced verbatim to the
// caller. Storage failures that don't match a precondition stay opaque.
type OpError struct {
	Kind Kind
	Msg  string
}

func (e *OpError) Error() string { return e.Msg }

func Errf(kind Kind, format string, args ...any) *OpError {
	return &OpError{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// ErrKind returns the Kind of err, or "" for opaque internal errors.
func ErrKind(err error) Kind {
	var oe *OpError
	if errors.As(err, &oe) {
		return oe.Kind
	}
	return ""
}

// HTTPStatus maps an operation error onto a response code.
func HTTPStatus(err error) int {
	switch ErrKind(err) {
	case KindNotFound:
		return http.StatusNotFound
	case KindInvalidState, KindNoAvailableEntry:
		return http.StatusConflict
	case KindForbidden:
		return http.StatusForbidden
	case KindBadRequest:
		return http.StatusBadRequest
	case KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
