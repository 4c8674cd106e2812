// Package chaterr defines the typed errors surfaced by the chat pipeline.
package chaterr

import "errors"

// Kind is the machine-readable classification of a chat failure.
type Kind string

const (
	KindInvalidRequest      Kind = "invalid_request"
	KindRateLimitExceeded   Kind = "rate_limit_exceeded"
	KindTimeout             Kind = "timeout"
	KindServiceError        Kind = "service_error"
	KindInvalidRequestError Kind = "invalid_request_error"
	KindEmptyResponse       Kind = "empty_response"
	KindUnknown             Kind = "unknown_error"
)

// Retryable reports whether a failure of this kind may be attempted again.
// empty_response is deliberately excluded.
func (k Kind) Retryable() bool {
	switch k {
	case KindTimeout, KindRateLimitExceeded, KindServiceError:
		return true
	default:
		return false
	}
}

// Error carries a display-ready message plus the kind callers branch on.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a typed error without an underlying cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds a typed error around cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

// As returns the first *Error in err's chain.
func As(err error) (*Error, bool) {
	var ce *Error
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// KindOf returns the kind of the first typed error in err's chain.
func KindOf(err error) (Kind, bool) {
	if ce, ok := As(err); ok {
		return ce.Kind, true
	}
	return "", false
}

// Is reports whether err carries a typed error of the given kind.
func Is(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
