package api

import (
	"github.com/cockroachdb/errors"
)

type ErrorCode string

const DefaultErrorCode = ErrorCode("internal_error")

// Error pairs an internal error chain with the code and message that are
// allowed to reach the user.
type Error struct {
	ErrorCode   ErrorCode
	UserMessage string
	wrapped     error
}

func (e *Error) Error() string {
	return e.wrapped.Error()
}

func (e *Error) Unwrap() error {
	return e.wrapped
}

// CommitError stamps an internal error with its user-facing code and
// message. The code is fixed at commit time - later wraps only add
// context.
func CommitError(err error, code ErrorCode, userMessage string) *Error {
	return &Error{
		ErrorCode:   code,
		UserMessage: userMessage,
		wrapped:     err,
	}
}

func WrapError(apiErr *Error, msg string) *Error {
	return &Error{
		ErrorCode:   apiErr.ErrorCode,
		UserMessage: apiErr.UserMessage,
		wrapped:     errors.Wrap(apiErr.wrapped, msg),
	}
}
