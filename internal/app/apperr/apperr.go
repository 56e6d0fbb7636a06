package apperr

import (
	"errors"
	"fmt"
	"strings"
)

type Kind string

const (
	KindValidation      Kind = "validation"
	KindUnauthenticated Kind = "unauthenticated"
	KindNotFound        Kind = "not_found"
	KindForbidden       Kind = "forbidden"
	KindConflict        Kind = "conflict"
	KindRateLimit       Kind = "rate_limited"
	KindInternal        Kind = "internal"
)

// FieldError names the offending input field and the rule it broke.
type FieldError struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

// Error is the error shape every application operation returns.
type Error struct {
	Kind    Kind
	Message string
	Fields  []FieldError
	cause   error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.cause != nil && (e.Message == "" || e.cause.Error() != e.Message) {
		b.WriteString(": ")
		b.WriteString(e.cause.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Is matches another *Error of the same kind, so errors.Is(err, apperr.ErrNotFound) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Message == "" && t.cause == nil && t.Kind == e.Kind
}

var (
	ErrValidation      = &Error{Kind: KindValidation}
	ErrUnauthenticated = &Error{Kind: KindUnauthenticated}
	ErrNotFound        = &Error{Kind: KindNotFound}
	ErrForbidden       = &Error{Kind: KindForbidden}
	ErrConflict        = &Error{Kind: KindConflict}
	ErrRateLimit       = &Error{Kind: KindRateLimit}
	ErrInternal        = &Error{Kind: KindInternal}
)

func Validation(fields ...FieldError) *Error {
	msg := "invalid input"
	if len(fields) == 1 && fields[0].Message != "" {
		msg = fields[0].Message
	}
	return &Error{Kind: KindValidation, Message: msg, Fields: fields}
}

// Field is shorthand for a single-field validation failure caused by err.
func Field(field, rule string, err error) *Error {
	fe := FieldError{Field: field, Rule: rule}
	if err != nil {
		fe.Message = err.Error()
	}
	out := Validation(fe)
	out.cause = err
	return out
}

func Unauthenticated(msg string, cause error) *Error {
	return &Error{Kind: KindUnauthenticated, Message: msg, cause: cause}
}

func NotFound(what string, cause error) *Error {
	return &Error{Kind: KindNotFound, Message: what + " not found", cause: cause}
}

func Forbidden(msg string, cause error) *Error {
	return &Error{Kind: KindForbidden, Message: msg, cause: cause}
}

func Conflict(msg string, cause error) *Error {
	return &Error{Kind: KindConflict, Message: msg, cause: cause}
}

func RateLimited(msg string) *Error {
	return &Error{Kind: KindRateLimit, Message: msg}
}

// Internal wraps an unexpected failure. Its message is never shown to callers.
func Internal(cause error) *Error {
	if cause == nil {
		cause = errors.New("unknown failure")
	}
	return &Error{Kind: KindInternal, Message: "internal error", cause: cause}
}

func Internalf(format string, args ...any) *Error {
	return Internal(fmt.Errorf(format, args...))
}

// From returns err as an *Error, wrapping anything unknown as internal.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return Internal(err)
}

func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	return From(err).Kind
}
