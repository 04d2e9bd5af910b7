package models

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	KindInvalidInput ErrorKind = "INVALID_INPUT"
	KindNotFound     ErrorKind = "NOT_FOUND"
	KindConflict     ErrorKind = "CONFLICT"
	KindForbidden    ErrorKind = "FORBIDDEN"
	KindUnauthorized ErrorKind = "UNAUTHORIZED"
	KindExpired      ErrorKind = "EXPIRED"
	KindInvalidCode  ErrorKind = "INVALID_CODE"
	KindInternal     ErrorKind = "INTERNAL"
)

// Sentinels for errors.Is. Any *AppError matches the sentinel of its kind.
var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
	ErrExpired      = errors.New("expired")
	ErrInvalidCode  = errors.New("invalid code")
	ErrInternal     = errors.New("internal error")
)

var kindSentinels = map[ErrorKind]error{
	KindInvalidInput: ErrInvalidInput,
	KindNotFound:     ErrNotFound,
	KindConflict:     ErrConflict,
	KindForbidden:    ErrForbidden,
	KindUnauthorized: ErrUnauthorized,
	KindExpired:      ErrExpired,
	KindInvalidCode:  ErrInvalidCode,
	KindInternal:     ErrInternal,
}

// AppError is a workflow failure with a message fit for the API caller.
type AppError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func (e *AppError) Is(target error) bool {
	return kindSentinels[e.Kind] == target
}

func NewError(kind ErrorKind, message string) *AppError {
	return &AppError{Kind: kind, Message: message}
}

func WrapError(kind ErrorKind, message string, err error) *AppError {
	return &AppError{Kind: kind, Message: message, Err: err}
}

func InvalidInput(format string, args ...any) *AppError {
	return NewError(KindInvalidInput, fmt.Sprintf(format, args...))
}

func NotFound(message string) *AppError {
	return NewError(KindNotFound, message)
}

func Conflict(message string) *AppError {
	return NewError(KindConflict, message)
}

func Forbidden(message string) *AppError {
	return NewError(KindForbidden, message)
}

func Internal(message string, err error) *AppError {
	return WrapError(KindInternal, message, err)
}

// KindOf returns the kind of the first *AppError in err's chain, or
// KindInternal when there is none.
func KindOf(err error) ErrorKind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}
