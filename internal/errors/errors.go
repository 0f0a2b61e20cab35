package errors

import (
	"errors"
	"fmt"
)

// Code is a stable, machine-readable failure class. Codes double as process
// exit codes for the CLI.
type Code int

const (
	CodeSuccess      Code = 0
	CodeInternal     Code = 1
	CodeUsage        Code = 2
	CodePrecondition Code = 10
	CodeRateLimited  Code = 11
	CodeUnavailable  Code = 12
	CodeUnsupported  Code = 13
	CodeExhausted    Code = 14
	CodeSimulation   Code = 15
	CodeSigner       Code = 16
)

// Error is a typed error that carries a stable failure code through the
// swap pipeline so callers can tell a hard precondition failure from a
// transient provider failure.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

func As(err error) (*Error, bool) {
	var target *Error
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// Is reports whether err carries the given code anywhere in its chain.
func Is(err error, code Code) bool {
	if typed, ok := As(err); ok {
		return typed.Code == code
	}
	return false
}

func ExitCode(err error) int {
	if err == nil {
		return int(CodeSuccess)
	}
	if typed, ok := As(err); ok {
		return int(typed.Code)
	}
	return int(CodeInternal)
}
