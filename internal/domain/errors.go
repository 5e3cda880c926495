package domain

import "errors"

type ErrorKind string

const (
	KindStartupFailed    ErrorKind = "startup_failed"
	KindStartupTimeout   ErrorKind = "startup_timeout"
	KindSessionBusy      ErrorKind = "session_busy"
	KindProtocolError    ErrorKind = "protocol_error"
	KindEngineCrashed    ErrorKind = "engine_crashed"
	KindInsufficientData ErrorKind = "insufficient_data"
	KindIllegalMove      ErrorKind = "illegal_move"
	KindInvalidConfig    ErrorKind = "invalid_config"
)

type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return string(e.Kind) + ": " + e.Message
	}
	if e.Err != nil {
		return string(e.Kind) + ": " + e.Err.Error()
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

func E(kind ErrorKind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

func Wrap(kind ErrorKind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// KindOf returns the error kind carried anywhere in err's chain,
// or "" when none is present.
func KindOf(err error) ErrorKind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return ""
}

func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}
