// Package sagaerr classifies failures raised while recording and replaying
// saga transactions.
package sagaerr

import (
	"errors"
	"fmt"
)

// Code is a machine-readable failure class.
type Code string

const (
	CodeValidation          Code = "VALIDATION"
	CodeConcurrencyConflict Code = "CONCURRENCY_CONFLICT"
	CodeNotFound            Code = "NOT_FOUND"
	CodeAntiCheat           Code = "ANTI_CHEAT_VIOLATION"
	CodeReplayCorruption    Code = "REPLAY_CORRUPTION"
)

// Sentinels for errors.Is checks. Matching is by code only.
var (
	ErrValidation          = &Error{Code: CodeValidation, Message: "validation failed"}
	ErrConcurrencyConflict = &Error{Code: CodeConcurrencyConflict, Message: "concurrency conflict"}
	ErrNotFound            = &Error{Code: CodeNotFound, Message: "not found"}
	ErrAntiCheat           = &Error{Code: CodeAntiCheat, Message: "anti-cheat violation"}
	ErrReplayCorruption    = &Error{Code: CodeReplayCorruption, Message: "replay corruption"}
)

// Error is a classified failure with optional metadata for moderation and logs.
type Error struct {
	Code     Code
	Message  string
	Metadata map[string]string
	Cause    error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// WithMetadata returns a copy of e carrying the given key/value pairs.
func (e *Error) WithMetadata(kv ...string) *Error {
	out := *e
	out.Metadata = make(map[string]string, len(e.Metadata)+len(kv)/2)
	for k, v := range e.Metadata {
		out.Metadata[k] = v
	}
	for i := 0; i+1 < len(kv); i += 2 {
		out.Metadata[kv[i]] = kv[i+1]
	}
	return &out
}

// CodeOf returns the code of the first *Error in err's chain, or "" when
// err is unclassified.
func CodeOf(err error) Code {
	var target *Error
	if errors.As(err, &target) {
		return target.Code
	}
	return ""
}

// Metadata returns the metadata of the first *Error in err's chain.
func Metadata(err error) map[string]string {
	var target *Error
	if errors.As(err, &target) {
		return target.Metadata
	}
	return nil
}

// IsDomain reports whether err is a classified failure that should be
// surfaced to the caller as a failed command rather than an outage.
func IsDomain(err error) bool {
	switch CodeOf(err) {
	case CodeValidation, CodeNotFound, CodeAntiCheat:
		return true
	default:
		return false
	}
}
