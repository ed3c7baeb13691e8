package domain

import (
	"errors"
	"fmt"
)

// Kind classifies pipeline errors. The orchestrator reports errors of any
// kind to the caller with their message; everything that is not a *Error
// is treated as unexpected and suppressed.
type Kind string

const (
	// KindInput is a wrong-shape or missing-field failure at preprocessing
	// or at the inference precondition (empty prompt).
	KindInput Kind = "input"
	// KindCompose is a prompt composition failure.
	KindCompose Kind = "compose"
	// KindTransport is a network or response-parse failure that exhausted
	// the retry budget.
	KindTransport Kind = "transport"
	// KindProtocol is a non-200 application response that exhausted the
	// retry budget.
	KindProtocol Kind = "protocol"
	// KindOutput is a wrong-shape failure at postprocessing.
	KindOutput Kind = "output"
	// KindValidation is a schema violation on the input or output envelope.
	KindValidation Kind = "validation"
)

// Error is a classified pipeline error. Stages raise it internally; the
// orchestrator is the sole boundary that converts it into a failure
// envelope.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Errorf builds a classified pipeline error.
func Errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapError classifies an underlying error.
func WrapError(kind Kind, err error, message string) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf returns the kind of a classified pipeline error anywhere in the
// chain, or false if the error is unclassified.
func KindOf(err error) (Kind, bool) {
	var perr *Error
	if errors.As(err, &perr) {
		return perr.Kind, true
	}
	return "", false
}
