package assist

import (
	"errors"
	"fmt"
)

// Kind classifies why an assisted clustering attempt failed.
type Kind string

const (
	// KindNotConfigured means no provider has usable credentials.
	KindNotConfigured Kind = "not_configured"
	// KindUpstream means the remote service answered with a non-success status
	// or could not be reached.
	KindUpstream Kind = "upstream_error"
	// KindParse means the returned payload is not well-formed JSON.
	KindParse Kind = "parse_error"
	// KindValidation means the payload parsed but lacks the cluster list.
	KindValidation Kind = "validation_error"
)

// Sentinel errors, one per Kind, for errors.Is checks.
var (
	ErrNotConfigured = errors.New("assisted clustering not configured")
	ErrUpstream      = errors.New("assisted clustering upstream error")
	ErrParse         = errors.New("assisted clustering response is not valid JSON")
	ErrValidation    = errors.New("assisted clustering response has an invalid shape")
)

// Error is the failure returned by the adapter.
type Error struct {
	Err        error
	Kind       Kind
	Provider   string
	Message    string
	StatusCode int
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Provider != "" {
		msg = e.Provider + ": " + msg
	}
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap implements errors.Unwrap.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel for the error's kind.
func (e *Error) Is(target error) bool {
	return target == e.Kind.sentinel()
}

func (k Kind) sentinel() error {
	switch k {
	case KindNotConfigured:
		return ErrNotConfigured
	case KindUpstream:
		return ErrUpstream
	case KindParse:
		return ErrParse
	case KindValidation:
		return ErrValidation
	}
	return nil
}

// KindOf returns the Kind of err, or "" when err did not come from the adapter.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func notConfigured(msg string) *Error {
	return &Error{Kind: KindNotConfigured, Message: msg}
}

func upstream(provider string, status int, msg string, err error) *Error {
	return &Error{Kind: KindUpstream, Provider: provider, StatusCode: status, Message: msg, Err: err}
}

func parseFailure(msg string, err error) *Error {
	return &Error{Kind: KindParse, Message: msg, Err: err}
}

func invalid(msg string, err error) *Error {
	return &Error{Kind: KindValidation, Message: msg, Err: err}
}

// FailureKind returns the kind as a string for callers that only need the
// classification.
func (e *Error) FailureKind() string {
	return string(e.Kind)
}
