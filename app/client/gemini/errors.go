package gemini

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindMissingCredential Kind = "missing_credential"
	KindRequestFailed     Kind = "request_failed"
	KindEmptyResponse     Kind = "empty_response"
	KindCancelled         Kind = "cancelled"
)

// FallbackText is shown to the user in place of a response that could not be generated.
const FallbackText = "Error: Unable to get AI response"

type Error struct {
	Kind   Kind
	Status int
	Err    error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}

	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Fallback is the human readable description forwarded to the chat surface.
func (e *Error) Fallback() string {
	switch e.Kind {
	case KindMissingCredential:
		return "Please configure your Gemini API key in Settings."
	case KindEmptyResponse:
		return "No response generated"
	default:
		return FallbackText
	}
}

func KindOf(err error) Kind {
	if err == nil {
		return ""
	}

	var gErr *Error
	if errors.As(err, &gErr) {
		return gErr.Kind
	}

	return KindRequestFailed
}

// FallbackOf returns the user facing text for any error.
func FallbackOf(err error) string {
	var gErr *Error
	if errors.As(err, &gErr) {
		return gErr.Fallback()
	}

	return FallbackText
}
