// Package provider abstracts the external text-completion service. The rest of
// the pipeline only ever sees the Client interface; concrete clients exist for
// OpenAI-compatible HTTP endpoints and the Gemini SDK, plus a scriptable mock.
package provider

import (
	"context"
	"errors"
	"fmt"
)

// Client defines the interface for LLM providers.
type Client interface {
	Complete(ctx context.Context, prompt string) (string, error)
	CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Name identifies a provider implementation.
type Name string

const (
	NameOpenAI Name = "openai"
	NameGemini Name = "gemini"
	NameMock   Name = "mock"
)

// ErrorKind classifies provider failures for retry/recovery decisions.
type ErrorKind string

const (
	ErrKindTransport ErrorKind = "transport" // Network/connection failure
	ErrKindAuth      ErrorKind = "auth"      // Missing or rejected credentials
	ErrKindQuota     ErrorKind = "quota"     // Rate limit or quota exhausted
	ErrKindBadInput  ErrorKind = "bad_input" // Request rejected (too long, malformed)
	ErrKindEmpty     ErrorKind = "empty"     // Provider returned no completion
)

// Error is the typed failure returned by all provider clients.
type Error struct {
	Kind     ErrorKind
	Provider Name
	Message  string
	Cause    error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("provider %s: %s (%s): %v", e.Provider, e.Message, e.Kind, e.Cause)
	}
	return fmt.Sprintf("provider %s: %s (%s)", e.Provider, e.Message, e.Kind)
}

func (e *Error) Unwrap() error { return e.Cause }

// IsRetryable reports whether retrying the same request could succeed.
// Auth failures and rejected input never do.
func (e *Error) IsRetryable() bool {
	switch e.Kind {
	case ErrKindAuth, ErrKindBadInput:
		return false
	default:
		return true
	}
}

// AsError extracts a *Error from any error chain.
func AsError(err error) (*Error, bool) {
	var pe *Error
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// newError builds a typed provider error.
func newError(provider Name, kind ErrorKind, msg string, cause error) *Error {
	return &Error{Kind: kind, Provider: provider, Message: msg, Cause: cause}
}
