// Package llm abstracts the language-model backend behind a stateless
// completion interface. Never call a specific provider directly — always
// inject Client.
package llm

import (
	"context"
	"errors"
)

// Sentinel errors for backend failures.
var (
	ErrUnavailable     = errors.New("llm backend unavailable")
	ErrTimeout         = errors.New("llm inference timeout")
	ErrInvalidResponse = errors.New("llm backend returned invalid response")
)

// Client is a stateless text-completion backend. One prompt in, raw text
// out; no backend-side session state is assumed.
type Client interface {
	// Complete sends a single prompt and returns the raw response text.
	Complete(ctx context.Context, prompt string) (string, error)
	// Name returns the provider identifier (e.g., "anthropic", "ollama").
	Name() string
}
