// Package provider implements the LLM text-completion client.
package provider

import (
	"context"
	"errors"
)

// ErrUnavailable signals that no completion provider is configured or
// reachable; callers fall back to local reply templates.
var ErrUnavailable = errors.New("completion provider unavailable")

// Completer is the contract for text completion: a system prompt plus
// conversation turns in, text out.
type Completer interface {
	Complete(ctx context.Context, systemPrompt string, messages []Message) (string, error)
}

// Message is one conversation turn sent to the provider.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
