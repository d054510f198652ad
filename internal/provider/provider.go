package provider

import (
	"context"
	"errors"
)

// ErrGenerationUnavailable is returned by the chain once every configured
// provider and retry has been exhausted for a turn.
var ErrGenerationUnavailable = errors.New("generation unavailable: all providers exhausted")

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one entry of the conversation context sent to a provider.
type Message struct {
	Role    string
	Content string
}

// Request carries everything a provider needs to produce a completion:
// the persona system prompt, the windowed conversation history, the new
// turn, and an optional image reference.
type Request struct {
	System   string
	History  []Message
	Prompt   string
	ImageURL string
}

// Completion is a provider's reply to a Request.
type Completion struct {
	Text     string
	Provider string
}

// Provider is an external AI completion service.
type Provider interface {
	Name() string
	Complete(ctx context.Context, req Request) (string, error)
	Embed(ctx context.Context, text string) ([]float32, error)
}
