// Package llm defines the minimal chat-completion surface the memory engine
// needs from its extraction collaborator.
//
// The engine never performs semantic work itself — fact extraction, merging,
// and conflict resolution are delegated to an external model reached through
// the [Completer] interface. The only wire shape the engine understands is a
// single non-streaming text completion.
package llm

import "context"

// Message is a single conversational message presented to the collaborator.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is a single-shot, non-streaming completion request.
type ChatRequest struct {
	// Model is the collaborator's model or capability id.
	Model string `json:"model"`

	Messages []Message `json:"messages"`

	Temperature *float64 `json:"temperature,omitempty"`
	MaxTokens   *int     `json:"max_tokens,omitempty"`

	// Stream is always false for extraction calls; present so the wire
	// payload states it explicitly.
	Stream bool `json:"stream"`
}

// Completer is a text-completion capability reached by model id.
//
// Complete returns the assistant's text content. An empty string with a nil
// error means the collaborator answered with no usable content; callers treat
// that as "no change". A non-nil error means the call itself failed
// (network, timeout, unexpected wire shape) and is retryable.
type Completer interface {
	Complete(ctx context.Context, req *ChatRequest) (string, error)
}
