package llm

import "context"

// Message represents a message in a conversation
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Options tunes a single chat call.
type Options struct {
	Temperature float64
	// JSONOnly asks the provider for a strict-JSON response body.
	JSONOnly bool
}

// Provider is the chat-completion boundary. Implementations are constructed
// once at process start and injected; there is no package-level client.
type Provider interface {
	Chat(ctx context.Context, messages []Message, opts Options) (string, error)
}
