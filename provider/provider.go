package provider

import "context"

// ChatRequest carries one chat-completion exchange. Zero Temperature or
// MaxTokens means "use the client's configured default".
type ChatRequest struct {
	System      string
	User        string
	Temperature float64
	MaxTokens   int
}

// Chat is the interface the script generators speak to the language model
// through. Implementations are simple request/response clients; retry policy
// lives with the caller.
type Chat interface {
	ChatCompletion(ctx context.Context, req ChatRequest) (string, error)
}

// Speech is the interface the audio phase speaks to the synthesis server
// through. The returned bytes are a complete WAV file for one utterance.
type Speech interface {
	Synthesize(ctx context.Context, text, speaker string) ([]byte, error)
}
