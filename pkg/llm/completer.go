package llm

import "context"

// CompletionRequest is a single completion call in provider-neutral form.
type CompletionRequest struct {
	System      string
	User        string
	Temperature float64
	MaxTokens   int

	// JSON asks the backend for a JSON-formatted completion where the wire
	// protocol supports forcing it (ollama's format field, openai's
	// response_format); otherwise the prompt alone carries the contract.
	JSON bool
}

// Completer performs one chat completion against a concrete backend.
// Implementations live under pkg/llm/provider.
type Completer interface {
	// Name returns the canonical provider name (e.g. "openai", "ollama").
	Name() string

	// Complete returns the assistant text for the request.
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}
