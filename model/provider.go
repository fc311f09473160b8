package model

import (
	"context"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
)

// Provider abstracts LLM chat completion backends (Ollama, OpenAI, Anthropic,
// OpenRouter).
//
// This interface is defined in the model package (not provider package) so that
// the chat orchestrator and the provider implementations can both depend on it
// without importing each other.
type Provider interface {
	// Chat sends messages and returns the completed result.
	Chat(ctx context.Context, messages []Message, tools []mcptypes.Tool) (*TurnResult, error)

	// ChatStream sends messages and returns a channel of incremental deltas.
	// The channel is closed when the response is complete. A delta carrying
	// Err is the last one sent.
	ChatStream(ctx context.Context, messages []Message, tools []mcptypes.Tool) (<-chan StreamDelta, error)

	// ListModels returns available models for this provider.
	ListModels(ctx context.Context) ([]ModelInfo, error)

	// GetModel returns the currently selected model name.
	GetModel() string

	// SetModel changes the active model.
	SetModel(model string)

	// Ping checks if the provider is reachable.
	Ping(ctx context.Context) error
}

// TurnResult is one completed provider response: either text or tool calls.
type TurnResult struct {
	Text      string
	ToolCalls []ToolCall
}

// IsToolCall reports whether the provider asked for tools instead of answering.
func (r *TurnResult) IsToolCall() bool {
	return r != nil && len(r.ToolCalls) > 0
}

// StreamDelta is one incremental piece of a streamed response.
type StreamDelta struct {
	Text     string
	ToolCall *ToolCallDelta
	Err      error
}

// ToolCallDelta is a fragment of a streamed tool call. Fragments sharing an
// Index belong to the same call; Arguments fragments are concatenated.
type ToolCallDelta struct {
	Index     int
	ID        string
	Name      string
	Arguments string
}

// ModelInfo describes a model offered by a provider.
type ModelInfo struct {
	Name     string
	Size     int64
	Provider string
}
