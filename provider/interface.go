// Package provider implements model.Provider for the supported chat
// completion backends.
//
// Every backend offers the same two call shapes to the chat orchestrator:
//   - Chat returns one completed model.TurnResult (text or tool calls)
//   - ChatStream returns a channel of model.StreamDelta values that carry text
//     fragments and tool-call fragments in arrival order
//
// Backend failures are mapped onto the model package sentinels (for example a
// "length" finish reason becomes model.ErrMaxTokensExceeded) so callers can
// classify them with errors.Is regardless of vendor.
//
// # Usage
//
//	p, err := provider.NewProvider(provider.Config{
//	    Type:  provider.ProviderTypeOpenAI,
//	    Model: "gpt-4o-mini",
//	    APIKey: key,
//	})
//	if err != nil {
//	    // handle error
//	}
//	res, err := p.Chat(ctx, messages, tools)
package provider

import (
	"strings"
	"time"
)

// Note: The Provider interface lives in the model package (model/provider.go)
// so the chat package can use it without importing this package.

// ProviderType identifies the provider implementation.
type ProviderType string

const (
	ProviderTypeOllama     ProviderType = "ollama"
	ProviderTypeOpenRouter ProviderType = "openrouter"
	ProviderTypeOpenAI     ProviderType = "openai"
	ProviderTypeAnthropic  ProviderType = "anthropic"
)

// Config holds provider-specific configuration.
type Config struct {
	Type    ProviderType
	BaseURL string
	Model   string
	APIKey  string // unused for Ollama

	Temperature Temperature
	MaxTokens   int    // 0 leaves the backend default
	User        string // end-user identifier forwarded to the backend
	Timeout     time.Duration

	CircuitBreaker bool
	Breaker        CircuitBreakerConfig
}

// requestOptions are the sampling settings shared by every backend.
type requestOptions struct {
	temperature Temperature
	maxTokens   int
	user        string
}

func (c Config) requestOptions() requestOptions {
	t := c.Temperature
	if t.Name == "" {
		t = ChatbotResponses
	}
	return requestOptions{temperature: t, maxTokens: c.MaxTokens, user: c.User}
}

// encodeToolName converts dotted MCP tool names to underscore notation.
// Hosted backends require tool names matching ^[a-zA-Z0-9_-]{1,64}$.
// Example: "filesystem.read_file" → "filesystem__read_file"
func encodeToolName(name string) string {
	return strings.ReplaceAll(name, ".", "__")
}

// decodeToolName reverses encodeToolName.
func decodeToolName(name string) string {
	return strings.ReplaceAll(name, "__", ".")
}
