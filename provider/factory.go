package provider

import (
	"fmt"

	"chatview/model"
)

// NewProvider creates a provider based on configuration.
//
// This is the centralized factory function for creating any provider type.
// When cfg.CircuitBreaker is set the result is wrapped in a
// CircuitBreakerProvider.
//
// Returns an error if:
//   - The provider type is unknown
//   - The provider-specific constructor fails (e.g., missing API key)
//
// Example (Ollama):
//
//	cfg := provider.Config{
//	    Type:    provider.ProviderTypeOllama,
//	    BaseURL: "http://localhost:11434",
//	    Model:   "llama3.1",
//	}
//	p, err := provider.NewProvider(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
func NewProvider(cfg Config) (model.Provider, error) {
	var (
		p   model.Provider
		err error
	)

	switch cfg.Type {
	case ProviderTypeOllama:
		p, err = NewOllamaProvider(cfg)
	case ProviderTypeOpenRouter:
		p, err = NewOpenRouterProvider(cfg)
	case ProviderTypeOpenAI:
		p, err = NewOpenAIProvider(cfg)
	case ProviderTypeAnthropic:
		p, err = NewAnthropicProvider(cfg)
	default:
		return nil, fmt.Errorf("unknown provider type: %s", cfg.Type)
	}
	if err != nil {
		return nil, err
	}

	if cfg.CircuitBreaker {
		p = NewCircuitBreakerProvider(p, cfg.Breaker)
	}
	return p, nil
}

// MapProviderIDToType converts a config provider ID to a ProviderType.
// Unknown IDs are passed through; NewProvider rejects them.
func MapProviderIDToType(id string) ProviderType {
	switch id {
	case "ollama":
		return ProviderTypeOllama
	case "openrouter":
		return ProviderTypeOpenRouter
	case "openai":
		return ProviderTypeOpenAI
	case "anthropic":
		return ProviderTypeAnthropic
	default:
		return ProviderType(id)
	}
}
