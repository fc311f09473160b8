package provider

import (
	"context"
	"fmt"
	"strings"

	"chatview/model"
)

// OpenRouterProvider talks to OpenRouter, which is OpenAI-compatible, through
// the OpenAI SDK with a different base URL.
type OpenRouterProvider struct {
	*OpenAIProvider
}

// NewOpenRouterProvider creates a new OpenRouter provider instance.
//
// BaseURL defaults to "https://openrouter.ai/api/v1" and Model to
// "meta-llama/llama-3.2-90b-instruct". APIKey is required.
func NewOpenRouterProvider(cfg Config) (*OpenRouterProvider, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://openrouter.ai/api/v1"
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenRouter API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "meta-llama/llama-3.2-90b-instruct"
	}

	inner := newOpenAICompatible("OpenRouter", cfg)
	inner.legacyMaxTokens = true

	return &OpenRouterProvider{OpenAIProvider: inner}, nil
}

// ListModels implements model.Provider.ListModels with vendor prefixes kept in
// the name since OpenRouter needs them to route requests.
func (p *OpenRouterProvider) ListModels(ctx context.Context) ([]model.ModelInfo, error) {
	models, err := p.OpenAIProvider.ListModels(ctx)
	if err != nil {
		return nil, err
	}
	for i := range models {
		models[i].Provider = string(ProviderTypeOpenRouter)
	}
	return models, nil
}

// DisplayName strips the vendor prefix from an OpenRouter model name.
// "meta-llama/llama-3.2-90b-instruct" → "llama-3.2-90b-instruct"
func DisplayName(modelName string) string {
	if idx := strings.Index(modelName, "/"); idx != -1 {
		return modelName[idx+1:]
	}
	return modelName
}
