package provider

import (
	"testing"
	"time"

	"chatview/config"
	"chatview/model"
)

func TestNewProvider(t *testing.T) {
	tests := []struct {
		name        string
		config      Config
		expectError bool
	}{
		{
			name:   "ollama provider with defaults",
			config: Config{Type: ProviderTypeOllama},
		},
		{
			name: "ollama provider with custom config",
			config: Config{
				Type:    ProviderTypeOllama,
				BaseURL: "http://localhost:11434",
				Model:   "llama3.1",
			},
		},
		{
			name: "openai provider",
			config: Config{
				Type:   ProviderTypeOpenAI,
				Model:  "gpt-4o-mini",
				APIKey: "test-key",
			},
		},
		{
			name:        "openai provider without key",
			config:      Config{Type: ProviderTypeOpenAI},
			expectError: true,
		},
		{
			name:   "openrouter provider",
			config: Config{Type: ProviderTypeOpenRouter, APIKey: "test-key"},
		},
		{
			name:        "openrouter provider without key",
			config:      Config{Type: ProviderTypeOpenRouter},
			expectError: true,
		},
		{
			name: "anthropic provider",
			config: Config{
				Type:   ProviderTypeAnthropic,
				Model:  "claude-sonnet-4-5-20250929",
				APIKey: "test-key",
			},
		},
		{
			name:        "anthropic provider without key",
			config:      Config{Type: ProviderTypeAnthropic},
			expectError: true,
		},
		{
			name: "unknown provider type",
			config: Config{
				Type:  ProviderType("unknown"),
				Model: "test",
			},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider, err := NewProvider(tt.config)

			if tt.expectError {
				if err == nil {
					t.Error("expected error, got nil")
				}
				if provider != nil {
					t.Error("expected nil provider, got non-nil")
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if provider == nil {
				t.Fatal("expected non-nil provider, got nil")
			}
		})
	}
}

// TestFactoryReturnsOllamaProvider verifies that the factory returns an actual OllamaProvider
func TestFactoryReturnsOllamaProvider(t *testing.T) {
	provider, err := NewProvider(Config{
		Type:    ProviderTypeOllama,
		BaseURL: "http://localhost:11434",
		Model:   "llama3.1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, ok := provider.(*OllamaProvider); !ok {
		t.Errorf("expected *OllamaProvider, got %T", provider)
	}
	if provider.GetModel() != "llama3.1" {
		t.Errorf("expected model llama3.1, got %q", provider.GetModel())
	}
}

func TestFactoryWrapsCircuitBreaker(t *testing.T) {
	provider, err := NewProvider(Config{Type: ProviderTypeOllama, CircuitBreaker: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cb, ok := provider.(*CircuitBreakerProvider)
	if !ok {
		t.Fatalf("expected *CircuitBreakerProvider, got %T", provider)
	}
	if _, ok := cb.Provider.(*OllamaProvider); !ok {
		t.Errorf("expected wrapped *OllamaProvider, got %T", cb.Provider)
	}
}

func TestMapProviderIDToType(t *testing.T) {
	tests := map[string]ProviderType{
		"ollama":     ProviderTypeOllama,
		"openai":     ProviderTypeOpenAI,
		"openrouter": ProviderTypeOpenRouter,
		"anthropic":  ProviderTypeAnthropic,
		"other":      ProviderType("other"),
	}
	for id, want := range tests {
		if got := MapProviderIDToType(id); got != want {
			t.Errorf("MapProviderIDToType(%q) = %q, want %q", id, got, want)
		}
	}
}

func TestConfigFromSettings(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Provider.Type = "openai"
	cfg.Provider.APIKey = "sk-test"
	cfg.Provider.Temperature = "creative-writing"
	cfg.Provider.MaxTokens = 256
	cfg.Provider.TimeoutSeconds = 30

	pcfg, err := ConfigFromSettings(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pcfg.Type != ProviderTypeOpenAI || pcfg.APIKey != "sk-test" {
		t.Errorf("unexpected provider config %+v", pcfg)
	}
	if pcfg.Temperature != CreativeWriting {
		t.Errorf("expected creative-writing preset, got %q", pcfg.Temperature.Name)
	}
	if pcfg.Timeout != 30*time.Second || pcfg.MaxTokens != 256 {
		t.Errorf("unexpected timeout %v / max tokens %d", pcfg.Timeout, pcfg.MaxTokens)
	}

	cfg.Provider.Temperature = "scorching"
	if _, err := ConfigFromSettings(cfg); err == nil {
		t.Error("expected an error for an unknown temperature preset")
	}
}

func TestInitializeProvider(t *testing.T) {
	cfg := config.DefaultConfig()

	p, err := InitializeProvider(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var _ model.Provider = p
	if p.GetModel() != cfg.Provider.Model {
		t.Errorf("expected model %q, got %q", cfg.Provider.Model, p.GetModel())
	}
}
