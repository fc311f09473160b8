package provider

import (
	"fmt"

	"chatview/config"
	"chatview/model"
)

// ConfigFromSettings maps the [provider] section of the application config to
// a factory Config.
func ConfigFromSettings(cfg *config.Config) (Config, error) {
	temp, err := ParseTemperature(cfg.Provider.Temperature)
	if err != nil {
		return Config{}, err
	}

	return Config{
		Type:           MapProviderIDToType(cfg.Provider.Type),
		BaseURL:        cfg.Provider.BaseURL,
		Model:          cfg.Provider.Model,
		APIKey:         cfg.Provider.APIKey,
		Temperature:    temp,
		MaxTokens:      cfg.Provider.MaxTokens,
		User:           cfg.Provider.User,
		Timeout:        cfg.Timeout(),
		CircuitBreaker: cfg.Provider.CircuitBreaker,
	}, nil
}

// InitializeProvider creates the provider described by the application
// config. This is the single entry point the application uses.
func InitializeProvider(cfg *config.Config) (model.Provider, error) {
	pcfg, err := ConfigFromSettings(cfg)
	if err != nil {
		return nil, fmt.Errorf("invalid provider settings: %w", err)
	}

	p, err := NewProvider(pcfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s provider: %w", pcfg.Type, err)
	}

	if config.DebugLog != nil {
		config.DebugLog.Printf("[Provider] Initialized %s provider (model=%s, temperature=%s, breaker=%v)",
			pcfg.Type, p.GetModel(), pcfg.Temperature.Name, pcfg.CircuitBreaker)
	}

	return p, nil
}
