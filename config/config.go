package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

type ProviderConfig struct {
	Type           string `toml:"type"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	APIKey         string `toml:"api_key,omitempty"`
	Temperature    string `toml:"temperature"`
	MaxTokens      int    `toml:"max_tokens"`
	User           string `toml:"user,omitempty"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	CircuitBreaker bool   `toml:"circuit_breaker"`
}

type ChatConfig struct {
	Stream            bool     `toml:"stream"`
	SystemPrompt      string   `toml:"system_prompt"`
	MaxToolIterations int      `toml:"max_tool_iterations"`
	ShowToolResults   bool     `toml:"show_tool_results"`
	DebounceMS        int      `toml:"debounce_ms"`
	BuiltinTools      []string `toml:"builtin_tools"`
}

type MCPServerConfig struct {
	ID      string            `toml:"id"`
	Command string            `toml:"command"`
	Args    []string          `toml:"args"`
	Env     map[string]string `toml:"env"`
}

type SuggestionConfig struct {
	Title  string `toml:"title"`
	Body   string `toml:"body"`
	Prompt string `toml:"prompt,omitempty"`
}

type StorageConfig struct {
	Enabled bool `toml:"enabled"`
}

type Config struct {
	DataDirectory string             `toml:"data_directory"`
	Provider      ProviderConfig     `toml:"provider"`
	Chat          ChatConfig         `toml:"chat"`
	Storage       StorageConfig      `toml:"storage"`
	MCPServers    []MCPServerConfig  `toml:"mcp_servers"`
	Suggestions   []SuggestionConfig `toml:"suggestions"`
}

var Debug = false

// DebugLog is nil unless CHATVIEW_DEBUG is set. Call sites nil-check it.
var DebugLog *zerolog.Logger

// ProviderTypes lists the accepted values of provider.type.
var ProviderTypes = []string{"ollama", "openai", "anthropic", "openrouter"}

func (c *Config) DataDir() string {
	return ExpandPath(c.DataDirectory)
}

// Timeout returns the per-request provider timeout, zero meaning none.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.Provider.TimeoutSeconds) * time.Second
}

// Debounce returns the minimum interval between streamed transcript updates.
// debounce_ms = 0 turns debouncing off and maps to a negative duration.
func (c *Config) Debounce() time.Duration {
	if c.Chat.DebounceMS == 0 {
		return -1
	}
	return time.Duration(c.Chat.DebounceMS) * time.Millisecond
}

func (c *Config) Validate() error {
	known := false
	for _, t := range ProviderTypes {
		if c.Provider.Type == t {
			known = true
			break
		}
	}
	if !known {
		return fmt.Errorf("unknown provider type %q (expected one of %s)", c.Provider.Type, strings.Join(ProviderTypes, ", "))
	}
	if c.Provider.MaxTokens < 0 {
		return fmt.Errorf("provider.max_tokens must not be negative")
	}
	if c.Provider.TimeoutSeconds < 0 {
		return fmt.Errorf("provider.timeout_seconds must not be negative")
	}
	if c.Chat.MaxToolIterations < 0 {
		return fmt.Errorf("chat.max_tool_iterations must not be negative")
	}
	if c.Chat.DebounceMS < 0 {
		return fmt.Errorf("chat.debounce_ms must not be negative")
	}
	for i, s := range c.MCPServers {
		if s.ID == "" || s.Command == "" {
			return fmt.Errorf("mcp_servers[%d]: id and command are required", i)
		}
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if p := os.Getenv("CHATVIEW_PROVIDER"); p != "" {
		c.Provider.Type = p
	}
	if m := os.Getenv("CHATVIEW_MODEL"); m != "" {
		c.Provider.Model = m
	}
	if u := os.Getenv("CHATVIEW_BASE_URL"); u != "" {
		c.Provider.BaseURL = u
	}
	if dataDir := os.Getenv("CHATVIEW_DATA_DIR"); dataDir != "" {
		c.DataDirectory = dataDir
	}
	if s := os.Getenv("CHATVIEW_STREAM"); s != "" {
		if stream, err := strconv.ParseBool(s); err == nil {
			c.Chat.Stream = stream
		}
	}

	if key := os.Getenv("CHATVIEW_API_KEY"); key != "" {
		c.Provider.APIKey = key
	}
	if c.Provider.APIKey == "" {
		c.Provider.APIKey = os.Getenv(vendorKeyEnv(c.Provider.Type))
	}
}

func vendorKeyEnv(providerType string) string {
	switch providerType {
	case "openai":
		return "OPENAI_API_KEY"
	case "anthropic":
		return "ANTHROPIC_API_KEY"
	case "openrouter":
		return "OPENROUTER_API_KEY"
	}
	return ""
}

func CheckDebug() bool {
	debug := os.Getenv("CHATVIEW_DEBUG")
	return debug == "true" || debug == "1"
}

func InitDebugLog(dataDir string) {
	if !CheckDebug() {
		return
	}

	Debug = true
	logPath := filepath.Join(dataDir, "debug.log")

	// 0600: prompts and tool arguments end up in here
	f, err := os.OpenFile(logPath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0600)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Could not open debug log at %s: %v\n", logPath, err)
		return
	}

	logger := zerolog.New(zerolog.ConsoleWriter{
		Out:        f,
		NoColor:    true,
		TimeFormat: "2006/01/02 15:04:05.000000",
	}).With().Timestamp().Logger()
	DebugLog = &logger

	DebugLog.Printf("=== Debug logging started (CHATVIEW_DEBUG=%s) ===", os.Getenv("CHATVIEW_DEBUG"))
	DebugLog.Info().Str("path", logPath).Msg("debug log opened")
}

// Load reads settings.toml from the config directory, creating it from the
// template on first run, then applies environment overrides.
func Load() (*Config, error) {
	settingsPath := GetSettingsFilePath()
	if !FileExists(settingsPath) {
		if err := CreateDefaultConfig(settingsPath); err != nil {
			return nil, fmt.Errorf("failed to create config: %w", err)
		}
	}
	return LoadFrom(settingsPath)
}

// LoadFrom reads the config at path without creating it.
func LoadFrom(path string) (*Config, error) {
	cfg, err := LoadFile(path)
	if err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	dataDir := cfg.DataDir()
	if err := EnsureDataDirPermissions(dataDir); err != nil {
		return nil, fmt.Errorf("failed to set data directory permissions: %w", err)
	}

	return cfg, nil
}
