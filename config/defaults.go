package config

const DefaultSystemPrompt = `Imagine that you are Isaac Asimov. Start by introducing yourself and asking the user if they would like to do a short "choose your own" space adventure.`

func DefaultConfig() *Config {
	return &Config{
		DataDirectory: "~/.local/share/chatview",
		Provider: ProviderConfig{
			Type:           "ollama",
			BaseURL:        "http://localhost:11434",
			Model:          "llama3.1:latest",
			Temperature:    "chatbot-responses",
			TimeoutSeconds: 120,
		},
		Chat: ChatConfig{
			Stream:            true,
			SystemPrompt:      DefaultSystemPrompt,
			MaxToolIterations: 10,
			DebounceMS:        50,
			BuiltinTools:      []string{"get_date_and_time"},
		},
		Storage: StorageConfig{Enabled: true},
	}
}

func GenerateConfigTemplate() string {
	return `# chatview configuration
# Location: ~/.config/chatview/settings.toml
# This file uses TOML format: https://toml.io

# Directory where sessions and the debug log are stored
data_directory = "~/.local/share/chatview"

[provider]
# One of: ollama, openai, anthropic, openrouter
type = "ollama"
base_url = "http://localhost:11434"
model = "llama3.1:latest"

# API key for hosted providers. CHATVIEW_API_KEY or the vendor variable
# (OPENAI_API_KEY, ANTHROPIC_API_KEY, OPENROUTER_API_KEY) also work.
# api_key = ""

# Sampling preset: code-generation, creative-writing, chatbot-responses,
# code-comment-generation, data-analysis-scripting, exploratory-code-writing
temperature = "chatbot-responses"

# 0 leaves the provider default
max_tokens = 0
timeout_seconds = 120

# Fail fast after repeated provider errors
circuit_breaker = false

[chat]
stream = true
system_prompt = '''Imagine that you are Isaac Asimov. Start by introducing yourself and asking the user if they would like to do a short "choose your own" space adventure.'''
max_tool_iterations = 10
show_tool_results = false
# Minimum milliseconds between streamed updates, 0 to update on every chunk
debounce_ms = 50
builtin_tools = ["get_date_and_time"]

[storage]
enabled = true

# MCP servers whose tools are offered to the model
# [[mcp_servers]]
# id = "filesystem"
# command = "npx"
# args = ["-y", "@modelcontextprotocol/server-filesystem", "/tmp"]

# Prompts offered before the first message
# [[suggestions]]
# title = "Tell me a story"
# body = "about a robot"
`
}
