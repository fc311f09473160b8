// Package ollama is a thin wrapper over the Ollama API client.
package ollama

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"

	"chatview/model"
)

type Client struct {
	client  *api.Client
	model   string
	baseURL string
	options map[string]any
}

// ResponseFunc receives each response of a chat request. Non-streaming
// requests deliver exactly one.
type ResponseFunc func(resp api.ChatResponse) error

func NewClient(baseURL, model string, httpClient *http.Client) (*Client, error) {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if model == "" {
		model = "llama3.1:latest"
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid Ollama URL: %w", err)
	}

	return &Client{
		client:  api.NewClient(parsedURL, httpClient),
		model:   model,
		baseURL: baseURL,
		options: make(map[string]any),
	}, nil
}

// SetOption sets a model option such as "temperature" or "num_predict" for
// subsequent requests.
func (c *Client) SetOption(key string, value any) {
	c.options[key] = value
}

// Chat sends a chat request with optional tool definitions.
func (c *Client) Chat(ctx context.Context, messages []api.Message, tools []api.Tool, stream bool, fn ResponseFunc) error {
	req := &api.ChatRequest{
		Model:    c.model,
		Messages: messages,
		Tools:    tools,
		Stream:   &stream,
		Options:  c.options,
	}
	return c.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		return fn(resp)
	})
}

func (c *Client) ListModels(ctx context.Context) ([]model.ModelInfo, error) {
	resp, err := c.client.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}

	models := make([]model.ModelInfo, len(resp.Models))
	for i, m := range resp.Models {
		models[i] = model.ModelInfo{
			Name:     m.Name,
			Size:     m.Size,
			Provider: "ollama",
		}
	}

	return models, nil
}

func (c *Client) SetModel(model string) {
	c.model = model
}

func (c *Client) GetModel() string {
	return c.model
}

func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := c.client.List(ctx)
	return err
}

// toolCallingModels tracks which model families support tool calling.
// Curated from Ollama documentation and community testing.
var toolCallingModels = map[string]bool{
	"qwen":      true,
	"llama3.1":  true,
	"llama3.2":  true,
	"llama3.3":  true,
	"mistral":   true,
	"command-r": true,
	"nemotron":  true,
	"granite3":  true,

	"llama3-gradient": false,
	"llama3":          false,
	"phi":             false,
	"gemma":           false,
	"codellama":       false,
	"deepseek":        false,
}

// orderedPrefixes lists the most specific prefixes first so "llama3.2" is not
// matched as generic "llama3".
var orderedPrefixes = []string{
	"llama3.3", "llama3.2", "llama3.1",
	"llama3-gradient",
	"command-r", "qwen", "mistral", "nemotron", "granite3",
	"codellama",
	"llama3",
	"deepseek", "phi", "gemma",
}

// ModelSupportsToolCalling reports whether modelName is known to support
// Ollama's tool calling API. Unknown models are assumed not to.
func ModelSupportsToolCalling(modelName string) bool {
	modelName = strings.ToLower(modelName)

	for _, prefix := range orderedPrefixes {
		if strings.HasPrefix(modelName, prefix) {
			return toolCallingModels[prefix]
		}
	}

	return false
}
