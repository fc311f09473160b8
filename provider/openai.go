package provider

import (
	"context"
	"fmt"
	"time"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"chatview/config"
	"chatview/mcp"
	"chatview/model"
)

// OpenAIProvider implements model.Provider using OpenAI's official Go SDK.
// It also backs OpenRouterProvider, which speaks the same API.
type OpenAIProvider struct {
	client  openai.Client
	model   string
	baseURL string
	opts    requestOptions

	// name is used in error messages and logs
	name string
	// legacyMaxTokens sends max_tokens instead of max_completion_tokens
	legacyMaxTokens bool
	encodeToolName  func(string) string
	decodeToolName  func(string) string
}

// NewOpenAIProvider creates a new OpenAI provider instance.
//
// Config fields used:
//   - BaseURL: OpenAI API base URL (default: "https://api.openai.com/v1")
//   - APIKey: OpenAI API key (required)
//   - Model: Initial model to use (default: "gpt-4o-mini")
//   - Temperature, MaxTokens, User, Timeout: request options
//
// Returns an error if the API key is missing.
func NewOpenAIProvider(cfg Config) (*OpenAIProvider, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	return newOpenAICompatible("OpenAI", cfg), nil
}

func newOpenAICompatible(name string, cfg Config) *OpenAIProvider {
	return &OpenAIProvider{
		client:         openai.NewClient(openAIClientOptions(cfg)...),
		model:          cfg.Model,
		baseURL:        cfg.BaseURL,
		opts:           cfg.requestOptions(),
		name:           name,
		encodeToolName: encodeToolName,
		decodeToolName: decodeToolName,
	}
}

func openAIClientOptions(cfg Config) []option.RequestOption {
	opts := []option.RequestOption{
		option.WithBaseURL(cfg.BaseURL),
		option.WithAPIKey(cfg.APIKey),
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}
	return opts
}

// withClientOptions rebuilds the client with extra options appended. Tests
// use it to disable retries against a local server.
func (p *OpenAIProvider) withClientOptions(cfg Config, extra ...option.RequestOption) *OpenAIProvider {
	p.client = openai.NewClient(append(openAIClientOptions(cfg), extra...)...)
	return p
}

func (p *OpenAIProvider) buildParams(messages []model.Message, tools []mcptypes.Tool) openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{
		Messages:    ConvertToOpenAIMessages(messages, p.encodeToolName),
		Model:       openai.ChatModel(p.model),
		Temperature: openai.Float(p.opts.temperature.Temperature),
		TopP:        openai.Float(p.opts.temperature.TopP),
	}

	if p.opts.maxTokens > 0 {
		if p.legacyMaxTokens {
			params.MaxTokens = openai.Int(int64(p.opts.maxTokens))
		} else {
			params.MaxCompletionTokens = openai.Int(int64(p.opts.maxTokens))
		}
	}
	if p.opts.user != "" {
		params.User = openai.String(p.opts.user)
	}

	if len(tools) > 0 {
		renamed := make([]mcptypes.Tool, len(tools))
		for i, t := range tools {
			renamed[i] = t
			renamed[i].Name = p.encodeToolName(t.Name)
		}
		params.Tools = mcp.ConvertMCPToolsToOpenAIFormat(renamed)
	}

	return params
}

// finishReasonError maps OpenAI finish reasons that end a turn abnormally.
func finishReasonError(reason string) error {
	switch reason {
	case "length":
		return model.NewChatError("chat completion", model.ErrMaxTokensExceeded, "")
	case "content_filter":
		return model.NewChatError("chat completion", model.ErrContentFiltered, "")
	}
	return nil
}

// Chat implements model.Provider.Chat with a single non-streaming request.
func (p *OpenAIProvider) Chat(ctx context.Context, messages []model.Message, tools []mcptypes.Tool) (*model.TurnResult, error) {
	start := time.Now()

	resp, err := p.client.Chat.Completions.New(ctx, p.buildParams(messages, tools))
	if err != nil {
		return nil, fmt.Errorf("%s chat error: %w", p.name, err)
	}

	if config.DebugLog != nil {
		config.DebugLog.Printf("[%s] Completion for %s in %v (%d choices)", p.name, p.model, time.Since(start), len(resp.Choices))
	}

	if len(resp.Choices) == 0 {
		return nil, model.NewChatError("chat completion", model.ErrProviderInvalidResponse, "no choices returned")
	}

	choice := resp.Choices[0]
	if err := finishReasonError(choice.FinishReason); err != nil {
		return nil, err
	}

	if len(choice.Message.ToolCalls) > 0 {
		calls := make([]model.ToolCall, 0, len(choice.Message.ToolCalls))
		for _, tc := range choice.Message.ToolCalls {
			calls = append(calls, model.ToolCall{
				ID:        tc.ID,
				Name:      p.decodeToolName(tc.Function.Name),
				Arguments: tc.Function.Arguments,
			})
		}
		return &model.TurnResult{Text: choice.Message.Content, ToolCalls: calls}, nil
	}

	if choice.Message.Content == "" {
		if choice.Message.Refusal != "" {
			return nil, model.NewChatError("chat completion", model.ErrContentFiltered, choice.Message.Refusal)
		}
		return nil, model.NewChatError("chat completion", model.ErrNoResponseContent, "")
	}

	return &model.TurnResult{Text: choice.Message.Content}, nil
}

// ChatStream implements model.Provider.ChatStream. Request errors are
// delivered on the channel since the SDK only reports them once iteration
// starts.
func (p *OpenAIProvider) ChatStream(ctx context.Context, messages []model.Message, tools []mcptypes.Tool) (<-chan model.StreamDelta, error) {
	stream := p.client.Chat.Completions.NewStreaming(ctx, p.buildParams(messages, tools))
	out := make(chan model.StreamDelta)

	go func() {
		defer close(out)
		defer stream.Close()

		for stream.Next() {
			chunk := stream.Current()
			if len(chunk.Choices) == 0 {
				continue
			}
			choice := chunk.Choices[0]

			if choice.Delta.Content != "" {
				if !sendDelta(ctx, out, model.StreamDelta{Text: choice.Delta.Content}) {
					return
				}
			}

			for _, tc := range choice.Delta.ToolCalls {
				frag := &model.ToolCallDelta{
					Index:     int(tc.Index),
					ID:        tc.ID,
					Name:      p.decodeToolName(tc.Function.Name),
					Arguments: tc.Function.Arguments,
				}
				if !sendDelta(ctx, out, model.StreamDelta{ToolCall: frag}) {
					return
				}
			}

			if err := finishReasonError(choice.FinishReason); err != nil {
				sendDelta(ctx, out, model.StreamDelta{Err: err})
				return
			}
		}

		if err := stream.Err(); err != nil {
			if config.DebugLog != nil {
				config.DebugLog.Printf("[%s] Stream error: %v", p.name, err)
			}
			sendDelta(ctx, out, model.StreamDelta{Err: fmt.Errorf("%s streaming error: %w: %w", p.name, model.ErrStreamFailed, err)})
		}
	}()

	return out, nil
}

// ListModels implements model.Provider.ListModels.
func (p *OpenAIProvider) ListModels(ctx context.Context) ([]model.ModelInfo, error) {
	modelsPage, err := p.client.Models.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s models: %w", p.name, err)
	}

	result := make([]model.ModelInfo, 0, len(modelsPage.Data))
	for _, m := range modelsPage.Data {
		result = append(result, model.ModelInfo{
			Name:     m.ID,
			Provider: string(ProviderTypeOpenAI),
		})
	}

	return result, nil
}

func (p *OpenAIProvider) GetModel() string {
	return p.model
}

func (p *OpenAIProvider) SetModel(model string) {
	p.model = model
}

// Ping implements model.Provider.Ping by attempting to list models.
func (p *OpenAIProvider) Ping(ctx context.Context) error {
	if _, err := p.client.Models.List(ctx); err != nil {
		return fmt.Errorf("%s ping failed: %w", p.name, err)
	}
	return nil
}

// sendDelta delivers d unless ctx is done first.
func sendDelta(ctx context.Context, out chan<- model.StreamDelta, d model.StreamDelta) bool {
	select {
	case out <- d:
		return true
	case <-ctx.Done():
		return false
	}
}
