package provider

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	mcptypes "github.com/mark3labs/mcp-go/mcp"

	"chatview/config"
	"chatview/mcp"
	"chatview/model"
)

// defaultAnthropicMaxTokens is sent when no limit is configured; the API
// requires one.
const defaultAnthropicMaxTokens = 4096

// AnthropicProvider implements model.Provider using Anthropic's official Go SDK.
type AnthropicProvider struct {
	client  *anthropic.Client
	model   anthropic.Model
	baseURL string
	opts    requestOptions
}

// NewAnthropicProvider creates a new Anthropic provider instance.
//
// BaseURL defaults to "https://api.anthropic.com" and Model to
// claude-sonnet-4-5. APIKey is required.
func NewAnthropicProvider(cfg Config) (*AnthropicProvider, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.anthropic.com"
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("Anthropic API key is required")
	}

	anthropicModel := anthropic.ModelClaudeSonnet4_5_20250929
	if cfg.Model != "" {
		anthropicModel = anthropic.Model(cfg.Model)
	}

	opts := []option.RequestOption{
		option.WithBaseURL(cfg.BaseURL),
		option.WithAPIKey(cfg.APIKey),
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}
	client := anthropic.NewClient(opts...)

	return &AnthropicProvider{
		client:  &client,
		model:   anthropicModel,
		baseURL: cfg.BaseURL,
		opts:    cfg.requestOptions(),
	}, nil
}

func (p *AnthropicProvider) buildParams(messages []model.Message, tools []mcptypes.Tool) anthropic.MessageNewParams {
	anthropicMessages, systemPrompt := convertToAnthropicMessages(messages)

	maxTokens := int64(defaultAnthropicMaxTokens)
	if p.opts.maxTokens > 0 {
		maxTokens = int64(p.opts.maxTokens)
	}

	// Newer Claude models reject temperature and top_p together; temperature wins.
	params := anthropic.MessageNewParams{
		Model:       p.model,
		Messages:    anthropicMessages,
		MaxTokens:   maxTokens,
		Temperature: anthropic.Float(p.opts.temperature.Temperature),
	}

	if len(systemPrompt) > 0 {
		params.System = systemPrompt
	}
	if p.opts.user != "" {
		params.Metadata = anthropic.MetadataParam{UserID: anthropic.String(p.opts.user)}
	}
	if len(tools) > 0 {
		renamed := make([]mcptypes.Tool, len(tools))
		for i, t := range tools {
			renamed[i] = t
			renamed[i].Name = encodeToolName(t.Name)
		}
		params.Tools = mcp.ConvertMCPToolsToAnthropicFormat(renamed)
	}

	return params
}

// stopReasonError maps stop reasons that end a turn abnormally.
func stopReasonError(reason anthropic.StopReason) error {
	switch reason {
	case anthropic.StopReasonMaxTokens:
		return model.NewChatError("anthropic message", model.ErrMaxTokensExceeded, "")
	case anthropic.StopReasonRefusal:
		return model.NewChatError("anthropic message", model.ErrContentFiltered, "")
	}
	return nil
}

// splitContent separates text from tool_use blocks of a completed message.
func splitContent(content []anthropic.ContentBlockUnion) (string, []model.ToolCall) {
	var text string
	var calls []model.ToolCall

	for _, block := range content {
		switch b := block.AsAny().(type) {
		case anthropic.TextBlock:
			text += b.Text
		case anthropic.ToolUseBlock:
			calls = append(calls, model.ToolCall{
				ID:        b.ID,
				Name:      decodeToolName(b.Name),
				Arguments: string(b.Input),
			})
		}
	}

	return text, calls
}

// Chat implements model.Provider.Chat with a single non-streaming request.
func (p *AnthropicProvider) Chat(ctx context.Context, messages []model.Message, tools []mcptypes.Tool) (*model.TurnResult, error) {
	msg, err := p.client.Messages.New(ctx, p.buildParams(messages, tools))
	if err != nil {
		return nil, fmt.Errorf("Anthropic chat error: %w", err)
	}

	if err := stopReasonError(msg.StopReason); err != nil {
		return nil, err
	}

	text, calls := splitContent(msg.Content)
	if len(calls) > 0 {
		return &model.TurnResult{Text: text, ToolCalls: calls}, nil
	}
	if text == "" {
		return nil, model.NewChatError("anthropic message", model.ErrNoResponseContent, "")
	}

	return &model.TurnResult{Text: text}, nil
}

// ChatStream implements model.Provider.ChatStream. Text deltas are forwarded as
// they arrive; tool_use blocks are forwarded whole once the message is
// complete.
func (p *AnthropicProvider) ChatStream(ctx context.Context, messages []model.Message, tools []mcptypes.Tool) (<-chan model.StreamDelta, error) {
	stream := p.client.Messages.NewStreaming(ctx, p.buildParams(messages, tools))
	out := make(chan model.StreamDelta)

	go func() {
		defer close(out)
		defer stream.Close()

		msg := anthropic.Message{}
		for stream.Next() {
			event := stream.Current()
			if err := msg.Accumulate(event); err != nil {
				sendDelta(ctx, out, model.StreamDelta{Err: fmt.Errorf("error accumulating message: %w: %w", model.ErrProviderInvalidResponse, err)})
				return
			}

			if delta, ok := event.AsAny().(anthropic.ContentBlockDeltaEvent); ok {
				if text, ok := delta.Delta.AsAny().(anthropic.TextDelta); ok && text.Text != "" {
					if !sendDelta(ctx, out, model.StreamDelta{Text: text.Text}) {
						return
					}
				}
			}
		}

		if err := stream.Err(); err != nil {
			if config.DebugLog != nil {
				config.DebugLog.Printf("[Anthropic] Stream error: %v", err)
			}
			sendDelta(ctx, out, model.StreamDelta{Err: fmt.Errorf("Anthropic streaming error: %w: %w", model.ErrStreamFailed, err)})
			return
		}

		if err := stopReasonError(msg.StopReason); err != nil {
			sendDelta(ctx, out, model.StreamDelta{Err: err})
			return
		}

		_, calls := splitContent(msg.Content)
		for i, call := range calls {
			frag := &model.ToolCallDelta{Index: i, ID: call.ID, Name: call.Name, Arguments: call.Arguments}
			if !sendDelta(ctx, out, model.StreamDelta{ToolCall: frag}) {
				return
			}
		}
	}()

	return out, nil
}

// ListModels implements model.Provider.ListModels.
// Returns a curated list of known Claude models.
func (p *AnthropicProvider) ListModels(ctx context.Context) ([]model.ModelInfo, error) {
	models := []anthropic.Model{
		anthropic.ModelClaudeSonnet4_5_20250929,
		anthropic.ModelClaude3_5Haiku20241022,
		anthropic.ModelClaude_3_Opus_20240229,
		anthropic.ModelClaude_3_Haiku_20240307,
	}

	result := make([]model.ModelInfo, 0, len(models))
	for _, m := range models {
		result = append(result, model.ModelInfo{
			Name:     string(m),
			Provider: string(ProviderTypeAnthropic),
		})
	}

	return result, nil
}

func (p *AnthropicProvider) GetModel() string {
	return string(p.model)
}

func (p *AnthropicProvider) SetModel(model string) {
	p.model = anthropic.Model(model)
}

// Ping implements model.Provider.Ping with a minimal request, since Anthropic
// has no health endpoint.
func (p *AnthropicProvider) Ping(ctx context.Context) error {
	_, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     p.model,
		MaxTokens: 1,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock("ping")),
		},
	})
	if err != nil {
		return fmt.Errorf("Anthropic ping failed: %w", err)
	}
	return nil
}
