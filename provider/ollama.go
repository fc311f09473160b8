package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
	"github.com/ollama/ollama/api"

	"chatview/config"
	"chatview/mcp"
	"chatview/model"
	"chatview/ollama"
)

// OllamaProvider wraps ollama.Client to implement model.Provider.
//
// It converts model.Message to api.Message, mcptypes.Tool to api.Tool, and
// api.ToolCall back to model.ToolCall.
type OllamaProvider struct {
	client *ollama.Client
}

// errStopStreaming ends a stream early without reporting an error.
var errStopStreaming = errors.New("stop streaming")

// NewOllamaProvider creates a new Ollama provider instance.
//
// BaseURL defaults to "http://localhost:11434" and Model to "llama3.1:latest".
// Sampling options are passed as Ollama model options.
//
// Example:
//
//	p, err := NewOllamaProvider(Config{BaseURL: "http://localhost:11434", Model: "llama3.1"})
//	if err != nil {
//	    log.Fatal(err)
//	}
func NewOllamaProvider(cfg Config) (*OllamaProvider, error) {
	httpClient := http.DefaultClient
	if cfg.Timeout > 0 {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	client, err := ollama.NewClient(cfg.BaseURL, cfg.Model, httpClient)
	if err != nil {
		return nil, fmt.Errorf("failed to create Ollama client: %w", err)
	}

	opts := cfg.requestOptions()
	client.SetOption("temperature", opts.temperature.Temperature)
	client.SetOption("top_p", opts.temperature.TopP)
	if opts.maxTokens > 0 {
		client.SetOption("num_predict", opts.maxTokens)
	}

	return &OllamaProvider{client: client}, nil
}

func (p *OllamaProvider) tools(tools []mcptypes.Tool) []api.Tool {
	if len(tools) == 0 {
		return nil
	}
	if !ollama.ModelSupportsToolCalling(p.client.GetModel()) {
		if config.DebugLog != nil {
			config.DebugLog.Printf("[Ollama] Model '%s' has no known tool support, sending request without %d tools", p.client.GetModel(), len(tools))
		}
		return nil
	}
	return mcp.ConvertMCPToolsToOllama(tools)
}

func doneReasonError(reason string) error {
	if reason == "length" {
		return model.NewChatError("ollama chat", model.ErrMaxTokensExceeded, "")
	}
	return nil
}

// Chat implements model.Provider.Chat with a non-streaming request.
func (p *OllamaProvider) Chat(ctx context.Context, messages []model.Message, tools []mcptypes.Tool) (*model.TurnResult, error) {
	var final *api.ChatResponse

	err := p.client.Chat(ctx, ConvertToOllamaMessages(messages), p.tools(tools), false, func(resp api.ChatResponse) error {
		final = &resp
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("Ollama chat error: %w", err)
	}
	if final == nil {
		return nil, model.NewChatError("ollama chat", model.ErrProviderInvalidResponse, "no response")
	}

	if err := doneReasonError(final.DoneReason); err != nil {
		return nil, err
	}

	if calls := ConvertToProviderToolCalls(final.Message.ToolCalls); len(calls) > 0 {
		return &model.TurnResult{Text: final.Message.Content, ToolCalls: calls}, nil
	}

	if final.Message.Content == "" {
		return nil, model.NewChatError("ollama chat", model.ErrNoResponseContent, "")
	}

	return &model.TurnResult{Text: final.Message.Content}, nil
}

// ChatStream implements model.Provider.ChatStream. Ollama sends each tool call
// whole, so every call becomes a single complete fragment.
func (p *OllamaProvider) ChatStream(ctx context.Context, messages []model.Message, tools []mcptypes.Tool) (<-chan model.StreamDelta, error) {
	ollamaMessages := ConvertToOllamaMessages(messages)
	ollamaTools := p.tools(tools)
	out := make(chan model.StreamDelta)

	go func() {
		defer close(out)

		callIndex := 0
		err := p.client.Chat(ctx, ollamaMessages, ollamaTools, true, func(resp api.ChatResponse) error {
			if resp.Message.Content != "" {
				if !sendDelta(ctx, out, model.StreamDelta{Text: resp.Message.Content}) {
					return errStopStreaming
				}
			}

			for _, call := range ConvertToProviderToolCalls(resp.Message.ToolCalls) {
				frag := &model.ToolCallDelta{
					Index:     callIndex,
					ID:        fmt.Sprintf("call_%d", callIndex),
					Name:      call.Name,
					Arguments: call.Arguments,
				}
				callIndex++
				if !sendDelta(ctx, out, model.StreamDelta{ToolCall: frag}) {
					return errStopStreaming
				}
			}

			if resp.Done {
				return doneReasonError(resp.DoneReason)
			}
			return nil
		})

		switch {
		case err == nil, errors.Is(err, errStopStreaming):
		case errors.Is(err, model.ErrMaxTokensExceeded):
			sendDelta(ctx, out, model.StreamDelta{Err: err})
		default:
			sendDelta(ctx, out, model.StreamDelta{Err: fmt.Errorf("Ollama streaming error: %w: %w", model.ErrStreamFailed, err)})
		}
	}()

	return out, nil
}

// ListModels implements model.Provider.ListModels.
func (p *OllamaProvider) ListModels(ctx context.Context) ([]model.ModelInfo, error) {
	return p.client.ListModels(ctx)
}

func (p *OllamaProvider) GetModel() string {
	return p.client.GetModel()
}

func (p *OllamaProvider) SetModel(model string) {
	p.client.SetModel(model)
}

// Ping implements model.Provider.Ping.
func (p *OllamaProvider) Ping(ctx context.Context) error {
	return p.client.Ping(ctx)
}
