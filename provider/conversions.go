package provider

import (
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/ollama/ollama/api"
	"github.com/openai/openai-go/v3"

	"chatview/model"
	"chatview/tools"
)

// Tool results are stored as role "tool" messages that carry the call they
// answer and the Round that issued it. Backends expect the assistant turn that
// issued those calls to precede them, so each converter rebuilds one such turn
// per round.

// toolRun returns the calls answered by the consecutive tool messages of one
// round starting at i, and the index just past the run.
func toolRun(messages []model.Message, i int) ([]model.ToolCall, int) {
	round := messages[i].Round
	var calls []model.ToolCall
	for ; i < len(messages) && messages[i].Role == model.RoleTool && messages[i].Round == round; i++ {
		if messages[i].ToolCall != nil {
			calls = append(calls, *messages[i].ToolCall)
		}
	}
	return calls, i
}

// issuedByPrevious reports whether the assistant message right before the
// tool run at i is the turn that issued its calls.
func issuedByPrevious(messages []model.Message, i int) bool {
	if i == 0 {
		return false
	}
	prev := messages[i-1]
	if prev.Role != model.RoleAssistant {
		return false
	}
	round := messages[i].Round
	return round == "" || prev.ID == round
}

// ConvertToOpenAIMessages converts conversation messages to OpenAI chat
// completion messages. encodeName maps tool names onto what the backend
// accepts (nil keeps them as-is).
func ConvertToOpenAIMessages(messages []model.Message, encodeName func(string) string) []openai.ChatCompletionMessageParamUnion {
	if encodeName == nil {
		encodeName = func(s string) string { return s }
	}

	result := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))

	for i := 0; i < len(messages); {
		msg := messages[i]
		switch msg.Role {
		case model.RoleSystem:
			result = append(result, openai.SystemMessage(msg.Text))
		case model.RoleAssistant:
			result = append(result, openai.AssistantMessage(msg.Text))
		case model.RoleTool:
			calls, next := toolRun(messages, i)

			toolCalls := make([]openai.ChatCompletionMessageToolCallUnionParam, 0, len(calls))
			for _, c := range calls {
				toolCalls = append(toolCalls, openai.ChatCompletionMessageToolCallUnionParam{
					OfFunction: &openai.ChatCompletionMessageFunctionToolCallParam{
						ID: c.ID,
						Function: openai.ChatCompletionMessageFunctionToolCallFunctionParam{
							Name:      encodeName(c.Name),
							Arguments: c.Arguments,
						},
					},
				})
			}

			// A preceding assistant preamble carries the calls itself.
			last := len(result) - 1
			if issuedByPrevious(messages, i) && last >= 0 && result[last].OfAssistant != nil && len(result[last].OfAssistant.ToolCalls) == 0 {
				result[last].OfAssistant.ToolCalls = toolCalls
			} else {
				result = append(result, openai.ChatCompletionMessageParamUnion{
					OfAssistant: &openai.ChatCompletionAssistantMessageParam{ToolCalls: toolCalls},
				})
			}

			for _, m := range messages[i:next] {
				id := ""
				if m.ToolCall != nil {
					id = m.ToolCall.ID
				}
				result = append(result, openai.ToolMessage(m.Text, id))
			}
			i = next
			continue
		default:
			result = append(result, openai.UserMessage(msg.Text))
		}
		i++
	}

	return result
}

// convertToAnthropicMessages converts conversation messages to Anthropic
// format. System messages are returned separately since Anthropic takes them
// as a request parameter.
func convertToAnthropicMessages(messages []model.Message) ([]anthropic.MessageParam, []anthropic.TextBlockParam) {
	var systemBlocks []anthropic.TextBlockParam
	anthropicMsgs := make([]anthropic.MessageParam, 0, len(messages))

	for i := 0; i < len(messages); {
		msg := messages[i]
		switch msg.Role {
		case model.RoleSystem:
			systemBlocks = append(systemBlocks, anthropic.TextBlockParam{Text: msg.Text})
		case model.RoleAssistant:
			if msg.Text != "" {
				anthropicMsgs = append(anthropicMsgs,
					anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Text)),
				)
			}
		case model.RoleTool:
			calls, next := toolRun(messages, i)

			uses := make([]anthropic.ContentBlockParamUnion, 0, len(calls))
			for _, c := range calls {
				uses = append(uses, anthropic.NewToolUseBlock(c.ID, tools.ParseArguments(c.Arguments), encodeToolName(c.Name)))
			}

			last := len(anthropicMsgs) - 1
			if issuedByPrevious(messages, i) && last >= 0 && anthropicMsgs[last].Role == anthropic.MessageParamRoleAssistant {
				anthropicMsgs[last].Content = append(anthropicMsgs[last].Content, uses...)
			} else {
				anthropicMsgs = append(anthropicMsgs, anthropic.NewAssistantMessage(uses...))
			}

			results := make([]anthropic.ContentBlockParamUnion, 0, next-i)
			for _, m := range messages[i:next] {
				id := ""
				if m.ToolCall != nil {
					id = m.ToolCall.ID
				}
				results = append(results, anthropic.NewToolResultBlock(id, m.Text, false))
			}
			anthropicMsgs = append(anthropicMsgs, anthropic.NewUserMessage(results...))
			i = next
			continue
		default:
			anthropicMsgs = append(anthropicMsgs,
				anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Text)),
			)
		}
		i++
	}

	return anthropicMsgs, systemBlocks
}

// ConvertToOllamaMessages converts conversation messages to Ollama api.Message.
func ConvertToOllamaMessages(messages []model.Message) []api.Message {
	result := make([]api.Message, 0, len(messages))

	for i := 0; i < len(messages); {
		msg := messages[i]
		if msg.Role != model.RoleTool {
			result = append(result, api.Message{Role: msg.Role, Content: msg.Text})
			i++
			continue
		}

		calls, next := toolRun(messages, i)
		ollamaCalls := ConvertFromProviderToolCalls(calls)

		last := len(result) - 1
		if issuedByPrevious(messages, i) && last >= 0 && result[last].Role == model.RoleAssistant && len(result[last].ToolCalls) == 0 {
			result[last].ToolCalls = ollamaCalls
		} else {
			result = append(result, api.Message{Role: model.RoleAssistant, ToolCalls: ollamaCalls})
		}

		for _, m := range messages[i:next] {
			out := api.Message{Role: model.RoleTool, Content: m.Text}
			if m.ToolCall != nil {
				out.ToolName = m.ToolCall.Name
			}
			result = append(result, out)
		}
		i = next
	}

	return result
}

// ConvertToProviderToolCalls converts Ollama tool calls to model.ToolCall.
// Ollama does not assign call IDs, so positional ones are generated.
//
// Returns nil if the input is nil or empty.
func ConvertToProviderToolCalls(ollamaCalls []api.ToolCall) []model.ToolCall {
	if len(ollamaCalls) == 0 {
		return nil
	}

	result := make([]model.ToolCall, len(ollamaCalls))
	for i, call := range ollamaCalls {
		args, err := json.Marshal(map[string]any(call.Function.Arguments))
		if err != nil {
			args = []byte("{}")
		}
		result[i] = model.ToolCall{
			ID:        fmt.Sprintf("call_%d", i),
			Name:      call.Function.Name,
			Arguments: string(args),
		}
	}
	return result
}

// ConvertFromProviderToolCalls converts model.ToolCall to Ollama api.ToolCall.
//
// Returns nil if the input is nil or empty.
func ConvertFromProviderToolCalls(providerCalls []model.ToolCall) []api.ToolCall {
	if len(providerCalls) == 0 {
		return nil
	}

	result := make([]api.ToolCall, len(providerCalls))
	for i, call := range providerCalls {
		result[i] = api.ToolCall{
			Function: api.ToolCallFunction{
				Name:      call.Name,
				Arguments: tools.ParseArguments(call.Arguments),
			},
		}
	}
	return result
}
