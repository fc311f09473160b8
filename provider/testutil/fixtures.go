package testutil

import (
	mcptypes "github.com/mark3labs/mcp-go/mcp"

	"chatview/model"
)

// TestMessages returns a sample conversation for testing
func TestMessages() []model.Message {
	return []model.Message{
		model.SystemMessage("You are a helpful assistant."),
		model.UserMessage("Hello, how are you?"),
		model.AssistantMessage("I'm doing well, thank you!"),
		model.UserMessage("Can you help me with a task?"),
	}
}

// ToolRoundTrip returns a conversation where the assistant called a tool and
// got its answer.
func ToolRoundTrip() []model.Message {
	call := model.ToolCall{ID: "call_1", Name: "get_weather", Arguments: `{"location":"Paris"}`}
	preamble := model.AssistantMessage("Let me check.")
	return []model.Message{
		model.UserMessage("What's the weather in Paris?"),
		preamble,
		model.ToolResultMessage(call, `{"temp":21}`, true).InRound(preamble.ID),
	}
}

// SequentialToolRounds returns a conversation where two tool calls were made
// one after the other, each in its own assistant turn without text.
func SequentialToolRounds() []model.Message {
	first := model.ToolCall{ID: "call_1", Name: "get_weather", Arguments: `{"location":"Paris"}`}
	second := model.ToolCall{ID: "call_2", Name: "get_weather", Arguments: `{"location":"Rome"}`}
	return []model.Message{
		model.UserMessage("Paris or Rome, which is warmer?"),
		model.ToolResultMessage(first, `{"temp":21}`, true).InRound("round-1"),
		model.ToolResultMessage(second, `{"temp":25}`, true).InRound("round-2"),
	}
}

// ToolCallResult returns a turn result asking for the given calls.
func ToolCallResult(calls ...model.ToolCall) *model.TurnResult {
	return &model.TurnResult{ToolCalls: calls}
}

// TextResult returns a plain text turn result.
func TextResult(text string) *model.TurnResult {
	return &model.TurnResult{Text: text}
}

// TextStream returns a closed-when-drained stream of text deltas.
func TextStream(chunks ...string) <-chan model.StreamDelta {
	deltas := make([]model.StreamDelta, len(chunks))
	for i, c := range chunks {
		deltas[i] = model.StreamDelta{Text: c}
	}
	return DeltaStream(deltas...)
}

// DeltaStream returns a buffered channel holding deltas, already closed.
func DeltaStream(deltas ...model.StreamDelta) <-chan model.StreamDelta {
	ch := make(chan model.StreamDelta, len(deltas))
	for _, d := range deltas {
		ch <- d
	}
	close(ch)
	return ch
}

// TestMCPTools returns sample tool declarations for testing
func TestMCPTools() []mcptypes.Tool {
	return []mcptypes.Tool{
		{
			Name:        "get_weather",
			Description: "Get the current weather for a location",
			InputSchema: mcptypes.ToolInputSchema{
				Type: "object",
				Properties: map[string]any{
					"location": map[string]any{
						"type":        "string",
						"description": "The city and state, e.g. San Francisco, CA",
					},
				},
				Required: []string{"location"},
			},
		},
		{
			Name:        "notes.search",
			Description: "Search saved notes",
			InputSchema: mcptypes.ToolInputSchema{
				Type: "object",
				Properties: map[string]any{
					"query": map[string]any{"type": "string"},
				},
				Required: []string{"query"},
			},
		},
	}
}
