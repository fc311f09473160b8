package model

import (
	"time"

	"github.com/google/uuid"
)

// Role identifies the author of a message.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// ToolCall is a single tool invocation requested by the provider.
// Arguments holds the raw JSON text exactly as the provider produced it.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// Message is one entry of a conversation. Values are treated as immutable:
// the With* helpers return modified copies and keep the ID stable.
type Message struct {
	ID          string
	Role        string
	Text        string
	IsReceiving bool // placeholder currently being filled by a provider call
	IsError     bool // display-only record of a failed turn, never sent upstream
	IsHidden    bool // tool results the presentation layer should not show
	ToolCall    *ToolCall
	// Round is the ID of the assistant turn that issued ToolCall. Results
	// sharing a Round answer calls made together.
	Round     string
	Timestamp time.Time
}

// NewMessage creates a message with a fresh ID.
func NewMessage(role, text string) Message {
	return Message{
		ID:        uuid.NewString(),
		Role:      role,
		Text:      text,
		Timestamp: time.Now(),
	}
}

func SystemMessage(text string) Message    { return NewMessage(RoleSystem, text) }
func UserMessage(text string) Message      { return NewMessage(RoleUser, text) }
func AssistantMessage(text string) Message { return NewMessage(RoleAssistant, text) }

// ReceivingMessage is the assistant placeholder shown while a reply is pending.
func ReceivingMessage() Message {
	m := NewMessage(RoleAssistant, "")
	m.IsReceiving = true
	return m
}

// ErrorMessage records a failed turn in the transcript.
func ErrorMessage(text string) Message {
	m := NewMessage(RoleAssistant, text)
	m.IsError = true
	return m
}

// ToolResultMessage answers call with result, the JSON text returned to the provider.
func ToolResultMessage(call ToolCall, result string, hidden bool) Message {
	m := NewMessage(RoleTool, result)
	c := call
	m.ToolCall = &c
	m.IsHidden = hidden
	return m
}

// WithText returns a copy of m carrying text.
func (m Message) WithText(text string) Message {
	m.Text = text
	return m
}

// InRound returns a copy of m attributed to the assistant turn id.
func (m Message) InRound(id string) Message {
	m.Round = id
	return m
}

// Committed returns a copy of m that is no longer receiving.
func (m Message) Committed() Message {
	m.IsReceiving = false
	return m
}

// Outbound reports whether m belongs in a provider request.
func (m Message) Outbound() bool {
	return !m.IsReceiving && !m.IsError
}
