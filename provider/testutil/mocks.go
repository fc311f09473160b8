package testutil

import (
	"context"
	"sync"

	mcptypes "github.com/mark3labs/mcp-go/mcp"

	"chatview/model"
)

// MockProvider implements model.Provider for testing. Every request is
// recorded before the configured func runs.
type MockProvider struct {
	// Configurable responses
	ChatFunc       func(ctx context.Context, messages []model.Message, tools []mcptypes.Tool) (*model.TurnResult, error)
	ChatStreamFunc func(ctx context.Context, messages []model.Message, tools []mcptypes.Tool) (<-chan model.StreamDelta, error)
	ListModelsFunc func(ctx context.Context) ([]model.ModelInfo, error)
	PingFunc       func(ctx context.Context) error

	mu           sync.Mutex
	requests     [][]model.Message
	currentModel string
}

// NewMockProvider creates a mock provider with default implementations
func NewMockProvider(modelName string) *MockProvider {
	mock := &MockProvider{
		currentModel: modelName,
	}
	mock.ChatFunc = mock.defaultChat
	mock.ChatStreamFunc = mock.defaultChatStream
	mock.ListModelsFunc = mock.defaultListModels
	mock.PingFunc = mock.defaultPing
	return mock
}

func (m *MockProvider) defaultChat(ctx context.Context, messages []model.Message, tools []mcptypes.Tool) (*model.TurnResult, error) {
	return &model.TurnResult{Text: "Mock response"}, nil
}

func (m *MockProvider) defaultChatStream(ctx context.Context, messages []model.Message, tools []mcptypes.Tool) (<-chan model.StreamDelta, error) {
	return TextStream("Mock ", "response"), nil
}

func (m *MockProvider) defaultListModels(ctx context.Context) ([]model.ModelInfo, error) {
	return []model.ModelInfo{
		{Name: "mock-model-1", Size: 1000, Provider: "mock"},
		{Name: "mock-model-2", Size: 2000, Provider: "mock"},
	}, nil
}

func (m *MockProvider) defaultPing(ctx context.Context) error {
	return nil
}

func (m *MockProvider) record(messages []model.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, append([]model.Message(nil), messages...))
}

// Requests returns the message lists sent so far, oldest first.
func (m *MockProvider) Requests() [][]model.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]model.Message(nil), m.requests...)
}

// LastRequest returns the most recent message list, or nil.
func (m *MockProvider) LastRequest() []model.Message {
	reqs := m.Requests()
	if len(reqs) == 0 {
		return nil
	}
	return reqs[len(reqs)-1]
}

func (m *MockProvider) Chat(ctx context.Context, messages []model.Message, tools []mcptypes.Tool) (*model.TurnResult, error) {
	m.record(messages)
	return m.ChatFunc(ctx, messages, tools)
}

func (m *MockProvider) ChatStream(ctx context.Context, messages []model.Message, tools []mcptypes.Tool) (<-chan model.StreamDelta, error) {
	m.record(messages)
	return m.ChatStreamFunc(ctx, messages, tools)
}

func (m *MockProvider) ListModels(ctx context.Context) ([]model.ModelInfo, error) {
	return m.ListModelsFunc(ctx)
}

func (m *MockProvider) GetModel() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentModel
}

func (m *MockProvider) SetModel(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.currentModel = name
}

func (m *MockProvider) Ping(ctx context.Context) error {
	return m.PingFunc(ctx)
}

// Replies returns a ChatFunc that serves results in order. Once they run out
// the last one repeats.
func Replies(results ...*model.TurnResult) func(context.Context, []model.Message, []mcptypes.Tool) (*model.TurnResult, error) {
	var mu sync.Mutex
	next := 0
	return func(ctx context.Context, messages []model.Message, tools []mcptypes.Tool) (*model.TurnResult, error) {
		mu.Lock()
		defer mu.Unlock()
		r := results[next]
		if next < len(results)-1 {
			next++
		}
		return r, nil
	}
}

// Streams returns a ChatStreamFunc that serves one delta script per call. Once
// they run out the last one repeats.
func Streams(scripts ...[]model.StreamDelta) func(context.Context, []model.Message, []mcptypes.Tool) (<-chan model.StreamDelta, error) {
	var mu sync.Mutex
	next := 0
	return func(ctx context.Context, messages []model.Message, tools []mcptypes.Tool) (<-chan model.StreamDelta, error) {
		mu.Lock()
		defer mu.Unlock()
		s := scripts[next]
		if next < len(scripts)-1 {
			next++
		}
		return DeltaStream(s...), nil
	}
}

// Blocking returns a ChatFunc that waits for ctx to be cancelled, closing
// started first so a test knows the request is in flight.
func Blocking(started chan<- struct{}) func(context.Context, []model.Message, []mcptypes.Tool) (*model.TurnResult, error) {
	return func(ctx context.Context, messages []model.Message, tools []mcptypes.Tool) (*model.TurnResult, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	}
}

// compile-time check
var _ model.Provider = (*MockProvider)(nil)
