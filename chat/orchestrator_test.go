package chat

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatview/config"
	"chatview/model"
	"chatview/provider/testutil"
	"chatview/tools"
)

func wait(t *testing.T, o *Orchestrator) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, o.Wait(ctx), "turn did not finish")
}

func weatherRegistry(called *atomic.Int32) *tools.Registry {
	return tools.NewRegistry(tools.Func{
		Decl: mcptypes.NewTool("get_weather",
			mcptypes.WithDescription("Get the weather for a city"),
			mcptypes.WithString("city", mcptypes.Required()),
		),
		Fn: func(ctx context.Context, params map[string]any) (any, error) {
			if called != nil {
				called.Add(1)
			}
			return map[string]any{"city": params["city"], "temp": 21}, nil
		},
	})
}

// collect subscribes before fn runs and returns every snapshot published
// until the turn started by fn ends.
func collect(t *testing.T, o *Orchestrator, fn func()) []Snapshot {
	t.Helper()
	ch, unsubscribe := o.Subscribe(4096)
	fn()
	wait(t, o)
	unsubscribe()

	var snaps []Snapshot
	for s := range ch {
		snaps = append(snaps, s)
	}
	return snaps
}

// stallingStream streams chunks, closes started when they are consumed and
// then holds the stream open until the request is cancelled.
func stallingStream(started chan<- struct{}, chunks ...string) func(context.Context, []model.Message, []mcptypes.Tool) (<-chan model.StreamDelta, error) {
	return func(ctx context.Context, messages []model.Message, decls []mcptypes.Tool) (<-chan model.StreamDelta, error) {
		ch := make(chan model.StreamDelta)
		go func() {
			defer close(ch)
			for _, c := range chunks {
				select {
				case ch <- model.StreamDelta{Text: c}:
				case <-ctx.Done():
					return
				}
			}
			if started != nil {
				close(started)
			}
			<-ctx.Done()
		}()
		return ch, nil
	}
}

func receivingCount(msgs []model.Message) int {
	n := 0
	for _, m := range msgs {
		if m.IsReceiving {
			n++
		}
	}
	return n
}

func TestSend_ReplyAfterSystemPrompt(t *testing.T) {
	mock := testutil.NewMockProvider("test")
	mock.ChatFunc = testutil.Replies(testutil.TextResult("hello"))

	o := New(Config{
		Provider: mock,
		Messages: []model.Message{model.SystemMessage("You are X")},
	})

	require.True(t, o.Send("hi"))
	wait(t, o)

	msgs := o.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, model.RoleSystem, msgs[0].Role)
	assert.Equal(t, model.RoleUser, msgs[1].Role)
	assert.Equal(t, "hi", msgs[1].Text)
	assert.Equal(t, model.RoleAssistant, msgs[2].Role)
	assert.Equal(t, "hello", msgs[2].Text)
	assert.False(t, msgs[2].IsReceiving)

	assert.False(t, o.IsBusy())
	assert.Equal(t, StateIdle, o.State())
	assert.Empty(t, o.ErrorMessage())

	req := mock.LastRequest()
	require.Len(t, req, 2)
	assert.Equal(t, "You are X", req[0].Text)
	assert.Equal(t, "hi", req[1].Text)
}

func TestSend_BlankTextIsIgnored(t *testing.T) {
	mock := testutil.NewMockProvider("test")
	o := New(Config{Provider: mock})

	for _, text := range []string{"", "   ", "\n\t"} {
		assert.False(t, o.Send(text), "Send(%q)", text)
	}
	wait(t, o)

	assert.Empty(t, o.Messages())
	assert.Empty(t, mock.Requests())
	assert.False(t, o.IsBusy())
}

func TestSend_WhileBusyIsIgnored(t *testing.T) {
	started := make(chan struct{})
	mock := testutil.NewMockProvider("test")
	mock.ChatFunc = testutil.Blocking(started)

	o := New(Config{Provider: mock})
	require.True(t, o.Send("first"))
	<-started

	assert.True(t, o.IsBusy())
	assert.False(t, o.Send("second"))
	assert.False(t, o.Retry())
	assert.False(t, o.Start())
	assert.False(t, o.Reset())

	require.True(t, o.Cancel())
	wait(t, o)

	assert.Len(t, mock.Requests(), 1)
	msgs := o.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "first", msgs[0].Text)
}

func TestRetry_WithoutErrorDoesNothing(t *testing.T) {
	mock := testutil.NewMockProvider("test")
	o := New(Config{Provider: mock, Messages: testutil.TestMessages()})

	assert.False(t, o.Retry())
	wait(t, o)

	assert.Empty(t, mock.Requests())
	assert.Len(t, o.Messages(), len(testutil.TestMessages()))
}

func TestRetry_RemovesErrorAndResends(t *testing.T) {
	var calls atomic.Int32
	mock := testutil.NewMockProvider("test")
	mock.ChatFunc = func(ctx context.Context, messages []model.Message, decls []mcptypes.Tool) (*model.TurnResult, error) {
		if calls.Add(1) == 1 {
			return nil, errors.New("boom")
		}
		return testutil.TextResult("recovered"), nil
	}

	o := New(Config{Provider: mock})
	require.True(t, o.Send("hi"))
	wait(t, o)

	assert.Equal(t, StateError, o.State())
	assert.Equal(t, "An error occurred: boom", o.ErrorMessage())
	msgs := o.Messages()
	require.Len(t, msgs, 2)
	assert.True(t, msgs[1].IsError)
	assert.Equal(t, "An error occurred: boom", msgs[1].Text)

	require.True(t, o.Retry())
	wait(t, o)

	assert.Equal(t, int32(2), calls.Load())
	reqs := mock.Requests()
	require.Len(t, reqs, 2)
	require.Len(t, reqs[1], 1, "error message must not be sent")
	assert.Equal(t, "hi", reqs[1][0].Text)

	msgs = o.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "recovered", msgs[1].Text)
	assert.False(t, msgs[1].IsError)
	assert.Empty(t, o.ErrorMessage())
	assert.Equal(t, StateIdle, o.State())
}

func TestError_MessageNeverSentUpstream(t *testing.T) {
	var calls atomic.Int32
	mock := testutil.NewMockProvider("test")
	mock.ChatFunc = func(ctx context.Context, messages []model.Message, decls []mcptypes.Tool) (*model.TurnResult, error) {
		if calls.Add(1) == 1 {
			return nil, model.NewChatError("openai chat", model.ErrProviderInvalidResponse, "no choices")
		}
		return testutil.TextResult("ok"), nil
	}

	o := New(Config{Provider: mock})
	require.True(t, o.Send("one"))
	wait(t, o)
	assert.Contains(t, o.ErrorMessage(), "An error occurred: ")

	require.True(t, o.Send("two"))
	wait(t, o)

	req := mock.LastRequest()
	require.Len(t, req, 2)
	for _, m := range req {
		assert.False(t, m.IsError)
	}
	assert.Empty(t, o.ErrorMessage())
	assert.Len(t, o.Messages(), 4)
}

func TestReset_KeepsSystemMessages(t *testing.T) {
	mock := testutil.NewMockProvider("test")
	o := New(Config{Provider: mock, Messages: testutil.TestMessages()})

	require.True(t, o.Reset())

	msgs := o.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, model.RoleSystem, msgs[0].Role)
	assert.Empty(t, mock.Requests())
	assert.Equal(t, StateIdle, o.State())
}

func TestReset_NotifiesOnReset(t *testing.T) {
	var got [][]model.Message
	o := New(Config{
		Provider: testutil.NewMockProvider("test"),
		Messages: testutil.TestMessages(),
		OnReset:  func(msgs []model.Message) { got = append(got, msgs) },
	})

	require.True(t, o.Reset())
	require.Len(t, got, 1)
	require.Len(t, got[0], 1)
	assert.Equal(t, model.RoleSystem, got[0][0].Role)
}

func TestReset_RefusedWhileBusySkipsOnReset(t *testing.T) {
	started := make(chan struct{})
	mock := testutil.NewMockProvider("test")
	mock.ChatFunc = testutil.Blocking(started)

	var resets atomic.Int32
	o := New(Config{Provider: mock, OnReset: func([]model.Message) { resets.Add(1) }})
	require.True(t, o.Send("hi"))
	<-started

	assert.False(t, o.Reset())
	require.True(t, o.Cancel())
	wait(t, o)
	assert.Zero(t, resets.Load())
}

func TestReset_WithMessages(t *testing.T) {
	mock := testutil.NewMockProvider("test")
	o := New(Config{Provider: mock, Messages: testutil.TestMessages()})

	seed := testutil.ToolRoundTrip()
	require.True(t, o.Reset(seed...))

	assert.Equal(t, seed, o.Messages())
	assert.Empty(t, mock.Requests())
}

func TestReset_ClearsError(t *testing.T) {
	mock := testutil.NewMockProvider("test")
	mock.ChatFunc = func(ctx context.Context, messages []model.Message, decls []mcptypes.Tool) (*model.TurnResult, error) {
		return nil, errors.New("down")
	}

	o := New(Config{Provider: mock})
	require.True(t, o.Send("hi"))
	wait(t, o)
	require.NotEmpty(t, o.ErrorMessage())

	require.True(t, o.Reset())
	assert.Empty(t, o.ErrorMessage())
	assert.Empty(t, o.Messages())
	assert.Equal(t, StateIdle, o.State())
}

func TestStart_ToolRoundsAppendOneMessageEach(t *testing.T) {
	var called atomic.Int32
	mock := testutil.NewMockProvider("test")
	mock.ChatFunc = testutil.Replies(
		testutil.ToolCallResult(model.ToolCall{ID: "call_1", Name: "get_weather", Arguments: `{"city":"Paris"}`}),
		testutil.ToolCallResult(model.ToolCall{ID: "call_2", Name: "get_weather", Arguments: `{"city":"Oslo"}`}),
		testutil.TextResult("Paris is warmer."),
	)

	o := New(Config{
		Provider: mock,
		Tools:    weatherRegistry(&called),
		Messages: []model.Message{model.UserMessage("Compare Paris and Oslo")},
	})

	require.True(t, o.Start())
	wait(t, o)

	msgs := o.Messages()
	require.Len(t, msgs, 4)
	assert.Equal(t, model.RoleTool, msgs[1].Role)
	assert.Equal(t, "call_1", msgs[1].ToolCall.ID)
	assert.True(t, msgs[1].IsHidden)
	assert.JSONEq(t, `{"city":"Paris","temp":21}`, msgs[1].Text)
	assert.Equal(t, "call_2", msgs[2].ToolCall.ID)
	assert.Equal(t, "Paris is warmer.", msgs[3].Text)
	assert.Equal(t, int32(2), called.Load())

	// Each round is attributed to its own assistant turn.
	assert.NotEmpty(t, msgs[1].Round)
	assert.NotEmpty(t, msgs[2].Round)
	assert.NotEqual(t, msgs[1].Round, msgs[2].Round)

	reqs := mock.Requests()
	require.Len(t, reqs, 3)
	assert.Len(t, reqs[0], 1)
	assert.Len(t, reqs[1], 2)
	assert.Len(t, reqs[2], 3)
}

func TestToolCall_TextKeptBeforeResults(t *testing.T) {
	mock := testutil.NewMockProvider("test")
	mock.ChatFunc = testutil.Replies(
		&model.TurnResult{
			Text:      "Let me check.",
			ToolCalls: []model.ToolCall{{ID: "call_1", Name: "get_weather", Arguments: `{"city":"Paris"}`}},
		},
		testutil.TextResult("Sunny."),
	)

	o := New(Config{Provider: mock, Tools: weatherRegistry(nil), ShowToolResults: true})
	require.True(t, o.Send("Weather in Paris?"))
	wait(t, o)

	msgs := o.Messages()
	require.Len(t, msgs, 4)
	assert.Equal(t, "Let me check.", msgs[1].Text)
	assert.Equal(t, model.RoleAssistant, msgs[1].Role)
	assert.Equal(t, model.RoleTool, msgs[2].Role)
	assert.False(t, msgs[2].IsHidden)
	assert.Equal(t, msgs[1].ID, msgs[2].Round)
	assert.Equal(t, "Sunny.", msgs[3].Text)
}

func TestToolCall_MissingParameterNeverInvokesTool(t *testing.T) {
	var called atomic.Int32
	mock := testutil.NewMockProvider("test")
	mock.ChatFunc = testutil.Replies(
		testutil.ToolCallResult(model.ToolCall{ID: "call_1", Name: "get_weather", Arguments: `{}`}),
		testutil.TextResult("Which city?"),
	)

	o := New(Config{Provider: mock, Tools: weatherRegistry(&called)})
	require.True(t, o.Send("Weather?"))
	wait(t, o)

	assert.Zero(t, called.Load())

	req := mock.LastRequest()
	require.Len(t, req, 2)
	var result map[string]string
	require.NoError(t, json.Unmarshal([]byte(req[1].Text), &result))
	assert.Equal(t, "failed", result["status"])
	assert.Contains(t, result["error"], "missing required parameters")
	assert.Contains(t, result["error"], "city")
	assert.Equal(t, StateIdle, o.State())
}

func TestToolCall_UnknownToolAbortsTurn(t *testing.T) {
	mock := testutil.NewMockProvider("test")
	mock.ChatFunc = testutil.Replies(
		testutil.ToolCallResult(model.ToolCall{ID: "call_1", Name: "launch_rocket", Arguments: `{}`}),
	)

	o := New(Config{Provider: mock, Tools: weatherRegistry(nil)})
	require.True(t, o.Send("Go"))
	wait(t, o)

	assert.Equal(t, StateError, o.State())
	assert.Contains(t, o.ErrorMessage(), "launch_rocket")
	assert.Len(t, mock.Requests(), 1)
	assert.Zero(t, receivingCount(o.Messages()))
}

func TestToolCall_LoopIsBounded(t *testing.T) {
	var turnErr error
	mock := testutil.NewMockProvider("test")
	mock.ChatFunc = testutil.Replies(
		testutil.ToolCallResult(model.ToolCall{ID: "call_1", Name: "get_weather", Arguments: `{"city":"Rome"}`}),
	)

	o := New(Config{
		Provider:          mock,
		Tools:             weatherRegistry(nil),
		MaxToolIterations: 2,
		OnTurnEnd:         func(_ []model.Message, err error) { turnErr = err },
	})
	require.True(t, o.Send("loop"))
	wait(t, o)

	assert.ErrorIs(t, turnErr, model.ErrToolLoopExceeded)
	assert.Len(t, mock.Requests(), 3)
	assert.Equal(t, StateError, o.State())
}

func TestChat_NilResultIsInvariantViolation(t *testing.T) {
	var turnErr error
	mock := testutil.NewMockProvider("test")
	mock.ChatFunc = func(ctx context.Context, messages []model.Message, decls []mcptypes.Tool) (*model.TurnResult, error) {
		return nil, nil
	}

	o := New(Config{
		Provider:  mock,
		OnTurnEnd: func(_ []model.Message, err error) { turnErr = err },
	})
	require.True(t, o.Send("hi"))
	wait(t, o)

	assert.ErrorIs(t, turnErr, model.ErrInternalInvariantViolation)
	assert.Equal(t, StateError, o.State())
}

func TestStream_ChunksMergeIntoOneMessage(t *testing.T) {
	mock := testutil.NewMockProvider("test")
	mock.ChatStreamFunc = testutil.Streams([]model.StreamDelta{{Text: "Hel"}, {Text: "lo"}})

	o := New(Config{Provider: mock, Stream: true, Debounce: -1})

	snaps := collect(t, o, func() { require.True(t, o.Send("hi")) })

	msgs := o.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "Hello", msgs[1].Text)
	assert.False(t, msgs[1].IsReceiving)

	// Every intermediate version of the reply carries the same ID.
	ids := make(map[string]bool)
	sawPartial := false
	for _, s := range snaps {
		for _, m := range s.Messages {
			if m.Role == model.RoleAssistant {
				ids[m.ID] = true
				if m.Text == "Hel" {
					sawPartial = true
				}
			}
		}
	}
	assert.Len(t, ids, 1)
	assert.True(t, sawPartial)
}

func TestStream_DebounceStillDeliversFinalText(t *testing.T) {
	mock := testutil.NewMockProvider("test")
	mock.ChatStreamFunc = testutil.Streams([]model.StreamDelta{
		{Text: "a"}, {Text: "b"}, {Text: "c"}, {Text: "d"},
	})

	o := New(Config{Provider: mock, Stream: true, Debounce: time.Hour})
	require.True(t, o.Send("hi"))
	wait(t, o)

	msgs := o.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "abcd", msgs[1].Text)
}

func TestStream_HeldBackTextIsPublishedDuringPause(t *testing.T) {
	mock := testutil.NewMockProvider("test")
	mock.ChatStreamFunc = stallingStream(nil, "a", "b")

	o := New(Config{Provider: mock, Stream: true, Debounce: 50 * time.Millisecond})
	require.True(t, o.Send("hi"))

	require.Eventually(t, func() bool {
		msgs := o.Messages()
		return len(msgs) == 2 && msgs[1].Text == "ab"
	}, time.Second, 10*time.Millisecond, "text held back by the debounce was never published")
	assert.True(t, o.Messages()[1].IsReceiving)

	require.True(t, o.Cancel())
	wait(t, o)
}

func TestStream_AtMostOneReceivingMessage(t *testing.T) {
	mock := testutil.NewMockProvider("test")
	mock.ChatStreamFunc = testutil.Streams(
		[]model.StreamDelta{
			{Text: "Checking "},
			{ToolCall: &model.ToolCallDelta{Index: 0, ID: "call_a", Name: "get_weather"}},
			{ToolCall: &model.ToolCallDelta{Index: 0, Arguments: `{"city":`}},
			{ToolCall: &model.ToolCallDelta{Index: 0, Arguments: `"Lima"}`}},
		},
		[]model.StreamDelta{{Text: "It is "}, {Text: "mild."}},
	)

	o := New(Config{Provider: mock, Stream: true, Debounce: -1, Tools: weatherRegistry(nil)})
	snaps := collect(t, o, func() { require.True(t, o.Send("Lima?")) })

	require.NotEmpty(t, snaps)
	for i, s := range snaps {
		assert.LessOrEqual(t, receivingCount(s.Messages), 1, "snapshot %d", i)
	}
	last := snaps[len(snaps)-1]
	assert.False(t, last.Busy)
	assert.Zero(t, receivingCount(last.Messages))

	msgs := o.Messages()
	require.Len(t, msgs, 4)
	assert.Equal(t, "Checking ", msgs[1].Text)
	require.NotNil(t, msgs[2].ToolCall)
	assert.Equal(t, "call_a", msgs[2].ToolCall.ID)
	assert.JSONEq(t, `{"city":"Lima","temp":21}`, msgs[2].Text)
	assert.Equal(t, "It is mild.", msgs[3].Text)
}

func TestStream_EmptyResponse(t *testing.T) {
	var turnErr error
	mock := testutil.NewMockProvider("test")
	mock.ChatStreamFunc = testutil.Streams(nil)

	o := New(Config{
		Provider:  mock,
		Stream:    true,
		OnTurnEnd: func(_ []model.Message, err error) { turnErr = err },
	})
	require.True(t, o.Send("hi"))
	wait(t, o)

	assert.ErrorIs(t, turnErr, model.ErrNoResponseContent)
	assert.Equal(t, StateError, o.State())
}

func TestStream_ErrorDelta(t *testing.T) {
	mock := testutil.NewMockProvider("test")
	mock.ChatStreamFunc = testutil.Streams([]model.StreamDelta{
		{Text: "partial"},
		{Err: errors.New("connection reset")},
	})

	o := New(Config{Provider: mock, Stream: true, Debounce: -1})
	require.True(t, o.Send("hi"))
	wait(t, o)

	msgs := o.Messages()
	require.Len(t, msgs, 2)
	assert.True(t, msgs[1].IsError)
	assert.Equal(t, "An error occurred: connection reset", o.ErrorMessage())
}

func TestStream_UnnamedToolCallIsInvalid(t *testing.T) {
	var turnErr error
	mock := testutil.NewMockProvider("test")
	mock.ChatStreamFunc = testutil.Streams([]model.StreamDelta{
		{ToolCall: &model.ToolCallDelta{Index: 0, Arguments: `{}`}},
	})

	o := New(Config{
		Provider:  mock,
		Stream:    true,
		Tools:     weatherRegistry(nil),
		OnTurnEnd: func(_ []model.Message, err error) { turnErr = err },
	})
	require.True(t, o.Send("hi"))
	wait(t, o)

	assert.ErrorIs(t, turnErr, model.ErrProviderInvalidResponse)
}

func TestCancel_RemovesPlaceholderWithoutError(t *testing.T) {
	started := make(chan struct{})
	mock := testutil.NewMockProvider("test")
	mock.ChatFunc = testutil.Blocking(started)

	o := New(Config{Provider: mock})
	assert.False(t, o.Cancel())

	require.True(t, o.Send("hi"))
	<-started
	assert.Equal(t, 1, receivingCount(o.Messages()))

	require.True(t, o.Cancel())
	wait(t, o)

	msgs := o.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "hi", msgs[0].Text)
	assert.Equal(t, StateIdle, o.State())
	assert.Empty(t, o.ErrorMessage())
	assert.False(t, o.IsBusy())
}

func TestCancel_DuringStream(t *testing.T) {
	started := make(chan struct{})
	mock := testutil.NewMockProvider("test")
	mock.ChatStreamFunc = stallingStream(started, "partial ", "reply")

	var turnErr error
	o := New(Config{
		Provider:  mock,
		Stream:    true,
		Debounce:  -1,
		OnTurnEnd: func(_ []model.Message, err error) { turnErr = err },
	})
	require.True(t, o.Send("hi"))
	<-started

	require.Eventually(t, func() bool { return o.State() == StateStreaming }, time.Second, 5*time.Millisecond)
	require.True(t, o.Cancel())
	wait(t, o)

	msgs := o.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "hi", msgs[0].Text)
	assert.Zero(t, receivingCount(msgs))
	assert.Equal(t, StateIdle, o.State())
	assert.Empty(t, o.ErrorMessage())
	assert.False(t, o.IsBusy())
	assert.True(t, isCancelled(turnErr))
}

func TestCancel_DuringToolCall(t *testing.T) {
	started := make(chan struct{})
	registry := tools.NewRegistry(tools.Func{
		Decl: mcptypes.NewTool("slow_lookup", mcptypes.WithDescription("Takes a while")),
		Fn: func(ctx context.Context, params map[string]any) (any, error) {
			close(started)
			<-ctx.Done()
			return nil, ctx.Err()
		},
	})

	mock := testutil.NewMockProvider("test")
	mock.ChatFunc = testutil.Replies(
		testutil.ToolCallResult(model.ToolCall{ID: "call_1", Name: "slow_lookup", Arguments: `{}`}),
		testutil.TextResult("never requested"),
	)

	o := New(Config{Provider: mock, Tools: registry})
	require.True(t, o.Send("look it up"))
	<-started

	assert.Equal(t, StateAwaitingToolResult, o.State())
	require.True(t, o.Cancel())
	wait(t, o)

	msgs := o.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "look it up", msgs[0].Text)
	assert.Equal(t, StateIdle, o.State())
	assert.Empty(t, o.ErrorMessage())
	assert.Len(t, mock.Requests(), 1)
}

func TestTriggers_FireOnFinalReply(t *testing.T) {
	mock := testutil.NewMockProvider("test")
	mock.ChatFunc = testutil.Replies(testutil.TextResult("Your ORDER is confirmed."))

	var fired, other atomic.Int32
	o := New(Config{
		Provider: mock,
		Triggers: []Trigger{
			ContainsTrigger("order is confirmed", func() { fired.Add(1) }),
			ContainsTrigger("refund", func() { other.Add(1) }),
		},
	})
	require.True(t, o.Send("Buy it"))
	wait(t, o)

	assert.Equal(t, int32(1), fired.Load())
	assert.Zero(t, other.Load())
}

func TestTriggers_SkippedOnFailure(t *testing.T) {
	mock := testutil.NewMockProvider("test")
	mock.ChatFunc = func(ctx context.Context, messages []model.Message, decls []mcptypes.Tool) (*model.TurnResult, error) {
		return nil, errors.New("down")
	}

	var fired atomic.Int32
	o := New(Config{
		Provider: mock,
		Triggers: []Trigger{TriggerFunc{
			Match: func(string) bool { return true },
			Fire:  func() { fired.Add(1) },
		}},
	})
	require.True(t, o.Send("hi"))
	wait(t, o)

	assert.Zero(t, fired.Load())
}

func TestOnTurnEnd_ReceivesSettledConversation(t *testing.T) {
	mock := testutil.NewMockProvider("test")

	var (
		mu           sync.Mutex
		got          []model.Message
		busy, resent bool
		o            *Orchestrator
	)
	o = New(Config{
		Provider: mock,
		OnTurnEnd: func(msgs []model.Message, err error) {
			mu.Lock()
			defer mu.Unlock()
			assert.NoError(t, err)
			got = msgs
			busy = o.IsBusy()
			resent = o.Send("too early")
		},
	})
	require.True(t, o.Send("hi"))
	wait(t, o)

	mu.Lock()
	defer mu.Unlock()
	assert.True(t, busy, "the hook runs before the turn is released")
	assert.False(t, resent)
	assert.False(t, o.IsBusy())
	require.Len(t, got, 2)
	assert.Equal(t, "Mock response", got[1].Text)
	assert.Zero(t, receivingCount(got))
}

func TestSubscribe_FirstSnapshotIsCurrent(t *testing.T) {
	o := New(Config{Provider: testutil.NewMockProvider("test"), Messages: testutil.TestMessages()})

	ch, unsubscribe := o.Subscribe(1)
	snap := <-ch
	assert.Len(t, snap.Messages, 4)
	assert.Equal(t, StateIdle, snap.State)
	assert.False(t, snap.Busy)

	unsubscribe()
	unsubscribe()
	_, ok := <-ch
	assert.False(t, ok)
}

func TestSubscribe_FullBufferKeepsNewest(t *testing.T) {
	o := New(Config{Provider: testutil.NewMockProvider("test")})

	ch, unsubscribe := o.Subscribe(1)
	defer unsubscribe()

	o.Reset(model.UserMessage("one"))
	o.Reset(model.UserMessage("two"))

	snap := <-ch
	require.Len(t, snap.Messages, 1)
	assert.Equal(t, "two", snap.Messages[0].Text)
}

func TestState_String(t *testing.T) {
	tests := map[State]string{
		StateIdle:               "idle",
		StateSending:            "sending",
		StateStreaming:          "streaming",
		StateAwaitingToolResult: "awaiting-tool-result",
		StateError:              "error",
		State(42):               "unknown",
	}
	for s, want := range tests {
		assert.Equal(t, want, s.String())
	}
}

func TestSuggestion_Text(t *testing.T) {
	assert.Equal(t, "Plan a trip to Lisbon", Suggestion{Title: "Plan a trip", Body: "to Lisbon"}.Text())
	assert.Equal(t, "Custom", Suggestion{Title: "Plan", Body: "x", Prompt: "Custom"}.Text())
	assert.Equal(t, "Only title", Suggestion{Title: "Only title"}.Text())
}

func TestSuggestionsFromConfig_SkipsEmptyEntries(t *testing.T) {
	got := SuggestionsFromConfig([]config.SuggestionConfig{
		{Title: "Explain", Body: "goroutines"},
		{},
		{Prompt: "Tell me a joke"},
	})
	require.Len(t, got, 2)
	assert.Equal(t, "Explain goroutines", got[0].Text())
	assert.Equal(t, "Tell me a joke", got[1].Text())
}
