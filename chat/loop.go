package chat

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
	"golang.org/x/time/rate"

	"chatview/config"
	"chatview/model"
)

// turn runs provider calls until a final reply is committed and returns its
// text. Each tool round settles the current placeholder, adds the tool
// results and opens a new one.
func (o *Orchestrator) turn(ctx context.Context) (string, error) {
	var decls []mcptypes.Tool
	if o.tools != nil {
		decls = o.tools.Declarations()
	}

	for round := 0; ; round++ {
		outbound, placeholder := o.openPlaceholder()

		var (
			res *model.TurnResult
			err error
		)
		if o.stream {
			res, err = o.streamRound(ctx, outbound, decls, placeholder)
		} else {
			res, err = o.provider.Chat(ctx, outbound, decls)
		}
		if ctx.Err() != nil {
			return "", model.NewChatError("chat turn", model.ErrCancelled, "")
		}
		if err != nil {
			return "", err
		}
		if res == nil {
			return "", model.NewChatError("chat turn", model.ErrInternalInvariantViolation, "provider returned no result and no error")
		}

		if !res.IsToolCall() {
			o.update(func() {
				o.commitLocked(placeholder, res.Text)
			})
			return res.Text, nil
		}

		if round >= o.maxToolIterations {
			return "", model.NewChatError("chat turn", model.ErrToolLoopExceeded,
				fmt.Sprintf("more than %d tool rounds", o.maxToolIterations))
		}

		if err := o.runTools(ctx, placeholder, res); err != nil {
			return "", err
		}
	}
}

// openPlaceholder appends a receiving assistant message and returns the
// outbound messages that precede it together with its ID.
func (o *Orchestrator) openPlaceholder() ([]model.Message, string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	outbound := make([]model.Message, 0, len(o.messages))
	for _, m := range o.messages {
		if m.Outbound() {
			outbound = append(outbound, m)
		}
	}

	p := model.ReceivingMessage()
	o.messages = append(o.messages, p)
	o.state = StateSending
	o.publishLocked()
	return outbound, p.ID
}

// runTools executes the calls of res in order and swaps the placeholder for
// their results. Text sent alongside the calls is committed in the
// placeholder ahead of them.
func (o *Orchestrator) runTools(ctx context.Context, placeholder string, res *model.TurnResult) error {
	o.update(func() { o.state = StateAwaitingToolResult })

	if config.DebugLog != nil {
		config.DebugLog.Printf("[Chat] Executing %d tool calls", len(res.ToolCalls))
	}

	results := make([]model.Message, 0, len(res.ToolCalls))
	for _, call := range res.ToolCalls {
		if o.tools == nil {
			return model.NewChatError("call tool", model.ErrToolNotFound, call.Name)
		}
		msg, err := o.tools.Execute(ctx, call, !o.showToolResults)
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return model.NewChatError("chat turn", model.ErrCancelled, "")
		}
		results = append(results, msg.InRound(placeholder))
	}

	o.update(func() {
		if strings.TrimSpace(res.Text) == "" {
			o.spliceLocked(placeholder, results)
			return
		}
		o.commitLocked(placeholder, res.Text)
		o.insertAfterLocked(placeholder, results)
	})
	return nil
}

// streamRound consumes one streamed response. Text extends the placeholder in
// place at most once per debounce interval, and never later than one interval
// after it arrived. Tool call fragments are collected by index and returned
// once the stream ends.
func (o *Orchestrator) streamRound(ctx context.Context, outbound []model.Message, decls []mcptypes.Tool, placeholder string) (*model.TurnResult, error) {
	deltas, err := o.provider.ChatStream(ctx, outbound, decls)
	if err != nil {
		return nil, err
	}

	limit := rate.Inf
	if o.debounce > 0 {
		limit = rate.Every(o.debounce)
	}
	limiter := rate.NewLimiter(limit, 1)

	var text strings.Builder
	calls := make(map[int]*model.ToolCall)
	flushed := 0
	first := true

	flush := func() {
		if text.Len() == flushed {
			return
		}
		flushed = text.Len()
		current := text.String()
		o.update(func() {
			o.setTextLocked(placeholder, current)
		})
	}

	// pending fires once the limiter would admit another update, so text it
	// held back is published even if the stream pauses.
	var (
		timer   *time.Timer
		pending <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

receive:
	for {
		var (
			d  model.StreamDelta
			ok bool
		)
		select {
		case d, ok = <-deltas:
			if !ok {
				break receive
			}
		case <-pending:
			pending = nil
			flush()
			continue
		}

		if d.Err != nil {
			drain(deltas)
			return nil, d.Err
		}
		if first {
			first = false
			o.update(func() { o.state = StateStreaming })
		}

		if d.Text != "" {
			text.WriteString(d.Text)
			if limiter.Allow() {
				flush()
			} else if pending == nil {
				if timer == nil {
					timer = time.NewTimer(o.debounce)
				} else {
					timer.Reset(o.debounce)
				}
				pending = timer.C
			}
		}
		if f := d.ToolCall; f != nil {
			call, ok := calls[f.Index]
			if !ok {
				call = &model.ToolCall{}
				calls[f.Index] = call
			}
			if f.ID != "" {
				call.ID = f.ID
			}
			if f.Name != "" {
				call.Name = f.Name
			}
			call.Arguments += f.Arguments
		}
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	flush()

	if len(calls) == 0 {
		if text.Len() == 0 {
			return nil, model.NewChatError("chat stream", model.ErrNoResponseContent, "")
		}
		return &model.TurnResult{Text: text.String()}, nil
	}

	indexes := make([]int, 0, len(calls))
	for i := range calls {
		indexes = append(indexes, i)
	}
	sort.Ints(indexes)

	res := &model.TurnResult{Text: text.String()}
	for _, i := range indexes {
		c := *calls[i]
		if c.Name == "" {
			return nil, model.NewChatError("chat stream", model.ErrProviderInvalidResponse, "tool call without a name")
		}
		if c.ID == "" {
			c.ID = fmt.Sprintf("call_%d", i)
		}
		res.ToolCalls = append(res.ToolCalls, c)
	}
	return res, nil
}

// drain discards what is left of a stream so its producer can exit.
func drain(deltas <-chan model.StreamDelta) {
	go func() {
		for range deltas {
		}
	}()
}

func isCancelled(err error) bool {
	return errors.Is(err, model.ErrCancelled) || errors.Is(err, context.Canceled)
}

func (o *Orchestrator) indexLocked(id string) int {
	for i := len(o.messages) - 1; i >= 0; i-- {
		if o.messages[i].ID == id {
			return i
		}
	}
	return -1
}

// commitLocked turns the placeholder into a finished assistant message,
// keeping its ID.
func (o *Orchestrator) commitLocked(id, text string) {
	if i := o.indexLocked(id); i >= 0 {
		o.messages[i] = o.messages[i].WithText(text).Committed()
		return
	}
	o.messages = append(o.messages, model.AssistantMessage(text))
}

func (o *Orchestrator) insertAfterLocked(id string, ms []model.Message) {
	i := o.indexLocked(id)
	if i < 0 {
		o.messages = append(o.messages, ms...)
		return
	}
	out := make([]model.Message, 0, len(o.messages)+len(ms))
	out = append(out, o.messages[:i+1]...)
	out = append(out, ms...)
	out = append(out, o.messages[i+1:]...)
	o.messages = out
}

// spliceLocked swaps the message with the given ID for ms, appending them if
// it is gone.
func (o *Orchestrator) spliceLocked(id string, ms []model.Message) {
	i := o.indexLocked(id)
	if i < 0 {
		o.messages = append(o.messages, ms...)
		return
	}
	out := make([]model.Message, 0, len(o.messages)-1+len(ms))
	out = append(out, o.messages[:i]...)
	out = append(out, ms...)
	out = append(out, o.messages[i+1:]...)
	o.messages = out
}

// setTextLocked updates a streaming placeholder in place, keeping its ID.
func (o *Orchestrator) setTextLocked(id, text string) {
	if i := o.indexLocked(id); i >= 0 {
		o.messages[i] = o.messages[i].WithText(text)
	}
}
