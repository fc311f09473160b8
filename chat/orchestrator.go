// Package chat drives a conversation against a model.Provider.
//
// An Orchestrator owns the ordered message list of one conversation. Each
// Send, Retry or Start runs one turn in its own goroutine: the provider is
// called with the outbound messages, streamed text is merged into a single
// placeholder message, and tool calls are executed and answered until the
// provider produces a final reply. Observers receive a full Snapshot after
// every change through Subscribe.
package chat

import (
	"context"
	"strings"
	"sync"
	"time"

	"chatview/config"
	"chatview/model"
	"chatview/tools"
)

// Defaults applied by New.
const (
	DefaultMaxToolIterations = 10
	DefaultDebounce          = 50 * time.Millisecond
)

// Config configures an Orchestrator. Provider is required.
type Config struct {
	Provider model.Provider
	// Tools resolves tool calls. Nil offers no tools and fails any call.
	Tools *tools.Registry
	// Messages seeds the conversation, typically with a system prompt.
	Messages []model.Message
	Stream   bool
	// MaxToolIterations bounds tool rounds per turn. 0 means the default.
	MaxToolIterations int
	// ShowToolResults leaves tool result messages visible.
	ShowToolResults bool
	// Debounce is the minimum spacing of streamed text updates. 0 means the
	// default, negative disables it.
	Debounce time.Duration
	Triggers []Trigger
	// OnTurnEnd runs after every turn with the resulting conversation and
	// the turn's error (nil on success). The turn still counts as in flight
	// while it runs, so Send and Reset are refused.
	OnTurnEnd func(messages []model.Message, err error)
	// OnReset runs after a successful Reset with the new conversation.
	OnReset func(messages []model.Message)
}

// Orchestrator runs chat turns for one conversation.
type Orchestrator struct {
	provider          model.Provider
	tools             *tools.Registry
	stream            bool
	maxToolIterations int
	showToolResults   bool
	debounce          time.Duration
	triggers          []Trigger
	onTurnEnd         func([]model.Message, error)
	onReset           func([]model.Message)

	mu           sync.Mutex
	messages     []model.Message
	state        State
	errorMessage string
	busy         bool
	cancel       context.CancelFunc
	done         chan struct{}
	subs         map[int]*subscriber
	nextSub      int
}

// New creates an idle orchestrator.
func New(cfg Config) *Orchestrator {
	maxIter := cfg.MaxToolIterations
	if maxIter <= 0 {
		maxIter = DefaultMaxToolIterations
	}
	debounce := cfg.Debounce
	if debounce == 0 {
		debounce = DefaultDebounce
	}

	return &Orchestrator{
		provider:          cfg.Provider,
		tools:             cfg.Tools,
		stream:            cfg.Stream,
		maxToolIterations: maxIter,
		showToolResults:   cfg.ShowToolResults,
		debounce:          debounce,
		triggers:          cfg.Triggers,
		onTurnEnd:         cfg.OnTurnEnd,
		onReset:           cfg.OnReset,
		messages:          append([]model.Message(nil), cfg.Messages...),
		state:             StateIdle,
		subs:              make(map[int]*subscriber),
	}
}

// Messages returns a copy of the conversation.
func (o *Orchestrator) Messages() []model.Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]model.Message(nil), o.messages...)
}

// ErrorMessage returns the user-visible description of the last failure, or
// "" when the last turn did not fail.
func (o *Orchestrator) ErrorMessage() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.errorMessage
}

// IsBusy reports whether a turn is in flight.
func (o *Orchestrator) IsBusy() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.busy
}

// State returns the current turn state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Subscribe returns a channel of snapshots, starting with the current one,
// and a function that ends the subscription and closes the channel. A full
// buffer drops its oldest snapshot.
func (o *Orchestrator) Subscribe(buffer int) (<-chan Snapshot, func()) {
	if buffer < 1 {
		buffer = 1
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	id := o.nextSub
	o.nextSub++
	s := &subscriber{ch: make(chan Snapshot, buffer)}
	o.subs[id] = s
	s.offer(o.snapshotLocked())

	var once sync.Once
	return s.ch, func() {
		once.Do(func() {
			o.mu.Lock()
			defer o.mu.Unlock()
			delete(o.subs, id)
			close(s.ch)
		})
	}
}

// Start calls the provider with the conversation as it stands.
func (o *Orchestrator) Start() bool {
	return o.begin(func() bool { return true })
}

// Send appends a user message and calls the provider. Blank text is ignored.
func (o *Orchestrator) Send(text string) bool {
	if strings.TrimSpace(text) == "" {
		return false
	}
	return o.begin(func() bool {
		o.messages = append(o.messages, model.UserMessage(text))
		return true
	})
}

// Retry removes the most recent error message and calls the provider again.
// It does nothing when no error message exists.
func (o *Orchestrator) Retry() bool {
	return o.begin(func() bool {
		for i := len(o.messages) - 1; i >= 0; i-- {
			if o.messages[i].IsError {
				o.messages = append(o.messages[:i:i], o.messages[i+1:]...)
				return true
			}
		}
		return false
	})
}

// Reset replaces the conversation with messages, or when none are given
// keeps only system messages. It never calls the provider.
func (o *Orchestrator) Reset(messages ...model.Message) bool {
	msgs, ok := o.reset(messages)
	if ok && o.onReset != nil {
		o.onReset(msgs)
	}
	return ok
}

func (o *Orchestrator) reset(messages []model.Message) ([]model.Message, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.busy {
		return nil, false
	}

	if len(messages) > 0 {
		o.messages = append([]model.Message(nil), messages...)
	} else {
		kept := o.messages[:0:0]
		for _, m := range o.messages {
			if m.Role == model.RoleSystem {
				kept = append(kept, m)
			}
		}
		o.messages = kept
	}
	o.errorMessage = ""
	o.state = StateIdle

	if config.DebugLog != nil {
		config.DebugLog.Printf("[Chat] Reset to %d messages", len(o.messages))
	}
	o.publishLocked()
	return append([]model.Message(nil), o.messages...), true
}

// Cancel aborts the turn in flight. The turn ends asynchronously; use Wait to
// observe it.
func (o *Orchestrator) Cancel() bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.busy || o.cancel == nil {
		return false
	}
	o.cancel()
	return true
}

// Wait blocks until no turn is in flight or ctx is done.
func (o *Orchestrator) Wait(ctx context.Context) error {
	o.mu.Lock()
	done := o.done
	o.mu.Unlock()

	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// begin runs mutate and starts a turn if nothing is in flight and mutate
// reports a change.
func (o *Orchestrator) begin(mutate func() bool) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.busy {
		return false
	}
	if !mutate() {
		return false
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	o.busy = true
	o.cancel = cancel
	o.done = done
	o.state = StateSending
	o.publishLocked()

	go o.run(ctx, cancel, done)
	return true
}

func (o *Orchestrator) run(ctx context.Context, cancel context.CancelFunc, done chan struct{}) {
	defer close(done)
	defer cancel()

	start := time.Now()
	final, err := o.turn(ctx)
	msgs := o.finish(err)

	if config.DebugLog != nil {
		config.DebugLog.Printf("[Chat] Turn ended in %v (err=%v)", time.Since(start), err)
	}

	if err == nil {
		for _, t := range o.triggers {
			if t.ShouldActivate(final) {
				t.Activate()
			}
		}
	}
	if o.onTurnEnd != nil {
		o.onTurnEnd(msgs, err)
	}
	o.release()
}

// finish settles the conversation after a turn and returns a copy of it. The
// orchestrator stays busy until release, so hooks never overlap the next turn.
func (o *Orchestrator) finish(err error) []model.Message {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.removeReceivingLocked()

	switch {
	case err == nil:
		o.state = StateIdle
		o.errorMessage = ""
	case isCancelled(err):
		o.state = StateIdle
		o.errorMessage = ""
	default:
		text := "An error occurred: " + err.Error()
		o.messages = append(o.messages, model.ErrorMessage(text))
		o.errorMessage = text
		o.state = StateError
	}

	o.cancel = nil
	o.publishLocked()
	return append([]model.Message(nil), o.messages...)
}

func (o *Orchestrator) release() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.busy = false
	o.publishLocked()
}

func (o *Orchestrator) snapshotLocked() Snapshot {
	return Snapshot{
		Messages:     append([]model.Message(nil), o.messages...),
		State:        o.state,
		Busy:         o.busy,
		ErrorMessage: o.errorMessage,
	}
}

func (o *Orchestrator) publishLocked() {
	if len(o.subs) == 0 {
		return
	}
	snap := o.snapshotLocked()
	for _, s := range o.subs {
		s.offer(snap)
	}
}

// update applies fn under the lock and publishes the result.
func (o *Orchestrator) update(fn func()) {
	o.mu.Lock()
	defer o.mu.Unlock()
	fn()
	o.publishLocked()
}

func (o *Orchestrator) removeReceivingLocked() {
	kept := o.messages[:0]
	for _, m := range o.messages {
		if !m.IsReceiving {
			kept = append(kept, m)
		}
	}
	o.messages = kept
}
