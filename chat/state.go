package chat

import "chatview/model"

// State is the orchestrator's position in a turn.
type State int

const (
	StateIdle State = iota
	StateSending
	StateStreaming
	StateAwaitingToolResult
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSending:
		return "sending"
	case StateStreaming:
		return "streaming"
	case StateAwaitingToolResult:
		return "awaiting-tool-result"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Snapshot is a complete copy of the observable state, published after every
// mutation.
type Snapshot struct {
	Messages     []model.Message
	State        State
	Busy         bool
	ErrorMessage string
}

type subscriber struct {
	ch chan Snapshot
}

// offer delivers snap, discarding the oldest pending snapshot when the buffer
// is full. Callers hold the orchestrator mutex, so offer is the only sender.
func (s *subscriber) offer(snap Snapshot) {
	for {
		select {
		case s.ch <- snap:
			return
		default:
		}
		select {
		case <-s.ch:
		default:
		}
	}
}
