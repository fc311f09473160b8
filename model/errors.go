package model

import (
	"errors"
	"fmt"
)

// Sentinel errors for a chat turn. Match them with errors.Is.
var (
	ErrProviderInvalidResponse       = errors.New("invalid provider response")
	ErrMaxTokensExceeded             = errors.New("maximum tokens exceeded")
	ErrContentFiltered               = errors.New("response blocked by content filter")
	ErrNoResponseContent             = errors.New("no response message content")
	ErrToolNotFound                  = errors.New("tool not found")
	ErrToolMissingRequiredParameters = errors.New("missing required parameters")
	ErrToolExecutionFailed           = errors.New("tool execution failed")
	ErrStreamFailed                  = errors.New("stream failed")
	ErrCancelled                     = errors.New("cancelled")
	ErrToolLoopExceeded              = errors.New("tool call loop exceeded")
	ErrInternalInvariantViolation    = errors.New("internal invariant violation")
)

// ChatError wraps a sentinel with the failing operation and optional detail.
type ChatError struct {
	Op     string
	Err    error
	Detail string
}

func (e *ChatError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Err, e.Detail)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Err)
}

func (e *ChatError) Unwrap() error {
	return e.Err
}

// NewChatError builds a ChatError.
func NewChatError(op string, err error, detail string) *ChatError {
	return &ChatError{Op: op, Err: err, Detail: detail}
}

// MissingParametersError reports the required parameters absent from a call.
type MissingParametersError struct {
	Tool    string
	Missing []string
}

func (e *MissingParametersError) Error() string {
	return fmt.Sprintf("%s: missing required parameters %v", e.Tool, e.Missing)
}

func (e *MissingParametersError) Unwrap() error {
	return ErrToolMissingRequiredParameters
}
