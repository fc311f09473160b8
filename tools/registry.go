// Package tools holds the functions a provider may call during a chat turn.
//
// A Tool pairs an mcp-go declaration (name, description, JSON schema) with the
// code that runs it. The Registry resolves calls by name, checks required
// parameters against the declaration, and encodes the outcome as the JSON text
// sent back to the provider.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	mcptypes "github.com/mark3labs/mcp-go/mcp"

	"chatview/config"
	"chatview/model"
)

// Tool is a callable function exposed to the provider.
type Tool interface {
	Declaration() mcptypes.Tool
	Call(ctx context.Context, params map[string]any) (any, error)
}

// Func adapts a declaration and a plain function to the Tool interface.
type Func struct {
	Decl mcptypes.Tool
	Fn   func(ctx context.Context, params map[string]any) (any, error)
}

func (f Func) Declaration() mcptypes.Tool { return f.Decl }

func (f Func) Call(ctx context.Context, params map[string]any) (any, error) {
	return f.Fn(ctx, params)
}

// Registry is a set of tools keyed by declared name. Registration order is
// kept so declarations are offered to the provider deterministically.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
	order []string
}

// NewRegistry returns a registry holding the given tools.
func NewRegistry(ts ...Tool) *Registry {
	r := &Registry{tools: make(map[string]Tool)}
	for _, t := range ts {
		r.Register(t)
	}
	return r
}

// Register adds t, replacing any tool with the same name.
func (r *Registry) Register(t Tool) {
	name := t.Declaration().Name

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[name]; !exists {
		r.order = append(r.order, name)
	}
	r.tools[name] = t
}

// Lookup returns the tool registered under name.
func (r *Registry) Lookup(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Declarations returns every declaration in registration order.
func (r *Registry) Declarations() []mcptypes.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	decls := make([]mcptypes.Tool, 0, len(r.order))
	for _, name := range r.order {
		decls = append(decls, r.tools[name].Declaration())
	}
	return decls
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Call runs the named tool with raw JSON arguments and returns its raw result.
// Unparseable arguments are treated as an empty object.
func (r *Registry) Call(ctx context.Context, name, rawArgs string) (any, error) {
	t, ok := r.Lookup(name)
	if !ok {
		return nil, model.NewChatError("call tool", model.ErrToolNotFound, name)
	}

	params := ParseArguments(rawArgs)
	if missing := MissingRequired(t.Declaration(), params); len(missing) > 0 {
		return nil, &model.MissingParametersError{Tool: name, Missing: missing}
	}

	result, err := t.Call(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", name, model.ErrToolExecutionFailed, err)
	}
	return result, nil
}

// Execute runs call and returns the tool message answering it.
//
// Only an unknown tool is returned as an error. Missing parameters and tool
// failures are encoded as {"status":"failed","error":...} so the provider can
// react to them on the next round.
func (r *Registry) Execute(ctx context.Context, call model.ToolCall, hidden bool) (model.Message, error) {
	if config.DebugLog != nil {
		config.DebugLog.Printf("[Tools] Executing %s (%d bytes of arguments)", call.Name, len(call.Arguments))
	}

	result, err := r.Call(ctx, call.Name, call.Arguments)
	switch {
	case errors.Is(err, model.ErrToolNotFound):
		return model.Message{}, err
	case err != nil:
		if config.DebugLog != nil {
			config.DebugLog.Printf("[Tools] %s failed: %v", call.Name, err)
		}
		return model.ToolResultMessage(call, FailureResult(err), hidden), nil
	}

	return model.ToolResultMessage(call, SuccessResult(result), hidden), nil
}

// ParseArguments decodes a JSON object. Anything else yields an empty map.
func ParseArguments(raw string) map[string]any {
	var params map[string]any
	if err := json.Unmarshal([]byte(raw), &params); err != nil || params == nil {
		return make(map[string]any)
	}
	return params
}

// MissingRequired lists the declared required parameters absent from params.
func MissingRequired(decl mcptypes.Tool, params map[string]any) []string {
	var missing []string
	for _, name := range decl.InputSchema.Required {
		if _, ok := params[name]; !ok {
			missing = append(missing, name)
		}
	}
	return missing
}

// SuccessResult serializes a tool result. Values that cannot be encoded
// collapse to {"status":"success"}.
func SuccessResult(result any) string {
	if result == nil {
		return `{"status":"success"}`
	}
	if s, ok := result.(string); ok && json.Valid([]byte(s)) {
		return s
	}
	data, err := json.Marshal(result)
	if err != nil {
		return `{"status":"success"}`
	}
	return string(data)
}

// FailureResult encodes err as a failed tool result.
func FailureResult(err error) string {
	data, _ := json.Marshal(map[string]string{
		"status": "failed",
		"error":  err.Error(),
	})
	return string(data)
}
