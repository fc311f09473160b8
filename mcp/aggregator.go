package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	mcptypes "github.com/mark3labs/mcp-go/mcp"

	"chatview/tools"
)

// ToolAggregator exposes the tools of every running server as tools.Tool
// values named "<server id>.<tool name>".
type ToolAggregator struct {
	processManager *ProcessManager
}

func NewToolAggregator(pm *ProcessManager) *ToolAggregator {
	return &ToolAggregator{
		processManager: pm,
	}
}

// Tools returns one tool per server tool, servers in id order.
func (ta *ToolAggregator) Tools() []tools.Tool {
	var all []tools.Tool

	for _, id := range ta.processManager.ServerIDs() {
		serverTools, err := ta.processManager.GetTools(id)
		if err != nil {
			continue
		}

		for _, t := range serverTools {
			decl := t
			decl.Name = id + "." + t.Name
			all = append(all, &serverTool{aggregator: ta, decl: decl})
		}
	}

	return all
}

// ExecuteTool calls a namespaced tool on its server.
func (ta *ToolAggregator) ExecuteTool(ctx context.Context, toolName string, args map[string]any) (*mcptypes.CallToolResult, error) {
	serverID, name := parseToolName(toolName)

	c, err := ta.processManager.GetClient(serverID)
	if err != nil {
		return nil, err
	}

	return c.CallTool(ctx, mcptypes.CallToolRequest{
		Params: mcptypes.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	})
}

type serverTool struct {
	aggregator *ToolAggregator
	decl       mcptypes.Tool
}

func (t *serverTool) Declaration() mcptypes.Tool { return t.decl }

// Call returns the text content of the result. A result flagged IsError
// becomes an error carrying that text.
func (t *serverTool) Call(ctx context.Context, params map[string]any) (any, error) {
	res, err := t.aggregator.ExecuteTool(ctx, t.decl.Name, params)
	if err != nil {
		return nil, err
	}

	text := resultText(res)
	if res.IsError {
		if text == "" {
			text = "tool reported an error"
		}
		return nil, errors.New(text)
	}
	if text == "" {
		return nil, nil
	}
	return text, nil
}

// resultText joins the text parts of a result. Other content kinds are
// included as JSON.
func resultText(res *mcptypes.CallToolResult) string {
	var parts []string
	for _, c := range res.Content {
		switch v := c.(type) {
		case mcptypes.TextContent:
			parts = append(parts, v.Text)
		case *mcptypes.TextContent:
			parts = append(parts, v.Text)
		default:
			if data, err := json.Marshal(v); err == nil {
				parts = append(parts, string(data))
			}
		}
	}
	return strings.Join(parts, "\n")
}

// parseToolName splits at the first dot. Server ids never contain one.
func parseToolName(namespacedName string) (string, string) {
	idx := strings.Index(namespacedName, ".")
	if idx == -1 {
		return "", namespacedName
	}
	return namespacedName[:idx], namespacedName[idx+1:]
}
