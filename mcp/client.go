package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/client"

	"chatview/config"
	"chatview/tools"
)

// Client starts the configured MCP servers and hands their tools to the chat
// tool registry.
type Client struct {
	processManager *ProcessManager
	aggregator     *ToolAggregator
}

func NewClient() *Client {
	pm := NewProcessManager()
	return &Client{
		processManager: pm,
		aggregator:     NewToolAggregator(pm),
	}
}

// Start launches every server. A server that fails is logged and skipped so
// the chat still works without its tools; the number started is returned.
func (c *Client) Start(ctx context.Context, servers []config.MCPServerConfig) int {
	started := 0
	for _, s := range servers {
		if strings.Contains(s.ID, ".") {
			if config.DebugLog != nil {
				config.DebugLog.Printf("[MCP] Skipping server '%s': id must not contain '.'", s.ID)
			}
			continue
		}
		if err := c.processManager.StartServer(ctx, s); err != nil {
			if config.DebugLog != nil {
				config.DebugLog.Printf("[MCP] %v", err)
			}
			continue
		}
		started++
	}
	return started
}

// Attach adds an already started client, such as an in-process server.
func (c *Client) Attach(ctx context.Context, id string, mc *client.Client) error {
	if strings.Contains(id, ".") {
		return fmt.Errorf("mcp server id %q must not contain '.'", id)
	}
	return c.processManager.Attach(ctx, id, mc)
}

// Tools returns the namespaced tools of all running servers.
func (c *Client) Tools() []tools.Tool {
	return c.aggregator.Tools()
}

// RegisterTools adds every server tool to r.
func (c *Client) RegisterTools(r *tools.Registry) {
	for _, t := range c.Tools() {
		r.Register(t)
	}
}

func (c *Client) Shutdown(ctx context.Context) error {
	return c.processManager.Shutdown(ctx)
}
