package mcp

import (
	"os/exec"

	"github.com/mark3labs/mcp-go/client"
	mcptypes "github.com/mark3labs/mcp-go/mcp"
)

// ServerProcess is one connected MCP server. Process is nil for servers that
// were attached rather than spawned.
type ServerProcess struct {
	ID      string
	Command string
	Args    []string
	Process *exec.Cmd
	Client  *client.Client
	Tools   []mcptypes.Tool
	Running bool
}

// protocolVersion is the MCP revision announced during initialization.
const protocolVersion = "2025-06-18"

var clientInfo = mcptypes.Implementation{
	Name:    "chatview",
	Version: "1.0.0",
}
