package mcp

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	mcptypes "github.com/mark3labs/mcp-go/mcp"

	"chatview/config"
)

// closeTimeout bounds how long a server gets to shut down before its process
// is killed.
const closeTimeout = time.Second

// ProcessManager owns the MCP servers started for the session.
type ProcessManager struct {
	mu        sync.RWMutex
	processes map[string]*ServerProcess
}

func NewProcessManager() *ProcessManager {
	return &ProcessManager{
		processes: make(map[string]*ServerProcess),
	}
}

// StartServer spawns the configured command over stdio and attaches it.
func (pm *ProcessManager) StartServer(ctx context.Context, cfg config.MCPServerConfig) error {
	if cfg.ID == "" || cfg.Command == "" {
		return fmt.Errorf("mcp server needs both id and command")
	}

	var captured *exec.Cmd
	cmdFunc := func(ctx context.Context, command string, env []string, args []string) (*exec.Cmd, error) {
		cmd := exec.CommandContext(ctx, command, args...)
		cmd.Env = env
		captured = cmd
		return cmd, nil
	}

	c, err := client.NewStdioMCPClientWithOptions(
		config.ExpandPath(cfg.Command),
		serverEnv(cfg.Env),
		cfg.Args,
		transport.WithCommandFunc(cmdFunc),
	)
	if err != nil {
		return fmt.Errorf("failed to start mcp server %s: %w", cfg.ID, err)
	}

	if config.DebugLog != nil && captured != nil && captured.Process != nil {
		config.DebugLog.Printf("[MCP] Started server '%s' with PID %d", cfg.ID, captured.Process.Pid)
	}

	if err := pm.Attach(ctx, cfg.ID, c); err != nil {
		c.Close()
		if captured != nil && captured.Process != nil {
			captured.Process.Kill()
		}
		return err
	}

	pm.mu.Lock()
	proc := pm.processes[cfg.ID]
	proc.Command = cfg.Command
	proc.Args = cfg.Args
	proc.Process = captured
	pm.mu.Unlock()

	return nil
}

// Attach initializes an already connected client and records its tools
// under id. The client must be started.
func (pm *ProcessManager) Attach(ctx context.Context, id string, c *client.Client) error {
	pm.mu.RLock()
	existing := pm.processes[id]
	pm.mu.RUnlock()
	if existing != nil && existing.Running {
		return fmt.Errorf("mcp server %s already running", id)
	}

	_, err := c.Initialize(ctx, mcptypes.InitializeRequest{
		Params: mcptypes.InitializeParams{
			ProtocolVersion: protocolVersion,
			Capabilities:    mcptypes.ClientCapabilities{},
			ClientInfo:      clientInfo,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to initialize mcp server %s: %w", id, err)
	}

	listed, err := c.ListTools(ctx, mcptypes.ListToolsRequest{})
	if err != nil {
		return fmt.Errorf("failed to list tools for %s: %w", id, err)
	}

	pm.mu.Lock()
	pm.processes[id] = &ServerProcess{
		ID:      id,
		Client:  c,
		Tools:   listed.Tools,
		Running: true,
	}
	pm.mu.Unlock()

	if config.DebugLog != nil {
		config.DebugLog.Printf("[MCP] Server '%s' offers %d tools", id, len(listed.Tools))
	}
	return nil
}

// StopServer closes the client and kills a spawned process.
func (pm *ProcessManager) StopServer(ctx context.Context, id string) error {
	pm.mu.Lock()
	proc, exists := pm.processes[id]
	if !exists {
		pm.mu.Unlock()
		return fmt.Errorf("mcp server %s not found", id)
	}
	proc.Running = false
	delete(pm.processes, id)
	pm.mu.Unlock()

	if proc.Client != nil {
		closeCtx, cancel := context.WithTimeout(ctx, closeTimeout)
		defer cancel()

		closed := make(chan error, 1)
		go func() {
			closed <- proc.Client.Close()
		}()

		select {
		case <-closed:
		case <-closeCtx.Done():
			if config.DebugLog != nil {
				config.DebugLog.Printf("[MCP] Server '%s' did not close in %s", id, closeTimeout)
			}
		}
	}

	if proc.Process != nil && proc.Process.Process != nil {
		// Already exited after Close in the common case.
		if err := proc.Process.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			if config.DebugLog != nil {
				config.DebugLog.Printf("[MCP] Failed to kill server '%s': %v", id, err)
			}
		}
	}

	return nil
}

func (pm *ProcessManager) GetClient(id string) (*client.Client, error) {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	proc, exists := pm.processes[id]
	if !exists || !proc.Running {
		return nil, fmt.Errorf("mcp server %s not running", id)
	}
	return proc.Client, nil
}

func (pm *ProcessManager) GetTools(id string) ([]mcptypes.Tool, error) {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	proc, exists := pm.processes[id]
	if !exists || !proc.Running {
		return nil, fmt.Errorf("mcp server %s not running", id)
	}
	return proc.Tools, nil
}

// ServerIDs lists running servers in sorted order.
func (pm *ProcessManager) ServerIDs() []string {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	ids := make([]string, 0, len(pm.processes))
	for id, proc := range pm.processes {
		if proc.Running {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// Shutdown stops every server in parallel.
func (pm *ProcessManager) Shutdown(ctx context.Context) error {
	ids := pm.ServerIDs()

	if config.DebugLog != nil {
		config.DebugLog.Printf("[MCP] Shutdown: stopping %d servers", len(ids))
	}

	var wg sync.WaitGroup
	errs := make([]error, len(ids))
	for i, id := range ids {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = pm.StopServer(ctx, id)
		}()
	}
	wg.Wait()

	return errors.Join(errs...)
}

// serverEnv layers the configured variables over the current environment so
// PATH and friends survive.
func serverEnv(extra map[string]string) []string {
	env := os.Environ()
	for k, v := range extra {
		env = append(env, fmt.Sprintf("%s=%s", k, v))
	}
	return env
}
