package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"chatview/chat"
	"chatview/config"
	"chatview/mcp"
	"chatview/model"
	"chatview/provider"
	"chatview/storage"
	"chatview/tools"
	"chatview/ui"
)

const Version = "v0.1.0"

func main() {
	listModels := flag.Bool("list-models", false, "print the provider's models and exit")
	prompt := flag.String("prompt", "", "send one message, print the reply and exit")
	fresh := flag.Bool("new", false, "start a new conversation instead of resuming the last one")
	showVersion := flag.Bool("version", false, "print the version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("chatview", Version)
		return
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	config.InitDebugLog(cfg.DataDir())

	p, err := provider.InitializeProvider(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	if *listModels {
		if err := printModels(p); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to list models: %v\n", err)
			os.Exit(1)
		}
		return
	}

	registry := tools.NewRegistry(tools.Builtins(cfg.Chat.BuiltinTools)...)

	mcpClient := mcp.NewClient()
	if len(cfg.MCPServers) > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		started := mcpClient.Start(ctx, cfg.MCPServers)
		cancel()
		if started < len(cfg.MCPServers) {
			fmt.Fprintf(os.Stderr, "Warning: %d of %d MCP servers failed to start\n", len(cfg.MCPServers)-started, len(cfg.MCPServers))
		}
		mcpClient.RegisterTools(registry)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := mcpClient.Shutdown(ctx); err != nil && config.DebugLog != nil {
			config.DebugLog.Printf("[Main] MCP shutdown: %v", err)
		}
	}()

	chatCfg := chat.Config{
		Provider:          p,
		Tools:             registry,
		Stream:            cfg.Chat.Stream,
		MaxToolIterations: cfg.Chat.MaxToolIterations,
		ShowToolResults:   cfg.Chat.ShowToolResults,
		Debounce:          cfg.Debounce(),
	}

	if *prompt != "" {
		chatCfg.Messages = seed(cfg)
		if err := runOnce(chat.New(chatCfg), *prompt); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	var (
		store   *storage.SessionStore
		session *storage.Session
	)
	if cfg.Storage.Enabled {
		store, err = storage.OpenSessionStore(cfg.DataDir())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open session storage: %v\n", err)
			os.Exit(1)
		}
		defer store.Close()

		if !*fresh {
			session = resume(store)
		}
	}
	if session == nil {
		session = &storage.Session{Model: p.GetModel(), Messages: seed(cfg)}
	}

	chatCfg.Messages = session.Messages
	if store != nil {
		recorder := storage.NewRecorder(store, session, p.GetModel)
		chatCfg.OnTurnEnd = recorder.Record
		chatCfg.OnReset = recorder.Restart
	}

	orch := chat.New(chatCfg)
	if needsReply(session.Messages) {
		orch.Start()
	}

	app := ui.NewApp(orch, p, chat.SuggestionsFromConfig(cfg.Suggestions), "chatview")
	defer app.Close()

	if _, err := tea.NewProgram(app, tea.WithAltScreen()).Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running chatview: %v\n", err)
		os.Exit(1)
	}

	orch.Cancel()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = orch.Wait(ctx)
}

// seed returns the opening messages of a new conversation.
func seed(cfg *config.Config) []model.Message {
	if cfg.Chat.SystemPrompt == "" {
		return nil
	}
	return []model.Message{model.SystemMessage(cfg.Chat.SystemPrompt)}
}

// resume loads the last active session, or nil when there is none.
func resume(store *storage.SessionStore) *storage.Session {
	id, err := store.LoadCurrentSessionID()
	if err != nil || id == "" {
		return nil
	}
	session, err := store.Load(id)
	if err != nil {
		if config.DebugLog != nil {
			config.DebugLog.Printf("[Main] Could not resume session %s: %v", id, err)
		}
		return nil
	}
	return session
}

// needsReply reports whether the conversation is waiting on the assistant:
// it holds messages and the last one is not an assistant reply.
func needsReply(msgs []model.Message) bool {
	if len(msgs) == 0 {
		return false
	}
	return msgs[len(msgs)-1].Role != model.RoleAssistant
}

func runOnce(orch *chat.Orchestrator, text string) error {
	if !orch.Send(text) {
		return fmt.Errorf("nothing to send")
	}
	if err := orch.Wait(context.Background()); err != nil {
		return err
	}
	if msg := orch.ErrorMessage(); msg != "" {
		return fmt.Errorf("%s", msg)
	}

	msgs := orch.Messages()
	fmt.Println(msgs[len(msgs)-1].Text)
	return nil
}

func printModels(p model.Provider) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	models, err := p.ListModels(ctx)
	if err != nil {
		return err
	}
	for _, m := range models {
		if m.Size > 0 {
			fmt.Printf("%s\t%.1f GB\n", m.Name, float64(m.Size)/1e9)
		} else {
			fmt.Println(m.Name)
		}
	}
	return nil
}
