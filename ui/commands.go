package ui

import (
	"context"
	"time"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"

	"chatview/chat"
	"chatview/config"
	"chatview/model"
)

const providerTimeout = 15 * time.Second

// waitForSnapshot delivers the next orchestrator snapshot. Update re-arms it
// after every delivery.
func waitForSnapshot(ch <-chan chat.Snapshot) tea.Cmd {
	return func() tea.Msg {
		s, ok := <-ch
		return snapshotMsg{Snapshot: s, Closed: !ok}
	}
}

func renderMarkdownCmd(id, content string, width int) tea.Cmd {
	return func() tea.Msg {
		start := time.Now()
		rendered := renderMarkdown(content, width)
		if config.DebugLog != nil {
			config.DebugLog.Printf("[UI] Rendered message %s (%d chars) in %v", id, len(content), time.Since(start))
		}
		return markdownRenderedMsg{MessageID: id, Width: width, Rendered: rendered}
	}
}

// fetchModels lists the provider's models in the background.
func fetchModels(p model.Provider) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), providerTimeout)
		defer cancel()

		models, err := p.ListModels(ctx)
		if err != nil && config.DebugLog != nil {
			config.DebugLog.Printf("[UI] Listing models failed: %v", err)
		}
		return modelsListMsg{Models: models, Err: err}
	}
}

// pingProvider checks that the provider is reachable with the configured
// credentials.
func pingProvider(p model.Provider) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), providerTimeout)
		defer cancel()

		start := time.Now()
		if err := p.Ping(ctx); err != nil {
			return pingMsg{Err: err}
		}
		return pingMsg{Latency: time.Since(start).Round(time.Millisecond).String()}
	}
}

func copyToClipboard(text string) tea.Cmd {
	return func() tea.Msg {
		return clipboardMsg{Err: clipboard.WriteAll(text)}
	}
}
