package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-runewidth"

	"chatview/chat"
	"chatview/config"
	"chatview/model"
)

type renderedMarkdown struct {
	width int
	out   string
}

// App is a terminal front end for one chat.Orchestrator. It never mutates the
// conversation itself: every change arrives as a chat.Snapshot.
type App struct {
	chat        *chat.Orchestrator
	provider    model.Provider
	title       string
	suggestions []chat.Suggestion

	snapshots   <-chan chat.Snapshot
	unsubscribe func()
	snap        chat.Snapshot

	// Markdown renders by message ID; pending holds the width requested.
	rendered map[string]renderedMarkdown
	pending  map[string]int

	viewport viewport.Model
	textarea textarea.Model
	spinner  spinner.Model
	spinning bool

	width    int
	height   int
	ready    bool
	status   string
	selected int
}

// NewApp subscribes to orch. Call Close when the program exits.
func NewApp(orch *chat.Orchestrator, p model.Provider, suggestions []chat.Suggestion, title string) App {
	ta := textarea.New()
	ta.Placeholder = "Type a message (Alt+Enter for a new line)..."
	ta.Focus()
	ta.CharLimit = 0
	ta.ShowLineNumbers = false
	ta.SetHeight(3)
	ta.SetWidth(80)
	ta.KeyMap.InsertNewline = key.NewBinding(key.WithKeys("alt+enter"))
	ta.SetPromptFunc(2, func(lineIdx int) string {
		if lineIdx == 0 {
			return "> "
		}
		return "| "
	})

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = AssistantStyle

	ch, unsubscribe := orch.Subscribe(64)

	return App{
		chat:        orch,
		provider:    p,
		title:       title,
		suggestions: suggestions,
		snapshots:   ch,
		unsubscribe: unsubscribe,
		snap:        chat.Snapshot{Messages: orch.Messages(), State: orch.State(), Busy: orch.IsBusy()},
		rendered:    make(map[string]renderedMarkdown),
		pending:     make(map[string]int),
		viewport:    viewport.New(0, 0),
		textarea:    ta,
		spinner:     sp,
	}
}

// Close ends the snapshot subscription.
func (a App) Close() {
	if a.unsubscribe != nil {
		a.unsubscribe()
	}
}

func (a App) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, waitForSnapshot(a.snapshots))
}

func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.ready = true
		a.layout()
		a.updateViewport(true)
		return a, a.requestRenders()

	case snapshotMsg:
		if msg.Closed {
			return a, nil
		}
		a.snap = msg.Snapshot
		cmds := []tea.Cmd{waitForSnapshot(a.snapshots), a.requestRenders()}
		if a.snap.Busy && !a.spinning {
			a.spinning = true
			cmds = append(cmds, a.spinner.Tick)
		}
		a.layout()
		a.updateViewport(false)
		return a, tea.Batch(cmds...)

	case spinner.TickMsg:
		if !a.snap.Busy {
			a.spinning = false
			return a, nil
		}
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		a.updateViewport(false)
		return a, cmd

	case markdownRenderedMsg:
		if a.pending[msg.MessageID] == msg.Width {
			delete(a.pending, msg.MessageID)
		}
		if msg.Width == a.width {
			a.rendered[msg.MessageID] = renderedMarkdown{width: msg.Width, out: msg.Rendered}
			a.updateViewport(false)
		}
		return a, nil

	case modelsListMsg:
		if msg.Err != nil {
			a.status = "Listing models failed: " + msg.Err.Error()
			return a, nil
		}
		names := make([]string, len(msg.Models))
		for i, m := range msg.Models {
			names[i] = m.Name
		}
		a.status = fmt.Sprintf("%d models: %s", len(names), strings.Join(names, ", "))
		return a, nil

	case pingMsg:
		if msg.Err != nil {
			a.status = "Ping failed: " + msg.Err.Error()
		} else {
			a.status = "Provider reachable (" + msg.Latency + ")"
		}
		return a, nil

	case clipboardMsg:
		if msg.Err != nil {
			a.status = "Copy failed: " + msg.Err.Error()
		} else {
			a.status = "Copied last reply"
		}
		return a, nil

	case tea.KeyMsg:
		return a.handleKey(msg)
	}

	var cmd tea.Cmd
	a.viewport, cmd = a.viewport.Update(msg)
	return a, cmd
}

func (a App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Quit):
		a.chat.Cancel()
		return a, tea.Quit

	case key.Matches(msg, keys.Cancel):
		if a.chat.Cancel() {
			a.status = "Cancelled"
		}
		return a, nil

	case key.Matches(msg, keys.Retry):
		if !a.chat.Retry() {
			a.status = "Nothing to retry"
		}
		return a, nil

	case key.Matches(msg, keys.Reset):
		if a.chat.Reset() {
			a.textarea.Reset()
			a.selected = 0
			a.status = "New chat"
		}
		return a, nil

	case key.Matches(msg, keys.Copy):
		reply := lastReply(a.snap.Messages)
		if reply == "" {
			a.status = "No reply to copy"
			return a, nil
		}
		return a, copyToClipboard(reply)

	case key.Matches(msg, keys.Models):
		a.status = "Fetching models..."
		return a, fetchModels(a.provider)

	case key.Matches(msg, keys.Ping):
		a.status = "Pinging provider..."
		return a, pingProvider(a.provider)

	case key.Matches(msg, keys.Suggestion) && a.suggesting():
		if n := min(len(a.visibleSuggestions()), maxSuggestionRows); n > 0 {
			a.selected = (a.selected + 1) % n
		}
		return a, nil

	case key.Matches(msg, keys.Send):
		text := a.textarea.Value()
		if strings.TrimSpace(text) == "" && a.suggesting() {
			if visible := a.visibleSuggestions(); a.selected < len(visible) {
				text = visible[a.selected].Text()
			}
		}
		if a.chat.Send(text) {
			a.textarea.Reset()
			a.selected = 0
			a.status = ""
			if config.DebugLog != nil {
				config.DebugLog.Printf("[UI] Sent %d chars", len(text))
			}
		}
		return a, nil
	}

	before := a.textarea.Value()
	var cmd tea.Cmd
	a.textarea, cmd = a.textarea.Update(msg)
	if a.textarea.Value() != before {
		a.selected = 0
		a.layout()
	}
	return a, cmd
}

func (a App) View() string {
	if !a.ready {
		return "Loading..."
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render(a.title))
	b.WriteString("  ")
	b.WriteString(DimStyle.Render(a.provider.GetModel()))
	b.WriteString("\n")
	b.WriteString(a.viewport.View())
	b.WriteString("\n")
	b.WriteString(DimStyle.Render(strings.Repeat("─", max(a.width, 1))))
	b.WriteString("\n")
	if a.suggesting() {
		b.WriteString(renderSuggestions(a.visibleSuggestions(), a.selected, a.width))
	}
	b.WriteString(a.textarea.View())
	b.WriteString("\n")
	b.WriteString(a.statusLine())
	return b.String()
}

func (a App) statusLine() string {
	state := a.snap.State.String()
	if a.snap.Busy {
		state = a.spinner.View() + " " + state
	}

	info := a.status
	if info == "" && a.snap.ErrorMessage != "" {
		info = ErrorStyle.Render(a.snap.ErrorMessage)
	}
	if info != "" && a.width > 0 {
		info = runewidth.Truncate(info, a.width/2, "…")
	}

	return StatusStyle.Render("["+state+"]") + " " + info + "  " + keys.footer(a.snap.Busy, a.suggesting())
}

// layout sizes the viewport around the title, separator, suggestions,
// textarea and status lines.
func (a *App) layout() {
	if !a.ready {
		return
	}
	reserved := 6
	if a.suggesting() {
		reserved += min(len(a.visibleSuggestions()), maxSuggestionRows)
	}
	a.viewport.Width = a.width
	a.viewport.Height = max(a.height-reserved, 1)
	a.textarea.SetWidth(a.width)
}

func (a *App) updateViewport(gotoBottom bool) {
	atBottom := a.viewport.AtBottom()
	a.viewport.SetContent(a.transcript())
	if gotoBottom || atBottom {
		a.viewport.GotoBottom()
	}
}

// requestRenders starts markdown renders for committed messages that have no
// render at the current width.
func (a *App) requestRenders() tea.Cmd {
	if !a.ready {
		return nil
	}
	var cmds []tea.Cmd
	for _, m := range a.snap.Messages {
		if m.IsReceiving || m.IsError || m.IsHidden || m.Role != model.RoleAssistant {
			continue
		}
		if r, ok := a.rendered[m.ID]; ok && r.width == a.width {
			continue
		}
		if w, ok := a.pending[m.ID]; ok && w == a.width {
			continue
		}
		a.pending[m.ID] = a.width
		cmds = append(cmds, renderMarkdownCmd(m.ID, m.Text, a.width))
	}
	return tea.Batch(cmds...)
}

func (a App) transcript() string {
	if len(a.snap.Messages) == 0 {
		return DimStyle.Render("No messages yet. Start chatting!")
	}

	var b strings.Builder
	for _, m := range a.snap.Messages {
		if m.IsHidden {
			continue
		}
		timestamp := DimStyle.Render(m.Timestamp.Format("[15:04]"))

		switch {
		case m.Role == model.RoleUser:
			b.WriteString(formatUserMessage(timestamp+" "+UserStyle.Render("You"), m.Text))
		case m.Role == model.RoleTool:
			b.WriteString(formatToolMessage(m, a.width))
		case m.Role == model.RoleSystem:
			fmt.Fprintf(&b, "%s %s\n%s\n\n", timestamp, DimStyle.Render("System"), DimStyle.Render(m.Text))
		case m.IsReceiving:
			body := a.spinner.View()
			if m.Text != "" {
				body = m.Text + "▋"
			}
			fmt.Fprintf(&b, "%s %s\n%s\n\n", timestamp, AssistantStyle.Render("Assistant"), body)
		case m.IsError:
			fmt.Fprintf(&b, "%s %s\n%s\n\n", timestamp, ErrorStyle.Render("Error"), ErrorStyle.Render(m.Text))
		default:
			body := m.Text
			if r, ok := a.rendered[m.ID]; ok && r.width == a.width {
				body = r.out
			}
			fmt.Fprintf(&b, "%s %s\n%s\n\n", timestamp, AssistantStyle.Render("Assistant"), body)
		}
	}
	return b.String()
}

// suggesting reports whether canned prompts are on offer: only before the
// user has said anything.
func (a App) suggesting() bool {
	if len(a.suggestions) == 0 || a.snap.Busy {
		return false
	}
	for _, m := range a.snap.Messages {
		if m.Role == model.RoleUser {
			return false
		}
	}
	return true
}

func (a App) visibleSuggestions() []chat.Suggestion {
	return filterSuggestions(strings.TrimSpace(a.textarea.Value()), a.suggestions)
}

// lastReply returns the text of the newest finished assistant message.
func lastReply(msgs []model.Message) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		m := msgs[i]
		if m.Role == model.RoleAssistant && !m.IsReceiving && !m.IsError && m.Text != "" {
			return m.Text
		}
	}
	return ""
}
