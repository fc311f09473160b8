package ui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Send       key.Binding
	Cancel     key.Binding
	Retry      key.Binding
	Reset      key.Binding
	Copy       key.Binding
	Models     key.Binding
	Ping       key.Binding
	Suggestion key.Binding
	Quit       key.Binding
}

var keys = keyMap{
	Send:       key.NewBinding(key.WithKeys("enter"), key.WithHelp("Enter", "Send")),
	Cancel:     key.NewBinding(key.WithKeys("esc"), key.WithHelp("Esc", "Cancel")),
	Retry:      key.NewBinding(key.WithKeys("ctrl+r"), key.WithHelp("Ctrl+R", "Retry")),
	Reset:      key.NewBinding(key.WithKeys("ctrl+n"), key.WithHelp("Ctrl+N", "New chat")),
	Copy:       key.NewBinding(key.WithKeys("ctrl+y"), key.WithHelp("Ctrl+Y", "Copy reply")),
	Models:     key.NewBinding(key.WithKeys("ctrl+l"), key.WithHelp("Ctrl+L", "Models")),
	Ping:       key.NewBinding(key.WithKeys("ctrl+p"), key.WithHelp("Ctrl+P", "Ping")),
	Suggestion: key.NewBinding(key.WithKeys("tab"), key.WithHelp("Tab", "Next suggestion")),
	Quit:       key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("Ctrl+C", "Quit")),
}

// footer lists the bindings that apply in the current state.
func (k keyMap) footer(busy, suggesting bool) string {
	var bindings []key.Binding
	switch {
	case busy:
		bindings = []key.Binding{k.Cancel, k.Quit}
	case suggesting:
		bindings = []key.Binding{k.Send, k.Suggestion, k.Models, k.Quit}
	default:
		bindings = []key.Binding{k.Send, k.Retry, k.Reset, k.Copy, k.Quit}
	}

	parts := make([]string, 0, len(bindings)*2)
	for _, b := range bindings {
		h := b.Help()
		parts = append(parts, h.Key, h.Desc)
	}
	return FormatFooter(parts...)
}
