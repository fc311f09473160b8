package ui

import (
	"github.com/mattn/go-runewidth"
	"github.com/sahilm/fuzzy"

	"chatview/chat"
)

const maxSuggestionRows = 4

// filterSuggestions ranks suggestions against what the user has typed so
// far. An empty query keeps the configured order.
func filterSuggestions(query string, all []chat.Suggestion) []chat.Suggestion {
	if query == "" {
		return all
	}

	targets := make([]string, len(all))
	for i, s := range all {
		targets[i] = s.Text()
	}

	matches := fuzzy.Find(query, targets)
	out := make([]chat.Suggestion, 0, len(matches))
	for _, m := range matches {
		out = append(out, all[m.Index])
	}
	return out
}

// renderSuggestions draws up to maxSuggestionRows entries, each cut to width.
func renderSuggestions(list []chat.Suggestion, selected, width int) string {
	if len(list) == 0 {
		return ""
	}

	var out string
	for i, s := range list {
		if i == maxSuggestionRows {
			break
		}
		line := s.Title
		if s.Body != "" {
			line += " · " + s.Body
		}
		if line == "" {
			line = s.Text()
		}
		if width > 6 {
			line = runewidth.Truncate(line, width-4, "…")
		}

		if i == selected {
			out += SelectedStyle.Render("▸ "+line) + "\n"
		} else {
			out += DimStyle.Render("  "+line) + "\n"
		}
	}
	return out
}
