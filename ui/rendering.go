package ui

import (
	"fmt"
	"regexp"
	"strings"

	markdown "github.com/MichaelMure/go-term-markdown"
	gomarkdown "github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/parser"
	"github.com/mattn/go-runewidth"

	"chatview/model"
)

const (
	ansiRed      = "\x1b[31m"
	ansiDarkGray = "\x1b[90m"
	ansiReset    = "\x1b[0m"

	// go-term-markdown prefixes code block lines with this bar
	codeBar = "┃"
)

var (
	inlineCodeRegex = regexp.MustCompile(`(?s)\x1b\[44;3m(.*?)\x1b\[0m`)
	mdLinkRegex     = regexp.MustCompile(`\[([^\]]+)\]\((https?://[^\)]+)\)`)
	urlRegex        = regexp.MustCompile(`(https?://[^\s\x1b]+)`)
	ansiRegex       = regexp.MustCompile(`\x1b\[[0-9;]*m`)
)

// renderMarkdown renders content for a terminal of the given width. Links
// are flattened to their URL so terminals can detect them.
func renderMarkdown(content string, width int) string {
	if width < 20 {
		width = 80
	}

	content = mdLinkRegex.ReplaceAllString(content, "$2")

	p := parser.NewWithExtensions(markdown.Extensions() &^ parser.Autolink)
	doc := p.Parse([]byte(content))
	rendered := string(gomarkdown.Render(doc, markdown.NewRenderer(width-4, 0)))

	rendered = inlineCodeRegex.ReplaceAllString(rendered, ansiRed+"$1"+ansiReset)
	rendered = colorURLs(rendered)
	rendered = frameCodeBlocks(rendered, width)
	return strings.TrimRight(rendered, "\n")
}

// colorURLs paints bare URLs outside code blocks.
func colorURLs(s string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		if !strings.Contains(line, codeBar) {
			lines[i] = urlRegex.ReplaceAllString(line, ansiRed+"$1"+ansiReset)
		}
	}
	return strings.Join(lines, "\n")
}

// frameCodeBlocks swaps the per-line bar of code blocks for a horizontal
// rule above and below the block.
func frameCodeBlocks(s string, width int) string {
	rule := func(label string) string {
		n := width - 4 - runewidth.StringWidth(label)
		if n < 0 {
			n = 0
		}
		left := n / 2
		return ansiDarkGray + strings.Repeat("━", left) + ansiReset + label +
			ansiDarkGray + strings.Repeat("━", n-left) + ansiReset
	}

	var out []string
	inBlock := false
	for _, line := range strings.Split(s, "\n") {
		idx := strings.Index(line, codeBar)
		switch {
		case idx >= 0 && !inBlock:
			inBlock = true
			out = append(out, "", rule("[code]"))
			fallthrough
		case idx >= 0:
			rest := line[idx+len(codeBar):]
			out = append(out, strings.TrimPrefix(rest, " "))
		default:
			if inBlock {
				inBlock = false
				out = append(out, rule(""), "")
			}
			out = append(out, line)
		}
	}
	if inBlock {
		out = append(out, rule(""))
	}
	return strings.Join(out, "\n")
}

// formatUserMessage draws user text behind a green bar.
func formatUserMessage(header, content string) string {
	bar := UserStyle.Render("┃")

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", bar, header)
	for _, line := range strings.Split(content, "\n") {
		fmt.Fprintf(&b, "%s %s\n", bar, line)
	}
	b.WriteString("\n")
	return b.String()
}

// formatToolMessage summarizes a visible tool result on one line.
func formatToolMessage(m model.Message, width int) string {
	name := "tool"
	if m.ToolCall != nil {
		name = m.ToolCall.Name
	}
	line := fmt.Sprintf("%s → %s", name, strings.Join(strings.Fields(m.Text), " "))
	if width > 4 {
		line = runewidth.Truncate(line, width-4, "…")
	}
	return ToolStyle.Render("  ⚙ ") + DimStyle.Render(line) + "\n\n"
}

func stripANSI(s string) string {
	return ansiRegex.ReplaceAllString(s, "")
}
