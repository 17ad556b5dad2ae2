package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/rileyhilliard/pj/internal/messages"
	"github.com/rileyhilliard/pj/internal/util"
)

// MessagesPanel renders deferred messages as a bordered, numbered list.
type MessagesPanel struct {
	// Limit caps how many messages are listed. Negative means no cap.
	Limit int
	// ConfigFile is named in the closing note.
	ConfigFile string

	titleStyle lipgloss.Style
	boxStyle   lipgloss.Style
	mutedStyle lipgloss.Style
	levels     map[messages.Level]lipgloss.Style
}

// NewMessagesPanel creates a panel with default styles.
func NewMessagesPanel(limit int, configFile string) *MessagesPanel {
	return &MessagesPanel{
		Limit:      limit,
		ConfigFile: configFile,
		titleStyle: style(ColorWarning).Bold(true),
		boxStyle: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorMuted).
			Padding(0, 1),
		mutedStyle: style(ColorMuted),
		levels: map[messages.Level]lipgloss.Style{
			messages.LevelInfo:  style(ColorInfo).Bold(true),
			messages.LevelWarn:  style(ColorWarning).Bold(true),
			messages.LevelError: style(ColorError).Bold(true),
		},
	}
}

// Render returns the panel, or "" when there is nothing to show.
func (p *MessagesPanel) Render(msgs []messages.Message) string {
	if len(msgs) == 0 {
		return ""
	}

	shown := msgs
	if p.Limit >= 0 && len(shown) > p.Limit {
		shown = shown[:p.Limit]
	}

	var sb strings.Builder
	for i, m := range shown {
		level := strings.ToUpper(m.Level.String())
		if s, ok := p.levels[m.Level]; ok {
			level = s.Render(level)
		}
		fmt.Fprintf(&sb, "%d. %s %s\n", i+1, level, m.Text)
	}

	if hidden := len(msgs) - len(shown); hidden > 0 {
		fmt.Fprintf(&sb, "%s\n", p.mutedStyle.Render(fmt.Sprintf(
			"%d more %s not shown. Raise messages_limit in %s to see them.",
			hidden, util.Pluralize(hidden, "message", "messages"), p.ConfigFile)))
	}

	sb.WriteString("\n")
	sb.WriteString(p.mutedStyle.Render(fmt.Sprintf(
		"Note: pj will continue to work despite the above warnings. "+
			"Set development_mode: true in %s to debug them.", p.ConfigFile)))

	title := p.titleStyle.Render(fmt.Sprintf("%s %s", SymbolInfo, util.Pluralize(len(msgs), "Message", "Messages")))
	return title + "\n" + p.boxStyle.Render(sb.String()) + "\n"
}

// RenderMessages renders msgs with a default panel.
func RenderMessages(msgs []messages.Message, limit int, configFile string) string {
	return NewMessagesPanel(limit, configFile).Render(msgs)
}
