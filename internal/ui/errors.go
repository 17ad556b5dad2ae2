package ui

import (
	stderrors "errors"
	"strings"

	"github.com/rileyhilliard/pj/internal/errors"
	"github.com/rileyhilliard/pj/internal/messages"
)

// RenderError formats an error for stderr. Structured errors keep their
// message, cause and suggestion layout; anything else gets the failure symbol.
func RenderError(err error) string {
	if err == nil {
		return ""
	}
	var pjErr *errors.Error
	if stderrors.As(err, &pjErr) {
		lines := strings.SplitN(strings.TrimRight(pjErr.Error(), "\n"), "\n", 2)
		out := style(ColorError).Bold(true).Render(lines[0])
		if len(lines) > 1 {
			out += "\n" + style(ColorMuted).Render(lines[1])
		}
		return out + "\n"
	}
	return style(ColorError).Bold(true).Render(SymbolFail+" "+strings.TrimSpace(err.Error())) + "\n"
}

// RenderMessageLine renders one message on its own line, for messages shown
// as soon as they are produced instead of in the panel.
func RenderMessageLine(m messages.Message) string {
	switch m.Level {
	case messages.LevelError:
		return style(ColorError).Render(SymbolFail) + " " + m.Text + "\n"
	case messages.LevelWarn:
		return style(ColorWarning).Render(SymbolWarning) + " " + m.Text + "\n"
	default:
		return style(ColorInfo).Render(SymbolInfo) + " " + m.Text + "\n"
	}
}
