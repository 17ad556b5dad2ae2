package ui

import (
	"fmt"
	"strings"

	"github.com/rileyhilliard/pj/internal/util"
)

// ConfigRow is one configured key in the show-config report.
type ConfigRow struct {
	Name   string // human readable; empty falls back to the key
	Key    string
	Value  string
	Source string
}

// SourceRow is one configuration source in use.
type SourceRow struct {
	Label string
	Path  string
}

// RejectedRow is a raw value that failed validation.
type RejectedRow struct {
	Key    string
	Value  string
	Source string
	Reason string
}

// ConfigReport is everything show-config prints.
type ConfigReport struct {
	DataDir   string
	PluginDir string
	Rows      []ConfigRow
	Sources   []SourceRow
	Rejected  []RejectedRow
	Misnamed  []string
	// UsesDefault is set when any row comes from the fallback pseudo-source.
	UsesDefault bool
}

// RenderConfigReport formats r. With noKeys the raw key names are omitted.
func RenderConfigReport(r ConfigReport, noKeys bool) string {
	heading := style(ColorSecondary).Bold(true)
	label := style(ColorSuccess)
	path := style(ColorInfo)
	key := style(ColorWarning)
	muted := style(ColorMuted)

	var sb strings.Builder
	sb.WriteString(heading.Render("pj configuration"))
	sb.WriteString("\n")
	sb.WriteString(muted.Render(fmt.Sprintf("Name [key]: value %s source", SymbolArrow)))
	sb.WriteString("\n\n")

	fmt.Fprintf(&sb, "- %s: %s\n", label.Render("App data directory"), path.Render(r.DataDir))
	fmt.Fprintf(&sb, "- %s: %s\n\n", label.Render("Third-party plugins directory"), path.Render(r.PluginDir))

	for _, row := range r.Rows {
		name := row.Name
		if name == "" {
			name = row.Key
		}
		line := "- " + label.Render(name)
		if !noKeys && row.Name != "" {
			line += " [" + key.Render(row.Key) + "]"
		}
		line += fmt.Sprintf(": %s %s %s", row.Value, SymbolArrow, muted.Render(row.Source))
		sb.WriteString(line + "\n")
	}

	sb.WriteString("\n")
	sb.WriteString(heading.Render("Configuration sources in use:"))
	sb.WriteString("\n")
	if len(r.Sources) == 0 {
		sb.WriteString(muted.Render("  none") + "\n")
	}
	for _, s := range r.Sources {
		fmt.Fprintf(&sb, "- %s: %s\n", s.Label, path.Render(s.Path))
	}
	if r.UsesDefault {
		fmt.Fprintf(&sb, "- default: %s\n",
			muted.Render("fallback value used when no configuration is found or it is invalid"))
	}

	if len(r.Rejected) > 0 {
		sb.WriteString("\n")
		sb.WriteString(heading.Render("Rejected values:"))
		sb.WriteString("\n")
		for _, rej := range r.Rejected {
			fmt.Fprintf(&sb, "- %s: %s %s %s\n", key.Render(rej.Key), rej.Value, SymbolArrow, muted.Render(rej.Source))
			if rej.Reason != "" {
				fmt.Fprintf(&sb, "    %s\n", muted.Render(rej.Reason))
			}
		}
	}

	for _, m := range r.Misnamed {
		sb.WriteString("\n")
		sb.WriteString(style(ColorError).Bold(true).Render("Attention:"))
		fmt.Fprintf(&sb, " File '%s' was found, but pj only reads '.yml' configuration files. "+
			"Rename it to use the '.yml' extension if it is meant for pj.\n", m)
	}

	return sb.String()
}

// DoctorCheckRow represents a row in the doctor diagnostic report.
type DoctorCheckRow struct {
	Status     string // "pass", "warn", "fail"
	Category   string
	Message    string
	Suggestion string
}

// RenderDoctorReport renders check results grouped by category, in the order
// categories first appear, followed by a summary line.
func RenderDoctorReport(rows []DoctorCheckRow) string {
	if len(rows) == 0 {
		return "No checks to display\n"
	}

	successStyle := style(ColorSuccess)
	errorStyle := style(ColorError)
	warnStyle := style(ColorWarning)
	mutedStyle := style(ColorMuted)
	headerStyle := style(ColorPrimary).Bold(true)

	categories := make(map[string][]DoctorCheckRow)
	var order []string
	issues := 0
	for _, row := range rows {
		if _, exists := categories[row.Category]; !exists {
			order = append(order, row.Category)
		}
		categories[row.Category] = append(categories[row.Category], row)
		if row.Status != "pass" {
			issues++
		}
	}

	var sb strings.Builder
	for _, cat := range order {
		sb.WriteString(headerStyle.Render(cat) + "\n")

		for _, row := range categories[cat] {
			var icon string
			switch row.Status {
			case "pass":
				icon = successStyle.Render(SymbolSuccess)
			case "warn":
				icon = warnStyle.Render(SymbolWarning)
			default:
				icon = errorStyle.Render(SymbolFail)
			}
			sb.WriteString("  " + icon + " " + row.Message + "\n")

			if row.Suggestion != "" && row.Status != "pass" {
				for _, line := range strings.Split(row.Suggestion, "\n") {
					sb.WriteString("    " + mutedStyle.Render(line) + "\n")
				}
			}
		}
		sb.WriteString("\n")
	}

	sb.WriteString(strings.Repeat("━", 60) + "\n")
	if issues == 0 {
		sb.WriteString(successStyle.Render(SymbolSuccess) + " Everything looks good\n")
	} else {
		fmt.Fprintf(&sb, "%s %d %s found\n", errorStyle.Render(SymbolFail), issues, util.Pluralize(issues, "issue", "issues"))
	}
	return sb.String()
}
