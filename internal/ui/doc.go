// Package ui renders pj's terminal output with Lip Gloss.
//
// # Components Overview
//
//	MessagesPanel - Bordered panel listing deferred warnings after a command
//	ConfigReport  - show-config listing of values and where they came from
//	DoctorReport  - Grouped doctor check results with a summary line
//
// # Color Scheme
//
// Colors are defined as ANSI codes for broad terminal compatibility:
//
//	ColorSuccess   (green)  - Passing checks
//	ColorError     (red)    - Failures and errors
//	ColorWarning   (yellow) - Warnings and disabled plugins
//	ColorInfo      (cyan)   - Paths and informational messages
//	ColorMuted     (gray)   - Secondary text, sources and suggestions
//	ColorSecondary (blue)   - Section headings
//
// Use SetColorEnabled(false) to switch to monochrome output (for --no-color).
package ui
