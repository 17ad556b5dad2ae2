// Package messages collects non-fatal warnings produced during startup so they
// can be shown together once the command has finished.
package messages

import "fmt"

// Level is the severity of a deferred message.
type Level int

const (
	LevelInfo Level = iota
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return fmt.Sprintf("level(%d)", int(l))
	}
}

// Message is one deferred entry.
type Message struct {
	Level Level
	Text  string
	// Aggressive messages are flushed right after validation instead of at
	// the end of the run.
	Aggressive bool
}

// Buffer accumulates messages in insertion order. The zero value is ready to use.
type Buffer struct {
	items []Message
}

// New returns an empty buffer.
func New() *Buffer {
	return &Buffer{}
}

// Add appends a message.
func (b *Buffer) Add(level Level, aggressive bool, text string) {
	b.items = append(b.items, Message{Level: level, Text: text, Aggressive: aggressive})
}

// Infof appends an info message.
func (b *Buffer) Infof(format string, args ...interface{}) {
	b.Add(LevelInfo, false, fmt.Sprintf(format, args...))
}

// Warnf appends a warning.
func (b *Buffer) Warnf(format string, args ...interface{}) {
	b.Add(LevelWarn, false, fmt.Sprintf(format, args...))
}

// Errorf appends an error-level message.
func (b *Buffer) Errorf(format string, args ...interface{}) {
	b.Add(LevelError, false, fmt.Sprintf(format, args...))
}

// Len returns the number of pending messages.
func (b *Buffer) Len() int {
	return len(b.items)
}

// Messages returns a copy of the pending messages.
func (b *Buffer) Messages() []Message {
	out := make([]Message, len(b.items))
	copy(out, b.items)
	return out
}

// DrainAggressive removes and returns only the aggressive messages, keeping
// the rest queued in their original order.
func (b *Buffer) DrainAggressive() []Message {
	var taken, kept []Message
	for _, m := range b.items {
		if m.Aggressive {
			taken = append(taken, m)
		} else {
			kept = append(kept, m)
		}
	}
	b.items = kept
	return taken
}

// Drain removes and returns every pending message.
func (b *Buffer) Drain() []Message {
	out := b.items
	b.items = nil
	return out
}
