package plugin

import (
	"context"
	"io"
	"io/fs"
)

// Kind tells built-in plugins apart from external ones.
type Kind int

const (
	KindBuiltin Kind = iota
	KindExternal
)

func (k Kind) String() string {
	if k == KindBuiltin {
		return "built-in"
	}
	return "third-party"
}

// Descriptor is the resolved location and launch parameters of one plugin.
type Descriptor struct {
	Name        string
	Kind        Kind
	Root        string // for built-ins, a path inside FS
	EntryScript string
	ProjectDir  string
	RuntimeDir  string // optional isolated runtime
	HasMetadata bool
	FS          fs.FS // built-in plugin files; nil for external plugins
}

// Isolated reports whether the plugin declares its own runtime.
func (d *Descriptor) Isolated() bool {
	return d.RuntimeDir != ""
}

// Command is one subcommand contributed by a plugin.
type Command struct {
	Name  string
	Short string
	Run   func(ctx context.Context, args []string, out io.Writer) error
}

// CommandGroup is what a provider produces from a plugin's entry script.
type CommandGroup struct {
	Short    string
	Long     string
	Commands []Command
}

// Provider loads a plugin's command group.
type Provider interface {
	Load(ctx context.Context, d *Descriptor) (*CommandGroup, error)
}
