// Package testing provides test doubles for the plugin package.
package testing

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/rileyhilliard/pj/internal/plugin"
)

// FakeProvider returns canned command groups keyed by lower-cased plugin name.
// Plugins with no configured behaviour get a single "run" command that
// prints "<name> ran".
type FakeProvider struct {
	Groups map[string]*plugin.CommandGroup
	Errors map[string]error
	Panics map[string]interface{}
	// Empty lists plugins whose entry script defines no command group.
	Empty map[string]bool
	// OnLoad, when set, is called before each load.
	OnLoad func(d *plugin.Descriptor)

	// Loaded records the names passed to Load, in order.
	Loaded []string
}

// NewFakeProvider creates an empty fake provider.
func NewFakeProvider() *FakeProvider {
	return &FakeProvider{
		Groups: map[string]*plugin.CommandGroup{},
		Errors: map[string]error{},
		Panics: map[string]interface{}{},
		Empty:  map[string]bool{},
	}
}

// FailWith makes loading name return err.
func (f *FakeProvider) FailWith(name string, err error) *FakeProvider {
	f.Errors[strings.ToLower(name)] = err
	return f
}

// PanicWith makes loading name panic with v.
func (f *FakeProvider) PanicWith(name string, v interface{}) *FakeProvider {
	f.Panics[strings.ToLower(name)] = v
	return f
}

// Load implements plugin.Provider.
func (f *FakeProvider) Load(_ context.Context, d *plugin.Descriptor) (*plugin.CommandGroup, error) {
	f.Loaded = append(f.Loaded, d.Name)
	if f.OnLoad != nil {
		f.OnLoad(d)
	}

	key := strings.ToLower(d.Name)
	if v, ok := f.Panics[key]; ok {
		panic(v)
	}
	if err, ok := f.Errors[key]; ok {
		return nil, err
	}
	if f.Empty[key] {
		return nil, plugin.ErrNoCommandGroup
	}
	if g, ok := f.Groups[key]; ok {
		return g, nil
	}

	name := d.Name
	return &plugin.CommandGroup{
		Short: name + " plugin",
		Commands: []plugin.Command{{
			Name:  "run",
			Short: "Run " + name,
			Run: func(_ context.Context, args []string, out io.Writer) error {
				fmt.Fprintf(out, "%s ran %s\n", name, strings.Join(args, " "))
				return nil
			},
		}},
	}, nil
}

// FakeProber returns a fixed version string or error.
type FakeProber struct {
	Output string
	Err    error
	// Block makes Probe wait for the context to end.
	Block bool

	Calls []string
}

// Probe implements plugin.VersionProber.
func (p *FakeProber) Probe(ctx context.Context, runtimeDir string) (string, error) {
	p.Calls = append(p.Calls, runtimeDir)
	if p.Block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return p.Output, p.Err
}
