package plugin

import (
	"context"
	stderrors "errors"
	"fmt"
	"runtime/debug"
	"sort"
	"strings"

	"github.com/rileyhilliard/pj/internal/errors"
	"github.com/rileyhilliard/pj/internal/isolation"
	"github.com/rileyhilliard/pj/internal/logger"
	"github.com/rileyhilliard/pj/internal/messages"
)

// ConflictKind says what a plugin name collided with.
type ConflictKind int

const (
	ConflictBuiltin ConflictKind = iota
	ConflictExternal
	ConflictReserved
)

// Conflict records a case-insensitive name collision. The candidate is the
// plugin that was disabled.
type Conflict struct {
	Name      string
	Kind      ConflictKind
	Candidate *Descriptor
	Existing  *Descriptor // nil for reserved names
	Reason    string
}

// Plugin is one registered plugin. Disabled plugins keep their descriptor so
// they stay visible, but have no command group.
type Plugin struct {
	Descriptor *Descriptor
	Group      *CommandGroup
	Disabled   error
}

// Enabled reports whether the plugin can be invoked.
func (p *Plugin) Enabled() bool {
	return p.Disabled == nil && p.Group != nil
}

// Registry holds the plugins registered for one run.
type Registry struct {
	provider Provider
	checker  *Checker
	switcher *isolation.Switcher
	msgs     *messages.Buffer
	log      logger.Logger

	reserved map[string]bool
	index    map[string]*Plugin
	plugins  []*Plugin
	conflict []Conflict
}

// Option configures a Registry.
type Option func(*Registry)

// WithChecker sets the runtime compatibility checker.
func WithChecker(c *Checker) Option {
	return func(r *Registry) {
		r.checker = c
	}
}

// WithSwitcher sets the switcher used while loading isolated plugins.
func WithSwitcher(s *isolation.Switcher) Option {
	return func(r *Registry) {
		r.switcher = s
	}
}

// WithReserved adds names no plugin may use.
func WithReserved(names ...string) Option {
	return func(r *Registry) {
		for _, n := range names {
			r.reserved[strings.ToLower(n)] = true
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(r *Registry) {
		r.log = l
	}
}

// NewRegistry creates a registry loading command groups through provider and
// reporting problems to msgs.
func NewRegistry(provider Provider, msgs *messages.Buffer, opts ...Option) *Registry {
	r := &Registry{
		provider: provider,
		msgs:     msgs,
		log:      logger.Noop(),
		reserved: map[string]bool{},
		index:    map[string]*Plugin{},
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.msgs == nil {
		r.msgs = messages.New()
	}
	return r
}

// Register checks d for name conflicts and runtime compatibility, then loads
// its command group. The returned plugin is nil when it was dropped because it
// failed to load or defines no command group. Only fatal errors are returned;
// everything else is contained here and reported as a deferred message.
func (r *Registry) Register(ctx context.Context, d *Descriptor) (*Plugin, error) {
	key := strings.ToLower(d.Name)

	if c, ok := r.findConflict(d, key); ok {
		r.conflict = append(r.conflict, c)
		p := &Plugin{Descriptor: d, Disabled: errors.New(errors.ErrConflict, c.Reason,
			"Rename the plugin directory (and plugin_name in its metadata, if set)")}
		r.plugins = append(r.plugins, p)
		r.log.Debug("disabled %s: %s", d.Name, c.Reason)
		return p, nil
	}

	if r.checker != nil {
		if err := r.checker.Check(ctx, d); err != nil {
			return r.disable(key, d, err), nil
		}
	}

	group, err := r.load(ctx, d)
	switch {
	case err == nil:
		p := &Plugin{Descriptor: d, Group: group}
		r.add(key, p)
		return p, nil
	case errors.IsFatal(err):
		return nil, err
	case errors.IsCode(err, errors.ErrEnvironment):
		return r.disable(key, d, err), nil
	case stderrors.Is(err, ErrNoCommandGroup):
		r.log.Debug("%s defines no command group, skipping", d.Name)
		return nil, nil
	default:
		r.msgs.Warnf("An error occurred while loading the %s plugin '%s' from %s, so it will be ignored: %s",
			d.Kind, d.Name, d.Root, errors.Summary(err))
		return nil, nil
	}
}

// RegisterAll registers each descriptor in order, stopping only on a fatal error.
func (r *Registry) RegisterAll(ctx context.Context, ds []*Descriptor) error {
	for _, d := range ds {
		if _, err := r.Register(ctx, d); err != nil {
			return err
		}
	}
	return nil
}

func (r *Registry) disable(key string, d *Descriptor, reason error) *Plugin {
	p := &Plugin{Descriptor: d, Disabled: reason}
	r.add(key, p)
	r.log.Debug("disabled %s: %v", d.Name, reason)
	return p
}

func (r *Registry) add(key string, p *Plugin) {
	r.index[key] = p
	r.plugins = append(r.plugins, p)
}

func (r *Registry) findConflict(d *Descriptor, key string) (Conflict, bool) {
	c := Conflict{Name: d.Name, Candidate: d}
	existing, taken := r.index[key]

	switch {
	case r.reserved[key]:
		c.Kind = ConflictReserved
		c.Reason = fmt.Sprintf("Plugin '%s' at %s uses the reserved name '%s'.", d.Name, d.Root, key)
		if d.Name != key {
			c.Reason += caseNote
		}
	case taken && existing.Descriptor.Kind == KindBuiltin:
		c.Kind = ConflictBuiltin
		c.Existing = existing.Descriptor
		c.Reason = fmt.Sprintf("Plugin '%s' at %s conflicts with the built-in plugin '%s'.",
			d.Name, d.Root, c.Existing.Name)
	case taken:
		c.Kind = ConflictExternal
		c.Existing = existing.Descriptor
		c.Reason = fmt.Sprintf("Plugin '%s' at %s conflicts with the third-party plugin '%s' at %s.",
			d.Name, d.Root, c.Existing.Name, c.Existing.Root)
	default:
		return Conflict{}, false
	}

	if c.Existing != nil && c.Existing.Name != d.Name {
		c.Reason += caseNote
	}
	return c, true
}

const caseNote = " Note that plugin names are case-insensitive."

// load runs the provider with panics converted to errors. Isolated plugins
// are loaded inside their runtime context.
func (r *Registry) load(ctx context.Context, d *Descriptor) (group *CommandGroup, err error) {
	if d.Isolated() && r.switcher != nil {
		guard, gerr := r.switcher.Enter(isolation.Target{
			Name:       d.Name,
			ProjectDir: d.ProjectDir,
			RuntimeDir: d.RuntimeDir,
		})
		if gerr != nil {
			return nil, gerr
		}
		defer func() {
			if rerr := guard.Release(); rerr != nil {
				group, err = nil, rerr
			}
		}()
	}

	defer func() {
		if rec := recover(); rec != nil {
			r.log.Debug("panic loading %s: %v\n%s", d.Name, rec, debug.Stack())
			group, err = nil, fmt.Errorf("plugin panicked while loading: %v", rec)
		}
	}()

	group, err = r.provider.Load(ctx, d)
	if err == nil && group == nil {
		err = ErrNoCommandGroup
	}
	return group, err
}

// Plugins returns every registered plugin, enabled or not, in registration order.
func (r *Registry) Plugins() []*Plugin {
	return append([]*Plugin(nil), r.plugins...)
}

// Lookup finds the plugin that owns name, ignoring case.
func (r *Registry) Lookup(name string) (*Plugin, bool) {
	p, ok := r.index[strings.ToLower(name)]
	return p, ok
}

// Conflicts returns the name collisions found so far.
func (r *Registry) Conflicts() []Conflict {
	return append([]Conflict(nil), r.conflict...)
}

// Names returns the enabled plugin names, sorted.
func (r *Registry) Names() []string {
	var out []string
	for _, p := range r.plugins {
		if p.Enabled() {
			out = append(out, p.Descriptor.Name)
		}
	}
	sort.Strings(out)
	return out
}
