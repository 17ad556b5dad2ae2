package isolation

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rileyhilliard/pj/internal/errors"
	"github.com/rileyhilliard/pj/internal/logger"
)

// MarkerDir is the directory name that marks a dependency root inside an
// isolated runtime directory.
const MarkerDir = "lua_modules"

// Target is what the switcher needs to know about a plugin.
type Target struct {
	Name       string
	ProjectDir string
	RuntimeDir string
}

type activation struct {
	name    string
	entries []string
	depth   int
}

// Switcher pushes and pops plugin contexts on a SearchPathStack.
type Switcher struct {
	stack  *SearchPathStack
	// active holds the open activations of each plugin, innermost last.
	active map[string][]*activation
	log    logger.Logger
}

// NewSwitcher returns a switcher operating on stack.
func NewSwitcher(stack *SearchPathStack, log logger.Logger) *Switcher {
	if log == nil {
		log = logger.Noop()
	}
	return &Switcher{stack: stack, active: map[string][]*activation{}, log: log}
}

// Stack returns the stack the switcher operates on.
func (s *Switcher) Stack() *SearchPathStack {
	return s.stack
}

// FindMarkers returns every marker directory below root, sorted
// case-insensitively. Markers nested inside another marker are not reported.
func FindMarkers(root string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", root)
	}

	var markers []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() && d.Name() == MarkerDir {
			markers = append(markers, path)
			return filepath.SkipDir
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(markers, func(i, j int) bool {
		return strings.ToLower(markers[i]) < strings.ToLower(markers[j])
	})
	return markers, nil
}

// Enter pushes t's project directory and dependency roots onto the stack and
// returns a guard that must be released once the plugin is done. Entering a
// plugin that is already active does not push again.
func (s *Switcher) Enter(t Target) (*Guard, error) {
	if acts := s.active[t.Name]; len(acts) > 0 {
		if act := acts[len(acts)-1]; s.stack.HasPrefix(act.entries) {
			act.depth++
			s.log.Debug("%s already active, depth %d", t.Name, act.depth)
			return &Guard{sw: s, act: act}, nil
		}
	}

	markers, err := FindMarkers(t.RuntimeDir)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrEnvironment,
			fmt.Sprintf("Can't read the runtime directory of plugin '%s'", t.Name),
			"Check runtime_dir in the plugin metadata")
	}
	if len(markers) == 0 {
		return nil, errors.New(errors.ErrEnvironment,
			fmt.Sprintf("No %s directory found under %s for plugin '%s'", MarkerDir, t.RuntimeDir, t.Name),
			"Install the plugin's dependencies into its runtime directory")
	}

	entries := make([]string, 0, len(markers)+1)
	if t.ProjectDir != "" {
		entries = append(entries, t.ProjectDir)
	}
	entries = append(entries, markers...)

	act := &activation{name: t.Name, entries: entries, depth: 1}
	s.stack.PushFront(entries...)
	s.active[t.Name] = append(s.active[t.Name], act)
	s.log.Debug("entered %s: pushed %v", t.Name, entries)
	return &Guard{sw: s, act: act}, nil
}

func (s *Switcher) exit(act *activation) error {
	name := act.name
	if act.depth == 0 {
		return errors.New(errors.ErrIsolation,
			fmt.Sprintf("Plugin '%s' was exited more times than it was entered", name), "")
	}
	act.depth--
	if act.depth > 0 {
		return nil
	}
	s.forget(act)

	if s.stack.HasPrefix(act.entries) {
		s.stack.PopFront(len(act.entries))
		s.log.Debug("exited %s: popped %v", name, act.entries)
		return nil
	}

	var missing []string
	for _, e := range act.entries {
		if !s.stack.Remove(e) {
			missing = append(missing, e)
		}
	}
	if len(missing) > 0 {
		return errors.New(errors.ErrIsolation,
			fmt.Sprintf("Search path entries for plugin '%s' disappeared: %s", name, strings.Join(missing, ", ")),
			"Something else modified the module search path while the plugin ran")
	}
	s.log.Debug("exited %s: removed %v out of order", name, act.entries)
	return nil
}

// forget drops act from the active list.
func (s *Switcher) forget(act *activation) {
	acts := s.active[act.name]
	for i := len(acts) - 1; i >= 0; i-- {
		if acts[i] == act {
			acts = append(acts[:i:i], acts[i+1:]...)
			if len(acts) == 0 {
				delete(s.active, act.name)
			} else {
				s.active[act.name] = acts
			}
			return
		}
	}
}

// Guard undoes one Enter. Release is safe to call more than once.
type Guard struct {
	sw       *Switcher
	act      *activation
	released bool
}

// Release pops the entries pushed by the matching Enter. An error here means
// the stack was corrupted and is fatal.
func (g *Guard) Release() error {
	if g == nil || g.released {
		return nil
	}
	g.released = true
	return g.sw.exit(g.act)
}
