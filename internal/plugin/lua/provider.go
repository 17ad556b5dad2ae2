// Package lua loads pj plugins written in Lua using gopher-lua.
//
// Each plugin gets its own interpreter state. The entry script runs as a
// module named "pj.plugins.<name>" and must leave a command group in the
// global "app" table (or return it):
//
//	app = {
//	  short = "one line help",
//	  commands = {
//	    hello = { short = "Say hello", run = function(args) ... end },
//	  },
//	}
//
// A run function may return a string to fail the command with that message.
package lua

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	lua "github.com/yuin/gopher-lua"

	"github.com/rileyhilliard/pj/internal/errors"
	"github.com/rileyhilliard/pj/internal/isolation"
	"github.com/rileyhilliard/pj/internal/logger"
	"github.com/rileyhilliard/pj/internal/plugin"
)

// NamespacePrefix is prepended to plugin names to form their module name.
const NamespacePrefix = "pj.plugins."

// GroupGlobal is the global an entry script assigns its command group to.
const GroupGlobal = "app"

// PluginInfo is what the pj module reports about registered plugins.
type PluginInfo struct {
	Name     string
	Kind     string
	Status   string
	Location string
}

// Host is the part of pj that plugins can call into.
type Host interface {
	PluginSettings(name string) map[string]interface{}
	PluginDir() string
	PluginInfos() []PluginInfo
	NewPlugin(name string) (string, error)
}

// RuntimeVersion is the Lua version embedded in pj.
func RuntimeVersion() plugin.Version {
	v, err := plugin.ParseVersion(lua.LuaVersion)
	if err != nil {
		panic(err)
	}
	return v
}

// Provider implements plugin.Provider for Lua entry scripts.
type Provider struct {
	stack  *isolation.SearchPathStack
	host   Host
	log    logger.Logger
	states []*lua.LState
}

// NewProvider returns a provider that resolves require() against stack.
func NewProvider(stack *isolation.SearchPathStack, host Host, log logger.Logger) *Provider {
	if log == nil {
		log = logger.Noop()
	}
	if stack == nil {
		stack = isolation.NewSearchPathStack()
	}
	return &Provider{stack: stack, host: host, log: log}
}

// Close releases every interpreter state the provider created.
func (p *Provider) Close() {
	for _, L := range p.states {
		L.Close()
	}
	p.states = nil
}

// plugState is per-plugin state shared by the pj module and the commands.
type plugState struct {
	desc *plugin.Descriptor
	out  io.Writer
}

// Load runs d's entry script and converts the command group it defines.
func (p *Provider) Load(ctx context.Context, d *plugin.Descriptor) (*plugin.CommandGroup, error) {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	keep := false
	defer func() {
		if !keep {
			L.Close()
		}
	}()

	if err := openLibraries(L); err != nil {
		return nil, err
	}
	ps := &plugState{desc: d, out: os.Stdout}
	p.installHostModule(L, ps)
	p.setSearchPath(L, d)

	fn, err := compile(L, d)
	if err != nil {
		return nil, err
	}

	L.SetContext(ctx)
	defer L.RemoveContext()

	namespace := NamespacePrefix + strings.ToLower(d.Name)
	L.Push(fn)
	L.Push(lua.LString(namespace))
	if err := L.PCall(1, 1, nil); err != nil {
		return nil, fmt.Errorf("running %s: %w", d.EntryScript, err)
	}
	ret := L.Get(-1)
	L.Pop(1)

	tbl, ok := ret.(*lua.LTable)
	if !ok {
		tbl, ok = L.GetGlobal(GroupGlobal).(*lua.LTable)
	}
	if !ok {
		return nil, plugin.ErrNoCommandGroup
	}
	L.SetField(L.GetField(L.GetGlobal("package"), "loaded"), namespace, tbl)

	group, err := p.toGroup(L, ps, tbl)
	if err != nil {
		return nil, err
	}
	keep = true
	p.states = append(p.states, L)
	p.log.Debug("loaded %s as %s with %d commands", d.Name, namespace, len(group.Commands))
	return group, nil
}

func openLibraries(L *lua.LState) error {
	libs := []struct {
		name string
		fn   lua.LGFunction
	}{
		{lua.LoadLibName, lua.OpenPackage},
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
	}
	for _, lib := range libs {
		if err := L.CallByParam(lua.P{Fn: L.NewFunction(lib.fn), NRet: 0, Protect: true}, lua.LString(lib.name)); err != nil {
			return fmt.Errorf("opening lua library %q: %w", lib.name, err)
		}
	}
	return nil
}

func compile(L *lua.LState, d *plugin.Descriptor) (*lua.LFunction, error) {
	if d.FS != nil {
		src, err := fs.ReadFile(d.FS, d.EntryScript)
		if err != nil {
			return nil, err
		}
		return L.Load(bytes.NewReader(src), "@"+filepath.ToSlash(filepath.Join(d.Root, d.EntryScript)))
	}
	return L.LoadFile(d.EntryScript)
}

// SearchPath builds a Lua package.path from the stack, followed by the
// plugin's own project directory. Dependency roots also expose the luarocks
// tree layout under share/lua/<version>.
func SearchPath(stack *isolation.SearchPathStack, projectDir string) string {
	dirs := stack.Entries()
	if projectDir != "" && !stack.Contains(projectDir) {
		dirs = append(dirs, projectDir)
	}
	parts := make([]string, 0, 2*len(dirs))
	for _, dir := range dirs {
		parts = append(parts,
			filepath.Join(dir, "?.lua"),
			filepath.Join(dir, "?", "init.lua"))
		if filepath.Base(dir) == isolation.MarkerDir {
			tree := RocksTreeDir(dir)
			parts = append(parts,
				filepath.Join(tree, "?.lua"),
				filepath.Join(tree, "?", "init.lua"))
		}
	}
	return strings.Join(parts, ";")
}

// RocksTreeDir returns where a luarocks tree rooted at dir keeps pure Lua
// modules for the host runtime version.
func RocksTreeDir(dir string) string {
	v := RuntimeVersion()
	return filepath.Join(dir, "share", "lua", fmt.Sprintf("%d.%d", v.Major, v.Minor))
}

func (p *Provider) setSearchPath(L *lua.LState, d *plugin.Descriptor) {
	project := ""
	if d.FS == nil {
		project = d.ProjectDir
	}
	L.SetField(L.GetGlobal("package"), "path", lua.LString(SearchPath(p.stack, project)))
}

func (p *Provider) toGroup(L *lua.LState, ps *plugState, tbl *lua.LTable) (*plugin.CommandGroup, error) {
	group := &plugin.CommandGroup{
		Short: luaString(tbl.RawGetString("short")),
		Long:  luaString(tbl.RawGetString("long")),
	}

	cmds, ok := tbl.RawGetString("commands").(*lua.LTable)
	if !ok {
		return nil, fmt.Errorf("%s.commands must be a table", GroupGlobal)
	}

	type entry struct {
		name string
		def  *lua.LTable
	}
	var entries []entry
	var bad error
	cmds.ForEach(func(k, v lua.LValue) {
		if bad != nil {
			return
		}
		name, ok := k.(lua.LString)
		def, isTable := v.(*lua.LTable)
		if !ok || !isTable {
			bad = fmt.Errorf("%s.commands entries must map names to tables", GroupGlobal)
			return
		}
		entries = append(entries, entry{name: string(name), def: def})
	})
	if bad != nil {
		return nil, bad
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].name < entries[j].name })

	for _, e := range entries {
		fn, ok := e.def.RawGetString("run").(*lua.LFunction)
		if !ok {
			return nil, fmt.Errorf("command '%s' has no run function", e.name)
		}
		group.Commands = append(group.Commands, plugin.Command{
			Name:  e.name,
			Short: luaString(e.def.RawGetString("short")),
			Run:   p.runner(L, ps, e.name, fn),
		})
	}
	return group, nil
}

func (p *Provider) runner(L *lua.LState, ps *plugState, name string, fn *lua.LFunction) func(context.Context, []string, io.Writer) error {
	return func(ctx context.Context, args []string, out io.Writer) (err error) {
		defer func() {
			if rec := recover(); rec != nil {
				err = fmt.Errorf("plugin command '%s' panicked: %v", name, rec)
			}
		}()

		p.setSearchPath(L, ps.desc)
		if out != nil {
			ps.out = out
		}
		L.SetContext(ctx)
		defer L.RemoveContext()

		argv := L.NewTable()
		for _, a := range args {
			argv.Append(lua.LString(a))
		}
		if err := L.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}, argv); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return errors.WrapWithCode(err, errors.ErrPlugin,
				fmt.Sprintf("%s %s failed", ps.desc.Name, name), "")
		}
		ret := L.Get(-1)
		L.Pop(1)

		switch r := ret.(type) {
		case lua.LString:
			return errors.New(errors.ErrPlugin, string(r), "")
		case lua.LBool:
			if !bool(r) {
				return errors.New(errors.ErrPlugin, fmt.Sprintf("%s %s failed", ps.desc.Name, name), "")
			}
		}
		return nil
	}
}

func luaString(v lua.LValue) string {
	if s, ok := v.(lua.LString); ok {
		return string(s)
	}
	return ""
}
