package lua

import (
	"bytes"
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rileyhilliard/pj/internal/isolation"
	"github.com/rileyhilliard/pj/internal/plugin"
)

type fakeHost struct {
	settings map[string]map[string]interface{}
	dir      string
	infos    []PluginInfo
	created  []string
}

func (h *fakeHost) PluginSettings(name string) map[string]interface{} { return h.settings[name] }
func (h *fakeHost) PluginDir() string                                 { return h.dir }
func (h *fakeHost) PluginInfos() []PluginInfo                         { return h.infos }
func (h *fakeHost) NewPlugin(name string) (string, error) {
	h.created = append(h.created, name)
	return filepath.Join(h.dir, name), nil
}

func writePlugin(t *testing.T, files map[string]string) *plugin.Descriptor {
	t.Helper()
	root := filepath.Join(t.TempDir(), "demo")
	for rel, content := range files {
		p := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0644))
	}
	return &plugin.Descriptor{
		Name:        "demo",
		Kind:        plugin.KindExternal,
		Root:        root,
		EntryScript: filepath.Join(root, plugin.EntryFile),
		ProjectDir:  root,
	}
}

func run(t *testing.T, g *plugin.CommandGroup, name string, args ...string) (string, error) {
	t.Helper()
	for _, c := range g.Commands {
		if c.Name == name {
			var buf bytes.Buffer
			err := c.Run(context.Background(), args, &buf)
			return buf.String(), err
		}
	}
	t.Fatalf("command %q not found", name)
	return "", nil
}

func TestProvider_LoadsCommandGroup(t *testing.T) {
	d := writePlugin(t, map[string]string{
		plugin.EntryFile: `
local ns = ...
app = {
  short = "demo plugin",
  long = "longer help",
  commands = {
    hello = { short = "Say hello", run = function(args) print("hello", args[1], ns) end },
    add = { short = "Add", run = function(args) print(tonumber(args[1]) + tonumber(args[2])) end },
  },
}
`,
	})
	p := NewProvider(nil, nil, nil)
	defer p.Close()

	g, err := p.Load(context.Background(), d)

	require.NoError(t, err)
	assert.Equal(t, "demo plugin", g.Short)
	assert.Equal(t, "longer help", g.Long)
	require.Len(t, g.Commands, 2)
	assert.Equal(t, "add", g.Commands[0].Name, "commands are sorted")

	out, err := run(t, g, "hello", "world")
	require.NoError(t, err)
	assert.Equal(t, "hello\tworld\tpj.plugins.demo\n", out)

	out, err = run(t, g, "add", "2", "3")
	require.NoError(t, err)
	assert.Equal(t, "5\n", out)
}

func TestProvider_ReturnedTableWorksToo(t *testing.T) {
	d := writePlugin(t, map[string]string{
		plugin.EntryFile: `return { commands = { go = { run = function() end } } }`,
	})
	p := NewProvider(nil, nil, nil)
	defer p.Close()

	g, err := p.Load(context.Background(), d)
	require.NoError(t, err)
	require.Len(t, g.Commands, 1)
	assert.Equal(t, "go", g.Commands[0].Name)
}

func TestProvider_NoCommandGroup(t *testing.T) {
	d := writePlugin(t, map[string]string{plugin.EntryFile: `local x = 1`})

	_, err := NewProvider(nil, nil, nil).Load(context.Background(), d)

	assert.True(t, stderrors.Is(err, plugin.ErrNoCommandGroup))
}

func TestProvider_LoadErrors(t *testing.T) {
	tests := []struct {
		name   string
		script string
		want   string
	}{
		{name: "syntax error", script: `app = {`, want: "cli.lua"},
		{name: "runtime error", script: `error("kaboom")`, want: "kaboom"},
		{name: "commands not a table", script: `app = { commands = 3 }`, want: "must be a table"},
		{name: "command without run", script: `app = { commands = { x = { short = "x" } } }`, want: "no run function"},
		{name: "os library is not available", script: `os.exit(1)`, want: "non-table"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := writePlugin(t, map[string]string{plugin.EntryFile: tt.script})
			_, err := NewProvider(nil, nil, nil).Load(context.Background(), d)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestProvider_RequireResolvesProjectModules(t *testing.T) {
	d := writePlugin(t, map[string]string{
		plugin.EntryFile: `
local helpers = require("helpers")
app = { commands = { greet = { run = function() print(helpers.greeting()) end } } }
`,
		"helpers.lua": `return { greeting = function() return "hi from helpers" end }`,
	})
	p := NewProvider(nil, nil, nil)
	defer p.Close()

	g, err := p.Load(context.Background(), d)
	require.NoError(t, err)

	out, err := run(t, g, "greet")
	require.NoError(t, err)
	assert.Equal(t, "hi from helpers\n", out)
}

func TestProvider_RequireFollowsSearchPathStack(t *testing.T) {
	deps := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(deps, "dep.lua"), []byte(`return "from dep"`), 0644))

	d := writePlugin(t, map[string]string{
		plugin.EntryFile: `app = { commands = { use = { run = function() print(require("dep")) end } } }`,
	})
	stack := isolation.NewSearchPathStack()
	p := NewProvider(stack, nil, nil)
	defer p.Close()

	g, err := p.Load(context.Background(), d)
	require.NoError(t, err)

	_, err = run(t, g, "use")
	require.Error(t, err, "dep is not reachable before its directory is pushed")

	stack.PushFront(deps)
	out, err := run(t, g, "use")
	require.NoError(t, err)
	assert.Equal(t, "from dep\n", out)
}

func TestProvider_RequireFindsRocksTreeModules(t *testing.T) {
	modules := filepath.Join(t.TempDir(), isolation.MarkerDir)
	tree := filepath.Join(modules, "share", "lua", "5.1")
	require.NoError(t, os.MkdirAll(filepath.Join(tree, "inspect"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(tree, "serpent.lua"), []byte(`return "serpent"`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(tree, "inspect", "init.lua"), []byte(`return "inspect"`), 0644))

	d := writePlugin(t, map[string]string{
		plugin.EntryFile: `app = { commands = { use = { run = function() print(require("serpent"), require("inspect")) end } } }`,
	})
	stack := isolation.NewSearchPathStack()
	stack.PushFront(modules)
	p := NewProvider(stack, nil, nil)
	defer p.Close()

	g, err := p.Load(context.Background(), d)
	require.NoError(t, err)
	out, err := run(t, g, "use")
	require.NoError(t, err)
	assert.Equal(t, "serpent\tinspect\n", out)
}

func TestProvider_CommandResults(t *testing.T) {
	d := writePlugin(t, map[string]string{
		plugin.EntryFile: `
app = { commands = {
  fail = { run = function() return "deploy target missing" end },
  no = { run = function() return false end },
  raise = { run = function() error("bad input") end },
  ok = { run = function() return true end },
} }
`,
	})
	p := NewProvider(nil, nil, nil)
	defer p.Close()
	g, err := p.Load(context.Background(), d)
	require.NoError(t, err)

	_, err = run(t, g, "fail")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "deploy target missing")

	_, err = run(t, g, "no")
	assert.Error(t, err)

	_, err = run(t, g, "raise")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad input")

	_, err = run(t, g, "ok")
	assert.NoError(t, err)
}

func TestProvider_CommandObservesCancellation(t *testing.T) {
	d := writePlugin(t, map[string]string{
		plugin.EntryFile: `app = { commands = { spin = { run = function() while true do end end } } }`,
	})
	p := NewProvider(nil, nil, nil)
	defer p.Close()
	g, err := p.Load(context.Background(), d)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	err = g.Commands[0].Run(ctx, nil, &bytes.Buffer{})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestProvider_HostModule(t *testing.T) {
	host := &fakeHost{
		settings: map[string]map[string]interface{}{
			"demo": {"region": "eu", "replicas": 3, "tags": []interface{}{"a", "b"}},
		},
		dir:   "/data/pj/plugins",
		infos: []PluginInfo{{Name: "demo", Kind: "third-party", Status: "enabled"}},
	}
	d := writePlugin(t, map[string]string{
		plugin.EntryFile: `
local pj = require("pj")
app = { commands = {
  cfg = { run = function()
    local c = pj.config()
    pj.print(pj.name, c.region, c.replicas, #c.tags)
  end },
  dir = { run = function() pj.print(pj.plugin_dir()) end },
  list = { run = function() for _, p in ipairs(pj.plugins()) do pj.print(p.name, p.status) end end },
  new = { run = function(args) pj.print(pj.new_plugin(args[1])) end },
} }
`,
	})
	p := NewProvider(nil, host, nil)
	defer p.Close()
	g, err := p.Load(context.Background(), d)
	require.NoError(t, err)

	out, err := run(t, g, "cfg")
	require.NoError(t, err)
	assert.Equal(t, "demo\teu\t3\t2\n", out)

	out, _ = run(t, g, "dir")
	assert.Equal(t, "/data/pj/plugins\n", out)

	out, _ = run(t, g, "list")
	assert.Equal(t, "demo\tenabled\n", out)

	out, _ = run(t, g, "new", "fresh")
	assert.Equal(t, filepath.Join("/data/pj/plugins", "fresh")+"\n", out)
	assert.Equal(t, []string{"fresh"}, host.created)
}

func TestProvider_LoadsFromFS(t *testing.T) {
	fsys := fstest.MapFS{
		"tools/cli.lua": {Data: []byte(`app = { commands = { ping = { run = function() print("pong") end } } }`)},
	}
	found, err := plugin.DiscoverBuiltin(fsys)
	require.NoError(t, err)
	require.Len(t, found, 1)

	p := NewProvider(nil, nil, nil)
	defer p.Close()
	g, err := p.Load(context.Background(), found[0])
	require.NoError(t, err)

	out, err := run(t, g, "ping")
	require.NoError(t, err)
	assert.Equal(t, "pong\n", out)
}

func TestBuiltinPluginManager(t *testing.T) {
	found, err := plugin.DiscoverBuiltin(plugin.BuiltinFS())
	require.NoError(t, err)

	var mgr *plugin.Descriptor
	for _, d := range found {
		if d.Name == "plugin" {
			mgr = d
		}
	}
	require.NotNil(t, mgr)

	host := &fakeHost{dir: "/data/plugins"}
	p := NewProvider(nil, host, nil)
	defer p.Close()
	g, err := p.Load(context.Background(), mgr)
	require.NoError(t, err)

	out, err := run(t, g, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No plugins registered.")

	out, err = run(t, g, "path")
	require.NoError(t, err)
	assert.Equal(t, "/data/plugins\n", out)

	_, err = run(t, g, "new")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "usage")
}

func TestRuntimeVersion(t *testing.T) {
	v := RuntimeVersion()
	assert.Equal(t, 5, v.Major)
	assert.Equal(t, 1, v.Minor)
}

func TestSearchPath(t *testing.T) {
	stack := isolation.NewSearchPathStack("/a")
	got := SearchPath(stack, "/proj")
	assert.Equal(t, filepath.Join("/a", "?.lua")+";"+filepath.Join("/a", "?", "init.lua")+";"+
		filepath.Join("/proj", "?.lua")+";"+filepath.Join("/proj", "?", "init.lua"), got)

	stack.PushFront("/proj")
	assert.Equal(t, 3, strings.Count(SearchPath(stack, "/proj"), ";"), "project dir is not repeated")

	deps := filepath.Join("/env", isolation.MarkerDir)
	tree := filepath.Join(deps, "share", "lua", "5.1")
	assert.Equal(t, tree, RocksTreeDir(deps))
	got = SearchPath(isolation.NewSearchPathStack(deps), "")
	assert.Equal(t, filepath.Join(deps, "?.lua")+";"+filepath.Join(deps, "?", "init.lua")+";"+
		filepath.Join(tree, "?.lua")+";"+filepath.Join(tree, "?", "init.lua"), got)
}
