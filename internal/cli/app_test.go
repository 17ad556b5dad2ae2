package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rileyhilliard/pj/internal/config"
	"github.com/rileyhilliard/pj/internal/isolation"
	"github.com/rileyhilliard/pj/internal/logger"
	"github.com/rileyhilliard/pj/internal/plugin"
	plugintesting "github.com/rileyhilliard/pj/internal/plugin/testing"
	"github.com/rileyhilliard/pj/internal/ui"
)

func TestMain(m *testing.M) {
	ui.SetColorEnabled(false)
	os.Exit(m.Run())
}

// harness runs pj against temp config locations, one built-in plugin named
// "tidy" and a fake plugin provider.
type harness struct {
	t        *testing.T
	paths    config.Paths
	env      config.Env
	builtins fstest.MapFS
	provider *plugintesting.FakeProvider
	stdout   bytes.Buffer
	stderr   bytes.Buffer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dir := t.TempDir()
	return &harness{
		t: t,
		paths: config.Paths{
			SystemConfig:  filepath.Join(dir, "etc", config.UserConfigFile),
			UserConfig:    filepath.Join(dir, "home", config.UserConfigFile),
			ProjectConfig: filepath.Join(dir, "project", config.ProjectConfigFile),
		}.WithDataDir(filepath.Join(dir, "data")),
		builtins: fstest.MapFS{
			"tidy/" + plugin.EntryFile: &fstest.MapFile{Data: []byte("-- tidy\n")},
		},
		provider: plugintesting.NewFakeProvider(),
	}
}

func (h *harness) options() Options {
	return Options{
		Paths:     &h.paths,
		Env:       &h.env,
		BuiltinFS: h.builtins,
		Provider:  h.provider,
		Prober:    &plugintesting.FakeProber{Output: "Lua 5.1.5"},
		Logger:    logger.Noop(),
		Stdin:     strings.NewReader(""),
		Stdout:    &h.stdout,
		Stderr:    &h.stderr,
	}
}

func (h *harness) run(args ...string) int {
	h.t.Helper()
	h.stdout.Reset()
	h.stderr.Reset()
	return Run(context.Background(), args, h.options())
}

func (h *harness) write(path, content string) {
	h.t.Helper()
	require.NoError(h.t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(h.t, os.WriteFile(path, []byte(content), 0o644))
}

func (h *harness) addExternal(name string) {
	h.write(filepath.Join(h.paths.PluginDir, name, plugin.EntryFile), "-- "+name+"\n")
}

func TestVersion(t *testing.T) {
	h := newHarness(t)

	require.Equal(t, 0, h.run("version", "--short"))
	assert.Equal(t, "dev\n", h.stdout.String())

	require.Equal(t, 0, h.run("version"))
	assert.Contains(t, h.stdout.String(), "pj dev")
	assert.Contains(t, h.stdout.String(), "plugin runtime: lua 5.1")
	assert.Empty(t, h.provider.Loaded, "version runs without plugins")
}

func TestFormatVersion(t *testing.T) {
	assert.Equal(t, "dev", formatVersion("dev"))
	assert.Equal(t, "v1.2.3", formatVersion("1.2.3"))
	assert.Equal(t, "v1.2.3", formatVersion("v1.2.3"))
	assert.Equal(t, "", formatVersion(""))
}

func TestShowConfig_Provenance(t *testing.T) {
	h := newHarness(t)
	h.write(h.paths.SystemConfig, "messages_limit: 7\n")
	h.write(h.paths.UserConfig, "development_mode: true\nmessages_limit: 5\n")

	require.Equal(t, 0, h.run("show-config"))
	out := h.stdout.String()

	assert.Contains(t, out, "- Development mode [development_mode]: true ← user config")
	assert.Contains(t, out, "- Message limit [messages_limit]: 5 ← user config")
	assert.Contains(t, out, "- Plugin settings [plugins]: {} ← default")
	assert.Contains(t, out, "- system config: "+h.paths.SystemConfig)
	assert.Contains(t, out, "- user config: "+h.paths.UserConfig)
	assert.NotContains(t, out, "- project config:")
	assert.Contains(t, out, "- default: ")
	assert.Empty(t, h.provider.Loaded, "show-config runs without plugins")
}

func TestShowConfig_NoKeys(t *testing.T) {
	h := newHarness(t)
	h.write(h.paths.ProjectConfig, "development_mode: false\n")

	require.Equal(t, 0, h.run("show-config", "--no-keys"))
	assert.Contains(t, h.stdout.String(), "- Development mode: false ← project config")
	assert.NotContains(t, h.stdout.String(), "[development_mode]")
}

func TestShowConfig_RejectedValues(t *testing.T) {
	h := newHarness(t)
	h.write(h.paths.UserConfig, "messages_limit: lots\n")

	require.Equal(t, 0, h.run("show-config"))
	out := h.stdout.String()
	assert.Contains(t, out, "Rejected values:")
	assert.Contains(t, out, `messages_limit: "lots" ← user config`)
	assert.Contains(t, out, "- Message limit [messages_limit]: "+formatValue(config.DefaultMessagesLimit)+" ← default")
}

func TestStartup_OverrideTakesPrecedence(t *testing.T) {
	h := newHarness(t)
	h.write(h.paths.UserConfig, "messages_limit: 5\nplugins:\n  tidy:\n    width: 80\n    tabs: false\n")

	app := NewApp(h.options())
	defer app.Close()
	require.NoError(t, app.Startup(context.Background(), invocation{
		Override:    `{"messages_limit": 3, "plugins": {"tidy": {"tabs": true}}}`,
		HasOverride: true,
		Command:     "tidy",
	}))

	rows := map[string]ui.ConfigRow{}
	report := app.ConfigReport()
	for _, r := range report.Rows {
		rows[r.Key] = r
	}
	assert.Equal(t, "3", rows[config.KeyMessagesLimit].Value)
	assert.Equal(t, config.LabelOverride, rows[config.KeyMessagesLimit].Source)
	assert.Contains(t, report.Sources, ui.SourceRow{Label: config.LabelOverride, Path: "(inline)"})

	settings := app.PluginSettings("tidy")
	assert.Equal(t, true, settings["tabs"])
	assert.Equal(t, 80, settings["width"], "unrelated plugin settings survive the override")
}

func TestOverride_RejectedBySensitiveCommands(t *testing.T) {
	for _, cmd := range []string{cmdInit, cmdShowConfig, cmdVersion} {
		t.Run(cmd, func(t *testing.T) {
			h := newHarness(t)
			assert.Equal(t, 1, h.run("-O", `{"development_mode": true}`, cmd))
			assert.Contains(t, h.stderr.String(), "does not support the override argument --override-config")
			assert.Empty(t, h.stdout.String())
		})
	}
}

func TestOverride_AfterPluginName(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"after subcommand", []string{"tidy", "run", "-O", "{}"}},
		{"long form after subcommand", []string{"tidy", "run", "--override-config={}"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			assert.Equal(t, 1, h.run(tt.args...))
			assert.Contains(t, h.stderr.String(), "--override-config must come before the plugin name 'tidy'")
			assert.NotContains(t, h.stdout.String(), "tidy ran")
		})
	}
}

func TestOverride_Invalid(t *testing.T) {
	tests := []struct {
		name string
		arg  string
		want string
	}{
		{"empty", "--override-config=", "--override-config needs a value"},
		{"not a mapping", "--override-config=[1, 2]", "--override-config is not a valid mapping"},
		{"missing file", "--override-config=nope.yml", "Couldn't read override file nope.yml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			assert.Equal(t, 1, h.run(tt.arg, "tidy", "run"))
			assert.Contains(t, h.stderr.String(), tt.want)
		})
	}
}

func TestOverride_FromFile(t *testing.T) {
	h := newHarness(t)
	override := filepath.Join(t.TempDir(), "override.yml")
	h.write(override, "messages_limit: 0\n")

	app := NewApp(h.options())
	defer app.Close()
	require.NoError(t, app.Startup(context.Background(), invocation{
		Override: override, HasOverride: true, Command: "tidy",
	}))
	assert.Contains(t, app.ConfigReport().Sources, ui.SourceRow{Label: config.LabelOverride, Path: override})
}

func TestPluginCommand_Runs(t *testing.T) {
	h := newHarness(t)

	require.Equal(t, 0, h.run("tidy", "run", "a", "--b"))
	assert.Equal(t, "tidy ran a --b\n", h.stdout.String())
	assert.Equal(t, []string{"tidy"}, h.provider.Loaded)
}

func TestPluginCommand_Help(t *testing.T) {
	h := newHarness(t)

	require.Equal(t, 0, h.run("tidy", "run", "--help"))
	assert.Contains(t, h.stdout.String(), "Run tidy")
	assert.NotContains(t, h.stdout.String(), "tidy ran")
}

func TestPluginCommand_ExternalRuns(t *testing.T) {
	h := newHarness(t)
	h.addExternal("deploy")

	require.Equal(t, 0, h.run("deploy", "run"))
	assert.Equal(t, "deploy ran \n", h.stdout.String())
}

func TestPluginCommand_IsolatedRunReleasesSearchPath(t *testing.T) {
	tests := []struct {
		name     string
		command  string
		wantCode int
	}{
		{name: "success", command: "ok", wantCode: 0},
		{name: "error", command: "fail", wantCode: 1},
		{name: "cancelled context", command: "wait", wantCode: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.addExternal("iso")
			dir := filepath.Join(h.paths.PluginDir, "iso")
			h.write(filepath.Join(dir, plugin.MetadataFile), "runtime_dir: env\n")
			require.NoError(t, os.MkdirAll(filepath.Join(dir, "env", isolation.MarkerDir), 0o755))

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			app := NewApp(h.options())
			defer app.Close()

			depth := -1
			h.provider.Groups["iso"] = &plugin.CommandGroup{
				Short: "isolated plugin",
				Commands: []plugin.Command{
					{Name: "ok", Run: func(context.Context, []string, io.Writer) error {
						depth = app.switcher.Stack().Len()
						return nil
					}},
					{Name: "fail", Run: func(context.Context, []string, io.Writer) error {
						depth = app.switcher.Stack().Len()
						return fmt.Errorf("deploy target unreachable")
					}},
					{Name: "wait", Run: func(ctx context.Context, _ []string, _ io.Writer) error {
						depth = app.switcher.Stack().Len()
						cancel()
						<-ctx.Done()
						return ctx.Err()
					}},
				},
			}

			code := app.Run(ctx, []string{"iso", tt.command})

			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, 2, depth, "command ran inside the runtime context")
			assert.Equal(t, 0, app.switcher.Stack().Len())
		})
	}
}

func TestDisabledPlugin_ExitsWithReason(t *testing.T) {
	h := newHarness(t)
	h.addExternal("Tidy")

	assert.Equal(t, 1, h.run("Tidy"))
	assert.Contains(t, h.stderr.String(), "conflicts with the built-in plugin 'tidy'")

	require.Equal(t, 0, h.run("tidy", "run"))
	assert.Equal(t, "tidy ran \n", h.stdout.String(), "the built-in keeps working")
}

func TestReservedPluginName_KeepsCoreCommand(t *testing.T) {
	h := newHarness(t)
	h.addExternal("doctor")

	app := NewApp(h.options())
	defer app.Close()
	require.NoError(t, app.Startup(context.Background(), invocation{Command: "tidy"}))

	var disabled []string
	for _, p := range app.Plugins() {
		if !p.Enabled() {
			disabled = append(disabled, p.Descriptor.Name)
		}
	}
	assert.Equal(t, []string{"doctor"}, disabled)

	count := 0
	for _, c := range NewRootCommand(app).Commands() {
		if c.Name() == cmdDoctor {
			count++
			assert.Equal(t, groupCore, c.GroupID)
		}
	}
	assert.Equal(t, 1, count)
}

func TestRootHelp_GroupsPlugins(t *testing.T) {
	h := newHarness(t)
	h.addExternal("deploy")

	require.Equal(t, 0, h.run("--help"))
	out := h.stdout.String()
	assert.Contains(t, out, "Commands:")
	assert.Contains(t, out, "Built-in plugins:")
	assert.Contains(t, out, "Third-party plugins:")
	assert.Less(t, strings.Index(out, "Built-in plugins:"), strings.Index(out, "tidy"))
	assert.Less(t, strings.Index(out, "Third-party plugins:"), strings.Index(out, "deploy"))
}

func TestInit(t *testing.T) {
	h := newHarness(t)

	require.Equal(t, 0, h.run("init", "--development-mode=true"))
	assert.Contains(t, h.stdout.String(), "✓ Configuration file created at "+h.paths.UserConfig)
	data, err := os.ReadFile(h.paths.UserConfig)
	require.NoError(t, err)
	assert.Equal(t, "development_mode: true\n", string(data))

	assert.Equal(t, 1, h.run("init"))
	assert.Contains(t, h.stderr.String(), "already exists and it's not empty")
}

func TestInit_NonInteractiveDefaultsOff(t *testing.T) {
	h := newHarness(t)
	h.write(h.paths.UserConfig, "")

	require.Equal(t, 0, h.run("init"))
	data, err := os.ReadFile(h.paths.UserConfig)
	require.NoError(t, err)
	assert.Equal(t, "development_mode: false\n", string(data))
}

func TestDoctor(t *testing.T) {
	h := newHarness(t)
	h.write(h.paths.UserConfig, "development_mode: false\n")

	require.Equal(t, 0, h.run("doctor"))
	assert.Contains(t, h.stdout.String(), "user config: "+h.paths.UserConfig)
	assert.Contains(t, h.stdout.String(), "tidy (built-in)")

	h.write(h.paths.ProjectConfig, "development_mode: [\n")
	assert.Equal(t, 1, h.run("doctor"))
	assert.Contains(t, h.stdout.String(), "couldn't be read")
}

func TestDoctor_JSON(t *testing.T) {
	h := newHarness(t)

	require.Equal(t, 0, h.run("doctor", "--json"))
	var out DoctorOutput
	require.NoError(t, json.Unmarshal(h.stdout.Bytes(), &out))
	assert.Zero(t, out.Summary.Fail)
	assert.Equal(t, 1, out.Summary.Fixable, "missing plugin directory can be created")
	require.NotEmpty(t, out.Categories)
	assert.Equal(t, "CONFIG", out.Categories[0].Name)
}

func TestDoctor_FixCreatesPluginDir(t *testing.T) {
	h := newHarness(t)

	require.Equal(t, 0, h.run("doctor", "--fix"))
	info, err := os.Stat(h.paths.PluginDir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestBrokenConfig_DebugPolicy(t *testing.T) {
	h := newHarness(t)
	h.write(h.paths.UserConfig, "development_mode: [\n")

	require.Equal(t, 0, h.run("tidy", "run"), "broken sources are ignored by default")
	assert.Contains(t, h.stderr.String(), "Couldn't parse the user config at "+h.paths.UserConfig)

	h.env.Debug = true
	assert.Equal(t, 1, h.run("tidy", "run"))
	assert.NotContains(t, h.stdout.String(), "tidy ran")

	require.Equal(t, 0, h.run("show-config"), "show-config tolerates broken sources")
}

func TestMessagesPanel(t *testing.T) {
	h := newHarness(t)
	h.write(strings.TrimSuffix(h.paths.UserConfig, ".yml")+".yaml", "development_mode: true\n")

	require.Equal(t, 0, h.run("version", "--short"))
	errOut := h.stderr.String()
	assert.Contains(t, errOut, "ⓘ Message")
	assert.Contains(t, errOut, "1. INFO File '"+strings.TrimSuffix(h.paths.UserConfig, ".yml")+".yaml' was found")
	assert.Contains(t, errOut, "Set development_mode: true in "+h.paths.UserConfig)
}

func TestMessagesPanel_RespectsLimit(t *testing.T) {
	h := newHarness(t)
	h.write(h.paths.UserConfig, "messages_limit: 1\nplugins:\n  alpha: {}\n  beta: {}\n")

	require.Equal(t, 0, h.run("tidy", "run"))
	assert.Contains(t, h.stderr.String(), "1 more message not shown")
}

func TestUnknownPluginSection_SuggestsName(t *testing.T) {
	h := newHarness(t)
	h.write(h.paths.ProjectConfig, "plugins:\n  tdy:\n    width: 80\n")

	require.Equal(t, 0, h.run("tidy", "run"))
	assert.Contains(t, h.stderr.String(), `configures "tdy", but no plugin has that name. Did you mean tidy?`)
}

func TestUnknownCoreFlag(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, 1, h.run("version", "--bogus"))
	assert.Contains(t, h.stderr.String(), "unknown flag: --bogus")
}
