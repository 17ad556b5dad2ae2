package cli

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sort"
	"strings"

	"github.com/rileyhilliard/pj/internal/config"
	"github.com/rileyhilliard/pj/internal/errors"
	"github.com/rileyhilliard/pj/internal/isolation"
	"github.com/rileyhilliard/pj/internal/logger"
	"github.com/rileyhilliard/pj/internal/messages"
	"github.com/rileyhilliard/pj/internal/plugin"
	"github.com/rileyhilliard/pj/internal/plugin/lua"
	"github.com/rileyhilliard/pj/internal/ui"
	"github.com/rileyhilliard/pj/internal/util"
)

// Options configure an App. Zero values select the real environment.
type Options struct {
	// Paths replaces the default configuration and data locations. When set,
	// its DataDir is used as is.
	Paths *config.Paths
	// Env replaces reading the process environment.
	Env *config.Env
	// BuiltinFS replaces the embedded built-in plugins.
	BuiltinFS fs.FS
	// Provider replaces the Lua plugin provider.
	Provider plugin.Provider
	// Prober replaces running isolated runtimes to query their version.
	Prober plugin.VersionProber
	Logger logger.Logger

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// App holds the state of one pj run.
type App struct {
	opts Options
	log  logger.Logger

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	env      config.Env
	paths    config.Paths
	sources  []config.Source
	ledger   *config.Ledger
	pipeline *config.Pipeline
	msgs     *messages.Buffer

	stack    *isolation.SearchPathStack
	switcher *isolation.Switcher
	registry *plugin.Registry
	closer   func()
	problems []error

	debugSwitched bool
	envWarned     bool
}

// NewApp creates an App. Nothing is loaded until Startup.
func NewApp(opts Options) *App {
	a := &App{
		opts:   opts,
		log:    opts.Logger,
		stdin:  opts.Stdin,
		stdout: opts.Stdout,
		stderr: opts.Stderr,
		msgs:   messages.New(),
	}
	if a.log == nil {
		a.log = logger.Default()
	}
	if a.stdin == nil {
		a.stdin = os.Stdin
	}
	if a.stdout == nil {
		a.stdout = os.Stdout
	}
	if a.stderr == nil {
		a.stderr = os.Stderr
	}
	a.ledger = config.NewLedger(a.log)
	a.pipeline = config.NewPipeline(a.ledger, a.msgs, a.log, config.DefaultValidators()...)
	a.stack = isolation.NewSearchPathStack()
	a.switcher = isolation.NewSwitcher(a.stack, a.log)
	return a
}

// Close releases plugin interpreter states.
func (a *App) Close() {
	if a.closer != nil {
		a.closer()
		a.closer = nil
	}
}

// Startup prepares configuration and plugins for inv. Only fatal and usage
// errors are returned; everything else becomes a deferred message.
func (a *App) Startup(ctx context.Context, inv invocation) error {
	a.readEnv()
	a.switchDebug(a.env.Debug)
	if inv.NoColor || a.env.NoColor != "" {
		ui.SetColorEnabled(false)
	}

	if err := a.resolvePaths(); err != nil {
		return err
	}

	a.sources = config.DefaultSources(a.paths)
	a.ledger.LoadAll(a.sources)
	for _, m := range config.FindMisnamed(a.paths) {
		a.msgs.Infof("File '%s' was found, but pj only reads '.yml' configuration files. "+
			"Rename it if it is meant for pj.", m)
	}

	if inv.HasOverride {
		if sensitiveCommands[inv.Command] {
			return unsupportedOverride(inv.Command)
		}
		values, path, err := config.ParseOverride(inv.Override)
		if err != nil {
			return err
		}
		a.ApplyOverride(values, path)
	}

	if err := a.Validate(sensitiveCommands[inv.Command] || inv.Command == cmdDoctor); err != nil {
		return err
	}

	if sensitiveCommands[inv.Command] {
		return nil
	}
	return a.loadPlugins(ctx)
}

func (a *App) readEnv() {
	if a.opts.Env != nil {
		a.env = *a.opts.Env
		return
	}
	env, err := config.ReadEnv()
	if err != nil && !a.envWarned {
		a.envWarned = true
		a.msgs.Warnf("Couldn't read pj's environment variables, so they were ignored: %v", err)
	}
	a.env = env
}

func (a *App) resolvePaths() error {
	if a.opts.Paths != nil {
		a.paths = *a.opts.Paths
		if a.paths.PluginDir == "" && a.paths.DataDir != "" {
			a.paths = a.paths.WithDataDir(a.paths.DataDir)
		}
		return nil
	}

	paths, err := config.DefaultPaths()
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrStorage,
			"Couldn't determine pj's configuration locations", "Make sure HOME is set")
	}
	dir, err := config.ResolveDataDir(config.DataDirCandidates(a.env.DataHome))
	if err != nil {
		return err
	}
	a.paths = paths.WithDataDir(dir)
	a.log.Debug("data directory: %s", dir)
	return nil
}

// ApplyOverride layers values above every other source and re-arms the
// validators of the keys it touches. PJ_DEBUG is read again afterwards.
func (a *App) ApplyOverride(values map[string]interface{}, path string) config.Source {
	src := a.ledger.AddOverride(values, path)

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	a.pipeline.Invalidate(keys...)
	a.readEnv()

	a.log.Debug("applied %s with keys %v", src.Label, keys)
	return src
}

// Validate runs the field validators. Unparsable sources abort validation
// when PJ_DEBUG is set, unless tolerant is true.
func (a *App) Validate(tolerant bool) error {
	if a.env.Debug && !tolerant {
		a.pipeline.SetPolicy(config.PolicyRaise)
	} else {
		a.pipeline.SetPolicy(config.PolicyIgnore)
	}

	if _, err := a.pipeline.Run(); err != nil {
		return err
	}
	for _, m := range a.msgs.DrainAggressive() {
		fmt.Fprint(a.stderr, ui.RenderMessageLine(m))
	}
	a.switchDebug(config.DevelopmentMode(a.ledger) || a.env.Debug)
	return nil
}

// switchDebug turns debug output on or off. Changes after the first switch
// are logged.
func (a *App) switchDebug(on bool) {
	changed := logger.SetDebug(on)
	if changed && a.debugSwitched {
		state := "off"
		if on {
			state = "on"
		}
		a.log.Info("Development mode is now %s", state)
	}
	a.debugSwitched = true
}

func (a *App) loadPlugins(ctx context.Context) error {
	provider := a.opts.Provider
	if provider == nil {
		lp := lua.NewProvider(a.stack, a, a.log)
		a.closer = lp.Close
		provider = lp
	}

	checker := plugin.NewChecker(lua.RuntimeVersion())
	if a.opts.Prober != nil {
		checker.Prober = a.opts.Prober
	}

	a.registry = plugin.NewRegistry(provider, a.msgs,
		plugin.WithChecker(checker),
		plugin.WithSwitcher(a.switcher),
		plugin.WithReserved(reservedNames...),
		plugin.WithLogger(a.log),
	)

	fsys := a.opts.BuiltinFS
	if fsys == nil {
		fsys = plugin.BuiltinFS()
	}
	builtins, err := plugin.DiscoverBuiltin(fsys)
	if err != nil {
		a.msgs.Errorf("Couldn't list the built-in plugins: %v", err)
	}
	if err := a.registry.RegisterAll(ctx, builtins); err != nil {
		return err
	}

	external, problems, err := plugin.DiscoverExternal(a.paths.PluginDir, a.log)
	if err != nil {
		a.msgs.Warnf("Couldn't read the third-party plugin directory %s: %v", a.paths.PluginDir, err)
	}
	for _, p := range problems {
		a.msgs.Warnf("A third-party plugin was ignored: %s", errors.Summary(p))
	}
	a.problems = problems
	if err := a.registry.RegisterAll(ctx, external); err != nil {
		return err
	}
	a.checkPluginSections()
	return nil
}

// checkPluginSections notes settings sections that name no registered plugin.
func (a *App) checkPluginSections() {
	var names []string
	for _, p := range a.registry.Plugins() {
		names = append(names, p.Descriptor.Name)
	}
	known := make(map[string]bool, len(names))
	for _, n := range names {
		known[strings.ToLower(n)] = true
	}
	for _, section := range config.PluginSections(a.ledger) {
		if known[strings.ToLower(section)] {
			continue
		}
		hint := ""
		if similar := util.SuggestSimilar(section, names, 3); len(similar) > 0 {
			hint = fmt.Sprintf(" Did you mean %s?", util.JoinOrNone(similar))
		}
		a.msgs.Infof("The plugins section configures %q, but no plugin has that name.%s", section, hint)
	}
}

// Plugins returns the registered plugins, or nil before plugins are loaded.
func (a *App) Plugins() []*plugin.Plugin {
	if a.registry == nil {
		return nil
	}
	return a.registry.Plugins()
}

// runPlugin runs one plugin command. Third-party plugins with an isolated
// runtime run inside their search-path context.
func (a *App) runPlugin(ctx context.Context, d *plugin.Descriptor, cmd plugin.Command, args []string, out io.Writer) (err error) {
	if d.Kind == plugin.KindExternal && d.Isolated() {
		guard, gerr := a.switcher.Enter(isolation.Target{
			Name:       d.Name,
			ProjectDir: d.ProjectDir,
			RuntimeDir: d.RuntimeDir,
		})
		if gerr != nil {
			return gerr
		}
		defer func() {
			if rerr := guard.Release(); rerr != nil {
				err = rerr
			}
		}()
	}
	return cmd.Run(ctx, args, out)
}

// printMessages flushes the deferred message panel to stderr.
func (a *App) printMessages() {
	msgs := a.msgs.Drain()
	if len(msgs) == 0 {
		return
	}
	limit, ok := config.MessagesLimit(a.ledger)
	if !ok {
		limit = -1
	}
	configFile := a.paths.UserConfig
	if configFile == "" {
		configFile = config.UserConfigFile
	}
	fmt.Fprint(a.stderr, "\n"+ui.RenderMessages(msgs, limit, configFile))
}

// PluginSettings implements lua.Host.
func (a *App) PluginSettings(name string) map[string]interface{} {
	return config.PluginSettings(a.ledger, name)
}

// PluginDir implements lua.Host.
func (a *App) PluginDir() string {
	return a.paths.PluginDir
}

// PluginInfos implements lua.Host.
func (a *App) PluginInfos() []lua.PluginInfo {
	plugins := a.Plugins()
	out := make([]lua.PluginInfo, 0, len(plugins))
	for _, p := range plugins {
		d := p.Descriptor
		info := lua.PluginInfo{Name: d.Name, Kind: d.Kind.String(), Status: "enabled", Location: d.Root}
		if d.Kind == plugin.KindBuiltin {
			info.Location = "built-in"
		}
		if !p.Enabled() {
			info.Status = "disabled: " + errors.Summary(p.Disabled)
		}
		out = append(out, info)
	}
	return out
}

// NewPlugin implements lua.Host.
func (a *App) NewPlugin(name string) (string, error) {
	return plugin.Scaffold(a.paths.PluginDir, name)
}
