package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rileyhilliard/pj/internal/errors"
	"github.com/rileyhilliard/pj/internal/plugin"
	"github.com/rileyhilliard/pj/internal/ui"
)

// Command group IDs shown in help output.
const (
	groupCore     = "core"
	groupBuiltin  = "builtin"
	groupExternal = "external"
)

// NewRootCommand builds the command tree for a started app.
func NewRootCommand(app *App) *cobra.Command {
	cobra.EnableCommandSorting = false

	root := &cobra.Command{
		Use:   "pj",
		Short: "A pluggable project CLI",
		Long: `pj runs project commands contributed by built-in and third-party plugins.

Configuration is read from /etc/pj/config.yml, the user config file and
./pj.yml, in that order. Later files override earlier ones, and
--override-config overrides them all for a single run.`,
		SilenceUsage:     true,
		SilenceErrors:    true,
		TraverseChildren: true,
	}
	root.SetIn(app.stdin)
	root.SetOut(app.stdout)
	root.SetErr(app.stderr)

	root.Flags().StringP(OverrideFlag, OverrideShorthand, "",
		"override configuration for this run with a YAML/JSON mapping or a .json/.yml/.yaml file")
	root.PersistentFlags().Bool(NoColorFlag, false, "disable colored output")

	root.AddGroup(
		&cobra.Group{ID: groupCore, Title: "Commands:"},
		&cobra.Group{ID: groupBuiltin, Title: "Built-in plugins:"},
		&cobra.Group{ID: groupExternal, Title: "Third-party plugins:"},
	)
	root.SetHelpCommandGroupID(groupCore)
	root.SetCompletionCommandGroupID(groupCore)

	root.AddCommand(
		newInitCommand(app),
		newShowConfigCommand(app),
		newVersionCommand(app),
		newDoctorCommand(app),
	)

	taken := map[string]bool{}
	for _, c := range root.Commands() {
		taken[c.Name()] = true
	}
	for _, p := range app.Plugins() {
		if taken[p.Descriptor.Name] {
			continue
		}
		taken[p.Descriptor.Name] = true
		root.AddCommand(newPluginCommand(app, p))
	}
	return root
}

// Run executes pj with args and returns the process exit code.
func Run(ctx context.Context, args []string, opts Options) int {
	app := NewApp(opts)
	defer app.Close()
	return app.Run(ctx, args)
}

// Run starts the app and executes the command named by args.
func (a *App) Run(ctx context.Context, args []string) int {
	err := a.execute(ctx, args)
	if err != nil {
		fmt.Fprint(a.stderr, ui.RenderError(err))
	}
	a.printMessages()
	return errors.ExitCode(err)
}

func (a *App) execute(ctx context.Context, args []string) error {
	inv, err := scanArgs(args)
	if err != nil {
		return err
	}
	if err := a.Startup(ctx, inv); err != nil {
		return err
	}

	root := NewRootCommand(a)
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

// Execute runs pj against the process arguments and exits.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := Run(ctx, os.Args[1:], Options{})
	stop()
	os.Exit(code)
}

func groupFor(d *plugin.Descriptor) string {
	if d.Kind == plugin.KindBuiltin {
		return groupBuiltin
	}
	return groupExternal
}
