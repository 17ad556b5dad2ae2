package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/rileyhilliard/pj/internal/config"
	"github.com/rileyhilliard/pj/internal/errors"
	"github.com/rileyhilliard/pj/internal/ui"
)

// InitOptions holds options for the init command.
type InitOptions struct {
	DevelopmentMode    bool
	HasDevelopmentMode bool // --development-mode was passed
	NonInteractive     bool // Skip prompts, use defaults
}

func newInitCommand(app *App) *cobra.Command {
	var opts InitOptions
	cmd := &cobra.Command{
		Use:     cmdInit,
		Short:   "Create the pj user configuration file",
		GroupID: groupCore,
		Long: `Create the user configuration file with sensible defaults.

pj reads several configuration files in priority order. init only creates
the one in your user configuration directory, and refuses to touch a file
that already has content.

Examples:
  pj init
  pj init --development-mode=true`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.HasDevelopmentMode = cmd.Flags().Changed("development-mode")
			opts.NonInteractive = !isTerminal(app.stdin)
			return app.Init(opts)
		},
	}
	cmd.Flags().BoolVar(&opts.DevelopmentMode, "development-mode", false,
		"enable debug output and strict handling of broken config files")
	return cmd
}

// Init writes a fresh user configuration file.
func (a *App) Init(opts InitOptions) error {
	path := a.paths.UserConfig
	if path == "" {
		return errors.New(errors.ErrConfig,
			"Couldn't determine where the user configuration file belongs",
			"Make sure HOME or XDG_CONFIG_HOME is set")
	}

	if data, err := os.ReadFile(path); err == nil && len(data) > 0 {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("A configuration file '%s' already exists and it's not empty", path),
			"Edit it directly, or remove it and run 'pj init' again")
	} else if err != nil && !os.IsNotExist(err) {
		return errors.WrapWithCode(err, errors.ErrConfig,
			fmt.Sprintf("Couldn't read %s", path),
			"Make sure you have read and write access to it")
	}

	dev := opts.DevelopmentMode
	if !opts.HasDevelopmentMode && !opts.NonInteractive {
		form := huh.NewForm(
			huh.NewGroup(
				huh.NewConfirm().
					Title("Enable development mode?").
					Description("Shows debug output and stops on broken configuration files.").
					Value(&dev),
			),
		)
		if err := form.Run(); err != nil {
			return errors.WrapWithCode(err, errors.ErrConfig,
				"Failed to get user input",
				"Pass --development-mode=true or --development-mode=false instead")
		}
	}

	data, err := yaml.Marshal(map[string]interface{}{config.KeyDevelopmentMode: dev})
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig, "Failed to encode the configuration", "")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			fmt.Sprintf("Couldn't create %s", filepath.Dir(path)),
			"Make sure you have write access to the parent directory")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			fmt.Sprintf("Couldn't write %s", path),
			"Make sure you have write access to it")
	}

	successStyle := lipgloss.NewStyle().Foreground(ui.ColorSuccess)
	fmt.Fprintln(a.stdout, successStyle.Render(fmt.Sprintf(
		"%s Configuration file created at %s", ui.SymbolSuccess, path)))
	fmt.Fprintln(a.stdout, "Run 'pj show-config' to see the configuration details.")
	return nil
}

func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
