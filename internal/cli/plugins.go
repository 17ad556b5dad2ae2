package cli

import (
	"github.com/spf13/cobra"

	"github.com/rileyhilliard/pj/internal/errors"
	"github.com/rileyhilliard/pj/internal/plugin"
)

// newPluginCommand turns a registered plugin into a command group. Disabled
// plugins get a stub that fails with the reason they were disabled.
func newPluginCommand(app *App, p *plugin.Plugin) *cobra.Command {
	d := p.Descriptor

	if !p.Enabled() {
		return &cobra.Command{
			Use:                d.Name,
			Short:              "(disabled) " + errors.Summary(p.Disabled),
			GroupID:            groupFor(d),
			DisableFlagParsing: true,
			RunE: func(cmd *cobra.Command, args []string) error {
				return p.Disabled
			},
		}
	}

	group := &cobra.Command{
		Use:     d.Name,
		Short:   p.Group.Short,
		Long:    p.Group.Long,
		GroupID: groupFor(d),
	}
	group.PersistentFlags().StringP(OverrideFlag, OverrideShorthand, "", "")
	_ = group.PersistentFlags().MarkHidden(OverrideFlag)
	group.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if group.PersistentFlags().Changed(OverrideFlag) {
			return misplacedOverride(d.Name)
		}
		return nil
	}

	for _, c := range p.Group.Commands {
		c := c
		group.AddCommand(&cobra.Command{
			Use:                c.Name,
			Short:              c.Short,
			DisableFlagParsing: true,
			RunE: func(cmd *cobra.Command, args []string) error {
				if hasOverrideArg(args) {
					return misplacedOverride(d.Name)
				}
				if helpRequested(args) {
					return cmd.Help()
				}
				return app.runPlugin(cmd.Context(), d, c, args, cmd.OutOrStdout())
			},
		})
	}
	return group
}

// helpRequested reports whether args ask for help before any "--".
func helpRequested(args []string) bool {
	for _, a := range args {
		switch a {
		case "--":
			return false
		case "-h", "--help":
			return true
		}
	}
	return false
}
