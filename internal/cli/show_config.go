package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rileyhilliard/pj/internal/config"
	"github.com/rileyhilliard/pj/internal/ui"
)

// fieldNames are the display names of the keys pj validates, in display order.
var fieldNames = []struct {
	key  string
	name string
}{
	{config.KeyDevelopmentMode, "Development mode"},
	{config.KeyMessagesLimit, "Message limit"},
	{config.KeyPlugins, "Plugin settings"},
}

func newShowConfigCommand(app *App) *cobra.Command {
	var noKeys bool
	cmd := &cobra.Command{
		Use:     cmdShowConfig,
		Short:   "Show configuration values and where they came from",
		GroupID: groupCore,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprint(cmd.OutOrStdout(), ui.RenderConfigReport(app.ConfigReport(), noKeys))
			return nil
		},
	}
	cmd.Flags().BoolVar(&noKeys, "no-keys", false, "hide the raw configuration key names")
	return cmd
}

// ConfigReport collects the show-config view of the ledger.
func (a *App) ConfigReport() ui.ConfigReport {
	r := ui.ConfigReport{
		DataDir:   a.paths.DataDir,
		PluginDir: a.paths.PluginDir,
		Misnamed:  config.FindMisnamed(a.paths),
	}

	named := map[string]bool{}
	for _, f := range fieldNames {
		named[f.key] = true
		if v, ok := a.ledger.Lookup(f.key); ok {
			r.Rows = append(r.Rows, configRow(f.name, v))
			r.UsesDefault = r.UsesDefault || v.Source.IsDefault()
		}
	}
	for _, key := range a.ledger.Keys() {
		if named[key] {
			continue
		}
		if v, ok := a.ledger.Lookup(key); ok {
			r.Rows = append(r.Rows, configRow("", v))
			r.UsesDefault = r.UsesDefault || v.Source.IsDefault()
		}
	}

	for _, src := range a.ledger.Sources() {
		path := src.Path
		if path == "" {
			path = "(inline)"
		}
		r.Sources = append(r.Sources, ui.SourceRow{Label: src.Label, Path: path})
	}

	for _, rej := range a.ledger.Rejected() {
		r.Rejected = append(r.Rejected, ui.RejectedRow{
			Key:    rej.Key,
			Value:  formatValue(rej.Raw),
			Source: rej.Source.Label,
			Reason: rej.Reason,
		})
	}
	return r
}

func configRow(name string, v config.Value) ui.ConfigRow {
	return ui.ConfigRow{Name: name, Key: v.Key, Value: formatValue(v.Value), Source: v.Source.Label}
}

// formatValue renders a configuration value on one line.
func formatValue(v interface{}) string {
	switch v := v.(type) {
	case nil:
		return "null"
	case string:
		return fmt.Sprintf("%q", v)
	case map[string]interface{}, []interface{}:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(data)
	default:
		return fmt.Sprintf("%v", v)
	}
}
