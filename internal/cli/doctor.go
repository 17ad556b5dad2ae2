package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rileyhilliard/pj/internal/doctor"
	"github.com/rileyhilliard/pj/internal/errors"
	"github.com/rileyhilliard/pj/internal/ui"
)

// DoctorOutput represents the JSON output for doctor command.
type DoctorOutput struct {
	Categories []CategoryOutput `json:"categories"`
	Summary    SummaryOutput    `json:"summary"`
}

// CategoryOutput represents a category of check results.
type CategoryOutput struct {
	Name    string               `json:"name"`
	Results []doctor.CheckResult `json:"results"`
}

// SummaryOutput summarizes the check results.
type SummaryOutput struct {
	Pass     int  `json:"pass"`
	Warn     int  `json:"warn"`
	Fail     int  `json:"fail"`
	Fixable  int  `json:"fixable"`
	AllClear bool `json:"all_clear"`
}

func newDoctorCommand(app *App) *cobra.Command {
	var asJSON, fix bool
	cmd := &cobra.Command{
		Use:     cmdDoctor,
		Short:   "Diagnose configuration, storage and plugin issues",
		GroupID: groupCore,
		Long: `Run diagnostic checks to identify common issues.

Checks:
  - Each configuration source parses
  - Configured values are valid
  - The data and plugin directories are usable
  - Which plugins are disabled, and why

Examples:
  pj doctor
  pj doctor --fix`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			checks := app.doctorChecks()
			results := doctor.RunAll(checks)
			if fix {
				results = doctor.FixAll(checks, results)
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if err := enc.Encode(doctorOutput(checks, results)); err != nil {
					return err
				}
			} else {
				fmt.Fprint(out, ui.RenderDoctorReport(doctorRows(checks, results)))
				if n := doctor.FixableCount(results); n > 0 && !fix {
					fmt.Fprintln(out, "\n  Run with --fix to attempt automatic fixes where possible.")
				}
			}

			if doctor.HasFailures(results) {
				return errors.New(errors.ErrConfig, doctor.Summary(results), "See the report above")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "output in JSON format")
	cmd.Flags().BoolVar(&fix, "fix", false, "attempt automatic fixes where possible")
	return cmd
}

func (a *App) doctorChecks() []doctor.Check {
	var checks []doctor.Check
	checks = append(checks, doctor.NewConfigChecks(a.ledger, a.paths, a.sources)...)
	checks = append(checks, doctor.NewStorageChecks(a.paths)...)
	checks = append(checks, doctor.NewPluginChecks(a.Plugins(), a.problems)...)
	return checks
}

func doctorRows(checks []doctor.Check, results []doctor.CheckResult) []ui.DoctorCheckRow {
	rows := make([]ui.DoctorCheckRow, len(results))
	for i, r := range results {
		rows[i] = ui.DoctorCheckRow{
			Status:     r.Status.String(),
			Category:   checks[i].Category(),
			Message:    r.Message,
			Suggestion: r.Suggestion,
		}
	}
	return rows
}

func doctorOutput(checks []doctor.Check, results []doctor.CheckResult) DoctorOutput {
	grouped := make(map[string][]doctor.CheckResult)
	var order []string
	for i, check := range checks {
		cat := check.Category()
		if _, exists := grouped[cat]; !exists {
			order = append(order, cat)
		}
		grouped[cat] = append(grouped[cat], results[i])
	}

	output := DoctorOutput{Categories: make([]CategoryOutput, 0, len(order))}
	for _, cat := range order {
		output.Categories = append(output.Categories, CategoryOutput{Name: cat, Results: grouped[cat]})
	}

	counts := doctor.CountByStatus(results)
	output.Summary = SummaryOutput{
		Pass:     counts[doctor.StatusPass],
		Warn:     counts[doctor.StatusWarn],
		Fail:     counts[doctor.StatusFail],
		Fixable:  doctor.FixableCount(results),
		AllClear: !doctor.HasIssues(results),
	}
	return output
}
