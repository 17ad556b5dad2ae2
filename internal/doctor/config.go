package doctor

import (
	"fmt"

	"github.com/rileyhilliard/pj/internal/config"
	"github.com/rileyhilliard/pj/internal/util"
)

// ConfigSourceCheck reports whether one configuration source parsed.
type ConfigSourceCheck struct {
	Source config.Source
	Ledger *config.Ledger
}

func (c *ConfigSourceCheck) Name() string     { return "config_source" }
func (c *ConfigSourceCheck) Category() string { return CategoryConfig }

func (c *ConfigSourceCheck) Run() CheckResult {
	for _, le := range c.Ledger.LoadErrors() {
		if le.Source == c.Source {
			return CheckResult{
				Name:       c.Name(),
				Status:     StatusFail,
				Message:    fmt.Sprintf("%s at %s couldn't be read: %v", c.Source.Label, c.Source.Path, le.Cause),
				Suggestion: "Fix the YAML syntax in this file, or remove it",
			}
		}
	}

	for _, src := range c.Ledger.Sources() {
		if src == c.Source {
			return CheckResult{
				Name:    c.Name(),
				Status:  StatusPass,
				Message: fmt.Sprintf("%s: %s", c.Source.Label, c.Source.Path),
			}
		}
	}

	return CheckResult{
		Name:    c.Name(),
		Status:  StatusPass,
		Message: fmt.Sprintf("%s: not present", c.Source.Label),
	}
}

func (c *ConfigSourceCheck) Fix() error {
	return nil // Syntax errors require manual intervention
}

// MisnamedConfigCheck flags ".yaml" files sitting where pj expects ".yml".
type MisnamedConfigCheck struct {
	Paths config.Paths
}

func (c *MisnamedConfigCheck) Name() string     { return "config_extension" }
func (c *MisnamedConfigCheck) Category() string { return CategoryConfig }

func (c *MisnamedConfigCheck) Run() CheckResult {
	misnamed := config.FindMisnamed(c.Paths)
	if len(misnamed) == 0 {
		return CheckResult{
			Name:    c.Name(),
			Status:  StatusPass,
			Message: "No misnamed config files",
		}
	}
	return CheckResult{
		Name:       c.Name(),
		Status:     StatusWarn,
		Message:    fmt.Sprintf("Ignored config %s: %s", util.Pluralize(len(misnamed), "file", "files"), util.JoinOrNone(misnamed)),
		Suggestion: "pj only reads '.yml' files. Rename them if they are meant for pj",
	}
}

func (c *MisnamedConfigCheck) Fix() error {
	return nil
}

// RejectedValuesCheck reports values the validator pipeline replaced with
// fallbacks.
type RejectedValuesCheck struct {
	Ledger *config.Ledger
}

func (c *RejectedValuesCheck) Name() string     { return "config_values" }
func (c *RejectedValuesCheck) Category() string { return CategoryConfig }

func (c *RejectedValuesCheck) Run() CheckResult {
	rejected := c.Ledger.Rejected()
	if len(rejected) == 0 {
		return CheckResult{
			Name:    c.Name(),
			Status:  StatusPass,
			Message: "All configured values are valid",
		}
	}

	suggestion := ""
	for i, r := range rejected {
		if i > 0 {
			suggestion += "\n"
		}
		suggestion += fmt.Sprintf("%s in the %s: %s", r.Key, r.Source.Label, r.Reason)
	}
	return CheckResult{
		Name:       c.Name(),
		Status:     StatusWarn,
		Message:    fmt.Sprintf("%d configured %s replaced by defaults", len(rejected), util.Pluralize(len(rejected), "value", "values")),
		Suggestion: suggestion,
	}
}

func (c *RejectedValuesCheck) Fix() error {
	return nil
}

// NewConfigChecks returns one check per candidate source plus the extension
// and value checks.
func NewConfigChecks(ledger *config.Ledger, paths config.Paths, sources []config.Source) []Check {
	checks := make([]Check, 0, len(sources)+2)
	for _, src := range sources {
		checks = append(checks, &ConfigSourceCheck{Source: src, Ledger: ledger})
	}
	checks = append(checks,
		&MisnamedConfigCheck{Paths: paths},
		&RejectedValuesCheck{Ledger: ledger},
	)
	return checks
}
