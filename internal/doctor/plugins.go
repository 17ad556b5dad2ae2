package doctor

import (
	"fmt"

	"github.com/rileyhilliard/pj/internal/errors"
	"github.com/rileyhilliard/pj/internal/plugin"
)

// PluginStatusCheck reports on one registered plugin.
type PluginStatusCheck struct {
	Plugin *plugin.Plugin
}

func (c *PluginStatusCheck) Name() string     { return "plugin_status" }
func (c *PluginStatusCheck) Category() string { return CategoryPlugins }

func (c *PluginStatusCheck) Run() CheckResult {
	d := c.Plugin.Descriptor
	if c.Plugin.Enabled() {
		return CheckResult{
			Name:    c.Name(),
			Status:  StatusPass,
			Message: fmt.Sprintf("%s (%s)", d.Name, d.Kind),
		}
	}
	return CheckResult{
		Name:       c.Name(),
		Status:     StatusWarn,
		Message:    fmt.Sprintf("%s (%s) is disabled", d.Name, d.Kind),
		Suggestion: errors.Summary(c.Plugin.Disabled),
	}
}

func (c *PluginStatusCheck) Fix() error {
	return nil
}

// DiscoveryProblemCheck reports a plugin directory that couldn't be read as a
// plugin at all.
type DiscoveryProblemCheck struct {
	Problem error
}

func (c *DiscoveryProblemCheck) Name() string     { return "plugin_discovery" }
func (c *DiscoveryProblemCheck) Category() string { return CategoryPlugins }

func (c *DiscoveryProblemCheck) Run() CheckResult {
	return CheckResult{
		Name:       c.Name(),
		Status:     StatusFail,
		Message:    "A plugin directory was skipped",
		Suggestion: errors.Summary(c.Problem),
	}
}

func (c *DiscoveryProblemCheck) Fix() error {
	return nil
}

// NewPluginChecks returns one check per registered plugin and per discovery
// problem.
func NewPluginChecks(plugins []*plugin.Plugin, problems []error) []Check {
	checks := make([]Check, 0, len(plugins)+len(problems))
	for _, p := range plugins {
		checks = append(checks, &PluginStatusCheck{Plugin: p})
	}
	for _, err := range problems {
		checks = append(checks, &DiscoveryProblemCheck{Problem: err})
	}
	return checks
}

