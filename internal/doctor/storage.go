package doctor

import (
	"fmt"
	"os"

	"github.com/rileyhilliard/pj/internal/config"
)

// DataDirCheck verifies the data directory is still writable.
type DataDirCheck struct {
	Dir string
}

func (c *DataDirCheck) Name() string     { return "data_dir" }
func (c *DataDirCheck) Category() string { return CategoryStorage }

func (c *DataDirCheck) Run() CheckResult {
	if _, err := config.ResolveDataDir([]string{c.Dir}); err != nil {
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusFail,
			Message:    fmt.Sprintf("Data directory %s is not writable", c.Dir),
			Suggestion: "Check the directory permissions, or set XDG_DATA_HOME to a writable location",
		}
	}
	return CheckResult{
		Name:    c.Name(),
		Status:  StatusPass,
		Message: fmt.Sprintf("Data directory: %s", c.Dir),
	}
}

func (c *DataDirCheck) Fix() error {
	return nil
}

// PluginDirCheck verifies the third-party plugin directory exists.
type PluginDirCheck struct {
	Dir string
}

func (c *PluginDirCheck) Name() string     { return "plugin_dir" }
func (c *PluginDirCheck) Category() string { return CategoryStorage }

func (c *PluginDirCheck) Run() CheckResult {
	info, err := os.Stat(c.Dir)
	switch {
	case os.IsNotExist(err):
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusWarn,
			Message:    fmt.Sprintf("Plugin directory %s does not exist", c.Dir),
			Suggestion: "Run 'pj doctor --fix' or 'pj plugin new <name>' to create it",
			Fixable:    true,
		}
	case err != nil:
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusFail,
			Message:    fmt.Sprintf("Plugin directory %s can't be read: %v", c.Dir, err),
			Suggestion: "Check the directory permissions",
		}
	case !info.IsDir():
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusFail,
			Message:    fmt.Sprintf("Plugin directory %s is not a directory", c.Dir),
			Suggestion: "Move the file out of the way so pj can create the directory",
		}
	}
	return CheckResult{
		Name:    c.Name(),
		Status:  StatusPass,
		Message: fmt.Sprintf("Plugin directory: %s", c.Dir),
	}
}

// Fix creates the plugin directory.
func (c *PluginDirCheck) Fix() error {
	return os.MkdirAll(c.Dir, 0o755)
}

// NewStorageChecks returns the data and plugin directory checks.
func NewStorageChecks(paths config.Paths) []Check {
	return []Check{
		&DataDirCheck{Dir: paths.DataDir},
		&PluginDirCheck{Dir: paths.PluginDir},
	}
}
