package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rileyhilliard/pj/internal/errors"
)

const (
	// AppName is used for config and data directory names.
	AppName = "pj"
	// ProjectConfigFile is the project-local config file name.
	ProjectConfigFile = "pj.yml"
	// UserConfigFile is the file name inside the user config directory.
	UserConfigFile = "config.yml"
	// SystemConfigDir holds the system-wide config.
	SystemConfigDir = "/etc/pj"
	// PluginDirName is the external plugin directory inside the data dir.
	PluginDirName = "plugins"
)

// Paths are the filesystem locations pj reads and writes.
type Paths struct {
	SystemConfig  string
	UserConfig    string
	ProjectConfig string
	DataDir       string
	PluginDir     string
}

// DefaultPaths resolves the standard locations for the current user and
// working directory. DataDir and PluginDir are left empty until
// ResolveDataDir has validated a candidate.
func DefaultPaths() (Paths, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return Paths{}, errors.WrapWithCode(err, errors.ErrConfig,
			"Cannot determine current directory",
			"Check directory permissions")
	}

	p := Paths{
		SystemConfig:  filepath.Join(SystemConfigDir, UserConfigFile),
		ProjectConfig: filepath.Join(cwd, ProjectConfigFile),
	}
	if dir, err := os.UserConfigDir(); err == nil {
		p.UserConfig = filepath.Join(dir, AppName, UserConfigFile)
	}
	return p, nil
}

// DataDirCandidates lists data directory locations in preference order.
func DataDirCandidates(xdgDataHome string) []string {
	var out []string
	if xdgDataHome != "" {
		out = append(out, filepath.Join(xdgDataHome, AppName))
	}
	if home, err := os.UserHomeDir(); err == nil {
		out = append(out, filepath.Join(home, ".local", "share", AppName))
	}
	out = append(out, filepath.Join(os.TempDir(), AppName))
	return out
}

// ResolveDataDir returns the first candidate that can be created and written
// to. When none qualifies the error is a storage error, which is fatal.
func ResolveDataDir(candidates []string) (string, error) {
	var tried []string
	for _, dir := range candidates {
		if err := checkWritableDir(dir); err != nil {
			tried = append(tried, fmt.Sprintf("%s: %v", dir, err))
			continue
		}
		return dir, nil
	}
	return "", errors.WrapWithCode(
		fmt.Errorf("tried %s", strings.Join(tried, "; ")),
		errors.ErrStorage,
		"No writable data directory available",
		"Set XDG_DATA_HOME to a directory you can write to")
}

func checkWritableDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	probe, err := os.CreateTemp(dir, ".pj-write-probe-*")
	if err != nil {
		return err
	}
	name := probe.Name()
	probe.Close()
	return os.Remove(name)
}

// WithDataDir returns a copy of p with the data and plugin directories set.
func (p Paths) WithDataDir(dir string) Paths {
	p.DataDir = dir
	p.PluginDir = filepath.Join(dir, PluginDirName)
	return p
}

// FindMisnamed returns config files that sit where pj looks but use the
// ".yaml" extension, so they are silently not read.
func FindMisnamed(p Paths) []string {
	var out []string
	for _, path := range []string{p.SystemConfig, p.UserConfig, p.ProjectConfig} {
		if path == "" || filepath.Ext(path) != ".yml" {
			continue
		}
		alt := strings.TrimSuffix(path, ".yml") + ".yaml"
		if _, err := os.Stat(alt); err == nil {
			out = append(out, alt)
		}
	}
	return out
}
