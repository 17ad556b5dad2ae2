package plugin

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/rileyhilliard/pj/internal/errors"
)

var namePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_-]*$`)

const entryTemplate = `-- %[1]s: a pj plugin.
local pj = require("pj")

app = {
  short = "%[1]s plugin",
  commands = {
    hello = {
      short = "Say hello",
      run = function(args)
        pj.print("Hello from %[1]s!")
      end,
    },
  },
}
`

const metadataTemplate = `# Optional settings. Every key may be omitted.
plugin_name: %s
# cli_script: cli.lua
# project_dir: .
# runtime_dir: runtime
`

// ValidName reports whether name can be used for a new plugin.
func ValidName(name string) bool {
	return namePattern.MatchString(name)
}

// Scaffold creates a minimal external plugin named name inside pluginDir and
// returns its directory.
func Scaffold(pluginDir, name string) (string, error) {
	if !ValidName(name) {
		return "", errors.New(errors.ErrUsage,
			fmt.Sprintf("'%s' is not a valid plugin name", name),
			"Use letters, digits, '-' and '_', starting with a letter")
	}

	dir := filepath.Join(pluginDir, name)
	if _, err := os.Stat(dir); err == nil {
		return "", errors.New(errors.ErrPlugin,
			fmt.Sprintf("%s already exists", dir),
			"Pick another name or remove the existing directory")
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.WrapWithCode(err, errors.ErrStorage,
			fmt.Sprintf("Couldn't create %s", dir), "Check directory permissions")
	}
	files := map[string]string{
		EntryFile:    fmt.Sprintf(entryTemplate, name),
		MetadataFile: fmt.Sprintf(metadataTemplate, name),
	}
	for file, content := range files {
		if err := os.WriteFile(filepath.Join(dir, file), []byte(content), 0o644); err != nil {
			return "", errors.WrapWithCode(err, errors.ErrStorage,
				fmt.Sprintf("Couldn't write %s", file), "Check directory permissions")
		}
	}
	return dir, nil
}
