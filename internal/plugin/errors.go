package plugin

import "errors"

var (
	// ErrNotPluginDir means a directory has neither a metadata file nor the
	// conventional entry script. Such directories are skipped silently.
	ErrNotPluginDir = errors.New("not a plugin directory")

	// ErrNoCommandGroup means the entry script ran but defined no command
	// group. The plugin contributes nothing.
	ErrNoCommandGroup = errors.New("entry script defines no command group")
)
