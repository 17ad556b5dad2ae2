package plugin

import (
	"embed"
	stderrors "errors"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rileyhilliard/pj/internal/logger"
)

//go:embed builtin
var builtinFS embed.FS

// BuiltinFS returns the plugins compiled into pj, one directory per plugin.
func BuiltinFS() fs.FS {
	sub, err := fs.Sub(builtinFS, "builtin")
	if err != nil {
		panic(err)
	}
	return sub
}

// DiscoverBuiltin lists the plugins in fsys. Every subdirectory holding the
// conventional entry script is a plugin.
func DiscoverBuiltin(fsys fs.FS) ([]*Descriptor, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, err
	}

	var out []*Descriptor
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, err := fs.Stat(fsys, path.Join(e.Name(), EntryFile)); err != nil {
			continue
		}
		sub, err := fs.Sub(fsys, e.Name())
		if err != nil {
			return nil, err
		}
		out = append(out, &Descriptor{
			Name:        e.Name(),
			Kind:        KindBuiltin,
			Root:        e.Name(),
			EntryScript: EntryFile,
			ProjectDir:  ".",
			FS:          sub,
		})
	}
	return out, nil
}

// DiscoverExternal scans dir for plugin directories in case-insensitive path
// order, skipping hidden entries. Directories that are not plugins are skipped
// silently. Directories with bad metadata are reported in problems and do not
// stop the scan. A missing dir yields nothing.
func DiscoverExternal(dir string, log logger.Logger) (found []*Descriptor, problems []error, err error) {
	if log == nil {
		log = logger.Noop()
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, nil
		}
		return nil, nil, err
	}

	paths := make([]string, 0, len(entries))
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".") {
			continue
		}
		p := filepath.Join(dir, e.Name())
		if !isDir(p) {
			continue
		}
		paths = append(paths, p)
	}
	sort.SliceStable(paths, func(i, j int) bool {
		return strings.ToLower(paths[i]) < strings.ToLower(paths[j])
	})

	for _, p := range paths {
		md, perr := ParseMetadata(p)
		if stderrors.Is(perr, ErrNotPluginDir) {
			log.Debug("skipping %s: %v", p, perr)
			continue
		}
		if perr != nil {
			problems = append(problems, perr)
			continue
		}
		if len(md.UnknownKeys) > 0 {
			log.Debug("%s: ignoring unknown metadata keys %v", p, md.UnknownKeys)
		}
		found = append(found, md.Descriptor)
	}
	return found, problems, nil
}
