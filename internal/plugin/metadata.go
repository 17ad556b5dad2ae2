package plugin

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/rileyhilliard/pj/internal/errors"
)

const (
	// MetadataFile is the optional per-plugin metadata file.
	MetadataFile = "pj_plugin_metadata.yml"
	// EntryFile is the conventional entry script name.
	EntryFile = "cli.lua"
)

// metadata mirrors the metadata file. Pointers tell absent keys from empty ones.
type metadata struct {
	CLIScript  *string `mapstructure:"cli_script"`
	RuntimeDir *string `mapstructure:"runtime_dir"`
	ProjectDir *string `mapstructure:"project_dir"`
	PluginName *string `mapstructure:"plugin_name"`
}

// Metadata describes the parse of one plugin directory.
type Metadata struct {
	Descriptor *Descriptor
	// UnknownKeys are metadata keys pj does not recognize.
	UnknownKeys []string
}

// ParseMetadata resolves the descriptor of the external plugin in dir. It
// returns ErrNotPluginDir when dir has neither a metadata file nor the
// conventional entry script, and a plugin error when the metadata is invalid.
func ParseMetadata(dir string) (*Metadata, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	name := filepath.Base(dir)
	metaPath := filepath.Join(dir, MetadataFile)

	if _, err := os.Stat(metaPath); os.IsNotExist(err) {
		entry := filepath.Join(dir, EntryFile)
		if !isFile(entry) {
			return nil, ErrNotPluginDir
		}
		return &Metadata{Descriptor: &Descriptor{
			Name:        name,
			Kind:        KindExternal,
			Root:        dir,
			EntryScript: entry,
			ProjectDir:  dir,
		}}, nil
	}

	var meta metadata
	unknown, err := readMetadata(metaPath, &meta)
	if err != nil {
		return nil, metadataError(dir, "couldn't read "+MetadataFile, err)
	}

	d := &Descriptor{Kind: KindExternal, Root: dir, HasMetadata: true, Name: name}

	if meta.PluginName != nil {
		if *meta.PluginName != name {
			return nil, metadataError(dir, fmt.Sprintf(
				"plugin_name '%s' must match the directory name '%s'", *meta.PluginName, name), nil)
		}
	}

	if meta.CLIScript != nil {
		d.EntryScript = resolve(dir, *meta.CLIScript)
		if !isFile(d.EntryScript) {
			return nil, metadataError(dir, fmt.Sprintf("cli_script %s does not exist", d.EntryScript), nil)
		}
	} else {
		d.EntryScript = filepath.Join(dir, EntryFile)
		if !isFile(d.EntryScript) {
			return nil, metadataError(dir, fmt.Sprintf(
				"cli_script is not set and the conventional %s is missing", EntryFile), nil)
		}
	}

	if meta.ProjectDir != nil {
		d.ProjectDir = resolve(dir, *meta.ProjectDir)
		if !isDir(d.ProjectDir) {
			return nil, metadataError(dir, fmt.Sprintf("project_dir %s does not exist", d.ProjectDir), nil)
		}
	} else {
		d.ProjectDir = filepath.Dir(d.EntryScript)
	}

	if meta.RuntimeDir != nil {
		d.RuntimeDir = resolve(dir, *meta.RuntimeDir)
		if !isDir(d.RuntimeDir) {
			return nil, metadataError(dir, fmt.Sprintf("runtime_dir %s does not exist", d.RuntimeDir), nil)
		}
	}

	return &Metadata{Descriptor: d, UnknownKeys: unknown}, nil
}

func readMetadata(path string, out *metadata) ([]string, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var md mapstructure.Metadata
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:   out,
		Metadata: &md,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(v.AllSettings()); err != nil {
		return nil, err
	}
	sort.Strings(md.Unused)
	return md.Unused, nil
}

func metadataError(dir, problem string, cause error) error {
	return errors.WrapWithCode(cause, errors.ErrPlugin,
		fmt.Sprintf("Invalid plugin metadata in %s: %s", dir, problem),
		fmt.Sprintf("Fix %s, or remove it to use the defaults", filepath.Join(dir, MetadataFile)))
}

func resolve(base, p string) string {
	if p == "" {
		return base
	}
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(base, p)
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
