package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/rileyhilliard/pj/internal/errors"
)

// PluginsKey is the configuration section holding per-plugin settings.
const PluginsKey = "plugins"

// ParseOverride decodes the argument of --override-config. It is either a path
// to a .json, .yml or .yaml file, or an inline JSON/YAML mapping.
func ParseOverride(arg string) (map[string]interface{}, string, error) {
	trimmed := strings.TrimSpace(arg)
	if trimmed == "" {
		return nil, "", errors.New(errors.ErrUsage,
			"--override-config needs a value",
			`Pass a mapping such as '{"development_mode": true}' or a path to a .json/.yml file`)
	}

	path := ""
	data := []byte(trimmed)
	switch strings.ToLower(filepath.Ext(trimmed)) {
	case ".json", ".yml", ".yaml":
		b, err := os.ReadFile(trimmed)
		if err != nil {
			return nil, "", errors.WrapWithCode(err, errors.ErrUsage,
				fmt.Sprintf("Couldn't read override file %s", trimmed),
				"Check the path passed to --override-config")
		}
		path = trimmed
		data = b
	}

	var values map[string]interface{}
	if err := yaml.Unmarshal(data, &values); err != nil {
		return nil, "", errors.WrapWithCode(err, errors.ErrUsage,
			"--override-config is not a valid mapping",
			`Pass JSON or YAML, e.g. '{"development_mode": false}'`)
	}
	if values == nil {
		values = map[string]interface{}{}
	}
	return values, path, nil
}

// AddOverride appends the command-line override as the highest-ranked source.
// Plugin sections are merged into the sections lower sources already define,
// so overriding one plugin setting keeps the others.
func (l *Ledger) AddOverride(values map[string]interface{}, path string) Source {
	src := Source{Label: LabelOverride, Path: path, Rank: l.TopRank() + 1}

	merged := make(map[string]interface{}, len(values))
	for k, v := range values {
		merged[NormalizeKey(k)] = v
	}
	if over, ok := merged[PluginsKey]; ok {
		if base, ok := l.Lookup(PluginsKey); ok {
			merged[PluginsKey] = mergePlugins(base.Value, over)
		}
	}

	l.AddLayer(src, merged)
	return src
}

func mergePlugins(base, over interface{}) interface{} {
	baseMap, ok := asMapping(base)
	if !ok {
		return over
	}
	overMap, ok := asMapping(over)
	if !ok {
		return over
	}

	out := make(map[string]interface{}, len(baseMap)+len(overMap))
	for name, section := range baseMap {
		out[strings.ToLower(name)] = section
	}
	for name, section := range overMap {
		name = strings.ToLower(name)
		prev, hasPrev := asMapping(out[name])
		next, isMap := asMapping(section)
		if !hasPrev || !isMap {
			out[name] = section
			continue
		}
		combined := make(map[string]interface{}, len(prev)+len(next))
		for k, v := range prev {
			combined[k] = v
		}
		for k, v := range next {
			combined[k] = v
		}
		out[name] = combined
	}
	return out
}

// asMapping converts either YAML map shape to map[string]interface{}.
func asMapping(v interface{}) (map[string]interface{}, bool) {
	switch m := v.(type) {
	case map[string]interface{}:
		return m, true
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(m))
		for k, val := range m {
			out[fmt.Sprint(k)] = val
		}
		return out, true
	default:
		return nil, false
	}
}
