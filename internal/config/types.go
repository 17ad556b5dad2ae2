package config

import (
	"math"
	"strings"
)

// Source labels. The override label is what show-config prints as provenance
// for values passed with --override-config.
const (
	LabelSystem   = "system config"
	LabelUser     = "user config"
	LabelProject  = "project config"
	LabelOverride = "command-line override"
	LabelDefault  = "default"
)

// DefaultRank is the rank of the synthetic default pseudo-source. It sits below
// every real source so a real value always wins over a fallback.
const DefaultRank = math.MinInt32

// Source is one ranked origin of configuration. Lower ranks load first and
// later ranks override earlier ones.
type Source struct {
	Label string
	Path  string
	Rank  int
}

// IsDefault reports whether s is the synthetic default pseudo-source.
func (s Source) IsDefault() bool {
	return s.Label == LabelDefault && s.Rank == DefaultRank
}

// DefaultSource is the pseudo-source that holds validator fallbacks.
var DefaultSource = Source{Label: LabelDefault, Rank: DefaultRank}

// Value is the resolved value of a key along with where it came from.
type Value struct {
	Key    string
	Value  interface{}
	Source Source
}

// Entry is one source's raw contribution to a key.
type Entry struct {
	Source Source
	Raw    interface{}
}

// Rejection records a raw value that failed validation and was replaced.
type Rejection struct {
	Key    string
	Raw    interface{}
	Source Source
	Reason string
}

// NormalizeKey folds a configuration key to its canonical form: trimmed,
// lower-cased, with dashes replaced by underscores.
func NormalizeKey(key string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(key)), "-", "_")
}
