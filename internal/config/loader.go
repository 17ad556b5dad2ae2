package config

import (
	stderrors "errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/rileyhilliard/pj/internal/errors"
	"github.com/rileyhilliard/pj/internal/logger"
)

// ErrKeyNotFound is returned by Delete when no source defines the key.
var ErrKeyNotFound = stderrors.New("key not found in any configuration source")

// DefaultSources returns the fixed startup sources in priority order.
func DefaultSources(p Paths) []Source {
	return []Source{
		{Label: LabelSystem, Path: p.SystemConfig, Rank: 0},
		{Label: LabelUser, Path: p.UserConfig, Rank: 1},
		{Label: LabelProject, Path: p.ProjectConfig, Rank: 2},
	}
}

type layer struct {
	source Source
	values map[string]interface{}
}

// Ledger holds every loaded source's raw values and answers which source
// supplies each key. All mutations are in memory only.
type Ledger struct {
	// layers is sorted by ascending rank. The default pseudo-source, when
	// present, is always first.
	layers   []*layer
	loadErrs []LoadError
	rejected []Rejection
	log      logger.Logger
}

// LoadError is an unparsable configuration source.
type LoadError struct {
	Source Source
	Err    error
	Cause  error
}

// NewLedger returns an empty ledger.
func NewLedger(log logger.Logger) *Ledger {
	if log == nil {
		log = logger.Noop()
	}
	return &Ledger{log: log}
}

// Load reads one configuration file into the ledger. A missing file is not an
// error and leaves the source unused. An unparsable file is recorded and
// returned as a config error.
func (l *Ledger) Load(src Source) error {
	if src.Path == "" {
		return nil
	}
	data, err := os.ReadFile(src.Path)
	if err != nil {
		if os.IsNotExist(err) {
			l.log.Debug("%s not found at %s", src.Label, src.Path)
			return nil
		}
		return l.recordLoadError(src, err)
	}

	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return l.recordLoadError(src, err)
	}

	l.AddLayer(src, raw)
	l.log.Debug("loaded %s from %s (%d keys)", src.Label, src.Path, len(raw))
	return nil
}

func (l *Ledger) recordLoadError(src Source, cause error) error {
	err := errors.WrapWithCode(cause, errors.ErrConfig,
		fmt.Sprintf("Couldn't read %s at %s", src.Label, src.Path),
		"Fix the YAML syntax, or remove the file")
	l.loadErrs = append(l.loadErrs, LoadError{Source: src, Err: err, Cause: cause})
	return err
}

// LoadAll loads each source in order and returns every load error.
func (l *Ledger) LoadAll(sources []Source) []error {
	var errs []error
	for _, src := range sources {
		if err := l.Load(src); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// LoadErrors returns the sources that failed to parse.
func (l *Ledger) LoadErrors() []LoadError {
	return append([]LoadError(nil), l.loadErrs...)
}

// AddLayer adds values from src, keeping layers ordered by rank. Keys are
// normalized. Adding a source twice replaces its previous values.
func (l *Ledger) AddLayer(src Source, values map[string]interface{}) {
	normalized := make(map[string]interface{}, len(values))
	for k, v := range values {
		normalized[NormalizeKey(k)] = v
	}

	for _, ly := range l.layers {
		if ly.source == src {
			ly.values = normalized
			return
		}
	}

	l.layers = append(l.layers, &layer{source: src, values: normalized})
	sort.SliceStable(l.layers, func(i, j int) bool {
		return l.layers[i].source.Rank < l.layers[j].source.Rank
	})
}

// TopRank returns the highest rank of any source, or -1 if none is loaded.
func (l *Ledger) TopRank() int {
	top := -1
	for _, ly := range l.layers {
		if !ly.source.IsDefault() && ly.source.Rank > top {
			top = ly.source.Rank
		}
	}
	return top
}

// Sources returns the real sources in use, lowest rank first.
func (l *Ledger) Sources() []Source {
	var out []Source
	for _, ly := range l.layers {
		if !ly.source.IsDefault() {
			out = append(out, ly.source)
		}
	}
	return out
}

// Lookup returns the active value of key with its provenance. An explicit
// null is reported as present with a nil value.
func (l *Ledger) Lookup(key string) (Value, bool) {
	key = NormalizeKey(key)
	for i := len(l.layers) - 1; i >= 0; i-- {
		if v, ok := l.layers[i].values[key]; ok {
			return Value{Key: key, Value: v, Source: l.layers[i].source}, true
		}
	}
	return Value{}, false
}

// Get returns the active value of key, or def when no source defines it.
func (l *Ledger) Get(key string, def interface{}) interface{} {
	if v, ok := l.Lookup(key); ok {
		return v.Value
	}
	return def
}

// Has reports whether any source defines key.
func (l *Ledger) Has(key string) bool {
	_, ok := l.Lookup(key)
	return ok
}

// Keys returns every defined key, sorted.
func (l *Ledger) Keys() []string {
	seen := map[string]bool{}
	for _, ly := range l.layers {
		for k := range ly.values {
			seen[k] = true
		}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// History returns each source's raw value for key, lowest rank first.
func (l *Ledger) History(key string) []Entry {
	key = NormalizeKey(key)
	var out []Entry
	for _, ly := range l.layers {
		if v, ok := ly.values[key]; ok {
			out = append(out, Entry{Source: ly.source, Raw: v})
		}
	}
	return out
}

// Patch rewrites the recorded value of key in the highest-priority source that
// defines it. When no source defines key the value is recorded under the
// default pseudo-source. The underlying files are never touched.
func (l *Ledger) Patch(key string, value interface{}) Source {
	key = NormalizeKey(key)
	for i := len(l.layers) - 1; i >= 0; i-- {
		if _, ok := l.layers[i].values[key]; ok {
			l.layers[i].values[key] = value
			return l.layers[i].source
		}
	}
	l.defaultLayer().values[key] = value
	return DefaultSource
}

func (l *Ledger) defaultLayer() *layer {
	if len(l.layers) > 0 && l.layers[0].source.IsDefault() {
		return l.layers[0]
	}
	ly := &layer{source: DefaultSource, values: map[string]interface{}{}}
	l.layers = append([]*layer{ly}, l.layers...)
	return ly
}

// Delete removes key from every source.
func (l *Ledger) Delete(key string) error {
	key = NormalizeKey(key)
	found := false
	for _, ly := range l.layers {
		if _, ok := ly.values[key]; ok {
			delete(ly.values, key)
			found = true
		}
	}
	if !found {
		return fmt.Errorf("%w: %q", ErrKeyNotFound, key)
	}
	return nil
}

// Reject records the active value of key as invalid and then deletes the key
// from every source. The rejection stays available through Rejected.
func (l *Ledger) Reject(key, reason string) {
	v, ok := l.Lookup(key)
	if !ok {
		return
	}
	l.rejected = append(l.rejected, Rejection{Key: v.Key, Raw: v.Value, Source: v.Source, Reason: reason})
	_ = l.Delete(key)
}

// Rejected returns the values that failed validation, in rejection order.
func (l *Ledger) Rejected() []Rejection {
	return append([]Rejection(nil), l.rejected...)
}
