package config

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/spf13/cast"

	"github.com/rileyhilliard/pj/internal/errors"
	"github.com/rileyhilliard/pj/internal/logger"
	"github.com/rileyhilliard/pj/internal/messages"
)

// Configuration keys understood by pj.
const (
	KeyDevelopmentMode = "development_mode"
	KeyPlugins         = PluginsKey
	KeyMessagesLimit   = "messages_limit"
)

// DefaultMessagesLimit caps how many deferred messages are printed.
const DefaultMessagesLimit = 20

// Validator checks and coerces one configuration key.
type Validator interface {
	Key() string
	Fallback() interface{}
	AllowsNull() bool
	// Coerce converts a present, non-null raw value. Notes are per-entry
	// problems that were repaired without rejecting the whole value.
	Coerce(raw interface{}) (value interface{}, notes []string, err error)
}

// Field holds what every validator declares.
type Field struct {
	Name      string
	Default   interface{}
	AllowNull bool
}

func (f Field) Key() string           { return NormalizeKey(f.Name) }
func (f Field) Fallback() interface{} { return f.Default }
func (f Field) AllowsNull() bool      { return f.AllowNull }

// BoolValidator accepts YAML booleans only.
type BoolValidator struct {
	Field
}

func (v BoolValidator) Coerce(raw interface{}) (interface{}, []string, error) {
	b, ok := raw.(bool)
	if !ok {
		return nil, nil, fmt.Errorf("expected a boolean, got %s", describe(raw))
	}
	return b, nil, nil
}

// NumberValidator accepts numbers and numeric strings. With Integer set the
// result is an int and fractional values are rejected.
type NumberValidator struct {
	Field
	Integer bool
	Min     *float64
}

func (v NumberValidator) Coerce(raw interface{}) (interface{}, []string, error) {
	var f float64
	switch r := raw.(type) {
	case bool:
		return nil, nil, fmt.Errorf("expected a number, got %s", describe(raw))
	case string:
		parsed, err := cast.ToFloat64E(strings.TrimSpace(r))
		if err != nil {
			return nil, nil, fmt.Errorf("expected a number, got %s", describe(raw))
		}
		f = parsed
	default:
		parsed, err := cast.ToFloat64E(raw)
		if err != nil {
			return nil, nil, fmt.Errorf("expected a number, got %s", describe(raw))
		}
		f = parsed
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, nil, fmt.Errorf("expected a finite number, got %v", raw)
	}
	if v.Min != nil && f < *v.Min {
		return nil, nil, fmt.Errorf("must be at least %v, got %v", *v.Min, f)
	}
	if v.Integer {
		if f != math.Trunc(f) {
			return nil, nil, fmt.Errorf("expected an integer, got %v", raw)
		}
		if f > math.MaxInt32 || f < math.MinInt32 {
			return nil, nil, fmt.Errorf("expected an integer between %d and %d, got %v", math.MinInt32, math.MaxInt32, raw)
		}
		return cast.ToInt(f), nil, nil
	}
	return f, nil, nil
}

// PluginMapValidator checks the plugins section: a mapping from plugin name to
// a mapping of that plugin's settings. Entries that are not mappings are
// dropped one by one. Plugin names are folded to lower case.
type PluginMapValidator struct {
	Field
}

func (v PluginMapValidator) Coerce(raw interface{}) (interface{}, []string, error) {
	m, ok := asMapping(raw)
	if !ok {
		return nil, nil, fmt.Errorf("expected a mapping of plugin names to settings, got %s", describe(raw))
	}

	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make(map[string]interface{}, len(m))
	var notes []string
	for _, name := range names {
		section, ok := asMapping(m[name])
		if !ok {
			notes = append(notes, fmt.Sprintf(
				"Settings for plugin '%s' must be a mapping, got %s. They will be ignored.",
				name, describe(m[name])))
			continue
		}
		lower := strings.ToLower(name)
		if _, dup := out[lower]; dup {
			notes = append(notes, fmt.Sprintf(
				"Settings for plugin '%s' are defined more than once (plugin names are case-insensitive). Only the first is used.",
				lower))
			continue
		}
		out[lower] = section
	}
	return out, notes, nil
}

func describe(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case bool:
		return fmt.Sprintf("boolean %v", t)
	case string:
		return fmt.Sprintf("string %q", t)
	case int, int64, uint64:
		return fmt.Sprintf("integer %v", t)
	case float64:
		return fmt.Sprintf("number %v", t)
	case []interface{}:
		return "a list"
	case map[string]interface{}, map[interface{}]interface{}:
		return "a mapping"
	default:
		return fmt.Sprintf("%T", v)
	}
}

// DefaultValidators are the validators for every key pj understands.
func DefaultValidators() []Validator {
	zero := 0.0
	return []Validator{
		BoolValidator{Field{Name: KeyDevelopmentMode, Default: false}},
		PluginMapValidator{Field{Name: KeyPlugins, Default: map[string]interface{}{}}},
		NumberValidator{
			Field:   Field{Name: KeyMessagesLimit, Default: DefaultMessagesLimit, AllowNull: true},
			Integer: true,
			Min:     &zero,
		},
	}
}

// LoadPolicy decides what validation does with sources that failed to parse.
type LoadPolicy int

const (
	// PolicyIgnore warns about unparsable sources and lets fields fall back.
	PolicyIgnore LoadPolicy = iota
	// PolicyRaise aborts validation with the first load error.
	PolicyRaise
)

// Outcome is what validation did with a key.
type Outcome int

const (
	OutcomeValid Outcome = iota
	OutcomeAbsent
	OutcomeInvalid
)

func (o Outcome) String() string {
	switch o {
	case OutcomeValid:
		return "valid"
	case OutcomeAbsent:
		return "absent"
	default:
		return "invalid"
	}
}

// Result is the outcome of one validator run.
type Result struct {
	Key     string
	Value   interface{}
	Outcome Outcome
	Source  Source
	// Warning is the VALIDATION error reported when the field fell back.
	Warning error
}

// Pipeline runs validators against a ledger and writes their results back.
type Pipeline struct {
	ledger     *Ledger
	validators []Validator
	validated  map[string]bool
	reported   map[Source]bool
	msgs       *messages.Buffer
	log        logger.Logger
	policy     LoadPolicy
}

// NewPipeline builds a pipeline. Validators run in the given order.
func NewPipeline(ledger *Ledger, msgs *messages.Buffer, log logger.Logger, validators ...Validator) *Pipeline {
	if log == nil {
		log = logger.Noop()
	}
	if msgs == nil {
		msgs = messages.New()
	}
	return &Pipeline{
		ledger:     ledger,
		validators: validators,
		validated:  map[string]bool{},
		reported:   map[Source]bool{},
		msgs:       msgs,
		log:        log,
	}
}

// SetPolicy changes how unparsable sources are handled.
func (p *Pipeline) SetPolicy(policy LoadPolicy) {
	p.policy = policy
}

// Invalidate marks keys as needing validation again. With no keys every
// validator is re-armed.
func (p *Pipeline) Invalidate(keys ...string) {
	if len(keys) == 0 {
		p.validated = map[string]bool{}
		return
	}
	for _, k := range keys {
		delete(p.validated, NormalizeKey(k))
	}
}

// Validated reports whether key has been validated since it was last armed.
func (p *Pipeline) Validated(key string) bool {
	return p.validated[NormalizeKey(key)]
}

// Run validates the keys listed in only, or every validator not yet
// validated when only is empty.
func (p *Pipeline) Run(only ...string) ([]Result, error) {
	if err := p.checkLoadErrors(); err != nil {
		return nil, err
	}

	selected, err := p.selectValidators(only)
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(selected))
	for _, v := range selected {
		res := p.apply(v)
		p.validated[v.Key()] = true
		results = append(results, res)
	}
	return results, nil
}

func (p *Pipeline) checkLoadErrors() error {
	for _, le := range p.ledger.LoadErrors() {
		if p.policy == PolicyRaise {
			return le.Err
		}
		if p.reported[le.Source] {
			continue
		}
		p.reported[le.Source] = true
		p.msgs.Warnf("Couldn't parse the %s at %s, so it was ignored: %v",
			le.Source.Label, le.Source.Path, le.Cause)
	}
	return nil
}

func (p *Pipeline) selectValidators(only []string) ([]Validator, error) {
	if len(only) == 0 {
		var out []Validator
		for _, v := range p.validators {
			if !p.validated[v.Key()] {
				out = append(out, v)
			}
		}
		return out, nil
	}

	byKey := make(map[string]Validator, len(p.validators))
	for _, v := range p.validators {
		byKey[v.Key()] = v
	}
	out := make([]Validator, 0, len(only))
	for _, k := range only {
		v, ok := byKey[NormalizeKey(k)]
		if !ok {
			return nil, fmt.Errorf("no validator registered for %q", k)
		}
		out = append(out, v)
	}
	return out, nil
}

func (p *Pipeline) apply(v Validator) Result {
	key := v.Key()
	active, ok := p.ledger.Lookup(key)
	if !ok {
		src := p.ledger.Patch(key, v.Fallback())
		p.log.Debug("%s not set, using default %v", key, v.Fallback())
		return Result{Key: key, Value: v.Fallback(), Outcome: OutcomeAbsent, Source: src}
	}

	if active.Value == nil {
		if v.AllowsNull() {
			return Result{Key: key, Value: nil, Outcome: OutcomeValid, Source: active.Source}
		}
		return p.fallback(v, active, "a value is required, got null")
	}

	value, notes, err := v.Coerce(active.Value)
	if err != nil {
		return p.fallback(v, active, err.Error())
	}
	for _, note := range notes {
		p.msgs.Add(messages.LevelWarn, true, fmt.Sprintf("%s (%s)", note, sourceDesc(active.Source)))
	}

	src := p.ledger.Patch(key, value)
	return Result{Key: key, Value: value, Outcome: OutcomeValid, Source: src}
}

func (p *Pipeline) fallback(v Validator, active Value, reason string) Result {
	key := v.Key()
	warning := errors.New(errors.ErrValidation,
		fmt.Sprintf("Invalid value for '%s' in the %s: %s. Using the default value %s instead.",
			key, sourceDesc(active.Source), reason, describeFallback(v.Fallback())),
		fmt.Sprintf("Fix '%s' in the %s", key, sourceDesc(active.Source)))
	p.msgs.Warnf("%s", warning.Message)
	p.ledger.Reject(key, reason)
	src := p.ledger.Patch(key, v.Fallback())
	return Result{Key: key, Value: v.Fallback(), Outcome: OutcomeInvalid, Source: src, Warning: warning}
}

func sourceDesc(s Source) string {
	if s.Path == "" {
		return s.Label
	}
	return fmt.Sprintf("%s (%s)", s.Label, s.Path)
}

func describeFallback(v interface{}) string {
	if m, ok := asMapping(v); ok && len(m) == 0 {
		return "{}"
	}
	return fmt.Sprintf("%v", v)
}

// DevelopmentMode returns the validated development_mode setting.
func DevelopmentMode(l *Ledger) bool {
	b, _ := l.Get(KeyDevelopmentMode, false).(bool)
	return b
}

// PluginSettings returns the validated settings section for one plugin.
func PluginSettings(l *Ledger, name string) map[string]interface{} {
	all, ok := asMapping(l.Get(KeyPlugins, nil))
	if !ok {
		return map[string]interface{}{}
	}
	section, ok := asMapping(all[strings.ToLower(name)])
	if !ok {
		return map[string]interface{}{}
	}
	return section
}

// PluginSections returns the names of all configured plugin sections, sorted.
func PluginSections(l *Ledger) []string {
	all, ok := asMapping(l.Get(KeyPlugins, nil))
	if !ok {
		return nil
	}
	names := make([]string, 0, len(all))
	for name := range all {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// MessagesLimit returns how many deferred messages to print. ok is false when
// the limit is null, meaning unlimited.
func MessagesLimit(l *Ledger) (limit int, ok bool) {
	v := l.Get(KeyMessagesLimit, DefaultMessagesLimit)
	if v == nil {
		return 0, false
	}
	n, err := cast.ToIntE(v)
	if err != nil {
		return DefaultMessagesLimit, true
	}
	return n, true
}
