package doctor

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rileyhilliard/pj/internal/config"
	"github.com/rileyhilliard/pj/internal/errors"
	"github.com/rileyhilliard/pj/internal/plugin"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestConfigSourceCheck(t *testing.T) {
	dir := t.TempDir()
	good := config.Source{Label: config.LabelUser, Path: filepath.Join(dir, "good.yml"), Rank: 1}
	bad := config.Source{Label: config.LabelProject, Path: filepath.Join(dir, "bad.yml"), Rank: 2}
	missing := config.Source{Label: config.LabelSystem, Path: filepath.Join(dir, "missing.yml"), Rank: 0}
	writeFile(t, good.Path, "development_mode: true\n")
	writeFile(t, bad.Path, "development_mode: [unclosed\n")

	ledger := config.NewLedger(nil)
	ledger.LoadAll([]config.Source{missing, good, bad})

	tests := []struct {
		name    string
		source  config.Source
		status  CheckStatus
		message string
	}{
		{"loaded", good, StatusPass, good.Path},
		{"unparsable", bad, StatusFail, "couldn't be read"},
		{"absent", missing, StatusPass, "not present"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := (&ConfigSourceCheck{Source: tt.source, Ledger: ledger}).Run()
			assert.Equal(t, tt.status, result.Status)
			assert.Contains(t, result.Message, tt.message)
		})
	}
}

func TestMisnamedConfigCheck(t *testing.T) {
	dir := t.TempDir()
	paths := config.Paths{UserConfig: filepath.Join(dir, "config.yml")}

	check := &MisnamedConfigCheck{Paths: paths}
	assert.Equal(t, StatusPass, check.Run().Status)

	writeFile(t, filepath.Join(dir, "config.yaml"), "development_mode: true\n")
	result := check.Run()
	assert.Equal(t, StatusWarn, result.Status)
	assert.Contains(t, result.Message, "config.yaml")
}

func TestRejectedValuesCheck(t *testing.T) {
	ledger := config.NewLedger(nil)
	check := &RejectedValuesCheck{Ledger: ledger}
	assert.Equal(t, StatusPass, check.Run().Status)

	src := config.Source{Label: config.LabelUser, Path: "/x/config.yml", Rank: 1}
	ledger.AddLayer(src, map[string]interface{}{"development_mode": "maybe"})
	ledger.Reject("development_mode", "expected a boolean")

	result := check.Run()
	assert.Equal(t, StatusWarn, result.Status)
	assert.Contains(t, result.Message, "1 configured value replaced")
	assert.Contains(t, result.Suggestion, "development_mode in the user config: expected a boolean")
}

func TestNewConfigChecks(t *testing.T) {
	sources := config.DefaultSources(config.Paths{})
	checks := NewConfigChecks(config.NewLedger(nil), config.Paths{}, sources)

	assert.Len(t, checks, len(sources)+2)
	for _, c := range checks {
		assert.Equal(t, CategoryConfig, c.Category())
	}
}

func TestDataDirCheck(t *testing.T) {
	dir := t.TempDir()
	assert.Equal(t, StatusPass, (&DataDirCheck{Dir: dir}).Run().Status)

	file := filepath.Join(dir, "file")
	writeFile(t, file, "x")
	assert.Equal(t, StatusFail, (&DataDirCheck{Dir: filepath.Join(file, "sub")}).Run().Status)
}

func TestPluginDirCheck(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "plugins")
	check := &PluginDirCheck{Dir: dir}

	result := check.Run()
	assert.Equal(t, StatusWarn, result.Status)
	assert.True(t, result.Fixable)

	results := FixAll([]Check{check}, []CheckResult{result})
	assert.Equal(t, StatusPass, results[0].Status)
	assert.DirExists(t, dir)
}

func TestPluginDirCheck_NotADirectory(t *testing.T) {
	file := filepath.Join(t.TempDir(), "plugins")
	writeFile(t, file, "x")

	result := (&PluginDirCheck{Dir: file}).Run()
	assert.Equal(t, StatusFail, result.Status)
	assert.Contains(t, result.Message, "not a directory")
}

func TestPluginChecks(t *testing.T) {
	enabled := &plugin.Plugin{
		Descriptor: &plugin.Descriptor{Name: "tidy", Kind: plugin.KindExternal},
		Group:      &plugin.CommandGroup{},
	}
	disabled := &plugin.Plugin{
		Descriptor: &plugin.Descriptor{Name: "Tidy", Kind: plugin.KindExternal},
		Disabled:   errors.New(errors.ErrConflict, "Plugin 'Tidy' conflicts with 'tidy'.", "Rename it"),
	}
	problem := errors.New(errors.ErrPlugin, "Metadata in /p/broken is invalid", "")

	checks := NewPluginChecks([]*plugin.Plugin{enabled, disabled}, []error{problem})
	results := RunAll(checks)

	require.Len(t, results, 3)
	assert.Equal(t, StatusPass, results[0].Status)
	assert.Equal(t, "tidy (third-party)", results[0].Message)
	assert.Equal(t, StatusWarn, results[1].Status)
	assert.Contains(t, results[1].Message, "disabled")
	assert.Equal(t, "Plugin 'Tidy' conflicts with 'tidy'.", results[1].Suggestion)
	assert.Equal(t, StatusFail, results[2].Status)
	assert.Contains(t, results[2].Suggestion, "/p/broken")
}
