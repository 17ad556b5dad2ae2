package plugin

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rileyhilliard/pj/internal/errors"
)

// VersionQueryTimeout bounds the out-of-process runtime version query.
const VersionQueryTimeout = 5 * time.Second

// RuntimeBinary is the interpreter path inside an isolated runtime directory.
var RuntimeBinary = filepath.Join("bin", "lua")

var versionPattern = regexp.MustCompile(`(\d+)\.(\d+)(?:\.(\d+))?`)

// Version is a runtime version. Only Major and Minor matter for compatibility.
type Version struct {
	Major int
	Minor int
	Patch int
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// Compatible reports whether v and other share major and minor versions.
func (v Version) Compatible(other Version) bool {
	return v.Major == other.Major && v.Minor == other.Minor
}

// ParseVersion extracts the first dotted version number from s, such as the
// output of "lua -v".
func ParseVersion(s string) (Version, error) {
	m := versionPattern.FindStringSubmatch(s)
	if m == nil {
		return Version{}, fmt.Errorf("no version number in %q", strings.TrimSpace(s))
	}
	var v Version
	v.Major, _ = strconv.Atoi(m[1])
	v.Minor, _ = strconv.Atoi(m[2])
	if m[3] != "" {
		v.Patch, _ = strconv.Atoi(m[3])
	}
	return v, nil
}

// VersionProber asks a runtime for its version string.
type VersionProber interface {
	Probe(ctx context.Context, runtimeDir string) (string, error)
}

// ExecProber runs the runtime's interpreter with -v.
type ExecProber struct{}

// Probe runs <runtimeDir>/bin/lua -v and returns its combined output.
func (ExecProber) Probe(ctx context.Context, runtimeDir string) (string, error) {
	cmd := exec.CommandContext(ctx, filepath.Join(runtimeDir, RuntimeBinary), "-v")
	cmd.WaitDelay = 100 * time.Millisecond
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		var exitErr *exec.ExitError
		if stderrors.As(err, &exitErr) {
			return "", fmt.Errorf("exited with code %d: %s", exitErr.ExitCode(), strings.TrimSpace(out.String()))
		}
		return "", err
	}
	return out.String(), nil
}

// Checker decides whether a plugin's isolated runtime matches the host.
type Checker struct {
	Prober  VersionProber
	Host    Version
	Timeout time.Duration
}

// NewChecker returns a checker that probes with ExecProber.
func NewChecker(host Version) *Checker {
	return &Checker{Prober: ExecProber{}, Host: host, Timeout: VersionQueryTimeout}
}

// Check returns nil when d has no isolated runtime or the runtime matches the
// host's major and minor version. Otherwise it returns an environment error
// describing why the plugin can't run.
func (c *Checker) Check(ctx context.Context, d *Descriptor) error {
	if !d.Isolated() {
		return nil
	}

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = VersionQueryTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	out, err := c.Prober.Probe(ctx, d.RuntimeDir)
	if err != nil {
		if stderrors.Is(err, context.DeadlineExceeded) {
			return envError(d, fmt.Sprintf("the runtime in %s didn't report its version within %s", d.RuntimeDir, timeout), nil)
		}
		return envError(d, fmt.Sprintf("couldn't query the runtime version in %s", d.RuntimeDir), err)
	}

	got, err := ParseVersion(out)
	if err != nil {
		return envError(d, fmt.Sprintf("couldn't determine the runtime version in %s", d.RuntimeDir), err)
	}
	if !got.Compatible(c.Host) {
		return envError(d, fmt.Sprintf(
			"its runtime version %d.%d does not match pj's runtime version %d.%d (version mismatch)",
			got.Major, got.Minor, c.Host.Major, c.Host.Minor), nil)
	}
	return nil
}

func envError(d *Descriptor, problem string, cause error) error {
	return errors.WrapWithCode(cause, errors.ErrEnvironment,
		fmt.Sprintf("Plugin '%s' was disabled: %s", d.Name, problem),
		"Recreate the plugin's runtime with a matching interpreter version")
}
