package cli

import (
	"io"
	"strings"

	"github.com/spf13/pflag"

	"github.com/rileyhilliard/pj/internal/errors"
)

// Global flag names.
const (
	OverrideFlag      = "override-config"
	OverrideShorthand = "O"
	NoColorFlag       = "no-color"
)

// Core command names. They are reserved so no plugin can shadow them.
const (
	cmdInit       = "init"
	cmdShowConfig = "show-config"
	cmdVersion    = "version"
	cmdDoctor     = "doctor"
)

// reservedNames may not be used by plugins.
var reservedNames = []string{"pj", cmdVersion, cmdInit, cmdShowConfig, cmdDoctor, "help", "completion"}

// sensitiveCommands reject --override-config, tolerate unparsable config
// sources and run without plugins.
var sensitiveCommands = map[string]bool{
	cmdInit:       true,
	cmdShowConfig: true,
	cmdVersion:    true,
}

// invocation is what startup needs to know about the command line before
// Cobra parses it.
type invocation struct {
	Override    string
	HasOverride bool
	NoColor     bool
	Command     string // first positional argument, "" if none
}

// scanArgs pre-parses the global flags that precede the subcommand. Unknown
// flags are left for Cobra.
func scanArgs(args []string) (invocation, error) {
	fs := pflag.NewFlagSet("pj", pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.SetInterspersed(false)
	fs.ParseErrorsWhitelist.UnknownFlags = true
	fs.Usage = func() {}

	var inv invocation
	fs.StringVarP(&inv.Override, OverrideFlag, OverrideShorthand, "", "")
	fs.BoolVar(&inv.NoColor, NoColorFlag, false, "")
	fs.BoolP("help", "h", false, "")

	if err := fs.Parse(args); err != nil {
		return invocation{}, errors.WrapWithCode(err, errors.ErrUsage,
			"Couldn't parse the command line",
			"Run 'pj --help' for usage")
	}
	inv.HasOverride = fs.Changed(OverrideFlag)
	if rest := fs.Args(); len(rest) > 0 {
		inv.Command = rest[0]
	}
	return inv, nil
}

// hasOverrideArg reports whether raw arguments contain the override flag.
func hasOverrideArg(args []string) bool {
	for _, a := range args {
		if a == "--" {
			return false
		}
		if a == "--"+OverrideFlag || strings.HasPrefix(a, "--"+OverrideFlag+"=") ||
			a == "-"+OverrideShorthand || strings.HasPrefix(a, "-"+OverrideShorthand+"=") {
			return true
		}
	}
	return false
}

func misplacedOverride(pluginName string) error {
	return errors.New(errors.ErrUsage,
		"--"+OverrideFlag+" must come before the plugin name '"+pluginName+"'",
		"Try: pj --"+OverrideFlag+" '<mapping>' "+pluginName+" ...")
}

func unsupportedOverride(command string) error {
	return errors.Usagef("pj command '%s' does not support the override argument --%s", command, OverrideFlag)
}
