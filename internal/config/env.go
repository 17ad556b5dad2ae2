package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// DebugEnvVar turns on debug logging.
const DebugEnvVar = "PJ_DEBUG"

// Env holds the environment variables pj reads.
type Env struct {
	Debug    bool   `env:"PJ_DEBUG"`
	DataHome string `env:"XDG_DATA_HOME"`
	NoColor  string `env:"NO_COLOR"`
}

// ReadEnv parses the environment. On error the returned Env still carries
// every value that did parse, with the failing field left at its zero value.
func ReadEnv() (Env, error) {
	var e Env
	if err := env.Parse(&e); err != nil {
		return e, fmt.Errorf("parse env: %w", err)
	}
	return e, nil
}
