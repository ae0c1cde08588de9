package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// EnvPrefix is prepended to every env tag on Config.
const EnvPrefix = "RTCAUTH_"

// parseEnv overlays RTCAUTH_* variables onto config. Unset variables leave
// the current value untouched.
func parseEnv(config *Config) error {
	if err := env.ParseWithOptions(config, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}
