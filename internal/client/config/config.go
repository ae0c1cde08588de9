// Package config holds settings for the rtcauth command-line client.
// Values come from defaults, then RTCAUTH_CLI_* variables, then flags.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/spf13/pflag"
)

const EnvPrefix = "RTCAUTH_CLI_"

// Config holds runtime settings for the CLI.
type Config struct {
	ServerEndpointAddr string        `env:"SERVER"`
	SessionFile        string        `env:"SESSION_FILE"`
	Timeout            time.Duration `env:"TIMEOUT"`
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerEndpointAddr = "127.0.0.1:50051"
	c.Timeout = 10 * time.Second
	c.SessionFile = defaultSessionFile()
}

func defaultSessionFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".rtcauth-session"
	}
	return filepath.Join(dir, "rtcauth", "session")
}

// AddFlags registers the global flags on fs, defaulting to the current values.
func (c *Config) AddFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&c.ServerEndpointAddr, "server", "a", c.ServerEndpointAddr, "address and port of the rtcauth gRPC endpoint")
	fs.StringVar(&c.SessionFile, "session-file", c.SessionFile, "file the session token is kept in")
	fs.DurationVar(&c.Timeout, "timeout", c.Timeout, "per-request timeout")
}

// Load applies defaults and the environment. Flags are bound separately by
// the command so they can share a flag set with subcommand flags.
func Load() (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}
