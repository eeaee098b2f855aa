// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package config loads the daemon's HCL configuration.
package config

import (
	"os"

	"github.com/hashicorp/hcl/v2/hclsimple"

	"grimm.is/netstate/internal/errors"
	"grimm.is/netstate/internal/logging"
)

// Config is the daemon configuration.
type Config struct {
	// StateDB is the path of the saved-state SQLite database.
	StateDB string `hcl:"state_db,optional"`
	// Backend selects the apply/query plugin.
	Backend string `hcl:"backend,optional"`

	Log     *LogConfig            `hcl:"log,block"`
	Syslog  *logging.SyslogConfig `hcl:"syslog,block"`
	Metrics *MetricsConfig        `hcl:"metrics,block"`
	Verify  *VerifyConfig         `hcl:"verify,block"`
}

// LogConfig controls the structured logger.
type LogConfig struct {
	Level string `hcl:"level,optional"`
	JSON  bool   `hcl:"json,optional"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	// Listen is the address of the /metrics listener; empty disables it.
	Listen string `hcl:"listen,optional"`
}

// VerifyConfig tunes post-apply verification.
type VerifyConfig struct {
	// Retries is how many verification snapshots to take before giving
	// up; the kernel needs a moment to settle after programming.
	Retries int `hcl:"retries,optional"`
	// IntervalMS is the pause between verification snapshots.
	IntervalMS int `hcl:"interval_ms,optional"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		StateDB: "/var/lib/netstate/state.db",
		Backend: "netlink",
		Log:     &LogConfig{Level: "info"},
		Verify:  &VerifyConfig{Retries: 3, IntervalMS: 500},
	}
}

// Load reads a config file and fills in defaults. A missing path
// returns the defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, errors.KindValidation,
			"failed to read config %s", path)
	}
	return Parse(path, data)
}

// Parse decodes a config document and applies defaults.
func Parse(filename string, data []byte) (*Config, error) {
	var cfg Config
	if err := hclsimple.Decode(filename, data, nil, &cfg); err != nil {
		return nil, errors.Wrap(err, errors.KindValidation, "failed to decode config")
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	def := Default()
	if cfg.StateDB == "" {
		cfg.StateDB = def.StateDB
	}
	if cfg.Backend == "" {
		cfg.Backend = def.Backend
	}
	if cfg.Log == nil {
		cfg.Log = def.Log
	} else if cfg.Log.Level == "" {
		cfg.Log.Level = def.Log.Level
	}
	if cfg.Verify == nil {
		cfg.Verify = def.Verify
	} else {
		if cfg.Verify.Retries <= 0 {
			cfg.Verify.Retries = def.Verify.Retries
		}
		if cfg.Verify.IntervalMS <= 0 {
			cfg.Verify.IntervalMS = def.Verify.IntervalMS
		}
	}
}

// LogConfigFor converts the file settings to the logging package's
// config.
func (c *Config) LogConfigFor() logging.Config {
	out := logging.DefaultConfig()
	if c.Log != nil {
		if c.Log.Level != "" {
			out.Level = c.Log.Level
		}
		out.JSON = c.Log.JSON
	}
	return out
}
