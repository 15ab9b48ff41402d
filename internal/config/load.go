package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

// Load builds the configuration from a parsed flag set registered with
// RegisterFlags: defaults, then --config, then the --env file and the
// process environment, then explicit flags.
func Load(flags *pflag.FlagSet) (Config, error) {
	cfg := Default()

	path, err := flags.GetString("config")
	if err != nil {
		return cfg, err
	}
	if path != "" {
		if err := LoadFile(&cfg, path); err != nil {
			return cfg, err
		}
	}

	envFile, err := flags.GetString("env")
	if err != nil {
		return cfg, err
	}
	// godotenv never overrides variables already set in the environment.
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return cfg, fmt.Errorf("load env file %s: %w", envFile, err)
	}

	if err := ApplyEnv(&cfg, os.Getenv); err != nil {
		return cfg, fmt.Errorf("environment: %w", err)
	}
	if err := ApplyFlags(&cfg, flags); err != nil {
		return cfg, fmt.Errorf("flags: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
