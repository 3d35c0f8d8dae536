// Package rootconfig resolves fastenv's own configuration: where its home
// directory lives, where the shim directory and environment caches are
// stored, and the handful of tunables an operator can set via an optional
// config file or environment variables.
//
// Resolution order (highest precedence first) follows the layering Viper
// gives for free: FASTENV_ROOT and QUICKENV_* environment variables, then
// $FASTENV_ROOT/config.toml, then built-in defaults. No command-line flag
// is bound into this layering.
package rootconfig

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config is fastenv's resolved runtime configuration.
type Config struct {
	// Root is fastenv's home directory, $FASTENV_ROOT or ~/.fastenv.
	Root string `mapstructure:"root"`

	// ShimDirName is the name of the shim directory under Root.
	ShimDirName string `mapstructure:"shim_dir"`

	// LogLevel is the default log level when QUICKENV_LOG is unset.
	LogLevel string `mapstructure:"log_level"`

	// AutoShim is loaded from auto_shim / QUICKENV_AUTO_SHIM. No command
	// reads it: reload only reports unshimmed commands and never shims
	// them itself.
	AutoShim bool `mapstructure:"auto_shim"`
}

// ShimDir returns the full path to the shim directory (the ShimDirectory).
func (c Config) ShimDir() string {
	return filepath.Join(c.Root, c.ShimDirName)
}

// OwnDir returns the full path to the directory holding the canonical
// fastenv binary (the OwnDirectory).
func (c Config) OwnDir() string {
	return filepath.Join(c.Root, "fastenv_bin")
}

// CacheDir returns the full path to the environment cache directory.
func (c Config) CacheDir() string {
	return filepath.Join(c.Root, "envs")
}

// ScansDir returns the full path to the previously-reported unshimmed-set
// directory.
func (c Config) ScansDir() string {
	return filepath.Join(c.Root, "scans")
}

func defaultRoot() string {
	if root := os.Getenv("FASTENV_ROOT"); root != "" {
		return root
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".fastenv"
	}
	return filepath.Join(home, ".fastenv")
}

// Load resolves fastenv's configuration. It reads an optional
// $FASTENV_ROOT/config.toml and binds the QUICKENV_* environment variables
// documented in fastenv's external interface.
func Load() (Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")

	root := defaultRoot()
	v.SetDefault("root", root)
	v.SetDefault("shim_dir", "bin")
	v.SetDefault("log_level", "warn")
	v.SetDefault("auto_shim", false)

	v.AddConfigPath(root)

	if err := bindEnv(v); err != nil {
		return Config{}, err
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}

	if cfg.Root == "" {
		cfg.Root = root
	}

	return cfg, nil
}

func bindEnv(v *viper.Viper) error {
	binds := map[string]string{
		"root":      "FASTENV_ROOT",
		"log_level": "QUICKENV_LOG",
		"auto_shim": "QUICKENV_AUTO_SHIM",
		"shim_dir":  "QUICKENV_SHIM_DIR",
	}
	for key, env := range binds {
		if err := v.BindEnv(key, env); err != nil {
			return fmt.Errorf("binding %s: %w", env, err)
		}
	}
	return nil
}
