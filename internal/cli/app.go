// Package cli wires fastenv's cobra command tree to its component
// packages: the project locator, the .envrc runner, the environment
// cache, the shim store/dispatcher, and the new-command scanner.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/afero"

	"github.com/fastenv/fastenv/internal/cache"
	"github.com/fastenv/fastenv/internal/envrc"
	"github.com/fastenv/fastenv/internal/logger"
	"github.com/fastenv/fastenv/internal/rootconfig"
	"github.com/fastenv/fastenv/internal/scanner"
	"github.com/fastenv/fastenv/internal/shim"
)

// Version is set by ldflags at build time.
var Version = "dev"

// app bundles the components every command operates on.
type app struct {
	cfg     rootconfig.Config
	fs      afero.Fs
	log     *logger.Logger
	cache   *cache.Cache
	scanner *scanner.Scanner
	store   *shim.Store
	runner  *envrc.Runner
}

func newApp() (*app, error) {
	cfg, err := rootconfig.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	self, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("resolving fastenv binary path: %w", err)
	}

	fs := afero.NewOsFs()
	runner, err := envrc.NewRunner(cfg.ShimDir())
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:     cfg,
		fs:      fs,
		log:     logger.New(os.Stderr, logger.ParseLevel(cfg.LogLevel)),
		cache:   cache.New(fs, cfg.CacheDir()),
		scanner: scanner.New(fs, cfg.ScansDir()),
		store:   shim.NewStore(cfg.ShimDir(), self),
		runner:  runner,
	}, nil
}
