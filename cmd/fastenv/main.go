// Command fastenv is fastenv's single binary: invoked as `fastenv` it is
// the CLI; invoked under any other name (as a shim) it dispatches to the
// real binary of that name under the project's cached environment.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/afero"

	"github.com/fastenv/fastenv/internal/cache"
	"github.com/fastenv/fastenv/internal/cli"
	"github.com/fastenv/fastenv/internal/envrc"
	"github.com/fastenv/fastenv/internal/logger"
	"github.com/fastenv/fastenv/internal/rootconfig"
	"github.com/fastenv/fastenv/internal/shim"
)

func main() {
	if len(os.Args) >= 2 && os.Args[1] == envrc.DumpEnvMode {
		runDumpEnv()
		return
	}

	execName := filepath.Base(os.Args[0])
	if execName == "fastenv" {
		if err := cli.Execute(); err != nil {
			fmt.Fprintf(os.Stderr, "[ERROR fastenv] %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := runDispatch(execName); err != nil {
		fmt.Fprintf(os.Stderr, "[ERROR fastenv] %v\n", err)
		os.Exit(1)
	}
}

func runDumpEnv() {
	if len(os.Args) < 3 {
		fmt.Fprintln(os.Stderr, "[ERROR fastenv] __dump-env__ requires a file descriptor argument")
		os.Exit(1)
	}
	fd, err := strconv.Atoi(os.Args[2])
	if err != nil {
		fmt.Fprintf(os.Stderr, "[ERROR fastenv] invalid dump-env fd %q: %v\n", os.Args[2], err)
		os.Exit(1)
	}
	if err := envrc.RunDumpEnv(fd); err != nil {
		fmt.Fprintf(os.Stderr, "[ERROR fastenv] %v\n", err)
		os.Exit(1)
	}
}

func runDispatch(name string) error {
	log := logger.FromEnv()

	cfg, err := rootconfig.Load()
	if err != nil {
		return err
	}

	self, err := os.Executable()
	if err != nil {
		return err
	}

	fs := afero.NewOsFs()

	dispatcher := &shim.Dispatcher{
		Store:   shim.NewStore(cfg.ShimDir(), self),
		Cache:   cache.New(fs, cfg.CacheDir()),
		FS:      fs,
		OwnDir:  cfg.OwnDir(),
		ShimDir: cfg.ShimDir(),
		Log:     log,
	}

	cwd, err := os.Getwd()
	if err != nil {
		return err
	}

	return dispatcher.Dispatch(name, os.Args[1:], cwd)
}
