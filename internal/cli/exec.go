package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/fastenv/fastenv/internal/cache"
	"github.com/fastenv/fastenv/internal/locator"
)

var execCmd = &cobra.Command{
	Use:                "exec NAME [ARGS...]",
	Short:              "Run a command under the cached environment without requiring a shim",
	Args:               cobra.MinimumNArgs(1),
	DisableFlagParsing: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		return runExec(cmd.Context(), a, args[0], args[1:])
	},
}

func runExec(ctx context.Context, a *app, name string, args []string) error {
	projectRoot, err := locator.Locate(".")
	if err != nil {
		return err
	}

	hash, err := cache.HashEnvrc(a.fs, filepath.Join(projectRoot, ".envrc"))
	if err != nil {
		return err
	}

	entry, err := a.cache.Load(projectRoot)
	if err != nil || !entry.Valid(hash) {
		if err := runReload(ctx, a, projectRoot); err != nil {
			return err
		}
		entry, err = a.cache.Load(projectRoot)
		if err != nil {
			return err
		}
	}

	path := entry.Env["PATH"]
	binary, err := findOnPath(name, path)
	if err != nil {
		return fmt.Errorf("%s: not found on the cached PATH", name)
	}

	env := make([]string, 0, len(entry.Env))
	for k, v := range entry.Env {
		env = append(env, k+"="+v)
	}

	argv := append([]string{binary}, args...)
	return syscall.Exec(binary, argv, env)
}

func findOnPath(name, path string) (string, error) {
	for _, dir := range strings.Split(path, string(os.PathListSeparator)) {
		if dir == "" {
			continue
		}
		candidate := filepath.Join(dir, name)
		info, err := os.Stat(candidate)
		if err != nil {
			continue
		}
		if !info.IsDir() && info.Mode()&0o111 != 0 {
			return candidate, nil
		}
	}
	return "", os.ErrNotExist
}
