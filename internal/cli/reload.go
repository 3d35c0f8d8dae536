package cli

import (
	"context"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/fastenv/fastenv/internal/cache"
	"github.com/fastenv/fastenv/internal/locator"
	"github.com/fastenv/fastenv/internal/logger"
	"github.com/fastenv/fastenv/internal/scanner"
)

var reloadCmd = &cobra.Command{
	Use:   "reload",
	Short: "Re-run .envrc and refresh the cached environment",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		return runReload(cmd.Context(), a, ".")
	},
}

// runReload sources .envrc for the project reachable from startDir, stores
// the resulting environment, and reports newly unshimmed commands.
func runReload(ctx context.Context, a *app, startDir string) error {
	projectRoot, err := locator.Locate(startDir)
	if err != nil {
		return err
	}

	captured, err := a.runner.Run(ctx, projectRoot)
	if err != nil {
		return err
	}

	hash, err := cache.HashEnvrc(a.fs, filepath.Join(projectRoot, ".envrc"))
	if err != nil {
		return err
	}

	reachable := scanner.ReachableNames(captured["PATH"], os.Getenv("PATH"))
	shimmed := make(map[string]bool)
	if entries, err := a.store.List(); err == nil {
		for _, e := range entries {
			shimmed[e.Name] = true
		}
	}
	var unshimmed []string
	for _, name := range reachable {
		if !shimmed[name] {
			unshimmed = append(unshimmed, name)
		}
	}

	entry := cache.Entry{
		Meta: cache.Meta{ContentHash: hash, Reachable: reachable},
		Env:  captured,
	}
	if err := a.cache.Store(projectRoot, entry); err != nil {
		return err
	}

	fresh, err := a.scanner.ScanNew(projectRoot, unshimmed)
	if err != nil {
		return err
	}

	if len(unshimmed) > 0 && os.Getenv("QUICKENV_NO_SHIM_WARNINGS") != "1" {
		if len(fresh) > 0 {
			a.log.Warn("%d unshimmed commands (%d new). Use 'fastenv shim' to make them available.", len(unshimmed), len(fresh))
		} else {
			a.log.Warn("%d unshimmed commands. Use 'fastenv shim' to make them available.", len(unshimmed))
		}
		if a.log.Enabled(logger.LevelWarn) {
			a.log.Raw("Set QUICKENV_NO_SHIM_WARNINGS=1 to silence this message.")
		}
	}

	return nil
}
