package cli

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/fastenv/fastenv/internal/cache"
	"github.com/fastenv/fastenv/internal/locator"
)

var varsCmd = &cobra.Command{
	Use:   "vars",
	Short: "Print the cached environment in a shell-evaluable form",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		return runVars(a)
	},
}

func runVars(a *app) error {
	projectRoot, err := locator.Locate(".")
	if err != nil {
		return err
	}

	envrcPath := filepath.Join(projectRoot, ".envrc")
	hash, err := cache.HashEnvrc(a.fs, envrcPath)
	if err != nil {
		return err
	}

	entry, err := a.cache.Load(projectRoot)
	if err != nil || !entry.Valid(hash) {
		return fmt.Errorf("no valid cached environment for %s; run `fastenv reload` first", projectRoot)
	}

	names := make([]string, 0, len(entry.Env))
	for name := range entry.Env {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		fmt.Printf("export %s=%s\n", name, shellQuote(entry.Env[name]))
	}
	return nil
}

// shellQuote wraps s in single quotes, escaping any embedded single quotes
// the way POSIX shells require: close the quote, emit an escaped quote,
// reopen it.
func shellQuote(s string) string {
	out := "'"
	for _, r := range s {
		if r == '\'' {
			out += `'\''`
		} else {
			out += string(r)
		}
	}
	return out + "'"
}
