package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fastenv/fastenv/internal/cache"
	"github.com/fastenv/fastenv/internal/locator"
)

var whichPretendShimmed bool

var whichCmd = &cobra.Command{
	Use:   "which NAME",
	Short: "Show which binary the dispatcher would exec for NAME",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		return runWhich(a, args[0], whichPretendShimmed)
	},
}

func init() {
	whichCmd.Flags().BoolVar(&whichPretendShimmed, "pretend-shimmed", false, "resolve NAME as if it were shimmed")
}

func runWhich(a *app, name string, pretendShimmed bool) error {
	if !pretendShimmed && !a.store.IsShimmed(name) {
		return fmt.Errorf("%s is not shimmed", name)
	}

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

	scrubbed := scrubDirs(entry.Env["PATH"], a.cfg.OwnDir(), a.cfg.ShimDir())
	binary, err := findOnPath(name, strings.Join(scrubbed, string(os.PathListSeparator)))
	if err != nil {
		return fmt.Errorf("%s: not found on the cached PATH", name)
	}

	fmt.Println(binary)
	return nil
}

func scrubDirs(path string, remove ...string) []string {
	skip := make(map[string]bool, len(remove))
	for _, r := range remove {
		skip[r] = true
	}

	var kept []string
	for _, dir := range filepath.SplitList(path) {
		if skip[dir] {
			continue
		}
		kept = append(kept, dir)
	}
	return kept
}
