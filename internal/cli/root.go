package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "fastenv",
	Short: "Accelerated per-directory shell environments",
	Long: `fastenv activates a project's shell environment by running its
.envrc once and caching the result, then replays that environment
through lightweight shims instead of re-sourcing .envrc on every
command invocation.

Quick start:
  fastenv shim <name>    Install a shim for a command the project uses
  fastenv reload          Refresh the cached environment for this project
  fastenv which <name>    Show which binary a command would resolve to

For more information, see the project's own documentation.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("fastenv %s\n", Version))
	rootCmd.AddCommand(reloadCmd)
	rootCmd.AddCommand(shimCmd)
	rootCmd.AddCommand(unshimCmd)
	rootCmd.AddCommand(execCmd)
	rootCmd.AddCommand(whichCmd)
	rootCmd.AddCommand(varsCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
