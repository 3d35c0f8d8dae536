package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/AlecAivazis/survey/v2"
	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/fastenv/fastenv/internal/fastenverrors"
	"github.com/fastenv/fastenv/internal/locator"
)

var shimYes bool

var shimCmd = &cobra.Command{
	Use:   "shim [NAME...]",
	Short: "Install a shim for one or more commands",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		return runShim(a, args, shimYes)
	},
}

func init() {
	shimCmd.Flags().BoolVarP(&shimYes, "yes", "y", false, "shim every new unshimmed command without prompting")
}

func runShim(a *app, names []string, yes bool) error {
	if len(names) == 0 {
		candidates, err := unshimmedCandidates(a)
		if err != nil {
			return err
		}
		if len(candidates) == 0 {
			fmt.Println("no unshimmed commands to shim")
			return nil
		}

		if yes {
			names = candidates
		} else if term.IsTerminal(int(os.Stdin.Fd())) {
			names, err = promptForShims(candidates)
			if err != nil {
				return err
			}
			if len(names) == 0 {
				return nil
			}
		} else {
			fmt.Println("unshimmed commands:")
			for _, name := range candidates {
				fmt.Printf("  %s\n", name)
			}
			return fmt.Errorf("no command names given; pass names, --yes, or run interactively")
		}
	}

	var result error
	for _, name := range names {
		if err := createOne(a, name); err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: %w", name, err))
		}
	}
	return result
}

func createOne(a *app, name string) error {
	err := a.store.Create(name)
	switch {
	case errors.Is(err, fastenverrors.ErrOwnBinary):
		fmt.Println("not shimming own binary")
		return nil
	case errors.Is(err, fastenverrors.ErrAlreadyShimmed):
		fmt.Printf("%s is already shimmed\n", name)
		return nil
	case err != nil:
		return err
	default:
		fmt.Printf("shimmed %s\n", name)
		return nil
	}
}

func unshimmedCandidates(a *app) ([]string, error) {
	projectRoot, err := locator.Locate(".")
	if err != nil {
		return nil, err
	}

	entry, err := a.cache.Load(projectRoot)
	if err != nil {
		return nil, fmt.Errorf("no cached environment for %s; run `fastenv reload` first", projectRoot)
	}

	var candidates []string
	for _, name := range entry.Meta.Reachable {
		if !a.store.IsShimmed(name) {
			candidates = append(candidates, name)
		}
	}
	return candidates, nil
}

func promptForShims(candidates []string) ([]string, error) {
	var selected []string
	prompt := &survey.MultiSelect{
		Message: "Select commands to shim:",
		Options: candidates,
	}
	if err := survey.AskOne(prompt, &selected); err != nil {
		return nil, err
	}
	return selected, nil
}
