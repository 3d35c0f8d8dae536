package cli

import (
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"

	"github.com/fastenv/fastenv/internal/fastenverrors"
)

var unshimCmd = &cobra.Command{
	Use:   "unshim NAME...",
	Short: "Remove a shim for one or more commands",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		return runUnshim(a, args)
	},
}

func runUnshim(a *app, names []string) error {
	var result error
	for _, name := range names {
		if err := removeOne(a, name); err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: %w", name, err))
		}
	}
	return result
}

func removeOne(a *app, name string) error {
	err := a.store.Remove(name)
	switch {
	case errors.Is(err, fastenverrors.ErrOwnBinary):
		fmt.Println("not unshimming own binary")
		return nil
	case errors.Is(err, fastenverrors.ErrNotShimmed):
		fmt.Printf("%s is not shimmed\n", name)
		return nil
	case err != nil:
		return err
	default:
		fmt.Printf("unshimmed %s\n", name)
		return nil
	}
}
