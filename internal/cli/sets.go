package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSetsCommand(root *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sets",
		Short: "List the sets a data source advertises",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSets(cmd, root)
		},
	}
	return cmd
}

func runSets(cmd *cobra.Command, root *RootOptions) error {
	src, err := root.sourceConfig()
	if err != nil {
		return err
	}

	driver, err := newDriverFromConfig(src, nil)
	if err != nil {
		return err
	}

	sets, err := driver.ListSets()
	if err != nil {
		return WrapExitError(ExitFailure, "listing sets failed", err)
	}

	for _, s := range sets {
		fmt.Fprintf(cmd.OutOrStdout(), "%-30s %s\n", s.Spec, s.Name)
	}
	return nil
}
