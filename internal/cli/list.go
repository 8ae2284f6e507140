package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

type listOptions struct {
	*RootOptions
	Detailed bool
}

func newListCommand(root *RootOptions) *cobra.Command {
	opts := &listOptions{RootOptions: root}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List record identifiers from a data source without harvesting them",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd, opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.Detailed, "long", "l", false, "print deleted status alongside each identifier")

	return cmd
}

func runList(cmd *cobra.Command, opts *listOptions) error {
	src, err := opts.sourceConfig()
	if err != nil {
		return err
	}

	driver, err := newDriverFromConfig(src, nil)
	if err != nil {
		return err
	}

	var deletedCount int
	err = driver.ListIdentifiers(func(source, id string, deleted bool) error {
		if deleted {
			deletedCount++
			if opts.Detailed {
				fmt.Fprintf(cmd.OutOrStdout(), "D %s\n", id)
			}
			return nil
		}
		if opts.Detailed {
			fmt.Fprintf(cmd.OutOrStdout(), ". %s\n", id)
		} else {
			fmt.Fprintln(cmd.OutOrStdout(), id)
		}
		return nil
	})
	if err != nil {
		return WrapExitError(ExitFailure, "list failed", err)
	}

	if deletedCount > 0 && !opts.Detailed {
		fmt.Fprintf(cmd.ErrOrStderr(), "recordmanager: %d deleted record(s) not displayed\n", deletedCount)
	}
	return nil
}
