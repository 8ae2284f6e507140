package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

type getOptions struct {
	*RootOptions
	ShowHeader bool
}

func newGetCommand(root *RootOptions) *cobra.Command {
	opts := &getOptions{RootOptions: root}

	cmd := &cobra.Command{
		Use:   "get [identifiers...]",
		Short: "Fetch one or more records by their raw OAI-PMH identifier",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGet(cmd, opts, args)
		},
	}

	cmd.Flags().BoolVarP(&opts.ShowHeader, "header", "H", false, "print only the record's id and delete status")

	return cmd
}

func runGet(cmd *cobra.Command, opts *getOptions, ids []string) error {
	src, err := opts.sourceConfig()
	if err != nil {
		return err
	}

	driver, err := newDriverFromConfig(src, nil)
	if err != nil {
		return err
	}

	var failed int
	for _, id := range ids {
		env, err := driver.GetRecord(id)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "recordmanager: cannot get record %q: %v\n", id, err)
			failed++
			continue
		}

		if opts.ShowHeader {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\tdeleted=%v\n", env.ID, env.Deleted)
			continue
		}
		if env.Deleted {
			fmt.Fprintf(cmd.OutOrStdout(), "%s is deleted\n", env.ID)
			continue
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(env.Payload))
	}

	if failed > 0 {
		return WrapExitError(ExitFailure, fmt.Sprintf("%d of %d record(s) could not be fetched", failed, len(ids)), nil)
	}
	return nil
}
