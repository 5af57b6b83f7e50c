package main

import (
	"fmt"

	"github.com/harpreetsinghsandhu021/tide-version-control/pkg/repository"
	"github.com/spf13/cobra"
)

func newRmCmd() *cobra.Command {
	var cached bool

	cmd := &cobra.Command{
		Use:   "rm <path>...",
		Short: "Remove files from the working tree and the index",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repository.Open(".")
			if err != nil {
				return err
			}

			if err := r.Remove(args, cached); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, p := range args {
				fmt.Fprintf(out, "rm '%s'\n", p)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&cached, "cached", false, "only remove from the index, keep the working tree file")

	return cmd
}
