package main

import (
	"fmt"

	"github.com/harpreetsinghsandhu021/tide-version-control/pkg/repository"
	"github.com/spf13/cobra"
)

func newResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset [path]...",
		Short: "Unstage paths, restoring the index to HEAD",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repository.Open(".")
			if err != nil {
				return err
			}

			if err := r.Reset(args); err != nil {
				return err
			}

			if len(args) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "reset index to HEAD")
			}
			return nil
		},
	}
}
