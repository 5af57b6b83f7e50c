package main

import (
	"os"

	"github.com/harpreetsinghsandhu021/tide-version-control/pkg/object"
	"github.com/harpreetsinghsandhu021/tide-version-control/pkg/repository"
	"github.com/spf13/cobra"
)

func newRevertCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "revert <commit>",
		Short: "Back out the change introduced by a commit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repository.Open(".")
			if err != nil {
				return err
			}

			target, err := r.ResolveRef(args[0])
			if err != nil {
				target = object.Hash(args[0])
			}

			name, email := r.Config.AuthorIdentity()
			if name == "" {
				name = os.Getenv("USER")
				if name == "" {
					name = "unknown"
				}
			}

			report, err := r.Revert(target, name, email)
			if err != nil {
				return err
			}

			return printMergeOutcome(cmd, report, "revert")
		},
	}
}
