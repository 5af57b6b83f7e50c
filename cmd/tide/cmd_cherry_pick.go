package main

import (
	"fmt"
	"os"

	"github.com/harpreetsinghsandhu021/tide-version-control/pkg/object"
	"github.com/harpreetsinghsandhu021/tide-version-control/pkg/repository"
	"github.com/spf13/cobra"
)

func newCherryPickCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cherry-pick <commit>",
		Short: "Apply the change introduced by a commit onto the current branch",
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

			report, err := r.CherryPick(target, name, email)
			if err != nil {
				return err
			}

			return printMergeOutcome(cmd, report, "cherry-pick")
		},
	}
}

func printMergeOutcome(cmd *cobra.Command, report *repository.MergeReport, op string) error {
	out := cmd.OutOrStdout()

	if report.AlreadyMerged {
		fmt.Fprintln(out, "nothing to do, already applied")
		return nil
	}

	if len(report.ConflictPaths) > 0 {
		fmt.Fprintf(out, "%s completed with %d conflict", op, len(report.ConflictPaths))
		if len(report.ConflictPaths) != 1 {
			fmt.Fprint(out, "s")
		}
		fmt.Fprintln(out)
		for _, p := range report.ConflictPaths {
			fmt.Fprintf(out, "  CONFLICT: %s\n", p)
		}
		fmt.Fprintf(out, "fix conflicts and run tide commit to continue the %s\n", op)
		return nil
	}

	short := string(report.MergeCommit)
	if len(short) > 8 {
		short = short[:8]
	}
	fmt.Fprintf(out, "[%s] %s\n", short, op)
	return nil
}
