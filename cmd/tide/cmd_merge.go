package main

import (
	"fmt"
	"os"

	"github.com/harpreetsinghsandhu021/tide-version-control/pkg/repository"
	"github.com/spf13/cobra"
)

func newMergeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "merge <branch>",
		Short: "Merge a branch into the current branch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			branchName := args[0]

			r, err := repository.Open(".")
			if err != nil {
				return err
			}

			current, err := r.CurrentBranch()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "merging %s into %s...\n", branchName, current)

			name, email := r.Config.AuthorIdentity()
			if name == "" {
				name = os.Getenv("USER")
				if name == "" {
					name = "unknown"
				}
			}

			report, err := r.Merge(branchName, name, email)
			if err != nil {
				return err
			}

			if report.AlreadyMerged {
				fmt.Fprintln(out, "already up to date")
				return nil
			}
			if report.FastForward {
				fmt.Fprintf(out, "fast-forwarded %s to %s\n", current, branchName)
				return nil
			}

			for _, p := range report.CleanPaths {
				fmt.Fprintf(out, "  %s: clean\n", p)
			}
			for _, p := range report.CollisionPaths {
				fmt.Fprintf(out, "  %s: name collision, left untracked\n", p)
			}

			if len(report.ConflictPaths) > 0 {
				fmt.Fprintf(out, "merge completed with %d conflict", len(report.ConflictPaths))
				if len(report.ConflictPaths) != 1 {
					fmt.Fprint(out, "s")
				}
				fmt.Fprintln(out)
				for _, p := range report.ConflictPaths {
					fmt.Fprintf(out, "  CONFLICT: %s\n", p)
				}
				fmt.Fprintln(out, "fix conflicts and run tide commit")
			} else {
				fmt.Fprintln(out, "merge completed cleanly")
				short := string(report.MergeCommit)
				if len(short) > 8 {
					short = short[:8]
				}
				fmt.Fprintf(out, "[%s %s] Merge branch '%s'\n", current, short, branchName)
			}

			return nil
		},
	}
}
