package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/scoreline/internal/verify"
)

// NewVerifyCommand creates the verify command.
func NewVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Check committed state against its invariants",
		Long: `Read the store and report every match whose end and goals disagree,
every self-match, every user without exactly one registration and every
session that is not one start followed by one end.

Exits 1 when a violation is found. Sessions are only expected to be paired
after the repair pass.

Example:
  scoreline verify --db ./scoreline.db --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, rootOpts, cmd)
			if err != nil {
				return err
			}
			defer a.close(ctx)

			rep, err := verify.Check(ctx, a.store)
			if err != nil {
				return a.out.Fail(ExitCommandError, CodeStore, "verify failed", err)
			}

			if !rep.OK() {
				if a.out.Format == "json" {
					_ = a.out.Error(CodeViolations, "invariant violations found", rep)
				} else {
					fmt.Fprintln(a.out.Writer, verifySummary{Report: rep})
				}
				return NewExitError(ExitFailure, fmt.Sprintf("%d invariant violations", len(rep.Violations)))
			}
			return a.out.Success(verifySummary{Report: rep})
		},
	}
}
