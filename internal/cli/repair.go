package cli

import (
	"github.com/spf13/cobra"
)

// NewRepairCommand creates the repair command.
func NewRepairCommand(rootOpts *RootOptions) *cobra.Command {
	var vacuum bool

	cmd := &cobra.Command{
		Use:   "repair",
		Short: "Delete unfinished matches and unpaired sessions",
		Long: `Run the repair pass on its own: delete the start event of every match
that never ended, and every event of a session that is not exactly one
start marker and one end marker. Safe to run at any time.

Example:
  scoreline repair --db ./scoreline.db --vacuum`,
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

			rep, err := runRepair(a, cmd, vacuum)
			if err != nil {
				return err
			}
			return a.out.Success(repairSummary{Repair: *rep})
		},
	}

	cmd.Flags().BoolVar(&vacuum, "vacuum", false, "reclaim storage after deleting")

	return cmd
}
