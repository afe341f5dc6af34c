package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/scoreline/internal/ingest"
	"github.com/roach88/scoreline/internal/source"
)

// NewCountriesCommand creates the countries command.
func NewCountriesCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "countries <file>",
		Short: "Load the country/timezone reference file",
		Long: `Load newline-delimited {"country", "timezone"} records into the
countries table. Codes are upper-cased; codes already present are left
untouched, so the file can be loaded any number of times.

Example:
  scoreline countries --db ./scoreline.db timezones.jsonl
  scoreline countries s3://reference/timezones.jsonl.sz`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, rootOpts, cmd)
			if err != nil {
				return err
			}
			defer a.close(ctx)

			rep, err := loadCountries(a, cmd, args[0])
			if err != nil {
				return err
			}
			return a.out.Success(countriesSummary{File: args[0], Countries: rep})
		},
	}
}

func loadCountries(a *app, cmd *cobra.Command, name string) (ingest.CountryReport, error) {
	ctx := cmd.Context()
	rc, err := source.NewOpener(a.cfg.S3.S3Config()).WithStdin(cmd.InOrStdin()).Open(ctx, name)
	if err != nil {
		return ingest.CountryReport{}, a.out.Fail(ExitCommandError, CodeInput, "failed to open countries file", err)
	}
	defer rc.Close()

	rep, err := ingest.LoadCountries(ctx, a.store, rc, a.logger)
	if err != nil {
		return rep, a.out.Fail(ExitCommandError, CodeStore, "failed to load countries", err)
	}
	return rep, nil
}
