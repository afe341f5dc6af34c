package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/roach88/scoreline/internal/ingest"
	"github.com/roach88/scoreline/internal/projection"
	"github.com/roach88/scoreline/internal/repair"
	"github.com/roach88/scoreline/internal/source"
)

// IngestOptions holds flags for the ingest command.
type IngestOptions struct {
	*RootOptions
	From     string
	To       string
	NoRepair bool
	Vacuum   bool
}

// NewIngestCommand creates the ingest command.
func NewIngestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &IngestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "ingest <file>",
		Short: "Apply an events file to the store",
		Long: `Apply a newline-delimited JSON events file, one record per transaction,
then run the repair pass.

The file may be a local path, - for standard input, or s3://bucket/key.
Names ending in .sz are read as snappy framed streams. Records outside the
admissible window are skipped.

Example:
  scoreline ingest --db ./scoreline.db events.jsonl
  scoreline ingest --from 2024-10-07 --to 2024-11-03 s3://telemetry/events.jsonl.sz
  zcat events.gz | scoreline ingest --no-repair -`,
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

			var sum runSummary
			if sum.Ingest, err = ingestFile(a, cmd, opts, args[0]); err != nil {
				return err
			}
			if !opts.NoRepair {
				if sum.Repair, err = runRepair(a, cmd, opts.Vacuum); err != nil {
					return err
				}
			}
			return a.out.Success(sum)
		},
	}

	cmd.Flags().StringVar(&opts.From, "from", "", "window start, date or RFC 3339 (overrides config)")
	cmd.Flags().StringVar(&opts.To, "to", "", "window end, date or RFC 3339 (overrides config)")
	cmd.Flags().BoolVar(&opts.NoRepair, "no-repair", false, "skip the repair pass")
	cmd.Flags().BoolVar(&opts.Vacuum, "vacuum", false, "reclaim storage after repair")

	return cmd
}

func ingestFile(a *app, cmd *cobra.Command, opts *IngestOptions, name string) (*ingest.Report, error) {
	ctx := cmd.Context()

	window := a.cfg.Window
	if opts.From != "" {
		window.From = opts.From
	}
	if opts.To != "" {
		window.To = opts.To
	}
	from, to, err := window.Bounds()
	if err != nil {
		return nil, a.out.Fail(ExitCommandError, CodeConfig, "invalid window", err)
	}

	rc, err := source.NewOpener(a.cfg.S3.S3Config()).WithStdin(cmd.InOrStdin()).Open(ctx, name)
	if err != nil {
		return nil, a.out.Fail(ExitCommandError, CodeInput, "failed to open events file", err)
	}
	defer rc.Close()

	in, err := ingest.New(
		projection.NewCoordinator(a.store, projection.WithLogger(a.logger)),
		ingest.WithWindow(ingest.Window{From: from, To: to}),
		ingest.WithLogger(a.logger),
	)
	if err != nil {
		return nil, a.out.Fail(ExitCommandError, CodeConfig, "failed to start ingest", err)
	}

	rep, err := in.Run(ctx, rc)
	if err != nil {
		code := CodeStore
		if errors.Is(err, ingest.ErrRead) {
			code = CodeInput
		}
		return &rep, a.out.Fail(ExitCommandError, code, "ingest aborted", err)
	}
	return &rep, nil
}

func runRepair(a *app, cmd *cobra.Command, vacuum bool) (*repair.Report, error) {
	rep, err := repair.Run(cmd.Context(), a.store, repair.Options{Vacuum: vacuum, Logger: a.logger})
	if err != nil {
		return nil, a.out.Fail(ExitCommandError, CodeStore, "repair failed", err)
	}
	return &rep, nil
}
