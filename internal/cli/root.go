package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string
	Database   string // DSN override: SQLite path or PostgreSQL URL
	Driver     string // driver override: sqlite | postgres
	Trace      bool
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the scoreline CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "scoreline",
		Short: "scoreline - telemetry event projection",
		Long: `Project a game client's telemetry events into relational state.

Events files are newline-delimited JSON. Every record is applied in its own
transaction; duplicates are no-ops and invalid records are rejected without
touching the store. A repair pass removes unfinished matches and unpaired
sessions once a stream has been consumed.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "path to YAML config file")
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "store DSN: SQLite path or postgres:// URL (overrides config)")
	cmd.PersistentFlags().StringVar(&opts.Driver, "driver", "", "store driver: sqlite or postgres (overrides config)")
	cmd.PersistentFlags().BoolVar(&opts.Trace, "trace", false, "write OpenTelemetry spans to stderr")

	// Add subcommands
	cmd.AddCommand(NewCountriesCommand(opts))
	cmd.AddCommand(NewIngestCommand(opts))
	cmd.AddCommand(NewRepairCommand(opts))
	cmd.AddCommand(NewVerifyCommand(opts))
	cmd.AddCommand(NewRunCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
