package cli

import (
	"context"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/scoreline/internal/config"
	"github.com/roach88/scoreline/internal/store"
	"github.com/roach88/scoreline/internal/telemetry"
)

// app is what every command needs once its flags are parsed: configuration,
// a logger, an open store and, with --trace, a tracer provider.
type app struct {
	cfg    config.Config
	store  *store.Store
	logger *slog.Logger
	out    *OutputFormatter

	shutdownTracing func(context.Context) error
}

// newFormatter builds the formatter for cmd's output stream.
func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:  opts.Format,
		Writer:  cmd.OutOrStdout(),
		Verbose: opts.Verbose,
	}
}

// openApp loads configuration, applies flag overrides, configures logging
// and tracing, opens the store and seeds the device reference rows. The
// returned error is already reported through the formatter.
func openApp(ctx context.Context, opts *RootOptions, cmd *cobra.Command) (*app, error) {
	out := newFormatter(opts, cmd)

	// Configure logging based on verbose flag
	logLevel := slog.LevelInfo
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}
	handler := slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
		Level: logLevel,
	})
	logger := slog.New(handler)

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, out.Fail(ExitCommandError, CodeConfig, "failed to load config", err)
	}
	if opts.Driver != "" {
		cfg.Database.Driver = opts.Driver
	}
	storeOpts, err := cfg.Database.StoreOptions()
	if err != nil {
		return nil, out.Fail(ExitCommandError, CodeConfig, "invalid store settings", err)
	}
	if opts.Database != "" {
		storeOpts.DSN = opts.Database
		if opts.Driver == "" && isPostgresURL(opts.Database) {
			storeOpts.Driver = store.DriverPostgres
		}
	}

	a := &app{cfg: cfg, logger: logger, out: out}

	if opts.Trace || cfg.Trace {
		shutdown, err := telemetry.Init(ctx, telemetry.Config{Export: true, Writer: cmd.ErrOrStderr()})
		if err != nil {
			return nil, out.Fail(ExitCommandError, CodeConfig, "failed to start tracing", err)
		}
		a.shutdownTracing = shutdown
	}

	logger.Debug("opening store", "driver", string(storeOpts.Driver))
	st, err := store.Open(ctx, storeOpts)
	if err != nil {
		a.close(ctx)
		return nil, out.Fail(ExitCommandError, CodeStore, "failed to open store", err)
	}
	a.store = st

	added, err := st.SeedDevices(ctx, cfg.Devices...)
	if err != nil {
		a.close(ctx)
		return nil, out.Fail(ExitCommandError, CodeStore, "failed to seed devices", err)
	}
	logger.Debug("store ready", "devices_added", added)

	return a, nil
}

func (a *app) close(ctx context.Context) {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Error("error closing store", "error", err)
		}
	}
	if a.shutdownTracing != nil {
		// Flushes spans even when the command's context was cancelled.
		if err := a.shutdownTracing(context.WithoutCancel(ctx)); err != nil {
			a.logger.Error("error flushing traces", "error", err)
		}
	}
}

func isPostgresURL(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}
