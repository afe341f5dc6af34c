package ingest

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/roach88/scoreline/internal/event"
	"github.com/roach88/scoreline/internal/projection"
)

const tracerName = "github.com/roach88/scoreline/internal/ingest"

// MaxLineSize is the longest line Run accepts.
const MaxLineSize = 4 << 20

// ErrRead marks errors reading the input stream, as opposed to store errors.
var ErrRead = errors.New("read input")

// Ingester applies events files to the store through a projection
// Coordinator. Like the Coordinator it is not safe for concurrent use.
type Ingester struct {
	coord     *projection.Coordinator
	validator *event.Validator
	window    Window
	runIDs    RunIDGenerator
	logger    *slog.Logger
	tracer    trace.Tracer
}

// Option configures an Ingester.
type Option func(*Ingester)

// WithWindow sets the admissible time window. Default: DefaultWindow().
func WithWindow(w Window) Option {
	return func(in *Ingester) {
		in.window = w
	}
}

// WithRunIDs sets the run id generator. Default: UUIDv7Generator.
func WithRunIDs(g RunIDGenerator) Option {
	return func(in *Ingester) {
		in.runIDs = g
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(in *Ingester) {
		in.logger = l
	}
}

// WithTracer sets the tracer used for the per-run span.
func WithTracer(t trace.Tracer) Option {
	return func(in *Ingester) {
		in.tracer = t
	}
}

// New creates an Ingester feeding coord.
func New(coord *projection.Coordinator, opts ...Option) (*Ingester, error) {
	v, err := event.NewValidator()
	if err != nil {
		return nil, fmt.Errorf("create ingester: %w", err)
	}

	in := &Ingester{
		coord:     coord,
		validator: v,
		window:    DefaultWindow(),
		runIDs:    UUIDv7Generator{},
		logger:    slog.Default(),
		tracer:    otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(in)
	}
	return in, nil
}

// Run reads newline-delimited records from r and applies them in order.
//
// Skipped lines, rejected records and internal inconsistencies are counted
// in the Report and do not stop the run. Store failures, read errors and
// context cancellation do; the Report then covers the lines handled so far.
func (in *Ingester) Run(ctx context.Context, r io.Reader) (Report, error) {
	rep := newReport(in.runIDs.Generate())
	logger := in.logger.With("run_id", rep.RunID)

	ctx, span := in.tracer.Start(ctx, "ingest.run", trace.WithAttributes(
		attribute.String("run.id", rep.RunID),
	))
	defer span.End()

	logger.Info("ingest started", "window", in.window.String())

	err := in.run(ctx, logger, r, &rep)

	span.SetAttributes(
		attribute.Int("ingest.lines", rep.Lines),
		attribute.Int("ingest.committed", rep.Committed),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Error("ingest aborted", "lines", rep.Lines, "error", err)
		return rep, err
	}

	logger.Info("ingest complete",
		"lines", rep.Lines,
		"committed", rep.Committed,
		"conflicts", rep.Conflicts,
		"rejected", rep.Rejected,
		"skipped", rep.SkippedTotal(),
		"inconsistencies", rep.Inconsistencies,
	)
	return rep, nil
}

func (in *Ingester) run(ctx context.Context, logger *slog.Logger, r io.Reader, rep *Report) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), MaxLineSize)

	lineNo := 0
	for sc.Scan() {
		lineNo++
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("ingest: line %d: %w", lineNo, err)
		}

		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		rep.Lines++

		if err := in.applyLine(ctx, logger, lineNo, line, rep); err != nil {
			return fmt.Errorf("ingest: line %d: %w", lineNo, err)
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("ingest: line %d: %w: %w", lineNo+1, ErrRead, err)
	}
	return nil
}

func (in *Ingester) applyLine(ctx context.Context, logger *slog.Logger, lineNo int, line []byte, rep *Report) error {
	env, err := event.DecodeLine(line)
	if err != nil {
		reason := SkipMalformed
		var missing *event.MissingFieldError
		if errors.As(err, &missing) {
			reason = SkipMissingField
		}
		rep.skip(reason)
		logger.Warn("line skipped", "line", lineNo, "reason", string(reason), "error", err)
		return nil
	}

	if !in.window.Contains(env.Timestamp) {
		rep.skip(SkipOutOfWindow)
		logger.Debug("line skipped", "line", lineNo, "event_id", env.ID, "reason", string(SkipOutOfWindow))
		return nil
	}

	rec, err := in.validator.Decode(env)
	if err != nil {
		var invalid *event.ValidationError
		if !errors.As(err, &invalid) {
			return err
		}
		rep.record(projection.OutcomeMissingFields)
		logger.Warn("record rejected",
			"event_id", env.ID,
			"kind", env.Kind.String(),
			"outcome", string(projection.OutcomeMissingFields),
			"detail", invalid.Message,
		)
		return nil
	}

	res, err := in.coord.Apply(ctx, rec)
	if err != nil {
		if projection.IsInconsistency(err) {
			rep.Inconsistencies++
			return nil
		}
		return err
	}
	rep.record(res.Outcome)
	return nil
}
