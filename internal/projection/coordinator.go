package projection

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/roach88/scoreline/internal/event"
	"github.com/roach88/scoreline/internal/store"
)

const tracerName = "github.com/roach88/scoreline/internal/projection"

// Coordinator applies records to the store, one transaction per record.
//
// A Coordinator is not safe for concurrent use. Records must be applied in
// stream order: the match and session state machines read what earlier
// records committed.
type Coordinator struct {
	store  *store.Store
	logger *slog.Logger
	tracer trace.Tracer
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger outcomes are reported to.
// Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) {
		c.logger = l
	}
}

// WithTracer sets the tracer used for per-record spans.
// Default: the global OpenTelemetry tracer provider.
func WithTracer(t trace.Tracer) Option {
	return func(c *Coordinator) {
		c.tracer = t
	}
}

// NewCoordinator creates a Coordinator over s.
func NewCoordinator(s *store.Store, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:  s,
		logger: slog.Default(),
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Apply records the event and runs its projector atomically.
//
// The returned error is non-nil for *InconsistencyError (the record was
// rolled back, processing may continue) and for store failures (processing
// should stop). Every other condition is reported through Result.Outcome.
func (c *Coordinator) Apply(ctx context.Context, rec event.Record) (Result, error) {
	ctx, span := c.tracer.Start(ctx, "projection.apply", trace.WithAttributes(
		attribute.String("event.id", rec.ID),
		attribute.String("event.kind", rec.Kind.String()),
	))
	defer span.End()

	res, err := c.apply(ctx, rec)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if IsInconsistency(err) {
			c.logger.Error("record rolled back", "event_id", rec.ID, "kind", rec.Kind.String(), "error", err)
		}
		return res, err
	}

	span.SetAttributes(attribute.String("projection.outcome", string(res.Outcome)))
	c.report(res)
	return res, nil
}

func (c *Coordinator) apply(ctx context.Context, rec event.Record) (Result, error) {
	res := Result{EventID: rec.ID, Kind: rec.Kind}

	tx, err := c.store.Begin(ctx)
	if err != nil {
		return res, fmt.Errorf("apply %s: %w", rec.ID, err)
	}
	defer tx.Rollback() // No-op if committed

	inserted, err := tx.InsertEvent(ctx, rec.ID, rec.Timestamp, rec.Kind.String())
	if err != nil {
		return res, fmt.Errorf("apply %s: %w", rec.ID, err)
	}
	if !inserted {
		res.Outcome = OutcomeDuplicateEvent
		res.Detail = "event already recorded"
		return res, nil
	}

	verdict, err := dispatch(ctx, tx, rec)
	if err != nil {
		if IsInconsistency(err) {
			return res, err
		}
		return res, fmt.Errorf("apply %s: %w", rec.ID, err)
	}
	res.Outcome = verdict.Outcome
	res.Detail = verdict.Detail

	if verdict.Outcome != OutcomeSuccess {
		return res, nil
	}

	if err := tx.Commit(); err != nil {
		return res, fmt.Errorf("apply %s: %w", rec.ID, err)
	}
	return res, nil
}

// dispatch runs the projector for the record's payload variant.
func dispatch(ctx context.Context, tx *store.Tx, rec event.Record) (Verdict, error) {
	switch p := rec.Payload.(type) {
	case event.Registration:
		return projectRegistration(ctx, tx, rec, p)
	case event.Match:
		return projectMatch(ctx, tx, rec, p)
	case event.SessionPing:
		return projectSessionPing(ctx, tx, rec, p)
	case event.Neutral:
		return accept(), nil
	default:
		return Verdict{}, fmt.Errorf("no projector for payload %T", p)
	}
}

func (c *Coordinator) report(res Result) {
	attrs := []any{"event_id", res.EventID, "kind", res.Kind.String(), "outcome", string(res.Outcome)}
	if res.Detail != "" {
		attrs = append(attrs, "detail", res.Detail)
	}

	switch {
	case res.Outcome == OutcomeSuccess:
		c.logger.Debug("record committed", attrs...)
	case res.Outcome.IsConflict():
		c.logger.Info("record already applied", attrs...)
	default:
		c.logger.Warn("record rejected", attrs...)
	}
}
