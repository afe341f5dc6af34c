package projection

import (
	"errors"
	"fmt"

	"github.com/roach88/scoreline/internal/event"
)

// Outcome is the discriminated result of applying one record.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"

	// Conflicts: the record is already reflected in the store.
	OutcomeDuplicateEvent Outcome = "duplicate-event"
	OutcomeDuplicateUser  Outcome = "duplicate-user"
	OutcomeMatchExists    Outcome = "match-exists"

	// Rejections.
	OutcomeMissingFields       Outcome = "missing-fields"
	OutcomeUnresolvedReference Outcome = "unresolved-reference"
	OutcomeSelfMatch           Outcome = "self-match"
	OutcomePartialGoals        Outcome = "partial-goals"
	OutcomeEndWithoutStart     Outcome = "end-without-start"
	OutcomeMatchAlreadyOver    Outcome = "match-already-over"
	OutcomeParticipantMismatch Outcome = "participant-mismatch"
	OutcomeEndBeforeStart      Outcome = "end-before-start"
	OutcomeUnregisteredUser    Outcome = "unregistered-user"
)

// IsConflict reports whether the outcome is benign idempotency rather than a
// problem with the record.
func (o Outcome) IsConflict() bool {
	switch o {
	case OutcomeDuplicateEvent, OutcomeDuplicateUser, OutcomeMatchExists:
		return true
	}
	return false
}

// Verdict is what a projector reports back to the coordinator.
type Verdict struct {
	Outcome Outcome
	Detail  string
}

func accept() Verdict {
	return Verdict{Outcome: OutcomeSuccess}
}

func reject(o Outcome, format string, args ...any) Verdict {
	return Verdict{Outcome: o, Detail: fmt.Sprintf(format, args...)}
}

// Result describes how one record was applied.
type Result struct {
	EventID string
	Kind    event.Kind
	Outcome Outcome
	Detail  string
}

// Committed reports whether the record's effects were committed.
func (r Result) Committed() bool {
	return r.Outcome == OutcomeSuccess
}

// InconsistencyError reports a write that earlier checks in the same
// transaction guaranteed would succeed but did not. The record is rolled
// back; it does not stop ingestion.
type InconsistencyError struct {
	EventID string
	Op      string
}

func (e *InconsistencyError) Error() string {
	return fmt.Sprintf("internal inconsistency: %s wrote nothing for event %s", e.Op, e.EventID)
}

// IsInconsistency returns true if err is or wraps an *InconsistencyError.
func IsInconsistency(err error) bool {
	var ie *InconsistencyError
	return errors.As(err, &ie)
}
