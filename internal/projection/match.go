package projection

import (
	"context"

	"github.com/roach88/scoreline/internal/event"
	"github.com/roach88/scoreline/internal/store"
)

// projectMatch drives the Started -> Ended lifecycle of one match_id.
func projectMatch(ctx context.Context, tx *store.Tx, rec event.Record, p event.Match) (Verdict, error) {
	if p.Home == p.Away {
		return reject(OutcomeSelfMatch, "user %q cannot play against themselves", p.Home), nil
	}
	if p.PartialGoals() {
		return reject(OutcomePartialGoals, "match %s: either both goal counts are set or neither", p.MatchID), nil
	}

	if p.Ending() {
		return endMatch(ctx, tx, rec, p)
	}
	return startMatch(ctx, tx, rec, p)
}

func startMatch(ctx context.Context, tx *store.Tx, rec event.Record, p event.Match) (Verdict, error) {
	homeID, found, err := tx.UserID(ctx, p.Home)
	if err != nil {
		return Verdict{}, err
	}
	if !found {
		return reject(OutcomeUnresolvedReference, "home user %q is not registered", p.Home), nil
	}

	awayID, found, err := tx.UserID(ctx, p.Away)
	if err != nil {
		return Verdict{}, err
	}
	if !found {
		return reject(OutcomeUnresolvedReference, "away user %q is not registered", p.Away), nil
	}

	inserted, err := tx.InsertMatchStart(ctx, string(p.MatchID), rec.ID, homeID, awayID)
	if err != nil {
		return Verdict{}, err
	}
	if !inserted {
		return reject(OutcomeMatchExists, "match %s already started", p.MatchID), nil
	}
	return accept(), nil
}

func endMatch(ctx context.Context, tx *store.Tx, rec event.Record, p event.Match) (Verdict, error) {
	m, found, err := tx.GetMatch(ctx, string(p.MatchID))
	if err != nil {
		return Verdict{}, err
	}
	if !found {
		return reject(OutcomeEndWithoutStart, "match %s has no start", p.MatchID), nil
	}
	if m.Ended() {
		return reject(OutcomeMatchAlreadyOver, "match %s already ended with event %s", p.MatchID, m.EndEventID), nil
	}
	// Participants are fixed by the start; a mismatch is refused, not merged.
	if m.Home != p.Home || m.Away != p.Away {
		return reject(OutcomeParticipantMismatch, "match %s started as %s vs %s, ended as %s vs %s",
			p.MatchID, m.Home, m.Away, p.Home, p.Away), nil
	}
	if rec.Timestamp.Before(m.StartedAt) {
		return reject(OutcomeEndBeforeStart, "match %s ends at %d before its start at %d",
			p.MatchID, rec.Timestamp.Unix(), m.StartedAt.Unix()), nil
	}

	updated, err := tx.EndMatch(ctx, string(p.MatchID), rec.ID, *p.HomeGoals, *p.AwayGoals)
	if err != nil {
		return Verdict{}, err
	}
	if !updated {
		return Verdict{}, &InconsistencyError{EventID: rec.ID, Op: "end match " + string(p.MatchID)}
	}
	return accept(), nil
}
