package projection

import (
	"context"
	"time"

	"github.com/roach88/scoreline/internal/event"
	"github.com/roach88/scoreline/internal/store"
)

// SessionInterval is the heartbeat cadence clients follow. A heartbeat
// continues a session only when it lands exactly one interval after one of
// the user's recorded markers.
const SessionInterval = time.Minute

// projectSessionPing folds a heartbeat into the user's sessions.
func projectSessionPing(ctx context.Context, tx *store.Tx, rec event.Record, p event.SessionPing) (Verdict, error) {
	userID, found, err := tx.UserID(ctx, p.UserName)
	if err != nil {
		return Verdict{}, err
	}
	if !found {
		return reject(OutcomeUnregisteredUser, "user %q is not registered and cannot have a session", p.UserName), nil
	}

	seq, found, err := tx.FindAdjacentPing(ctx, userID, rec.Timestamp.Add(-SessionInterval))
	if err != nil {
		return Verdict{}, err
	}

	if !found {
		seq, err = tx.NextSessionSeq(ctx, userID)
		if err != nil {
			return Verdict{}, err
		}
		return insertPing(ctx, tx, rec, userID, seq, true)
	}

	ids, err := tx.SessionEventIDs(ctx, userID, seq)
	if err != nil {
		return Verdict{}, err
	}
	// Only the start and the newest tail may persist: the previous tail is
	// replaced by this heartbeat.
	if len(ids) > 1 {
		tail := ids[len(ids)-1]
		deleted, err := tx.DeleteEvent(ctx, tail)
		if err != nil {
			return Verdict{}, err
		}
		if !deleted {
			return Verdict{}, &InconsistencyError{EventID: rec.ID, Op: "delete session tail " + tail}
		}
	}

	return insertPing(ctx, tx, rec, userID, seq, false)
}

func insertPing(ctx context.Context, tx *store.Tx, rec event.Record, userID, seq int64, isStart bool) (Verdict, error) {
	inserted, err := tx.InsertSessionPing(ctx, rec.ID, userID, seq, isStart)
	if err != nil {
		return Verdict{}, err
	}
	if !inserted {
		return Verdict{}, &InconsistencyError{EventID: rec.ID, Op: "insert session ping"}
	}
	return accept(), nil
}
