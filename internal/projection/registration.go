package projection

import (
	"context"

	"github.com/roach88/scoreline/internal/event"
	"github.com/roach88/scoreline/internal/store"
)

// projectRegistration creates the user and its registration. The first
// registration of a name wins; later ones are rejected whole.
func projectRegistration(ctx context.Context, tx *store.Tx, rec event.Record, p event.Registration) (Verdict, error) {
	userID, inserted, err := tx.InsertUser(ctx, p.UserName)
	if err != nil {
		return Verdict{}, err
	}
	if !inserted {
		return reject(OutcomeDuplicateUser, "user %q is already registered", p.UserName), nil
	}

	inserted, err = tx.InsertRegistration(ctx, rec.ID, userID, p.DeviceOS, p.Country)
	if err != nil {
		return Verdict{}, err
	}
	if !inserted {
		return reject(OutcomeUnresolvedReference, "device %q or country %q does not exist", p.DeviceOS, p.Country), nil
	}

	return accept(), nil
}
