// Package repair removes partial state that ingestion leaves behind once a
// stream has been fully applied: matches that never ended and sessions that
// are not a single start/end pair.
package repair

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/scoreline/internal/store"
)

// Options configure Run.
type Options struct {
	// Vacuum reclaims storage after the deletions.
	Vacuum bool
	Logger *slog.Logger
}

// Report counts the event rows each rule deleted.
type Report struct {
	UnfinishedMatches  int64 `json:"unfinished_matches"`
	IncompleteSessions int64 `json:"incomplete_sessions"`
	Vacuumed           bool  `json:"vacuumed"`
}

// Deleted returns the total number of event rows removed.
func (r Report) Deleted() int64 {
	return r.UnfinishedMatches + r.IncompleteSessions
}

// Run applies both repair rules. Running it twice in a row deletes nothing
// the second time.
func Run(ctx context.Context, s *store.Store, opts Options) (Report, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var (
		rep Report
		err error
	)

	rep.UnfinishedMatches, err = s.DeleteUnfinishedMatches(ctx)
	if err != nil {
		return rep, fmt.Errorf("repair: %w", err)
	}
	logger.Info("deleted unfinished matches", "events", rep.UnfinishedMatches)

	rep.IncompleteSessions, err = s.DeleteIncompleteSessions(ctx)
	if err != nil {
		return rep, fmt.Errorf("repair: %w", err)
	}
	logger.Info("deleted incomplete sessions", "events", rep.IncompleteSessions)

	if opts.Vacuum {
		if err := s.Vacuum(ctx); err != nil {
			return rep, fmt.Errorf("repair: %w", err)
		}
		rep.Vacuumed = true
		logger.Debug("vacuum complete")
	}

	return rep, nil
}
