package store

import (
	"context"
	"fmt"
	"strings"
)

// InsertCountry adds a country reference row keyed on the upper-cased code.
// Uses ON CONFLICT(country_code) DO NOTHING: inserted is false for a code
// that is already loaded.
func (s *Store) InsertCountry(ctx context.Context, code, timezone string) (inserted bool, err error) {
	res, err := s.exec(ctx, `
		INSERT INTO countries (country_code, timezone)
		VALUES (?, ?)
		ON CONFLICT(country_code) DO NOTHING
	`, strings.ToUpper(code), timezone)
	if err != nil {
		return false, fmt.Errorf("insert country: %w", err)
	}
	return affected(res)
}

// SeedDevices makes sure a device reference row exists for each OS name.
// Names are stored lower-cased. Returns how many rows were new.
func (s *Store) SeedDevices(ctx context.Context, names ...string) (int, error) {
	added := 0
	for _, name := range names {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		res, err := s.exec(ctx, `
			INSERT INTO devices (device_os)
			VALUES (?)
			ON CONFLICT(device_os) DO NOTHING
		`, name)
		if err != nil {
			return added, fmt.Errorf("seed device %q: %w", name, err)
		}
		ok, err := affected(res)
		if err != nil {
			return added, fmt.Errorf("seed device %q: %w", name, err)
		}
		if ok {
			added++
		}
	}
	return added, nil
}

// DeleteUnfinishedMatches deletes the start event of every match that never
// ended. The match rows go with them through the cascade.
func (s *Store) DeleteUnfinishedMatches(ctx context.Context) (int64, error) {
	res, err := s.exec(ctx, `
		DELETE FROM events
		WHERE event_id IN (
			SELECT event_id_start FROM matches WHERE event_id_end IS NULL
		)
	`)
	if err != nil {
		return 0, fmt.Errorf("delete unfinished matches: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete unfinished matches: rows affected: %w", err)
	}
	return n, nil
}

// DeleteIncompleteSessions deletes every event of a (user, session) group
// that does not hold exactly one start marker and exactly one end marker.
func (s *Store) DeleteIncompleteSessions(ctx context.Context) (int64, error) {
	res, err := s.exec(ctx, `
		DELETE FROM events
		WHERE event_id IN (
			SELECT s.event_id
			FROM sessions s
			JOIN (
				SELECT user_id, session_user_id
				FROM sessions
				GROUP BY user_id, session_user_id
				HAVING SUM(CASE WHEN is_start THEN 1 ELSE 0 END) <> 1
					OR SUM(CASE WHEN is_start THEN 0 ELSE 1 END) <> 1
			) bad ON bad.user_id = s.user_id AND bad.session_user_id = s.session_user_id
		)
	`)
	if err != nil {
		return 0, fmt.Errorf("delete incomplete sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete incomplete sessions: rows affected: %w", err)
	}
	return n, nil
}

// Vacuum reclaims the space left by deleted events. It cannot run inside a
// transaction.
func (s *Store) Vacuum(ctx context.Context) error {
	stmts := []string{"VACUUM"}
	if s.driver == DriverPostgres {
		stmts = []string{"VACUUM FULL events", "VACUUM FULL matches", "VACUUM FULL sessions"}
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("vacuum: %w", err)
		}
	}
	return nil
}
