package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SessionRow is a session marker joined with its user name and timestamp.
type SessionRow struct {
	EventID   string
	UserName  string
	Seq       int64
	IsStart   bool
	Timestamp time.Time
}

// Registration is a registration row with its references resolved.
type Registration struct {
	EventID  string
	UserName string
	DeviceOS string
	Country  string
}

// Counts holds row counts per table.
type Counts struct {
	Events        int64 `json:"events"`
	Users         int64 `json:"users"`
	Registrations int64 `json:"registrations"`
	Matches       int64 `json:"matches"`
	Sessions      int64 `json:"sessions"`
	Countries     int64 `json:"countries"`
	Devices       int64 `json:"devices"`
}

// Counts returns the number of rows in every table.
func (s *Store) Counts(ctx context.Context) (Counts, error) {
	var c Counts
	err := s.queryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM events),
			(SELECT COUNT(*) FROM users),
			(SELECT COUNT(*) FROM registrations),
			(SELECT COUNT(*) FROM matches),
			(SELECT COUNT(*) FROM sessions),
			(SELECT COUNT(*) FROM countries),
			(SELECT COUNT(*) FROM devices)
	`).Scan(&c.Events, &c.Users, &c.Registrations, &c.Matches, &c.Sessions, &c.Countries, &c.Devices)
	if err != nil {
		return Counts{}, fmt.Errorf("count rows: %w", err)
	}
	return c, nil
}

// HasEvent reports whether an event_id is recorded.
func (s *Store) HasEvent(ctx context.Context, eventID string) (bool, error) {
	var n int
	if err := s.queryRow(ctx, `SELECT COUNT(*) FROM events WHERE event_id = ?`, eventID).Scan(&n); err != nil {
		return false, fmt.Errorf("check event: %w", err)
	}
	return n > 0, nil
}

// ListMatches returns every match ordered by match_id.
func (s *Store) ListMatches(ctx context.Context) ([]Match, error) {
	rows, err := s.query(ctx, `SELECT `+matchColumns+` ORDER BY m.match_id ASC`)
	if err != nil {
		return nil, fmt.Errorf("query matches: %w", err)
	}
	defer rows.Close()

	matches := []Match{}
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate matches: %w", err)
	}
	return matches, nil
}

// GetMatch loads a single match outside a transaction.
func (s *Store) GetMatch(ctx context.Context, matchID string) (m Match, found bool, err error) {
	m, err = scanMatch(s.queryRow(ctx, `SELECT `+matchColumns+` WHERE m.match_id = ?`, matchID))
	if errors.Is(err, sql.ErrNoRows) {
		return Match{}, false, nil
	}
	if err != nil {
		return Match{}, false, fmt.Errorf("get match: %w", err)
	}
	return m, true, nil
}

// ListSessions returns every session marker ordered by user, sequence and
// time.
func (s *Store) ListSessions(ctx context.Context) ([]SessionRow, error) {
	rows, err := s.query(ctx, `
		SELECT s.event_id, u.user_name, s.session_user_id, s.is_start, e.event_timestamp
		FROM sessions s
		JOIN users u ON u.user_id = s.user_id
		JOIN events e ON e.event_id = s.event_id
		ORDER BY u.user_name ASC, s.session_user_id ASC, e.event_timestamp ASC, s.event_id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	sessions := []SessionRow{}
	for rows.Next() {
		var (
			row SessionRow
			ts  int64
		)
		if err := rows.Scan(&row.EventID, &row.UserName, &row.Seq, &row.IsStart, &ts); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		row.Timestamp = time.Unix(ts, 0).UTC()
		sessions = append(sessions, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

// ListRegistrations returns every registration ordered by user name.
func (s *Store) ListRegistrations(ctx context.Context) ([]Registration, error) {
	rows, err := s.query(ctx, `
		SELECT r.event_id, u.user_name, d.device_os, r.country_code
		FROM registrations r
		JOIN users u ON u.user_id = r.user_id
		JOIN devices d ON d.device_id = r.device_id
		ORDER BY u.user_name ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query registrations: %w", err)
	}
	defer rows.Close()

	regs := []Registration{}
	for rows.Next() {
		var r Registration
		if err := rows.Scan(&r.EventID, &r.UserName, &r.DeviceOS, &r.Country); err != nil {
			return nil, fmt.Errorf("scan registration: %w", err)
		}
		regs = append(regs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate registrations: %w", err)
	}
	return regs, nil
}

// ListUsers returns every user name in order.
func (s *Store) ListUsers(ctx context.Context) ([]string, error) {
	rows, err := s.query(ctx, `SELECT user_name FROM users ORDER BY user_name ASC`)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	users := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return users, nil
}

// Snapshot is the complete derived state, keyed by natural keys only so two
// snapshots compare equal regardless of surrogate ids.
type Snapshot struct {
	Users         []string
	Registrations []Registration
	Matches       []Match
	Sessions      []SessionRow
}

// Snapshot reads the complete derived state.
func (s *Store) Snapshot(ctx context.Context) (Snapshot, error) {
	var (
		snap Snapshot
		err  error
	)
	if snap.Users, err = s.ListUsers(ctx); err != nil {
		return Snapshot{}, err
	}
	if snap.Registrations, err = s.ListRegistrations(ctx); err != nil {
		return Snapshot{}, err
	}
	if snap.Matches, err = s.ListMatches(ctx); err != nil {
		return Snapshot{}, err
	}
	if snap.Sessions, err = s.ListSessions(ctx); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}
