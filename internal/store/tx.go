package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Tx is one atomic unit of work. Projectors receive a Tx and never see the
// Store; the coordinator decides whether it commits.
type Tx struct {
	tx     *sql.Tx
	driver Driver
}

// Begin opens a transaction.
func (s *Store) Begin(ctx context.Context) (*Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	return &Tx{tx: tx, driver: s.driver}, nil
}

// Commit commits the transaction.
func (t *Tx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Rollback discards the transaction. It is a no-op after Commit, so callers
// defer it unconditionally.
func (t *Tx) Rollback() error {
	err := t.tx.Rollback()
	if err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("rollback: %w", err)
	}
	return nil
}

func (t *Tx) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return t.tx.ExecContext(ctx, t.driver.rebind(query), args...)
}

func (t *Tx) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return t.tx.QueryContext(ctx, t.driver.rebind(query), args...)
}

func (t *Tx) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return t.tx.QueryRowContext(ctx, t.driver.rebind(query), args...)
}

// affected reports whether a write touched at least one row.
func affected(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// InsertEvent records an event. Uses ON CONFLICT(event_id) DO NOTHING:
// inserted is false when the event_id was already recorded.
func (t *Tx) InsertEvent(ctx context.Context, eventID string, ts time.Time, eventType string) (inserted bool, err error) {
	res, err := t.exec(ctx, `
		INSERT INTO events (event_id, event_timestamp, event_type)
		VALUES (?, ?, ?)
		ON CONFLICT(event_id) DO NOTHING
	`, eventID, ts.Unix(), eventType)
	if err != nil {
		return false, fmt.Errorf("insert event: %w", err)
	}
	return affected(res)
}

// DeleteEvent removes an event and, through cascades, every derived row that
// references it.
func (t *Tx) DeleteEvent(ctx context.Context, eventID string) (deleted bool, err error) {
	res, err := t.exec(ctx, `DELETE FROM events WHERE event_id = ?`, eventID)
	if err != nil {
		return false, fmt.Errorf("delete event: %w", err)
	}
	return affected(res)
}

// InsertUser creates a user identity. inserted is false when the name is
// already taken; userID is only meaningful when inserted is true.
func (t *Tx) InsertUser(ctx context.Context, name string) (userID int64, inserted bool, err error) {
	err = t.queryRow(ctx, `
		INSERT INTO users (user_name)
		VALUES (?)
		ON CONFLICT(user_name) DO NOTHING
		RETURNING user_id
	`, name).Scan(&userID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("insert user: %w", err)
	}
	return userID, true, nil
}

// UserID resolves a user name.
func (t *Tx) UserID(ctx context.Context, name string) (userID int64, found bool, err error) {
	err = t.queryRow(ctx, `SELECT user_id FROM users WHERE user_name = ?`, name).Scan(&userID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("lookup user: %w", err)
	}
	return userID, true, nil
}

// InsertRegistration joins a user to a device and a country. Device names
// are matched lower-cased, country codes upper-cased. inserted is false when
// either reference row does not exist.
func (t *Tx) InsertRegistration(ctx context.Context, eventID string, userID int64, deviceOS, country string) (inserted bool, err error) {
	res, err := t.exec(ctx, `
		INSERT INTO registrations (event_id, user_id, device_id, country_code)
		SELECT CAST(? AS TEXT), CAST(? AS BIGINT), d.device_id, c.country_code
		FROM devices d, countries c
		WHERE d.device_os = LOWER(?) AND c.country_code = UPPER(?)
		ON CONFLICT(event_id) DO NOTHING
	`, eventID, userID, deviceOS, country)
	if err != nil {
		return false, fmt.Errorf("insert registration: %w", err)
	}
	return affected(res)
}

// InsertMatchStart creates a match in the Started state. Uses
// ON CONFLICT(match_id) DO NOTHING: inserted is false when the match exists.
func (t *Tx) InsertMatchStart(ctx context.Context, matchID, eventID string, homeUserID, awayUserID int64) (inserted bool, err error) {
	res, err := t.exec(ctx, `
		INSERT INTO matches (match_id, event_id_start, home_user_id, away_user_id)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(match_id) DO NOTHING
	`, matchID, eventID, homeUserID, awayUserID)
	if err != nil {
		return false, fmt.Errorf("insert match start: %w", err)
	}
	return affected(res)
}

// Match is a match row joined with its participants' names and its start
// time.
type Match struct {
	MatchID      string
	StartEventID string
	EndEventID   string // empty while Started
	Home         string
	Away         string
	StartedAt    time.Time
	HomeGoals    *int64
	AwayGoals    *int64
}

// Ended reports whether the match reached its terminal state.
func (m Match) Ended() bool {
	return m.EndEventID != ""
}

const matchColumns = `
	m.match_id, m.event_id_start, m.event_id_end, h.user_name, a.user_name,
	e.event_timestamp, m.home_goals_scored, m.away_goals_scored
	FROM matches m
	JOIN users h ON h.user_id = m.home_user_id
	JOIN users a ON a.user_id = m.away_user_id
	JOIN events e ON e.event_id = m.event_id_start`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMatch(row rowScanner) (Match, error) {
	var (
		m         Match
		end       sql.NullString
		startedAt int64
		home      sql.NullInt64
		away      sql.NullInt64
	)
	if err := row.Scan(&m.MatchID, &m.StartEventID, &end, &m.Home, &m.Away, &startedAt, &home, &away); err != nil {
		return Match{}, err
	}
	m.EndEventID = end.String
	m.StartedAt = time.Unix(startedAt, 0).UTC()
	if home.Valid {
		m.HomeGoals = &home.Int64
	}
	if away.Valid {
		m.AwayGoals = &away.Int64
	}
	return m, nil
}

// GetMatch loads a match by its natural key.
func (t *Tx) GetMatch(ctx context.Context, matchID string) (m Match, found bool, err error) {
	m, err = scanMatch(t.queryRow(ctx, `SELECT `+matchColumns+` WHERE m.match_id = ?`, matchID))
	if errors.Is(err, sql.ErrNoRows) {
		return Match{}, false, nil
	}
	if err != nil {
		return Match{}, false, fmt.Errorf("get match: %w", err)
	}
	return m, true, nil
}

// EndMatch moves a Started match to Ended. updated is false when no Started
// match with that id exists.
func (t *Tx) EndMatch(ctx context.Context, matchID, eventID string, homeGoals, awayGoals int64) (updated bool, err error) {
	res, err := t.exec(ctx, `
		UPDATE matches
		SET event_id_end = ?, home_goals_scored = ?, away_goals_scored = ?
		WHERE match_id = ? AND event_id_end IS NULL
	`, eventID, homeGoals, awayGoals, matchID)
	if err != nil {
		return false, fmt.Errorf("end match: %w", err)
	}
	return affected(res)
}

// FindAdjacentPing looks for a session marker of the user recorded exactly at
// the given time. When several exist the highest session sequence wins.
func (t *Tx) FindAdjacentPing(ctx context.Context, userID int64, at time.Time) (seq int64, found bool, err error) {
	err = t.queryRow(ctx, `
		SELECT s.session_user_id
		FROM sessions s
		JOIN events e ON e.event_id = s.event_id
		WHERE s.user_id = ? AND e.event_timestamp = ?
		ORDER BY s.session_user_id DESC
		LIMIT 1
	`, userID, at.Unix()).Scan(&seq)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("find adjacent ping: %w", err)
	}
	return seq, true, nil
}

// NextSessionSeq returns the next per-user session sequence number: one more
// than the highest in use, or 1.
func (t *Tx) NextSessionSeq(ctx context.Context, userID int64) (int64, error) {
	var seq int64
	err := t.queryRow(ctx, `
		SELECT COALESCE(MAX(session_user_id), 0) + 1
		FROM sessions
		WHERE user_id = ?
	`, userID).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("next session seq: %w", err)
	}
	return seq, nil
}

// SessionEventIDs lists the events recorded under one session, oldest first.
func (t *Tx) SessionEventIDs(ctx context.Context, userID, seq int64) ([]string, error) {
	rows, err := t.query(ctx, `
		SELECT s.event_id
		FROM sessions s
		JOIN events e ON e.event_id = s.event_id
		WHERE s.user_id = ? AND s.session_user_id = ?
		ORDER BY e.event_timestamp ASC, s.event_id ASC
	`, userID, seq)
	if err != nil {
		return nil, fmt.Errorf("query session events: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan session event: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate session events: %w", err)
	}
	return ids, nil
}

// InsertSessionPing records a session marker. Uses ON CONFLICT DO NOTHING.
func (t *Tx) InsertSessionPing(ctx context.Context, eventID string, userID, seq int64, isStart bool) (inserted bool, err error) {
	res, err := t.exec(ctx, `
		INSERT INTO sessions (event_id, user_id, session_user_id, is_start)
		VALUES (?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`, eventID, userID, seq, isStart)
	if err != nil {
		return false, fmt.Errorf("insert session ping: %w", err)
	}
	return affected(res)
}
