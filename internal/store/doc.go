// Package store provides the relational store that holds scoreline's
// projected state.
//
// The store holds:
//   - Events: one row per accepted event_id (the audit log)
//   - Users and Registrations: first-registration-wins identities
//   - Matches: one row per match_id, Started until an end event lands
//   - Sessions: start/end heartbeat markers per (user, session sequence)
//   - Countries and Devices: reference rows registrations resolve against
//
// # Idempotent insert
//
// Every projector write goes through INSERT ... ON CONFLICT DO NOTHING and
// reports whether a row was actually written. Callers turn "not written" into
// an outcome (duplicate event, duplicate user, match already exists) instead
// of an error, which is what makes re-ingesting a stream a no-op.
//
// # Cascades
//
// Every derived row references the event that produced it with
// ON DELETE CASCADE. Deleting an event is the only way derived state is
// removed: the session tail-collapse and the repair pass both work that way.
//
// # Drivers
//
//   - sqlite (github.com/mattn/go-sqlite3): WAL mode, foreign_keys=ON,
//     single connection
//   - postgres (github.com/jackc/pgx/v5/stdlib)
//
// Queries are written with ? placeholders and rebound for PostgreSQL.
package store
