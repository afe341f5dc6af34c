// Package projection turns validated events into derived state.
//
// Each record is applied by Coordinator.Apply inside one store transaction:
//
//  1. the event row is inserted (a duplicate event_id ends processing with
//     OutcomeDuplicateEvent and the projector never runs)
//  2. the payload is dispatched to its projector by a type switch over the
//     closed set of event.Payload variants
//  3. the transaction commits only if the projector returned OutcomeSuccess
//
// Projectors never commit or roll back themselves. They report a Verdict
// whose Outcome names exactly why a record was rejected; only conditions that
// earlier checks should have made impossible are returned as errors
// (*InconsistencyError).
//
// # State machines
//
// Matches are Started by an event without goals and Ended by one carrying
// both goal counts. Ended is terminal. Participants are fixed by the start.
//
// Sessions pair heartbeats into start/end markers per user. A heartbeat
// exactly SessionInterval after an existing marker of the same user extends
// that session; anything else opens a new one. Extending a session that
// already has an end marker replaces that marker, so a session never holds
// more than one start and one end row.
package projection
