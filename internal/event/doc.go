// Package event defines the telemetry records scoreline ingests.
//
// A record is one line of the events file:
//
//	{"event_id": 17, "event_timestamp": 1728300000, "event_type": "match", "event_data": {...}}
//
// Decoding happens in two steps. DecodeLine checks the envelope (identity,
// timestamp, type tag, payload presence) without looking inside event_data.
// Validator.Decode then checks the payload against the CUE definition for the
// record's Kind and produces a typed Payload.
//
// The set of kinds is closed: registration, match, session_ping, and the
// neutral kind every other tag maps to. Neutral records carry no derived
// state but are still recorded as events.
package event
