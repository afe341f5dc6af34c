package event

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrMalformed is returned by DecodeLine for lines that are not a JSON object
// or whose envelope fields have the wrong shape.
var ErrMalformed = errors.New("malformed record")

// MissingFieldError reports a required envelope field that is absent or null.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("missing field %q", e.Field)
}

// Envelope is a record whose envelope has been decoded but whose event_data
// has not been validated yet.
type Envelope struct {
	ID        string
	Timestamp time.Time
	Kind      Kind
	Tag       string // raw event_type, empty when null
	Data      json.RawMessage
}

// DecodeLine decodes the envelope of one events-file line.
//
// event_id, event_timestamp, event_type and event_data must all be present.
// event_type may be null; such records get KindNone.
func DecodeLine(line []byte) (Envelope, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(line, &fields); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	for _, name := range []string{"event_id", "event_timestamp", "event_type", "event_data"} {
		if _, ok := fields[name]; !ok {
			return Envelope{}, &MissingFieldError{Field: name}
		}
	}

	var env Envelope

	var id ID
	if err := id.UnmarshalJSON(fields["event_id"]); err != nil {
		return Envelope{}, fmt.Errorf("%w: event_id: %v", ErrMalformed, err)
	}
	if id == "" {
		return Envelope{}, &MissingFieldError{Field: "event_id"}
	}
	env.ID = string(id)

	if isNull(fields["event_timestamp"]) {
		return Envelope{}, &MissingFieldError{Field: "event_timestamp"}
	}
	ts, err := decodeTimestamp(fields["event_timestamp"])
	if err != nil {
		return Envelope{}, fmt.Errorf("%w: event_timestamp: %v", ErrMalformed, err)
	}
	env.Timestamp = ts

	if !isNull(fields["event_type"]) {
		if err := json.Unmarshal(fields["event_type"], &env.Tag); err != nil {
			return Envelope{}, fmt.Errorf("%w: event_type: %v", ErrMalformed, err)
		}
	}
	env.Kind = ParseKind(env.Tag)

	if isNull(fields["event_data"]) {
		return Envelope{}, &MissingFieldError{Field: "event_data"}
	}
	env.Data = fields["event_data"]

	return env, nil
}

func isNull(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}

// decodeTimestamp reads seconds since the epoch. Fractional seconds are
// truncated.
func decodeTimestamp(raw json.RawMessage) (time.Time, error) {
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return time.Time{}, err
	}
	if secs, err := n.Int64(); err == nil {
		return time.Unix(secs, 0).UTC(), nil
	}
	f, err := n.Float64()
	if err != nil {
		return time.Time{}, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return time.Time{}, fmt.Errorf("timestamp out of range: %s", n)
	}
	return time.Unix(int64(f), 0).UTC(), nil
}
