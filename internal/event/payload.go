package event

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Payload is the typed event_data of a record. The implementations in this
// package are the only ones; projection dispatches on them with a type switch.
type Payload interface {
	Kind() Kind
}

// Registration is the payload of a registration event.
// UserName is the client's natural key for the user (sent as "user_id").
type Registration struct {
	UserName string `json:"user_id"`
	Country  string `json:"country"`
	DeviceOS string `json:"device_os"`
}

func (Registration) Kind() Kind { return KindRegistration }

// Match is the payload of a match event. A start carries no goals, an end
// carries both.
type Match struct {
	MatchID   ID     `json:"match_id"`
	Home      string `json:"home_user_id"`
	Away      string `json:"away_user_id"`
	HomeGoals *int64 `json:"home_goals_scored"`
	AwayGoals *int64 `json:"away_goals_scored"`
}

func (Match) Kind() Kind { return KindMatch }

// Ending reports whether both goal counts are set.
func (m Match) Ending() bool {
	return m.HomeGoals != nil && m.AwayGoals != nil
}

// PartialGoals reports whether exactly one goal count is set.
func (m Match) PartialGoals() bool {
	return (m.HomeGoals == nil) != (m.AwayGoals == nil)
}

// SessionPing is the payload of a session heartbeat.
type SessionPing struct {
	UserName string `json:"user_id"`
}

func (SessionPing) Kind() Kind { return KindSessionPing }

// Neutral is the payload of every record whose tag is not a known kind.
type Neutral struct{}

func (Neutral) Kind() Kind { return KindNone }

// Record is a decoded, validated event.
type Record struct {
	ID        string
	Timestamp time.Time
	Kind      Kind
	Payload   Payload
}

// ID is an identifier the client sends either as a JSON string or a number.
type ID string

// UnmarshalJSON accepts strings and numbers. Numbers keep their literal text.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("identifier must be a string or number: %w", err)
	}
	*id = ID(n.String())
	return nil
}
