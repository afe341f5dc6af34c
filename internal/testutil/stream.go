package testutil

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/scoreline/internal/event"
)

// Stream builds an events file line by line. Event ids are assigned from a
// counter starting at 1 unless a builder is given one explicitly.
type Stream struct {
	lines []string
	seq   int
}

// NewStream creates an empty stream.
func NewStream() *Stream {
	return &Stream{}
}

func (s *Stream) nextID() string {
	s.seq++
	return fmt.Sprintf("%d", s.seq)
}

// Event appends a record with an explicit id and raw event_data.
func (s *Stream) Event(id string, ts int64, typ string, data any) *Stream {
	line, err := json.Marshal(map[string]any{
		"event_id":        id,
		"event_timestamp": ts,
		"event_type":      typ,
		"event_data":      data,
	})
	if err != nil {
		panic(fmt.Sprintf("testutil: marshal event: %v", err))
	}
	s.lines = append(s.lines, string(line))
	return s
}

// Raw appends a line verbatim.
func (s *Stream) Raw(line string) *Stream {
	s.lines = append(s.lines, line)
	return s
}

// Register appends a registration event.
func (s *Stream) Register(ts int64, user, country, device string) *Stream {
	return s.Event(s.nextID(), ts, "registration", map[string]any{
		"user_id":   user,
		"country":   country,
		"device_os": device,
	})
}

// MatchStart appends a match event without goals.
func (s *Stream) MatchStart(ts int64, matchID, home, away string) *Stream {
	return s.Event(s.nextID(), ts, "match", map[string]any{
		"match_id":          matchID,
		"home_user_id":      home,
		"away_user_id":      away,
		"home_goals_scored": nil,
		"away_goals_scored": nil,
	})
}

// MatchEnd appends a match event with both goal counts.
func (s *Stream) MatchEnd(ts int64, matchID, home, away string, homeGoals, awayGoals int) *Stream {
	return s.Event(s.nextID(), ts, "match", map[string]any{
		"match_id":          matchID,
		"home_user_id":      home,
		"away_user_id":      away,
		"home_goals_scored": homeGoals,
		"away_goals_scored": awayGoals,
	})
}

// Ping appends a session heartbeat.
func (s *Stream) Ping(ts int64, user string) *Stream {
	return s.Event(s.nextID(), ts, "session_ping", map[string]any{"user_id": user})
}

// LastID returns the id of the most recently generated event.
func (s *Stream) LastID() string {
	return fmt.Sprintf("%d", s.seq)
}

// Lines returns the stream as newline-delimited JSON.
func (s *Stream) Lines() string {
	if len(s.lines) == 0 {
		return ""
	}
	return strings.Join(s.lines, "\n") + "\n"
}

// Reader returns the stream as an io.Reader.
func (s *Stream) Reader() *strings.Reader {
	return strings.NewReader(s.Lines())
}

// Records decodes and validates every line, failing the test on any error.
func (s *Stream) Records(t testing.TB) []event.Record {
	t.Helper()
	v, err := event.NewValidator()
	require.NoError(t, err)

	recs := make([]event.Record, 0, len(s.lines))
	for _, line := range s.lines {
		env, err := event.DecodeLine([]byte(line))
		require.NoError(t, err, line)
		rec, err := v.Decode(env)
		require.NoError(t, err, line)
		recs = append(recs, rec)
	}
	return recs
}
