package projection

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/scoreline/internal/event"
	"github.com/roach88/scoreline/internal/store"
	"github.com/roach88/scoreline/internal/testutil"
)

// t0 is 2024-10-07T12:00:00Z.
const t0 = int64(1728302400)

func newCoordinator(t *testing.T) (*Coordinator, *store.Store) {
	t.Helper()
	s := testutil.OpenStore(t)
	return NewCoordinator(s), s
}

func applyAll(t *testing.T, c *Coordinator, recs []event.Record) []Result {
	t.Helper()
	results := make([]Result, 0, len(recs))
	for _, rec := range recs {
		res, err := c.Apply(context.Background(), rec)
		require.NoError(t, err, "apply %s", rec.ID)
		results = append(results, res)
	}
	return results
}

func outcomes(results []Result) []Outcome {
	out := make([]Outcome, len(results))
	for i, r := range results {
		out[i] = r.Outcome
	}
	return out
}

func hasEvent(t *testing.T, s *store.Store, id string) bool {
	t.Helper()
	found, err := s.HasEvent(context.Background(), id)
	require.NoError(t, err)
	return found
}

func TestApply_NeutralRecordIsStored(t *testing.T) {
	c, s := newCoordinator(t)

	recs := testutil.NewStream().
		Event("n1", t0, "level_up", map[string]any{"level": 3}).
		Records(t)
	results := applyAll(t, c, recs)

	assert.Equal(t, []Outcome{OutcomeSuccess}, outcomes(results))
	assert.Equal(t, event.KindNone, results[0].Kind)
	assert.True(t, hasEvent(t, s, "n1"))
}

func TestApply_DuplicateEventID(t *testing.T) {
	c, s := newCoordinator(t)

	recs := testutil.NewStream().
		Register(t0, "alice", "US", "ios").
		Records(t)
	first := applyAll(t, c, recs)
	second := applyAll(t, c, recs)

	assert.Equal(t, []Outcome{OutcomeSuccess}, outcomes(first))
	assert.Equal(t, []Outcome{OutcomeDuplicateEvent}, outcomes(second))
	assert.True(t, second[0].Outcome.IsConflict())

	counts, err := s.Counts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts.Events)
	assert.Equal(t, int64(1), counts.Registrations)
}

func TestRegistration_FirstWins(t *testing.T) {
	c, s := newCoordinator(t)
	ctx := context.Background()

	stream := testutil.NewStream().
		Register(t0, "carol", "FR", "ios").
		Register(t0+10, "carol", "US", "android")
	results := applyAll(t, c, stream.Records(t))

	assert.Equal(t, []Outcome{OutcomeSuccess, OutcomeDuplicateUser}, outcomes(results))
	assert.False(t, results[1].Committed())
	assert.False(t, hasEvent(t, s, "2"), "rejected registration must leave no event row")

	regs, err := s.ListRegistrations(ctx)
	require.NoError(t, err)
	require.Len(t, regs, 1)
	assert.Equal(t, store.Registration{EventID: "1", UserName: "carol", DeviceOS: "ios", Country: "FR"}, regs[0])
}

func TestRegistration_ReferencesAreCaseInsensitive(t *testing.T) {
	c, s := newCoordinator(t)

	results := applyAll(t, c, testutil.NewStream().
		Register(t0, "erin", "de", "Android").
		Records(t))

	assert.Equal(t, []Outcome{OutcomeSuccess}, outcomes(results))
	regs, err := s.ListRegistrations(context.Background())
	require.NoError(t, err)
	require.Len(t, regs, 1)
	assert.Equal(t, "android", regs[0].DeviceOS)
	assert.Equal(t, "DE", regs[0].Country)
}

func TestRegistration_UnresolvedReference(t *testing.T) {
	tests := []struct {
		name    string
		country string
		device  string
	}{
		{name: "unknown device", country: "US", device: "windows-phone"},
		{name: "unknown country", country: "ZZ", device: "ios"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, s := newCoordinator(t)

			results := applyAll(t, c, testutil.NewStream().
				Register(t0, "frank", tt.country, tt.device).
				Records(t))

			assert.Equal(t, []Outcome{OutcomeUnresolvedReference}, outcomes(results))
			assert.False(t, hasEvent(t, s, "1"))

			users, err := s.ListUsers(context.Background())
			require.NoError(t, err)
			assert.Empty(t, users, "user insert must roll back with the registration")
		})
	}
}

func registerPlayers(s *testutil.Stream) *testutil.Stream {
	return s.
		Register(t0, "alice", "US", "ios").
		Register(t0, "bob", "FR", "android")
}

func TestMatch_Lifecycle(t *testing.T) {
	c, s := newCoordinator(t)

	stream := registerPlayers(testutil.NewStream()).
		MatchStart(t0+60, "m1", "alice", "bob").
		MatchEnd(t0+660, "m1", "alice", "bob", 2, 1)
	results := applyAll(t, c, stream.Records(t))

	assert.Equal(t, []Outcome{OutcomeSuccess, OutcomeSuccess, OutcomeSuccess, OutcomeSuccess}, outcomes(results))

	m, found, err := s.GetMatch(context.Background(), "m1")
	require.NoError(t, err)
	require.True(t, found)
	assert.True(t, m.Ended())
	assert.Equal(t, "3", m.StartEventID)
	assert.Equal(t, "4", m.EndEventID)
	assert.Equal(t, "alice", m.Home)
	assert.Equal(t, "bob", m.Away)
	require.NotNil(t, m.HomeGoals)
	require.NotNil(t, m.AwayGoals)
	assert.Equal(t, int64(2), *m.HomeGoals)
	assert.Equal(t, int64(1), *m.AwayGoals)
}

func TestMatch_NumericMatchID(t *testing.T) {
	c, s := newCoordinator(t)

	stream := registerPlayers(testutil.NewStream()).
		Event("start", t0+60, "match", map[string]any{
			"match_id": 42, "home_user_id": "alice", "away_user_id": "bob",
		}).
		Event("end", t0+120, "match", map[string]any{
			"match_id": 42, "home_user_id": "alice", "away_user_id": "bob",
			"home_goals_scored": 0, "away_goals_scored": 0,
		})
	results := applyAll(t, c, stream.Records(t))
	assert.Equal(t, OutcomeSuccess, results[3].Outcome)

	m, found, err := s.GetMatch(context.Background(), "42")
	require.NoError(t, err)
	require.True(t, found)
	assert.True(t, m.Ended())
}

func TestMatch_Rejections(t *testing.T) {
	tests := []struct {
		name  string
		build func(*testutil.Stream)
		want  Outcome
	}{
		{
			name: "self match on start",
			build: func(s *testutil.Stream) {
				s.MatchStart(t0+60, "m1", "alice", "alice")
			},
			want: OutcomeSelfMatch,
		},
		{
			name: "self match on end",
			build: func(s *testutil.Stream) {
				s.MatchEnd(t0+60, "m1", "bob", "bob", 1, 0)
			},
			want: OutcomeSelfMatch,
		},
		{
			name: "partial goals",
			build: func(s *testutil.Stream) {
				s.MatchStart(t0+60, "m1", "alice", "bob")
				s.Event("x", t0+120, "match", map[string]any{
					"match_id": "m1", "home_user_id": "alice", "away_user_id": "bob",
					"home_goals_scored": 3, "away_goals_scored": nil,
				})
			},
			want: OutcomePartialGoals,
		},
		{
			name: "end without start",
			build: func(s *testutil.Stream) {
				s.MatchEnd(t0+60, "m9", "alice", "bob", 1, 0)
			},
			want: OutcomeEndWithoutStart,
		},
		{
			name: "already over",
			build: func(s *testutil.Stream) {
				s.MatchStart(t0+60, "m1", "alice", "bob")
				s.MatchEnd(t0+120, "m1", "alice", "bob", 1, 0)
				s.MatchEnd(t0+180, "m1", "alice", "bob", 4, 4)
			},
			want: OutcomeMatchAlreadyOver,
		},
		{
			name: "participant mismatch",
			build: func(s *testutil.Stream) {
				s.MatchStart(t0+60, "m1", "alice", "bob")
				s.MatchEnd(t0+120, "m1", "bob", "alice", 1, 0)
			},
			want: OutcomeParticipantMismatch,
		},
		{
			name: "end before start",
			build: func(s *testutil.Stream) {
				s.MatchStart(t0+600, "m1", "alice", "bob")
				s.MatchEnd(t0+300, "m1", "alice", "bob", 1, 0)
			},
			want: OutcomeEndBeforeStart,
		},
		{
			name: "unregistered participant",
			build: func(s *testutil.Stream) {
				s.MatchStart(t0+60, "m1", "alice", "mallory")
			},
			want: OutcomeUnresolvedReference,
		},
		{
			name: "duplicate start",
			build: func(s *testutil.Stream) {
				s.MatchStart(t0+60, "m1", "alice", "bob")
				s.MatchStart(t0+120, "m1", "alice", "bob")
			},
			want: OutcomeMatchExists,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, s := newCoordinator(t)
			stream := registerPlayers(testutil.NewStream())
			tt.build(stream)

			recs := stream.Records(t)
			results := applyAll(t, c, recs)

			last := results[len(results)-1]
			assert.Equal(t, tt.want, last.Outcome, last.Detail)
			assert.NotEmpty(t, last.Detail)
			for _, r := range results[:len(results)-1] {
				assert.Equal(t, OutcomeSuccess, r.Outcome, "setup record %s: %s", r.EventID, r.Detail)
			}
			assert.False(t, hasEvent(t, s, recs[len(recs)-1].ID), "rejected record must leave no event row")
		})
	}
}

func TestMatch_RejectedEndLeavesMatchStarted(t *testing.T) {
	tests := []struct {
		name string
		end  func(s *testutil.Stream)
		want Outcome
	}{
		{
			name: "participant mismatch",
			end: func(s *testutil.Stream) {
				s.MatchEnd(t0+120, "m1", "bob", "alice", 5, 0)
			},
			want: OutcomeParticipantMismatch,
		},
		{
			name: "end before start",
			end: func(s *testutil.Stream) {
				s.MatchEnd(t0+30, "m1", "alice", "bob", 2, 1)
			},
			want: OutcomeEndBeforeStart,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, s := newCoordinator(t)

			stream := registerPlayers(testutil.NewStream()).
				MatchStart(t0+60, "m1", "alice", "bob")
			tt.end(stream)
			results := applyAll(t, c, stream.Records(t))
			assert.Equal(t, tt.want, results[len(results)-1].Outcome)

			m, found, err := s.GetMatch(context.Background(), "m1")
			require.NoError(t, err)
			require.True(t, found)
			assert.False(t, m.Ended())
			assert.Empty(t, m.EndEventID)
			assert.Nil(t, m.HomeGoals)
			assert.Nil(t, m.AwayGoals)
			assert.Equal(t, "alice", m.Home)
			assert.Equal(t, "bob", m.Away)
		})
	}
}

type sessionMarker struct {
	Seq     int64
	IsStart bool
	At      int64
}

func sessionsOf(t *testing.T, s *store.Store, user string) []sessionMarker {
	t.Helper()
	rows, err := s.ListSessions(context.Background())
	require.NoError(t, err)

	out := []sessionMarker{}
	for _, r := range rows {
		if r.UserName == user {
			out = append(out, sessionMarker{Seq: r.Seq, IsStart: r.IsStart, At: r.Timestamp.Unix()})
		}
	}
	return out
}

func TestSession_HeartbeatsSplitOnGap(t *testing.T) {
	c, s := newCoordinator(t)

	stream := testutil.NewStream().
		Register(t0-600, "dave", "US", "web").
		Ping(t0, "dave").
		Ping(t0+60, "dave").
		Ping(t0+180, "dave")
	results := applyAll(t, c, stream.Records(t))
	for _, r := range results {
		assert.Equal(t, OutcomeSuccess, r.Outcome, r.Detail)
	}

	assert.Equal(t, []sessionMarker{
		{Seq: 1, IsStart: true, At: t0},
		{Seq: 1, IsStart: false, At: t0 + 60},
		{Seq: 2, IsStart: true, At: t0 + 180},
	}, sessionsOf(t, s, "dave"))
}

func TestSession_TailCollapses(t *testing.T) {
	c, s := newCoordinator(t)

	stream := testutil.NewStream().
		Register(t0-600, "dave", "US", "web").
		Ping(t0, "dave").     // 2
		Ping(t0+60, "dave").  // 3
		Ping(t0+120, "dave"). // 4
		Ping(t0+180, "dave")  // 5
	applyAll(t, c, stream.Records(t))

	assert.Equal(t, []sessionMarker{
		{Seq: 1, IsStart: true, At: t0},
		{Seq: 1, IsStart: false, At: t0 + 180},
	}, sessionsOf(t, s, "dave"))

	assert.True(t, hasEvent(t, s, "2"))
	assert.False(t, hasEvent(t, s, "3"), "replaced tail event must be deleted")
	assert.False(t, hasEvent(t, s, "4"), "replaced tail event must be deleted")
	assert.True(t, hasEvent(t, s, "5"))
}

func TestSession_UsersAreIndependent(t *testing.T) {
	c, s := newCoordinator(t)

	stream := registerPlayers(testutil.NewStream()).
		Ping(t0, "alice").
		Ping(t0+60, "bob").
		Ping(t0+60, "alice")
	applyAll(t, c, stream.Records(t))

	assert.Equal(t, []sessionMarker{
		{Seq: 1, IsStart: true, At: t0},
		{Seq: 1, IsStart: false, At: t0 + 60},
	}, sessionsOf(t, s, "alice"))
	assert.Equal(t, []sessionMarker{
		{Seq: 1, IsStart: true, At: t0 + 60},
	}, sessionsOf(t, s, "bob"))
}

func TestSession_UnregisteredUser(t *testing.T) {
	c, s := newCoordinator(t)

	results := applyAll(t, c, testutil.NewStream().Ping(t0, "ghost").Records(t))

	assert.Equal(t, []Outcome{OutcomeUnregisteredUser}, outcomes(results))
	assert.False(t, hasEvent(t, s, "1"))
	assert.Empty(t, sessionsOf(t, s, "ghost"))
}

func TestApply_ReplayConverges(t *testing.T) {
	c, s := newCoordinator(t)
	ctx := context.Background()

	stream := registerPlayers(testutil.NewStream()).
		Register(t0+1, "alice", "DE", "web").
		MatchStart(t0+60, "m1", "alice", "bob").
		MatchEnd(t0+600, "m1", "alice", "bob", 3, 2).
		MatchStart(t0+700, "m2", "bob", "alice").
		Ping(t0, "bob").
		Ping(t0+60, "bob").
		Ping(t0+120, "bob").
		Ping(t0+300, "bob")
	recs := stream.Records(t)

	applyAll(t, c, recs)
	first, err := s.Snapshot(ctx)
	require.NoError(t, err)

	applyAll(t, c, recs)
	second, err := s.Snapshot(ctx)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestApply_LogsOutcomes(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	s := testutil.OpenStore(t)
	c := NewCoordinator(s, WithLogger(logger))

	stream := testutil.NewStream().
		Register(t0, "carol", "FR", "ios").
		Register(t0, "carol", "FR", "ios").
		Ping(t0, "nobody")
	applyAll(t, c, stream.Records(t))

	out := buf.String()
	assert.Contains(t, out, "level=DEBUG msg=\"record committed\"")
	assert.Contains(t, out, "level=INFO msg=\"record already applied\"")
	assert.Contains(t, out, "outcome=duplicate-user")
	assert.Contains(t, out, "level=WARN msg=\"record rejected\"")
	assert.Contains(t, out, "outcome=unregistered-user")
}

func TestInconsistencyError(t *testing.T) {
	err := &InconsistencyError{EventID: "e7", Op: "insert session ping"}
	assert.True(t, IsInconsistency(err))
	assert.Contains(t, err.Error(), "e7")
	assert.False(t, IsInconsistency(assert.AnError))
}
