// Package verify checks committed state against the invariants projection
// and repair maintain. It only reads.
package verify

import (
	"context"
	"fmt"

	"github.com/roach88/scoreline/internal/store"
)

// Rule names a checked invariant.
type Rule string

const (
	RuleMatchGoals       Rule = "match-goals"
	RuleSelfMatch        Rule = "self-match"
	RuleSessionShape     Rule = "session-shape"
	RuleUnregisteredUser Rule = "unregistered-user"
)

// Violation is one broken invariant.
type Violation struct {
	Rule    Rule   `json:"rule"`
	Subject string `json:"subject"`
	Detail  string `json:"detail"`
}

// Report lists every violation found.
type Report struct {
	Matches    int         `json:"matches"`
	Sessions   int         `json:"sessions"`
	Users      int         `json:"users"`
	Violations []Violation `json:"violations"`
}

// OK reports whether no invariant is broken.
func (r Report) OK() bool {
	return len(r.Violations) == 0
}

// Check reads the store and reports every violation. Incomplete sessions
// are only expected to be absent after a repair pass.
func Check(ctx context.Context, s *store.Store) (Report, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("verify: %w", err)
	}

	rep := Report{Violations: []Violation{}, Users: len(snap.Users), Matches: len(snap.Matches)}
	rep.Violations = append(rep.Violations, checkMatches(snap.Matches)...)
	rep.Violations = append(rep.Violations, checkUsers(snap.Users, snap.Registrations)...)

	sessions, violations := checkSessions(snap.Sessions)
	rep.Sessions = sessions
	rep.Violations = append(rep.Violations, violations...)
	return rep, nil
}

func checkMatches(matches []store.Match) []Violation {
	var out []Violation
	for _, m := range matches {
		if m.Home == m.Away {
			out = append(out, Violation{
				Rule:    RuleSelfMatch,
				Subject: "match " + m.MatchID,
				Detail:  fmt.Sprintf("%s plays both sides", m.Home),
			})
		}
		goals := 0
		if m.HomeGoals != nil {
			goals++
		}
		if m.AwayGoals != nil {
			goals++
		}
		if (m.Ended() && goals != 2) || (!m.Ended() && goals != 0) {
			out = append(out, Violation{
				Rule:    RuleMatchGoals,
				Subject: "match " + m.MatchID,
				Detail:  fmt.Sprintf("end event %q with %d goal counts set", m.EndEventID, goals),
			})
		}
	}
	return out
}

func checkUsers(users []string, regs []store.Registration) []Violation {
	registered := make(map[string]int, len(regs))
	for _, r := range regs {
		registered[r.UserName]++
	}

	var out []Violation
	for _, u := range users {
		if n := registered[u]; n != 1 {
			out = append(out, Violation{
				Rule:    RuleUnregisteredUser,
				Subject: "user " + u,
				Detail:  fmt.Sprintf("%d registrations", n),
			})
		}
	}
	return out
}

type sessionKey struct {
	user string
	seq  int64
}

// checkSessions returns the number of sessions and the groups that are not
// exactly one start followed by one end.
func checkSessions(rows []store.SessionRow) (int, []Violation) {
	type shape struct {
		starts, ends int
		startAt      int64
		endAt        int64
	}
	var order []sessionKey
	groups := make(map[sessionKey]*shape)
	for _, r := range rows {
		k := sessionKey{user: r.UserName, seq: r.Seq}
		g, ok := groups[k]
		if !ok {
			g = &shape{}
			groups[k] = g
			order = append(order, k)
		}
		if r.IsStart {
			g.starts++
			g.startAt = r.Timestamp.Unix()
		} else {
			g.ends++
			g.endAt = r.Timestamp.Unix()
		}
	}

	var out []Violation
	for _, k := range order {
		g := groups[k]
		subject := fmt.Sprintf("session %s#%d", k.user, k.seq)
		switch {
		case g.starts != 1 || g.ends != 1:
			out = append(out, Violation{
				Rule:    RuleSessionShape,
				Subject: subject,
				Detail:  fmt.Sprintf("%d start and %d end markers", g.starts, g.ends),
			})
		case g.endAt <= g.startAt:
			out = append(out, Violation{
				Rule:    RuleSessionShape,
				Subject: subject,
				Detail:  fmt.Sprintf("ends at %d, not after its start at %d", g.endAt, g.startAt),
			})
		}
	}
	return len(order), out
}
