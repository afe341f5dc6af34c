package event

import (
	"strings"

	"golang.org/x/text/cases"
)

// Kind is the normalized event type tag.
type Kind int

const (
	// KindNone is the neutral kind. Unknown, empty and null tags map here.
	KindNone Kind = iota
	KindRegistration
	KindMatch
	KindSessionPing
)

// String returns the canonical tag stored in the events table.
func (k Kind) String() string {
	switch k {
	case KindRegistration:
		return "registration"
	case KindMatch:
		return "match"
	case KindSessionPing:
		return "session_ping"
	default:
		return "none"
	}
}

// ParseKind maps a raw type tag to its Kind. Matching is case-insensitive.
func ParseKind(tag string) Kind {
	// Casers carry state, so one is built per call.
	switch cases.Fold().String(strings.TrimSpace(tag)) {
	case "registration":
		return KindRegistration
	case "match":
		return KindMatch
	case "session_ping":
		return KindSessionPing
	default:
		return KindNone
	}
}
