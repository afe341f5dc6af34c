package ingest

import (
	"fmt"
	"time"
)

// Window is the admissible range of event timestamps. Both bounds are
// inclusive.
type Window struct {
	From time.Time
	To   time.Time
}

// DefaultWindow is the collection period: 2024-10-07 to 2024-11-03, UTC
// midnight to midnight.
func DefaultWindow() Window {
	return Window{
		From: time.Date(2024, 10, 7, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2024, 11, 3, 0, 0, 0, 0, time.UTC),
	}
}

// Contains reports whether ts falls inside the window.
func (w Window) Contains(ts time.Time) bool {
	return !ts.Before(w.From) && !ts.After(w.To)
}

func (w Window) String() string {
	return fmt.Sprintf("[%s, %s]", w.From.Format(time.RFC3339), w.To.Format(time.RFC3339))
}
