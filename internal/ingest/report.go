package ingest

import "github.com/roach88/scoreline/internal/projection"

// SkipReason says why a line never reached projection.
type SkipReason string

const (
	SkipMalformed    SkipReason = "malformed"
	SkipMissingField SkipReason = "missing-field"
	SkipOutOfWindow  SkipReason = "out-of-window"
)

// Report summarizes one ingest run.
type Report struct {
	RunID string `json:"run_id"`
	// Lines counts non-blank lines read.
	Lines     int `json:"lines"`
	Committed int `json:"committed"`
	Conflicts int `json:"conflicts"`
	Rejected  int `json:"rejected"`
	// Inconsistencies counts records rolled back by an internal
	// inconsistency. They have no outcome.
	Inconsistencies int                        `json:"inconsistencies"`
	Skipped         map[SkipReason]int         `json:"skipped"`
	Outcomes        map[projection.Outcome]int `json:"outcomes"`
}

func newReport(runID string) Report {
	return Report{
		RunID:    runID,
		Skipped:  map[SkipReason]int{},
		Outcomes: map[projection.Outcome]int{},
	}
}

func (r *Report) skip(reason SkipReason) {
	r.Skipped[reason]++
}

func (r *Report) record(o projection.Outcome) {
	r.Outcomes[o]++
	switch {
	case o == projection.OutcomeSuccess:
		r.Committed++
	case o.IsConflict():
		r.Conflicts++
	default:
		r.Rejected++
	}
}

// SkippedTotal returns the number of lines skipped for any reason.
func (r Report) SkippedTotal() int {
	n := 0
	for _, c := range r.Skipped {
		n += c
	}
	return n
}
