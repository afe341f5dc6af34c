package cli

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/roach88/scoreline/internal/ingest"
	"github.com/roach88/scoreline/internal/repair"
	"github.com/roach88/scoreline/internal/verify"
)

// countriesSummary is the result of the countries command.
type countriesSummary struct {
	File      string               `json:"file"`
	Countries ingest.CountryReport `json:"countries"`
}

func (s countriesSummary) String() string {
	return fmt.Sprintf("countries from %s: %d inserted, %d already present, %d skipped",
		s.File, s.Countries.Inserted, s.Countries.Existing, s.Countries.Skipped)
}

// runSummary is the result of the ingest and run commands. Fields are nil
// for steps that did not run.
type runSummary struct {
	Countries *ingest.CountryReport `json:"countries,omitempty"`
	Ingest    *ingest.Report        `json:"ingest,omitempty"`
	Repair    *repair.Report        `json:"repair,omitempty"`
}

func (s runSummary) String() string {
	var b strings.Builder
	if c := s.Countries; c != nil {
		fmt.Fprintf(&b, "countries: %d inserted, %d already present, %d skipped\n", c.Inserted, c.Existing, c.Skipped)
	}
	if r := s.Ingest; r != nil {
		fmt.Fprintf(&b, "ingest %s: %d lines, %d committed, %d already applied, %d rejected, %d skipped",
			r.RunID, r.Lines, r.Committed, r.Conflicts, r.Rejected, r.SkippedTotal())
		if r.Inconsistencies > 0 {
			fmt.Fprintf(&b, ", %d inconsistent", r.Inconsistencies)
		}
		b.WriteByte('\n')
		for _, o := range slices.Sorted(maps.Keys(r.Outcomes)) {
			fmt.Fprintf(&b, "  %-22s %d\n", o, r.Outcomes[o])
		}
		for _, reason := range slices.Sorted(maps.Keys(r.Skipped)) {
			fmt.Fprintf(&b, "  skipped %-14s %d\n", reason, r.Skipped[reason])
		}
	}
	if r := s.Repair; r != nil {
		b.WriteString(repairText(*r))
	}
	return strings.TrimRight(b.String(), "\n")
}

func repairText(r repair.Report) string {
	s := fmt.Sprintf("repair: %d unfinished match events, %d incomplete session events deleted\n",
		r.UnfinishedMatches, r.IncompleteSessions)
	if r.Vacuumed {
		s += "vacuum: done\n"
	}
	return s
}

// repairSummary is the result of the repair command.
type repairSummary struct {
	Repair repair.Report `json:"repair"`
}

func (s repairSummary) String() string {
	return strings.TrimRight(repairText(s.Repair), "\n")
}

// verifySummary is the result of the verify command.
type verifySummary struct {
	Report verify.Report `json:"report"`
}

func (s verifySummary) String() string {
	r := s.Report
	var b strings.Builder
	fmt.Fprintf(&b, "checked %d users, %d matches, %d sessions: ", r.Users, r.Matches, r.Sessions)
	if r.OK() {
		b.WriteString("ok")
		return b.String()
	}
	fmt.Fprintf(&b, "%d violations", len(r.Violations))
	for _, v := range r.Violations {
		fmt.Fprintf(&b, "\n  [%s] %s: %s", v.Rule, v.Subject, v.Detail)
	}
	return b.String()
}
