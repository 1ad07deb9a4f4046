package pipeline

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tmakela/pitwall/internal/datastore"
)

// Outcome classifies one processed session.
type Outcome string

const (
	// OutcomeSucceeded means every attempted category extracted and persisted.
	OutcomeSucceeded Outcome = "succeeded"
	// OutcomePartial means some categories extracted, some failed.
	OutcomePartial Outcome = "partial"
	// OutcomeFailed means the loader itself failed, or every category did.
	OutcomeFailed Outcome = "failed"
	// OutcomeSkipped means nothing needed doing for the session.
	OutcomeSkipped Outcome = "skipped"
)

// SessionReport is the immutable record of one session's processing.
type SessionReport struct {
	SessionID uint
	Ref       string
	Outcome   Outcome
	Loaded    []datastore.Category
	Skipped   []datastore.Category
	Failed    map[datastore.Category]string
	LoadError string
	NoData    bool
}

// RunSummary aggregates one full pipeline run. It is assembled after every
// planned session has been processed and never mutated afterwards.
type RunSummary struct {
	RunID   uuid.UUID
	Year    int
	Round   *int
	Force   bool
	Started time.Time

	Planned   int
	Processed int
	Succeeded int
	Partial   int
	Failed    int
	Skipped   int

	CategoryLoaded map[datastore.Category]int
	CategoryFailed map[datastore.Category]int

	Sessions []SessionReport
	Duration time.Duration
}

func newRunSummary(year int, round *int, force bool, planned int, started time.Time) *RunSummary {
	return &RunSummary{
		RunID:          uuid.New(),
		Year:           year,
		Round:          round,
		Force:          force,
		Started:        started,
		Planned:        planned,
		CategoryLoaded: make(map[datastore.Category]int),
		CategoryFailed: make(map[datastore.Category]int),
	}
}

// add folds one session's report into the summary.
func (s *RunSummary) add(report SessionReport) {
	s.Sessions = append(s.Sessions, report)
	s.Processed++
	switch report.Outcome {
	case OutcomeSucceeded:
		s.Succeeded++
	case OutcomePartial:
		s.Partial++
	case OutcomeFailed:
		s.Failed++
	case OutcomeSkipped:
		s.Skipped++
	}
	for _, c := range report.Loaded {
		s.CategoryLoaded[c]++
	}
	for c := range report.Failed {
		s.CategoryFailed[c]++
	}
}

// String renders the operator-facing run summary.
func (s *RunSummary) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "run %s: season %d", s.RunID, s.Year)
	if s.Round != nil {
		fmt.Fprintf(&b, " round %d", *s.Round)
	}
	if s.Force {
		b.WriteString(" (force)")
	}
	fmt.Fprintf(&b, "\nplanned %d, processed %d: %d succeeded, %d partial, %d failed, %d skipped",
		s.Planned, s.Processed, s.Succeeded, s.Partial, s.Failed, s.Skipped)
	for _, c := range datastore.AllCategories() {
		loaded, failed := s.CategoryLoaded[c], s.CategoryFailed[c]
		if loaded == 0 && failed == 0 {
			continue
		}
		fmt.Fprintf(&b, "\n  %s: %d loaded, %d failed", c, loaded, failed)
	}
	// Failures recorded under keys outside the load-status categories, such
	// as driver reconciliation, still have to reach the operator.
	var extras []datastore.Category
	for c := range s.CategoryFailed {
		if !isLoadStatusCategory(c) {
			extras = append(extras, c)
		}
	}
	sort.Slice(extras, func(i, j int) bool { return extras[i] < extras[j] })
	for _, c := range extras {
		fmt.Fprintf(&b, "\n  %s: %d loaded, %d failed", c, s.CategoryLoaded[c], s.CategoryFailed[c])
	}
	fmt.Fprintf(&b, "\nduration %s", s.Duration.Round(time.Second))
	return b.String()
}

func isLoadStatusCategory(c datastore.Category) bool {
	for _, known := range datastore.AllCategories() {
		if c == known {
			return true
		}
	}
	return false
}
