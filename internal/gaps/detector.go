// Package gaps scans persisted state and reports which races, sessions and
// per-session data categories are missing for a season. Detection is
// read-only; closing the gaps is the pipeline's job.
package gaps

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tmakela/pitwall/internal/datastore"
	"github.com/tmakela/pitwall/internal/errors"
	"github.com/tmakela/pitwall/internal/logging"
)

var (
	logger      *slog.Logger
	closeLogger func() error
)

func init() {
	logger, closeLogger = logging.ForService("gaps")
}

// Close flushes the service log file.
func Close() {
	if closeLogger != nil {
		_ = closeLogger()
	}
}

// expectedSlots is the number of session slots a race weekend can carry.
// Conventional weekends fill all five (FP1-FP3, qualifying, race); sprint
// and testing weekends fill fewer, which is why absent higher slots for
// those formats are still reported and left for the planner to reconcile
// against the provider.
const expectedSlots = 5

// SessionGap describes one persisted session and the data categories it is
// missing. It carries enough context to build the provider query without
// another database round-trip. Gaps are transient and never stored.
type SessionGap struct {
	SessionID     uint
	Year          int
	RoundNumber   int
	SessionType   string
	SessionNumber int
	EventName     string

	MissingWeather   bool
	MissingCircuit   bool
	MissingLaps      bool
	MissingTelemetry bool
}

// Missing reports whether the gap flags the given category.
func (g *SessionGap) Missing(category datastore.Category) bool {
	switch category {
	case datastore.CategoryWeather:
		return g.MissingWeather
	case datastore.CategoryCircuit:
		return g.MissingCircuit
	case datastore.CategoryLaps:
		return g.MissingLaps
	case datastore.CategoryTelemetry:
		return g.MissingTelemetry
	}
	return false
}

// MissingCategories returns the flagged categories in extraction order.
func (g *SessionGap) MissingCategories() []datastore.Category {
	var missing []datastore.Category
	for _, c := range datastore.AllCategories() {
		if g.Missing(c) {
			missing = append(missing, c)
		}
	}
	return missing
}

// String renders the gap for logs and the gap report output.
func (g *SessionGap) String() string {
	name := fmt.Sprintf("round %d", g.RoundNumber)
	if g.RoundNumber == 0 && g.EventName != "" {
		name = g.EventName
	}
	return fmt.Sprintf("%d %s session %d (%s)", g.Year, name, g.SessionNumber, g.SessionType)
}

// MissingSession identifies an expected session slot with no persisted row.
type MissingSession struct {
	RoundNumber   int
	SessionNumber int
}

// Report is the outcome of one detection pass over a season.
type Report struct {
	SeasonYear      int
	SeasonKnown     bool
	MissingRaces    []int
	MissingSessions []MissingSession
	SessionGaps     []SessionGap

	// APICallsNeeded is the provider-call cost of closing every session gap.
	// One load serves all missing categories of a session, so the cost is
	// exactly the gap count.
	APICallsNeeded int
}

// HasGaps reports whether anything at all is missing.
func (r *Report) HasGaps() bool {
	return len(r.MissingRaces) > 0 || len(r.MissingSessions) > 0 || len(r.SessionGaps) > 0
}

// Detector inspects the datastore for missing data.
type Detector struct {
	store datastore.Interface
}

// NewDetector creates a detector over the given store.
func NewDetector(store datastore.Interface) *Detector {
	return &Detector{store: store}
}

// Detect enumerates missing races, missing session slots and per-session
// category gaps for a season year. Category presence is read from the
// session's load status; sessions with no status row yet fall back to a
// weather-row existence check so data imported before status tracking still
// counts as loaded.
func (d *Detector) Detect(ctx context.Context, year int) (*Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	report := &Report{SeasonYear: year}

	season, err := d.store.GetSeason(year)
	if err != nil {
		return nil, errors.New(err).
			Component("gaps").
			Category(errors.CategoryDatabase).
			Context("year", year).
			Build()
	}
	if season == nil {
		logger.Warn("season not in database, nothing to detect", "year", year)
		return report, nil
	}
	report.SeasonKnown = true

	races, err := d.store.RacesForSeason(season.ID)
	if err != nil {
		return nil, err
	}

	sessions, err := d.store.SessionsForSeason(year)
	if err != nil {
		return nil, err
	}

	sessionsByRace := make(map[uint]map[int]*datastore.Session, len(races))
	for i := range sessions {
		s := &sessions[i]
		if sessionsByRace[s.RaceID] == nil {
			sessionsByRace[s.RaceID] = make(map[int]*datastore.Session, expectedSlots)
		}
		sessionsByRace[s.RaceID][s.SessionNumber] = s
	}

	maxRound := 0
	haveRound := make(map[int]bool, len(races))
	for i := range races {
		race := &races[i]
		if race.IsTesting() {
			continue
		}
		haveRound[race.RoundNumber] = true
		if race.RoundNumber > maxRound {
			maxRound = race.RoundNumber
		}
	}
	for round := 1; round <= maxRound; round++ {
		if !haveRound[round] {
			report.MissingRaces = append(report.MissingRaces, round)
		}
	}

	for i := range races {
		race := &races[i]
		have := sessionsByRace[race.ID]
		if race.IsTesting() {
			continue
		}
		for slot := 1; slot <= expectedSlots; slot++ {
			if have[slot] == nil {
				report.MissingSessions = append(report.MissingSessions, MissingSession{
					RoundNumber:   race.RoundNumber,
					SessionNumber: slot,
				})
			}
		}
	}

	for i := range sessions {
		session := &sessions[i]
		gap, err := d.sessionGap(year, session)
		if err != nil {
			return nil, err
		}
		if gap != nil {
			report.SessionGaps = append(report.SessionGaps, *gap)
		}
	}
	report.APICallsNeeded = len(report.SessionGaps)

	logger.Info("gap detection complete",
		"year", year,
		"missing_races", len(report.MissingRaces),
		"missing_sessions", len(report.MissingSessions),
		"session_gaps", len(report.SessionGaps))

	return report, nil
}

// sessionGap builds the gap for one session, or nil when nothing is missing.
func (d *Detector) sessionGap(year int, session *datastore.Session) (*SessionGap, error) {
	status, err := d.store.GetLoadStatus(session.ID)
	if err != nil {
		return nil, err
	}

	gap := SessionGap{
		SessionID:     session.ID,
		Year:          year,
		RoundNumber:   session.Race.RoundNumber,
		SessionType:   session.SessionType,
		SessionNumber: session.SessionNumber,
	}
	if session.Race.IsTesting() {
		gap.EventName = session.Race.Name
	}

	if status != nil {
		gap.MissingWeather = !status.HasWeather
		gap.MissingCircuit = !status.HasCircuit
		gap.MissingLaps = !status.HasLaps
		gap.MissingTelemetry = !status.HasTelemetry
	} else {
		hasWeather, err := d.store.HasWeather(session.ID)
		if err != nil {
			return nil, err
		}
		gap.MissingWeather = !hasWeather
		gap.MissingCircuit = true
		gap.MissingLaps = true
		gap.MissingTelemetry = true
	}

	if !gap.MissingWeather && !gap.MissingCircuit && !gap.MissingLaps && !gap.MissingTelemetry {
		return nil, nil
	}
	return &gap, nil
}
