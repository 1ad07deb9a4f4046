// Package pipeline turns detected data gaps into an ordered worklist and
// drives the load-once-extract-many import over it.
package pipeline

import (
	"context"
	"log/slog"
	"sort"

	"github.com/tmakela/pitwall/internal/datastore"
	"github.com/tmakela/pitwall/internal/gaps"
	"github.com/tmakela/pitwall/internal/logging"
)

var (
	logger      *slog.Logger
	closeLogger func() error
)

func init() {
	logger, closeLogger = logging.ForService("pipeline")
}

// Close flushes the service log file.
func Close() {
	if closeLogger != nil {
		_ = closeLogger()
	}
}

// Planner turns a gap report plus operator filters into the concrete ordered
// list of sessions to process.
type Planner struct {
	store    datastore.Interface
	detector *gaps.Detector
}

// NewPlanner creates a planner over the given store.
func NewPlanner(store datastore.Interface) *Planner {
	return &Planner{
		store:    store,
		detector: gaps.NewDetector(store),
	}
}

// Plan builds the worklist for a season. The base list is the detected
// session gaps, optionally restricted to one round. With force set, every
// session matching the filter is planned regardless of load state: sessions
// already fully loaded are added as synthetic gaps flagging all categories,
// de-duplicated against the base list by session id. Output order is stable
// by round then session number.
func (p *Planner) Plan(ctx context.Context, year int, round *int, force bool) ([]gaps.SessionGap, error) {
	report, err := p.detector.Detect(ctx, year)
	if err != nil {
		return nil, err
	}

	planned := make([]gaps.SessionGap, 0, len(report.SessionGaps))
	seen := make(map[uint]bool, len(report.SessionGaps))
	for _, gap := range report.SessionGaps {
		if round != nil && gap.RoundNumber != *round {
			continue
		}
		planned = append(planned, gap)
		seen[gap.SessionID] = true
	}

	if force {
		sessions, err := p.store.SessionsForSeason(year)
		if err != nil {
			return nil, err
		}
		for i := range sessions {
			session := &sessions[i]
			if round != nil && session.Race.RoundNumber != *round {
				continue
			}
			if seen[session.ID] {
				continue
			}
			gap := gaps.SessionGap{
				SessionID:        session.ID,
				Year:             year,
				RoundNumber:      session.Race.RoundNumber,
				SessionType:      session.SessionType,
				SessionNumber:    session.SessionNumber,
				MissingWeather:   true,
				MissingCircuit:   true,
				MissingLaps:      true,
				MissingTelemetry: true,
			}
			if session.Race.IsTesting() {
				gap.EventName = session.Race.Name
			}
			planned = append(planned, gap)
			seen[session.ID] = true
		}
	}

	sort.SliceStable(planned, func(i, j int) bool {
		if planned[i].RoundNumber != planned[j].RoundNumber {
			return planned[i].RoundNumber < planned[j].RoundNumber
		}
		return planned[i].SessionNumber < planned[j].SessionNumber
	})

	logger.Info("session plan built",
		"year", year,
		"round_filter", round,
		"force", force,
		"planned", len(planned))

	return planned, nil
}
