package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/tmakela/pitwall/internal/datastore"
	"github.com/tmakela/pitwall/internal/errors"
	"github.com/tmakela/pitwall/internal/gaps"
	"github.com/tmakela/pitwall/internal/identity"
	"github.com/tmakela/pitwall/internal/metrics"
	"github.com/tmakela/pitwall/internal/notification"
	"github.com/tmakela/pitwall/internal/provider"
)

// Pauser blocks until the provider's rate limit window has passed.
// Satisfied by ratelimit.Governor.
type Pauser interface {
	Pause(ctx context.Context, remaining int) error
}

// categoryDrivers keys driver-extraction failures in session reports. It is
// not a load-status category: driver reconciliation runs before every
// category rather than being tracked as one.
const categoryDrivers = datastore.Category("drivers")

// Runner is the import orchestrator: it loads each planned session once and
// fans extraction out over every data category, isolating failures so one
// bad category or session never aborts the run.
type Runner struct {
	store    datastore.Interface
	loader   provider.SessionLoader
	resolver *identity.Resolver
	planner  *Planner
	pauser   Pauser
	notifier notification.Notifier

	now func() time.Time
}

// NewRunner assembles a runner from its collaborators. notifier may be nil.
func NewRunner(store datastore.Interface, loader provider.SessionLoader, pauser Pauser, notifier notification.Notifier) *Runner {
	return &Runner{
		store:    store,
		loader:   loader,
		resolver: identity.NewResolver(store),
		planner:  NewPlanner(store),
		pauser:   pauser,
		notifier: notifier,
		now:      time.Now,
	}
}

// Run executes one full ingestion pass: plan, then process every planned
// session in order. The returned summary always covers every session that
// was processed, even when ctx is cancelled midway, in which case it is
// returned together with the context error.
func (r *Runner) Run(ctx context.Context, year int, round *int, force, notify bool) (*RunSummary, error) {
	started := r.now()

	plan, err := r.planner.Plan(ctx, year, round, force)
	if err != nil {
		return nil, err
	}

	summary := newRunSummary(year, round, force, len(plan), started)

	logger.Info("ingestion run starting",
		"run_id", summary.RunID.String(),
		"year", year,
		"round_filter", round,
		"force", force,
		"planned", len(plan))

	for i := range plan {
		if err := ctx.Err(); err != nil {
			summary.Duration = r.now().Sub(started)
			return summary, err
		}
		gap := &plan[i]
		report := r.processSession(ctx, gap, force, len(plan)-i)
		metrics.SessionsProcessed.WithLabelValues(string(report.Outcome)).Inc()
		summary.add(report)
	}

	summary.Duration = r.now().Sub(started)
	metrics.RunDuration.Observe(summary.Duration.Seconds())

	logger.Info("ingestion run complete",
		"run_id", summary.RunID.String(),
		"processed", summary.Processed,
		"succeeded", summary.Succeeded,
		"partial", summary.Partial,
		"failed", summary.Failed,
		"skipped", summary.Skipped,
		"duration", summary.Duration)

	if notify {
		r.notifySummary(ctx, summary)
	}

	return summary, nil
}

// processSession loads one session and extracts every requested category.
// Category failures are recorded, never propagated.
func (r *Runner) processSession(ctx context.Context, gap *gaps.SessionGap, force bool, remaining int) SessionReport {
	ref := provider.SessionRef{
		SessionID:   gap.SessionID,
		Year:        gap.Year,
		Round:       gap.RoundNumber,
		EventName:   gap.EventName,
		SessionType: gap.SessionType,
	}
	report := SessionReport{
		SessionID: gap.SessionID,
		Ref:       ref.String(),
		Failed:    make(map[datastore.Category]string),
	}

	if force {
		r.loader.Invalidate(ref)
	}

	payload, err := r.loadWithPause(ctx, ref, remaining)
	if err != nil {
		report.Outcome = OutcomeFailed
		report.LoadError = err.Error()
		report.NoData = provider.IsNoData(err)
		if report.NoData {
			logger.Warn("provider has no data for session", "session", ref.String())
		} else {
			logger.Error("session load failed", "session", ref.String(), "error", err)
		}
		return report
	}

	idx, err := r.extractDrivers(ctx, gap.SessionID, payload)
	if err != nil {
		// Later categories still run; lap rows fall back to the resolver.
		logger.Error("driver extraction failed",
			"session", ref.String(),
			"error", err)
		report.Failed[categoryDrivers] = err.Error()
		idx = newDriverIndex()
	}

	for _, category := range datastore.AllCategories() {
		if !force && !gap.Missing(category) {
			report.Skipped = append(report.Skipped, category)
			metrics.CategoryExtractions.WithLabelValues(string(category), "skipped").Inc()
			continue
		}
		if err := r.extractCategory(ctx, gap.SessionID, category, payload, idx); err != nil {
			report.Failed[category] = err.Error()
			result := "failed"
			if errors.IsCategory(err, errors.CategoryNotFound) {
				result = "no_data"
			}
			metrics.CategoryExtractions.WithLabelValues(string(category), result).Inc()
			logger.Warn("category extraction failed",
				"session", ref.String(),
				"category", string(category),
				"error", err)
			continue
		}
		if err := r.store.MarkCategoryLoaded(gap.SessionID, category, r.now()); err != nil {
			report.Failed[category] = err.Error()
			metrics.CategoryExtractions.WithLabelValues(string(category), "failed").Inc()
			continue
		}
		report.Loaded = append(report.Loaded, category)
		metrics.CategoryExtractions.WithLabelValues(string(category), "success").Inc()
	}

	switch {
	case len(report.Loaded) == 0 && len(report.Failed) == 0:
		report.Outcome = OutcomeSkipped
	case len(report.Failed) == 0:
		report.Outcome = OutcomeSucceeded
	case len(report.Loaded) == 0:
		report.Outcome = OutcomeFailed
	default:
		report.Outcome = OutcomePartial
	}

	logger.Info("session processed",
		"session", ref.String(),
		"outcome", string(report.Outcome),
		"loaded", len(report.Loaded),
		"failed", len(report.Failed),
		"skipped", len(report.Skipped))

	return report
}

// loadWithPause fetches a session through the loader and, on the rate limit
// signal, pauses via the governor and retries the same load. Every other
// error is returned as-is.
func (r *Runner) loadWithPause(ctx context.Context, ref provider.SessionRef, remaining int) (*provider.SessionPayload, error) {
	for {
		payload, err := r.loader.LoadSession(ctx, ref)
		if err == nil {
			return payload, nil
		}
		if !errors.Is(err, provider.ErrRateLimited) {
			return nil, err
		}
		if pauseErr := r.pauser.Pause(ctx, remaining); pauseErr != nil {
			return nil, pauseErr
		}
	}
}

func (r *Runner) extractCategory(ctx context.Context, sessionID uint, category datastore.Category, payload *provider.SessionPayload, idx *driverIndex) error {
	switch category {
	case datastore.CategoryWeather:
		return r.extractWeather(sessionID, payload)
	case datastore.CategoryCircuit:
		return r.extractCircuit(sessionID, payload)
	case datastore.CategoryLaps:
		return r.extractLaps(ctx, sessionID, payload, idx)
	case datastore.CategoryTelemetry:
		return r.extractTelemetry(ctx, sessionID, payload, idx)
	}
	return errors.Newf("unknown data category %q", string(category)).
		Component("pipeline").
		Category(errors.CategoryValidation).
		Build()
}

func (r *Runner) notifySummary(ctx context.Context, summary *RunSummary) {
	if r.notifier == nil {
		return
	}
	title := fmt.Sprintf("Ingestion run complete: season %d", summary.Year)
	n := notification.NewNotification(notification.TypeSummary, title, summary.String())
	if err := r.notifier.Notify(ctx, n); err != nil {
		logger.Warn("run summary notification failed", "error", err)
	}
}
