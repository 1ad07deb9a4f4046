// Package ratelimit implements the reactive rate governor. The provider's
// own limiter is authoritative: the governor never pre-counts or forecasts
// usage, it only reacts to the limit-exceeded signal by pausing the entire
// ingestion process for a fixed cooldown, and keeps per-session call
// counters for observability.
package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tmakela/pitwall/internal/conf"
	"github.com/tmakela/pitwall/internal/logging"
	"github.com/tmakela/pitwall/internal/metrics"
	"github.com/tmakela/pitwall/internal/notification"
)

var (
	logger      *slog.Logger
	closeLogger func() error
)

func init() {
	logger, closeLogger = logging.ForService("ratelimit")
}

// statsWindow is the provider's budget window.
const statsWindow = time.Hour

// sleepChunk is the increment the pause sleeps in, so progress stays
// observable in the logs.
const sleepChunk = time.Minute

// Store is the subset of datastore operations the governor needs.
type Store interface {
	RecordAPICall(sessionID uint, ts time.Time) error
	CallsSince(since time.Time) (int64, error)
	OldestCallSince(since time.Time) (*time.Time, error)
}

// Governor pauses the whole pipeline when the provider signals an exhausted
// call budget. The pause is a deliberate global stop-the-world: ingestion is
// a single-flow batch process, per-task backoff would only complicate the
// accounting.
type Governor struct {
	store      Store
	notifier   notification.Notifier
	pause      time.Duration
	maxPerHour int

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewGovernor creates a governor from settings.
func NewGovernor(store Store, notifier notification.Notifier, settings *conf.Settings) *Governor {
	return &Governor{
		store:      store,
		notifier:   notifier,
		pause:      settings.RateLimit.PauseDuration,
		maxPerHour: settings.RateLimit.MaxRequestsPerHour,
		now:        time.Now,
		sleep:      sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pause blocks until the cooldown window has passed, emitting a pause
// notification up front and a resume notification at the end. remaining is
// the caller's outstanding work size, included in the pause message. The
// caller retries the request that triggered the pause afterwards.
func (g *Governor) Pause(ctx context.Context, remaining int) error {
	resumeAt := g.now().Add(g.pause)
	metrics.RateLimitPauses.Inc()

	logger.Warn("rate limit reached, pausing ingestion",
		"pause", g.pause,
		"resume_at", resumeAt.Format(time.RFC3339),
		"remaining_sessions", remaining)

	g.notify(ctx, notification.TypePause, "Ingestion paused",
		fmt.Sprintf("Provider rate limit reached. Pausing until %s, %d sessions remaining.",
			resumeAt.Format("15:04:05"), remaining))

	left := g.pause
	for left > 0 {
		chunk := sleepChunk
		if chunk > left {
			chunk = left
		}
		if err := g.sleep(ctx, chunk); err != nil {
			return err
		}
		left -= chunk
		if left > 0 {
			logger.Info("still paused", "remaining_wait", left)
		}
	}

	logger.Info("rate limit window passed, resuming ingestion")
	g.notify(ctx, notification.TypeResume, "Ingestion resumed",
		fmt.Sprintf("Rate limit pause over, resuming with %d sessions remaining.", remaining))

	return nil
}

// RecordCall upserts the session's load status with the current timestamp
// and bumps its call counter. Implements provider.CallRecorder. Failures
// are logged only: observability bookkeeping never fails the pipeline.
func (g *Governor) RecordCall(sessionID uint) {
	if err := g.store.RecordAPICall(sessionID, g.now()); err != nil {
		logger.Error("failed to record provider call",
			"session_id", sessionID,
			"error", err)
		return
	}
	logger.Debug("recorded provider call", "session_id", sessionID)
}

// Stats describe provider usage over the trailing budget window.
type Stats struct {
	CallsMade int64
	MaxCalls  int
	Remaining int64
	NextReset *time.Time
	Status    string
}

// Stats reports call usage in the trailing window. The estimate is for
// operator display only; admission control stays reactive.
func (g *Governor) Stats() (*Stats, error) {
	windowStart := g.now().Add(-statsWindow)

	calls, err := g.store.CallsSince(windowStart)
	if err != nil {
		return nil, err
	}

	remaining := int64(g.maxPerHour) - calls

	var nextReset *time.Time
	oldest, err := g.store.OldestCallSince(windowStart)
	if err != nil {
		return nil, err
	}
	if oldest != nil {
		reset := oldest.Add(statsWindow)
		nextReset = &reset
	}

	status := "OK"
	switch {
	case remaining <= 0:
		status = "EXCEEDED"
	case remaining < 50:
		status = "WARNING"
	}

	return &Stats{
		CallsMade: calls,
		MaxCalls:  g.maxPerHour,
		Remaining: remaining,
		NextReset: nextReset,
		Status:    status,
	}, nil
}

func (g *Governor) notify(ctx context.Context, t notification.Type, title, message string) {
	if g.notifier == nil {
		return
	}
	if err := g.notifier.Notify(ctx, notification.NewNotification(t, title, message)); err != nil {
		logger.Warn("notification delivery failed", "type", string(t), "error", err)
	}
}

// Close flushes the service log file.
func Close() {
	if closeLogger != nil {
		_ = closeLogger()
	}
}
