// Package notification delivers best-effort push messages for pipeline
// events: rate limit pauses and resumes, run summaries and failures.
// Delivery problems are logged and never propagate to the pipeline.
package notification

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"slices"
	"time"

	shoutrrr "github.com/nicholas-fedor/shoutrrr"
	router "github.com/nicholas-fedor/shoutrrr/pkg/router"
	stypes "github.com/nicholas-fedor/shoutrrr/pkg/types"
	"github.com/google/uuid"

	"github.com/tmakela/pitwall/internal/conf"
	"github.com/tmakela/pitwall/internal/logging"
)

var (
	logger      *slog.Logger
	closeLogger func() error
)

func init() {
	logger, closeLogger = logging.ForService("notification")
}

// Type represents the category of a notification
type Type string

const (
	// TypePause indicates ingestion paused on a rate limit signal
	TypePause Type = "pause"
	// TypeResume indicates ingestion resumed after a pause
	TypeResume Type = "resume"
	// TypeSummary carries a completed run summary
	TypeSummary Type = "summary"
	// TypeError indicates a pipeline failure
	TypeError Type = "error"
	// TypeTest is used by the notify command to verify delivery
	TypeTest Type = "test"
)

// Notification is one message for the operator.
type Notification struct {
	ID        string
	Type      Type
	Title     string
	Message   string
	Timestamp time.Time
}

// NewNotification creates a notification with a fresh ID and timestamp.
func NewNotification(t Type, title, message string) *Notification {
	return &Notification{
		ID:        uuid.NewString(),
		Type:      t,
		Title:     title,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// Notifier is the boundary the pipeline talks to. Implementations must be
// best-effort: returning an error is informational, callers only log it.
type Notifier interface {
	Notify(ctx context.Context, n *Notification) error
}

// Service sends notifications through shoutrrr service URLs.
type Service struct {
	enabled bool
	urls    []string
	sender  *router.ServiceRouter
	timeout time.Duration
}

// NewService builds a notification service from settings. With notifications
// disabled or no URLs configured the service is a no-op.
func NewService(settings *conf.Settings) (*Service, error) {
	s := &Service{
		enabled: settings.Notification.Enabled,
		urls:    slices.Clone(settings.Notification.URLs),
		timeout: settings.Notification.Timeout,
	}
	if !s.enabled || len(s.urls) == 0 {
		s.enabled = false
		logger.Info("notifications disabled")
		return s, nil
	}

	sender, err := shoutrrr.CreateSender(s.urls...)
	if err != nil {
		return nil, fmt.Errorf("creating notification sender: %w", err)
	}
	s.sender = sender
	if s.timeout > 0 {
		s.sender.Timeout = s.timeout
	}
	s.sender.SetLogger(log.New(io.Discard, "", 0))

	logger.Info("notification service initialized", "urls", len(s.urls))
	return s, nil
}

// Notify sends a notification to every configured URL. Failures are logged
// per URL; the first error is returned for the caller's log line only.
func (s *Service) Notify(ctx context.Context, n *Notification) error {
	if !s.enabled || s.sender == nil {
		logger.Debug("notification skipped, service disabled",
			"type", string(n.Type), "title", n.Title)
		return nil
	}
	_ = ctx // router handles its own timeouts

	params := stypes.Params{}
	if n.Title != "" {
		params.SetTitle(n.Title)
	}

	var firstErr error
	for _, err := range s.sender.Send(n.Message, &params) {
		if err != nil {
			logger.Warn("notification delivery failed",
				"type", string(n.Type),
				"id", n.ID,
				"error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	if firstErr == nil {
		logger.Debug("notification sent", "type", string(n.Type), "id", n.ID)
	}
	return firstErr
}

// Close flushes the service log file.
func (s *Service) Close() {
	if closeLogger != nil {
		_ = closeLogger()
	}
}
