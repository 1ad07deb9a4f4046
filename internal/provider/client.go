// Package provider implements the session data client. It performs the one
// expensive fetch per session, memoizes payloads for a bounded window so
// every data category reuses a single load, and classifies failures as
// rate-limited, non-retryable or transient.
package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/tmakela/pitwall/internal/conf"
	"github.com/tmakela/pitwall/internal/errors"
	"github.com/tmakela/pitwall/internal/logging"
	"github.com/tmakela/pitwall/internal/metrics"
)

// Package-level logger specific to the provider service
var (
	logger      *slog.Logger
	closeLogger func() error
)

func init() {
	logger, closeLogger = logging.ForService("provider")
}

// CallRecorder is notified after every real (non-cached) successful session
// fetch, for observability bookkeeping. Implemented by the rate governor.
type CallRecorder interface {
	RecordCall(sessionID uint)
}

// Config holds the provider client settings.
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	CacheTTL   time.Duration
	MaxRetries int
	RetryDelay time.Duration
}

// DefaultConfig returns the default client configuration.
func DefaultConfig() Config {
	return Config{
		Timeout:    120 * time.Second,
		CacheTTL:   time.Hour,
		MaxRetries: 3,
		RetryDelay: 60 * time.Second,
	}
}

// ConfigFromSettings builds a client config from the application settings.
func ConfigFromSettings(settings *conf.Settings) Config {
	return Config{
		BaseURL:    settings.Provider.BaseURL,
		Timeout:    settings.Provider.Timeout,
		CacheTTL:   settings.Provider.CacheTTL,
		MaxRetries: settings.Provider.MaxRetries,
		RetryDelay: settings.Provider.RetryDelay,
	}
}

// SessionLoader is the interface the pipeline consumes.
type SessionLoader interface {
	LoadSession(ctx context.Context, ref SessionRef) (*SessionPayload, error)
	Invalidate(ref SessionRef)
}

// Client fetches session payloads over HTTP with memoization and retries.
type Client struct {
	config     Config
	httpClient *http.Client
	cache      *cache.Cache
	recorder   CallRecorder
}

// NewClient creates a new provider client.
func NewClient(config Config, recorder CallRecorder) (*Client, error) {
	if config.BaseURL == "" {
		return nil, errors.Newf("provider base URL is required").
			Category(errors.CategoryConfiguration).
			Component("provider").
			Build()
	}
	defaults := DefaultConfig()
	if config.Timeout == 0 {
		config.Timeout = defaults.Timeout
	}
	if config.CacheTTL == 0 {
		config.CacheTTL = defaults.CacheTTL
	}
	if config.MaxRetries == 0 {
		config.MaxRetries = defaults.MaxRetries
	}
	if config.RetryDelay == 0 {
		config.RetryDelay = defaults.RetryDelay
	}

	client := &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		cache:    cache.New(config.CacheTTL, config.CacheTTL*2),
		recorder: recorder,
	}

	logger.Info("provider client initialized",
		"base_url", config.BaseURL,
		"cache_ttl", config.CacheTTL,
		"max_retries", config.MaxRetries,
		"retry_delay", config.RetryDelay)

	return client, nil
}

// Close cleans up client resources.
func (c *Client) Close() {
	if closeLogger != nil {
		_ = closeLogger()
	}
}

// cacheKey identifies one session load for memoization.
func (c *Client) cacheKey(ref SessionRef) string {
	code := SessionCode(ref.SessionType)
	if ref.EventName != "" {
		return fmt.Sprintf("session:%d:%s:%s", ref.Year, ref.EventName, code)
	}
	return fmt.Sprintf("session:%d:%d:%s", ref.Year, ref.Round, code)
}

// Invalidate drops the memoized payload for a session, forcing the next
// LoadSession to fetch from the provider again.
func (c *Client) Invalidate(ref SessionRef) {
	c.cache.Delete(c.cacheKey(ref))
}

// LoadSession fetches one full session payload. Repeated loads for the same
// (year, round-or-event, session code) within the cache window reuse the
// first fetch, so extracting N data categories costs one provider call.
//
// Failure contract:
//   - errors.Is(err, ErrRateLimited): the provider budget is exhausted,
//     pause and retry the same request
//   - IsNoData(err): the session has no data, do not retry
//   - anything else: transient, already retried MaxRetries times internally
func (c *Client) LoadSession(ctx context.Context, ref SessionRef) (*SessionPayload, error) {
	key := c.cacheKey(ref)

	if cached, found := c.cache.Get(key); found {
		if payload, ok := cached.(*SessionPayload); ok {
			metrics.CacheHits.Inc()
			logger.Debug("session payload cache hit", "cache_key", key)
			return payload, nil
		}
	}
	metrics.CacheMisses.Inc()

	logger.Info("loading session from provider",
		"session", ref.String(),
		"code", SessionCode(ref.SessionType))

	payload, err := c.fetchWithRetry(ctx, ref)
	if err != nil {
		return nil, err
	}

	c.cache.Set(key, payload, c.config.CacheTTL)

	if c.recorder != nil && ref.SessionID != 0 {
		c.recorder.RecordCall(ref.SessionID)
	}

	logger.Info("session loaded",
		"session", ref.String(),
		"results", len(payload.Results),
		"weather_samples", len(payload.Weather),
		"laps", len(payload.Laps))

	return payload, nil
}

// fetchWithRetry performs the HTTP fetch, retrying transient failures a
// bounded number of times with a fixed delay. Rate limit and no-data
// failures are returned immediately.
func (c *Client) fetchWithRetry(ctx context.Context, ref SessionRef) (*SessionPayload, error) {
	var lastErr error

	for attempt := 0; attempt < c.config.MaxRetries; attempt++ {
		payload, err := c.fetch(ctx, ref)
		if err == nil {
			metrics.ProviderCalls.WithLabelValues("success").Inc()
			return payload, nil
		}

		if errors.Is(err, ErrRateLimited) {
			metrics.ProviderCalls.WithLabelValues("rate_limited").Inc()
			return nil, err
		}
		if IsNoData(err) {
			metrics.ProviderCalls.WithLabelValues("no_data").Inc()
			return nil, err
		}
		metrics.ProviderCalls.WithLabelValues("error").Inc()
		lastErr = err

		if ctx.Err() != nil {
			return nil, lastErr
		}

		if attempt < c.config.MaxRetries-1 {
			logger.Warn("session fetch failed, retrying",
				"session", ref.String(),
				"attempt", attempt+1,
				"max_retries", c.config.MaxRetries,
				"delay", c.config.RetryDelay,
				"error", err.Error())

			select {
			case <-time.After(c.config.RetryDelay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}

	logger.Error("session fetch failed after retries",
		"session", ref.String(),
		"attempts", c.config.MaxRetries,
		"error", lastErr.Error())
	return nil, lastErr
}

// fetch performs a single HTTP request and classifies the response.
func (c *Client) fetch(ctx context.Context, ref SessionRef) (*SessionPayload, error) {
	reqURL, err := c.sessionURL(ref)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return nil, errors.New(err).
			Component("provider").
			Category(errors.CategoryNetwork).
			Context("url", reqURL).
			Build()
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.New(err).
			Component("provider").
			Category(errors.CategoryNetwork).
			Context("session", ref.String()).
			Build()
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, rateLimitError(ref)
	case resp.StatusCode == http.StatusNotFound:
		return nil, &NoDataError{Ref: ref, Reason: "session not found"}
	case resp.StatusCode == http.StatusBadRequest:
		// Invalid round or event name; the catalog points at a session the
		// provider does not know. Not retryable.
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &NoDataError{Ref: ref, Reason: string(body)}
	case resp.StatusCode != http.StatusOK:
		return nil, errors.Newf("unexpected provider status %d", resp.StatusCode).
			Component("provider").
			Category(errors.CategoryProvider).
			Context("status_code", resp.StatusCode).
			Context("session", ref.String()).
			Build()
	}

	var payload SessionPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, errors.New(err).
			Component("provider").
			Category(errors.CategoryProvider).
			Context("session", ref.String()).
			Build()
	}

	return &payload, nil
}

// sessionURL builds the fetch URL for a session reference.
func (c *Client) sessionURL(ref SessionRef) (string, error) {
	base, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return "", errors.New(err).
			Component("provider").
			Category(errors.CategoryConfiguration).
			Build()
	}
	base = base.JoinPath("api", "v1", "session")

	query := url.Values{}
	query.Set("year", strconv.Itoa(ref.Year))
	query.Set("session", SessionCode(ref.SessionType))
	if ref.EventName != "" {
		query.Set("event", ref.EventName)
	} else {
		query.Set("round", strconv.Itoa(ref.Round))
	}
	base.RawQuery = query.Encode()

	return base.String(), nil
}
