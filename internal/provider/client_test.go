package provider

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tmakela/pitwall/internal/errors"
)

type recordingRecorder struct {
	calls []uint
}

func (r *recordingRecorder) RecordCall(sessionID uint) {
	r.calls = append(r.calls, sessionID)
}

func newTestClient(t *testing.T, recorder CallRecorder) *Client {
	t.Helper()

	client, err := NewClient(Config{
		BaseURL:    "http://provider.test:8300",
		Timeout:    5 * time.Second,
		CacheTTL:   time.Minute,
		MaxRetries: 2,
		RetryDelay: time.Millisecond,
	}, recorder)
	require.NoError(t, err)

	httpmock.ActivateNonDefault(client.httpClient)
	t.Cleanup(httpmock.DeactivateAndReset)

	return client
}

func testRef() SessionRef {
	return SessionRef{
		SessionID:   42,
		Year:        2023,
		Round:       5,
		SessionType: "Race",
	}
}

const sessionBody = `{
	"results": [
		{"fullName": "Max Verstappen", "driverNumber": "1", "abbreviation": "VER", "teamName": "Red Bull Racing", "position": 1, "status": "Finished"}
	],
	"weather": [
		{"airTemp": 24.5, "trackTemp": 38.2, "humidity": 41.0, "pressure": 1013.2, "windSpeed": 2.1, "windDirection": 180, "rainfall": false}
	],
	"circuit": {
		"corners": [{"number": 1, "letter": "", "x": 10.0, "y": 20.0, "angle": 90.0, "distance": 350.0}],
		"marshalLights": [{"number": 1, "letter": "A", "x": 12.0, "y": 18.0, "angle": 85.0, "distance": 320.0}],
		"marshalSectors": [{"number": 1, "letter": "", "x": 0.0, "y": 0.0, "angle": 0.0, "distance": 0.0}]
	},
	"laps": [
		{"driverNumber": "1", "driverAbbr": "VER", "fullName": "Max Verstappen", "lapNumber": 1, "lapTime": 92.5, "speedI1": 280.5,
		 "telemetry": [{"speed": 301.0, "throttle": 100, "brake": false, "gear": 8, "rpm": 11900, "drs": 12, "distance": 120.5}]}
	]
}`

func TestLoadSessionDecodesPayload(t *testing.T) {
	recorder := &recordingRecorder{}
	client := newTestClient(t, recorder)

	httpmock.RegisterResponder(http.MethodGet,
		"http://provider.test:8300/api/v1/session",
		httpmock.NewStringResponder(http.StatusOK, sessionBody))

	payload, err := client.LoadSession(context.Background(), testRef())
	require.NoError(t, err)
	require.NotNil(t, payload)

	require.Len(t, payload.Results, 1)
	assert.Equal(t, "Max Verstappen", payload.Results[0].FullName)
	require.Len(t, payload.Weather, 1)
	assert.InDelta(t, 24.5, payload.Weather[0].AirTemperature, 0.001)
	require.NotNil(t, payload.Circuit)
	require.Len(t, payload.Circuit.Corners, 1)
	require.Len(t, payload.Circuit.MarshalLights, 1)
	require.Len(t, payload.Circuit.MarshalSectors, 1)
	require.Len(t, payload.Laps, 1)
	require.NotNil(t, payload.Laps[0].SpeedI1)
	require.Len(t, payload.Laps[0].Telemetry, 1)
	assert.Equal(t, 12, payload.Laps[0].Telemetry[0].DRS)

	assert.Equal(t, []uint{42}, recorder.calls, "recorder fires once per real fetch")
}

func TestLoadSessionMemoizes(t *testing.T) {
	recorder := &recordingRecorder{}
	client := newTestClient(t, recorder)

	httpmock.RegisterResponder(http.MethodGet,
		"http://provider.test:8300/api/v1/session",
		httpmock.NewStringResponder(http.StatusOK, sessionBody))

	first, err := client.LoadSession(context.Background(), testRef())
	require.NoError(t, err)
	second, err := client.LoadSession(context.Background(), testRef())
	require.NoError(t, err)

	assert.Same(t, first, second, "second load is served from the cache")
	assert.Equal(t, 1, httpmock.GetTotalCallCount())
	assert.Len(t, recorder.calls, 1, "cache hits do not count as provider calls")

	// Invalidation forces a fresh fetch.
	client.Invalidate(testRef())
	_, err = client.LoadSession(context.Background(), testRef())
	require.NoError(t, err)
	assert.Equal(t, 2, httpmock.GetTotalCallCount())
}

func TestLoadSessionRateLimitIsImmediate(t *testing.T) {
	client := newTestClient(t, nil)

	httpmock.RegisterResponder(http.MethodGet,
		"http://provider.test:8300/api/v1/session",
		httpmock.NewStringResponder(http.StatusTooManyRequests, "rate limit exceeded"))

	_, err := client.LoadSession(context.Background(), testRef())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRateLimited))
	assert.False(t, IsNoData(err))
	assert.Equal(t, 1, httpmock.GetTotalCallCount(), "rate limit is not retried internally")
}

func TestLoadSessionNotFoundIsNoData(t *testing.T) {
	client := newTestClient(t, nil)

	httpmock.RegisterResponder(http.MethodGet,
		"http://provider.test:8300/api/v1/session",
		httpmock.NewStringResponder(http.StatusNotFound, "not found"))

	_, err := client.LoadSession(context.Background(), testRef())
	require.Error(t, err)
	assert.True(t, IsNoData(err))
	assert.False(t, errors.Is(err, ErrRateLimited))
	assert.Equal(t, 1, httpmock.GetTotalCallCount(), "no-data is not retried")
}

func TestLoadSessionRetriesTransientFailures(t *testing.T) {
	client := newTestClient(t, nil)

	attempts := 0
	httpmock.RegisterResponder(http.MethodGet,
		"http://provider.test:8300/api/v1/session",
		func(req *http.Request) (*http.Response, error) {
			attempts++
			if attempts == 1 {
				return httpmock.NewStringResponse(http.StatusInternalServerError, "boom"), nil
			}
			return httpmock.NewStringResponse(http.StatusOK, sessionBody), nil
		})

	payload, err := client.LoadSession(context.Background(), testRef())
	require.NoError(t, err)
	require.NotNil(t, payload)
	assert.Equal(t, 2, attempts)
}

func TestLoadSessionGivesUpAfterMaxRetries(t *testing.T) {
	client := newTestClient(t, nil)

	httpmock.RegisterResponder(http.MethodGet,
		"http://provider.test:8300/api/v1/session",
		httpmock.NewStringResponder(http.StatusInternalServerError, "boom"))

	_, err := client.LoadSession(context.Background(), testRef())
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrRateLimited))
	assert.False(t, IsNoData(err))
	assert.Equal(t, 2, httpmock.GetTotalCallCount())
}

func TestSessionURL(t *testing.T) {
	client := newTestClient(t, nil)

	byRound, err := client.sessionURL(testRef())
	require.NoError(t, err)
	assert.Equal(t, "http://provider.test:8300/api/v1/session?round=5&session=R&year=2023", byRound)

	testing2023 := SessionRef{Year: 2023, EventName: "Pre-Season Testing", SessionType: "Practice 1"}
	byEvent, err := client.sessionURL(testing2023)
	require.NoError(t, err)
	assert.Contains(t, byEvent, "event=Pre-Season+Testing")
	assert.Contains(t, byEvent, "session=FP1")
	assert.NotContains(t, byEvent, "round=")
}

func TestSessionCodeMapping(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "FP2", SessionCode("Practice 2"))
	assert.Equal(t, "Q", SessionCode("Qualifying"))
	assert.Equal(t, "SQ", SessionCode("Sprint Qualifying"))
	assert.Equal(t, "S", SessionCode("Sprint"))
	assert.Equal(t, "R", SessionCode("Race"))
	assert.Equal(t, "R", SessionCode("Something Unknown"))
}
