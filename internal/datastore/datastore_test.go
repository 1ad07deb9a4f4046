package datastore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *DataStore {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&Season{}, &Race{}, &Session{}, &SessionLoadStatus{},
		&Team{}, &Driver{}, &SessionResult{}, &SessionWeather{},
		&Corner{}, &MarshalLight{}, &MarshalSector{},
		&Lap{}, &LapTelemetry{}, &PitStop{},
	)
	require.NoError(t, err)

	return &DataStore{DB: db}
}

// seedSession creates a season, race and session and returns the session.
func seedSession(t *testing.T, ds *DataStore, year, round, sessionNumber int) *Session {
	t.Helper()

	season := &Season{Year: year}
	require.NoError(t, ds.DB.FirstOrCreate(season, Season{Year: year}).Error)

	race := &Race{SeasonID: season.ID, RoundNumber: round, Name: "Test Grand Prix"}
	require.NoError(t, ds.DB.FirstOrCreate(race, Race{SeasonID: season.ID, RoundNumber: round}).Error)

	session := &Session{RaceID: race.ID, SessionNumber: sessionNumber, SessionType: "Race"}
	require.NoError(t, ds.DB.Create(session).Error)
	return session
}

func TestGetSeasonAbsentReturnsNil(t *testing.T) {
	t.Parallel()
	ds := setupTestDB(t)

	season, err := ds.GetSeason(2023)
	require.NoError(t, err)
	assert.Nil(t, season, "missing season should be (nil, nil), not an error")
}

func TestSessionsForSeasonOrdering(t *testing.T) {
	t.Parallel()
	ds := setupTestDB(t)

	seedSession(t, ds, 2023, 2, 1)
	seedSession(t, ds, 2023, 1, 5)
	seedSession(t, ds, 2023, 1, 1)

	sessions, err := ds.SessionsForSeason(2023)
	require.NoError(t, err)
	require.Len(t, sessions, 3)

	assert.Equal(t, 1, sessions[0].Race.RoundNumber)
	assert.Equal(t, 1, sessions[0].SessionNumber)
	assert.Equal(t, 5, sessions[1].SessionNumber)
	assert.Equal(t, 2, sessions[2].Race.RoundNumber)
}

func TestMarkCategoryLoadedCreatesStatus(t *testing.T) {
	t.Parallel()
	ds := setupTestDB(t)
	session := seedSession(t, ds, 2023, 1, 1)

	status, err := ds.GetLoadStatus(session.ID)
	require.NoError(t, err)
	assert.Nil(t, status, "no status row before first mark")

	ts := time.Date(2023, 5, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, ds.MarkCategoryLoaded(session.ID, CategoryWeather, ts))

	status, err = ds.GetLoadStatus(session.ID)
	require.NoError(t, err)
	require.NotNil(t, status)
	assert.True(t, status.HasWeather)
	assert.False(t, status.HasLaps)
	require.NotNil(t, status.WeatherLoadedAt)
	assert.Equal(t, []Category{CategoryCircuit, CategoryLaps, CategoryTelemetry}, status.MissingCategories())
}

func TestRecordAPICallAndWindowQueries(t *testing.T) {
	t.Parallel()
	ds := setupTestDB(t)
	first := seedSession(t, ds, 2023, 1, 1)
	second := seedSession(t, ds, 2023, 1, 2)

	now := time.Now()
	require.NoError(t, ds.RecordAPICall(first.ID, now.Add(-30*time.Minute)))
	require.NoError(t, ds.RecordAPICall(second.ID, now.Add(-5*time.Minute)))
	// second call against the same session moves its timestamp forward
	require.NoError(t, ds.RecordAPICall(first.ID, now.Add(-2*time.Minute)))

	status, err := ds.GetLoadStatus(first.ID)
	require.NoError(t, err)
	require.NotNil(t, status)
	assert.Equal(t, 2, status.APICallCount)

	count, err := ds.CallsSince(now.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(2), count, "counts sessions, not individual calls")

	oldest, err := ds.OldestCallSince(now.Add(-time.Hour))
	require.NoError(t, err)
	require.NotNil(t, oldest)
	assert.WithinDuration(t, now.Add(-5*time.Minute), *oldest, time.Second)
}

func TestDriverLookupsAreCaseInsensitive(t *testing.T) {
	t.Parallel()
	ds := setupTestDB(t)

	driver := &Driver{FullName: "Max Verstappen", FirstName: "Max", LastName: "Verstappen", DriverNumber: "1", Abbreviation: "VER"}
	require.NoError(t, ds.CreateDriver(driver))

	byName, err := ds.DriverByName("max verstappen")
	require.NoError(t, err)
	require.NotNil(t, byName)
	assert.Equal(t, driver.ID, byName.ID)

	byAbbr, err := ds.DriverByAbbreviation("ver")
	require.NoError(t, err)
	require.NotNil(t, byAbbr)
	assert.Equal(t, driver.ID, byAbbr.ID)

	missing, err := ds.DriverByNumber("99")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestGetOrCreateTeamIsIdempotent(t *testing.T) {
	t.Parallel()
	ds := setupTestDB(t)

	first, err := ds.GetOrCreateTeam("Red Bull Racing")
	require.NoError(t, err)
	second, err := ds.GetOrCreateTeam("Red Bull Racing")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	var count int64
	require.NoError(t, ds.DB.Model(&Team{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestUpsertSessionResultOverwritesByNaturalKey(t *testing.T) {
	t.Parallel()
	ds := setupTestDB(t)
	session := seedSession(t, ds, 2023, 1, 1)

	driver := &Driver{FullName: "Fernando Alonso"}
	require.NoError(t, ds.CreateDriver(driver))

	pos := 3
	require.NoError(t, ds.UpsertSessionResult(&SessionResult{
		SessionID: session.ID, DriverID: driver.ID, Position: &pos, Status: "Finished",
	}))

	better := 2
	require.NoError(t, ds.UpsertSessionResult(&SessionResult{
		SessionID: session.ID, DriverID: driver.ID, Position: &better, Status: "Finished",
	}))

	var results []SessionResult
	require.NoError(t, ds.DB.Where("session_id = ?", session.ID).Find(&results).Error)
	require.Len(t, results, 1)
	require.NotNil(t, results[0].Position)
	assert.Equal(t, 2, *results[0].Position)
}

func TestUpsertWeatherAndHasWeather(t *testing.T) {
	t.Parallel()
	ds := setupTestDB(t)
	session := seedSession(t, ds, 2023, 1, 1)

	has, err := ds.HasWeather(session.ID)
	require.NoError(t, err)
	assert.False(t, has)

	require.NoError(t, ds.UpsertWeather(&SessionWeather{SessionID: session.ID, AirTemperature: 24.5}))
	require.NoError(t, ds.UpsertWeather(&SessionWeather{SessionID: session.ID, AirTemperature: 26.0}))

	has, err = ds.HasWeather(session.ID)
	require.NoError(t, err)
	assert.True(t, has)

	var rows []SessionWeather
	require.NoError(t, ds.DB.Where("session_id = ?", session.ID).Find(&rows).Error)
	require.Len(t, rows, 1, "one weather row per session")
	assert.InDelta(t, 26.0, rows[0].AirTemperature, 0.001)
}

func TestUpsertLapsIsIdempotent(t *testing.T) {
	t.Parallel()
	ds := setupTestDB(t)
	session := seedSession(t, ds, 2023, 1, 1)

	driver := &Driver{FullName: "Charles Leclerc"}
	require.NoError(t, ds.CreateDriver(driver))

	lapTime := 92.481
	require.NoError(t, ds.UpsertLaps([]Lap{
		{SessionID: session.ID, DriverID: driver.ID, LapNumber: 1, LapTime: &lapTime},
	}))

	faster := 91.007
	require.NoError(t, ds.UpsertLaps([]Lap{
		{SessionID: session.ID, DriverID: driver.ID, LapNumber: 1, LapTime: &faster},
	}))

	var rows []Lap
	require.NoError(t, ds.DB.Where("session_id = ?", session.ID).Find(&rows).Error)
	require.Len(t, rows, 1)
	require.NotNil(t, rows[0].LapTime)
	assert.InDelta(t, 91.007, *rows[0].LapTime, 0.001)
}

func TestUpsertMarshalTablesOverwriteByNaturalKey(t *testing.T) {
	t.Parallel()
	ds := setupTestDB(t)
	session := seedSession(t, ds, 2023, 1, 1)

	require.NoError(t, ds.UpsertMarshalLights(session.ID, []MarshalLight{
		{SessionID: session.ID, Number: 3, Letter: "A", Distance: 410},
	}))
	require.NoError(t, ds.UpsertMarshalLights(session.ID, []MarshalLight{
		{SessionID: session.ID, Number: 3, Letter: "A", Distance: 415},
	}))

	sectors := []MarshalSector{{SessionID: session.ID, Number: 1, Distance: 0}}
	require.NoError(t, ds.UpsertMarshalSectors(session.ID, sectors))

	var lightRows []MarshalLight
	require.NoError(t, ds.DB.Where("session_id = ?", session.ID).Find(&lightRows).Error)
	require.Len(t, lightRows, 1)
	assert.InDelta(t, 415, lightRows[0].Distance, 0.001)

	var sectorCount int64
	require.NoError(t, ds.DB.Model(&MarshalSector{}).Count(&sectorCount).Error)
	assert.Equal(t, int64(1), sectorCount)
}

func TestUpsertLapTelemetryOverwritesByNaturalKey(t *testing.T) {
	t.Parallel()
	ds := setupTestDB(t)
	session := seedSession(t, ds, 2023, 1, 1)

	driver := &Driver{FullName: "Oscar Piastri"}
	require.NoError(t, ds.CreateDriver(driver))

	maxSpeed := 318.0
	require.NoError(t, ds.UpsertLapTelemetry([]LapTelemetry{{
		SessionID: session.ID, DriverID: driver.ID, LapNumber: 12,
		MaxSpeed: &maxSpeed, DRSActivations: 2,
	}}))

	faster := 322.4
	require.NoError(t, ds.UpsertLapTelemetry([]LapTelemetry{{
		SessionID: session.ID, DriverID: driver.ID, LapNumber: 12,
		MaxSpeed: &faster, DRSActivations: 3,
	}}))

	var stored []LapTelemetry
	require.NoError(t, ds.DB.Where("session_id = ?", session.ID).Find(&stored).Error)
	require.Len(t, stored, 1)
	require.NotNil(t, stored[0].MaxSpeed)
	assert.InDelta(t, 322.4, *stored[0].MaxSpeed, 0.001)
	assert.Equal(t, 3, stored[0].DRSActivations)
}
