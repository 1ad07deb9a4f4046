// interfaces.go: this code defines the interface for the database operations
package datastore

import (
	"time"

	"github.com/tmakela/pitwall/internal/conf"
	"gorm.io/gorm"
)

// Interface abstracts the underlying database implementation and defines the
// operations the ingestion pipeline needs. Lookup methods return (nil, nil)
// when no matching record exists; errors are reserved for real failures.
type Interface interface {
	Open() error
	Close() error

	// season and event catalog
	GetSeason(year int) (*Season, error)
	SaveSeason(season *Season) error
	RacesForSeason(seasonID uint) ([]Race, error)
	SessionsForSeason(year int) ([]Session, error)
	GetSessionByID(id uint) (*Session, error)

	// per-session load bookkeeping
	GetLoadStatus(sessionID uint) (*SessionLoadStatus, error)
	MarkCategoryLoaded(sessionID uint, category Category, ts time.Time) error
	RecordAPICall(sessionID uint, ts time.Time) error
	CallsSince(since time.Time) (int64, error)
	OldestCallSince(since time.Time) (*time.Time, error)

	// competitors
	DriverByName(fullName string) (*Driver, error)
	DriverByNumber(number string) (*Driver, error)
	DriverByAbbreviation(abbr string) (*Driver, error)
	DriversByLastName(lastName string) ([]Driver, error)
	AllDrivers() ([]Driver, error)
	CreateDriver(driver *Driver) error
	SaveDriver(driver *Driver) error
	GetOrCreateTeam(name string) (*Team, error)

	// per-category fact tables
	HasWeather(sessionID uint) (bool, error)
	UpsertSessionResult(result *SessionResult) error
	UpsertWeather(weather *SessionWeather) error
	UpsertCorners(sessionID uint, corners []Corner) error
	UpsertMarshalLights(sessionID uint, lights []MarshalLight) error
	UpsertMarshalSectors(sessionID uint, sectors []MarshalSector) error
	UpsertLaps(laps []Lap) error
	UpsertLapTelemetry(rows []LapTelemetry) error
	UpsertPitStops(stops []PitStop) error
}

// DataStore implements Interface using a GORM database.
type DataStore struct {
	DB *gorm.DB // GORM database instance
}

// New creates a new datastore instance based on the provided configuration.
func New(settings *conf.Settings) Interface {
	switch {
	case settings.Output.SQLite.Enabled:
		return &SQLiteStore{
			Settings: settings,
		}
	case settings.Output.MySQL.Enabled:
		return &MySQLStore{
			Settings: settings,
		}
	default:
		return nil
	}
}

// GetSeason returns the season for a year, or nil when it does not exist.
func (ds *DataStore) GetSeason(year int) (*Season, error) {
	var season Season
	err := ds.DB.Where("year = ?", year).First(&season).Error
	if err != nil {
		if errorIsNotFound(err) {
			return nil, nil
		}
		return nil, dbError(err, "get_season", "year", year)
	}
	return &season, nil
}

// SaveSeason creates or updates a season.
func (ds *DataStore) SaveSeason(season *Season) error {
	if err := ds.DB.Save(season).Error; err != nil {
		return dbError(err, "save_season", "year", season.Year)
	}
	return nil
}

// RacesForSeason returns all races of a season ordered by round number.
func (ds *DataStore) RacesForSeason(seasonID uint) ([]Race, error) {
	var races []Race
	err := ds.DB.Where("season_id = ?", seasonID).
		Order("round_number").
		Find(&races).Error
	if err != nil {
		return nil, dbError(err, "races_for_season", "season_id", seasonID)
	}
	return races, nil
}

// SessionsForSeason returns every session of a season year with its race
// preloaded, ordered by round then session number.
func (ds *DataStore) SessionsForSeason(year int) ([]Session, error) {
	var sessions []Session
	err := ds.DB.
		Joins("JOIN races ON races.id = sessions.race_id").
		Joins("JOIN seasons ON seasons.id = races.season_id").
		Where("seasons.year = ?", year).
		Preload("Race").
		Order("races.round_number, sessions.session_number").
		Find(&sessions).Error
	if err != nil {
		return nil, dbError(err, "sessions_for_season", "year", year)
	}
	return sessions, nil
}

// GetSessionByID returns a session with its race preloaded, or nil when absent.
func (ds *DataStore) GetSessionByID(id uint) (*Session, error) {
	var session Session
	err := ds.DB.Preload("Race").First(&session, id).Error
	if err != nil {
		if errorIsNotFound(err) {
			return nil, nil
		}
		return nil, dbError(err, "get_session", "session_id", id)
	}
	return &session, nil
}
