// model.go this code defines the data model for the application
package datastore

import "time"

// Category identifies one extractable data category for a session.
type Category string

const (
	CategoryWeather   Category = "weather"
	CategoryCircuit   Category = "circuit"
	CategoryLaps      Category = "laps"
	CategoryTelemetry Category = "telemetry"
)

// AllCategories lists every data category the pipeline knows how to extract,
// in extraction order.
func AllCategories() []Category {
	return []Category{CategoryWeather, CategoryCircuit, CategoryLaps, CategoryTelemetry}
}

// Event format classifications for a race weekend.
const (
	FormatConventional = "conventional"
	FormatSprint       = "sprint"
	FormatTesting      = "testing"
)

// Season represents one championship year.
type Season struct {
	ID     uint `gorm:"primaryKey"`
	Year   int  `gorm:"uniqueIndex;not null"`
	Active bool
	Races  []Race `gorm:"foreignKey:SeasonID;constraint:OnDelete:CASCADE"`
}

// Race represents one event of a season. Testing events carry a round number
// of zero and are identified by name instead.
type Race struct {
	ID          uint   `gorm:"primaryKey"`
	SeasonID    uint   `gorm:"index;not null;uniqueIndex:idx_races_season_round;uniqueIndex:idx_races_season_name"`
	Name        string `gorm:"uniqueIndex:idx_races_season_name"`
	RoundNumber int    `gorm:"uniqueIndex:idx_races_season_round"`
	Location    string
	EventFormat string `gorm:"type:varchar(20);default:conventional"`
	RaceDate    *time.Time
	Sessions    []Session `gorm:"foreignKey:RaceID;constraint:OnDelete:CASCADE"`
}

// IsTesting reports whether the race is a pre-season testing event,
// addressed by event name rather than round number at the provider.
func (r *Race) IsTesting() bool {
	return r.EventFormat == FormatTesting
}

// Session represents one timed on-track segment of a race weekend.
type Session struct {
	ID            uint `gorm:"primaryKey"`
	RaceID        uint `gorm:"index;not null;uniqueIndex:idx_sessions_race_number"`
	SessionNumber int  `gorm:"uniqueIndex:idx_sessions_race_number"` // 1-5 slot within the weekend
	SessionType   string
	Date          *time.Time
	Race          Race `gorm:"foreignKey:RaceID"`
}

// SessionLoadStatus tracks which data categories have been ingested for a
// session, plus provider call bookkeeping. One-to-one with Session.
type SessionLoadStatus struct {
	ID        uint `gorm:"primaryKey"`
	SessionID uint `gorm:"uniqueIndex;not null"`

	HasWeather   bool `gorm:"index"`
	HasCircuit   bool `gorm:"index"`
	HasLaps      bool `gorm:"index"`
	HasTelemetry bool

	WeatherLoadedAt   *time.Time
	CircuitLoadedAt   *time.Time
	LapsLoadedAt      *time.Time
	TelemetryLoadedAt *time.Time

	LastAPICall  *time.Time `gorm:"index"`
	APICallCount int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Has reports whether the given category has been loaded.
func (s *SessionLoadStatus) Has(category Category) bool {
	switch category {
	case CategoryWeather:
		return s.HasWeather
	case CategoryCircuit:
		return s.HasCircuit
	case CategoryLaps:
		return s.HasLaps
	case CategoryTelemetry:
		return s.HasTelemetry
	}
	return false
}

// MarkLoaded sets the flag and timestamp for a category.
func (s *SessionLoadStatus) MarkLoaded(category Category, ts time.Time) {
	switch category {
	case CategoryWeather:
		s.HasWeather = true
		s.WeatherLoadedAt = &ts
	case CategoryCircuit:
		s.HasCircuit = true
		s.CircuitLoadedAt = &ts
	case CategoryLaps:
		s.HasLaps = true
		s.LapsLoadedAt = &ts
	case CategoryTelemetry:
		s.HasTelemetry = true
		s.TelemetryLoadedAt = &ts
	}
}

// MissingCategories returns the categories not yet loaded, in extraction order.
func (s *SessionLoadStatus) MissingCategories() []Category {
	var missing []Category
	for _, c := range AllCategories() {
		if !s.Has(c) {
			missing = append(missing, c)
		}
	}
	return missing
}

// Team represents a constructor.
type Team struct {
	ID        uint   `gorm:"primaryKey"`
	Name      string `gorm:"uniqueIndex;not null"`
	ShortName string `gorm:"type:varchar(10)"`
}

// Driver is the canonical competitor entity, keyed by full name. Number and
// abbreviation arrive lazily from session imports and may be empty.
type Driver struct {
	ID           uint   `gorm:"primaryKey"`
	FullName     string `gorm:"uniqueIndex;not null"`
	FirstName    string
	LastName     string `gorm:"index"`
	DriverNumber string `gorm:"type:varchar(4);index"`
	Abbreviation string `gorm:"type:varchar(4);index"`
	TeamID       *uint
	Team         *Team `gorm:"foreignKey:TeamID"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// SessionResult records a driver's classification in one session.
type SessionResult struct {
	ID           uint `gorm:"primaryKey"`
	SessionID    uint `gorm:"index;not null;uniqueIndex:idx_results_session_driver"`
	DriverID     uint `gorm:"uniqueIndex:idx_results_session_driver"`
	TeamID       *uint
	Position     *int
	GridPosition *int
	Status       string
	DriverNumber string `gorm:"type:varchar(4)"`
	Abbreviation string `gorm:"type:varchar(4)"`
	UpdatedAt    time.Time
}

// SessionWeather holds session-level weather medians. One-to-one with Session.
type SessionWeather struct {
	ID               uint `gorm:"primaryKey"`
	SessionID        uint `gorm:"uniqueIndex;not null"`
	AirTemperature   float64
	TrackTemperature float64
	Humidity         float64
	Pressure         float64
	WindSpeed        float64
	WindDirection    int
	Rainfall         bool
	DataSource       string `gorm:"type:varchar(20)"`
	UpdatedAt        time.Time
}

// Corner is one corner of the circuit layout as reported for a session.
type Corner struct {
	ID        uint   `gorm:"primaryKey"`
	SessionID uint   `gorm:"index;not null;uniqueIndex:idx_corners_session_number_letter"`
	Number    int    `gorm:"uniqueIndex:idx_corners_session_number_letter"`
	Letter    string `gorm:"type:varchar(4);uniqueIndex:idx_corners_session_number_letter"`
	X         float64
	Y         float64
	Angle     float64
	Distance  float64
}

// MarshalLight is one marshal light post on the circuit map.
type MarshalLight struct {
	ID        uint   `gorm:"primaryKey"`
	SessionID uint   `gorm:"index;not null;uniqueIndex:idx_marshal_lights_session_number_letter"`
	Number    int    `gorm:"uniqueIndex:idx_marshal_lights_session_number_letter"`
	Letter    string `gorm:"type:varchar(4);uniqueIndex:idx_marshal_lights_session_number_letter"`
	X         float64
	Y         float64
	Angle     float64
	Distance  float64
}

// MarshalSector is one marshal sector boundary on the circuit map.
type MarshalSector struct {
	ID        uint   `gorm:"primaryKey"`
	SessionID uint   `gorm:"index;not null;uniqueIndex:idx_marshal_sectors_session_number_letter"`
	Number    int    `gorm:"uniqueIndex:idx_marshal_sectors_session_number_letter"`
	Letter    string `gorm:"type:varchar(4);uniqueIndex:idx_marshal_sectors_session_number_letter"`
	X         float64
	Y         float64
	Angle     float64
	Distance  float64
}

// Lap is one timed lap by one driver in one session.
type Lap struct {
	ID             uint `gorm:"primaryKey"`
	SessionID      uint `gorm:"index;not null;uniqueIndex:idx_laps_session_driver_lap"`
	DriverID       uint `gorm:"index;uniqueIndex:idx_laps_session_driver_lap"`
	LapNumber      int  `gorm:"uniqueIndex:idx_laps_session_driver_lap"`
	LapTime        *float64
	Sector1Time    *float64
	Sector2Time    *float64
	Sector3Time    *float64
	Compound       string `gorm:"type:varchar(20)"`
	TyreLife       *int
	FreshTyre      bool
	Position       *int
	PitInTime      *float64
	PitOutTime     *float64
	SpeedI1        *float64
	SpeedI2        *float64
	SpeedFL        *float64
	SpeedST        *float64
	IsPersonalBest bool
	IsAccurate     bool
	TrackStatus    string `gorm:"type:varchar(10)"`
}

// LapTelemetry holds per-lap aggregates of the high-frequency car telemetry
// channel. One row per lap, keyed like laps; the raw samples are not stored.
type LapTelemetry struct {
	ID        uint `gorm:"primaryKey"`
	SessionID uint `gorm:"index;not null;uniqueIndex:idx_lap_telemetry_session_driver_lap"`
	DriverID  uint `gorm:"uniqueIndex:idx_lap_telemetry_session_driver_lap"`
	LapNumber int  `gorm:"uniqueIndex:idx_lap_telemetry_session_driver_lap"`

	MaxSpeed *float64
	MinSpeed *float64
	AvgSpeed *float64

	ThrottlePctFull *float64
	ThrottlePctAvg  *float64
	BrakePct        *float64

	MaxGear *int
	MaxRPM  *int
	AvgRPM  *int

	DRSActivations int
	DRSDistance    *float64
}

// PitStop records one pit stop, derived from lap pit in/out times.
type PitStop struct {
	ID         uint `gorm:"primaryKey"`
	SessionID  uint `gorm:"index;not null;uniqueIndex:idx_pitstops_session_driver_stop"`
	DriverID   uint `gorm:"uniqueIndex:idx_pitstops_session_driver_stop"`
	StopNumber int  `gorm:"uniqueIndex:idx_pitstops_session_driver_stop"`
	LapNumber  int
	PitInTime  *float64
	PitOutTime *float64
	Duration   *float64
}
