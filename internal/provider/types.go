package provider

import (
	"fmt"
	"time"
)

// SessionRef identifies one session at the provider. Testing events are
// addressed by event name, everything else by round number.
type SessionRef struct {
	SessionID   uint   // database session id, used for call recording
	Year        int    // season year
	Round       int    // race round number
	EventName   string // set for testing events, replaces the round number
	SessionType string // domain session type, e.g. "Practice 1"
}

// String renders the reference the way it appears in logs.
func (r SessionRef) String() string {
	if r.EventName != "" {
		return fmt.Sprintf("%d %s %s", r.Year, r.EventName, r.SessionType)
	}
	return fmt.Sprintf("%d Round %d %s", r.Year, r.Round, r.SessionType)
}

// sessionCodes maps domain session types to the provider's compact codes.
var sessionCodes = map[string]string{
	"Practice 1":        "FP1",
	"Practice 2":        "FP2",
	"Practice 3":        "FP3",
	"Qualifying":        "Q",
	"Sprint Qualifying": "SQ",
	"Sprint":            "S",
	"Race":              "R",
}

// SessionCode converts a domain session type to the provider's session code.
// Unknown types default to the race code.
func SessionCode(sessionType string) string {
	if code, ok := sessionCodes[sessionType]; ok {
		return code
	}
	return "R"
}

// SessionPayload is the full decoded payload of one session fetch. One load
// serves every data category for that session.
type SessionPayload struct {
	Results []ResultRow     `json:"results"`
	Weather []WeatherSample `json:"weather"`
	Circuit *CircuitInfo    `json:"circuit,omitempty"`
	Laps    []LapRow        `json:"laps"`
}

// ResultRow is one driver's classification row in the session results.
type ResultRow struct {
	FullName     string `json:"fullName"`
	DriverNumber string `json:"driverNumber"`
	Abbreviation string `json:"abbreviation"`
	TeamName     string `json:"teamName"`
	Position     *int   `json:"position,omitempty"`
	GridPosition *int   `json:"gridPosition,omitempty"`
	Status       string `json:"status"`
}

// WeatherSample is one periodic weather reading during the session.
type WeatherSample struct {
	Time             time.Time `json:"time"`
	AirTemperature   float64   `json:"airTemp"`
	TrackTemperature float64   `json:"trackTemp"`
	Humidity         float64   `json:"humidity"`
	Pressure         float64   `json:"pressure"`
	WindSpeed        float64   `json:"windSpeed"`
	WindDirection    int       `json:"windDirection"`
	Rainfall         bool      `json:"rainfall"`
}

// CircuitInfo carries the circuit geometry tables reported for a session:
// corners, marshal light posts and marshal sectors.
type CircuitInfo struct {
	Corners        []TrackPoint `json:"corners"`
	MarshalLights  []TrackPoint `json:"marshalLights"`
	MarshalSectors []TrackPoint `json:"marshalSectors"`
}

// TrackPoint is one entry of a circuit geometry table. All three tables share
// the same shape: a numbered point on the track map with an optional letter
// suffix.
type TrackPoint struct {
	Number   int     `json:"number"`
	Letter   string  `json:"letter"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Angle    float64 `json:"angle"`
	Distance float64 `json:"distance"`
}

// TelemetrySample is one car telemetry reading within a lap. DRS carries the
// provider's raw channel encoding: values of 10 and above mean the flap is
// open.
type TelemetrySample struct {
	Speed    float64 `json:"speed"`
	Throttle float64 `json:"throttle"`
	Brake    bool    `json:"brake"`
	Gear     int     `json:"gear"`
	RPM      int     `json:"rpm"`
	DRS      int     `json:"drs"`
	Distance float64 `json:"distance"`
}

// LapRow is one lap-level timing row. Times are seconds from session start,
// nil when the provider has no value.
type LapRow struct {
	DriverNumber   string   `json:"driverNumber"`
	DriverAbbr     string   `json:"driverAbbr"`
	FullName       string   `json:"fullName"`
	TeamName       string   `json:"teamName"`
	LapNumber      int      `json:"lapNumber"`
	LapTime        *float64 `json:"lapTime,omitempty"`
	Sector1Time    *float64 `json:"sector1Time,omitempty"`
	Sector2Time    *float64 `json:"sector2Time,omitempty"`
	Sector3Time    *float64 `json:"sector3Time,omitempty"`
	Compound       string   `json:"compound"`
	TyreLife       *int     `json:"tyreLife,omitempty"`
	FreshTyre      bool     `json:"freshTyre"`
	TrackStatus    string   `json:"trackStatus"`
	Position       *int     `json:"position,omitempty"`
	PitInTime      *float64 `json:"pitInTime,omitempty"`
	PitOutTime     *float64 `json:"pitOutTime,omitempty"`
	SpeedI1        *float64 `json:"speedI1,omitempty"`
	SpeedI2        *float64 `json:"speedI2,omitempty"`
	SpeedFL        *float64 `json:"speedFL,omitempty"`
	SpeedST        *float64 `json:"speedST,omitempty"`
	IsPersonalBest bool     `json:"isPersonalBest"`
	IsAccurate     bool     `json:"isAccurate"`

	Telemetry []TelemetrySample `json:"telemetry,omitempty"`
}
