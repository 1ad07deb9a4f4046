package pipeline

import (
	"context"
	"sort"

	"github.com/tmakela/pitwall/internal/datastore"
	"github.com/tmakela/pitwall/internal/errors"
	"github.com/tmakela/pitwall/internal/identity"
	"github.com/tmakela/pitwall/internal/provider"
)

// driverIndex maps the identifiers lap rows carry back to resolved drivers.
// Built during driver extraction so lap matching avoids further resolver
// round-trips for drivers already seen in the session results.
type driverIndex struct {
	byNumber map[string]*datastore.Driver
	byAbbr   map[string]*datastore.Driver
	byName   map[string]*datastore.Driver
}

func newDriverIndex() *driverIndex {
	return &driverIndex{
		byNumber: make(map[string]*datastore.Driver),
		byAbbr:   make(map[string]*datastore.Driver),
		byName:   make(map[string]*datastore.Driver),
	}
}

func (idx *driverIndex) put(driver *datastore.Driver) {
	if driver.DriverNumber != "" {
		idx.byNumber[driver.DriverNumber] = driver
	}
	if driver.Abbreviation != "" {
		idx.byAbbr[driver.Abbreviation] = driver
	}
	idx.byName[identity.NormalizeName(driver.FullName)] = driver
}

// lookup matches a lap row to a driver by number first, then abbreviation,
// then normalized name.
func (idx *driverIndex) lookup(row *provider.LapRow) *datastore.Driver {
	if row.DriverNumber != "" {
		if d := idx.byNumber[row.DriverNumber]; d != nil {
			return d
		}
	}
	if row.DriverAbbr != "" {
		if d := idx.byAbbr[row.DriverAbbr]; d != nil {
			return d
		}
	}
	if row.FullName != "" {
		if d := idx.byName[identity.NormalizeName(row.FullName)]; d != nil {
			return d
		}
	}
	return nil
}

// extractDrivers reconciles every result row to a canonical driver, backfills
// identifiers, attaches teams and upserts session results. It runs before any
// other category so later extraction can match rows by the repaired
// identifiers. Returns the index used by lap extraction.
func (r *Runner) extractDrivers(ctx context.Context, sessionID uint, payload *provider.SessionPayload) (*driverIndex, error) {
	idx := newDriverIndex()

	for i := range payload.Results {
		row := &payload.Results[i]
		if row.FullName == "" || row.DriverNumber == "" {
			logger.Warn("skipping result row with incomplete identity",
				"session_id", sessionID,
				"name", row.FullName,
				"number", row.DriverNumber)
			continue
		}

		report := identity.Report{
			FullName:     row.FullName,
			DriverNumber: row.DriverNumber,
			Abbreviation: row.Abbreviation,
		}
		driver, method, err := r.resolver.Resolve(ctx, report, true)
		if err != nil {
			return nil, err
		}
		if driver == nil {
			logger.Warn("result row did not resolve to a driver",
				"session_id", sessionID,
				"name", row.FullName,
				"method", string(method))
			continue
		}

		if _, err := r.resolver.UpdateIdentifiers(driver, report); err != nil {
			return nil, err
		}

		var teamID *uint
		if row.TeamName != "" {
			team, err := r.store.GetOrCreateTeam(row.TeamName)
			if err != nil {
				return nil, err
			}
			teamID = &team.ID
			if driver.TeamID == nil || *driver.TeamID != team.ID {
				driver.TeamID = &team.ID
				if err := r.store.SaveDriver(driver); err != nil {
					return nil, err
				}
			}
		}

		result := &datastore.SessionResult{
			SessionID:    sessionID,
			DriverID:     driver.ID,
			TeamID:       teamID,
			Position:     row.Position,
			GridPosition: row.GridPosition,
			Status:       row.Status,
			DriverNumber: row.DriverNumber,
			Abbreviation: row.Abbreviation,
		}
		if err := r.store.UpsertSessionResult(result); err != nil {
			return nil, err
		}

		idx.put(driver)
	}

	return idx, nil
}

// extractWeather reduces the session's weather samples to medians and
// upserts the single per-session weather row.
func (r *Runner) extractWeather(sessionID uint, payload *provider.SessionPayload) error {
	samples := payload.Weather
	if len(samples) == 0 {
		return errors.Newf("no weather samples in payload").
			Component("pipeline").
			Category(errors.CategoryNotFound).
			Context("session_id", sessionID).
			Build()
	}

	air := make([]float64, 0, len(samples))
	track := make([]float64, 0, len(samples))
	humidity := make([]float64, 0, len(samples))
	pressure := make([]float64, 0, len(samples))
	wind := make([]float64, 0, len(samples))
	windDir := make([]int, 0, len(samples))
	rainfall := false
	for i := range samples {
		s := &samples[i]
		air = append(air, s.AirTemperature)
		track = append(track, s.TrackTemperature)
		humidity = append(humidity, s.Humidity)
		pressure = append(pressure, s.Pressure)
		wind = append(wind, s.WindSpeed)
		windDir = append(windDir, s.WindDirection)
		rainfall = rainfall || s.Rainfall
	}

	weather := &datastore.SessionWeather{
		SessionID:        sessionID,
		AirTemperature:   median(air),
		TrackTemperature: median(track),
		Humidity:         median(humidity),
		Pressure:         median(pressure),
		WindSpeed:        median(wind),
		WindDirection:    medianInt(windDir),
		Rainfall:         rainfall,
		DataSource:       "provider",
	}
	return r.store.UpsertWeather(weather)
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

func medianInt(values []int) int {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]int, len(values))
	copy(sorted, values)
	sort.Ints(sorted)
	return sorted[len(sorted)/2]
}

// extractCircuit upserts the session's geometry tables: corners, marshal
// lights and marshal sectors. The category fails only when all three are
// absent from the payload.
func (r *Runner) extractCircuit(sessionID uint, payload *provider.SessionPayload) error {
	info := payload.Circuit
	if info == nil || (len(info.Corners) == 0 && len(info.MarshalLights) == 0 && len(info.MarshalSectors) == 0) {
		return errors.Newf("no circuit data in payload").
			Component("pipeline").
			Category(errors.CategoryNotFound).
			Context("session_id", sessionID).
			Build()
	}

	corners := make([]datastore.Corner, 0, len(info.Corners))
	for _, p := range info.Corners {
		corners = append(corners, datastore.Corner{
			SessionID: sessionID,
			Number:    p.Number,
			Letter:    p.Letter,
			X:         p.X,
			Y:         p.Y,
			Angle:     p.Angle,
			Distance:  p.Distance,
		})
	}
	if err := r.store.UpsertCorners(sessionID, corners); err != nil {
		return err
	}

	lights := make([]datastore.MarshalLight, 0, len(info.MarshalLights))
	for _, p := range info.MarshalLights {
		lights = append(lights, datastore.MarshalLight{
			SessionID: sessionID,
			Number:    p.Number,
			Letter:    p.Letter,
			X:         p.X,
			Y:         p.Y,
			Angle:     p.Angle,
			Distance:  p.Distance,
		})
	}
	if err := r.store.UpsertMarshalLights(sessionID, lights); err != nil {
		return err
	}

	sectors := make([]datastore.MarshalSector, 0, len(info.MarshalSectors))
	for _, p := range info.MarshalSectors {
		sectors = append(sectors, datastore.MarshalSector{
			SessionID: sessionID,
			Number:    p.Number,
			Letter:    p.Letter,
			X:         p.X,
			Y:         p.Y,
			Angle:     p.Angle,
			Distance:  p.Distance,
		})
	}
	return r.store.UpsertMarshalSectors(sessionID, sectors)
}

// extractLaps upserts per-lap timing rows and derives pit stops from the
// pit in/out markers. Rows whose driver cannot be matched are skipped with
// a warning rather than failing the category.
func (r *Runner) extractLaps(ctx context.Context, sessionID uint, payload *provider.SessionPayload, idx *driverIndex) error {
	if len(payload.Laps) == 0 {
		return errors.Newf("no lap data in payload").
			Component("pipeline").
			Category(errors.CategoryNotFound).
			Context("session_id", sessionID).
			Build()
	}

	laps := make([]datastore.Lap, 0, len(payload.Laps))
	byDriver := make(map[uint][]*datastore.Lap)
	skipped := 0
	for i := range payload.Laps {
		row := &payload.Laps[i]
		driver := idx.lookup(row)
		if driver == nil {
			driver = r.resolveLapDriver(ctx, row, idx)
		}
		if driver == nil {
			skipped++
			continue
		}

		laps = append(laps, datastore.Lap{
			SessionID:      sessionID,
			DriverID:       driver.ID,
			LapNumber:      row.LapNumber,
			LapTime:        row.LapTime,
			Sector1Time:    row.Sector1Time,
			Sector2Time:    row.Sector2Time,
			Sector3Time:    row.Sector3Time,
			Compound:       row.Compound,
			TyreLife:       row.TyreLife,
			FreshTyre:      row.FreshTyre,
			Position:       row.Position,
			PitInTime:      row.PitInTime,
			PitOutTime:     row.PitOutTime,
			SpeedI1:        row.SpeedI1,
			SpeedI2:        row.SpeedI2,
			SpeedFL:        row.SpeedFL,
			SpeedST:        row.SpeedST,
			IsPersonalBest: row.IsPersonalBest,
			IsAccurate:     row.IsAccurate,
			TrackStatus:    row.TrackStatus,
		})
		lap := &laps[len(laps)-1]
		byDriver[driver.ID] = append(byDriver[driver.ID], lap)
	}
	if skipped > 0 {
		logger.Warn("lap rows skipped, driver not matched",
			"session_id", sessionID,
			"skipped", skipped)
	}
	if len(laps) == 0 {
		return errors.Newf("no lap row matched a known driver").
			Component("pipeline").
			Category(errors.CategoryIdentity).
			Context("session_id", sessionID).
			Build()
	}

	if err := r.store.UpsertLaps(laps); err != nil {
		return err
	}

	stops := derivePitStops(sessionID, byDriver)
	if len(stops) == 0 {
		return nil
	}
	return r.store.UpsertPitStops(stops)
}

// resolveLapDriver falls back to the resolver for a lap row whose driver was
// absent from the session results, without creating new drivers.
func (r *Runner) resolveLapDriver(ctx context.Context, row *provider.LapRow, idx *driverIndex) *datastore.Driver {
	report := identity.Report{
		FullName:     row.FullName,
		DriverNumber: row.DriverNumber,
		Abbreviation: row.DriverAbbr,
	}
	driver, _, err := r.resolver.Resolve(ctx, report, false)
	if err != nil {
		logger.Warn("lap driver resolution failed",
			"name", row.FullName,
			"number", row.DriverNumber,
			"error", err)
		return nil
	}
	if driver != nil {
		idx.put(driver)
	}
	return driver
}

// derivePitStops walks each driver's laps in order and turns pit-in markers
// into numbered stops. When the lap after a pit-in carries a pit-out time,
// the stop duration is the difference.
func derivePitStops(sessionID uint, byDriver map[uint][]*datastore.Lap) []datastore.PitStop {
	var stops []datastore.PitStop
	for driverID, laps := range byDriver {
		sort.Slice(laps, func(i, j int) bool {
			return laps[i].LapNumber < laps[j].LapNumber
		})

		outByLap := make(map[int]*float64, len(laps))
		for _, lap := range laps {
			if lap.PitOutTime != nil {
				outByLap[lap.LapNumber] = lap.PitOutTime
			}
		}

		stopNumber := 0
		for _, lap := range laps {
			if lap.PitInTime == nil {
				continue
			}
			stopNumber++
			stop := datastore.PitStop{
				SessionID:  sessionID,
				DriverID:   driverID,
				StopNumber: stopNumber,
				LapNumber:  lap.LapNumber,
				PitInTime:  lap.PitInTime,
			}
			if out := outByLap[lap.LapNumber+1]; out != nil {
				stop.PitOutTime = out
				if *out > *lap.PitInTime {
					duration := *out - *lap.PitInTime
					stop.Duration = &duration
				}
			}
			stops = append(stops, stop)
		}
	}
	return stops
}

// drsOpenThreshold is the smallest raw DRS channel value that means the flap
// is open.
const drsOpenThreshold = 10

// extractTelemetry aggregates each lap's car telemetry samples into a per-lap
// metrics row and upserts them. Laps without a telemetry channel are skipped;
// the category fails only when no lap carried samples at all.
func (r *Runner) extractTelemetry(ctx context.Context, sessionID uint, payload *provider.SessionPayload, idx *driverIndex) error {
	var rows []datastore.LapTelemetry
	withSamples := 0
	unmatched := 0
	for i := range payload.Laps {
		row := &payload.Laps[i]
		if len(row.Telemetry) == 0 {
			continue
		}
		withSamples++
		driver := idx.lookup(row)
		if driver == nil {
			driver = r.resolveLapDriver(ctx, row, idx)
		}
		if driver == nil {
			unmatched++
			continue
		}
		rows = append(rows, aggregateLapTelemetry(sessionID, driver.ID, row))
	}

	if withSamples == 0 {
		return errors.Newf("no telemetry samples in payload").
			Component("pipeline").
			Category(errors.CategoryNotFound).
			Context("session_id", sessionID).
			Build()
	}
	if unmatched > 0 {
		logger.Warn("telemetry laps skipped, driver not matched",
			"session_id", sessionID,
			"skipped", unmatched)
	}
	if len(rows) == 0 {
		return errors.Newf("no telemetry lap matched a known driver").
			Component("pipeline").
			Category(errors.CategoryIdentity).
			Context("session_id", sessionID).
			Build()
	}

	logger.Debug("telemetry aggregated",
		"session_id", sessionID,
		"laps_with_telemetry", len(rows),
		"laps_total", len(payload.Laps))
	return r.store.UpsertLapTelemetry(rows)
}

// aggregateLapTelemetry reduces one lap's telemetry samples to the stored
// metrics: speed max/min/avg, full-throttle and braking percentages, gear and
// RPM extremes, DRS activation count and the distance covered with the flap
// open.
func aggregateLapTelemetry(sessionID, driverID uint, row *provider.LapRow) datastore.LapTelemetry {
	samples := row.Telemetry
	agg := datastore.LapTelemetry{
		SessionID: sessionID,
		DriverID:  driverID,
		LapNumber: row.LapNumber,
	}

	maxSpeed, minSpeed := samples[0].Speed, samples[0].Speed
	var speedSum, throttleSum float64
	fullThrottle, braking := 0, 0
	maxGear, maxRPM, rpmSum := 0, 0, 0

	activations := 0
	var drsDistance, prevDRSDistance float64
	prevOpen := false
	seenOpen := false

	for i := range samples {
		s := &samples[i]
		if s.Speed > maxSpeed {
			maxSpeed = s.Speed
		}
		if s.Speed < minSpeed {
			minSpeed = s.Speed
		}
		speedSum += s.Speed
		throttleSum += s.Throttle
		if s.Throttle >= 100 {
			fullThrottle++
		}
		if s.Brake {
			braking++
		}
		if s.Gear > maxGear {
			maxGear = s.Gear
		}
		if s.RPM > maxRPM {
			maxRPM = s.RPM
		}
		rpmSum += s.RPM

		open := s.DRS >= drsOpenThreshold
		if open {
			if !prevOpen {
				activations++
			}
			if seenOpen {
				drsDistance += s.Distance - prevDRSDistance
			}
			prevDRSDistance = s.Distance
			seenOpen = true
		}
		prevOpen = open
	}

	n := float64(len(samples))
	avgSpeed := speedSum / n
	pctFull := float64(fullThrottle) / n * 100
	avgThrottle := throttleSum / n
	pctBrake := float64(braking) / n * 100
	avgRPM := rpmSum / len(samples)

	agg.MaxSpeed = &maxSpeed
	agg.MinSpeed = &minSpeed
	agg.AvgSpeed = &avgSpeed
	agg.ThrottlePctFull = &pctFull
	agg.ThrottlePctAvg = &avgThrottle
	agg.BrakePct = &pctBrake
	agg.MaxGear = &maxGear
	agg.MaxRPM = &maxRPM
	agg.AvgRPM = &avgRPM
	agg.DRSActivations = activations
	if seenOpen {
		agg.DRSDistance = &drsDistance
	}
	return agg
}

