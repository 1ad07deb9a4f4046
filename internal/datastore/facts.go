package datastore

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// HasWeather reports whether a weather row exists for the session.
func (ds *DataStore) HasWeather(sessionID uint) (bool, error) {
	var count int64
	err := ds.DB.Model(&SessionWeather{}).
		Where("session_id = ?", sessionID).
		Count(&count).Error
	if err != nil {
		return false, dbError(err, "has_weather", "session_id", sessionID)
	}
	return count > 0, nil
}

// UpsertWeather creates or replaces the weather row for a session.
func (ds *DataStore) UpsertWeather(weather *SessionWeather) error {
	err := ds.DB.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "session_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"air_temperature", "track_temperature", "humidity", "pressure",
			"wind_speed", "wind_direction", "rainfall", "data_source", "updated_at",
		}),
	}).Create(weather).Error
	if err != nil {
		return dbError(err, "upsert_weather", "session_id", weather.SessionID)
	}
	return nil
}

// UpsertCorners replaces the corner table for a session in one transaction,
// keyed by (session, number, letter).
func (ds *DataStore) UpsertCorners(sessionID uint, corners []Corner) error {
	err := ds.DB.Transaction(func(tx *gorm.DB) error {
		for i := range corners {
			corners[i].SessionID = sessionID
			if err := tx.Clauses(clause.OnConflict{
				Columns: []clause.Column{
					{Name: "session_id"}, {Name: "number"}, {Name: "letter"},
				},
				DoUpdates: clause.AssignmentColumns([]string{"x", "y", "angle", "distance"}),
			}).Create(&corners[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return dbError(err, "upsert_corners", "session_id", sessionID, "count", len(corners))
	}
	return nil
}

// UpsertMarshalLights replaces the marshal light table for a session, keyed
// by (session, number, letter).
func (ds *DataStore) UpsertMarshalLights(sessionID uint, lights []MarshalLight) error {
	if len(lights) == 0 {
		return nil
	}
	err := ds.DB.Transaction(func(tx *gorm.DB) error {
		for i := range lights {
			lights[i].SessionID = sessionID
			if err := tx.Clauses(clause.OnConflict{
				Columns: []clause.Column{
					{Name: "session_id"}, {Name: "number"}, {Name: "letter"},
				},
				DoUpdates: clause.AssignmentColumns([]string{"x", "y", "angle", "distance"}),
			}).Create(&lights[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return dbError(err, "upsert_marshal_lights", "session_id", sessionID, "count", len(lights))
	}
	return nil
}

// UpsertMarshalSectors replaces the marshal sector table for a session, keyed
// by (session, number, letter).
func (ds *DataStore) UpsertMarshalSectors(sessionID uint, sectors []MarshalSector) error {
	if len(sectors) == 0 {
		return nil
	}
	err := ds.DB.Transaction(func(tx *gorm.DB) error {
		for i := range sectors {
			sectors[i].SessionID = sessionID
			if err := tx.Clauses(clause.OnConflict{
				Columns: []clause.Column{
					{Name: "session_id"}, {Name: "number"}, {Name: "letter"},
				},
				DoUpdates: clause.AssignmentColumns([]string{"x", "y", "angle", "distance"}),
			}).Create(&sectors[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return dbError(err, "upsert_marshal_sectors", "session_id", sessionID, "count", len(sectors))
	}
	return nil
}

// UpsertLaps writes lap rows keyed by (session, driver, lap number).
func (ds *DataStore) UpsertLaps(laps []Lap) error {
	if len(laps) == 0 {
		return nil
	}
	err := ds.DB.Transaction(func(tx *gorm.DB) error {
		for i := range laps {
			if err := tx.Clauses(clause.OnConflict{
				Columns: []clause.Column{
					{Name: "session_id"}, {Name: "driver_id"}, {Name: "lap_number"},
				},
				DoUpdates: clause.AssignmentColumns([]string{
					"lap_time", "sector1_time", "sector2_time", "sector3_time",
					"compound", "tyre_life", "fresh_tyre", "position",
					"pit_in_time", "pit_out_time",
					"speed_i1", "speed_i2", "speed_fl", "speed_st",
					"is_personal_best", "is_accurate", "track_status",
				}),
			}).Create(&laps[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return dbError(err, "upsert_laps", "count", len(laps))
	}
	return nil
}

// UpsertLapTelemetry writes per-lap telemetry aggregates keyed by
// (session, driver, lap number).
func (ds *DataStore) UpsertLapTelemetry(rows []LapTelemetry) error {
	if len(rows) == 0 {
		return nil
	}
	err := ds.DB.Transaction(func(tx *gorm.DB) error {
		for i := range rows {
			if err := tx.Clauses(clause.OnConflict{
				Columns: []clause.Column{
					{Name: "session_id"}, {Name: "driver_id"}, {Name: "lap_number"},
				},
				DoUpdates: clause.AssignmentColumns([]string{
					"max_speed", "min_speed", "avg_speed",
					"throttle_pct_full", "throttle_pct_avg", "brake_pct",
					"max_gear", "max_rpm", "avg_rpm",
					"drs_activations", "drs_distance",
				}),
			}).Create(&rows[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return dbError(err, "upsert_lap_telemetry", "count", len(rows))
	}
	return nil
}

// UpsertPitStops writes pit stop rows keyed by (session, driver, stop number).
func (ds *DataStore) UpsertPitStops(stops []PitStop) error {
	if len(stops) == 0 {
		return nil
	}
	err := ds.DB.Transaction(func(tx *gorm.DB) error {
		for i := range stops {
			if err := tx.Clauses(clause.OnConflict{
				Columns: []clause.Column{
					{Name: "session_id"}, {Name: "driver_id"}, {Name: "stop_number"},
				},
				DoUpdates: clause.AssignmentColumns([]string{
					"lap_number", "pit_in_time", "pit_out_time", "duration",
				}),
			}).Create(&stops[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return dbError(err, "upsert_pit_stops", "count", len(stops))
	}
	return nil
}
