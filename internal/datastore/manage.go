package datastore

import (
	"log/slog"
	"time"

	gormlogger "gorm.io/gorm/logger"

	"gorm.io/gorm"
)

// DefaultSlowQueryThreshold defines the duration after which a query is
// considered slow. One second accommodates migration batch queries.
const DefaultSlowQueryThreshold = 1 * time.Second

// createGormLogger configures and returns a new GORM logger instance.
func createGormLogger(debug bool) gormlogger.Interface {
	level := gormlogger.Warn
	if debug {
		level = gormlogger.Info
	}
	return gormlogger.Default.LogMode(level)
}

// performAutoMigration automates database migrations with error handling.
func performAutoMigration(db *gorm.DB, debug bool, dbType string) error {
	migrationStart := time.Now()

	tableMappings := []struct {
		model any
		name  string
	}{
		{&Season{}, "seasons"},
		{&Race{}, "races"},
		{&Session{}, "sessions"},
		{&SessionLoadStatus{}, "session_load_statuses"},
		{&Team{}, "teams"},
		{&Driver{}, "drivers"},
		{&SessionResult{}, "session_results"},
		{&SessionWeather{}, "session_weathers"},
		{&Corner{}, "corners"},
		{&MarshalLight{}, "marshal_lights"},
		{&MarshalSector{}, "marshal_sectors"},
		{&Lap{}, "laps"},
		{&LapTelemetry{}, "lap_telemetries"},
		{&PitStop{}, "pit_stops"},
	}

	for _, table := range tableMappings {
		tableStart := time.Now()
		if err := db.AutoMigrate(table.model); err != nil {
			return dbError(err, "auto_migrate", "db_type", dbType, "table", table.name)
		}
		if debug {
			slog.Debug("table migration completed",
				"db_type", dbType,
				"table", table.name,
				"duration", time.Since(tableStart))
		}
	}

	if debug {
		slog.Debug("database migration completed successfully",
			"db_type", dbType,
			"tables_migrated", len(tableMappings),
			"total_duration", time.Since(migrationStart))
	}

	return nil
}
