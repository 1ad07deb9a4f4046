package datastore

import (
	"gorm.io/gorm/clause"
)

// DriverByName returns the driver whose full name matches case-insensitively,
// or nil when no such driver exists.
func (ds *DataStore) DriverByName(fullName string) (*Driver, error) {
	var driver Driver
	err := ds.DB.Where("LOWER(full_name) = LOWER(?)", fullName).First(&driver).Error
	if err != nil {
		if errorIsNotFound(err) {
			return nil, nil
		}
		return nil, dbError(err, "driver_by_name", "full_name", fullName)
	}
	return &driver, nil
}

// DriverByNumber returns the driver carrying the given race number, or nil.
func (ds *DataStore) DriverByNumber(number string) (*Driver, error) {
	if number == "" {
		return nil, nil
	}
	var driver Driver
	err := ds.DB.Where("driver_number = ?", number).First(&driver).Error
	if err != nil {
		if errorIsNotFound(err) {
			return nil, nil
		}
		return nil, dbError(err, "driver_by_number", "driver_number", number)
	}
	return &driver, nil
}

// DriverByAbbreviation returns the driver with the given three-letter code
// (case-insensitive), or nil.
func (ds *DataStore) DriverByAbbreviation(abbr string) (*Driver, error) {
	if abbr == "" {
		return nil, nil
	}
	var driver Driver
	err := ds.DB.Where("LOWER(abbreviation) = LOWER(?)", abbr).First(&driver).Error
	if err != nil {
		if errorIsNotFound(err) {
			return nil, nil
		}
		return nil, dbError(err, "driver_by_abbreviation", "abbreviation", abbr)
	}
	return &driver, nil
}

// DriversByLastName returns every driver sharing a surname, case-insensitively.
func (ds *DataStore) DriversByLastName(lastName string) ([]Driver, error) {
	var drivers []Driver
	err := ds.DB.Where("LOWER(last_name) = LOWER(?)", lastName).Find(&drivers).Error
	if err != nil {
		return nil, dbError(err, "drivers_by_last_name", "last_name", lastName)
	}
	return drivers, nil
}

// AllDrivers returns the full roster. Roster scale is tens of drivers, so a
// full scan is fine for the normalized-name matching strategy.
func (ds *DataStore) AllDrivers() ([]Driver, error) {
	var drivers []Driver
	if err := ds.DB.Order("full_name").Find(&drivers).Error; err != nil {
		return nil, dbError(err, "all_drivers")
	}
	return drivers, nil
}

// CreateDriver inserts a new driver.
func (ds *DataStore) CreateDriver(driver *Driver) error {
	if err := ds.DB.Create(driver).Error; err != nil {
		return dbError(err, "create_driver", "full_name", driver.FullName)
	}
	return nil
}

// SaveDriver persists changes to an existing driver.
func (ds *DataStore) SaveDriver(driver *Driver) error {
	if err := ds.DB.Save(driver).Error; err != nil {
		return dbError(err, "save_driver", "full_name", driver.FullName)
	}
	return nil
}

// GetOrCreateTeam returns the team with the given name, creating it with a
// derived short name when absent.
func (ds *DataStore) GetOrCreateTeam(name string) (*Team, error) {
	shortName := name
	if len(shortName) > 3 {
		shortName = shortName[:3]
	}
	team := Team{Name: name}
	err := ds.DB.Where("name = ?", name).
		Attrs(Team{ShortName: shortName}).
		FirstOrCreate(&team).Error
	if err != nil {
		return nil, dbError(err, "get_or_create_team", "name", name)
	}
	return &team, nil
}

// UpsertSessionResult creates or updates a driver's result row for a session,
// keyed by (session, driver).
func (ds *DataStore) UpsertSessionResult(result *SessionResult) error {
	err := ds.DB.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "session_id"}, {Name: "driver_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"team_id", "position", "grid_position", "status",
			"driver_number", "abbreviation", "updated_at",
		}),
	}).Create(result).Error
	if err != nil {
		return dbError(err, "upsert_session_result",
			"session_id", result.SessionID, "driver_id", result.DriverID)
	}
	return nil
}
