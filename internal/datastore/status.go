package datastore

import (
	"time"

	"gorm.io/gorm"
)

// GetLoadStatus returns the load status row for a session, or nil when the
// session has never been loaded.
func (ds *DataStore) GetLoadStatus(sessionID uint) (*SessionLoadStatus, error) {
	var status SessionLoadStatus
	err := ds.DB.Where("session_id = ?", sessionID).First(&status).Error
	if err != nil {
		if errorIsNotFound(err) {
			return nil, nil
		}
		return nil, dbError(err, "get_load_status", "session_id", sessionID)
	}
	return &status, nil
}

// getOrCreateLoadStatus fetches the status row inside tx, creating it when absent.
func getOrCreateLoadStatus(tx *gorm.DB, sessionID uint) (*SessionLoadStatus, error) {
	status := SessionLoadStatus{SessionID: sessionID}
	if err := tx.Where("session_id = ?", sessionID).FirstOrCreate(&status).Error; err != nil {
		return nil, err
	}
	return &status, nil
}

// MarkCategoryLoaded flags a data category as ingested for a session,
// creating the status row when needed.
func (ds *DataStore) MarkCategoryLoaded(sessionID uint, category Category, ts time.Time) error {
	err := ds.DB.Transaction(func(tx *gorm.DB) error {
		status, err := getOrCreateLoadStatus(tx, sessionID)
		if err != nil {
			return err
		}
		status.MarkLoaded(category, ts)
		return tx.Save(status).Error
	})
	if err != nil {
		return dbError(err, "mark_category_loaded",
			"session_id", sessionID, "category", string(category))
	}
	return nil
}

// RecordAPICall bumps the call counter and last-call timestamp for a session.
// Purely observability: the rate governor is reactive, not predictive.
func (ds *DataStore) RecordAPICall(sessionID uint, ts time.Time) error {
	err := ds.DB.Transaction(func(tx *gorm.DB) error {
		status, err := getOrCreateLoadStatus(tx, sessionID)
		if err != nil {
			return err
		}
		status.LastAPICall = &ts
		status.APICallCount++
		return tx.Save(status).Error
	})
	if err != nil {
		return dbError(err, "record_api_call", "session_id", sessionID)
	}
	return nil
}

// CallsSince counts sessions whose last provider call happened after since.
func (ds *DataStore) CallsSince(since time.Time) (int64, error) {
	var count int64
	err := ds.DB.Model(&SessionLoadStatus{}).
		Where("last_api_call >= ?", since).
		Count(&count).Error
	if err != nil {
		return 0, dbError(err, "calls_since")
	}
	return count, nil
}

// OldestCallSince returns the oldest last-call timestamp after since, or nil
// when no call falls inside the window.
func (ds *DataStore) OldestCallSince(since time.Time) (*time.Time, error) {
	var status SessionLoadStatus
	err := ds.DB.Where("last_api_call >= ?", since).
		Order("last_api_call").
		First(&status).Error
	if err != nil {
		if errorIsNotFound(err) {
			return nil, nil
		}
		return nil, dbError(err, "oldest_call_since")
	}
	return status.LastAPICall, nil
}
