// Package datastore provides error handling helpers for database operations
package datastore

import (
	"github.com/tmakela/pitwall/internal/errors"
	"gorm.io/gorm"
)

// dbError creates a properly categorized database error with context
func dbError(err error, operation string, context ...any) error {
	builder := errors.New(err).
		Component("datastore").
		Category(errors.CategoryDatabase).
		Context("operation", operation)

	// Add context pairs
	for i := 0; i < len(context)-1; i += 2 {
		if key, ok := context[i].(string); ok {
			builder = builder.Context(key, context[i+1])
		}
	}

	return builder.Build()
}

// errorIsNotFound reports whether err is gorm's record-not-found error.
func errorIsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
