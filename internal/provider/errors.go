package provider

import (
	"fmt"

	"github.com/tmakela/pitwall/internal/errors"
)

// ErrRateLimited signals that the provider's call budget is exhausted. The
// caller is expected to pause through the rate governor and retry the same
// request; it is never a terminal failure.
var ErrRateLimited = errors.NewStd("provider rate limit exceeded")

// NoDataError means the provider fundamentally has no data for the requested
// session (unknown round or event, cancelled session, pre-telemetry season).
// Retrying cannot help; the caller records the session as having no data.
type NoDataError struct {
	Ref    SessionRef
	Reason string
}

func (e *NoDataError) Error() string {
	return fmt.Sprintf("no data available for %s: %s", e.Ref, e.Reason)
}

// IsNoData reports whether err is a non-retryable no-data failure.
func IsNoData(err error) bool {
	var noData *NoDataError
	return errors.As(err, &noData)
}

// rateLimitError wraps the sentinel with component metadata so errors.Is
// still matches ErrRateLimited through the chain.
func rateLimitError(ref SessionRef) error {
	return errors.New(fmt.Errorf("%w: %s", ErrRateLimited, ref)).
		Component("provider").
		Category(errors.CategoryRateLimit).
		Context("session", ref.String()).
		Build()
}
