package models

import "errors"

var (
	// ErrNotFound is returned when a journey, node, segment, or
	// enrollment cannot be located.
	ErrNotFound = errors.New("not found")

	// ErrCorruptedState is returned when an enrollment references a node
	// that does not exist in its journey. It halts processing of that
	// enrollment and must surface to an operator, never be retried
	// silently.
	ErrCorruptedState = errors.New("enrollment references unknown node")

	// ErrStaleEnrollment is returned by stores when a save carries an
	// outdated version. The caller drops the write; the next scheduler
	// pass works from fresh state.
	ErrStaleEnrollment = errors.New("enrollment version is stale")

	// ErrNotConfigured is returned when messaging is not set up for the
	// store owning the journey.
	ErrNotConfigured = errors.New("messaging not configured")

	// ErrValidation is returned for malformed definitions and requests.
	ErrValidation = errors.New("validation failed")

	// ErrEntryBlocked is returned by EnrollCustomer when entry rules
	// (frequency, max entries) refuse the enrollment.
	ErrEntryBlocked = errors.New("entry rules block enrollment")
)
