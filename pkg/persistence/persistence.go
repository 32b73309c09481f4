// Package persistence provides the data storage abstraction for journeys,
// enrollments, segments, and scan schedules.
package persistence

import (
	"context"
	"time"

	"github.com/loopmsg/journeyd/pkg/models"
)

// JourneyRepository stores journey definitions.
type JourneyRepository interface {
	Journeys(ctx context.Context) ([]*models.Journey, error)
	JourneyByID(ctx context.Context, id string) (*models.Journey, error)
	SaveJourney(ctx context.Context, journey *models.Journey) error
	DeleteJourney(ctx context.Context, id string) error
}

// EnrollmentRepository stores enrollments under a read-modify-write
// contract: SaveEnrollment performs a compare-and-swap on
// Enrollment.Version and returns models.ErrStaleEnrollment when the
// stored version has moved on. On success the in-memory Version is
// bumped to the stored one.
type EnrollmentRepository interface {
	EnrollmentByID(ctx context.Context, id string) (*models.Enrollment, error)
	EnrollmentsByJourneyAndCustomer(ctx context.Context, journeyID, customerID string) ([]*models.Enrollment, error)
	ActiveEnrollments(ctx context.Context) ([]*models.Enrollment, error)
	SaveEnrollment(ctx context.Context, enrollment *models.Enrollment) error
}

// SegmentRepository stores customer segments.
type SegmentRepository interface {
	SegmentByID(ctx context.Context, id string) (*models.CustomerSegment, error)
	SaveSegment(ctx context.Context, segment *models.CustomerSegment) error
}

// ScheduleRepository stores recurring scan schedules.
type ScheduleRepository interface {
	DueSchedules(ctx context.Context, now time.Time) ([]*models.Schedule, error)
	SaveSchedule(ctx context.Context, schedule *models.Schedule) error
}

// Persistence aggregates every repository behind one lifecycle.
type Persistence interface {
	JourneyRepository
	EnrollmentRepository
	SegmentRepository
	ScheduleRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}
