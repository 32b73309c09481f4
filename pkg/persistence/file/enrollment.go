package file

import (
	"context"
	"sort"

	"github.com/loopmsg/journeyd/pkg/models"
)

func (p *Persistence) EnrollmentByID(_ context.Context, id string) (*models.Enrollment, error) {
	var enrollment models.Enrollment

	if err := p.read(enrollmentsDir, id, &enrollment); err != nil {
		return nil, err
	}

	return &enrollment, nil
}

func (p *Persistence) EnrollmentsByJourneyAndCustomer(ctx context.Context, journeyID, customerID string) ([]*models.Enrollment, error) {
	all, err := p.allEnrollments(ctx)
	if err != nil {
		return nil, err
	}

	matching := make([]*models.Enrollment, 0)

	for _, enrollment := range all {
		if enrollment.JourneyID == journeyID && enrollment.CustomerID == customerID {
			matching = append(matching, enrollment)
		}
	}

	return matching, nil
}

func (p *Persistence) ActiveEnrollments(ctx context.Context) ([]*models.Enrollment, error) {
	all, err := p.allEnrollments(ctx)
	if err != nil {
		return nil, err
	}

	active := make([]*models.Enrollment, 0)

	for _, enrollment := range all {
		if enrollment.Status == models.EnrollmentStatusActive {
			active = append(active, enrollment)
		}
	}

	return active, nil
}

// SaveEnrollment performs the version compare-and-swap described by
// persistence.EnrollmentRepository.
func (p *Persistence) SaveEnrollment(ctx context.Context, enrollment *models.Enrollment) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if enrollment.Version > 0 {
		stored, err := p.EnrollmentByID(ctx, enrollment.ID)
		if err != nil {
			return err
		}

		if stored.Version != enrollment.Version {
			return models.ErrStaleEnrollment
		}
	}

	enrollment.Version++

	if err := p.write(enrollmentsDir, enrollment.ID, enrollment); err != nil {
		enrollment.Version--

		return err
	}

	return nil
}

func (p *Persistence) allEnrollments(ctx context.Context) ([]*models.Enrollment, error) {
	ids, err := p.ids(enrollmentsDir)
	if err != nil {
		return nil, err
	}

	enrollments := make([]*models.Enrollment, 0, len(ids))

	for _, id := range ids {
		enrollment, err := p.EnrollmentByID(ctx, id)
		if err != nil {
			return nil, err
		}

		enrollments = append(enrollments, enrollment)
	}

	sort.Slice(enrollments, func(i, j int) bool {
		return enrollments[i].StartedAt.Before(enrollments[j].StartedAt)
	})

	return enrollments, nil
}
