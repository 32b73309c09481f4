package file

import (
	"context"
	"sort"
	"time"

	"github.com/loopmsg/journeyd/pkg/models"
)

func (p *Persistence) Journeys(ctx context.Context) ([]*models.Journey, error) {
	ids, err := p.ids(journeysDir)
	if err != nil {
		return nil, err
	}

	journeys := make([]*models.Journey, 0, len(ids))

	for _, id := range ids {
		journey, err := p.JourneyByID(ctx, id)
		if err != nil {
			return nil, err
		}

		if journey != nil {
			journeys = append(journeys, journey)
		}
	}

	sort.Slice(journeys, func(i, j int) bool {
		return journeys[i].CreatedAt.After(journeys[j].CreatedAt)
	})

	return journeys, nil
}

func (p *Persistence) JourneyByID(_ context.Context, id string) (*models.Journey, error) {
	var journey models.Journey

	if err := p.read(journeysDir, id, &journey); err != nil {
		return nil, err
	}

	if journey.DeletedAt != nil {
		return nil, models.ErrNotFound
	}

	return &journey, nil
}

func (p *Persistence) SaveJourney(_ context.Context, journey *models.Journey) error {
	return p.write(journeysDir, journey.ID, journey)
}

// DeleteJourney soft deletes by stamping DeletedAt, keeping history for
// enrollments that reference the journey.
func (p *Persistence) DeleteJourney(ctx context.Context, id string) error {
	var journey models.Journey

	if err := p.read(journeysDir, id, &journey); err != nil {
		return err
	}

	now := time.Now().UTC()
	journey.DeletedAt = &now

	return p.write(journeysDir, id, &journey)
}
