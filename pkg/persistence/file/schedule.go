package file

import (
	"context"
	"time"

	"github.com/loopmsg/journeyd/pkg/models"
)

func (p *Persistence) DueSchedules(ctx context.Context, now time.Time) ([]*models.Schedule, error) {
	ids, err := p.ids(schedulesDir)
	if err != nil {
		return nil, err
	}

	due := make([]*models.Schedule, 0)

	for _, id := range ids {
		var schedule models.Schedule

		if err := p.read(schedulesDir, id, &schedule); err != nil {
			return nil, err
		}

		if schedule.IsDue(now) {
			due = append(due, &schedule)
		}
	}

	return due, nil
}

func (p *Persistence) SaveSchedule(_ context.Context, schedule *models.Schedule) error {
	return p.write(schedulesDir, schedule.ID, schedule)
}
