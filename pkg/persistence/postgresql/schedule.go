package postgresql

import (
	"context"
	"fmt"
	"time"

	"github.com/loopmsg/journeyd/pkg/models"
)

func (p *Persistence) DueSchedules(ctx context.Context, now time.Time) ([]*models.Schedule, error) {
	query := `
		SELECT id, journey_id, cron_expression, next_due_at, created_at, updated_at, active
		FROM schedules
		WHERE active = TRUE AND next_due_at <= $1
		ORDER BY next_due_at ASC
	`

	rows, err := p.db.QueryContext(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("failed to query due schedules: %w", err)
	}

	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			p.logger.ErrorContext(ctx, "failed to close rows", "error", closeErr)
		}
	}()

	schedules := make([]*models.Schedule, 0)

	for rows.Next() {
		var schedule models.Schedule

		err := rows.Scan(&schedule.ID, &schedule.JourneyID, &schedule.CronExpression,
			&schedule.NextDueAt, &schedule.CreatedAt, &schedule.UpdatedAt, &schedule.Active)
		if err != nil {
			return nil, fmt.Errorf("failed to scan schedule: %w", err)
		}

		schedules = append(schedules, &schedule)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating schedules: %w", err)
	}

	return schedules, nil
}

func (p *Persistence) SaveSchedule(ctx context.Context, schedule *models.Schedule) error {
	query := `
		INSERT INTO schedules (id, journey_id, cron_expression, next_due_at, created_at, updated_at, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			cron_expression = EXCLUDED.cron_expression
		  , next_due_at = EXCLUDED.next_due_at
		  , updated_at = EXCLUDED.updated_at
		  , active = EXCLUDED.active
	`

	_, err := p.db.ExecContext(ctx, query,
		schedule.ID, schedule.JourneyID, schedule.CronExpression,
		schedule.NextDueAt, schedule.CreatedAt, schedule.UpdatedAt, schedule.Active)
	if err != nil {
		return fmt.Errorf("failed to save schedule: %w", err)
	}

	return nil
}
