package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/loopmsg/journeyd/pkg/models"
)

const enrollmentColumns = `
	id
  , journey_id
  , customer_id
  , status
  , current_node_id
  , history
  , actions
  , started_at
  , completed_at
  , updated_at
  , version
`

func (p *Persistence) EnrollmentByID(ctx context.Context, id string) (*models.Enrollment, error) {
	query := `SELECT ` + enrollmentColumns + ` FROM enrollments WHERE id = $1`

	enrollment, err := scanEnrollment(p.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrNotFound
		}

		return nil, fmt.Errorf("failed to scan enrollment: %w", err)
	}

	return enrollment, nil
}

func (p *Persistence) EnrollmentsByJourneyAndCustomer(ctx context.Context, journeyID, customerID string) ([]*models.Enrollment, error) {
	query := `SELECT ` + enrollmentColumns + `
		FROM enrollments
		WHERE journey_id = $1 AND customer_id = $2
		ORDER BY started_at ASC`

	return p.queryEnrollments(ctx, query, journeyID, customerID)
}

func (p *Persistence) ActiveEnrollments(ctx context.Context) ([]*models.Enrollment, error) {
	query := `SELECT ` + enrollmentColumns + `
		FROM enrollments
		WHERE status = $1
		ORDER BY started_at ASC`

	return p.queryEnrollments(ctx, query, models.EnrollmentStatusActive)
}

// SaveEnrollment inserts new enrollments and compare-and-swaps existing
// ones on the version column. A lost race returns
// models.ErrStaleEnrollment and leaves the row untouched.
func (p *Persistence) SaveEnrollment(ctx context.Context, enrollment *models.Enrollment) error {
	historyJSON, err := json.Marshal(enrollment.History)
	if err != nil {
		return fmt.Errorf("failed to marshal history: %w", err)
	}

	actionsJSON, err := json.Marshal(enrollment.Actions)
	if err != nil {
		return fmt.Errorf("failed to marshal actions: %w", err)
	}

	enrollment.UpdatedAt = time.Now().UTC()

	if enrollment.Version == 0 {
		query := `
			INSERT INTO enrollments (id, journey_id, customer_id, status, current_node_id, history, actions, started_at, completed_at, updated_at, version)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 1)
		`

		_, err := p.db.ExecContext(ctx, query,
			enrollment.ID, enrollment.JourneyID, enrollment.CustomerID, enrollment.Status,
			enrollment.CurrentNodeID, historyJSON, actionsJSON,
			enrollment.StartedAt, enrollment.CompletedAt, enrollment.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert enrollment: %w", err)
		}

		enrollment.Version = 1

		return nil
	}

	query := `
		UPDATE enrollments SET
			status = $1
		  , current_node_id = $2
		  , history = $3
		  , actions = $4
		  , completed_at = $5
		  , updated_at = $6
		  , version = version + 1
		WHERE id = $7 AND version = $8
	`

	result, err := p.db.ExecContext(ctx, query,
		enrollment.Status, enrollment.CurrentNodeID, historyJSON, actionsJSON,
		enrollment.CompletedAt, enrollment.UpdatedAt,
		enrollment.ID, enrollment.Version)
	if err != nil {
		return fmt.Errorf("failed to update enrollment: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}

	if affected == 0 {
		return models.ErrStaleEnrollment
	}

	enrollment.Version++

	return nil
}

func (p *Persistence) queryEnrollments(ctx context.Context, query string, args ...any) ([]*models.Enrollment, error) {
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query enrollments: %w", err)
	}

	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			p.logger.ErrorContext(ctx, "failed to close rows", "error", closeErr)
		}
	}()

	enrollments := make([]*models.Enrollment, 0)

	for rows.Next() {
		enrollment, err := scanEnrollment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan enrollment: %w", err)
		}

		enrollments = append(enrollments, enrollment)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating enrollments: %w", err)
	}

	return enrollments, nil
}

func scanEnrollment(row rowScanner) (*models.Enrollment, error) {
	var (
		enrollment    models.Enrollment
		currentNodeID sql.NullString
		historyJSON   []byte
		actionsJSON   []byte
		completedAt   sql.NullTime
	)

	err := row.Scan(
		&enrollment.ID, &enrollment.JourneyID, &enrollment.CustomerID, &enrollment.Status,
		&currentNodeID, &historyJSON, &actionsJSON,
		&enrollment.StartedAt, &completedAt, &enrollment.UpdatedAt, &enrollment.Version)
	if err != nil {
		return nil, err
	}

	if currentNodeID.Valid {
		enrollment.CurrentNodeID = &currentNodeID.String
	}

	if completedAt.Valid {
		enrollment.CompletedAt = &completedAt.Time
	}

	if err := json.Unmarshal(historyJSON, &enrollment.History); err != nil {
		return nil, fmt.Errorf("failed to unmarshal history: %w", err)
	}

	if err := json.Unmarshal(actionsJSON, &enrollment.Actions); err != nil {
		return nil, fmt.Errorf("failed to unmarshal actions: %w", err)
	}

	return &enrollment, nil
}
