package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/loopmsg/journeyd/pkg/models"
)

func (p *Persistence) SegmentByID(ctx context.Context, id string) (*models.CustomerSegment, error) {
	var (
		segment    models.CustomerSegment
		groupsJSON []byte
	)

	row := p.db.QueryRowContext(ctx, "SELECT id, name, groups FROM segments WHERE id = $1", id)

	if err := row.Scan(&segment.ID, &segment.Name, &groupsJSON); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrNotFound
		}

		return nil, fmt.Errorf("failed to scan segment: %w", err)
	}

	if err := json.Unmarshal(groupsJSON, &segment.Groups); err != nil {
		return nil, fmt.Errorf("failed to unmarshal condition groups: %w", err)
	}

	return &segment, nil
}

func (p *Persistence) SaveSegment(ctx context.Context, segment *models.CustomerSegment) error {
	groupsJSON, err := json.Marshal(segment.Groups)
	if err != nil {
		return fmt.Errorf("failed to marshal condition groups: %w", err)
	}

	query := `
		INSERT INTO segments (id, name, groups)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, groups = EXCLUDED.groups
	`

	if _, err := p.db.ExecContext(ctx, query, segment.ID, segment.Name, groupsJSON); err != nil {
		return fmt.Errorf("failed to save segment: %w", err)
	}

	return nil
}
