package file

import (
	"context"

	"github.com/loopmsg/journeyd/pkg/models"
)

func (p *Persistence) SegmentByID(_ context.Context, id string) (*models.CustomerSegment, error) {
	var segment models.CustomerSegment

	if err := p.read(segmentsDir, id, &segment); err != nil {
		return nil, err
	}

	return &segment, nil
}

func (p *Persistence) SaveSegment(_ context.Context, segment *models.CustomerSegment) error {
	return p.write(segmentsDir, segment.ID, segment)
}
