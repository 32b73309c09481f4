// Package file provides flat-file JSON persistence. It is compatible
// with the legacy single-tenant deployments and backs most tests; the
// PostgreSQL implementation is the production store.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/loopmsg/journeyd/pkg/models"
	"github.com/loopmsg/journeyd/pkg/persistence"
)

const (
	journeysDir    = "journeys"
	enrollmentsDir = "enrollments"
	segmentsDir    = "segments"
	schedulesDir   = "schedules"
)

// Persistence implements persistence.Persistence on the file system.
// Enrollment saves are serialized through a process-wide mutex; cross
// process exclusion is the scheduler's single-writer dispatch.
type Persistence struct {
	root string
	mu   sync.Mutex
}

// NewPersistence creates a file persistence rooted at the given
// directory. Accepts a file:// prefix for symmetry with database URLs.
func NewPersistence(root string) *Persistence {
	return &Persistence{root: strings.TrimPrefix(root, "file://")}
}

// HealthCheck verifies the root directory exists.
func (p *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(p.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

// Close is a no-op for file persistence.
func (p *Persistence) Close(_ context.Context) error {
	return nil
}

func (p *Persistence) entityPath(dir, id string) string {
	return filepath.Join(p.root, dir, id+".json")
}

func (p *Persistence) write(dir, id string, entity any) error {
	if err := os.MkdirAll(filepath.Join(p.root, dir), 0o755); err != nil {
		return fmt.Errorf("failed to create %s directory: %w", dir, err)
	}

	data, err := json.MarshalIndent(entity, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s/%s: %w", dir, id, err)
	}

	if err := os.WriteFile(p.entityPath(dir, id), data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s/%s: %w", dir, id, err)
	}

	return nil
}

func (p *Persistence) read(dir, id string, entity any) error {
	data, err := os.ReadFile(p.entityPath(dir, id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return models.ErrNotFound
		}

		return fmt.Errorf("failed to read %s/%s: %w", dir, id, err)
	}

	if err := json.Unmarshal(data, entity); err != nil {
		return fmt.Errorf("failed to unmarshal %s/%s: %w", dir, id, err)
	}

	return nil
}

func (p *Persistence) ids(dir string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(p.root, dir))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}

	ids := make([]string, 0, len(entries))

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}

		ids = append(ids, strings.TrimSuffix(name, ".json"))
	}

	return ids, nil
}

var _ persistence.Persistence = (*Persistence)(nil)
