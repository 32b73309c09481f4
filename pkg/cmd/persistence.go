// Package cmd provides common initialization functions for command-line
// applications.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/loopmsg/journeyd/pkg/persistence"
	"github.com/loopmsg/journeyd/pkg/persistence/file"
	"github.com/loopmsg/journeyd/pkg/persistence/postgresql"
)

// NewPersistence selects a store by URL scheme: postgres:// and
// postgresql:// connect to PostgreSQL, anything else is treated as a
// file path.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (persistence.Persistence, error) {
	scheme, _, _ := strings.Cut(databaseURL, "://")

	switch scheme {
	case "postgres", "postgresql":
		store, err := postgresql.NewPersistence(ctx, logger, databaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to create PostgreSQL persistence: %w", err)
		}

		return store, nil
	default:
		return file.NewPersistence(databaseURL), nil
	}
}
