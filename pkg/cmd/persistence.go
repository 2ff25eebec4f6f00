// Package cmd wires shared infrastructure for the recflow binaries.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/recflow/recflow/pkg/persistence"
	"github.com/recflow/recflow/pkg/persistence/file"
	"github.com/recflow/recflow/pkg/persistence/memory"
	"github.com/recflow/recflow/pkg/persistence/postgresql"
	"github.com/recflow/recflow/pkg/persistence/redis"
)

// NewPersistence selects a workflow store from the database URL scheme:
// postgres://, redis://, memory://, or a file:// / bare directory path.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (persistence.Persistence, error) {
	switch provider(databaseURL) {
	case "postgres", "postgresql":
		return postgresql.NewPersistence(ctx, logger, databaseURL)
	case "redis", "rediss":
		return redis.NewPersistence(ctx, databaseURL)
	case "memory":
		return memory.NewPersistence(), nil
	case "file":
		return file.NewPersistence(databaseURL), nil
	default:
		return nil, fmt.Errorf("unsupported database url %q", databaseURL)
	}
}

func provider(databaseURL string) string {
	scheme, _, found := strings.Cut(databaseURL, "://")
	if !found {
		// A bare path is treated as a file store root.
		return "file"
	}

	return scheme
}
