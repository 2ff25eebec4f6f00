// Package sqlbase provides shared schema-migration plumbing for SQL-backed
// workflow stores.
package sqlbase

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sort"
)

// MigrationManager applies ordered schema migrations inside transactions.
type MigrationManager struct {
	db         *sql.DB
	logger     *slog.Logger
	migrations map[int]string
}

// NewMigrationManager creates a migration manager for the given migration set.
func NewMigrationManager(logger *slog.Logger, db *sql.DB, migrations map[int]string) *MigrationManager {
	return &MigrationManager{
		db:         db,
		logger:     logger,
		migrations: migrations,
	}
}

// RunMigrations creates the migrations table if needed and applies every
// migration newer than the recorded schema version, in order.
func (m *MigrationManager) RunMigrations(ctx context.Context) error {
	err := m.createMigrationsTable(ctx)
	if err != nil {
		return err
	}

	currentVersion, err := m.currentSchemaVersion(ctx)
	if err != nil {
		return err
	}

	m.logger.InfoContext(ctx, "Current schema version", "version", currentVersion)

	versions := make([]int, 0, len(m.migrations))
	for version := range m.migrations {
		versions = append(versions, version)
	}

	sort.Ints(versions)

	for _, version := range versions {
		if version <= currentVersion {
			continue
		}

		err = m.apply(ctx, version, m.migrations[version])
		if err != nil {
			return err
		}

		m.logger.InfoContext(ctx, "Migration applied", "version", version)
	}

	return nil
}

func (m *MigrationManager) createMigrationsTable(ctx context.Context) error {
	_, err := m.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		);
	`)
	if err != nil {
		return fmt.Errorf("failed to create schema_migrations table: %w", err)
	}

	return nil
}

func (m *MigrationManager) currentSchemaVersion(ctx context.Context) (int, error) {
	var version int

	err := m.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("failed to query current schema version: %w", err)
	}

	return version, nil
}

func (m *MigrationManager) apply(ctx context.Context, version int, migration string) error {
	transaction, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for migration %d: %w", version, err)
	}

	_, err = transaction.ExecContext(ctx, migration)
	if err != nil {
		_ = transaction.Rollback()

		return fmt.Errorf("failed to execute migration %d: %w", version, err)
	}

	_, err = transaction.ExecContext(ctx, "INSERT INTO schema_migrations (version) VALUES ($1)", version)
	if err != nil {
		_ = transaction.Rollback()

		return fmt.Errorf("failed to record migration %d: %w", version, err)
	}

	err = transaction.Commit()
	if err != nil {
		return fmt.Errorf("failed to commit migration %d: %w", version, err)
	}

	return nil
}
