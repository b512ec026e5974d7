package journal

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
)

//go:embed schema.sql
var schemaSQL string

// migrations[i] upgrades a database at user_version i to i+1. The schema
// version is len(migrations).
var migrations = []string{
	schemaSQL,
}

// ErrSchemaMismatch reports a database written by a newer pixora.
var ErrSchemaMismatch = errors.New("schema version mismatch")

// migrate brings the database up to the current user_version, applying each
// pending step in its own transaction.
func (s *Store) migrate(ctx context.Context) error {
	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version > len(migrations) {
		return fmt.Errorf("%w: database has version %d, this build supports %d (delete %s to start a fresh history)",
			ErrSchemaMismatch, version, len(migrations), s.path)
	}
	for ; version < len(migrations); version++ {
		if err := s.applyMigration(ctx, version+1, migrations[version]); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) applyMigration(ctx context.Context, target int, stmt string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration %d: %w", target, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("apply migration %d: %w", target, err)
	}
	// PRAGMA arguments cannot be bound parameters.
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", target)); err != nil {
		return fmt.Errorf("record schema version %d: %w", target, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %d: %w", target, err)
	}
	return nil
}
