package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// BackupHeight returns the block height of the last snapshot, and false
// if no snapshot has ever been taken.
func (s *Store) BackupHeight(ctx context.Context) (int64, bool, error) {
	var height int64
	err := s.pool.QueryRow(ctx, "SELECT block_height FROM backup_height WHERE id = 1").Scan(&height)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("store: BackupHeight: %w", err)
	}
	return height, true, nil
}

// SetBackupHeight records the height a snapshot was taken at.
func (s *Store) SetBackupHeight(ctx context.Context, height int64) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO backup_height (id, block_height) VALUES (1, $1)
		ON CONFLICT (id) DO UPDATE SET block_height = excluded.block_height
	`, height)
	if err != nil {
		return fmt.Errorf("store: SetBackupHeight: %w", err)
	}
	return nil
}

// BackupAll snapshots every mutable table by cloning it, with its
// constraints and indexes, into a sibling "<table>_backup" table, then
// records height as the new backup point.
// It runs inside a single transaction: either every table's snapshot
// lands together or none do, so a crash mid-backup never leaves the
// backup set straddling two block heights.
func (s *Store) BackupAll(ctx context.Context, height int64) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("store: BackupAll: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, table := range mutableTables {
		backup := table + "_backup"
		if _, err := tx.Exec(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS %s`, backup)); err != nil {
			return fmt.Errorf("store: BackupAll: drop %s: %w", backup, err)
		}
		if _, err := tx.Exec(ctx, fmt.Sprintf(`CREATE TABLE %s (LIKE %s INCLUDING ALL)`, backup, table)); err != nil {
			return fmt.Errorf("store: BackupAll: create %s: %w", backup, err)
		}
		if _, err := tx.Exec(ctx, fmt.Sprintf(`INSERT INTO %s SELECT * FROM %s`, backup, table)); err != nil {
			return fmt.Errorf("store: BackupAll: snapshot %s: %w", table, err)
		}
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO backup_height (id, block_height) VALUES (1, $1)
		ON CONFLICT (id) DO UPDATE SET block_height = excluded.block_height
	`, height); err != nil {
		return fmt.Errorf("store: BackupAll: set height: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("store: BackupAll: commit: %w", err)
	}
	return nil
}

// RestoreAll rolls every mutable table back to its last snapshot via a
// three-step rename (live -> tmp, backup -> live, drop tmp) per table,
// all inside one transaction. Postgres DDL is transactional, so this
// restore is atomic across all five tables: a crash mid-restore leaves
// the previous state entirely intact rather than a mix of restored and
// un-restored tables, which the original multi-task restore could not
// guarantee.
func (s *Store) RestoreAll(ctx context.Context) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("store: RestoreAll: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, table := range mutableTables {
		backup := table + "_backup"
		tmp := table + "_tmp"
		if _, err := tx.Exec(ctx, fmt.Sprintf(`ALTER TABLE %s RENAME TO %s`, table, tmp)); err != nil {
			return fmt.Errorf("store: RestoreAll: rename %s->%s: %w", table, tmp, err)
		}
		if _, err := tx.Exec(ctx, fmt.Sprintf(`ALTER TABLE %s RENAME TO %s`, backup, table)); err != nil {
			return fmt.Errorf("store: RestoreAll: rename %s->%s: %w", backup, table, err)
		}
		if _, err := tx.Exec(ctx, fmt.Sprintf(`DROP TABLE %s`, tmp)); err != nil {
			return fmt.Errorf("store: RestoreAll: drop %s: %w", tmp, err)
		}
		// Recreate the backup sibling so the next BackupAll has something
		// to DROP/CREATE against, and so a second RestoreAll before the
		// next backup is a no-op rather than a missing-table error.
		if _, err := tx.Exec(ctx, fmt.Sprintf(`CREATE TABLE %s (LIKE %s INCLUDING ALL)`, backup, table)); err != nil {
			return fmt.Errorf("store: RestoreAll: reseed %s: %w", backup, err)
		}
		if _, err := tx.Exec(ctx, fmt.Sprintf(`INSERT INTO %s SELECT * FROM %s`, backup, table)); err != nil {
			return fmt.Errorf("store: RestoreAll: reseed %s: %w", backup, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("store: RestoreAll: commit: %w", err)
	}
	return nil
}
