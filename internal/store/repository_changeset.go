// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/MKhiriev/go-sync-store/internal/logger"
	"github.com/MKhiriev/go-sync-store/models"
)

// ledgerRepository is the SQLite-backed implementation of [LedgerRepository].
// Ledger rows are written by the object repository inside mutation
// transactions; this repository only reads and retires them for the push
// phase of a sync cycle.
type ledgerRepository struct {
	db     *DB
	logger *logger.Logger
}

func NewLedgerRepository(db *DB, logger *logger.Logger) LedgerRepository {
	return &ledgerRepository{db: db, logger: logger}
}

func (r *ledgerRepository) PendingChangeSets(ctx context.Context) ([]models.ChangeSetEntry, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBeginningTx, err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, getPendingChangeSets)
	if err != nil {
		return nil, fmt.Errorf("%w: pending change sets: %w", ErrExecutingQuery, err)
	}

	var entries []models.ChangeSetEntry
	for rows.Next() {
		var (
			entry      models.ChangeSetEntry
			entityName sql.NullString
		)
		if scanErr := rows.Scan(
			&entry.ID,
			&entry.RecordID,
			&entityName,
			&entry.ChangeType,
			&entry.ChangedKeys,
			&entry.Queued,
			&entry.CreatedAt,
		); scanErr != nil {
			rows.Close()
			return nil, fmt.Errorf("%w: %w", ErrScanningRow, scanErr)
		}
		entry.EntityName = entityName.String
		entries = append(entries, entry)
	}
	rows.Close()
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("%w: %w", ErrScanningRows, rowsErr)
	}

	if _, err = tx.ExecContext(ctx, markChangeSetsQueued); err != nil {
		return nil, fmt.Errorf("%w: mark queued: %w", ErrExecutingQuery, err)
	}
	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	for i := range entries {
		entries[i].Queued = true
	}
	return entries, nil
}

func (r *ledgerRepository) ClearQueued(ctx context.Context) error {
	res, err := r.db.ExecContext(ctx, clearQueuedChangeSets)
	if err != nil {
		return fmt.Errorf("%w: clear queued: %w", ErrExecutingQuery, err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		r.logger.Debug().Int64("entries", n).Msg("cleared queued change sets")
	}
	return nil
}

func (r *ledgerRepository) UnmarkQueued(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, unmarkQueuedChangeSets); err != nil {
		return fmt.Errorf("%w: unmark queued: %w", ErrExecutingQuery, err)
	}
	return nil
}
