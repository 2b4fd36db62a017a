package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/MKhiriev/go-sync-store/models"
)

const tokenStateKey = "change_token"

// syncStateRepository is the SQLite-backed implementation of
// [SyncStateRepository]: a small key-value table holding the committed change
// token and the zone/subscription provisioning flags.
type syncStateRepository struct {
	db *DB
}

func NewSyncStateRepository(db *DB) SyncStateRepository {
	return &syncStateRepository{db: db}
}

func (r *syncStateRepository) Token(ctx context.Context) (models.ChangeToken, error) {
	value, err := r.get(ctx, tokenStateKey)
	if err != nil {
		return "", err
	}
	return models.ChangeToken(value), nil
}

func (r *syncStateRepository) SaveToken(ctx context.Context, token models.ChangeToken) error {
	return r.set(ctx, tokenStateKey, string(token))
}

func (r *syncStateRepository) DeleteToken(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, deleteSyncStateValue, tokenStateKey); err != nil {
		return fmt.Errorf("%w: delete token: %w", ErrExecutingQuery, err)
	}
	return nil
}

func (r *syncStateRepository) Flag(ctx context.Context, name string) (bool, error) {
	value, err := r.get(ctx, "flag:"+name)
	if err != nil {
		return false, err
	}
	return value == "1", nil
}

func (r *syncStateRepository) SetFlag(ctx context.Context, name string) error {
	return r.set(ctx, "flag:"+name, "1")
}

func (r *syncStateRepository) get(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, getSyncStateValue, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("%w: sync state %q: %w", ErrExecutingQuery, key, err)
	}
	return value, nil
}

func (r *syncStateRepository) set(ctx context.Context, key, value string) error {
	if _, err := r.db.ExecContext(ctx, upsertSyncStateValue, key, value); err != nil {
		return fmt.Errorf("%w: sync state %q: %w", ErrExecutingQuery, key, err)
	}
	return nil
}
