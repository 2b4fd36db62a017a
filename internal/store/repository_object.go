// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package store

import (
	"context"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/MKhiriev/go-sync-store/internal/logger"
	"github.com/MKhiriev/go-sync-store/models"
)

// objectRepository is the SQLite-backed implementation of [ObjectRepository].
// All entity types share one objects table; the entity_name column carries
// the type, attributes and to-one references are stored as JSON documents.
type objectRepository struct {
	db     *DB
	schema models.Schema
	logger *logger.Logger
}

// NewObjectRepository constructs an [ObjectRepository] over db. The schema is
// needed to filter to-many relationship keys out of update ledger entries and
// to restore attribute value types after the JSON round trip.
func NewObjectRepository(db *DB, schema models.Schema, logger *logger.Logger) ObjectRepository {
	return &objectRepository{db: db, schema: schema, logger: logger}
}

func (r *objectRepository) Get(ctx context.Context, recordID string) (models.LocalObject, error) {
	row := r.db.QueryRowContext(ctx, getObject, recordID)
	obj, err := r.scanObject(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return models.LocalObject{}, fmt.Errorf("%w: %s", ErrObjectNotFound, recordID)
	}
	return obj, err
}

func (r *objectRepository) GetAll(ctx context.Context) ([]models.LocalObject, error) {
	rows, err := r.db.QueryContext(ctx, getAllObjects)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	defer rows.Close()

	var objects []models.LocalObject
	for rows.Next() {
		obj, scanErr := r.scanObject(rows.Scan)
		if scanErr != nil {
			return nil, scanErr
		}
		objects = append(objects, obj)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("%w: %w", ErrScanningRows, rowsErr)
	}
	return objects, nil
}

func (r *objectRepository) Insert(ctx context.Context, obj *models.LocalObject) error {
	attrs, refs, err := encodeObjectColumns(obj)
	if err != nil {
		return err
	}
	if obj.UpdatedAt.IsZero() {
		obj.UpdatedAt = time.Now().UTC()
	}

	err = r.inTx(ctx, func(tx *sql.Tx) error {
		if _, execErr := tx.ExecContext(ctx, insertObject,
			obj.RecordID, obj.EntityName, attrs, refs, obj.EncodedSystemFields, obj.UpdatedAt,
		); execErr != nil {
			return fmt.Errorf("%w: insert object: %w", ErrExecutingQuery, execErr)
		}
		if _, execErr := tx.ExecContext(ctx, insertChangeSet,
			obj.RecordID, obj.EntityName, models.ChangeInserted, "", time.Now().UTC(),
		); execErr != nil {
			return fmt.Errorf("%w: insert change set: %w", ErrExecutingQuery, execErr)
		}
		return nil
	})
	if err != nil {
		return err
	}

	r.db.notifier.publish(models.LocalChangeEvent{
		RecordID: obj.RecordID, EntityName: obj.EntityName, ChangeType: models.ChangeInserted,
	})
	return nil
}

func (r *objectRepository) Update(ctx context.Context, obj *models.LocalObject, changedKeys []string) error {
	attrs, refs, err := encodeObjectColumns(obj)
	if err != nil {
		return err
	}
	obj.UpdatedAt = time.Now().UTC()

	changed := models.JoinChangedKeys(r.filterChangedKeys(obj.EntityName, changedKeys))

	err = r.inTx(ctx, func(tx *sql.Tx) error {
		res, execErr := tx.ExecContext(ctx, updateObject,
			attrs, refs, obj.EncodedSystemFields, obj.UpdatedAt, obj.RecordID,
		)
		if execErr != nil {
			return fmt.Errorf("%w: update object: %w", ErrExecutingQuery, execErr)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("%w: %s", ErrObjectNotFound, obj.RecordID)
		}
		if _, execErr = tx.ExecContext(ctx, insertChangeSet,
			obj.RecordID, obj.EntityName, models.ChangeUpdated, changed, time.Now().UTC(),
		); execErr != nil {
			return fmt.Errorf("%w: insert change set: %w", ErrExecutingQuery, execErr)
		}
		return nil
	})
	if err != nil {
		return err
	}

	r.db.notifier.publish(models.LocalChangeEvent{
		RecordID: obj.RecordID, EntityName: obj.EntityName, ChangeType: models.ChangeUpdated,
	})
	return nil
}

func (r *objectRepository) Delete(ctx context.Context, recordID string) error {
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		if _, execErr := tx.ExecContext(ctx, deleteObject, recordID); execErr != nil {
			return fmt.Errorf("%w: delete object: %w", ErrExecutingQuery, execErr)
		}
		// A remote delete needs only the identifier, so entity_name stays NULL.
		if _, execErr := tx.ExecContext(ctx, insertChangeSet,
			recordID, nil, models.ChangeDeleted, "", time.Now().UTC(),
		); execErr != nil {
			return fmt.Errorf("%w: insert change set: %w", ErrExecutingQuery, execErr)
		}
		return nil
	})
	if err != nil {
		return err
	}

	r.db.notifier.publish(models.LocalChangeEvent{
		RecordID: recordID, ChangeType: models.ChangeDeleted,
	})
	return nil
}

func (r *objectRepository) ApplyRemote(ctx context.Context, obj *models.LocalObject) error {
	attrs, refs, err := encodeObjectColumns(obj)
	if err != nil {
		return err
	}
	if obj.UpdatedAt.IsZero() {
		obj.UpdatedAt = time.Now().UTC()
	}

	if _, err = r.db.ExecContext(ctx, upsertObject,
		obj.RecordID, obj.EntityName, attrs, refs, obj.EncodedSystemFields, obj.UpdatedAt,
	); err != nil {
		return fmt.Errorf("%w: upsert object: %w", ErrExecutingQuery, err)
	}
	return nil
}

func (r *objectRepository) DeleteByRecordIDs(ctx context.Context, recordIDs []string) (int64, error) {
	if len(recordIDs) == 0 {
		return 0, nil
	}

	query, args, err := sq.Delete("objects").
		Where(sq.Eq{"record_id": recordIDs}).
		PlaceholderFormat(sq.Question).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build delete query: %w", err)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("%w: bulk delete objects: %w", ErrExecutingQuery, err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func (r *objectRepository) SetSystemFields(ctx context.Context, recordID string, encoded []byte) error {
	res, err := r.db.ExecContext(ctx, setObjectSystemFields, encoded, recordID)
	if err != nil {
		return fmt.Errorf("%w: set system fields: %w", ErrExecutingQuery, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrObjectNotFound, recordID)
	}
	return nil
}

func (r *objectRepository) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBeginningTx, err)
	}
	if err = fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// filterChangedKeys drops to-many relationship names: to-many relationships
// are derived from inverse to-one references and are never pushed directly.
func (r *objectRepository) filterChangedKeys(entityName string, keys []string) []string {
	entity, ok := r.schema.Entity(entityName)
	if !ok {
		return keys
	}

	filtered := make([]string, 0, len(keys))
	for _, key := range keys {
		if rel, isRel := entity.Relationships[key]; isRel && rel.ToMany {
			continue
		}
		filtered = append(filtered, key)
	}
	return filtered
}

func (r *objectRepository) scanObject(scan func(dest ...any) error) (models.LocalObject, error) {
	var (
		obj       models.LocalObject
		attrsJSON string
		refsJSON  string
		encoded   []byte
	)
	if err := scan(&obj.RecordID, &obj.EntityName, &attrsJSON, &refsJSON, &encoded, &obj.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.LocalObject{}, err
		}
		return models.LocalObject{}, fmt.Errorf("%w: %w", ErrScanningRow, err)
	}
	obj.EncodedSystemFields = encoded

	if err := json.Unmarshal([]byte(attrsJSON), &obj.Attributes); err != nil {
		return models.LocalObject{}, fmt.Errorf("%w: attributes: %w", ErrDecodingValue, err)
	}
	if err := json.Unmarshal([]byte(refsJSON), &obj.References); err != nil {
		return models.LocalObject{}, fmt.Errorf("%w: references: %w", ErrDecodingValue, err)
	}

	if entity, ok := r.schema.Entity(obj.EntityName); ok {
		if err := restoreAttributeTypes(entity, obj.Attributes); err != nil {
			return models.LocalObject{}, err
		}
	}
	return obj, nil
}

func encodeObjectColumns(obj *models.LocalObject) (attrs string, refs string, err error) {
	if obj.Attributes == nil {
		obj.Attributes = make(map[string]any)
	}
	if obj.References == nil {
		obj.References = make(map[string]string)
	}

	attrsBytes, err := json.Marshal(obj.Attributes)
	if err != nil {
		return "", "", fmt.Errorf("%w: attributes: %w", ErrEncodingValue, err)
	}
	refsBytes, err := json.Marshal(obj.References)
	if err != nil {
		return "", "", fmt.Errorf("%w: references: %w", ErrEncodingValue, err)
	}
	return string(attrsBytes), string(refsBytes), nil
}

// restoreAttributeTypes undoes the JSON round trip: integers come back as
// float64, byte slices as base64 strings, and times as RFC 3339 strings.
// The schema says what each attribute really is.
func restoreAttributeTypes(entity models.EntityDescription, attrs map[string]any) error {
	for name, value := range attrs {
		desc, ok := entity.Attributes[name]
		if !ok || value == nil {
			continue
		}

		switch desc.Type {
		case models.AttributeInt:
			if f, isFloat := value.(float64); isFloat {
				attrs[name] = int64(f)
			}
		case models.AttributeBytes:
			if s, isString := value.(string); isString {
				decoded, err := base64.StdEncoding.DecodeString(s)
				if err != nil {
					return fmt.Errorf("%w: attribute %q: %w", ErrDecodingValue, name, err)
				}
				attrs[name] = decoded
			}
		case models.AttributeTime:
			if s, isString := value.(string); isString {
				parsed, err := time.Parse(time.RFC3339Nano, s)
				if err != nil {
					return fmt.Errorf("%w: attribute %q: %w", ErrDecodingValue, name, err)
				}
				attrs[name] = parsed
			}
		}
	}
	return nil
}
