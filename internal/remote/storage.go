// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package remote implements the reference record service the sync engine
// talks to: zone and subscription provisioning, versioned record storage
// with per-record conflict detection, a monotonic change feed, asset
// storage, and a websocket hub pushing zone-change pings to subscribers.
package remote

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"

	// Postgres driver via database/sql.
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/MKhiriev/go-sync-store/internal/logger"
	"github.com/MKhiriev/go-sync-store/migrations"
	"github.com/MKhiriev/go-sync-store/models"
)

// Storage persists zones, subscriptions, versioned records, the change feed,
// and assets in PostgreSQL.
//
// Versioning: every successful save rewrites the record's change tag with a
// fresh UUID and keeps the previous field values and tag alongside, so a
// conflict response can include the common ancestor when the client's base
// tag matches the previous version.
type Storage struct {
	db     *sql.DB
	logger *logger.Logger
}

// NewStorage opens the Postgres connection and verifies it with a ping.
func NewStorage(ctx context.Context, dsn string, log *logger.Logger) (*Storage, error) {
	conn, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	conn.SetMaxOpenConns(10)

	if err = conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	log.Info().Msg("connected to record database")

	return &Storage{db: conn, logger: log}, nil
}

// NewStorageFromDB wraps an existing connection. Used by tests.
func NewStorageFromDB(db *sql.DB, log *logger.Logger) *Storage {
	return &Storage{db: db, logger: log}
}

func (s *Storage) Close() error { return s.db.Close() }

// Migrate applies the embedded schema migrations.
func (s *Storage) Migrate() error { return migrations.Migrate(s.db) }

// EnsureZone creates the zone when absent. Creating an existing zone is a
// no-op, matching the idempotent provisioning contract.
func (s *Storage) EnsureZone(ctx context.Context, zone models.Zone) error {
	if _, err := s.db.ExecContext(ctx, upsertZone, zone.ZoneID.ZoneName, zone.ZoneID.OwnerName); err != nil {
		return fmt.Errorf("%w: upsert zone: %w", ErrExecutingQuery, err)
	}
	return nil
}

// EnsureSubscription registers or refreshes a change-feed subscription.
// The zone must exist.
func (s *Storage) EnsureSubscription(ctx context.Context, sub models.Subscription) error {
	var exists bool
	if err := s.db.QueryRowContext(ctx, zoneExists, sub.ZoneID.ZoneName, sub.ZoneID.OwnerName).Scan(&exists); err != nil {
		return fmt.Errorf("%w: check zone: %w", ErrExecutingQuery, err)
	}
	if !exists {
		return fmt.Errorf("%w: %s", ErrZoneNotFound, sub.ZoneID)
	}

	_, err := s.db.ExecContext(ctx, upsertSubscription,
		sub.SubscriptionID, sub.ZoneID.ZoneName, sub.ZoneID.OwnerName)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%w: %s", ErrZoneNotFound, sub.ZoneID)
		}
		return fmt.Errorf("%w: upsert subscription: %w", ErrExecutingQuery, err)
	}
	return nil
}

// ModifyRecords processes one push batch in a single transaction. The batch
// as a whole always commits; individual records report saved, deleted, or
// conflict outcomes. Returns the zones that changed so the caller can ping
// subscribers after the commit.
func (s *Storage) ModifyRecords(ctx context.Context, req models.ModifyRecordsRequest) (models.ModifyRecordsResponse, []models.ZoneID, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.ModifyRecordsResponse{}, nil, fmt.Errorf("%w: %w", ErrBeginningTx, err)
	}
	defer func() { _ = tx.Rollback() }()

	var resp models.ModifyRecordsResponse
	changedZones := make(map[models.ZoneID]bool)

	for _, rec := range req.RecordsToSave {
		result, saveErr := s.saveRecord(ctx, tx, rec)
		if saveErr != nil {
			return models.ModifyRecordsResponse{}, nil, saveErr
		}
		if result.Code == models.RecordResultSaved {
			changedZones[rec.RecordID.ZoneID] = true
		}
		resp.Results = append(resp.Results, result)
	}

	for _, id := range req.RecordIDsToDelete {
		if err = s.deleteRecordTx(ctx, tx, id); err != nil {
			return models.ModifyRecordsResponse{}, nil, err
		}
		changedZones[id.ZoneID] = true
		resp.Results = append(resp.Results, models.RecordResult{
			RecordID: id,
			Code:     models.RecordResultDeleted,
		})
	}

	if err = tx.Commit(); err != nil {
		return models.ModifyRecordsResponse{}, nil, fmt.Errorf("commit transaction: %w", err)
	}

	zones := make([]models.ZoneID, 0, len(changedZones))
	for zone := range changedZones {
		zones = append(zones, zone)
	}
	return resp, zones, nil
}

type storedRecord struct {
	recordType       string
	fields           []byte
	changeTag        string
	modificationDate time.Time
	prevFields       []byte
	prevChangeTag    sql.NullString
}

func (s *Storage) saveRecord(ctx context.Context, tx *sql.Tx, rec *models.RemoteRecord) (models.RecordResult, error) {
	zone := rec.RecordID.ZoneID
	name := rec.RecordID.RecordName

	var existing *storedRecord
	row := tx.QueryRowContext(ctx, getRecordForUpdate, zone.ZoneName, zone.OwnerName, name)
	var cur storedRecord
	err := row.Scan(&cur.recordType, &cur.fields, &cur.changeTag, &cur.modificationDate, &cur.prevFields, &cur.prevChangeTag)
	switch {
	case err == nil:
		existing = &cur
	case errors.Is(err, sql.ErrNoRows):
	default:
		return models.RecordResult{}, fmt.Errorf("%w: load record %s: %w", ErrScanningRow, name, err)
	}

	if existing != nil && existing.changeTag != rec.ChangeTag {
		conflict, confErr := buildConflict(rec, existing)
		if confErr != nil {
			return models.RecordResult{}, confErr
		}
		s.logger.Debug().
			Str("record_name", name).
			Str("server_tag", existing.changeTag).
			Str("client_tag", rec.ChangeTag).
			Msg("push conflict")
		return models.RecordResult{
			RecordID: rec.RecordID,
			Code:     models.RecordResultConflict,
			Conflict: conflict,
		}, nil
	}

	// Pushes carry only the changed fields; merge them over the stored
	// version so a partial save never erases untouched fields.
	merged := rec.Fields
	if existing != nil && len(existing.fields) > 0 {
		base := make(map[string]models.FieldValue)
		if err = json.Unmarshal(existing.fields, &base); err != nil {
			return models.RecordResult{}, fmt.Errorf("%w: decode fields of %s: %w", ErrEncodingPayload, name, err)
		}
		for key, value := range rec.Fields {
			base[key] = value
		}
		merged = base
	}

	fieldsJSON, err := json.Marshal(merged)
	if err != nil {
		return models.RecordResult{}, fmt.Errorf("%w: fields of %s: %w", ErrEncodingPayload, name, err)
	}

	saved := rec.Clone()
	saved.Fields = merged
	saved.ChangeTag = uuid.NewString()
	if saved.ModificationDate.IsZero() {
		saved.ModificationDate = time.Now().UTC()
	}

	var prevFields []byte
	var prevTag any
	if existing != nil {
		prevFields = existing.fields
		prevTag = existing.changeTag
	}

	if _, err = tx.ExecContext(ctx, upsertRecord,
		zone.ZoneName, zone.OwnerName, name, saved.RecordType, fieldsJSON,
		saved.ChangeTag, saved.ModificationDate, prevFields, prevTag,
	); err != nil {
		return models.RecordResult{}, fmt.Errorf("%w: upsert record %s: %w", ErrExecutingQuery, name, err)
	}

	if _, err = tx.ExecContext(ctx, insertChangeEvent,
		zone.ZoneName, zone.OwnerName, name, saved.RecordType, false, time.Now().UTC(),
	); err != nil {
		return models.RecordResult{}, fmt.Errorf("%w: record change event %s: %w", ErrExecutingQuery, name, err)
	}

	return models.RecordResult{
		RecordID:    rec.RecordID,
		Code:        models.RecordResultSaved,
		SavedRecord: saved,
	}, nil
}

// buildConflict assembles the server/client/ancestor triple. The ancestor is
// the previous version, included only when the client's base tag proves both
// edits diverged from it.
func buildConflict(clientRec *models.RemoteRecord, existing *storedRecord) (*models.ConflictRecord, error) {
	server, err := recordFromRow(clientRec.RecordID, existing.recordType, existing.fields,
		existing.changeTag, existing.modificationDate)
	if err != nil {
		return nil, err
	}

	conflict := &models.ConflictRecord{
		ServerRecord: server,
		ClientRecord: clientRec.Clone(),
	}

	if existing.prevChangeTag.Valid && existing.prevChangeTag.String == clientRec.ChangeTag && len(existing.prevFields) > 0 {
		ancestor, ancErr := recordFromRow(clientRec.RecordID, existing.recordType, existing.prevFields,
			existing.prevChangeTag.String, existing.modificationDate)
		if ancErr != nil {
			return nil, ancErr
		}
		conflict.AncestorRecord = ancestor
	}
	return conflict, nil
}

func recordFromRow(id models.RecordID, recordType string, fieldsJSON []byte, changeTag string, modified time.Time) (*models.RemoteRecord, error) {
	rec := models.NewRemoteRecord(recordType, id)
	rec.ChangeTag = changeTag
	rec.ModificationDate = modified
	if len(fieldsJSON) > 0 {
		if err := json.Unmarshal(fieldsJSON, &rec.Fields); err != nil {
			return nil, fmt.Errorf("%w: decode fields of %s: %w", ErrEncodingPayload, id.RecordName, err)
		}
	}
	return rec, nil
}

func (s *Storage) deleteRecordTx(ctx context.Context, tx *sql.Tx, id models.RecordID) error {
	zone := id.ZoneID
	if _, err := tx.ExecContext(ctx, deleteRecord, zone.ZoneName, zone.OwnerName, id.RecordName); err != nil {
		return fmt.Errorf("%w: delete record %s: %w", ErrExecutingQuery, id.RecordName, err)
	}
	if _, err := tx.ExecContext(ctx, insertChangeEvent,
		zone.ZoneName, zone.OwnerName, id.RecordName, "", true, time.Now().UTC(),
	); err != nil {
		return fmt.Errorf("%w: record delete event %s: %w", ErrExecutingQuery, id.RecordName, err)
	}
	return nil
}

// ZoneChanges returns one page of the zone's change feed after the request
// token. The token is the sequence number of the last delivered event;
// a token older than the feed's compaction floor returns ErrTokenExpired.
func (s *Storage) ZoneChanges(ctx context.Context, req models.FetchZoneChangesRequest) (models.FetchZoneChangesResponse, error) {
	since := int64(0)
	if !req.Token.IsZero() {
		parsed, err := strconv.ParseInt(string(req.Token), 10, 64)
		if err != nil {
			return models.FetchZoneChangesResponse{}, fmt.Errorf("%w: %q", ErrBadToken, req.Token)
		}
		since = parsed
	}

	// The floor is the zone's persisted compaction watermark, not derived
	// from the surviving events, so a stale cursor still expires after the
	// feed has been compacted down to nothing.
	var floor int64
	err := s.db.QueryRowContext(ctx, getFeedFloor, req.ZoneID.ZoneName, req.ZoneID.OwnerName).Scan(&floor)
	if errors.Is(err, sql.ErrNoRows) {
		return models.FetchZoneChangesResponse{}, fmt.Errorf("%w: %s", ErrZoneNotFound, req.ZoneID)
	}
	if err != nil {
		return models.FetchZoneChangesResponse{}, fmt.Errorf("%w: feed floor: %w", ErrExecutingQuery, err)
	}
	if since > 0 && since < floor {
		return models.FetchZoneChangesResponse{}, fmt.Errorf("%w: cursor %d precedes feed floor %d", ErrTokenExpired, since, floor)
	}

	limit := req.Limit
	if limit <= 0 {
		limit = 200
	}

	// One extra row detects moreComing without a second query.
	rows, err := s.db.QueryContext(ctx, getChangesSince,
		req.ZoneID.ZoneName, req.ZoneID.OwnerName, since, limit+1)
	if err != nil {
		return models.FetchZoneChangesResponse{}, fmt.Errorf("%w: zone changes: %w", ErrExecutingQuery, err)
	}
	defer rows.Close()

	var resp models.FetchZoneChangesResponse
	last := since
	count := 0
	for rows.Next() {
		var (
			seq        int64
			recordName string
			recordType string
			deleted    bool
		)
		if err = rows.Scan(&seq, &recordName, &recordType, &deleted); err != nil {
			return models.FetchZoneChangesResponse{}, fmt.Errorf("%w: %w", ErrScanningRow, err)
		}
		if count == limit {
			resp.MoreComing = true
			break
		}
		id := models.NewRecordID(recordName, req.ZoneID)
		if deleted {
			resp.Deleted = append(resp.Deleted, id)
		} else {
			resp.Changed = append(resp.Changed, models.ChangedRecordInfo{RecordID: id, RecordType: recordType})
		}
		last = seq
		count++
	}
	if err = rows.Err(); err != nil {
		return models.FetchZoneChangesResponse{}, fmt.Errorf("%w: %w", ErrScanningRow, err)
	}

	resp.Token = models.ChangeToken(strconv.FormatInt(last, 10))
	return resp, nil
}

// CompactFeed drops change events up to and including upToSeq and raises the
// zone's feed floor to match. Clients whose token precedes the floor get
// ErrTokenExpired and fall back to a full resync. The floor never moves
// backwards, so repeating a compaction with a smaller upToSeq is harmless.
func (s *Storage) CompactFeed(ctx context.Context, zone models.ZoneID, upToSeq int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBeginningTx, err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, raiseFeedFloor, zone.ZoneName, zone.OwnerName, upToSeq)
	if err != nil {
		return fmt.Errorf("%w: raise feed floor: %w", ErrExecutingQuery, err)
	}
	if affected, affErr := res.RowsAffected(); affErr == nil && affected == 0 {
		return fmt.Errorf("%w: %s", ErrZoneNotFound, zone)
	}

	if _, err = tx.ExecContext(ctx, compactChanges, zone.ZoneName, zone.OwnerName, upToSeq); err != nil {
		return fmt.Errorf("%w: compact feed: %w", ErrExecutingQuery, err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// GetRecords fetches full record bodies by identifier. Missing identifiers
// are silently absent from the result; desired keys narrow the field set.
func (s *Storage) GetRecords(ctx context.Context, req models.FetchRecordsRequest) (models.FetchRecordsResponse, error) {
	if len(req.RecordIDs) == 0 {
		return models.FetchRecordsResponse{}, nil
	}

	zone := req.RecordIDs[0].ZoneID
	names := make([]string, 0, len(req.RecordIDs))
	for _, id := range req.RecordIDs {
		names = append(names, id.RecordName)
	}

	query, args, err := sq.Select("record_name", "record_type", "fields", "change_tag", "modification_date").
		From("records").
		Where(sq.Eq{"zone_name": zone.ZoneName, "owner_name": zone.OwnerName, "record_name": names}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return models.FetchRecordsResponse{}, fmt.Errorf("build fetch query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return models.FetchRecordsResponse{}, fmt.Errorf("%w: fetch records: %w", ErrExecutingQuery, err)
	}
	defer rows.Close()

	var resp models.FetchRecordsResponse
	for rows.Next() {
		var (
			recordName string
			recordType string
			fieldsJSON []byte
			changeTag  string
			modified   time.Time
		)
		if err = rows.Scan(&recordName, &recordType, &fieldsJSON, &changeTag, &modified); err != nil {
			return models.FetchRecordsResponse{}, fmt.Errorf("%w: %w", ErrScanningRow, err)
		}
		rec, rowErr := recordFromRow(models.NewRecordID(recordName, zone), recordType, fieldsJSON, changeTag, modified)
		if rowErr != nil {
			return models.FetchRecordsResponse{}, rowErr
		}
		filterDesiredKeys(rec, req.DesiredKeys)
		resp.Records = append(resp.Records, rec)
	}
	if err = rows.Err(); err != nil {
		return models.FetchRecordsResponse{}, fmt.Errorf("%w: %w", ErrScanningRow, err)
	}
	return resp, nil
}

func filterDesiredKeys(rec *models.RemoteRecord, keys []string) {
	if len(keys) == 0 {
		return
	}
	wanted := make(map[string]bool, len(keys))
	for _, k := range keys {
		wanted[k] = true
	}
	for name := range rec.Fields {
		if !wanted[name] {
			delete(rec.Fields, name)
		}
	}
}

// SaveAsset stores a binary payload and returns its minted reference.
func (s *Storage) SaveAsset(ctx context.Context, data []byte) (models.AssetReference, error) {
	sum := sha256.Sum256(data)
	ref := models.AssetReference{
		AssetID:  uuid.NewString(),
		Size:     int64(len(data)),
		Checksum: hex.EncodeToString(sum[:]),
	}

	if _, err := s.db.ExecContext(ctx, insertAsset, ref.AssetID, data, ref.Checksum, time.Now().UTC()); err != nil {
		return models.AssetReference{}, fmt.Errorf("%w: insert asset: %w", ErrExecutingQuery, err)
	}
	return ref, nil
}

// GetAsset returns the payload for assetID.
func (s *Storage) GetAsset(ctx context.Context, assetID string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, getAsset, assetID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrAssetNotFound, assetID)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get asset: %w", ErrExecutingQuery, err)
	}
	return data, nil
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation
}
