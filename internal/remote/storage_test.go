// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package remote

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/MKhiriev/go-sync-store/internal/logger"
	"github.com/MKhiriev/go-sync-store/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testZone = models.ZoneID{ZoneName: "main", OwnerName: "tester"}

func newMockStorage(t *testing.T) (*Storage, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewStorageFromDB(db, logger.Nop()), mock
}

func TestEnsureZone(t *testing.T) {
	storage, mock := newMockStorage(t)

	mock.ExpectExec(upsertZone).
		WithArgs("main", "tester").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := storage.EnsureZone(context.Background(), models.Zone{ZoneID: testZone})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureSubscription_ZoneMissing(t *testing.T) {
	storage, mock := newMockStorage(t)

	mock.ExpectQuery(zoneExists).
		WithArgs("main", "tester").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	err := storage.EnsureSubscription(context.Background(), models.Subscription{
		SubscriptionID: "sub-1",
		ZoneID:         testZone,
	})
	assert.ErrorIs(t, err, ErrZoneNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestModifyRecords_SaveMintsFreshChangeTag(t *testing.T) {
	storage, mock := newMockStorage(t)

	rec := models.NewRemoteRecord("Note", models.NewRecordID("n1", testZone))
	rec.SetField("title", models.StringField("hello"))

	mock.ExpectBegin()
	mock.ExpectQuery(getRecordForUpdate).
		WithArgs("main", "tester", "n1").
		WillReturnRows(sqlmock.NewRows([]string{
			"record_type", "fields", "change_tag", "modification_date", "prev_fields", "prev_change_tag",
		}))
	mock.ExpectExec(upsertRecord).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(insertChangeEvent).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	resp, zones, err := storage.ModifyRecords(context.Background(), models.ModifyRecordsRequest{
		RecordsToSave: []*models.RemoteRecord{rec},
	})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)

	result := resp.Results[0]
	assert.Equal(t, models.RecordResultSaved, result.Code)
	require.NotNil(t, result.SavedRecord)
	assert.NotEmpty(t, result.SavedRecord.ChangeTag)
	assert.NotEqual(t, rec.ChangeTag, result.SavedRecord.ChangeTag)

	require.Len(t, zones, 1)
	assert.Equal(t, testZone, zones[0])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestModifyRecords_StaleTagConflictsWithAncestor(t *testing.T) {
	storage, mock := newMockStorage(t)

	rec := models.NewRemoteRecord("Note", models.NewRecordID("n1", testZone))
	rec.ChangeTag = "tag-1" // server has moved on to tag-2
	rec.SetField("title", models.StringField("client edit"))

	serverFields := []byte(`{"title":{"kind":"string","s":"server edit"}}`)
	prevFields := []byte(`{"title":{"kind":"string","s":"original"}}`)

	mock.ExpectBegin()
	mock.ExpectQuery(getRecordForUpdate).
		WithArgs("main", "tester", "n1").
		WillReturnRows(sqlmock.NewRows([]string{
			"record_type", "fields", "change_tag", "modification_date", "prev_fields", "prev_change_tag",
		}).AddRow("Note", serverFields, "tag-2", time.Now().UTC(), prevFields, "tag-1"))
	mock.ExpectCommit()

	resp, zones, err := storage.ModifyRecords(context.Background(), models.ModifyRecordsRequest{
		RecordsToSave: []*models.RemoteRecord{rec},
	})
	require.NoError(t, err)
	assert.Empty(t, zones)

	require.Len(t, resp.Results, 1)
	result := resp.Results[0]
	assert.Equal(t, models.RecordResultConflict, result.Code)
	require.NotNil(t, result.Conflict)

	assert.Equal(t, "server edit", result.Conflict.ServerRecord.Fields["title"].S)
	assert.Equal(t, "client edit", result.Conflict.ClientRecord.Fields["title"].S)
	// The client's base tag matches the previous version: ancestor included.
	require.NotNil(t, result.Conflict.AncestorRecord)
	assert.Equal(t, "original", result.Conflict.AncestorRecord.Fields["title"].S)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestModifyRecords_PartialSaveMergesStoredFields(t *testing.T) {
	storage, mock := newMockStorage(t)

	// The push carries only the edited title; body lives on the server.
	rec := models.NewRemoteRecord("Note", models.NewRecordID("n1", testZone))
	rec.ChangeTag = "tag-2"
	rec.SetField("title", models.StringField("new title"))

	storedFields := []byte(`{"body":{"kind":"string","s":"long draft"},"title":{"kind":"string","s":"old title"}}`)
	mergedFields := []byte(`{"body":{"kind":"string","s":"long draft"},"title":{"kind":"string","s":"new title"}}`)

	mock.ExpectBegin()
	mock.ExpectQuery(getRecordForUpdate).
		WithArgs("main", "tester", "n1").
		WillReturnRows(sqlmock.NewRows([]string{
			"record_type", "fields", "change_tag", "modification_date", "prev_fields", "prev_change_tag",
		}).AddRow("Note", storedFields, "tag-2", time.Now().UTC(), nil, nil))
	mock.ExpectExec(upsertRecord).
		WithArgs("main", "tester", "n1", "Note", mergedFields,
			sqlmock.AnyArg(), sqlmock.AnyArg(), storedFields, "tag-2").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(insertChangeEvent).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	resp, _, err := storage.ModifyRecords(context.Background(), models.ModifyRecordsRequest{
		RecordsToSave: []*models.RemoteRecord{rec},
	})
	require.NoError(t, err)

	require.Len(t, resp.Results, 1)
	result := resp.Results[0]
	assert.Equal(t, models.RecordResultSaved, result.Code)
	require.NotNil(t, result.SavedRecord)
	assert.Equal(t, "new title", result.SavedRecord.Fields["title"].S)
	assert.Equal(t, "long draft", result.SavedRecord.Fields["body"].S)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestModifyRecords_Delete(t *testing.T) {
	storage, mock := newMockStorage(t)

	mock.ExpectBegin()
	mock.ExpectExec(deleteRecord).
		WithArgs("main", "tester", "n1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(insertChangeEvent).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	resp, zones, err := storage.ModifyRecords(context.Background(), models.ModifyRecordsRequest{
		RecordIDsToDelete: []models.RecordID{models.NewRecordID("n1", testZone)},
	})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, models.RecordResultDeleted, resp.Results[0].Code)
	assert.Len(t, zones, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestZoneChanges_CursorBeforeFloorExpires(t *testing.T) {
	storage, mock := newMockStorage(t)

	mock.ExpectQuery(getFeedFloor).
		WithArgs("main", "tester").
		WillReturnRows(sqlmock.NewRows([]string{"feed_floor"}).AddRow(int64(40)))

	_, err := storage.ZoneChanges(context.Background(), models.FetchZoneChangesRequest{
		ZoneID: testZone,
		Token:  models.ChangeToken("7"),
	})
	assert.ErrorIs(t, err, ErrTokenExpired)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestZoneChanges_PageAndMoreComing(t *testing.T) {
	storage, mock := newMockStorage(t)

	mock.ExpectQuery(getFeedFloor).
		WithArgs("main", "tester").
		WillReturnRows(sqlmock.NewRows([]string{"feed_floor"}).AddRow(int64(0)))
	mock.ExpectQuery(getChangesSince).
		WithArgs("main", "tester", int64(0), 3).
		WillReturnRows(sqlmock.NewRows([]string{"seq", "record_name", "record_type", "deleted"}).
			AddRow(int64(1), "n1", "Note", false).
			AddRow(int64(2), "n2", "", true).
			AddRow(int64(3), "n3", "Note", false))

	resp, err := storage.ZoneChanges(context.Background(), models.FetchZoneChangesRequest{
		ZoneID: testZone,
		Limit:  2,
	})
	require.NoError(t, err)

	assert.True(t, resp.MoreComing)
	assert.Equal(t, models.ChangeToken("2"), resp.Token)
	require.Len(t, resp.Changed, 1)
	assert.Equal(t, "n1", resp.Changed[0].RecordID.RecordName)
	require.Len(t, resp.Deleted, 1)
	assert.Equal(t, "n2", resp.Deleted[0].RecordName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestZoneChanges_UnknownZone(t *testing.T) {
	storage, mock := newMockStorage(t)

	mock.ExpectQuery(getFeedFloor).
		WithArgs("main", "tester").
		WillReturnError(sql.ErrNoRows)

	_, err := storage.ZoneChanges(context.Background(), models.FetchZoneChangesRequest{ZoneID: testZone})
	assert.ErrorIs(t, err, ErrZoneNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCompactFeed_RaisesFloorAndDropsEvents(t *testing.T) {
	storage, mock := newMockStorage(t)

	mock.ExpectBegin()
	mock.ExpectExec(raiseFeedFloor).
		WithArgs("main", "tester", int64(25)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(compactChanges).
		WithArgs("main", "tester", int64(25)).
		WillReturnResult(sqlmock.NewResult(0, 25))
	mock.ExpectCommit()

	err := storage.CompactFeed(context.Background(), testZone, 25)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCompactFeed_UnknownZone(t *testing.T) {
	storage, mock := newMockStorage(t)

	mock.ExpectBegin()
	mock.ExpectExec(raiseFeedFloor).
		WithArgs("main", "tester", int64(10)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := storage.CompactFeed(context.Background(), testZone, 10)
	assert.ErrorIs(t, err, ErrZoneNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// A cursor below the watermark expires even when compaction emptied the
// feed: the floor is persisted on the zone, not derived from what remains.
func TestZoneChanges_StaleCursorExpiresAfterFullCompaction(t *testing.T) {
	storage, mock := newMockStorage(t)

	mock.ExpectBegin()
	mock.ExpectExec(raiseFeedFloor).
		WithArgs("main", "tester", int64(12)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(compactChanges).
		WithArgs("main", "tester", int64(12)).
		WillReturnResult(sqlmock.NewResult(0, 12))
	mock.ExpectCommit()

	require.NoError(t, storage.CompactFeed(context.Background(), testZone, 12))

	mock.ExpectQuery(getFeedFloor).
		WithArgs("main", "tester").
		WillReturnRows(sqlmock.NewRows([]string{"feed_floor"}).AddRow(int64(12)))

	_, err := storage.ZoneChanges(context.Background(), models.FetchZoneChangesRequest{
		ZoneID: testZone,
		Token:  models.ChangeToken("5"),
	})
	assert.ErrorIs(t, err, ErrTokenExpired)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestZoneChanges_MalformedToken(t *testing.T) {
	storage, _ := newMockStorage(t)

	_, err := storage.ZoneChanges(context.Background(), models.FetchZoneChangesRequest{
		ZoneID: testZone,
		Token:  models.ChangeToken("not-a-number"),
	})
	assert.ErrorIs(t, err, ErrBadToken)
}

func TestGetAsset_Missing(t *testing.T) {
	storage, mock := newMockStorage(t)

	mock.ExpectQuery(getAsset).
		WithArgs("a1").
		WillReturnError(sql.ErrNoRows)

	_, err := storage.GetAsset(context.Background(), "a1")
	assert.ErrorIs(t, err, ErrAssetNotFound)
}
