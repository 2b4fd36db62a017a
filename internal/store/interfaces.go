// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package store implements the local backing store of the sync engine on top
// of SQLite: the object table, the change-set ledger, and the persisted sync
// state (change token and provisioning flags).
//
// All access goes through a single serialized connection so that ledger
// writes, object mutations, and the sync engine's reads never interleave.
// Consumer-facing mutations (Insert/Update/Delete) write their ledger entry
// in the same transaction as the object row and emit a change event after
// commit; applies driven by the remote change feed bypass the ledger.
package store

import (
	"context"

	"github.com/MKhiriev/go-sync-store/models"
)

// ObjectRepository persists local objects and records every consumer-side
// mutation in the change-set ledger.
type ObjectRepository interface {
	// Get returns the object with the given record identifier.
	// Returns ErrObjectNotFound when no such object exists.
	Get(ctx context.Context, recordID string) (models.LocalObject, error)

	// GetAll returns every stored object, in record-identifier order.
	GetAll(ctx context.Context) ([]models.LocalObject, error)

	// Insert stores a brand-new object and appends an inserted-type ledger
	// entry in the same transaction.
	Insert(ctx context.Context, obj *models.LocalObject) error

	// Update stores new attribute/reference values for an existing object
	// and appends an updated-type ledger entry carrying changedKeys with
	// to-many relationship names filtered out. An empty changedKeys means
	// "all keys changed".
	Update(ctx context.Context, obj *models.LocalObject, changedKeys []string) error

	// Delete removes the object row and appends a deleted-type ledger
	// entry (record identifier only) in the same transaction.
	Delete(ctx context.Context, recordID string) error

	// ApplyRemote upserts an object materialised from a remote record.
	// No ledger entry is written and no change event is emitted: changes
	// that originate remotely must not be pushed back.
	ApplyRemote(ctx context.Context, obj *models.LocalObject) error

	// DeleteByRecordIDs removes all objects whose record identifier is in
	// recordIDs, regardless of entity type, without ledger entries.
	// Returns the number of rows removed.
	DeleteByRecordIDs(ctx context.Context, recordIDs []string) (int64, error)

	// SetSystemFields overwrites the object's encoded system fields after
	// a successful push stamped a new version.
	SetSystemFields(ctx context.Context, recordID string, encoded []byte) error
}

// LedgerRepository exposes the push-side view of the change-set ledger.
type LedgerRepository interface {
	// PendingChangeSets returns every ledger entry in creation order and
	// marks each returned entry as queued in the same transaction.
	PendingChangeSets(ctx context.Context) ([]models.ChangeSetEntry, error)

	// ClearQueued deletes every queued entry. Called only after a full
	// sync cycle (push and pull) has completed successfully.
	ClearQueued(ctx context.Context) error

	// UnmarkQueued resets queued=false on all entries without deleting
	// them, so a failed cycle is retried from scratch on the next trigger.
	UnmarkQueued(ctx context.Context) error
}

// SyncStateRepository persists the change token and the provisioning flags.
type SyncStateRepository interface {
	// Token returns the committed change token; the zero token when none
	// has been committed yet.
	Token(ctx context.Context) (models.ChangeToken, error)

	// SaveToken commits a new change token. Callers must invoke this only
	// after the changes the token represents have been durably applied.
	SaveToken(ctx context.Context, token models.ChangeToken) error

	// DeleteToken discards the committed token, forcing the next pull to
	// run as a full resync.
	DeleteToken(ctx context.Context) error

	// Flag reports whether the named provisioning flag has been set.
	Flag(ctx context.Context, name string) (bool, error)

	// SetFlag durably records the named provisioning flag.
	SetFlag(ctx context.Context, name string) error
}
