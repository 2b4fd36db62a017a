// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package models

import (
	"strings"
	"time"
)

// ChangeType classifies a ledger entry. The numeric values are part of the
// local store schema; do not renumber.
type ChangeType int16

const (
	ChangeNone     ChangeType = 0
	ChangeUpdated  ChangeType = 1
	ChangeDeleted  ChangeType = 2
	ChangeInserted ChangeType = 3
)

func (c ChangeType) String() string {
	switch c {
	case ChangeUpdated:
		return "updated"
	case ChangeDeleted:
		return "deleted"
	case ChangeInserted:
		return "inserted"
	default:
		return "none"
	}
}

// ChangeSetEntry is one row of the change-set ledger: a durable note that a
// local object was inserted, updated, or deleted since the last successful
// sync. Entries are written in the same transaction as the mutation they
// describe and removed only after a full sync cycle completes.
type ChangeSetEntry struct {
	// ID is the ledger row identifier.
	ID int64 `json:"id"`

	// RecordID identifies the mutated object.
	RecordID string `json:"record_id"`

	// EntityName is empty for pure deletes; a remote delete needs only the
	// record identifier.
	EntityName string `json:"entity_name,omitempty"`

	ChangeType ChangeType `json:"change_type"`

	// ChangedKeys is the comma-joined list of changed attribute and to-one
	// relationship names. Meaningful only for updates; empty means "push
	// every key". To-many relationship keys are filtered out before the
	// entry is written.
	ChangedKeys string `json:"changed_keys,omitempty"`

	// Queued marks the entry as picked up by an in-flight push. Queued
	// entries are deleted after a successful cycle and unmarked after a
	// failed one, so interrupted syncs retry naturally.
	Queued bool `json:"queued"`

	CreatedAt time.Time `json:"created_at"`
}

// ChangedKeyList splits ChangedKeys into its parts. Returns nil for an empty
// list, which callers treat as "all keys".
func (e *ChangeSetEntry) ChangedKeyList() []string {
	if e.ChangedKeys == "" {
		return nil
	}
	return strings.Split(e.ChangedKeys, ",")
}

// JoinChangedKeys is the inverse of ChangedKeyList.
func JoinChangedKeys(keys []string) string {
	return strings.Join(keys, ",")
}
