// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package store

const (
	getObject = `
		SELECT
			record_id,
			entity_name,
			attributes,
			refs,
			encoded_system_fields,
			updated_at
		FROM objects
		WHERE record_id = ?;`

	getAllObjects = `
		SELECT
			record_id,
			entity_name,
			attributes,
			refs,
			encoded_system_fields,
			updated_at
		FROM objects
		ORDER BY record_id;`

	insertObject = `
		INSERT INTO objects (
			record_id,
			entity_name,
			attributes,
			refs,
			encoded_system_fields,
			updated_at
		) VALUES (?, ?, ?, ?, ?, ?);`

	updateObject = `
		UPDATE objects SET
			attributes            = ?,
			refs                  = ?,
			encoded_system_fields = ?,
			updated_at            = ?
		WHERE record_id = ?;`

	upsertObject = `
		INSERT INTO objects (
			record_id,
			entity_name,
			attributes,
			refs,
			encoded_system_fields,
			updated_at
		) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(record_id) DO UPDATE SET
			entity_name           = excluded.entity_name,
			attributes            = excluded.attributes,
			refs                  = excluded.refs,
			encoded_system_fields = excluded.encoded_system_fields,
			updated_at            = excluded.updated_at;`

	deleteObject = `
		DELETE FROM objects WHERE record_id = ?;`

	setObjectSystemFields = `
		UPDATE objects SET encoded_system_fields = ? WHERE record_id = ?;`

	insertChangeSet = `
		INSERT INTO change_sets (
			record_id,
			entity_name,
			change_type,
			changed_keys,
			created_at
		) VALUES (?, ?, ?, ?, ?);`

	getPendingChangeSets = `
		SELECT
			id,
			record_id,
			entity_name,
			change_type,
			changed_keys,
			queued,
			created_at
		FROM change_sets
		ORDER BY id;`

	markChangeSetsQueued = `
		UPDATE change_sets SET queued = 1 WHERE queued = 0;`

	clearQueuedChangeSets = `
		DELETE FROM change_sets WHERE queued = 1;`

	unmarkQueuedChangeSets = `
		UPDATE change_sets SET queued = 0 WHERE queued = 1;`

	getSyncStateValue = `
		SELECT value FROM sync_state WHERE key = ?;`

	upsertSyncStateValue = `
		INSERT INTO sync_state (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value;`

	deleteSyncStateValue = `
		DELETE FROM sync_state WHERE key = ?;`
)
