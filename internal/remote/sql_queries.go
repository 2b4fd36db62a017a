package remote

const (
	upsertZone = `
		INSERT INTO zones (zone_name, owner_name)
		VALUES ($1, $2)
		ON CONFLICT (zone_name, owner_name) DO NOTHING`

	zoneExists = `
		SELECT EXISTS (
			SELECT 1 FROM zones WHERE zone_name = $1 AND owner_name = $2
		)`

	upsertSubscription = `
		INSERT INTO subscriptions (subscription_id, zone_name, owner_name)
		VALUES ($1, $2, $3)
		ON CONFLICT (subscription_id) DO UPDATE
		SET zone_name = EXCLUDED.zone_name, owner_name = EXCLUDED.owner_name`

	getRecordForUpdate = `
		SELECT record_type, fields, change_tag, modification_date, prev_fields, prev_change_tag
		FROM records
		WHERE zone_name = $1 AND owner_name = $2 AND record_name = $3
		FOR UPDATE`

	upsertRecord = `
		INSERT INTO records (zone_name, owner_name, record_name, record_type, fields,
		                     change_tag, modification_date, prev_fields, prev_change_tag)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (zone_name, owner_name, record_name) DO UPDATE
		SET record_type      = EXCLUDED.record_type,
		    fields           = EXCLUDED.fields,
		    change_tag       = EXCLUDED.change_tag,
		    modification_date = EXCLUDED.modification_date,
		    prev_fields      = EXCLUDED.prev_fields,
		    prev_change_tag  = EXCLUDED.prev_change_tag`

	deleteRecord = `
		DELETE FROM records
		WHERE zone_name = $1 AND owner_name = $2 AND record_name = $3`

	insertChangeEvent = `
		INSERT INTO record_changes (zone_name, owner_name, record_name, record_type, deleted, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	getChangesSince = `
		SELECT seq, record_name, record_type, deleted
		FROM record_changes
		WHERE zone_name = $1 AND owner_name = $2 AND seq > $3
		ORDER BY seq
		LIMIT $4`

	getFeedFloor = `
		SELECT feed_floor FROM zones
		WHERE zone_name = $1 AND owner_name = $2`

	raiseFeedFloor = `
		UPDATE zones SET feed_floor = GREATEST(feed_floor, $3)
		WHERE zone_name = $1 AND owner_name = $2`

	compactChanges = `
		DELETE FROM record_changes
		WHERE zone_name = $1 AND owner_name = $2 AND seq <= $3`

	insertAsset = `
		INSERT INTO assets (asset_id, payload, checksum, created_at)
		VALUES ($1, $2, $3, $4)`

	getAsset = `
		SELECT payload FROM assets WHERE asset_id = $1`
)
