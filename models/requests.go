// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package models

// Wire types shared by the remote database adapter and the reference record
// server. All requests are JSON bodies; error signalling beyond the
// per-record granularity below happens through HTTP status codes.

// Zone describes a record zone to be created during provisioning.
type Zone struct {
	ZoneID ZoneID `json:"zone_id"`
}

// Subscription registers interest in a zone's change feed. Clients holding a
// subscription receive zone-change notifications over the event channel.
type Subscription struct {
	SubscriptionID string `json:"subscription_id"`
	ZoneID         ZoneID `json:"zone_id"`
}

// ModifyRecordsRequest is a batched push of upserts and deletes. The server
// enforces a maximum batch size; oversized batches are rejected outright.
type ModifyRecordsRequest struct {
	RecordsToSave     []*RemoteRecord `json:"records_to_save,omitempty"`
	RecordIDsToDelete []RecordID      `json:"record_ids_to_delete,omitempty"`
}

// Items returns the number of batch items the request counts against the
// server's per-request ceiling.
func (r ModifyRecordsRequest) Items() int {
	return len(r.RecordsToSave) + len(r.RecordIDsToDelete)
}

// RecordResultCode classifies the outcome of one record within a batch.
type RecordResultCode string

const (
	RecordResultSaved    RecordResultCode = "saved"
	RecordResultDeleted  RecordResultCode = "deleted"
	RecordResultConflict RecordResultCode = "conflict"
	RecordResultInvalid  RecordResultCode = "invalid"
	RecordResultFailed   RecordResultCode = "failed"
)

// RecordResult is the per-record outcome of a ModifyRecords push. A batch
// request succeeds at transport level even when individual records fail; the
// caller inspects results one by one.
type RecordResult struct {
	RecordID RecordID         `json:"record_id"`
	Code     RecordResultCode `json:"code"`

	// SavedRecord carries the stored record (with its new ChangeTag) for
	// RecordResultSaved outcomes.
	SavedRecord *RemoteRecord `json:"saved_record,omitempty"`

	// Conflict carries the server/client/ancestor triple for
	// RecordResultConflict outcomes.
	Conflict *ConflictRecord `json:"conflict,omitempty"`

	// Reason is a human-readable explanation for invalid and failed
	// outcomes.
	Reason string `json:"reason,omitempty"`
}

// ModifyRecordsResponse lists one result per pushed item.
type ModifyRecordsResponse struct {
	Results []RecordResult `json:"results"`
}

// ChangedRecordInfo is one change-feed notification. The notification omits
// field values; full bodies are fetched in a second round-trip.
type ChangedRecordInfo struct {
	RecordID   RecordID `json:"record_id"`
	RecordType string   `json:"record_type"`
}

// FetchZoneChangesRequest asks for the change feed since Token. A zero token
// requests the full feed from the beginning.
type FetchZoneChangesRequest struct {
	ZoneID ZoneID      `json:"zone_id"`
	Token  ChangeToken `json:"token,omitempty"`
	Limit  int         `json:"limit,omitempty"`
}

// FetchZoneChangesResponse is one page of the change feed.
type FetchZoneChangesResponse struct {
	Changed []ChangedRecordInfo `json:"changed,omitempty"`
	Deleted []RecordID          `json:"deleted,omitempty"`

	// Token is the cursor to resume from after this page.
	Token ChangeToken `json:"token"`

	// MoreComing signals that further pages are available.
	MoreComing bool `json:"more_coming"`
}

// FetchRecordsRequest fetches full record bodies for the given identifiers.
// DesiredKeys narrows the returned fields; empty means all fields.
type FetchRecordsRequest struct {
	RecordIDs   []RecordID `json:"record_ids"`
	DesiredKeys []string   `json:"desired_keys,omitempty"`
}

type FetchRecordsResponse struct {
	Records []*RemoteRecord `json:"records"`
}

// ZoneNotification is pushed to subscribed clients whenever records in the
// zone change. It carries no payload; receivers react by running an
// incremental sync.
type ZoneNotification struct {
	ZoneID ZoneID `json:"zone_id"`
}
