package models

import "time"

// SkipReason classifies why a record was dropped from a sync cycle.
type SkipReason string

const (
	// SkipMissingRelatedObject: the record references an object that could
	// not be resolved locally within the bounded retry passes.
	SkipMissingRelatedObject SkipReason = "missing_related_object"

	// SkipInvalidRecord: the record failed validation (e.g. a required
	// field is absent) and was skipped with a warning.
	SkipInvalidRecord SkipReason = "invalid_record"

	// SkipPushRejected: the remote service rejected the record for a
	// non-conflict reason.
	SkipPushRejected SkipReason = "push_rejected"
)

// SkippedRecord is one entry of the structured skip log. Silently dropping
// sync-relevant data is correctness-sensitive, so every skip is recorded and
// surfaced in the cycle's SyncResult instead of being printed and lost.
type SkippedRecord struct {
	RecordID   string     `json:"record_id"`
	RecordType string     `json:"record_type,omitempty"`
	Reason     SkipReason `json:"reason"`
	Detail     string     `json:"detail,omitempty"`
}

// SyncResult summarises one completed sync cycle.
type SyncResult struct {
	Started  time.Time `json:"started"`
	Finished time.Time `json:"finished"`

	// Pushed counts records successfully saved remotely, PushedDeletes
	// counts remote deletions.
	Pushed        int `json:"pushed"`
	PushedDeletes int `json:"pushed_deletes"`

	// Applied counts remote records materialised locally, AppliedDeletes
	// counts local deletions driven by the change feed.
	Applied        int `json:"applied"`
	AppliedDeletes int `json:"applied_deletes"`

	// ConflictsResolved counts records that went through conflict
	// resolution during this cycle.
	ConflictsResolved int `json:"conflicts_resolved"`

	// Skipped lists records dropped from this cycle; see SkippedRecord.
	Skipped []SkippedRecord `json:"skipped,omitempty"`

	// FullResync is true when the change cursor had expired and the pull
	// restarted from the null token.
	FullResync bool `json:"full_resync"`
}
