package models

import "time"

// LocalObject is an instance of a locally-persisted entity type.
//
// RecordID is assigned once at creation and never reassigned; it backs both
// the local identity and the remote record identity. EncodedSystemFields is
// the opaque blob preserving remote identity and versioning metadata; it is
// empty until the object has been pushed at least once.
type LocalObject struct {
	// EntityName is the entity-type name from the schema.
	EntityName string `json:"entity_name"`

	// RecordID is the stable, globally unique identifier. Immutable.
	RecordID string `json:"record_id"`

	// Attributes holds scalar attribute values keyed by attribute name.
	// Value types follow the schema's attribute types; integers are int64
	// and floating values are float64 once loaded from the store.
	Attributes map[string]any `json:"attributes"`

	// References holds to-one relationship targets keyed by relationship
	// name; the value is the target object's RecordID. To-many
	// relationships are derived from inverse to-one references and are
	// never stored here.
	References map[string]string `json:"references"`

	// EncodedSystemFields carries the remote record's system metadata.
	// Empty for objects that have never completed a push.
	EncodedSystemFields []byte `json:"encoded_system_fields,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}

// Synced reports whether the object has a remote identity, i.e. has
// completed at least one successful push.
func (o *LocalObject) Synced() bool {
	return len(o.EncodedSystemFields) > 0
}

// EntityIdentifier and InstanceIdentifier satisfy the sortable-node contract
// of the dependency graph package.
func (o *LocalObject) EntityIdentifier() string { return o.EntityName }

func (o *LocalObject) InstanceIdentifier() string { return o.RecordID }

// LocalChangeEvent describes one committed mutation of the local store.
// The store emits an event after every commit so the sync engine can react
// to saves performed by the consumer-facing side.
type LocalChangeEvent struct {
	RecordID   string
	EntityName string
	ChangeType ChangeType
}
