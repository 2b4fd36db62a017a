// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package models

import (
	"fmt"
	"time"
)

// ZoneID identifies a remote record zone: a server-side namespace that scopes
// a set of records and their change feed.
type ZoneID struct {
	// ZoneName is the name of the custom zone created during provisioning.
	ZoneName string `json:"zone_name"`

	// OwnerName identifies the account owning the zone.
	OwnerName string `json:"owner_name"`
}

func (z ZoneID) String() string {
	return z.OwnerName + "/" + z.ZoneName
}

// RecordID is the fully-qualified identifier of a remote record.
// RecordName matches the recordID of the local object backing the record;
// the two identities are assigned together at creation and never diverge.
type RecordID struct {
	RecordName string `json:"record_name"`
	ZoneID     ZoneID `json:"zone_id"`
}

func NewRecordID(recordName string, zoneID ZoneID) RecordID {
	return RecordID{RecordName: recordName, ZoneID: zoneID}
}

// Reference is a remote-side pointer from one record to another, produced
// from a local to-one relationship. Deleting the referenced record cascades
// to the referrer (ActionDeleteSelf), mirroring the non-optional nature of
// the relationships that generate references.
type Reference struct {
	RecordID RecordID `json:"record_id"`
	Action   string   `json:"action"`
}

const ReferenceActionDeleteSelf = "delete_self"

// AssetReference points at an externally-stored binary payload. Fields marked
// for external storage are uploaded separately and carried in the record as a
// reference only.
type AssetReference struct {
	AssetID  string `json:"asset_id"`
	Size     int64  `json:"size"`
	Checksum string `json:"checksum"`
}

// FieldKind enumerates the value types a remote record field can carry.
type FieldKind string

const (
	FieldString    FieldKind = "string"
	FieldInt       FieldKind = "int"
	FieldDouble    FieldKind = "double"
	FieldBool      FieldKind = "bool"
	FieldTime      FieldKind = "time"
	FieldBytes     FieldKind = "bytes"
	FieldAsset     FieldKind = "asset"
	FieldReference FieldKind = "reference"
)

// FieldValue is the tagged union used for remote record fields. Exactly one
// payload member is meaningful, selected by Kind.
//
// Numeric widening contract: every local integer width is carried as int64
// and every local floating or decimal value as float64. The widening is
// one-directional and lossy for decimals; it is an accepted precision
// contract of the wire format, not an implementation accident.
type FieldValue struct {
	Kind FieldKind `json:"kind"`

	S     string          `json:"s,omitempty"`
	I     int64           `json:"i,omitempty"`
	F     float64         `json:"f,omitempty"`
	B     bool            `json:"b,omitempty"`
	T     *time.Time      `json:"t,omitempty"`
	Bytes []byte          `json:"bytes,omitempty"`
	Asset *AssetReference `json:"asset,omitempty"`
	Ref   *Reference      `json:"ref,omitempty"`
}

func StringField(v string) FieldValue  { return FieldValue{Kind: FieldString, S: v} }
func IntField(v int64) FieldValue      { return FieldValue{Kind: FieldInt, I: v} }
func DoubleField(v float64) FieldValue { return FieldValue{Kind: FieldDouble, F: v} }
func BoolField(v bool) FieldValue      { return FieldValue{Kind: FieldBool, B: v} }
func BytesField(v []byte) FieldValue   { return FieldValue{Kind: FieldBytes, Bytes: v} }

func TimeField(v time.Time) FieldValue {
	return FieldValue{Kind: FieldTime, T: &v}
}

func AssetField(ref AssetReference) FieldValue {
	return FieldValue{Kind: FieldAsset, Asset: &ref}
}

func ReferenceField(id RecordID) FieldValue {
	return FieldValue{Kind: FieldReference, Ref: &Reference{RecordID: id, Action: ReferenceActionDeleteSelf}}
}

// RemoteRecord is the remote-side representation of a synced object.
//
// ChangeTag is the opaque versioning token the remote service uses to detect
// concurrent modification: a push based on a stale ChangeTag is rejected with
// a conflict. The tag round-trips through the local store inside the object's
// encoded system fields and is never interpreted by the client.
type RemoteRecord struct {
	RecordType       string                `json:"record_type"`
	RecordID         RecordID              `json:"record_id"`
	Fields           map[string]FieldValue `json:"fields"`
	ChangeTag        string                `json:"change_tag,omitempty"`
	ModificationDate time.Time             `json:"modification_date"`
}

// NewRemoteRecord mints a record with a fresh (never-pushed) identity.
func NewRemoteRecord(recordType string, recordID RecordID) *RemoteRecord {
	return &RemoteRecord{
		RecordType: recordType,
		RecordID:   recordID,
		Fields:     make(map[string]FieldValue),
	}
}

func (r *RemoteRecord) SetField(name string, value FieldValue) {
	if r.Fields == nil {
		r.Fields = make(map[string]FieldValue)
	}
	r.Fields[name] = value
}

// Field returns the named field value and whether it is present.
func (r *RemoteRecord) Field(name string) (FieldValue, bool) {
	v, ok := r.Fields[name]
	return v, ok
}

// Clone returns a deep copy. The Fields map is copied; FieldValue payloads
// are treated as immutable after construction so pointer members are shared.
func (r *RemoteRecord) Clone() *RemoteRecord {
	cp := *r
	cp.Fields = make(map[string]FieldValue, len(r.Fields))
	for k, v := range r.Fields {
		cp.Fields[k] = v
	}
	return &cp
}

// EntityIdentifier and InstanceIdentifier satisfy the sortable-node contract
// of the dependency graph package.
func (r *RemoteRecord) EntityIdentifier() string { return r.RecordType }

func (r *RemoteRecord) InstanceIdentifier() string { return r.RecordID.RecordName }

func (r *RemoteRecord) String() string {
	return fmt.Sprintf("%s(%s)", r.RecordType, r.RecordID.RecordName)
}
