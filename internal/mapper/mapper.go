// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package mapper translates between local objects and remote records in both
// directions and owns the opaque system-fields blob that preserves a
// record's remote identity and version across sync cycles.
//
// Precision contract: every local integer width is pushed as int64 and every
// floating or decimal value as float64. The widening is one-directional and
// accepted; values read back from the remote side carry the widened types.
package mapper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MKhiriev/go-sync-store/internal/logger"
	"github.com/MKhiriev/go-sync-store/internal/store"
	"github.com/MKhiriev/go-sync-store/models"
)

// ObjectGetter is the slice of the object repository the mapper needs to
// resolve relationship targets.
type ObjectGetter interface {
	Get(ctx context.Context, recordID string) (models.LocalObject, error)
}

// AssetStore uploads and fetches externally-stored binary payloads. Fields
// marked for external storage never inline their bytes in a record; they
// carry an asset reference instead.
type AssetStore interface {
	UploadAsset(ctx context.Context, data []byte) (models.AssetReference, error)
	FetchAsset(ctx context.Context, ref models.AssetReference) ([]byte, error)
}

// Mapper performs type-directed conversion between the two representations.
type Mapper struct {
	schema  models.Schema
	zoneID  models.ZoneID
	objects ObjectGetter
	assets  AssetStore
	logger  *logger.Logger
}

func New(schema models.Schema, zoneID models.ZoneID, objects ObjectGetter, assets AssetStore, logger *logger.Logger) *Mapper {
	return &Mapper{schema: schema, zoneID: zoneID, objects: objects, assets: assets, logger: logger}
}

// ToRemoteRecord converts a local object into its remote representation.
//
// When the object carries encoded system fields from an earlier sync, the
// record identity and change tag are recovered from them; otherwise a fresh
// record identity is minted from the object's record identifier. A non-nil
// changedKeys restricts the populated fields to that set, producing a
// minimal diff; nil means every attribute and to-one relationship.
//
// A to-one relationship is written as a remote reference only when its
// target can be resolved locally; an unresolvable target is omitted from
// this push and picked up by a later one.
func (m *Mapper) ToRemoteRecord(ctx context.Context, obj *models.LocalObject, changedKeys []string) (*models.RemoteRecord, error) {
	entity, ok := m.schema.Entity(obj.EntityName)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEntity, obj.EntityName)
	}

	record, err := m.recordIdentity(obj)
	if err != nil {
		return nil, err
	}

	attrKeys, relKeys := m.splitKeys(entity, changedKeys)

	for _, name := range attrKeys {
		desc := entity.Attributes[name]
		value, present := obj.Attributes[name]
		if !present || value == nil {
			continue
		}
		field, convErr := m.attributeToField(ctx, desc, value)
		if convErr != nil {
			return nil, fmt.Errorf("attribute %q of %s: %w", name, obj.RecordID, convErr)
		}
		record.SetField(name, field)
	}

	for _, name := range relKeys {
		targetID := obj.References[name]
		if targetID == "" {
			continue
		}
		if _, getErr := m.objects.Get(ctx, targetID); getErr != nil {
			if errors.Is(getErr, store.ErrObjectNotFound) {
				// Target has no local row yet: leave the reference out of
				// this push, it resolves on a later one.
				m.logger.Debug().
					Str("record_id", obj.RecordID).
					Str("relationship", name).
					Str("target", targetID).
					Msg("omitting reference to unresolved target")
				continue
			}
			return nil, fmt.Errorf("resolve reference %q of %s: %w", name, obj.RecordID, getErr)
		}
		record.SetField(name, models.ReferenceField(models.NewRecordID(targetID, m.zoneID)))
	}

	record.ModificationDate = obj.UpdatedAt
	return record, nil
}

// FromRemoteRecord materialises a remote record as a local object: an
// existing object with the same record identifier is updated, otherwise a
// new one is created. The caller persists the result via ApplyRemote.
//
// Returns ErrMissingRelatedObject when the record references an object that
// cannot be found locally, and ErrInvalidRecord when a required attribute is
// absent from the record.
func (m *Mapper) FromRemoteRecord(ctx context.Context, record *models.RemoteRecord) (*models.LocalObject, error) {
	entity, ok := m.schema.Entity(record.RecordType)
	if !ok {
		return nil, fmt.Errorf("%w: %w: %q", ErrInvalidRecord, ErrUnknownEntity, record.RecordType)
	}

	recordID := record.RecordID.RecordName
	obj, err := m.objects.Get(ctx, recordID)
	if err != nil {
		if !errors.Is(err, store.ErrObjectNotFound) {
			return nil, fmt.Errorf("look up local object %s: %w", recordID, err)
		}
		obj = models.LocalObject{
			EntityName: record.RecordType,
			RecordID:   recordID,
			Attributes: make(map[string]any),
			References: make(map[string]string),
		}
	}
	if obj.Attributes == nil {
		obj.Attributes = make(map[string]any)
	}
	if obj.References == nil {
		obj.References = make(map[string]string)
	}

	for name, desc := range entity.Attributes {
		field, present := record.Field(name)
		if !present {
			if !desc.Optional && !obj.Synced() {
				return nil, fmt.Errorf("%w: record %s misses required attribute %q",
					ErrInvalidRecord, recordID, name)
			}
			continue
		}
		value, convErr := m.fieldToAttribute(ctx, desc, field)
		if convErr != nil {
			return nil, fmt.Errorf("%w: attribute %q of %s: %w", ErrInvalidRecord, name, recordID, convErr)
		}
		obj.Attributes[name] = value
	}

	for name := range entity.ToOneRelationships() {
		field, present := record.Field(name)
		if !present || field.Ref == nil {
			continue
		}
		targetID := field.Ref.RecordID.RecordName
		if _, getErr := m.objects.Get(ctx, targetID); getErr != nil {
			if errors.Is(getErr, store.ErrObjectNotFound) {
				return nil, fmt.Errorf("%w: record %s references %s", ErrMissingRelatedObject, recordID, targetID)
			}
			return nil, fmt.Errorf("resolve inbound reference %q of %s: %w", name, recordID, getErr)
		}
		obj.References[name] = targetID
	}

	encoded, err := EncodeSystemFields(record)
	if err != nil {
		return nil, err
	}
	obj.EncodedSystemFields = encoded
	obj.UpdatedAt = record.ModificationDate
	if obj.UpdatedAt.IsZero() {
		obj.UpdatedAt = time.Now().UTC()
	}
	return &obj, nil
}

func (m *Mapper) recordIdentity(obj *models.LocalObject) (*models.RemoteRecord, error) {
	if !obj.Synced() {
		return models.NewRemoteRecord(obj.EntityName, models.NewRecordID(obj.RecordID, m.zoneID)), nil
	}

	sf, err := decodeSystemFields(obj.EncodedSystemFields)
	if err != nil {
		return nil, fmt.Errorf("record identity of %s: %w", obj.RecordID, err)
	}
	record := models.NewRemoteRecord(obj.EntityName, models.NewRecordID(sf.RecordName, sf.ZoneID))
	record.ChangeTag = sf.ChangeTag
	return record, nil
}

// splitKeys partitions the requested keys into attribute names and to-one
// relationship names, defaulting to all of both when keys is nil. Unknown
// keys and to-many relationship names are dropped.
func (m *Mapper) splitKeys(entity models.EntityDescription, keys []string) (attrs, rels []string) {
	if keys == nil {
		for name := range entity.Attributes {
			attrs = append(attrs, name)
		}
		for name := range entity.ToOneRelationships() {
			rels = append(rels, name)
		}
		return attrs, rels
	}

	toOne := entity.ToOneRelationships()
	for _, key := range keys {
		if _, isAttr := entity.Attributes[key]; isAttr {
			attrs = append(attrs, key)
			continue
		}
		if _, isRel := toOne[key]; isRel {
			rels = append(rels, key)
		}
	}
	return attrs, rels
}

func (m *Mapper) attributeToField(ctx context.Context, desc models.AttributeDescription, value any) (models.FieldValue, error) {
	switch desc.Type {
	case models.AttributeString:
		s, ok := value.(string)
		if !ok {
			return models.FieldValue{}, fmt.Errorf("%w: want string, got %T", ErrInvalidAttribute, value)
		}
		return models.StringField(s), nil

	case models.AttributeInt:
		// Every integer width collapses to int64 on the wire.
		switch v := value.(type) {
		case int64:
			return models.IntField(v), nil
		case int:
			return models.IntField(int64(v)), nil
		case int32:
			return models.IntField(int64(v)), nil
		case int16:
			return models.IntField(int64(v)), nil
		case float64:
			return models.IntField(int64(v)), nil
		default:
			return models.FieldValue{}, fmt.Errorf("%w: want integer, got %T", ErrInvalidAttribute, value)
		}

	case models.AttributeDouble:
		// Floating and decimal types collapse to float64 on the wire.
		switch v := value.(type) {
		case float64:
			return models.DoubleField(v), nil
		case float32:
			return models.DoubleField(float64(v)), nil
		case int64:
			return models.DoubleField(float64(v)), nil
		default:
			return models.FieldValue{}, fmt.Errorf("%w: want float, got %T", ErrInvalidAttribute, value)
		}

	case models.AttributeBool:
		b, ok := value.(bool)
		if !ok {
			return models.FieldValue{}, fmt.Errorf("%w: want bool, got %T", ErrInvalidAttribute, value)
		}
		return models.BoolField(b), nil

	case models.AttributeTime:
		t, ok := value.(time.Time)
		if !ok {
			return models.FieldValue{}, fmt.Errorf("%w: want time.Time, got %T", ErrInvalidAttribute, value)
		}
		return models.TimeField(t), nil

	case models.AttributeBytes:
		data, ok := value.([]byte)
		if !ok {
			return models.FieldValue{}, fmt.Errorf("%w: want []byte, got %T", ErrInvalidAttribute, value)
		}
		if desc.ExternalStorage {
			ref, err := m.assets.UploadAsset(ctx, data)
			if err != nil {
				return models.FieldValue{}, fmt.Errorf("upload asset: %w", err)
			}
			return models.AssetField(ref), nil
		}
		return models.BytesField(data), nil

	default:
		return models.FieldValue{}, fmt.Errorf("%w: unsupported attribute type %q", ErrInvalidAttribute, desc.Type)
	}
}

func (m *Mapper) fieldToAttribute(ctx context.Context, desc models.AttributeDescription, field models.FieldValue) (any, error) {
	switch field.Kind {
	case models.FieldString:
		return field.S, nil
	case models.FieldInt:
		return field.I, nil
	case models.FieldDouble:
		return field.F, nil
	case models.FieldBool:
		return field.B, nil
	case models.FieldTime:
		if field.T == nil {
			return nil, fmt.Errorf("%w: time field without value", ErrInvalidAttribute)
		}
		return *field.T, nil
	case models.FieldBytes:
		return field.Bytes, nil
	case models.FieldAsset:
		if field.Asset == nil {
			return nil, fmt.Errorf("%w: asset field without reference", ErrInvalidAttribute)
		}
		data, err := m.assets.FetchAsset(ctx, *field.Asset)
		if err != nil {
			return nil, fmt.Errorf("fetch asset %s: %w", field.Asset.AssetID, err)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("%w: field kind %q does not fit attribute type %q",
			ErrInvalidAttribute, field.Kind, desc.Type)
	}
}
