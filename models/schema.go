// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package models

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

// AttributeType enumerates the scalar types an entity attribute can have.
// Integer widths narrower than 64 bits and decimal types are not modelled
// separately: they widen to AttributeInt / AttributeDouble on the wire (see
// the FieldValue precision contract).
type AttributeType string

const (
	AttributeString AttributeType = "string"
	AttributeInt    AttributeType = "int"
	AttributeDouble AttributeType = "double"
	AttributeBool   AttributeType = "bool"
	AttributeTime   AttributeType = "time"
	AttributeBytes  AttributeType = "bytes"
)

// AttributeDescription describes one scalar attribute of an entity.
type AttributeDescription struct {
	Name     string        `json:"name"`
	Type     AttributeType `json:"type"`
	Optional bool          `json:"optional"`

	// ExternalStorage marks a bytes attribute whose payload is uploaded as
	// a separate asset instead of being inlined in the record.
	ExternalStorage bool `json:"external_storage,omitempty"`
}

// RelationshipDescription describes one relationship of an entity. Only
// to-one relationships are pushed to the remote service; to-many
// relationships are reconstructed from the inverse to-one on pull.
type RelationshipDescription struct {
	Name              string `json:"name"`
	DestinationEntity string `json:"destination_entity"`
	ToMany            bool   `json:"to_many"`
	Optional          bool   `json:"optional"`
}

// EntityDescription describes one entity type participating in sync.
type EntityDescription struct {
	Name          string                             `json:"name"`
	Attributes    map[string]AttributeDescription    `json:"attributes"`
	Relationships map[string]RelationshipDescription `json:"relationships,omitempty"`
}

// ToOneRelationships returns the entity's to-one relationships keyed by name.
func (e EntityDescription) ToOneRelationships() map[string]RelationshipDescription {
	out := make(map[string]RelationshipDescription)
	for name, rel := range e.Relationships {
		if !rel.ToMany {
			out[name] = rel
		}
	}
	return out
}

// Schema is the set of entity types participating in sync. It plays the role
// of the host object model: the mapper and the dependency sorter consult it
// for attribute types and relationship topology.
type Schema struct {
	Entities map[string]EntityDescription `json:"entities"`
}

// Entity returns the description for name and whether it exists.
func (s Schema) Entity(name string) (EntityDescription, bool) {
	e, ok := s.Entities[name]
	return e, ok
}

// EntityNames returns all entity-type names in lexical order.
func (s Schema) EntityNames() []string {
	names := make([]string, 0, len(s.Entities))
	for name := range s.Entities {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks internal consistency: every relationship destination must
// name a known entity.
func (s Schema) Validate() error {
	for entityName, entity := range s.Entities {
		for relName, rel := range entity.Relationships {
			if _, ok := s.Entities[rel.DestinationEntity]; !ok {
				return fmt.Errorf("entity %q relationship %q: unknown destination entity %q",
					entityName, relName, rel.DestinationEntity)
			}
		}
	}
	return nil
}

// LoadSchema reads and validates a schema from a JSON file.
func LoadSchema(path string) (Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Schema{}, fmt.Errorf("read schema file: %w", err)
	}

	var s Schema
	if err = json.Unmarshal(data, &s); err != nil {
		return Schema{}, fmt.Errorf("decode schema file: %w", err)
	}
	if err = s.Validate(); err != nil {
		return Schema{}, fmt.Errorf("validate schema: %w", err)
	}
	return s, nil
}
