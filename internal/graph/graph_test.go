// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package graph

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/MKhiriev/go-sync-store/internal/logger"
	"github.com/MKhiriev/go-sync-store/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testNode struct {
	entity   string
	instance string
}

func (n testNode) EntityIdentifier() string   { return n.entity }
func (n testNode) InstanceIdentifier() string { return n.instance }

// schemaOf builds a schema where deps[X] lists the entity types X has a
// non-optional to-one relationship to.
func schemaOf(deps map[string][]string) models.Schema {
	entities := make(map[string]models.EntityDescription)
	for name, targets := range deps {
		rels := make(map[string]models.RelationshipDescription)
		for i, target := range targets {
			relName := fmt.Sprintf("rel%d", i)
			rels[relName] = models.RelationshipDescription{
				Name:              relName,
				DestinationEntity: target,
			}
		}
		entities[name] = models.EntityDescription{Name: name, Relationships: rels}
	}
	return models.Schema{Entities: entities}
}

func nodesOf(entities ...string) []Node {
	nodes := make([]Node, 0, len(entities))
	counts := make(map[string]int)
	for _, e := range entities {
		counts[e]++
		nodes = append(nodes, testNode{entity: e, instance: fmt.Sprintf("%s-%d", e, counts[e])})
	}
	return nodes
}

func typePositions(sorted []Node) map[string]int {
	pos := make(map[string]int)
	for i, n := range sorted {
		if _, seen := pos[n.EntityIdentifier()]; !seen {
			pos[n.EntityIdentifier()] = i
		}
	}
	return pos
}

func TestSorted_DependencyBeforeDependent(t *testing.T) {
	schema := schemaOf(map[string][]string{
		"Note":   {"Author"},
		"Author": nil,
	})
	nodes := nodesOf("Note", "Note", "Author")

	sorted := New(nodes, schema, logger.Nop()).Sorted()
	require.Len(t, sorted, 3)

	pos := typePositions(sorted)
	assert.Less(t, pos["Author"], pos["Note"])
}

func TestSorted_ChainOfThree(t *testing.T) {
	schema := schemaOf(map[string][]string{
		"Comment": {"Note"},
		"Note":    {"Author"},
		"Author":  nil,
	})
	nodes := nodesOf("Comment", "Author", "Note")

	sorted := New(nodes, schema, logger.Nop()).Sorted()
	pos := typePositions(sorted)

	assert.Less(t, pos["Author"], pos["Note"])
	assert.Less(t, pos["Note"], pos["Comment"])
}

func TestSorted_OptionalAndToManyIgnored(t *testing.T) {
	schema := models.Schema{Entities: map[string]models.EntityDescription{
		"A": {Name: "A", Relationships: map[string]models.RelationshipDescription{
			"maybe": {Name: "maybe", DestinationEntity: "B", Optional: true},
			"many":  {Name: "many", DestinationEntity: "B", ToMany: true},
		}},
		"B": {Name: "B"},
	}}
	nodes := nodesOf("A", "B")

	// No hard dependency between A and B: order is the deterministic
	// tie-break, and sorting must not fail.
	sorted := New(nodes, schema, logger.Nop()).Sorted()
	assert.Len(t, sorted, 2)
}

func TestSorted_EveryNodeAppearsExactlyOnce(t *testing.T) {
	schema := schemaOf(map[string][]string{
		"Note":   {"Author"},
		"Author": nil,
	})
	nodes := nodesOf("Note", "Author", "Note", "Author", "Note")

	sorted := New(nodes, schema, logger.Nop()).Sorted()
	require.Len(t, sorted, len(nodes))

	seen := make(map[string]bool)
	for _, n := range sorted {
		key := n.EntityIdentifier() + "/" + n.InstanceIdentifier()
		assert.False(t, seen[key], "duplicate node %s", key)
		seen[key] = true
	}
}

func TestSorted_CycleStillSortsCompletely(t *testing.T) {
	schema := schemaOf(map[string][]string{
		"A": {"B"},
		"B": {"A"},
	})
	nodes := nodesOf("A", "B", "A")

	sorted := New(nodes, schema, logger.Nop()).Sorted()
	assert.Len(t, sorted, 3)
}

func TestSorted_SelfReferenceStillSorts(t *testing.T) {
	schema := schemaOf(map[string][]string{
		"Folder": {"Folder"},
	})
	nodes := nodesOf("Folder", "Folder")

	sorted := New(nodes, schema, logger.Nop()).Sorted()
	assert.Len(t, sorted, 2)
}

func TestSorted_Deterministic(t *testing.T) {
	schema := schemaOf(map[string][]string{
		"A": nil,
		"B": nil,
		"C": {"A", "B"},
		"D": {"C"},
	})
	nodes := nodesOf("D", "C", "B", "A", "D", "B")

	first := New(nodes, schema, logger.Nop()).Sorted()
	for i := 0; i < 10; i++ {
		again := New(nodes, schema, logger.Nop()).Sorted()
		require.Equal(t, first, again)
	}
}

// TestSorted_RandomDAGs generates layered random DAGs (depth up to 5,
// branching up to 4) and verifies that every non-optional to-one dependency
// sorts before its dependent.
func TestSorted_RandomDAGs(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	for trial := 0; trial < 50; trial++ {
		depth := 2 + rng.Intn(4)
		deps := make(map[string][]string)
		var layers [][]string

		for d := 0; d < depth; d++ {
			width := 1 + rng.Intn(4)
			var layer []string
			for w := 0; w < width; w++ {
				name := fmt.Sprintf("E%d_%d", d, w)
				layer = append(layer, name)
				deps[name] = nil
				// Depend on random types from earlier layers only, so the
				// graph is acyclic by construction.
				if d > 0 {
					prev := layers[rng.Intn(d)]
					n := rng.Intn(min(len(prev), 4) + 1)
					picked := make(map[string]bool)
					for len(picked) < n {
						picked[prev[rng.Intn(len(prev))]] = true
					}
					for target := range picked {
						deps[name] = append(deps[name], target)
					}
				}
			}
			layers = append(layers, layer)
		}

		var entityList []string
		for name := range deps {
			for i := 0; i < 1+rng.Intn(3); i++ {
				entityList = append(entityList, name)
			}
		}

		schema := schemaOf(deps)
		nodes := nodesOf(entityList...)
		sorted := New(nodes, schema, logger.Nop()).Sorted()
		require.Len(t, sorted, len(nodes), "trial %d", trial)

		pos := typePositions(sorted)
		for dependent, targets := range deps {
			for _, target := range targets {
				assert.Less(t, pos[target], pos[dependent],
					"trial %d: %s must sort before %s", trial, target, dependent)
			}
		}
	}
}
