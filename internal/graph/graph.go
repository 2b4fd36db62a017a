// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package graph orders heterogeneous batches of records or objects so that
// referenced entities are applied before their referrers.
//
// The graph is built over entity types, not instances: type A depends on
// type B when A has a non-optional to-one relationship to B. A total order
// over the types present in the batch is derived from the acyclic dependency
// chains reachable from each type; instances then sort by type order first
// and by their own identifier within a type. Cycles among entity types are
// broken deterministically: the chain computation stops when a type
// reappears on its own path, with a logged warning, and the batch still
// sorts completely.
package graph

import (
	"sort"

	"github.com/MKhiriev/go-sync-store/internal/logger"
	"github.com/MKhiriev/go-sync-store/models"
)

// Node is anything the sorter can order: remote records and local objects
// both satisfy it.
type Node interface {
	EntityIdentifier() string
	InstanceIdentifier() string
}

// DependencyGraph is the ephemeral structure built for one batch.
type DependencyGraph struct {
	unsorted []Node

	// dependencies maps an entity-type name to the set of entity-type
	// names it has a non-optional to-one relationship to.
	dependencies map[string]map[string]bool

	// ancestorChains memoises, per entity type, every acyclic dependency
	// chain starting at that type.
	ancestorChains map[string][][]string

	logger *logger.Logger
}

// New builds the dependency graph for the given batch using the schema's
// relationship topology. Only entity types present in the batch participate.
func New(nodes []Node, schema models.Schema, log *logger.Logger) *DependencyGraph {
	g := &DependencyGraph{
		unsorted:       nodes,
		dependencies:   make(map[string]map[string]bool),
		ancestorChains: make(map[string][][]string),
		logger:         log,
	}

	for _, node := range nodes {
		entityName := node.EntityIdentifier()
		if _, seen := g.dependencies[entityName]; seen {
			continue
		}
		deps := make(map[string]bool)
		if entity, ok := schema.Entity(entityName); ok {
			for _, rel := range entity.Relationships {
				if rel.ToMany || rel.Optional {
					continue
				}
				deps[rel.DestinationEntity] = true
			}
		}
		g.dependencies[entityName] = deps
	}

	for entityName := range g.dependencies {
		g.ancestorChains[entityName] = g.makeDependencyChains([]string{entityName})
	}

	return g
}

// Sorted returns the batch in application order. Every input node appears
// exactly once; the order is deterministic across runs for the same input.
func (g *DependencyGraph) Sorted() []Node {
	typeOrder := g.sortedEntityNames()
	typeIndex := make(map[string]int, len(typeOrder))
	for i, name := range typeOrder {
		typeIndex[name] = i
	}

	sorted := make([]Node, len(g.unsorted))
	copy(sorted, g.unsorted)

	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.EntityIdentifier() == b.EntityIdentifier() {
			// Same entity type: relationship order is irrelevant, but the
			// result must be reproducible, so fall back to the instance
			// identifier.
			return a.InstanceIdentifier() < b.InstanceIdentifier()
		}
		return typeIndex[a.EntityIdentifier()] < typeIndex[b.EntityIdentifier()]
	})

	return sorted
}

// sortedEntityNames derives the total order over the entity types in the
// batch. A type X sorts before Y when X appears in one of Y's dependency
// chains (Y transitively depends on X). Types with no dependency relation
// tie-break on the terminal type name of their chains, then lexically, so
// the order is reproducible across runs.
//
// Types are emitted by repeatedly selecting, among the remaining ones, a
// type that depends on no other remaining type. When a cycle leaves no such
// type the lexically smallest remaining one is emitted, which breaks the
// cycle deterministically.
func (g *DependencyGraph) sortedEntityNames() []string {
	ancestors := make(map[string]map[string]bool, len(g.ancestorChains))
	for name, chains := range g.ancestorChains {
		set := make(map[string]bool)
		for _, chain := range chains {
			for _, ancestor := range chain[1:] {
				set[ancestor] = true
			}
		}
		ancestors[name] = set
	}

	remaining := make([]string, 0, len(g.dependencies))
	for name := range g.dependencies {
		remaining = append(remaining, name)
	}
	sort.Strings(remaining)

	order := make([]string, 0, len(remaining))
	for len(remaining) > 0 {
		pick := -1
		for i, name := range remaining {
			free := true
			for _, other := range remaining {
				if other != name && ancestors[name][other] {
					free = false
					break
				}
			}
			if !free {
				continue
			}
			if pick < 0 || lessByChainRoot(g.ancestorChains, remaining[i], remaining[pick]) {
				pick = i
			}
		}
		if pick < 0 {
			// Cycle among every remaining type.
			pick = 0
		}
		order = append(order, remaining[pick])
		remaining = append(remaining[:pick], remaining[pick+1:]...)
	}

	return order
}

func lessByChainRoot(chains map[string][][]string, a, b string) bool {
	rootA, rootB := chainRoot(chains[a]), chainRoot(chains[b])
	if rootA != rootB {
		return rootA < rootB
	}
	return a < b
}

// makeDependencyChains computes every acyclic dependency chain extending
// chain. A dependency already on the current path means a cycle: the chain
// is terminated there with a warning instead of recursing forever.
func (g *DependencyGraph) makeDependencyChains(chain []string) [][]string {
	last := chain[len(chain)-1]
	deps := g.dependencies[last]
	if len(deps) == 0 {
		return [][]string{chain}
	}

	depNames := make([]string, 0, len(deps))
	for name := range deps {
		depNames = append(depNames, name)
	}
	sort.Strings(depNames)

	var chains [][]string
	for _, dep := range depNames {
		if containsString(chain, dep) {
			g.logger.Warn().
				Strs("path", chain).
				Str("dependency", dep).
				Msg("dependency cycle detected, terminating chain")
			chains = append(chains, chain)
			continue
		}
		augmented := make([]string, len(chain), len(chain)+1)
		copy(augmented, chain)
		augmented = append(augmented, dep)
		chains = append(chains, g.makeDependencyChains(augmented)...)
	}
	return chains
}

func containsString(chain []string, name string) bool {
	for _, c := range chain {
		if c == name {
			return true
		}
	}
	return false
}

func chainRoot(chains [][]string) string {
	if len(chains) == 0 {
		return ""
	}
	last := chains[len(chains)-1]
	return last[len(last)-1]
}
