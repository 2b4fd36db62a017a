// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package service

import (
	"fmt"

	"github.com/MKhiriev/go-sync-store/models"
)

// ConflictPolicy selects how push conflicts are resolved.
type ConflictPolicy string

const (
	// PolicyServerWins keeps the remote values; the local edit is discarded
	// when the winning record is applied on the next pull.
	PolicyServerWins ConflictPolicy = "server_wins"

	// PolicyClientWins overwrites the remote values with the local edit.
	PolicyClientWins ConflictPolicy = "client_wins"

	// PolicyClientArbitrates delegates the merge to a caller-supplied
	// function.
	PolicyClientArbitrates ConflictPolicy = "client_arbitrates"
)

// ArbitrateFunc merges one conflict. It receives the server record (already
// cloned, carrying the current remote change tag), the client record the
// push attempted, and the common ancestor when the server could reconstruct
// it (nil otherwise).
//
// Identity contract: the function must mutate and return the server record
// it was handed. Returning any other record would push a stale change tag
// and loop the conflict forever, so the engine panics on violation instead
// of silently corrupting the cycle.
type ArbitrateFunc func(server, client, ancestor *models.RemoteRecord) *models.RemoteRecord

type conflictResolver struct {
	policy    ConflictPolicy
	arbitrate ArbitrateFunc
}

func newConflictResolver(policy ConflictPolicy, arbitrate ArbitrateFunc) (conflictResolver, error) {
	switch policy {
	case PolicyServerWins, PolicyClientWins:
		return conflictResolver{policy: policy}, nil
	case PolicyClientArbitrates:
		if arbitrate == nil {
			return conflictResolver{}, ErrMissingArbitrate
		}
		return conflictResolver{policy: policy, arbitrate: arbitrate}, nil
	default:
		return conflictResolver{}, fmt.Errorf("%w: %q", ErrUnknownPolicy, policy)
	}
}

// resolve produces the record to repush for one conflict. The result always
// carries the server's identity and change tag; only the field values differ
// by policy. Repushing on the server's tag is what unsticks the conflict.
func (r conflictResolver) resolve(c models.ConflictRecord) *models.RemoteRecord {
	winner := c.ServerRecord.Clone()

	switch r.policy {
	case PolicyServerWins:
		// Remote values stand; the repush is a content no-op that refreshes
		// the client's system fields.
	case PolicyClientWins:
		for name, value := range c.ClientRecord.Fields {
			winner.SetField(name, value)
		}
		if !c.ClientRecord.ModificationDate.IsZero() {
			winner.ModificationDate = c.ClientRecord.ModificationDate
		}
	case PolicyClientArbitrates:
		resolved := r.arbitrate(winner, c.ClientRecord, c.AncestorRecord)
		if resolved != winner {
			panic("conflict arbitration returned a record other than the server record it was handed")
		}
	}

	return winner
}
