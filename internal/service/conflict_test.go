// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package service

import (
	"testing"

	"github.com/MKhiriev/go-sync-store/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func conflictFixture() models.ConflictRecord {
	id := models.NewRecordID("n1", models.ZoneID{ZoneName: "main"})

	server := models.NewRemoteRecord("Note", id)
	server.ChangeTag = "tag-2"
	server.SetField("title", models.StringField("server title"))
	server.SetField("body", models.StringField("server body"))

	client := models.NewRemoteRecord("Note", id)
	client.ChangeTag = "tag-1"
	client.SetField("title", models.StringField("client title"))

	ancestor := models.NewRemoteRecord("Note", id)
	ancestor.ChangeTag = "tag-1"
	ancestor.SetField("title", models.StringField("old title"))

	return models.ConflictRecord{ServerRecord: server, ClientRecord: client, AncestorRecord: ancestor}
}

func TestResolve_ServerWins(t *testing.T) {
	r, err := newConflictResolver(PolicyServerWins, nil)
	require.NoError(t, err)

	c := conflictFixture()
	winner := r.resolve(c)

	assert.Equal(t, "tag-2", winner.ChangeTag)
	assert.Equal(t, "server title", winner.Fields["title"].S)
	assert.Equal(t, "server body", winner.Fields["body"].S)

	// The original server record is untouched.
	assert.NotSame(t, c.ServerRecord, winner)
}

func TestResolve_ClientWins(t *testing.T) {
	r, err := newConflictResolver(PolicyClientWins, nil)
	require.NoError(t, err)

	winner := r.resolve(conflictFixture())

	// Client fields overwrite, server identity and tag stay.
	assert.Equal(t, "tag-2", winner.ChangeTag)
	assert.Equal(t, "client title", winner.Fields["title"].S)

	// Server-only fields the client never touched survive.
	assert.Equal(t, "server body", winner.Fields["body"].S)
}

func TestResolve_ClientArbitrates(t *testing.T) {
	r, err := newConflictResolver(PolicyClientArbitrates, func(server, client, ancestor *models.RemoteRecord) *models.RemoteRecord {
		require.NotNil(t, ancestor)
		server.SetField("title", models.StringField("merged title"))
		return server
	})
	require.NoError(t, err)

	winner := r.resolve(conflictFixture())

	assert.Equal(t, "tag-2", winner.ChangeTag)
	assert.Equal(t, "merged title", winner.Fields["title"].S)
}

func TestResolve_ClientArbitratesIdentityViolationPanics(t *testing.T) {
	r, err := newConflictResolver(PolicyClientArbitrates, func(server, client, ancestor *models.RemoteRecord) *models.RemoteRecord {
		return client
	})
	require.NoError(t, err)

	assert.Panics(t, func() { r.resolve(conflictFixture()) })
}

func TestNewConflictResolver_Validation(t *testing.T) {
	_, err := newConflictResolver(PolicyClientArbitrates, nil)
	assert.ErrorIs(t, err, ErrMissingArbitrate)

	_, err = newConflictResolver(ConflictPolicy("newest_wins"), nil)
	assert.ErrorIs(t, err, ErrUnknownPolicy)
}
