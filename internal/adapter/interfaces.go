// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package adapter provides the transport-layer abstraction over the remote
// record service.
//
// The primary abstraction is [RemoteDatabase], which decouples the sync
// engine from the wire protocol. The package ships an HTTP/REST
// implementation ([NewHTTPRemoteDatabase]) plus a websocket listener for
// zone-change notifications ([NewNotificationListener]). Transport-level
// errors are mapped to the sentinel values in errors.go so callers can use
// [errors.Is] without knowing the protocol.
package adapter

import (
	"context"

	"github.com/MKhiriev/go-sync-store/models"
)

// RemoteDatabase is the abstract remote record store the sync engine talks
// to: zone and subscription provisioning, batched pushes with per-record
// result granularity, the token-cursored change feed, full-record fetches,
// and asset transfer.
type RemoteDatabase interface {
	// SaveZone creates the record zone if it does not exist yet. Creating
	// an existing zone is not an error.
	SaveZone(ctx context.Context, zone models.Zone) error

	// SaveSubscription registers the change-feed subscription for a zone.
	// Re-registering an existing subscription is not an error.
	SaveSubscription(ctx context.Context, sub models.Subscription) error

	// ModifyRecords pushes a batch of upserts and deletes. The batch must
	// not exceed the service's per-request item ceiling; the response
	// carries one result per item, including conflict triples for records
	// whose base version no longer matches the server's.
	ModifyRecords(ctx context.Context, req models.ModifyRecordsRequest) (models.ModifyRecordsResponse, error)

	// FetchZoneChanges returns one page of the zone's change feed starting
	// at the request token. Returns ErrTokenExpired (wrapped) when the
	// cursor is no longer valid and the caller must restart from the zero
	// token.
	FetchZoneChanges(ctx context.Context, req models.FetchZoneChangesRequest) (models.FetchZoneChangesResponse, error)

	// FetchRecords fetches full record bodies for the given identifiers,
	// optionally narrowed to the desired field keys.
	FetchRecords(ctx context.Context, req models.FetchRecordsRequest) (models.FetchRecordsResponse, error)

	// UploadAsset stores an externalised binary payload and returns its
	// reference.
	UploadAsset(ctx context.Context, data []byte) (models.AssetReference, error)

	// FetchAsset retrieves a previously uploaded payload.
	FetchAsset(ctx context.Context, ref models.AssetReference) ([]byte, error)
}
