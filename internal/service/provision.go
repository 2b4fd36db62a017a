// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package service

import (
	"context"
	"fmt"
	"time"

	"github.com/MKhiriev/go-sync-store/internal/adapter"
	"github.com/MKhiriev/go-sync-store/internal/logger"
	"github.com/MKhiriev/go-sync-store/internal/store"
	"github.com/MKhiriev/go-sync-store/models"
	"github.com/google/uuid"
)

const (
	flagZoneCreated         = "zone_created"
	flagSubscriptionCreated = "subscription_created"

	// Provisioning calls are the only remote calls with their own deadline:
	// they run once per installation and must not hang a first sync forever.
	// Regular cycle calls inherit the caller's context instead.
	provisionTimeout = 10 * time.Second
)

// Provisioner creates the record zone and the change-feed subscription once
// per installation. Success is recorded in durable flags so subsequent sync
// cycles skip the remote round-trips entirely.
type Provisioner struct {
	state  store.SyncStateRepository
	remote adapter.RemoteDatabase

	zoneID         models.ZoneID
	subscriptionID string

	logger *logger.Logger
}

// NewProvisioner builds a provisioner for the given zone. An empty
// subscriptionID gets a minted one; the identifier only needs to be stable
// within the server, not across reinstalls.
func NewProvisioner(state store.SyncStateRepository, remote adapter.RemoteDatabase, zoneID models.ZoneID, subscriptionID string, log *logger.Logger) *Provisioner {
	if subscriptionID == "" {
		subscriptionID = uuid.NewString()
	}
	return &Provisioner{
		state:          state,
		remote:         remote,
		zoneID:         zoneID,
		subscriptionID: subscriptionID,
		logger:         log,
	}
}

// Ensure provisions whatever is still missing. It is idempotent and cheap
// after the first success.
func (p *Provisioner) Ensure(ctx context.Context) error {
	if err := p.ensureZone(ctx); err != nil {
		return err
	}
	return p.ensureSubscription(ctx)
}

func (p *Provisioner) ensureZone(ctx context.Context) error {
	created, err := p.state.Flag(ctx, flagZoneCreated)
	if err != nil {
		return fmt.Errorf("read zone flag: %w", err)
	}
	if created {
		return nil
	}

	callCtx, cancel := context.WithTimeout(ctx, provisionTimeout)
	defer cancel()

	if err = p.remote.SaveZone(callCtx, models.Zone{ZoneID: p.zoneID}); err != nil {
		return fmt.Errorf("create zone %s: %w", p.zoneID, err)
	}
	if err = p.state.SetFlag(ctx, flagZoneCreated); err != nil {
		return fmt.Errorf("persist zone flag: %w", err)
	}

	p.logger.Info().Str("zone", p.zoneID.String()).Msg("record zone provisioned")
	return nil
}

func (p *Provisioner) ensureSubscription(ctx context.Context) error {
	created, err := p.state.Flag(ctx, flagSubscriptionCreated)
	if err != nil {
		return fmt.Errorf("read subscription flag: %w", err)
	}
	if created {
		return nil
	}

	callCtx, cancel := context.WithTimeout(ctx, provisionTimeout)
	defer cancel()

	sub := models.Subscription{SubscriptionID: p.subscriptionID, ZoneID: p.zoneID}
	if err = p.remote.SaveSubscription(callCtx, sub); err != nil {
		return fmt.Errorf("create subscription %s: %w", p.subscriptionID, err)
	}
	if err = p.state.SetFlag(ctx, flagSubscriptionCreated); err != nil {
		return fmt.Errorf("persist subscription flag: %w", err)
	}

	p.logger.Info().Str("subscription", p.subscriptionID).Msg("change-feed subscription provisioned")
	return nil
}
