// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package config

import "strings"

// validate checks that the final merged [StructuredConfig] satisfies the
// invariants shared by both binaries. Per-binary checks live on the
// [ClientConfig] and [ServerConfig] views.
func (cfg *StructuredConfig) validate() error {
	return nil
}

func (cfg *ClientConfig) validate() error {
	if cfg.Storage.DB.DSN == "" || strings.Contains(cfg.Storage.DB.DSN, "memory") {
		return ErrInvalidStorageConfigs
	}

	if cfg.Adapter.BaseURL == "" || cfg.Adapter.RequestTimeout == 0 {
		return ErrInvalidAdapterConfigs
	}

	if cfg.Workers.SyncInterval == 0 {
		return ErrInvalidWorkerConfigs
	}

	if cfg.App.SigningKey == "" || cfg.App.ClientID == "" {
		return ErrInvalidAppConfigs
	}

	if cfg.Sync.ZoneName == "" || cfg.Sync.ZoneOwner == "" || cfg.Sync.SchemaPath == "" {
		return ErrInvalidSyncConfigs
	}

	switch cfg.Sync.ConflictPolicy {
	case "server_wins", "client_wins", "client_arbitrates":
	default:
		return ErrInvalidSyncConfigs
	}

	return nil
}

func (cfg *ServerConfig) validate() error {
	if cfg.DSN == "" {
		return ErrInvalidStorageConfigs
	}

	if cfg.SigningKey == "" {
		return ErrInvalidAppConfigs
	}

	if cfg.HTTPAddress == "" {
		return ErrInvalidServerConfigs
	}

	return nil
}
