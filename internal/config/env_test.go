// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEnv_AllFields(t *testing.T) {
	// Arrange
	envVars := map[string]string{
		"CONFIG": "/path/to/config.json",

		"APP_SIGNING_KEY": "shared_secret",
		"APP_CLIENT_ID":   "device-1",
		"APP_VERSION":     "1.2.3",

		"SYNC_ZONE_NAME":         "main",
		"SYNC_ZONE_OWNER":        "alice",
		"SYNC_SUBSCRIPTION_ID":   "sub-1",
		"SYNC_SCHEMA_PATH":       "/etc/syncd/schema.json",
		"SYNC_CONFLICT_POLICY":   "client_wins",
		"SYNC_BATCH_LIMIT":       "200",
		"SYNC_APPLY_RETRY_LIMIT": "3",
		"SYNC_PAGE_LIMIT":        "50",

		"SERVER_ADDRESS":         "localhost:8080",
		"SERVER_REQUEST_TIMEOUT": "30s",

		"ADAPTER_BASE_URL":        "http://localhost:8080",
		"ADAPTER_REQUEST_TIMEOUT": "15s",
		"ADAPTER_RETRY_ATTEMPTS":  "4",
		"ADAPTER_RETRY_BASE":      "250ms",

		"WORKERS_SYNC_INTERVAL":        "5m",
		"WORKERS_SYNC_ON_SAVE":         "true",
		"WORKERS_LISTEN_NOTIFICATIONS": "true",

		// Storage has a nested prefix: STORAGE_ + DB_
		"STORAGE_DB_DATABASE_URI": "/var/lib/syncd/store.db",
	}
	setEnvVars(t, envVars)

	// Act
	cfg := &StructuredConfig{}
	err := parseEnv(cfg)

	// Assert
	require.NoError(t, err)

	assert.Equal(t, "/path/to/config.json", cfg.JSONFilePath)

	assert.Equal(t, "shared_secret", cfg.App.SigningKey)
	assert.Equal(t, "device-1", cfg.App.ClientID)
	assert.Equal(t, "1.2.3", cfg.App.Version)

	assert.Equal(t, "main", cfg.Sync.ZoneName)
	assert.Equal(t, "alice", cfg.Sync.ZoneOwner)
	assert.Equal(t, "sub-1", cfg.Sync.SubscriptionID)
	assert.Equal(t, "/etc/syncd/schema.json", cfg.Sync.SchemaPath)
	assert.Equal(t, "client_wins", cfg.Sync.ConflictPolicy)
	assert.Equal(t, 200, cfg.Sync.BatchLimit)
	assert.Equal(t, 3, cfg.Sync.ApplyRetryLimit)
	assert.Equal(t, 50, cfg.Sync.PageLimit)

	assert.Equal(t, "localhost:8080", cfg.Server.HTTPAddress)
	assert.Equal(t, 30*time.Second, cfg.Server.RequestTimeout)

	assert.Equal(t, "http://localhost:8080", cfg.Adapter.BaseURL)
	assert.Equal(t, 15*time.Second, cfg.Adapter.RequestTimeout)
	assert.Equal(t, uint64(4), cfg.Adapter.RetryAttempts)
	assert.Equal(t, 250*time.Millisecond, cfg.Adapter.RetryBase)

	assert.Equal(t, 5*time.Minute, cfg.Workers.SyncInterval)
	assert.True(t, cfg.Workers.SyncOnSave)
	assert.True(t, cfg.Workers.ListenNotifications)

	assert.Equal(t, "/var/lib/syncd/store.db", cfg.Storage.DB.DSN)
}

func TestParseEnv_PartialFields(t *testing.T) {
	// Arrange
	envVars := map[string]string{
		"APP_SIGNING_KEY": "shared_secret",
		"SERVER_ADDRESS":  "localhost:8080",
	}
	setEnvVars(t, envVars)

	// Act
	cfg := &StructuredConfig{}
	err := parseEnv(cfg)

	// Assert
	require.NoError(t, err)

	// App partially filled
	assert.Equal(t, "shared_secret", cfg.App.SigningKey)
	assert.Empty(t, cfg.App.ClientID)
	assert.Empty(t, cfg.App.Version)

	// Server partially filled
	assert.Equal(t, "localhost:8080", cfg.Server.HTTPAddress)
	assert.Zero(t, cfg.Server.RequestTimeout)

	// Others untouched
	assert.Equal(t, Sync{}, cfg.Sync)
	assert.Equal(t, Adapter{}, cfg.Adapter)
	assert.Equal(t, Workers{}, cfg.Workers)
	assert.Empty(t, cfg.Storage.DB.DSN)
	assert.Empty(t, cfg.JSONFilePath)
}

func TestParseEnv_EmptyEnv(t *testing.T) {
	// Arrange
	clearEnvVars(t)

	// Act
	cfg := &StructuredConfig{}
	err := parseEnv(cfg)

	// Assert
	require.NoError(t, err)

	// In this version all nested fields are non-pointer values,
	// so "empty" state is represented by zero values.
	assert.Equal(t, "", cfg.JSONFilePath)

	assert.Equal(t, App{}, cfg.App)
	assert.Equal(t, Sync{}, cfg.Sync)
	assert.Equal(t, Server{}, cfg.Server)
	assert.Equal(t, Adapter{}, cfg.Adapter)
	assert.Equal(t, Storage{}, cfg.Storage)
}

func TestParseEnv_OnlyStorageDB(t *testing.T) {
	// Arrange
	envVars := map[string]string{
		"STORAGE_DB_DATABASE_URI": "postgres://localhost/records",
	}
	setEnvVars(t, envVars)

	// Act
	cfg := &StructuredConfig{}
	err := parseEnv(cfg)

	// Assert
	require.NoError(t, err)

	assert.Equal(t, "postgres://localhost/records", cfg.Storage.DB.DSN)
	assert.Equal(t, App{}, cfg.App)
}

func TestParseEnv_InvalidDuration(t *testing.T) {
	// Arrange
	envVars := map[string]string{
		"WORKERS_SYNC_INTERVAL": "invalid_duration",
	}
	setEnvVars(t, envVars)

	// Act
	cfg := &StructuredConfig{}
	err := parseEnv(cfg)

	// Assert
	require.Error(t, err)
	// Error wording may vary depending on parseEnv internals; assert loosely.
	assert.Contains(t, err.Error(), "env")
}

func TestParseEnv_DurationFormats(t *testing.T) {
	tests := []struct {
		name     string
		envValue string
		expected time.Duration
	}{
		{"hours", "2h", 2 * time.Hour},
		{"minutes", "45m", 45 * time.Minute},
		{"seconds", "30s", 30 * time.Second},
		{"combined", "1h30m", 90 * time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			envVars := map[string]string{
				"SERVER_REQUEST_TIMEOUT": tt.envValue,
			}
			setEnvVars(t, envVars)

			// Act
			cfg := &StructuredConfig{}
			err := parseEnv(cfg)

			// Assert
			require.NoError(t, err)
			assert.Equal(t, tt.expected, cfg.Server.RequestTimeout)
		})
	}
}

// Helpers

func setEnvVars(t *testing.T, vars map[string]string) {
	t.Helper()
	clearEnvVars(t)
	for k, v := range vars {
		require.NoError(t, os.Setenv(k, v))
		t.Cleanup(func() { _ = os.Unsetenv(k) })
	}
}

func clearEnvVars(t *testing.T) {
	t.Helper()
	keys := []string{
		"CONFIG",

		"APP_SIGNING_KEY",
		"APP_CLIENT_ID",
		"APP_VERSION",

		"SYNC_ZONE_NAME",
		"SYNC_ZONE_OWNER",
		"SYNC_SUBSCRIPTION_ID",
		"SYNC_SCHEMA_PATH",
		"SYNC_CONFLICT_POLICY",
		"SYNC_BATCH_LIMIT",
		"SYNC_APPLY_RETRY_LIMIT",
		"SYNC_PAGE_LIMIT",

		"SERVER_ADDRESS",
		"SERVER_REQUEST_TIMEOUT",

		"ADAPTER_BASE_URL",
		"ADAPTER_REQUEST_TIMEOUT",
		"ADAPTER_RETRY_ATTEMPTS",
		"ADAPTER_RETRY_BASE",

		"WORKERS_SYNC_INTERVAL",
		"WORKERS_SYNC_ON_SAVE",
		"WORKERS_LISTEN_NOTIFICATIONS",

		"STORAGE_DB_DATABASE_URI",
	}
	for _, k := range keys {
		_ = os.Unsetenv(k)
	}
}
