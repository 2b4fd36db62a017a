package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseJSON_Success(t *testing.T) {
	// Arrange
	dir := t.TempDir()
	p := filepath.Join(dir, "config.json")

	// Durations in JSON must be strings parseable by time.ParseDuration.
	jsonBody := `{
		"app": {
			"signing_key": "shared_secret",
			"client_id": "device-1",
			"version": "1.2.3"
		},
		"sync": {
			"zone_name": "main",
			"zone_owner": "alice",
			"subscription_id": "sub-1",
			"schema_path": "/etc/syncd/schema.json",
			"conflict_policy": "client_wins",
			"batch_limit": 200,
			"apply_retry_limit": 3,
			"page_limit": 50
		},
		"server": {
			"http_address": "localhost:8080",
			"request_timeout": "30s"
		},
		"adapter": {
			"base_url": "http://localhost:8080",
			"request_timeout": "15s",
			"retry_attempts": 4,
			"retry_base": "250ms"
		},
		"workers": {
			"sync_interval": "5m",
			"sync_on_save": true,
			"listen_notifications": true
		},
		"storage": {
			"db": { "dsn": "/var/lib/syncd/store.db" }
		}
	}`

	require.NoError(t, os.WriteFile(p, []byte(jsonBody), 0o600))

	// Act
	cfg, err := parseJSON(p)

	// Assert
	require.NoError(t, err)
	require.NotNil(t, cfg)

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

func TestParseJSON_FileNotFound(t *testing.T) {
	// Act
	cfg, err := parseJSON("definitely-does-not-exist.json")

	// Assert
	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "error reading a json file")
}

func TestParseJSON_InvalidJSON(t *testing.T) {
	// Arrange
	dir := t.TempDir()
	p := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(p, []byte(`{ this is not json }`), 0o600))

	// Act
	cfg, err := parseJSON(p)

	// Assert
	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "error decoding json configs")
}

func TestParseJSON_InvalidDuration(t *testing.T) {
	// Arrange
	dir := t.TempDir()
	p := filepath.Join(dir, "bad_duration.json")

	// sync_interval should be a duration string; make it invalid.
	jsonBody := `{
		"workers": { "sync_interval": "not-a-duration" }
	}`
	require.NoError(t, os.WriteFile(p, []byte(jsonBody), 0o600))

	// Act
	cfg, err := parseJSON(p)

	// Assert
	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "error decoding json configs")
}

func TestParseJSON_EmptyObject(t *testing.T) {
	// Arrange
	dir := t.TempDir()
	p := filepath.Join(dir, "empty.json")
	require.NoError(t, os.WriteFile(p, []byte(`{}`), 0o600))

	// Act
	cfg, err := parseJSON(p)

	// Assert
	require.NoError(t, err)
	require.NotNil(t, cfg)

	// With non-pointer nested structs, all fields are zero values.
	assert.Equal(t, StructuredConfig{}, *cfg)
}

func TestParseJSON_PartialObject(t *testing.T) {
	// Arrange
	dir := t.TempDir()
	p := filepath.Join(dir, "partial.json")

	jsonBody := `{
		"server": { "http_address": "127.0.0.1:8000" }
	}`
	require.NoError(t, os.WriteFile(p, []byte(jsonBody), 0o600))

	// Act
	cfg, err := parseJSON(p)

	// Assert
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "127.0.0.1:8000", cfg.Server.HTTPAddress)
	assert.Zero(t, cfg.Server.RequestTimeout)

	// Others remain zero
	assert.Equal(t, App{}, cfg.App)
	assert.Equal(t, Sync{}, cfg.Sync)
	assert.Equal(t, Adapter{}, cfg.Adapter)
	assert.Equal(t, Storage{}, cfg.Storage)
}
