package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func validClientConfig() *ClientConfig {
	return &ClientConfig{
		App: ClientApp{SigningKey: "secret", ClientID: "device-1"},
		Sync: ClientSync{
			ZoneName:       "main",
			ZoneOwner:      "alice",
			SchemaPath:     "/etc/syncd/schema.json",
			ConflictPolicy: "server_wins",
		},
		Adapter: ClientAdapter{
			BaseURL:        "http://localhost:8080",
			RequestTimeout: 15 * time.Second,
		},
		Storage: ClientStorage{DB: ClientDB{DSN: "/var/lib/syncd/store.db"}},
		Workers: ClientWorkers{SyncInterval: 5 * time.Minute},
	}
}

func TestClientConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(cfg *ClientConfig)
		wantErr error
	}{
		{
			name:   "valid config",
			mutate: func(cfg *ClientConfig) {},
		},
		{
			name:    "empty DSN",
			mutate:  func(cfg *ClientConfig) { cfg.Storage.DB.DSN = "" },
			wantErr: ErrInvalidStorageConfigs,
		},
		{
			name:    "in-memory DSN",
			mutate:  func(cfg *ClientConfig) { cfg.Storage.DB.DSN = "file::memory:?cache=shared" },
			wantErr: ErrInvalidStorageConfigs,
		},
		{
			name:    "missing base URL",
			mutate:  func(cfg *ClientConfig) { cfg.Adapter.BaseURL = "" },
			wantErr: ErrInvalidAdapterConfigs,
		},
		{
			name:    "zero request timeout",
			mutate:  func(cfg *ClientConfig) { cfg.Adapter.RequestTimeout = 0 },
			wantErr: ErrInvalidAdapterConfigs,
		},
		{
			name:    "zero sync interval",
			mutate:  func(cfg *ClientConfig) { cfg.Workers.SyncInterval = 0 },
			wantErr: ErrInvalidWorkerConfigs,
		},
		{
			name:    "missing signing key",
			mutate:  func(cfg *ClientConfig) { cfg.App.SigningKey = "" },
			wantErr: ErrInvalidAppConfigs,
		},
		{
			name:    "missing client id",
			mutate:  func(cfg *ClientConfig) { cfg.App.ClientID = "" },
			wantErr: ErrInvalidAppConfigs,
		},
		{
			name:    "missing zone name",
			mutate:  func(cfg *ClientConfig) { cfg.Sync.ZoneName = "" },
			wantErr: ErrInvalidSyncConfigs,
		},
		{
			name:    "missing zone owner",
			mutate:  func(cfg *ClientConfig) { cfg.Sync.ZoneOwner = "" },
			wantErr: ErrInvalidSyncConfigs,
		},
		{
			name:    "missing schema path",
			mutate:  func(cfg *ClientConfig) { cfg.Sync.SchemaPath = "" },
			wantErr: ErrInvalidSyncConfigs,
		},
		{
			name:    "unknown conflict policy",
			mutate:  func(cfg *ClientConfig) { cfg.Sync.ConflictPolicy = "coin_toss" },
			wantErr: ErrInvalidSyncConfigs,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validClientConfig()
			tt.mutate(cfg)

			err := cfg.validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestServerConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     ServerConfig
		wantErr error
	}{
		{
			name: "valid config",
			cfg: ServerConfig{
				HTTPAddress: "localhost:8080",
				SigningKey:  "secret",
				DSN:         "postgres://localhost/records",
			},
		},
		{
			name: "missing DSN",
			cfg: ServerConfig{
				HTTPAddress: "localhost:8080",
				SigningKey:  "secret",
			},
			wantErr: ErrInvalidStorageConfigs,
		},
		{
			name: "missing signing key",
			cfg: ServerConfig{
				HTTPAddress: "localhost:8080",
				DSN:         "postgres://localhost/records",
			},
			wantErr: ErrInvalidAppConfigs,
		},
		{
			name: "missing address",
			cfg: ServerConfig{
				SigningKey: "secret",
				DSN:        "postgres://localhost/records",
			},
			wantErr: ErrInvalidServerConfigs,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}
