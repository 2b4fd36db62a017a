package config

import (
	"fmt"
	"time"
)

// ClientApp holds identity settings derived from the shared structured config.
type ClientApp struct {
	// SigningKey is the shared secret used to mint bearer tokens.
	SigningKey string
	// ClientID identifies this device to the record service.
	ClientID string
}

// ClientAdapter holds network settings used by the daemon's transport layer.
type ClientAdapter struct {
	// BaseURL is the record service endpoint.
	BaseURL string
	// RequestTimeout is the default timeout for outbound requests.
	RequestTimeout time.Duration
	// RetryAttempts is the retry count for transient transport failures.
	RetryAttempts uint64
	// RetryBase is the initial backoff delay between retries.
	RetryBase time.Duration
}

// ClientSync holds the sync engine parameters.
type ClientSync struct {
	// ZoneName and ZoneOwner identify the record zone.
	ZoneName  string
	ZoneOwner string
	// SubscriptionID is the change subscription identifier; empty means
	// mint one on first run.
	SubscriptionID string
	// SchemaPath locates the entity schema JSON file.
	SchemaPath string
	// ConflictPolicy selects how push conflicts are resolved.
	ConflictPolicy string
	// BatchLimit, ApplyRetryLimit, and PageLimit bound the engine's
	// batching; zero values mean engine defaults.
	BatchLimit      int
	ApplyRetryLimit int
	PageLimit       int
}

// ClientDB contains local database connection settings for the daemon.
type ClientDB struct {
	// DSN is the SQLite file path of the local store.
	DSN string
}

// ClientStorage groups daemon storage backend settings.
type ClientStorage struct {
	// DB holds local database settings.
	DB ClientDB
}

// ClientWorkers contains background sync trigger settings.
type ClientWorkers struct {
	// SyncInterval defines how often the periodic sync job runs.
	SyncInterval time.Duration
	// SyncOnSave triggers a sync cycle on every local mutation.
	SyncOnSave bool
	// ListenNotifications subscribes to server change pings.
	ListenNotifications bool
}

// ClientConfig is the top-level sync daemon configuration assembled from
// [StructuredConfig].
type ClientConfig struct {
	// App contains identity settings.
	App ClientApp
	// Sync contains the sync engine parameters.
	Sync ClientSync
	// Adapter contains transport addresses and timeouts.
	Adapter ClientAdapter
	// Storage contains local store settings.
	Storage ClientStorage
	// Workers contains background job settings.
	Workers ClientWorkers
}

// GetClientConfig builds and validates the sync daemon's config view from the
// merged structured configuration.
//
// It loads the base config via [GetStructuredConfig], maps only the fields
// relevant to the daemon runtime, and validates the resulting [ClientConfig].
func GetClientConfig() (*ClientConfig, error) {
	cfg, err := GetStructuredConfig()
	if err != nil {
		return nil, fmt.Errorf("error get structured config: %w", err)
	}

	clientCfg := &ClientConfig{
		App: ClientApp{
			SigningKey: cfg.App.SigningKey,
			ClientID:   cfg.App.ClientID,
		},
		Sync: ClientSync{
			ZoneName:        cfg.Sync.ZoneName,
			ZoneOwner:       cfg.Sync.ZoneOwner,
			SubscriptionID:  cfg.Sync.SubscriptionID,
			SchemaPath:      cfg.Sync.SchemaPath,
			ConflictPolicy:  cfg.Sync.ConflictPolicy,
			BatchLimit:      cfg.Sync.BatchLimit,
			ApplyRetryLimit: cfg.Sync.ApplyRetryLimit,
			PageLimit:       cfg.Sync.PageLimit,
		},
		Adapter: ClientAdapter{
			BaseURL:        cfg.Adapter.BaseURL,
			RequestTimeout: cfg.Adapter.RequestTimeout,
			RetryAttempts:  cfg.Adapter.RetryAttempts,
			RetryBase:      cfg.Adapter.RetryBase,
		},
		Storage: ClientStorage{
			DB: ClientDB{
				DSN: cfg.Storage.DB.DSN,
			},
		},
		Workers: ClientWorkers{
			SyncInterval:        cfg.Workers.SyncInterval,
			SyncOnSave:          cfg.Workers.SyncOnSave,
			ListenNotifications: cfg.Workers.ListenNotifications,
		},
	}

	if clientCfg.Sync.ConflictPolicy == "" {
		clientCfg.Sync.ConflictPolicy = "server_wins"
	}

	return clientCfg, clientCfg.validate()
}
