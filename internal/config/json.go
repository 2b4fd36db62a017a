package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

type StructuredJSONConfig struct {
	App struct {
		SigningKey string `json:"signing_key"`
		ClientID   string `json:"client_id"`
		Version    string `json:"version"`
	} `json:"app,omitempty"`

	Sync struct {
		ZoneName        string `json:"zone_name"`
		ZoneOwner       string `json:"zone_owner"`
		SubscriptionID  string `json:"subscription_id"`
		SchemaPath      string `json:"schema_path"`
		ConflictPolicy  string `json:"conflict_policy"`
		BatchLimit      int    `json:"batch_limit"`
		ApplyRetryLimit int    `json:"apply_retry_limit"`
		PageLimit       int    `json:"page_limit"`
	} `json:"sync,omitempty"`

	Storage struct {
		DB struct {
			DSN string `json:"dsn"`
		} `json:"db,omitempty"`
	} `json:"storage,omitempty"`

	Server struct {
		HTTPAddress    string   `json:"http_address"`
		RequestTimeout Duration `json:"request_timeout"`
	} `json:"server,omitempty"`

	Adapter struct {
		BaseURL        string   `json:"base_url"`
		RequestTimeout Duration `json:"request_timeout"`
		RetryAttempts  uint64   `json:"retry_attempts"`
		RetryBase      Duration `json:"retry_base"`
	} `json:"adapter,omitempty"`

	Workers struct {
		SyncInterval        Duration `json:"sync_interval"`
		SyncOnSave          bool     `json:"sync_on_save"`
		ListenNotifications bool     `json:"listen_notifications"`
	} `json:"workers,omitempty"`
}

func parseJSON(jsonFilePath string) (*StructuredConfig, error) {
	jsonFile, err := os.Open(jsonFilePath)
	if err != nil {
		return nil, fmt.Errorf("error reading a json file: %w", err)
	}
	defer jsonFile.Close()

	var jsonCfg StructuredJSONConfig
	if err := json.NewDecoder(jsonFile).Decode(&jsonCfg); err != nil {
		return nil, fmt.Errorf("error decoding json configs: %w", err)
	}

	cfg := &StructuredConfig{
		App: App{
			SigningKey: jsonCfg.App.SigningKey,
			ClientID:   jsonCfg.App.ClientID,
			Version:    jsonCfg.App.Version,
		},
		Sync: Sync{
			ZoneName:        jsonCfg.Sync.ZoneName,
			ZoneOwner:       jsonCfg.Sync.ZoneOwner,
			SubscriptionID:  jsonCfg.Sync.SubscriptionID,
			SchemaPath:      jsonCfg.Sync.SchemaPath,
			ConflictPolicy:  jsonCfg.Sync.ConflictPolicy,
			BatchLimit:      jsonCfg.Sync.BatchLimit,
			ApplyRetryLimit: jsonCfg.Sync.ApplyRetryLimit,
			PageLimit:       jsonCfg.Sync.PageLimit,
		},
		Storage: Storage{
			DB: DB{
				DSN: jsonCfg.Storage.DB.DSN,
			},
		},
		Server: Server{
			HTTPAddress:    jsonCfg.Server.HTTPAddress,
			RequestTimeout: time.Duration(jsonCfg.Server.RequestTimeout),
		},
		Adapter: Adapter{
			BaseURL:        jsonCfg.Adapter.BaseURL,
			RequestTimeout: time.Duration(jsonCfg.Adapter.RequestTimeout),
			RetryAttempts:  jsonCfg.Adapter.RetryAttempts,
			RetryBase:      time.Duration(jsonCfg.Adapter.RetryBase),
		},
		Workers: Workers{
			SyncInterval:        time.Duration(jsonCfg.Workers.SyncInterval),
			SyncOnSave:          jsonCfg.Workers.SyncOnSave,
			ListenNotifications: jsonCfg.Workers.ListenNotifications,
		},
		JSONFilePath: "",
	}

	return cfg, nil
}

// Duration is a wrapper around time.Duration that supports JSON unmarshaling from strings like "1h", "30s"
type Duration time.Duration

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}

	switch value := v.(type) {
	case float64:
		*d = Duration(time.Duration(value))
		return nil
	case string:
		tmp, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		*d = Duration(tmp)
		return nil
	default:
		return json.Unmarshal(b, (*time.Duration)(d))
	}
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}
