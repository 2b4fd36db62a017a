package config

import (
	"fmt"
	"time"
)

// ServerConfig is the record service configuration assembled from
// [StructuredConfig].
type ServerConfig struct {
	// HTTPAddress is the TCP address the HTTP server listens on.
	HTTPAddress string
	// RequestTimeout is the per-request deadline for inbound requests.
	RequestTimeout time.Duration
	// SigningKey is the shared secret used to verify bearer tokens.
	SigningKey string
	// DSN is the PostgreSQL connection string.
	DSN string
}

// GetServerConfig builds and validates the record service's config view from
// the merged structured configuration.
func GetServerConfig() (*ServerConfig, error) {
	cfg, err := GetStructuredConfig()
	if err != nil {
		return nil, fmt.Errorf("error get structured config: %w", err)
	}

	serverCfg := &ServerConfig{
		HTTPAddress:    cfg.Server.HTTPAddress,
		RequestTimeout: cfg.Server.RequestTimeout,
		SigningKey:     cfg.App.SigningKey,
		DSN:            cfg.Storage.DB.DSN,
	}

	if serverCfg.HTTPAddress == "" {
		serverCfg.HTTPAddress = "localhost:8080"
	}
	if serverCfg.RequestTimeout == 0 {
		serverCfg.RequestTimeout = 30 * time.Second
	}

	return serverCfg, serverCfg.validate()
}
