// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// parseEnv fills cfg from environment variables via caarlos0/env. Each
// section of [StructuredConfig] carries an `envPrefix` tag, so the conflict
// policy comes from SYNC_CONFLICT_POLICY, the listen address from
// SERVER_ADDRESS, the local DSN from STORAGE_DB_DATABASE_URI, and so on;
// only the JSON file path (CONFIG) is unprefixed.
//
// Values set here may later be overridden by flags and topped up from the
// JSON file; see newConfigBuilder for the precedence order.
func parseEnv(cfg any) error {
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("parse env configs: %w", err)
	}
	return nil
}
