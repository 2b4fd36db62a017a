package config

import (
	"errors"
	"flag"
	"net"
	"strconv"
	"strings"
	"time"
)

// NetAddress holds structured network address data for host and port.
// It implements the flag.Value interface.
type NetAddress struct {
	Host string
	Port int
}

// ParseFlags parses all configuration flags.
//
// Flags:
//
//	-a server address in format [host]:[port]
//	-d database DSN (SQLite path for the daemon, PostgreSQL URI for the service)
//	-base-url record service endpoint
//	-c/-config json file path with configs
//	-signing-key shared token signing secret
//	-client-id device identifier
//	-zone record zone name
//	-zone-owner record zone owner
//	-subscription-id change subscription identifier
//	-schema entity schema JSON file path
//	-conflict-policy conflict policy (server_wins, client_wins, client_arbitrates)
//	-sync-interval periodic sync interval (e.g., "30s", "5m")
//	-request-timeout request timeout (e.g., "30s", "1m")
func ParseFlags() *StructuredConfig {
	var serverAddress NetAddress
	var databaseDSN string
	var baseURL string
	var jsonConfigPath string
	var signingKey string
	var clientID string
	var zoneName string
	var zoneOwner string
	var subscriptionID string
	var schemaPath string
	var conflictPolicy string
	var syncInterval time.Duration
	var requestTimeout time.Duration

	flag.Var(&serverAddress, "a", "Net address host:port")
	flag.StringVar(&databaseDSN, "d", "", "Database DSN")
	flag.StringVar(&baseURL, "base-url", "", "Record service endpoint")
	flag.StringVar(&jsonConfigPath, "c", "", "JSON config file path")
	flag.StringVar(&jsonConfigPath, "config", "", "JSON config file path (alias)")
	flag.StringVar(&signingKey, "signing-key", "", "Token signing key")
	flag.StringVar(&clientID, "client-id", "", "Device identifier")
	flag.StringVar(&zoneName, "zone", "", "Record zone name")
	flag.StringVar(&zoneOwner, "zone-owner", "", "Record zone owner")
	flag.StringVar(&subscriptionID, "subscription-id", "", "Change subscription identifier")
	flag.StringVar(&schemaPath, "schema", "", "Entity schema JSON file path")
	flag.StringVar(&conflictPolicy, "conflict-policy", "", "Conflict policy (server_wins, client_wins, client_arbitrates)")
	flag.DurationVar(&syncInterval, "sync-interval", 0, "Periodic sync interval (e.g., 30s, 5m)")
	flag.DurationVar(&requestTimeout, "request-timeout", 0, "Request timeout (e.g., 30s, 1m)")

	flag.Parse()

	return &StructuredConfig{
		App: App{
			SigningKey: signingKey,
			ClientID:   clientID,
		},
		Sync: Sync{
			ZoneName:       zoneName,
			ZoneOwner:      zoneOwner,
			SubscriptionID: subscriptionID,
			SchemaPath:     schemaPath,
			ConflictPolicy: conflictPolicy,
		},
		Storage: Storage{
			DB: DB{
				DSN: databaseDSN,
			},
		},
		Server: Server{
			HTTPAddress:    serverAddress.String(),
			RequestTimeout: requestTimeout,
		},
		Adapter: Adapter{
			BaseURL:        baseURL,
			RequestTimeout: requestTimeout,
		},
		Workers: Workers{
			SyncInterval: syncInterval,
		},
		JSONFilePath: jsonConfigPath,
	}
}

// String returns a canonical host:port string for a NetAddress.
// If neither Host nor Port are set, it returns the default server address.
func (a *NetAddress) String() string {
	if a.Host == "" && a.Port == 0 {
		return ""
	}

	return a.Host + ":" + strconv.Itoa(a.Port)
}

// Set parses the input string of form host:port and populates the NetAddress.
// It validates the port range, checks IP correctness unless host is "localhost",
// and returns an error if the format or values are invalid.
func (a *NetAddress) Set(s string) error {
	hostAndPort := strings.Split(s, ":")
	if len(hostAndPort) != 2 {
		return errors.New("need address in a form `host:port`")
	}

	host := hostAndPort[0]
	port, err := strconv.Atoi(hostAndPort[1])
	if err != nil {
		return err
	}

	if port < 1 {
		return errors.New("port number is a positive integer")
	}

	if host != "localhost" {
		ip := net.ParseIP(hostAndPort[0])
		if ip == nil {
			return errors.New("incorrect IP-address provided")
		}
	}

	a.Host = host
	a.Port = port
	return nil
}
