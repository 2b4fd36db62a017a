package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/MKhiriev/go-sync-store/internal/adapter"
	"github.com/MKhiriev/go-sync-store/internal/config"
	"github.com/MKhiriev/go-sync-store/internal/logger"
	"github.com/MKhiriev/go-sync-store/internal/mapper"
	"github.com/MKhiriev/go-sync-store/internal/service"
	"github.com/MKhiriev/go-sync-store/internal/store"
	"github.com/MKhiriev/go-sync-store/internal/workers"
	"github.com/MKhiriev/go-sync-store/models"
)

var (
	buildVersion string
	buildDate    string
	buildCommit  string
)

func main() {
	printBuildInfo()

	log := logger.NewLogger("syncd")
	cfg, err := config.GetClientConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("error getting configs")
	}

	schema, err := models.LoadSchema(cfg.Sync.SchemaPath)
	if err != nil {
		log.Fatal().Err(err).Msg("error loading entity schema")
	}

	db, err := store.Open(cfg.Storage.DB.DSN)
	if err != nil {
		log.Fatal().Err(err).Msg("error opening local store")
	}
	defer db.Close()

	objects := store.NewObjectRepository(db, schema, log)
	ledger := store.NewLedgerRepository(db, log)
	state := store.NewSyncStateRepository(db)

	remoteCfg := adapter.RemoteConfig{
		BaseURL:       cfg.Adapter.BaseURL,
		SigningKey:    cfg.App.SigningKey,
		ClientID:      cfg.App.ClientID,
		Timeout:       cfg.Adapter.RequestTimeout,
		RetryAttempts: cfg.Adapter.RetryAttempts,
		RetryBase:     cfg.Adapter.RetryBase,
	}
	remote, err := adapter.NewHTTPRemoteDatabase(remoteCfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("error creating remote adapter")
	}

	zoneID := models.ZoneID{ZoneName: cfg.Sync.ZoneName, OwnerName: cfg.Sync.ZoneOwner}
	recordMapper := mapper.New(schema, zoneID, objects, remote, log)
	provisioner := service.NewProvisioner(state, remote, zoneID, cfg.Sync.SubscriptionID, log)

	engine, err := service.NewEngine(objects, ledger, state, remote, recordMapper, provisioner, schema, service.Config{
		ZoneID:          zoneID,
		BatchLimit:      cfg.Sync.BatchLimit,
		ApplyRetryLimit: cfg.Sync.ApplyRetryLimit,
		PageLimit:       cfg.Sync.PageLimit,
		Policy:          service.ConflictPolicy(cfg.Sync.ConflictPolicy),
	}, log)
	if err != nil {
		log.Fatal().Err(err).Msg("error creating sync engine")
	}

	trigger := func() {
		if _, syncErr := engine.Sync(context.Background()); syncErr != nil &&
			!errors.Is(syncErr, service.ErrSyncInFlight) {
			log.Error().Err(syncErr).Msg("sync cycle failed")
		}
	}

	ws := []workers.Worker{
		workers.NewIntervalSyncJob(cfg.Workers.SyncInterval, trigger, log),
	}
	if cfg.Workers.SyncOnSave {
		ws = append(ws, workers.NewLocalChangeListener(db.Subscribe(), trigger, log))
	}
	if cfg.Workers.ListenNotifications {
		listener, listenErr := adapter.NewNotificationListener(remoteCfg, log)
		if listenErr != nil {
			log.Fatal().Err(listenErr).Msg("error creating notification listener")
		}
		ws = append(ws, workers.NewNotificationSyncWorker(listener, zoneID, trigger, log))
	}

	background := workers.NewWorkers(ws...)
	background.Run()
	defer background.Stop()

	// First cycle runs immediately instead of waiting out the interval.
	go trigger()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info().Str("signal", sig.String()).Msg("shutting down")
}

func printBuildInfo() {
	if buildVersion == "" {
		buildVersion = "N/A"
	}
	if buildDate == "" {
		buildDate = "N/A"
	}
	if buildCommit == "" {
		buildCommit = "N/A"
	}

	fmt.Printf("Build version: %s\n", buildVersion)
	fmt.Printf("Build date: %s\n", buildDate)
	fmt.Printf("Build commit: %s\n", buildCommit)
}
