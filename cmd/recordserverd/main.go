package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MKhiriev/go-sync-store/internal/config"
	"github.com/MKhiriev/go-sync-store/internal/logger"
	"github.com/MKhiriev/go-sync-store/internal/remote"
)

var (
	buildVersion string
	buildDate    string
	buildCommit  string
)

func main() {
	printBuildInfo()

	log := logger.NewLogger("recordserverd")
	cfg, err := config.GetServerConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("error getting configs")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	storage, err := remote.NewStorage(ctx, cfg.DSN, log)
	cancel()
	if err != nil {
		log.Fatal().Err(err).Msg("error connecting to database")
	}
	defer storage.Close()

	if err = storage.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("error applying migrations")
	}

	hub := remote.NewHub(log)
	defer hub.Close()

	server := remote.NewServer(storage, hub, log)
	// Only the header read gets a server-wide deadline: full-connection
	// timeouts would tear down idle notification websockets.
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddress,
		Handler:           server.Router(cfg.SigningKey),
		ReadHeaderTimeout: cfg.RequestTimeout,
	}

	go func() {
		log.Info().Str("address", cfg.HTTPAddress).Msg("record service listening")
		if serveErr := httpServer.ListenAndServe(); serveErr != nil &&
			!errors.Is(serveErr, http.ErrServerClosed) {
			log.Fatal().Err(serveErr).Msg("http server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info().Str("signal", sig.String()).Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err = httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown error")
	}
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
