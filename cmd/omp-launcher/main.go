// main is the entry point of the open.mp launcher backend.
// It either launches the game directly from command line arguments, or
// initializes the database, GeoIP provider and query client and serves the
// local RPC used by the launcher UI.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/omp-launcher/internal/apperr"
	"github.com/woozymasta/omp-launcher/internal/config"
	"github.com/woozymasta/omp-launcher/internal/fake"
	"github.com/woozymasta/omp-launcher/internal/geoip"
	"github.com/woozymasta/omp-launcher/internal/launcher"
	"github.com/woozymasta/omp-launcher/internal/logger"
	"github.com/woozymasta/omp-launcher/internal/maintenance"
	"github.com/woozymasta/omp-launcher/internal/query"
	"github.com/woozymasta/omp-launcher/internal/server"
	"github.com/woozymasta/omp-launcher/internal/storage"
	"github.com/woozymasta/omp-launcher/internal/vars"
)

func main() {
	cfg := config.Parse()

	closeLog := logger.Setup(cfg.Logger, cfg.DataDir)

	code := run(cfg)

	_ = closeLog()
	os.Exit(code)
}

func run(cfg *config.Config) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gl := launcher.NewPlatform(launcherPolicy(cfg.Launcher))

	if cfg.HasDirectLaunch() {
		return launchDirect(ctx, cfg, gl)
	}

	log.Info().Str("version", vars.Version).Msg("Starting omp-launcher backend...")

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		log.Error().Err(err).Str("path", cfg.DataDir).Msg("Failed to create data directory")
		return 1
	}

	// Database
	if err := os.MkdirAll(filepath.Dir(cfg.Storage.Path), 0o755); err != nil {
		log.Error().Err(err).Msg("Failed to create database directory")
		return 1
	}
	store, err := storage.New(ctx, cfg.Storage.Path)
	if err != nil {
		log.Error().Err(err).Str("path", cfg.Storage.Path).Msg("Failed to initialize database")
		return 1
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing database")
		}
	}()

	if cfg.Storage.ImportLegacy != "" {
		n, err := store.ImportLegacy(ctx, cfg.Storage.ImportLegacy)
		if err != nil {
			log.Error().Err(err).Str("path", cfg.Storage.ImportLegacy).Msg("Failed to import legacy storage")
		} else {
			log.Info().Int("keys", n).Str("path", cfg.Storage.ImportLegacy).Msg("Legacy storage imported")
		}
	}

	// data generation, development responder or database maintenance
	if cfg.Storage.GenerateCount > 0 {
		fake.GenerateData(ctx, store, cfg.Storage.GenerateCount)
		return 0
	}
	if cfg.Storage.FakeResponder != "" {
		return serveFakeResponder(ctx, cfg.Storage.FakeResponder)
	}
	if maintenance.Run(ctx, cfg, store) {
		return 0
	}

	// GeoIP
	var geo *geoip.Provider
	if !cfg.GeoIP.Disable {
		geo = openGeoIP(ctx, cfg.GeoIP)
		defer func() {
			if err := geo.Close(); err != nil {
				log.Error().Err(err).Msg("Error closing GeoIP provider")
			}
		}()
	}

	client := query.New(query.Options{
		Timeout:           cfg.Query.Timeout,
		RateLimit:         cfg.Query.RateLimit,
		ExtraInfoCooldown: cfg.Query.ExtraInfoCooldown,
		BufferSize:        cfg.Query.BufferSize,
	})
	defer func() { _ = client.Close() }()

	// Init server
	srvHandler := server.New(store, geo, client, gl, cfg)

	// Background queue
	srvHandler.StartWorkers()

	httpServer := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           srvHandler.Run(),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("address", cfg.Server.Address).Msg("Server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Graceful Shutdown
	code := 0
	select {
	case <-ctx.Done():
	case err := <-errCh:
		log.Error().Err(err).Msg("Server failed")
		code = 1
	}

	log.Info().Msg("Shutting down server...")

	// Shut down HTTP
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Stop workers (abort launch, drain history)
	srvHandler.StopWorkers()

	log.Info().Msg("Server exited")
	return code
}

// launchDirect validates the command line launch arguments, starts the game and exits.
func launchDirect(ctx context.Context, cfg *config.Config, gl launcher.GameLauncher) int {
	req, err := directRequest(cfg)
	if err != nil {
		log.Error().Err(err).Msg("Invalid launch arguments")
		return 1
	}

	log.Info().
		Str("server", req.Host).
		Uint16("port", req.Port).
		Str("name", req.Name).
		Msg("Launching game")

	if err := gl.Launch(ctx, req); err != nil {
		log.Error().Err(err).Str("user_message", apperr.UserMessage(err)).Msg("Failed to launch game")
		return 1
	}

	return 0
}

// directRequest builds a launch request from the command line, with samp.dll
// from the game directory and omp-client.dll unless disabled.
func directRequest(cfg *config.Config) (launcher.Request, error) {
	host, err := launcher.ValidateHostname(cfg.Launch.Host)
	if err != nil {
		return launcher.Request{}, err
	}
	port, err := launcher.ValidatePort(cfg.Launch.Port)
	if err != nil {
		return launcher.Request{}, err
	}
	name, err := launcher.ValidatePlayerName(cfg.Launch.Name)
	if err != nil {
		return launcher.Request{}, err
	}
	gameDir, err := launcher.ValidateGameDir(cfg.Launch.GamePath)
	if err != nil {
		return launcher.Request{}, err
	}

	payloads := []string{filepath.Join(gameDir, launcher.SAMPLibrary)}
	if !cfg.Launch.NoOMP {
		payloads = append(payloads, cfg.Launcher.OMPLibrary)
	}

	return launcher.Request{
		Name:     name,
		Host:     host,
		Port:     port,
		GameDir:  gameDir,
		Password: launcher.SanitizePassword(cfg.Launch.Password),
		Payloads: payloads,
	}, nil
}

func launcherPolicy(cfg config.Launcher) launcher.Policy {
	return launcher.Policy{
		Marker:        cfg.Marker,
		MaxRetries:    cfg.MaxRetries,
		Delay:         cfg.RetryDelay,
		MarkerTimeout: cfg.MarkerTimeout,
	}
}

// openGeoIP refreshes the database when it is outdated and opens it. It returns
// nil, which disables country detection, when the database is unavailable.
func openGeoIP(ctx context.Context, cfg config.GeoIP) *geoip.Provider {
	log.Info().Msg("Checking GeoIP database...")

	dlCtx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()
	if err := geoip.EnsureDB(dlCtx, &http.Client{Timeout: time.Minute}, cfg.Path, cfg.URL, cfg.Interval); err != nil {
		log.Error().Err(err).Msg("Failed to download GeoIP database")
	}

	geo, err := geoip.Open(cfg.Path)
	if err != nil {
		log.Error().Err(err).Msg("Failed to open GeoIP database, country detection disabled")
		return nil
	}

	return geo
}

// serveFakeResponder answers SA-MP queries with random data until interrupted.
func serveFakeResponder(ctx context.Context, addr string) int {
	r, err := fake.Listen(addr, fake.RandomServer())
	if err != nil {
		log.Error().Err(err).Str("address", addr).Msg("Failed to start fake responder")
		return 1
	}

	log.Info().Str("address", addr).Msg("Fake query responder running")
	<-ctx.Done()

	if err := r.Close(); err != nil {
		log.Error().Err(err).Msg("Error closing fake responder")
	}

	return 0
}
