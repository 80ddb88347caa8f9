package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/knornslien/renovasjon-bridge/internal/config"
	"github.com/knornslien/renovasjon-bridge/internal/coordinator"
	"github.com/knornslien/renovasjon-bridge/internal/database"
	"github.com/knornslien/renovasjon-bridge/internal/gcal"
	"github.com/knornslien/renovasjon-bridge/internal/handlers"
	"github.com/knornslien/renovasjon-bridge/internal/logging"
	"github.com/knornslien/renovasjon-bridge/internal/renovasjon"
	appSignals "github.com/knornslien/renovasjon-bridge/internal/signals"
	"github.com/knornslien/renovasjon-bridge/internal/token"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	isDev := os.Getenv("ENV") != "production"
	logging.Initialize(isDev)
	logger := logging.GetLogger("main")

	logger.Info().
		Str("version", version).
		Str("commit", commit).
		Str("build_date", date).
		Msg("Starting Renovasjon Bridge")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info().Str("signal", sig.String()).Msg("Received signal, initiating shutdown")
		cancel()
	}()

	if err := run(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Application run failed")
	}
}

func run(ctx context.Context) error {
	logger := logging.GetLogger("main")

	configPath := os.Getenv("CONFIG_FILE")
	if configPath == "" {
		configPath = "configs/bridge.toml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Error().Err(err).Str("config_path", configPath).Msg("Failed to load configuration")
		return err
	}

	logging.SetLogLevel(cfg.Service.LogLevel)
	logger.Info().Str("log_level", cfg.Service.LogLevel).Msg("Log level set")

	if err := os.MkdirAll(filepath.Dir(cfg.Service.StateFile), 0755); err != nil {
		logger.Error().Err(err).Str("path", filepath.Dir(cfg.Service.StateFile)).Msg("Failed to create data directory")
		return err
	}

	db, err := database.New(database.NewDefaultOptions(cfg.Service.StateFile))
	if err != nil {
		wrappedErr := fmt.Errorf("failed to initialize database: %w", err)
		logger.Error().Err(wrappedErr).Str("db_path", cfg.Service.StateFile).Msg("Database initialization failed")
		return wrappedErr
	}
	defer db.Close()

	if err := db.MigrateDatabase(); err != nil {
		wrappedErr := fmt.Errorf("failed to initialize database schema: %w", err)
		logger.Error().Err(wrappedErr).Msg("Database schema initialization failed")
		return wrappedErr
	}

	addressStore, err := database.NewAddressStore(db)
	if err != nil {
		return fmt.Errorf("failed to initialize address store: %w", err)
	}
	snapshotStore, err := database.NewSnapshotStore(db)
	if err != nil {
		return fmt.Errorf("failed to initialize snapshot store: %w", err)
	}
	settingsStore, err := database.NewSettingsStore(db)
	if err != nil {
		return fmt.Errorf("failed to initialize settings store: %w", err)
	}
	tokenStore, err := database.NewTokenStore(db)
	if err != nil {
		wrappedErr := fmt.Errorf("failed to initialize token store: %w", err)
		logger.Error().Err(wrappedErr).Msg("Token store initialization failed")
		return wrappedErr
	}

	tokenManager := token.NewManager(tokenStore, cfg.OAuth)

	client := renovasjon.NewClient(cfg.API.BaseURL, nil, time.Duration(cfg.API.TimeoutSeconds)*time.Second)

	// A stored interval override takes precedence over the config file.
	interval := time.Duration(cfg.Schedule.UpdateIntervalHours) * time.Hour
	if override, err := settingsStore.GetUpdateInterval(); err != nil {
		logger.Warn().Err(err).Msg("Failed to read stored update interval, using configured value")
	} else if override > 0 {
		interval = time.Duration(override) * time.Hour
		logger.Info().Int("hours", override).Msg("Applying stored update interval override")
	}

	coord := coordinator.New(client, addressStore, snapshotStore, interval)
	if err := coord.LoadCached(); err != nil {
		logger.Warn().Err(err).Msg("Failed to load cached schedules, starting empty")
	}

	calSvc := gcal.New(cfg, tokenStore, tokenManager)
	if cfg.Calendar.Enabled {
		logger.Info().Msg("Calendar sync enabled. Waiting for authentication/initialization...")
	}

	baseHandler, err := handlers.NewBaseHandler(cfg, tokenStore, tokenManager)
	if err != nil {
		wrappedErr := fmt.Errorf("failed to initialize base handler: %w", err)
		logger.Error().Err(wrappedErr).Msg("Base handler initialization failed")
		return wrappedErr
	}

	homeHandler := handlers.NewHomeHandler(baseHandler, coord)
	apiHandler := handlers.NewAPIHandler(baseHandler, coord, client, addressStore, snapshotStore, settingsStore)
	icsHandler := handlers.NewICSHandler(baseHandler, coord)
	oauthHandler := handlers.NewOAuthHandler(baseHandler)
	calendarHandler := handlers.NewCalendarHandler(baseHandler, calSvc)

	homeHandler.RegisterRoutes()
	apiHandler.RegisterRoutes()
	icsHandler.RegisterRoutes()
	if cfg.Calendar.Enabled {
		oauthHandler.RegisterRoutes()
		calendarHandler.RegisterRoutes()
	}

	srv := &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.Service.Port),
	}

	go func() {
		logger.Info().Int("port", cfg.Service.Port).Msg("Starting web server")
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("HTTP server error")
		}
	}()

	// Newly added addresses get fetched right away instead of waiting
	// for the next scheduled refresh.
	appSignals.OnAddressAdded(func(ctx context.Context, data appSignals.AddressAddedData) {
		signalLogger := logging.GetLogger("signal-address-added")
		signalLogger.Info().Str("address_id", data.AddressID).Msg("Address added, fetching schedule")
		if err := coord.Refresh(ctx, data.AddressID); err != nil {
			signalLogger.Error().Err(err).Str("address_id", data.AddressID).Msg("Initial fetch for new address failed")
		}
	}, "main-address-added-handler")

	if cfg.Calendar.Enabled {
		setupCalendarSync(ctx, coord, calSvc, tokenManager)
	}

	if cfg.Service.RefreshOnStartup {
		logger.Info().Msg("Performing schedule refresh on startup")
		if err := coord.RefreshAll(ctx); err != nil {
			logger.Warn().Err(err).Msg("Startup refresh completed with errors")
		}
	}

	// Run blocks until the context is cancelled.
	runErr := coord.Run(ctx)
	if runErr != nil && runErr != context.Canceled {
		logger.Error().Err(runErr).Msg("Refresh loop terminated unexpectedly")
	}

	logger.Info().Msg("Shutting down HTTP server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown error")
	} else {
		logger.Info().Msg("HTTP server shut down gracefully")
	}
	logger.Info().Msg("Shutdown complete")
	return nil
}

// setupCalendarSync wires Google Calendar synchronization to the token and
// data-updated signals.
func setupCalendarSync(ctx context.Context, coord *coordinator.Coordinator, calSvc *gcal.Service, tokenManager *token.Manager) {
	logger := logging.GetLogger("calendar-sync")

	hasToken, _ := tokenManager.HasToken()
	if hasToken {
		if err := calSvc.Initialize(ctx); err != nil {
			logger.Warn().Err(err).Msg("Initial calendar service initialization failed")
		} else {
			logger.Info().Msg("Calendar service initialized from stored token")
		}
	} else {
		logger.Info().Msg("No Google token found. Waiting for OAuth flow.")
	}

	appSignals.OnTokenSetup(func(ctx context.Context, data appSignals.TokenSetupData) {
		signalLogger := logging.GetLogger("signal-token-setup")
		if !data.Success {
			signalLogger.Warn().Msg("Token setup signal received, but setup was not successful")
			return
		}
		if err := calSvc.Initialize(ctx); err != nil {
			signalLogger.Error().Err(err).Msg("Failed to initialize calendar service after token setup")
			return
		}
		signalLogger.Info().Msg("Calendar service initialized after token setup")
	}, "main-token-setup-handler")

	appSignals.OnDataUpdated(func(ctx context.Context, data appSignals.DataUpdatedData) {
		signalLogger := logging.GetLogger("signal-data-updated")
		if !calSvc.IsInitialized() {
			signalLogger.Debug().Msg("Calendar service not initialized, skipping sync")
			return
		}

		var snapshots []*renovasjon.Snapshot
		for _, result := range coord.Results() {
			if result.Snapshot != nil {
				snapshots = append(snapshots, result.Snapshot)
			}
		}
		if err := calSvc.SyncSnapshots(ctx, snapshots); err != nil {
			signalLogger.Error().Err(err).Msg("Failed to sync collection schedule with calendar")
			return
		}
		signalLogger.Info().Int("snapshot_count", len(snapshots)).Msg("Collection schedule synced to calendar")
	}, "main-data-updated-handler")
}
