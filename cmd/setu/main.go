// Setu is a local CardDAV bridge for Google Contacts.
//
// Launch modes:
//
//	setu                          start the server and sync loop
//	setu --headless               same, explicit (kept for service units)
//	setu --login                  run the Google OAuth flow and exit
//	setu --show-carddav-password  print the Basic Auth password and exit
//	setu --install                install a systemd user service (Linux)
//	setu --uninstall              remove the systemd user service (Linux)
package main

import (
	"context"
	"crypto/tls"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/setu-dav/setu/internal/carddav"
	"github.com/setu-dav/setu/internal/config"
	"github.com/setu-dav/setu/internal/google"
	"github.com/setu-dav/setu/internal/httpserver"
	"github.com/setu-dav/setu/internal/logging"
	"github.com/setu-dav/setu/internal/single"
	"github.com/setu-dav/setu/internal/storage"
	"github.com/setu-dav/setu/internal/sync"
	"github.com/setu-dav/setu/internal/tlsconf"
	"github.com/setu-dav/setu/internal/vault"
)

const version = "1.0.0"

func main() {
	var (
		headless     = flag.Bool("headless", false, "run without any UI (default behavior)")
		settings     = flag.Bool("settings", false, "print setup instructions")
		login        = flag.Bool("login", false, "run the Google OAuth flow and exit")
		showPassword = flag.Bool("show-carddav-password", false, "print the CardDAV Basic Auth password and exit")
		install      = flag.Bool("install", false, "install the systemd user service (Linux only)")
		uninstall    = flag.Bool("uninstall", false, "remove the systemd user service (Linux only)")
		restart      = flag.Bool("restart", false, "wait for a previous instance to exit before starting")
	)
	flag.Parse()
	_ = headless

	logger := newLogger()
	logger.Info().Str("version", version).Msg("Setu starting")

	if err := run(logger, *settings, *login, *showPassword, *install, *uninstall, *restart); err != nil {
		logger.Error().Err(err).Msg("fatal")
		fmt.Fprintf(os.Stderr, "setu: %v\n", err)
		os.Exit(1)
	}
}

// newLogger writes to the log file under the data directory, or stderr when
// the file cannot be opened.
func newLogger() zerolog.Logger {
	level := os.Getenv("SETU_LOG")
	if level == "" {
		level = "info"
	}
	path, err := config.LogFilePath()
	if err != nil {
		return logging.New(level, os.Stderr)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return logging.New(level, os.Stderr)
	}
	return logging.New(level, f)
}

func run(logger zerolog.Logger, settings, login, showPassword, install, uninstall, restart bool) error {
	v := vault.NewKeyring()

	// One-time migrations from the old "wincard" name.
	config.MigrateLegacyDataDir(logger)
	vault.MigrateFromLegacy(logger)

	switch {
	case install:
		return installService(logger)
	case uninstall:
		return uninstallService(logger)
	case showPassword:
		pw, err := vault.GetOrInit(v, vault.KeyCardDAVPassword, func() string {
			return vault.GeneratePassword(24)
		})
		if err != nil {
			return err
		}
		fmt.Fprintln(os.Stderr, "CardDAV Basic Auth credentials:")
		fmt.Fprintln(os.Stderr, "  Username: setu  (any username works)")
		fmt.Fprintf(os.Stderr, "  Password: %s\n", pw)
		return nil
	case settings:
		return printSettingsHelp()
	case login:
		return runLogin(logger, v)
	}

	// When restarting, give the old process a moment to release its lock.
	if restart {
		time.Sleep(time.Second)
	}

	dataDir, err := config.DataDir()
	if err != nil {
		return err
	}
	lock, err := single.Acquire(dataDir)
	if err != nil {
		if errors.Is(err, single.ErrAlreadyRunning) {
			return fmt.Errorf("another Setu instance is already running")
		}
		return err
	}
	defer lock.Release()

	cfgPath, err := config.Path()
	if err != nil {
		return err
	}
	cfg, err := config.LoadAndMigrate(cfgPath, v, logger)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	hasCreds := cfg.GoogleClientID != "" && vault.Has(v, vault.KeyGoogleClientSecret)
	logger.Info().
		Bool("credentials", hasCreds).
		Uint16("port", cfg.ServerPort).
		Int64("interval", cfg.SyncIntervalSecs).
		Msg("configuration loaded")

	if !hasCreds {
		return fmt.Errorf("setup incomplete: add google_client_id and google_client_secret to %s, then run setu --login", cfgPath)
	}

	store, _, err := openStore(v, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	// Make sure a Basic Auth password exists before the first client connects.
	if _, err := vault.GetOrInit(v, vault.KeyCardDAVPassword, func() string {
		return vault.GeneratePassword(24)
	}); err != nil {
		return fmt.Errorf("initializing CardDAV password: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	api := buildGoogleClient(ctx, cfg, v, logger)

	tlsCfg := loadTLS(cfg, dataDir, logger)

	var upstream carddav.Upstream
	if api != nil {
		upstream = api
	}
	handler := carddav.NewServer(store, upstream, v, logger).Handler()
	srv := httpserver.New(cfg.ServerPort, handler, tlsCfg, logger)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("CardDAV server error")
		}
	}()

	if api != nil {
		go func() {
			if err := api.WarmupSearch(ctx); err != nil {
				logger.Warn().Err(err).Msg("search warmup failed")
			}
		}()
		engine := sync.New(api, store, v, time.Duration(cfg.SyncIntervalSecs)*time.Second, logger)
		go engine.Run(ctx)
	} else {
		logger.Warn().Msg("Google client unavailable, sync and on-demand search disabled")
	}

	fmt.Fprintf(os.Stderr, "Setu v%s — CardDAV server on port %d\n", version, cfg.ServerPort)
	fmt.Fprintln(os.Stderr, "Press Ctrl+C to stop.")

	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	<-ch
	logger.Info().Msg("shutting down")

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("shutdown error")
	}
	logger.Info().Msg("bye")
	return nil
}

// openStore resolves the database key, runs the one-time plaintext migration
// and opens the encrypted store.
func openStore(v vault.Vault, logger zerolog.Logger) (*storage.Store, string, error) {
	dbKey, err := vault.GetOrInit(v, vault.KeyDBKey, func() string {
		return vault.GenerateHexKey(32)
	})
	if err != nil {
		return nil, "", fmt.Errorf("resolving database key: %w", err)
	}
	dbPath, err := config.DBPath()
	if err != nil {
		return nil, "", err
	}
	if err := storage.MigrateToEncrypted(dbPath, dbKey, logger); err != nil {
		return nil, "", fmt.Errorf("encrypting database: %w", err)
	}
	store, err := storage.Open(dbPath, dbKey, logger)
	if err != nil {
		return nil, "", fmt.Errorf("opening database: %w", err)
	}
	logger.Info().Str("path", dbPath).Msg("database initialised")
	return store, dbKey, nil
}

// buildGoogleClient returns nil when credentials or the OAuth token are
// missing or the client cannot be built; the server runs cache-only then.
func buildGoogleClient(ctx context.Context, cfg *config.Config, v vault.Vault, logger zerolog.Logger) *google.Client {
	if !vault.Has(v, vault.KeyOAuthToken) {
		logger.Warn().Msg("not authenticated with Google, run setu --login")
		return nil
	}
	clientSecret, err := v.Get(vault.KeyGoogleClientSecret)
	if err != nil {
		logger.Error().Err(err).Msg("reading Google client secret")
		return nil
	}
	api, err := google.NewClient(ctx, cfg.GoogleClientID, clientSecret, v, logger)
	if err != nil {
		logger.Error().Err(err).Msg("failed to build Google API client")
		return nil
	}
	logger.Info().Msg("Google API client initialised")
	return api
}

// loadTLS generates certificates if needed and loads them. Any failure
// degrades to plain HTTP with a warning.
func loadTLS(cfg *config.Config, dataDir string, logger zerolog.Logger) *tls.Config {
	if !cfg.UseTLS {
		return nil
	}
	generated, err := tlsconf.EnsureCerts(dataDir, logger)
	if err != nil {
		logger.Error().Err(err).Msg("certificate generation failed, falling back to HTTP")
		return nil
	}
	if generated {
		// A freshly minted CA is not trusted yet; clients would refuse the
		// connection until it lands in the OS trust store.
		if err := tlsconf.InstallCA(dataDir, logger); err != nil {
			logger.Warn().Err(err).Msg("could not install CA into the OS trust store, clients may reject the certificate")
		}
	}
	tlsCfg, err := tlsconf.Load(dataDir)
	if err != nil {
		logger.Error().Err(err).Msg("failed to load TLS config, falling back to HTTP")
		return nil
	}
	logger.Info().Msg("TLS enabled, CardDAV server will use HTTPS")
	return tlsCfg
}

func printSettingsHelp() error {
	cfgPath, err := config.Path()
	if err != nil {
		return err
	}
	fmt.Fprintln(os.Stderr, "Setu has no settings UI. To configure:")
	fmt.Fprintf(os.Stderr, "  1. Edit %s and set google_client_id / google_client_secret\n", cfgPath)
	fmt.Fprintln(os.Stderr, "  2. Run: setu --login")
	fmt.Fprintln(os.Stderr, "  3. Run: setu --show-carddav-password for the client credentials")
	return nil
}

// runLogin drives the loopback OAuth flow and stores the token.
func runLogin(logger zerolog.Logger, v vault.Vault) error {
	cfgPath, err := config.Path()
	if err != nil {
		return err
	}
	cfg, err := config.LoadAndMigrate(cfgPath, v, logger)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if cfg.GoogleClientID == "" || !vault.Has(v, vault.KeyGoogleClientSecret) {
		return fmt.Errorf("Google credentials not configured, edit %s first", cfgPath)
	}
	clientSecret, err := v.Get(vault.KeyGoogleClientSecret)
	if err != nil {
		return fmt.Errorf("reading client secret: %w", err)
	}

	store, _, err := openStore(v, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	email, err := google.Login(context.Background(), cfg.GoogleClientID, clientSecret, v, store, logger)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}
	fmt.Fprintf(os.Stderr, "Logged in as %s\n", email)
	return nil
}
