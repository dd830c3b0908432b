package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	"readfocus/internal/adapter/driven/cookiecloud"
	sqliteadapter "readfocus/internal/adapter/driven/sqlite"
	"readfocus/internal/adapter/driven/weread"
	httphandler "readfocus/internal/adapter/driving/http"
	"readfocus/internal/application"
	"readfocus/internal/config"
	"readfocus/internal/domain/model"
	"readfocus/internal/domain/port/driven"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration (.env plus environment, everything optional).
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.Info("config loaded",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"cookiecloud", cfg.HasCookieCloud(),
		"priority_titles", len(cfg.PriorityTitles),
		"blacklist_titles", len(cfg.BlacklistTitles),
	)

	// 2. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Open database (dual reader/writer with WAL mode).
	db, err := sqliteadapter.NewDB(cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()
	slog.Info("database opened", "path", cfg.DBPath)

	// 4. Run migrations on writer connection.
	if err := sqliteadapter.RunMigrations(db.Writer); err != nil {
		return err
	}
	slog.Info("migrations complete")

	// 5. Wire adapters.
	bookmarkCache := sqliteadapter.NewBookmarkRepo(db)
	snapshotStore := sqliteadapter.NewSnapshotRepo(db)
	seenStore := sqliteadapter.NewSeenRepo(db)

	var cloud driven.CredentialSource
	if cfg.HasCookieCloud() {
		cloud = cookiecloud.NewClient(cfg.CookieCloudHost, cfg.CookieCloudUUID, cfg.CookieCloudPassword)
		slog.Info("cookiecloud credential source configured", "host", cfg.CookieCloudHost)
	}
	resolver := application.NewCredentialResolver(cloud, cfg.WereadCookie)

	newClient := func(cred model.Credential) driven.WereadClient {
		return weread.NewClient(cred)
	}

	// 6. Create services.
	contentSvc := application.NewContentService(resolver, newClient, bookmarkCache)
	syncSvc := application.NewSyncService(resolver, newClient, bookmarkCache, snapshotStore)
	picker := application.NewPicker(seenStore, application.PickerConfig{
		PriorityTitles:  cfg.PriorityTitles,
		BlacklistTitles: cfg.BlacklistTitles,
		ScanLimit:       cfg.ScanLimit,
	}, nil)

	// 7. Create HTTP handler and register routes.
	apiHandler := httphandler.NewHandler(contentSvc, picker, syncSvc, snapshotStore, slog.Default())
	handler := httphandler.NewServeMux(apiHandler, slog.Default())

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server error", "error", err)
		}
	}()

	slog.Info("readfocusd started", "listen_addr", cfg.ListenAddr)

	// 8. Wait for shutdown signal.
	<-ctx.Done()
	slog.Info("shutting down")

	// 9. Graceful shutdown with 10s timeout for HTTP server drain.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}
