// Command readfocus-sync runs one bulk snapshot sync from the command
// line and exits, for cron-style refreshes without the HTTP server.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	"readfocus/internal/adapter/driven/cookiecloud"
	sqliteadapter "readfocus/internal/adapter/driven/sqlite"
	"readfocus/internal/adapter/driven/weread"
	"readfocus/internal/application"
	"readfocus/internal/config"
	"readfocus/internal/domain/model"
	"readfocus/internal/domain/port/driven"
)

func main() {
	if err := run(); err != nil {
		slog.Error("sync failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := sqliteadapter.NewDB(cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()

	if err := sqliteadapter.RunMigrations(db.Writer); err != nil {
		return err
	}

	var cloud driven.CredentialSource
	if cfg.HasCookieCloud() {
		cloud = cookiecloud.NewClient(cfg.CookieCloudHost, cfg.CookieCloudUUID, cfg.CookieCloudPassword)
	}
	resolver := application.NewCredentialResolver(cloud, cfg.WereadCookie)

	newClient := func(cred model.Credential) driven.WereadClient {
		return weread.NewClient(cred)
	}

	syncSvc := application.NewSyncService(
		resolver,
		newClient,
		sqliteadapter.NewBookmarkRepo(db),
		sqliteadapter.NewSnapshotRepo(db),
	)

	result, err := syncSvc.Sync(ctx, "", func(processed, total int, message string) {
		fmt.Printf("[%d/%d] %s\n", processed, total, message)
	})
	if err != nil {
		return err
	}

	fmt.Printf("synced %d books, %d passages\n", result.Processed, result.Passages)
	return nil
}
