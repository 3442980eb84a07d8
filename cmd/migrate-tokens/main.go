// Command migrate-tokens encrypts chat tokens stored in plaintext.
//
// Rows of chat_connections with encryption_version=0 are sealed with
// AES-256-GCM (encryption_version=1) using ENCRYPTION_KEY.
//
// Usage:
//
//	migrate-tokens [--dry-run] [--tenant TENANT]
//
// Environment Variables:
//
//	DB_DSN: Database connection string (required)
//	ENCRYPTION_KEY: Base64-encoded 32-byte encryption key (required)
//	ENCRYPTION_KEY_ID: Key id recorded with each row (default "default")
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/samber/lo"

	"github.com/onnwee/chat-bridge/crypto"
	"github.com/onnwee/chat-bridge/db"
)

func main() {
	dryRun := flag.Bool("dry-run", false, "Show what would be migrated without making changes")
	tenant := flag.String("tenant", "", "Migrate tokens for one tenant only (default: all tenants)")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))

	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		slog.Error("DB_DSN environment variable is required")
		os.Exit(1)
	}
	key := os.Getenv("ENCRYPTION_KEY")
	if key == "" {
		slog.Error("ENCRYPTION_KEY environment variable is required for migration")
		os.Exit(1)
	}
	keyID := os.Getenv("ENCRYPTION_KEY_ID")
	if keyID == "" {
		keyID = "default"
	}
	encryptor, err := crypto.NewAESEncryptorWithID(key, keyID)
	if err != nil {
		slog.Error("failed to initialize encryptor", slog.Any("error", err))
		os.Exit(1)
	}

	database, err := db.Connect(dsn)
	if err != nil {
		slog.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer database.Close()

	ctx := context.Background()
	if err := database.PingContext(ctx); err != nil {
		slog.Error("failed to ping database", slog.Any("error", err))
		os.Exit(1)
	}

	res, err := migrateTokens(ctx, database, encryptor, *dryRun, *tenant)
	slog.Info("migration summary",
		slog.Int("total", res.total),
		slog.Int("migrated", res.migrated),
		slog.Int("errors", res.errors),
		slog.Bool("dry_run", *dryRun))
	if err != nil {
		slog.Error("migration failed", slog.Any("error", err))
		os.Exit(1)
	}
}

type result struct {
	total, migrated, errors int
}

func migrateTokens(ctx context.Context, database *sql.DB, encryptor crypto.Encryptor, dryRun bool, tenant string) (result, error) {
	rows, err := db.ListPlaintext(ctx, database)
	if err != nil {
		return result{}, fmt.Errorf("failed to query plaintext tokens: %w", err)
	}
	if tenant != "" {
		rows = lo.Filter(rows, func(r db.PlaintextRow, _ int) bool { return r.Key.Tenant == tenant })
	}
	res := result{total: len(rows)}
	if len(rows) == 0 {
		slog.Info("no plaintext tokens found to migrate")
		return res, nil
	}

	for i, row := range rows {
		logger := slog.With(
			slog.String("key", row.Key.String()),
			slog.String("token", crypto.Mask(row.Token)),
			slog.Int("index", i+1),
			slog.Int("total", len(rows)))

		if dryRun {
			logger.Info("would migrate token (dry-run)")
			res.migrated++
			continue
		}
		done, err := db.EncryptToken(ctx, database, encryptor, row)
		switch {
		case err != nil:
			logger.Error("failed to migrate token", slog.Any("error", err))
			res.errors++
		case !done:
			logger.Warn("token changed concurrently, skipped")
		default:
			logger.Info("migrated token successfully")
			res.migrated++
		}
	}

	if res.errors > 0 {
		return res, fmt.Errorf("migration completed with %d errors", res.errors)
	}
	return res, nil
}
