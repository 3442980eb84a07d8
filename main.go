// Command chat-bridge keeps one authenticated Twitch chat connection per
// stored (tenant, account) record. It:
//   - Loads configuration and initializes structured logging.
//   - Opens the configured store (Postgres, badger or memory) and runs
//     migrations.
//   - Starts every stored connection, the idle reaper and the periodic token
//     validation sweep.
//   - Exposes /healthz, /readyz, /status and /metrics.
//
// Shutdown is graceful on SIGINT/SIGTERM.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	_ "net/http/pprof" //nolint:gosec // G108: pprof endpoints enabled only when ENABLE_PPROF=1
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/onnwee/chat-bridge/chat"
	"github.com/onnwee/chat-bridge/config"
	"github.com/onnwee/chat-bridge/crypto"
	"github.com/onnwee/chat-bridge/db"
	"github.com/onnwee/chat-bridge/irc"
	"github.com/onnwee/chat-bridge/kvstore"
	"github.com/onnwee/chat-bridge/notify"
	"github.com/onnwee/chat-bridge/oauth"
	"github.com/onnwee/chat-bridge/server"
	"github.com/onnwee/chat-bridge/telemetry"
	"github.com/onnwee/chat-bridge/twitchapi"
)

// store is a chat.Store that can report its reachability.
type store interface {
	chat.Store
	Ping(ctx context.Context) error
}

func main() {
	// local dev convenience only; production relies on real env
	_ = godotenv.Load(".env")

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}
	setupLogging(cfg)

	telemetry.Init()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.InitTracing(ctx, "chat-bridge", "1.0.0", cfg.OTELEndpoint)
	if err != nil {
		slog.Error("tracing initialization failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer shutdownTracing()

	st, closeStore, err := openStore(cfg)
	if err != nil {
		slog.Error("failed to open store", slog.String("backend", cfg.StoreBackend), slog.Any("err", err))
		os.Exit(1)
	}
	defer closeStore()

	listeners := chat.Listeners{chat.LogListener{}}
	if cfg.ExpiryWebhookEnabled() {
		listeners = append(listeners, &notify.Webhook{URL: cfg.ExpiryWebhookURL, TenantURLs: cfg.ExpiryWebhookURLs})
	}

	gate := &twitchapi.Validator{}
	var resolver chat.AccountResolver
	if cfg.HelixEnabled() {
		resolver = &twitchapi.HelixClient{
			ClientID:       cfg.TwitchClientID,
			AppTokenSource: &twitchapi.TokenSource{ClientID: cfg.TwitchClientID, ClientSecret: cfg.TwitchClientSecret},
		}
	} else {
		slog.Warn("TWITCH_CLIENT_ID/TWITCH_CLIENT_SECRET not set: channel ids are used as logins and usernames are not refreshed")
	}

	registry := chat.NewRegistry(chat.RegistryConfig{
		Store:    st,
		Gate:     gate,
		Resolver: resolver,
		Dialer:   chat.IRCDialer(&irc.Dialer{URL: cfg.TwitchIRCURL}),
		Listener: listeners,
		Conn: chat.ConnConfig{
			ConfirmTimeout: cfg.ConfirmTimeout,
			JoinPause:      cfg.JoinPause,
			Scopes:         cfg.TwitchScopes,
		},
		StartupConcurrency: cfg.StartupConcurrency,
		StartupPacing:      cfg.StartupPacing,
	})

	go func() {
		n, err := registry.StartAll(ctx)
		if err != nil {
			slog.Warn("starting stored connections failed", slog.Any("err", err))
			return
		}
		slog.Info("stored connections started", slog.Int("count", n))
	}()
	chat.StartIdleReaper(ctx, registry, cfg.IdleTimeout, cfg.ReaperInterval)
	oauth.StartValidator(ctx, &oauth.Maintainer{
		Store:    st,
		Gate:     gate,
		Notifier: registry.Notifier(),
		Scopes:   cfg.TwitchScopes,
	}, cfg.TokenValidateInterval)

	if cfg.EnablePprof {
		go func() {
			slog.Info("pprof profiling enabled", slog.String("addr", cfg.PprofAddr))
			srv := &http.Server{
				Addr:              cfg.PprofAddr,
				Handler:           nil, // default mux exposes /debug/pprof
				ReadHeaderTimeout: 5 * time.Second,
				ReadTimeout:       10 * time.Second,
				WriteTimeout:      10 * time.Second,
				IdleTimeout:       60 * time.Second,
			}
			if err := srv.ListenAndServe(); err != nil {
				slog.Error("pprof server error", slog.Any("err", err))
			}
		}()
	}

	mux := server.NewMux(st, registry, server.AuthConfig{
		Username: cfg.AdminUsername,
		Password: cfg.AdminPassword,
		Token:    cfg.AdminToken,
	})
	go func() {
		if err := server.Start(ctx, cfg.HTTPAddr, mux); err != nil {
			slog.Error("http server exited with error", slog.Any("err", err))
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")
	closeCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := registry.CloseAll(closeCtx); err != nil {
		slog.Warn("closing connections did not finish", slog.Any("err", err))
	}
}

func setupLogging(cfg *config.Config) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
	slog.Info("logger initialized", slog.String("level", lvl.String()), slog.String("format", cfg.LogFormat))
}

func openStore(cfg *config.Config) (store, func(), error) {
	var enc crypto.Encryptor
	if cfg.EncryptionKey != "" {
		aes, err := crypto.NewAESEncryptor(cfg.EncryptionKey)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize encryption: %w", err)
		}
		enc = aes
		slog.Info("chat token encryption enabled (AES-256-GCM)", slog.String("component", "store"))
	}

	switch cfg.StoreBackend {
	case config.StoreMemory:
		slog.Warn("memory store selected: connection records are lost on restart")
		return chat.NewMemoryStore(), func() {}, nil
	case config.StoreBadger:
		kv, err := kvstore.Open(cfg.BadgerDir, enc, slog.Default())
		if err != nil {
			return nil, nil, err
		}
		return kv, func() {
			if err := kv.Close(); err != nil {
				slog.Error("failed to close badger", slog.Any("err", err))
			}
		}, nil
	default:
		database, err := db.Connect(cfg.DBDsn)
		if err != nil {
			return nil, nil, err
		}
		slog.Info("running database migrations", slog.String("component", "db_migrate"))
		if err := db.RunMigrations(database); err != nil {
			_ = database.Close()
			return nil, nil, err
		}
		return db.NewConnectionStore(database, enc), func() {
			if err := database.Close(); err != nil {
				slog.Error("failed to close database", slog.Any("err", err))
			}
		}, nil
	}
}
