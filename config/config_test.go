package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DB_DSN", "postgres://x@localhost/db")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.StoreBackend != StorePostgres {
		t.Errorf("StoreBackend = %q, want postgres", cfg.StoreBackend)
	}
	if cfg.ConfirmTimeout != 8*time.Second || cfg.JoinPause != 500*time.Millisecond {
		t.Errorf("timeouts = %v/%v", cfg.ConfirmTimeout, cfg.JoinPause)
	}
	if len(cfg.TwitchScopes) != 2 || cfg.TwitchScopes[0] != "chat:read" || cfg.TwitchScopes[1] != "chat:edit" {
		t.Errorf("TwitchScopes = %v", cfg.TwitchScopes)
	}
	if cfg.TwitchIRCURL != "wss://irc-ws.chat.twitch.tv:443" {
		t.Errorf("TwitchIRCURL = %q", cfg.TwitchIRCURL)
	}
	if cfg.IdleTimeout != 0 || cfg.TokenValidateInterval != 24*time.Hour {
		t.Errorf("IdleTimeout = %v, TokenValidateInterval = %v", cfg.IdleTimeout, cfg.TokenValidateInterval)
	}
	if cfg.HelixEnabled() {
		t.Error("HelixEnabled() without credentials")
	}
	if cfg.ExpiryWebhookEnabled() {
		t.Error("ExpiryWebhookEnabled() without webhooks")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("STORE_BACKEND", "memory")
	t.Setenv("CHAT_CONFIRM_TIMEOUT", "2s")
	t.Setenv("TWITCH_SCOPES", "chat:read")
	t.Setenv("TWITCH_CLIENT_ID", "cid")
	t.Setenv("TWITCH_CLIENT_SECRET", "secret")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.ConfirmTimeout != 2*time.Second {
		t.Errorf("ConfirmTimeout = %v", cfg.ConfirmTimeout)
	}
	if len(cfg.TwitchScopes) != 1 {
		t.Errorf("TwitchScopes = %v", cfg.TwitchScopes)
	}
	if !cfg.HelixEnabled() {
		t.Error("HelixEnabled() = false with credentials")
	}
}

func TestLoadTenantWebhooks(t *testing.T) {
	t.Setenv("STORE_BACKEND", "memory")
	t.Setenv("EXPIRY_WEBHOOK_URLS", "guild1=https://hooks.example.com/a?x=1,guild2=https://hooks.example.com/b")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if got := cfg.ExpiryWebhookURLs["guild1"]; got != "https://hooks.example.com/a?x=1" {
		t.Errorf("guild1 webhook = %q", got)
	}
	if got := cfg.ExpiryWebhookURLs["guild2"]; got != "https://hooks.example.com/b" {
		t.Errorf("guild2 webhook = %q", got)
	}
	if !cfg.ExpiryWebhookEnabled() {
		t.Error("ExpiryWebhookEnabled() = false with tenant webhooks")
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"unknown backend", map[string]string{"STORE_BACKEND": "mongo"}},
		{"postgres without dsn", map[string]string{"STORE_BACKEND": "postgres", "DB_DSN": ""}},
		{"bad log level", map[string]string{"STORE_BACKEND": "memory", "LOG_LEVEL": "loud"}},
		{"secret missing", map[string]string{"STORE_BACKEND": "memory", "TWITCH_CLIENT_ID": "cid"}},
		{"bad duration", map[string]string{"STORE_BACKEND": "memory", "CHAT_JOIN_PAUSE": "soon"}},
		{"bad webhook", map[string]string{"STORE_BACKEND": "memory", "EXPIRY_WEBHOOK_URL": "not a url"}},
		{"bad tenant webhook", map[string]string{"STORE_BACKEND": "memory", "EXPIRY_WEBHOOK_URLS": "guild=not a url"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := Load(); err == nil {
				t.Error("Load() expected error")
			}
		})
	}
}
