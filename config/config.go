// Package config loads environment variables into a typed Config used across
// the service. Defaults let the binary run locally with minimal setup.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
)

// Store backends.
const (
	StorePostgres = "postgres"
	StoreBadger   = "badger"
	StoreMemory   = "memory"
)

type Config struct {
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info" validate:"oneof=debug info warn error"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text" validate:"oneof=text json"`
	HTTPAddr  string `env:"HTTP_ADDR" envDefault:":8080" validate:"required"`

	// Storage
	StoreBackend  string `env:"STORE_BACKEND" envDefault:"postgres" validate:"oneof=postgres badger memory"`
	DBDsn         string `env:"DB_DSN" validate:"required_if=StoreBackend postgres"`
	BadgerDir     string `env:"BADGER_DIR" envDefault:"data/badger"`
	EncryptionKey string `env:"ENCRYPTION_KEY"`

	// Twitch
	TwitchClientID     string   `env:"TWITCH_CLIENT_ID"`
	TwitchClientSecret string   `env:"TWITCH_CLIENT_SECRET" validate:"required_with=TwitchClientID"`
	TwitchIRCURL       string   `env:"TWITCH_IRC_URL" envDefault:"wss://irc-ws.chat.twitch.tv:443" validate:"url"`
	TwitchScopes       []string `env:"TWITCH_SCOPES" envDefault:"chat:read chat:edit" envSeparator:" "`

	// Connections
	ConfirmTimeout     time.Duration `env:"CHAT_CONFIRM_TIMEOUT" envDefault:"8s" validate:"gt=0"`
	JoinPause          time.Duration `env:"CHAT_JOIN_PAUSE" envDefault:"500ms" validate:"gte=0"`
	IdleTimeout        time.Duration `env:"CHAT_IDLE_TIMEOUT" envDefault:"0s" validate:"gte=0"`
	ReaperInterval     time.Duration `env:"CHAT_REAPER_INTERVAL" envDefault:"1m" validate:"gt=0"`
	StartupConcurrency int           `env:"CHAT_STARTUP_CONCURRENCY" envDefault:"4" validate:"gte=1"`
	StartupPacing      time.Duration `env:"CHAT_STARTUP_PACING" envDefault:"2s" validate:"gte=0"`

	TokenValidateInterval time.Duration `env:"TOKEN_VALIDATE_INTERVAL" envDefault:"24h" validate:"gt=0"`
	ExpiryWebhookURL      string        `env:"EXPIRY_WEBHOOK_URL" validate:"omitempty,url"`
	// EXPIRY_WEBHOOK_URLS="tenant1=https://...,tenant2=https://..." overrides
	// EXPIRY_WEBHOOK_URL per tenant.
	ExpiryWebhookURLs map[string]string `env:"EXPIRY_WEBHOOK_URLS" envKeyValSeparator:"=" validate:"dive,keys,required,endkeys,url"`

	// /status protection; open when unset
	AdminUsername string `env:"ADMIN_USERNAME"`
	AdminPassword string `env:"ADMIN_PASSWORD" validate:"required_with=AdminUsername"`
	AdminToken    string `env:"ADMIN_TOKEN"`

	OTELEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	EnablePprof  bool   `env:"ENABLE_PPROF"`
	PprofAddr    string `env:"PPROF_ADDR" envDefault:"localhost:6060"`
}

// Load parses the environment and validates the result.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// ExpiryWebhookEnabled reports whether any expiry webhook is configured.
func (c *Config) ExpiryWebhookEnabled() bool {
	return c.ExpiryWebhookURL != "" || len(c.ExpiryWebhookURLs) > 0
}

// HelixEnabled reports whether app credentials for the Helix API are set.
// Without them stored channel ids are joined as logins and usernames are
// not refreshed.
func (c *Config) HelixEnabled() bool {
	return c.TwitchClientID != "" && c.TwitchClientSecret != ""
}
