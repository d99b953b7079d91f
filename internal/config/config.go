// Package config provides configuration for the client applications, loaded
// from environment variables with optional .env preload and command-line
// overrides applied by the cmd entrypoints.
package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

func init() {
	// Load .env file if it exists (silent fail if not)
	_ = godotenv.Load()
}

// Config holds all client configuration loaded from environment variables.
type Config struct {
	App      AppConfig
	API      APIConfig
	Realtime RealtimeConfig
	Session  SessionConfig
	Store    StoreConfig
}

// AppConfig holds application-level settings.
type AppConfig struct {
	Name        string `envconfig:"APP_NAME" default:"courseflow"`
	Version     string `envconfig:"APP_VERSION" default:"dev"`
	Environment string `envconfig:"APP_ENV" default:"development"`
	Debug       bool   `envconfig:"APP_DEBUG" default:"false"`
}

// APIConfig holds REST backend settings.
type APIConfig struct {
	BaseURL string        `envconfig:"API_BASE_URL" default:"http://localhost:5000/api"`
	Timeout time.Duration `envconfig:"API_TIMEOUT" default:"15s"`
}

// RealtimeConfig holds websocket push-channel settings.
type RealtimeConfig struct {
	URL string `envconfig:"REALTIME_URL" default:"ws://localhost:5000/socket"`
	// ReconnectAttempts is the retry ceiling after a dropped connection.
	ReconnectAttempts int `envconfig:"REALTIME_RECONNECT_ATTEMPTS" default:"5"`
	// ReconnectDelay is the base delay; attempt n waits n times this value.
	ReconnectDelay    time.Duration `envconfig:"REALTIME_RECONNECT_DELAY" default:"2s"`
	HeartbeatInterval time.Duration `envconfig:"REALTIME_HEARTBEAT_INTERVAL" default:"30s"`
	HeartbeatEnabled  bool          `envconfig:"REALTIME_HEARTBEAT_ENABLED" default:"true"`
}

// SessionConfig holds session monitoring settings.
type SessionConfig struct {
	ValidateInterval time.Duration `envconfig:"SESSION_VALIDATE_INTERVAL" default:"5m"`
	// MaxNetworkFailures bounds the fail-open window: after this many
	// consecutive validation transport failures the session is forced
	// expired. Zero keeps the window unbounded.
	MaxNetworkFailures int `envconfig:"SESSION_MAX_NETWORK_FAILURES" default:"0"`
}

// StoreConfig holds local store settings.
type StoreConfig struct {
	// Path is the JSON file backing the local store. Empty resolves to
	// <app>-store.json in the working directory.
	Path string `envconfig:"STORE_PATH" default:""`
	// WatchInterval is how often the store polls its file for writes made
	// by another process (the cross-tab storage-event analog).
	WatchInterval time.Duration `envconfig:"STORE_WATCH_INTERVAL" default:"2s"`
}

// IsDevelopment returns true if running in development mode.
func (a *AppConfig) IsDevelopment() bool {
	return a.Environment == "development"
}

// FilePath returns the configured store path, or the default derived from the
// application identity (learner, admin).
func (s *StoreConfig) FilePath(app string) string {
	if s.Path != "" {
		return s.Path
	}
	return fmt.Sprintf("%s-store.json", app)
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// MustLoad loads configuration or panics on error.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}
