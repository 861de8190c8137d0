package app

import (
	"errors"
	"strings"
	"time"
)

// Config contains all runtime configuration loaded from environment variables.
type Config struct {
	// APIBaseURL is the chat service origin, e.g. "https://api.nest.example".
	APIBaseURL string

	// WSURL is the push gateway endpoint. When empty it is derived from
	// APIBaseURL ("/ws" on the matching ws/wss scheme).
	WSURL string

	// Token is the opaque bearer credential for both REST and push.
	Token string

	// UserID identifies the session user; the store needs it to classify
	// inbound vs outbound messages.
	UserID int64

	LogLevel  string
	LogPretty bool

	HTTPTimeout time.Duration

	// MetricsAddr serves /metrics and /healthz when non-empty.
	MetricsAddr string

	// PageSize is the default page size for list fetches.
	PageSize int

	// SnapshotEvery controls how often the smoke loop logs a store snapshot.
	SnapshotEvery time.Duration
}

// LoadConfig loads Config from environment variables with defaults.
func LoadConfig() Config {
	cfg := Config{
		APIBaseURL: EnvString("NESTCHAT_API_BASE_URL", ""),
		WSURL:      EnvString("NESTCHAT_WS_URL", ""),
		Token:      EnvString("NESTCHAT_TOKEN", ""),
		UserID:     EnvInt64("NESTCHAT_USER_ID", 0),

		LogLevel:  EnvString("NESTCHAT_LOG_LEVEL", "info"),
		LogPretty: EnvBool("NESTCHAT_LOG_PRETTY", false),

		HTTPTimeout: EnvDuration("NESTCHAT_HTTP_TIMEOUT", 15*time.Second),

		MetricsAddr: EnvString("NESTCHAT_METRICS_ADDR", ""),

		PageSize:      EnvInt("NESTCHAT_PAGE_SIZE", 20),
		SnapshotEvery: EnvDuration("NESTCHAT_SNAPSHOT_INTERVAL", 30*time.Second),
	}

	if cfg.WSURL == "" && cfg.APIBaseURL != "" {
		cfg.WSURL = wsBaseURL(cfg.APIBaseURL) + "/ws"
	}
	return cfg
}

// Validate rejects configurations the client cannot run with.
func (c Config) Validate() error {
	if strings.TrimSpace(c.APIBaseURL) == "" {
		return errors.New("config: NESTCHAT_API_BASE_URL is required")
	}
	if c.UserID <= 0 {
		return errors.New("config: NESTCHAT_USER_ID is required")
	}
	return nil
}
