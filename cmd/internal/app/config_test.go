package app

import (
	"testing"
	"time"
)

func TestLoadConfig_Defaults(t *testing.T) {
	// Not parallel: mutates process env.
	for _, key := range []string{
		"NESTCHAT_API_BASE_URL", "NESTCHAT_WS_URL", "NESTCHAT_TOKEN",
		"NESTCHAT_USER_ID", "NESTCHAT_LOG_LEVEL", "NESTCHAT_LOG_PRETTY",
		"NESTCHAT_HTTP_TIMEOUT", "NESTCHAT_METRICS_ADDR",
		"NESTCHAT_PAGE_SIZE", "NESTCHAT_SNAPSHOT_INTERVAL",
	} {
		t.Setenv(key, "")
	}

	cfg := LoadConfig()
	if cfg.LogLevel != "info" || cfg.LogPretty {
		t.Fatalf("log defaults wrong: %q pretty=%v", cfg.LogLevel, cfg.LogPretty)
	}
	if cfg.HTTPTimeout != 15*time.Second {
		t.Fatalf("http timeout=%v", cfg.HTTPTimeout)
	}
	if cfg.PageSize != 20 {
		t.Fatalf("page size=%d", cfg.PageSize)
	}
	if cfg.WSURL != "" {
		t.Fatalf("ws url should stay empty without a base url, got %q", cfg.WSURL)
	}
}

func TestLoadConfig_DerivesWSURL(t *testing.T) {
	t.Setenv("NESTCHAT_API_BASE_URL", "https://api.nest.example")
	t.Setenv("NESTCHAT_WS_URL", "")

	cfg := LoadConfig()
	if cfg.WSURL != "wss://api.nest.example/ws" {
		t.Fatalf("derived ws url=%q", cfg.WSURL)
	}

	// An explicit gateway url wins over derivation.
	t.Setenv("NESTCHAT_WS_URL", "wss://push.nest.example/v1")
	cfg = LoadConfig()
	if cfg.WSURL != "wss://push.nest.example/v1" {
		t.Fatalf("explicit ws url lost: %q", cfg.WSURL)
	}
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	valid := Config{APIBaseURL: "https://api.nest.example", UserID: 100}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	if err := (Config{UserID: 100}).Validate(); err == nil {
		t.Fatalf("missing base url accepted")
	}
	if err := (Config{APIBaseURL: "https://x"}).Validate(); err == nil {
		t.Fatalf("missing user id accepted")
	}
}

func TestEnvHelpers(t *testing.T) {
	t.Setenv("NESTCHAT_TEST_STR", "  hello  ")
	t.Setenv("NESTCHAT_TEST_BOOL", "true")
	t.Setenv("NESTCHAT_TEST_INT", "42")
	t.Setenv("NESTCHAT_TEST_INT_BAD", "-3")
	t.Setenv("NESTCHAT_TEST_DUR", "90s")

	if got := EnvString("NESTCHAT_TEST_STR", "d"); got != "hello" {
		t.Fatalf("EnvString=%q", got)
	}
	if got := EnvString("NESTCHAT_TEST_MISSING", "d"); got != "d" {
		t.Fatalf("EnvString default=%q", got)
	}
	if !EnvBool("NESTCHAT_TEST_BOOL", false) {
		t.Fatalf("EnvBool parse failed")
	}
	if got := EnvInt("NESTCHAT_TEST_INT", 1); got != 42 {
		t.Fatalf("EnvInt=%d", got)
	}
	if got := EnvInt("NESTCHAT_TEST_INT_BAD", 7); got != 7 {
		t.Fatalf("EnvInt should fall back for non-positive input, got %d", got)
	}
	if got := EnvInt64("NESTCHAT_TEST_INT", 1); got != 42 {
		t.Fatalf("EnvInt64=%d", got)
	}
	if got := EnvDuration("NESTCHAT_TEST_DUR", time.Second); got != 90*time.Second {
		t.Fatalf("EnvDuration=%v", got)
	}
	if got := EnvDuration("NESTCHAT_TEST_MISSING", time.Second); got != time.Second {
		t.Fatalf("EnvDuration default=%v", got)
	}
}
