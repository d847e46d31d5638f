package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const validYAML = `
reddit:
  client_id: abc123
  client_secret: s3cret
  username: modbot
  password: hunter2
subreddit: r/lfg
check_interval: 60s
webhook:
  type: discord
  url: "https://discord.example.com/api/webhooks/1/x"
storage:
  driver: sqlite
  path: /tmp/modbot.db
`

func TestLoad_Valid(t *testing.T) {
	cfg := loadFromString(t, validYAML)

	if cfg.Reddit.ClientID != "abc123" {
		t.Errorf("client_id: got %q", cfg.Reddit.ClientID)
	}
	if cfg.Subreddit != "lfg" {
		t.Errorf("subreddit: got %q, want r/ prefix stripped", cfg.Subreddit)
	}
	if cfg.CheckInterval != 60*time.Second {
		t.Errorf("check_interval: got %v", cfg.CheckInterval)
	}
	if !cfg.Storage.Enabled() {
		t.Error("storage should be enabled for sqlite driver")
	}
}

func TestLoad_Defaults(t *testing.T) {
	yaml := `
reddit:
  client_id: abc123
  client_secret: s3cret
  username: modbot
  password: hunter2
subreddit: lfg
webhook:
  url: "https://discord.example.com/api/webhooks/1/x"
`
	cfg := loadFromString(t, yaml)

	if cfg.CheckInterval != DefaultCheckInterval {
		t.Errorf("default check_interval: got %v, want %v", cfg.CheckInterval, DefaultCheckInterval)
	}
	if cfg.Reddit.UserAgent != DefaultUserAgent {
		t.Errorf("default user_agent: got %q", cfg.Reddit.UserAgent)
	}
	if cfg.Webhook.Type != "discord" {
		t.Errorf("default webhook type: got %q", cfg.Webhook.Type)
	}
	if cfg.Webhook.RatePerSec != DefaultWebhookRate {
		t.Errorf("default rate_per_sec: got %v", cfg.Webhook.RatePerSec)
	}
	if !cfg.Signals.Modqueue.Enabled || !cfg.Signals.Modmail.Enabled {
		t.Error("both signals should be enabled by default")
	}
	if cfg.Signals.Modmail.CountKey != DefaultModmailKey {
		t.Errorf("default count_key: got %q", cfg.Signals.Modmail.CountKey)
	}
	if cfg.Storage.Enabled() {
		t.Error("storage should be disabled by default")
	}
}

func TestLoad_AllMissingReportedTogether(t *testing.T) {
	_, err := loadStringErr(t, "check_interval: 30s\n")
	if err == nil {
		t.Fatal("expected error for empty config, got nil")
	}

	var cerr *Error
	if !errors.As(err, &cerr) {
		t.Fatalf("error type = %T, want *config.Error", err)
	}
	for _, want := range []string{
		"reddit.client_id", "reddit.client_secret", "reddit.username",
		"reddit.password", "subreddit", "webhook.url",
	} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
	if len(cerr.Problems) != 6 {
		t.Errorf("problems: got %d (%v), want 6", len(cerr.Problems), cerr.Problems)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		replace [2]string
		want    string
	}{
		{"bad webhook type", [2]string{"type: discord", "type: carrier-pigeon"}, "webhook.type"},
		{"zero interval", [2]string{"check_interval: 60s", "check_interval: 0s"}, "check_interval"},
		{"bad subreddit", [2]string{"subreddit: r/lfg", "subreddit: not a sub!"}, "subreddit"},
		{"sqlite without path", [2]string{"path: /tmp/modbot.db", "path: \"\""}, "storage.path"},
		{"unknown driver", [2]string{"driver: sqlite", "driver: mongo"}, "storage.driver"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			yaml := strings.Replace(validYAML, tc.replace[0], tc.replace[1], 1)
			_, err := loadStringErr(t, yaml)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("error %q does not mention %s", err, tc.want)
			}
		})
	}
}

func TestLoad_NoSignalsEnabled(t *testing.T) {
	yaml := validYAML + `
signals:
  modqueue:
    enabled: false
  modmail:
    enabled: false
`
	_, err := loadStringErr(t, yaml)
	if err == nil || !strings.Contains(err.Error(), "at least one") {
		t.Fatalf("expected signals error, got %v", err)
	}
}

func TestLoad_SecretsFromEnv(t *testing.T) {
	t.Setenv("MODBOT_SECRET", "from-env")
	t.Setenv("MODBOT_PASSWORD", "pw-env")
	t.Setenv("MODBOT_WEBHOOK", "https://hooks.example.com/abc")

	yaml := `
reddit:
  client_id: abc123
  client_secret_env: MODBOT_SECRET
  username: modbot
  password_env: MODBOT_PASSWORD
subreddit: lfg
webhook:
  type: slack
  url_env: MODBOT_WEBHOOK
`
	cfg := loadFromString(t, yaml)
	if got := cfg.Reddit.ClientSecret(); got != "from-env" {
		t.Errorf("ClientSecret(): got %q", got)
	}
	if got := cfg.Reddit.Password(); got != "pw-env" {
		t.Errorf("Password(): got %q", got)
	}
	if got := cfg.Webhook.URL(); got != "https://hooks.example.com/abc" {
		t.Errorf("URL(): got %q", got)
	}
}

func TestLoad_EnvMissingFallsBackToLiteral(t *testing.T) {
	r := RedditConfig{ClientSecretValue: "literal", ClientSecretEnv: "MODBOT_UNSET_VAR"}
	if got := r.ClientSecret(); got != "literal" {
		t.Errorf("ClientSecret(): got %q, want literal", got)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestChanges(t *testing.T) {
	a := loadFromString(t, validYAML)
	b := loadFromString(t, validYAML)
	b.Log.Level = "debug"
	b.CheckInterval = time.Minute * 2
	b.Log.Format = "json"
	b.Webhook.URLValue = "https://discord.example.com/api/webhooks/2/y"

	live, restart := Changes(a, b)
	if strings.Join(live, ",") != "log.level,webhook" {
		t.Errorf("live: got %v", live)
	}
	if strings.Join(restart, ",") != "check_interval,log.format" {
		t.Errorf("restart: got %v", restart)
	}

	live, restart = Changes(a, a)
	if len(live)+len(restart) != 0 {
		t.Errorf("identical configs reported changes: %v %v", live, restart)
	}
}

// loadFromString writes yaml to a temp file and calls Load, failing on error.
func loadFromString(t *testing.T, content string) *Config {
	t.Helper()
	cfg, err := loadStringErr(t, content)
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	return cfg
}

// loadStringErr writes yaml to a temp file and calls Load, returning any error.
func loadStringErr(t *testing.T, content string) (*Config, error) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return Load(path)
}
