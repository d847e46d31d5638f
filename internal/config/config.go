package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultCheckInterval  = 300 * time.Second
	DefaultUserAgent      = "ModAutomation"
	DefaultWebhookType    = "discord"
	DefaultWebhookRate    = 1.0
	DefaultWebhookTimeout = 10 * time.Second
	DefaultModmailKey     = "new"
	DefaultLogLevel       = "info"
	DefaultLogFormat      = "console"
)

var subredditName = regexp.MustCompile(`^[A-Za-z0-9_]{2,21}$`)

// Config is the top-level modbot configuration.
type Config struct {
	Reddit RedditConfig `yaml:"reddit"`

	// Subreddit is the community to monitor, without the "r/" prefix.
	Subreddit string `yaml:"subreddit"`

	// CheckInterval controls how often each signal is polled.
	CheckInterval time.Duration `yaml:"check_interval"`

	Webhook WebhookConfig `yaml:"webhook"`
	Signals SignalsConfig `yaml:"signals"`
	Storage StorageConfig `yaml:"storage"`
	HTTP    HTTPConfig    `yaml:"http"`
	Log     LogConfig     `yaml:"log"`
}

// RedditConfig holds the script-app credentials used for the OAuth password grant.
type RedditConfig struct {
	ClientID string `yaml:"client_id"`

	// ClientSecret may be given literally or, preferably, through the
	// environment variable named by ClientSecretEnv.
	ClientSecretValue string `yaml:"client_secret"`
	ClientSecretEnv   string `yaml:"client_secret_env"`

	Username string `yaml:"username"`

	PasswordValue string `yaml:"password"`
	PasswordEnv   string `yaml:"password_env"`

	UserAgent string `yaml:"user_agent"`

	// BaseURL and TokenURL override the Reddit endpoints. Empty means the
	// public defaults.
	BaseURL  string `yaml:"base_url"`
	TokenURL string `yaml:"token_url"`
}

// ClientSecret returns the client secret, preferring the environment.
func (r RedditConfig) ClientSecret() string {
	return resolve(r.ClientSecretValue, r.ClientSecretEnv)
}

// Password returns the bot account password, preferring the environment.
func (r RedditConfig) Password() string {
	return resolve(r.PasswordValue, r.PasswordEnv)
}

// WebhookConfig defines the alert delivery target.
type WebhookConfig struct {
	// Type is one of: discord | slack | teams | http | log.
	Type string `yaml:"type"`

	URLValue string `yaml:"url"`
	URLEnv   string `yaml:"url_env"`

	// RatePerSec caps outgoing messages. Zero disables throttling.
	RatePerSec float64 `yaml:"rate_per_sec"`

	Timeout time.Duration `yaml:"timeout"`
}

// URL returns the webhook URL, preferring the environment.
func (w WebhookConfig) URL() string {
	return resolve(w.URLValue, w.URLEnv)
}

// SignalsConfig toggles the monitored signals.
type SignalsConfig struct {
	Modqueue SignalConfig `yaml:"modqueue"`
	Modmail  SignalConfig `yaml:"modmail"`
}

// SignalConfig configures one signal.
type SignalConfig struct {
	Enabled bool `yaml:"enabled"`

	// CountKey selects the field of the modmail unread summary to alert on.
	// Ignored for the modqueue.
	CountKey string `yaml:"count_key"`
}

// StorageConfig configures optional persistence of signal state.
type StorageConfig struct {
	// Driver is one of: none | sqlite.
	Driver string `yaml:"driver"`

	// Path is the SQLite database file.
	Path string `yaml:"path"`
}

// Enabled reports whether a persistent driver is configured.
func (s StorageConfig) Enabled() bool {
	d := strings.ToLower(strings.TrimSpace(s.Driver))
	return d != "" && d != "none"
}

// HTTPConfig configures the optional status API.
type HTTPConfig struct {
	// Addr is the listen address, e.g. ":9090". Empty disables the server.
	Addr string `yaml:"addr"`
}

// LogConfig configures the global logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // console | json
}

// Load reads and parses the YAML config file at path.
// Missing optional fields are filled with defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML document.
func Parse(data []byte) (*Config, error) {
	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}
	cfg.Subreddit = strings.TrimPrefix(strings.TrimSpace(cfg.Subreddit), "r/")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		CheckInterval: DefaultCheckInterval,
		Reddit: RedditConfig{
			UserAgent: DefaultUserAgent,
		},
		Webhook: WebhookConfig{
			Type:       DefaultWebhookType,
			RatePerSec: DefaultWebhookRate,
			Timeout:    DefaultWebhookTimeout,
		},
		Signals: SignalsConfig{
			Modqueue: SignalConfig{Enabled: true},
			Modmail:  SignalConfig{Enabled: true, CountKey: DefaultModmailKey},
		},
		Storage: StorageConfig{Driver: "none"},
		Log: LogConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}

// Validate checks every required field and structural constraint and
// reports all problems in a single *Error.
func (c *Config) Validate() error {
	var errs Error

	if strings.TrimSpace(c.Reddit.ClientID) == "" {
		errs.add("reddit.client_id is required")
	}
	if c.Reddit.ClientSecret() == "" {
		errs.add("reddit.client_secret is required (set client_secret or client_secret_env)")
	}
	if strings.TrimSpace(c.Reddit.Username) == "" {
		errs.add("reddit.username is required")
	}
	if c.Reddit.Password() == "" {
		errs.add("reddit.password is required (set password or password_env)")
	}
	if strings.TrimSpace(c.Reddit.UserAgent) == "" {
		errs.add("reddit.user_agent must not be empty")
	}

	switch {
	case c.Subreddit == "":
		errs.add("subreddit is required")
	case !subredditName.MatchString(c.Subreddit):
		errs.add(fmt.Sprintf("subreddit %q is not a valid community name", c.Subreddit))
	}

	if c.CheckInterval <= 0 {
		errs.add("check_interval must be positive")
	}

	switch c.Webhook.Type {
	case "discord", "slack", "teams", "http", "log":
	default:
		errs.add(fmt.Sprintf("webhook.type: unknown type %q", c.Webhook.Type))
	}
	if c.Webhook.URL() == "" {
		errs.add("webhook.url is required (set url or url_env)")
	}
	if c.Webhook.RatePerSec < 0 {
		errs.add("webhook.rate_per_sec must be >= 0")
	}
	if c.Webhook.Timeout <= 0 {
		errs.add("webhook.timeout must be positive")
	}

	if !c.Signals.Modqueue.Enabled && !c.Signals.Modmail.Enabled {
		errs.add("signals: at least one of modqueue or modmail must be enabled")
	}
	if c.Signals.Modmail.Enabled && strings.TrimSpace(c.Signals.Modmail.CountKey) == "" {
		errs.add("signals.modmail.count_key must not be empty")
	}

	switch strings.ToLower(strings.TrimSpace(c.Storage.Driver)) {
	case "", "none":
	case "sqlite":
		if strings.TrimSpace(c.Storage.Path) == "" {
			errs.add("storage.path is required for the sqlite driver")
		}
	default:
		errs.add(fmt.Sprintf("storage.driver: unknown driver %q", c.Storage.Driver))
	}

	if _, err := zerolog.ParseLevel(strings.ToLower(c.Log.Level)); err != nil {
		errs.add(fmt.Sprintf("log.level: %v", err))
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		errs.add(fmt.Sprintf("log.format: unknown format %q", c.Log.Format))
	}

	if len(errs.Problems) > 0 {
		return &errs
	}
	return nil
}

func resolve(literal, env string) string {
	if env != "" {
		if v := strings.TrimSpace(os.Getenv(env)); v != "" {
			return v
		}
	}
	return strings.TrimSpace(literal)
}
