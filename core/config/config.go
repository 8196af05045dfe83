// Package config loads facetbot settings from a YAML file overlaid by
// environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// TelegramConfig holds the bot token and the update delivery mode.
type TelegramConfig struct {
	Token string `yaml:"token" envconfig:"BOT_TOKEN"`
	// AdminIDs may run /stats.
	AdminIDs []int64 `yaml:"admin_ids" envconfig:"TELEGRAM_ADMIN_IDS"`
	RunMode  string  `yaml:"run_mode" envconfig:"TELEGRAM_RUN_MODE"`
	// LongPollTimeoutSeconds defines long polling timeout; 0 -> default
	LongPollTimeoutSeconds int `yaml:"longpoll_timeout_seconds" envconfig:"TELEGRAM_LONGPOLL_TIMEOUT_SECONDS"`
}

// WebhookConfig specifies webhook settings.
type WebhookConfig struct {
	URL    string `yaml:"url" envconfig:"WEBHOOK_URL"`
	Listen string `yaml:"listen" envconfig:"WEBHOOK_LISTEN"`
	Port   int    `yaml:"port" envconfig:"WEBHOOK_PORT"`
}

// LoggingConfig defines logging related configuration.
type LoggingConfig struct {
	Level       string `yaml:"level" envconfig:"LOG_LEVEL"`
	Format      string `yaml:"format" envconfig:"LOG_FORMAT"`
	KeysOrder   string `yaml:"keys_order"`
	DebugSample string `yaml:"debug_sample"`
	Stacks      string `yaml:"stacks"`
	Dir         string `yaml:"dir" envconfig:"LOG_DIR"`
	BotFile     string `yaml:"bot_file"`
	ErrorsFile  string `yaml:"errors_file"`
	// Profile is "debug", "dev" or "prod"; debug profiles default to KV output.
	Profile string `yaml:"profile" envconfig:"LOG_PROFILE"`
}

// DatabaseConfig holds the Postgres connection settings.
type DatabaseConfig struct {
	Host           string `yaml:"host" envconfig:"DB_HOST"`
	Port           string `yaml:"port" envconfig:"DB_PORT"`
	User           string `yaml:"user" envconfig:"DB_USER"`
	Password       string `yaml:"password" envconfig:"DB_PASSWORD"`
	Name           string `yaml:"name" envconfig:"DB_NAME"`
	SSLMode        string `yaml:"sslmode" envconfig:"DB_SSLMODE"`
	MaxConnections int    `yaml:"max_connections" envconfig:"DB_MAX_CONNECTIONS"`
	// MigrationsDir is resolved against the working directory when relative.
	MigrationsDir string `yaml:"migrations_dir" envconfig:"DB_MIGRATIONS_DIR"`
}

// DSN returns a postgres:// URL for the connection settings.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode)
}

// WizardConfig tunes the conversation controller.
type WizardConfig struct {
	// StepsFile points at a YAML step registry; empty selects the built-in one.
	StepsFile         string `yaml:"steps_file" envconfig:"WIZARD_STEPS_FILE"`
	PageSize          int    `yaml:"page_size" envconfig:"WIZARD_PAGE_SIZE"`
	QueryTimeoutMS    int    `yaml:"query_timeout_ms" envconfig:"WIZARD_QUERY_TIMEOUT_MS"`
	ViewTimeoutMS     int    `yaml:"view_timeout_ms" envconfig:"WIZARD_VIEW_TIMEOUT_MS"`
	SessionTTLMinutes int    `yaml:"session_ttl_minutes" envconfig:"WIZARD_SESSION_TTL_MINUTES"`
	MailboxSize       int    `yaml:"mailbox_size" envconfig:"WIZARD_MAILBOX_SIZE"`
}

// QueryTimeout returns the executor deadline.
func (w WizardConfig) QueryTimeout() time.Duration {
	return time.Duration(w.QueryTimeoutMS) * time.Millisecond
}

// ViewTimeout returns the view counter deadline.
func (w WizardConfig) ViewTimeout() time.Duration {
	return time.Duration(w.ViewTimeoutMS) * time.Millisecond
}

// SessionTTL returns how long an idle session is kept.
func (w WizardConfig) SessionTTL() time.Duration {
	return time.Duration(w.SessionTTLMinutes) * time.Minute
}

// ViewsConfig selects the leaf view counter backend.
type ViewsConfig struct {
	Backend  string `yaml:"backend" envconfig:"VIEWS_BACKEND"`
	RedisURL string `yaml:"redis_url" envconfig:"VIEWS_REDIS_URL"`
	RedisKey string `yaml:"redis_key" envconfig:"VIEWS_REDIS_KEY"`
}

// MetricsConfig controls the Prometheus endpoint. An empty Listen disables it.
type MetricsConfig struct {
	Listen string `yaml:"listen" envconfig:"METRICS_LISTEN"`
}

const (
	// RunModeWebhook selects webhook mode for Telegram updates.
	RunModeWebhook = "webhook"
	// RunModeLongpoll selects long-polling mode for Telegram updates.
	RunModeLongpoll = "longpoll"
)

const (
	// UpdateCallback identifies callback updates for rate limit exclusions.
	UpdateCallback = "callback"
	// UpdateMessage identifies message updates for rate limit exclusions.
	UpdateMessage = "message"
)

// Views backends.
const (
	ViewsPostgres = "postgres"
	ViewsRedis    = "redis"
	ViewsMemory   = "memory"
)

// RateLimitConfig throttles each user to one update per interval.
// ExcludeUpdates lists update kinds ("callback", "message") that bypass it.
type RateLimitConfig struct {
	IntervalMS     int      `yaml:"interval_ms" envconfig:"RATE_LIMIT_INTERVAL_MS"`
	ExcludeUpdates []string `yaml:"exclude_updates" envconfig:"RATE_LIMIT_EXCLUDE_UPDATES"`
}

// Config is the whole facetbot configuration file.
type Config struct {
	Telegram  TelegramConfig  `yaml:"telegram"`
	Webhook   WebhookConfig   `yaml:"webhook"`
	Logging   LoggingConfig   `yaml:"logging"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Database  DatabaseConfig  `yaml:"database"`
	Wizard    WizardConfig    `yaml:"wizard"`
	Views     ViewsConfig     `yaml:"views"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// IsAdmin reports whether userID is listed in telegram.admin_ids.
func (c *Config) IsAdmin(userID int64) bool {
	for _, id := range c.Telegram.AdminIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// Load reads path, applies the environment overlay and normalizes the result.
// Only the bot token is required; commands that never talk to Telegram should
// use LoadLenient.
func Load(path string) (*Config, error) {
	cfg, err := LoadLenient(path)
	if err != nil {
		return nil, err
	}
	if cfg.Telegram.Token == "" {
		return nil, fmt.Errorf("telegram token is required")
	}
	return cfg, nil
}

// LoadLenient is Load without the token requirement.
func LoadLenient(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env: %w", err)
	}

	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize validates the configuration and fills defaults.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}
	if err := normalizeTelegram(cfg); err != nil {
		return err
	}

	allowed := map[string]struct{}{
		UpdateCallback: {},
		UpdateMessage:  {},
	}
	for i, v := range cfg.RateLimit.ExcludeUpdates {
		key := strings.ToLower(strings.TrimSpace(v))
		if key == "" {
			continue
		}
		if _, ok := allowed[key]; !ok {
			return fmt.Errorf("invalid rate_limit.exclude_updates value %q; allowed: callback, message", v)
		}
		cfg.RateLimit.ExcludeUpdates[i] = key
	}
	if cfg.RateLimit.IntervalMS < 0 {
		return fmt.Errorf("rate_limit.interval_ms must be >= 0")
	}

	db := &cfg.Database
	defaultString(&db.Host, "localhost")
	defaultString(&db.Port, "5432")
	defaultString(&db.SSLMode, "disable")
	defaultString(&db.MigrationsDir, "migrations")
	if db.MaxConnections <= 0 {
		db.MaxConnections = 10
	}

	w := &cfg.Wizard
	defaultInt(&w.PageSize, 2)
	defaultInt(&w.QueryTimeoutMS, 5000)
	defaultInt(&w.ViewTimeoutMS, 3000)
	defaultInt(&w.SessionTTLMinutes, 60)
	defaultInt(&w.MailboxSize, 16)

	v := &cfg.Views
	v.Backend = strings.ToLower(strings.TrimSpace(v.Backend))
	defaultString(&v.Backend, ViewsPostgres)
	switch v.Backend {
	case ViewsPostgres, ViewsMemory:
	case ViewsRedis:
		if strings.TrimSpace(v.RedisURL) == "" {
			return fmt.Errorf("views.redis_url is required when views.backend is 'redis'")
		}
	default:
		return fmt.Errorf("invalid views.backend %q; allowed: postgres, redis, memory", v.Backend)
	}
	return nil
}

func normalizeTelegram(cfg *Config) error {
	rm := strings.ToLower(strings.TrimSpace(cfg.Telegram.RunMode))
	if rm == "" || rm == "polling" {
		rm = RunModeLongpoll
	}
	switch rm {
	case RunModeWebhook:
		if strings.TrimSpace(cfg.Webhook.URL) == "" {
			return fmt.Errorf("webhook.url is required when telegram.run_mode is 'webhook'")
		}
		if strings.TrimSpace(cfg.Webhook.Listen) == "" {
			return fmt.Errorf("webhook.listen is required when telegram.run_mode is 'webhook'")
		}
		if cfg.Webhook.Port <= 0 {
			return fmt.Errorf("webhook.port must be > 0 when telegram.run_mode is 'webhook'")
		}
	case RunModeLongpoll:
		if cfg.Telegram.LongPollTimeoutSeconds < 0 {
			return fmt.Errorf("telegram.longpoll_timeout_seconds must be >= 0")
		}
	default:
		return fmt.Errorf("invalid telegram.run_mode %q; allowed: webhook, longpoll", cfg.Telegram.RunMode)
	}
	cfg.Telegram.RunMode = rm
	return nil
}

func defaultString(p *string, def string) {
	if strings.TrimSpace(*p) == "" {
		*p = def
	}
}

func defaultInt(p *int, def int) {
	if *p <= 0 {
		*p = def
	}
}
