// Package config loads and validates watcher configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Kumzy/doctolib-watcher/internal/watch"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Watcher  WatcherConfig  `mapstructure:"watcher"`
	Fetch    FetchConfig    `mapstructure:"fetch"`
	Database DatabaseConfig `mapstructure:"database"`
	Notifier NotifierConfig `mapstructure:"notifier"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Entities []watch.Entity `mapstructure:"entities"`
}

// ServerConfig controls the status/metrics HTTP server.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// WatcherConfig governs the polling loop and retention policy.
type WatcherConfig struct {
	HorizonDays    int           `mapstructure:"horizon_days"`
	WindowDays     int           `mapstructure:"window_days"`
	PollInterval   time.Duration `mapstructure:"poll_interval"`
	RecoverBackoff time.Duration `mapstructure:"recover_backoff"`
	Retention      time.Duration `mapstructure:"retention"`
}

// FetchConfig configures the upstream HTTP fetch layer.
type FetchConfig struct {
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxConns   int           `mapstructure:"max_conns"`
	JitterMin  time.Duration `mapstructure:"jitter_min"`
	JitterMax  time.Duration `mapstructure:"jitter_max"`
	PerHostRPS float64       `mapstructure:"per_host_rps"`
	UserAgent  string        `mapstructure:"user_agent"`
}

// DatabaseConfig controls access to the durable dedup store.
type DatabaseConfig struct {
	Provider string `mapstructure:"provider"`
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// NotifierConfig selects and configures the notification channel.
type NotifierConfig struct {
	Provider string        `mapstructure:"provider"`
	Webhook  WebhookConfig `mapstructure:"webhook"`
	PubSub   PubSubConfig  `mapstructure:"pubsub"`
}

// WebhookConfig holds the outbound webhook endpoint settings.
type WebhookConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// PubSubConfig holds metadata for publish-subscribe notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicID   string `mapstructure:"topic_id"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SLOTWATCHER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	cfg.materializeIdentifiers()

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("watcher.horizon_days", 100)
	v.SetDefault("watcher.window_days", 15)
	v.SetDefault("watcher.poll_interval", "300s")
	v.SetDefault("watcher.recover_backoff", "60s")
	v.SetDefault("watcher.retention", "720h")
	v.SetDefault("fetch.timeout", "30s")
	v.SetDefault("fetch.max_conns", 10)
	v.SetDefault("fetch.jitter_min", "2s")
	v.SetDefault("fetch.jitter_max", "5s")
	v.SetDefault("fetch.per_host_rps", 0.0)
	v.SetDefault("fetch.user_agent",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10.15; rv:138.0) Gecko/20100101 Firefox/138.0")
	v.SetDefault("database.provider", "postgres")
	v.SetDefault("database.table", "sent_slots")
	v.SetDefault("database.max_conns", 4)
	v.SetDefault("notifier.provider", "noop")
	v.SetDefault("notifier.webhook.timeout", "10s")
	v.SetDefault("logging.development", false)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Watcher.HorizonDays <= 0 {
		return fmt.Errorf("watcher.horizon_days must be > 0")
	}
	if c.Watcher.WindowDays <= 0 {
		return fmt.Errorf("watcher.window_days must be > 0")
	}
	if c.Watcher.PollInterval <= 0 {
		return fmt.Errorf("watcher.poll_interval must be > 0")
	}
	if c.Watcher.RecoverBackoff <= 0 {
		return fmt.Errorf("watcher.recover_backoff must be > 0")
	}
	if c.Watcher.Retention <= 0 {
		return fmt.Errorf("watcher.retention must be > 0")
	}
	if c.Fetch.Timeout <= 0 {
		return fmt.Errorf("fetch.timeout must be > 0")
	}
	if c.Fetch.JitterMin < 0 || c.Fetch.JitterMax < c.Fetch.JitterMin {
		return fmt.Errorf("fetch jitter bounds must satisfy 0 <= jitter_min <= jitter_max")
	}
	if len(c.Entities) == 0 {
		return fmt.Errorf("at least one entity must be configured")
	}
	for i, e := range c.Entities {
		if e.QueryTemplate == "" {
			return fmt.Errorf("entities[%d].query_template is required", i)
		}
	}
	switch c.Database.Provider {
	case "postgres":
		if c.Database.DSN == "" {
			return fmt.Errorf("database provider is 'postgres' but database.dsn is not set")
		}
	case "noop":
	default:
		return fmt.Errorf("unknown database provider: %s", c.Database.Provider)
	}
	switch c.Notifier.Provider {
	case "webhook":
		if c.Notifier.Webhook.URL == "" {
			return fmt.Errorf("notifier provider is 'webhook' but notifier.webhook.url is not set")
		}
	case "pubsub":
		if c.Notifier.PubSub.ProjectID == "" || c.Notifier.PubSub.TopicID == "" {
			return fmt.Errorf("notifier provider is 'pubsub' but project_id or topic_id is not set")
		}
	case "noop":
	default:
		return fmt.Errorf("unknown notifier provider: %s", c.Notifier.Provider)
	}
	return nil
}

// materializeIdentifiers fills in missing entity identifiers, derived
// deterministically from each entity's query template.
func (c *Config) materializeIdentifiers() {
	for i := range c.Entities {
		if c.Entities[i].Identifier == "" {
			c.Entities[i].Identifier = watch.DeriveIdentifier(c.Entities[i].QueryTemplate)
		}
	}
}
