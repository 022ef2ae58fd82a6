// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type HTTPConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type AdminConfig struct {
	JWTSecret   string        `yaml:"jwt_secret"`
	TokenTTL    time.Duration `yaml:"token_ttl"`
	ExportLimit int           `yaml:"export_limit"` // exports per window per caller
	ExportEvery time.Duration `yaml:"export_every"`
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	MaxConns int32  `yaml:"max_conns"`
}

type RedisConfig struct {
	URL         string        `yaml:"url"`
	Password    string        `yaml:"password"`
	DB          int           `yaml:"db"`
	TTL         time.Duration `yaml:"ttl"`
	PoolSize    int           `yaml:"pool_size"`
	DialTimeout time.Duration `yaml:"dial_timeout"`
}

type GatewayConfig struct {
	Name      string        `yaml:"name"`
	BaseURL   string        `yaml:"base_url"`
	KeyID     string        `yaml:"key_id"`
	KeySecret string        `yaml:"key_secret"`
	Timeout   time.Duration `yaml:"timeout"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

type WebhookConfig struct {
	Secret       string `yaml:"secret"`
	MaxBodyBytes int64  `yaml:"max_body_bytes"`
}

type LifecycleConfig struct {
	Schedule         string        `yaml:"schedule"` // cron spec, e.g. "@every 1h" or "0 * * * *"
	LockTTL          time.Duration `yaml:"lock_ttl"`
	BatchSize        int           `yaml:"batch_size"`
	WarnDays         []int         `yaml:"warn_days"`
	DefaultGraceDays int           `yaml:"default_grace_days"`
	NotifyWorkers    int           `yaml:"notify_workers"`
	NotifyLocale     string        `yaml:"notify_locale"`
}

type ReconcilerConfig struct {
	Enabled    bool          `yaml:"enabled"`
	Interval   time.Duration `yaml:"interval"`
	StaleAfter time.Duration `yaml:"stale_after"`
	BatchSize  int           `yaml:"batch_size"`
}

type KafkaConfig struct {
	Brokers  []string `yaml:"brokers"`
	Topic    string   `yaml:"topic"`
	ClientID string   `yaml:"client_id"`
}

type DirectoryConfig struct {
	CacheSize int           `yaml:"cache_size"`
	CacheTTL  time.Duration `yaml:"cache_ttl"`
}

type Config struct {
	Log        LogConfig        `yaml:"log"`
	HTTP       HTTPConfig       `yaml:"http"`
	Admin      AdminConfig      `yaml:"admin"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Gateway    GatewayConfig    `yaml:"gateway"`
	Webhook    WebhookConfig    `yaml:"webhook"`
	Lifecycle  LifecycleConfig  `yaml:"lifecycle"`
	Reconciler ReconcilerConfig `yaml:"reconciler"`
	Kafka      KafkaConfig      `yaml:"kafka"`
	Directory  DirectoryConfig  `yaml:"directory"`

	Runtime RuntimeConfig `yaml:"-"`
}

// Load reads the YAML file at path, applies env overrides and defaults, then validates.
func Load(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b, dev)
}

// Parse is Load without the file read.
func Parse(b []byte, dev bool) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	applyEnv(&cfg)
	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.Runtime.Dev = dev
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("BILLING_WEBHOOK_SECRET"); v != "" {
		cfg.Webhook.Secret = v
	}
	if v := os.Getenv("BILLING_GATEWAY_KEY_SECRET"); v != "" {
		cfg.Gateway.KeySecret = v
	}
	if v := os.Getenv("BILLING_ADMIN_JWT_SECRET"); v != "" {
		cfg.Admin.JWTSecret = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = ":8080"
	}
	cfg.HTTP.ReadTimeout = orDefault(cfg.HTTP.ReadTimeout, 10*time.Second)
	cfg.HTTP.WriteTimeout = orDefault(cfg.HTTP.WriteTimeout, 30*time.Second)
	cfg.HTTP.RequestTimeout = orDefault(cfg.HTTP.RequestTimeout, 15*time.Second)
	cfg.HTTP.ShutdownTimeout = orDefault(cfg.HTTP.ShutdownTimeout, 10*time.Second)

	cfg.Admin.TokenTTL = orDefault(cfg.Admin.TokenTTL, 30*time.Minute)
	if cfg.Admin.ExportLimit <= 0 {
		cfg.Admin.ExportLimit = 10
	}
	cfg.Admin.ExportEvery = orDefault(cfg.Admin.ExportEvery, time.Minute)

	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}
	cfg.Redis.TTL = orDefault(cfg.Redis.TTL, time.Hour)
	cfg.Redis.DialTimeout = orDefault(cfg.Redis.DialTimeout, 5*time.Second)

	if cfg.Gateway.Name == "" {
		cfg.Gateway.Name = "gateway"
	}
	cfg.Gateway.Timeout = orDefault(cfg.Gateway.Timeout, 10*time.Second)
	cfg.Gateway.TokenTTL = orDefault(cfg.Gateway.TokenTTL, 15*time.Minute)

	if cfg.Webhook.MaxBodyBytes <= 0 {
		cfg.Webhook.MaxBodyBytes = 1 << 20
	}

	if cfg.Lifecycle.Schedule == "" {
		cfg.Lifecycle.Schedule = "@every 1h"
	}
	cfg.Lifecycle.LockTTL = orDefault(cfg.Lifecycle.LockTTL, 30*time.Minute)
	if cfg.Lifecycle.BatchSize <= 0 {
		cfg.Lifecycle.BatchSize = 500
	}
	if len(cfg.Lifecycle.WarnDays) == 0 {
		cfg.Lifecycle.WarnDays = []int{3, 1}
	}
	if cfg.Lifecycle.NotifyWorkers <= 0 {
		cfg.Lifecycle.NotifyWorkers = 4
	}
	if cfg.Lifecycle.NotifyLocale == "" {
		cfg.Lifecycle.NotifyLocale = "en"
	}

	cfg.Reconciler.Interval = orDefault(cfg.Reconciler.Interval, 5*time.Minute)
	cfg.Reconciler.StaleAfter = orDefault(cfg.Reconciler.StaleAfter, 30*time.Minute)
	if cfg.Reconciler.BatchSize <= 0 {
		cfg.Reconciler.BatchSize = 200
	}

	if cfg.Kafka.Topic == "" {
		cfg.Kafka.Topic = "subscription-notifications"
	}
	if cfg.Kafka.ClientID == "" {
		cfg.Kafka.ClientID = "billing-reconciler"
	}

	if cfg.Directory.CacheSize <= 0 {
		cfg.Directory.CacheSize = 1024
	}
	cfg.Directory.CacheTTL = orDefault(cfg.Directory.CacheTTL, 10*time.Minute)
}

// Validate checks the fields the process cannot run without.
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return errors.New("database.url is required")
	}
	if c.Webhook.Secret == "" {
		return errors.New("webhook.secret is required")
	}
	if c.Gateway.BaseURL == "" {
		return errors.New("gateway.base_url is required")
	}
	for _, d := range c.Lifecycle.WarnDays {
		if d <= 0 {
			return fmt.Errorf("lifecycle.warn_days: %d must be positive", d)
		}
	}
	if c.Lifecycle.DefaultGraceDays < 0 {
		return errors.New("lifecycle.default_grace_days must not be negative")
	}
	return nil
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}
