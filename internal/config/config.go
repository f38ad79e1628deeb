package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const DefaultEnvFile = "configs/.env"

// Config holds the CLI configuration loaded from flags, environment variables and .env files.
type Config struct {
	BaseURL        string        `mapstructure:"aios_base_url"`
	Token          string        `mapstructure:"aios_token"`
	TimeoutSeconds int64         `mapstructure:"aios_timeout_seconds"`
	Timeout        time.Duration `mapstructure:"-"`
	LogLevel       string        `mapstructure:"log_level"`

	HistoryType            string        `mapstructure:"history_type"`
	HistoryPath            string        `mapstructure:"history_path"`
	HistoryTTLSeconds      int64         `mapstructure:"history_ttl_seconds"`
	HistoryCleanupSeconds  int64         `mapstructure:"history_cleanup_interval_seconds"`
	HistoryTTL             time.Duration `mapstructure:"-"`
	HistoryCleanupInterval time.Duration `mapstructure:"-"`

	SinksFile        string `mapstructure:"sinks_file"`
	BatchConcurrency int    `mapstructure:"batch_concurrency"`
}

// flagKeys maps CLI flag names to config keys.
var flagKeys = map[string]string{
	"url":       "aios_base_url",
	"token":     "aios_token",
	"timeout":   "aios_timeout_seconds",
	"log-level": "log_level",
	"history":   "history_type",
	"sinks":     "sinks_file",
}

// Load reads configuration from the env file, environment variables and any
// flags in fs that were explicitly set. fs may be nil.
func Load(envFile string, fs *pflag.FlagSet) (*Config, error) {
	if strings.TrimSpace(envFile) == "" {
		envFile = DefaultEnvFile
	}
	_ = godotenv.Load(envFile)

	v := viper.New()

	v.SetDefault("aios_base_url", "http://localhost:3000")
	v.SetDefault("aios_token", "")
	v.SetDefault("aios_timeout_seconds", 0)
	v.SetDefault("log_level", "warn")
	v.SetDefault("history_type", "bbolt")
	v.SetDefault("history_path", "./data/history.db")
	v.SetDefault("history_ttl_seconds", int64((7*24*time.Hour)/time.Second))
	v.SetDefault("history_cleanup_interval_seconds", int64((12*time.Hour)/time.Second))
	v.SetDefault("sinks_file", "")
	v.SetDefault("batch_concurrency", 4)

	v.AutomaticEnv()

	if fs != nil {
		for name, key := range flagKeys {
			f := fs.Lookup(name)
			if f == nil || !f.Changed {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("bind flag %s: %w", name, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.TimeoutSeconds < 0 {
		return nil, fmt.Errorf("invalid aios_timeout_seconds (must be zero or positive seconds)")
	}
	cfg.Timeout = time.Duration(cfg.TimeoutSeconds) * time.Second

	if cfg.HistoryTTLSeconds <= 0 {
		return nil, fmt.Errorf("invalid history_ttl_seconds (must be positive seconds)")
	}
	if cfg.HistoryCleanupSeconds <= 0 {
		return nil, fmt.Errorf("invalid history_cleanup_interval_seconds (must be positive seconds)")
	}
	cfg.HistoryTTL = time.Duration(cfg.HistoryTTLSeconds) * time.Second
	cfg.HistoryCleanupInterval = time.Duration(cfg.HistoryCleanupSeconds) * time.Second

	if cfg.BatchConcurrency <= 0 {
		return nil, fmt.Errorf("invalid batch_concurrency (must be positive)")
	}

	return &cfg, nil
}

// Redacted returns a copy safe for logging.
func (c Config) Redacted() Config {
	if c.Token != "" {
		c.Token = "***"
	}
	return c
}
