package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/hookrelay/hookrelay/replay"
)

// Config holds every process setting, environment-first.
type Config struct {
	Port     string `mapstructure:"PORT"`
	LogLevel string `mapstructure:"LOG_LEVEL"`

	// Provider names the webhook sender and selects the inbound header
	// family: X-<Provider>-Delivery, X-<Provider>-Event.
	Provider      string `mapstructure:"WEBHOOK_PROVIDER"`
	WebhookSecret string `mapstructure:"WEBHOOK_SECRET"`

	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`

	// File adapter directories, used when REDIS_ADDR is unset.
	ReplayQueueDir string `mapstructure:"REPLAY_QUEUE_DIR"`
	DeadLetterDir  string `mapstructure:"DEAD_LETTER_DIR"`

	ReplayMaxRetryAttempts  int     `mapstructure:"REPLAY_MAX_RETRY_ATTEMPTS"`
	ReplayInitialBackoffSec int     `mapstructure:"REPLAY_INITIAL_BACKOFF_SECONDS"`
	ReplayMaxBackoffSec     int     `mapstructure:"REPLAY_MAX_BACKOFF_SECONDS"`
	ReplayBackoffMultiplier float64 `mapstructure:"REPLAY_BACKOFF_MULTIPLIER"`
	ReplayJitterFactor      float64 `mapstructure:"REPLAY_JITTER_FACTOR"`
	ReplayPollIntervalSec   int     `mapstructure:"REPLAY_POLL_INTERVAL_SECONDS"`
}

// GetConfig loads configuration from an optional .env file and the
// environment, then validates the replay policy eagerly so an invalid
// combination fails at startup, not in a worker loop.
func GetConfig() (*Config, error) {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	// Every key needs a default registered, or viper.Unmarshal will not
	// see env-only values.
	viper.SetDefault("PORT", "8080")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("WEBHOOK_PROVIDER", "GitHub")
	viper.SetDefault("WEBHOOK_SECRET", "")
	viper.SetDefault("REDIS_ADDR", "")
	viper.SetDefault("REDIS_PASSWORD", "")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("REPLAY_QUEUE_DIR", "data/replay-queue")
	viper.SetDefault("DEAD_LETTER_DIR", "data/dead-letter")
	viper.SetDefault("REPLAY_MAX_RETRY_ATTEMPTS", 5)
	viper.SetDefault("REPLAY_INITIAL_BACKOFF_SECONDS", 5)
	viper.SetDefault("REPLAY_MAX_BACKOFF_SECONDS", 300)
	viper.SetDefault("REPLAY_BACKOFF_MULTIPLIER", 2.0)
	viper.SetDefault("REPLAY_JITTER_FACTOR", 0.2)
	viper.SetDefault("REPLAY_POLL_INTERVAL_SECONDS", 10)

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("parsing config data: %w", err)
	}

	if err := config.ReplayOptions().Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// ReplayOptions converts the raw settings into the typed retry policy.
func (c *Config) ReplayOptions() replay.Options {
	return replay.Options{
		MaxRetryAttempts:  c.ReplayMaxRetryAttempts,
		InitialBackoff:    time.Duration(c.ReplayInitialBackoffSec) * time.Second,
		MaxBackoff:        time.Duration(c.ReplayMaxBackoffSec) * time.Second,
		BackoffMultiplier: c.ReplayBackoffMultiplier,
		JitterFactor:      c.ReplayJitterFactor,
		PollInterval:      time.Duration(c.ReplayPollIntervalSec) * time.Second,
	}
}
