// Package config loads process configuration from the environment, with an optional .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
)

type Config struct {
	APIBaseURL     string        `env:"API_BASE_URL,default=http://localhost:8000/api/v1"`
	APITimeout     time.Duration `env:"API_TIMEOUT,default=0s"`
	BreakerEnabled bool          `env:"BREAKER_ENABLED,default=false"`

	StoreDriver   string        `env:"STORE_DRIVER,default=sqlite"`
	SQLitePath    string        `env:"SQLITE_PATH,default=storefront.db"`
	RedisAddr     string        `env:"REDIS_ADDR,default=localhost:6379"`
	RedisPassword string        `env:"REDIS_PASSWORD"`
	RedisTTL      time.Duration `env:"REDIS_TTL,default=0s"`
	MongoURI      string        `env:"MONGO_URI,default=mongodb://localhost:27017"`
	MongoDBName   string        `env:"MONGO_DB_NAME,default=storefront"`

	HTTPPort        string        `env:"HTTP_PORT,default=8080"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s"`
	LogMode         string        `env:"LOG_MODE,default=production"`

	ClearDelay           time.Duration `env:"CLEAR_DELAY,default=3s"`
	RequirePaymentFields bool          `env:"REQUIRE_PAYMENT_FIELDS,default=true"`
	Currency             string        `env:"CURRENCY,default=usd"`

	KafkaBrokers string `env:"KAFKA_BROKERS"`
	KafkaTopic   string `env:"KAFKA_TOPIC,default=storefront.events"`

	TraceStdout bool `env:"TRACE_STDOUT,default=false"`
}

// Load reads the given .env files (the default ".env" when none are named) into the process
// environment without overriding variables already set, then decodes Config. Missing files are
// ignored.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	cfg := &Config{}
	if err := envdecode.Decode(cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("decode environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.APIBaseURL == "" {
		return errors.New("API_BASE_URL must not be empty")
	}
	switch c.StoreDriver {
	case "memory", "sqlite", "redis", "mongo":
	default:
		return fmt.Errorf("STORE_DRIVER %q is not one of memory, sqlite, redis, mongo", c.StoreDriver)
	}
	if c.APITimeout < 0 || c.ClearDelay < 0 {
		return errors.New("API_TIMEOUT and CLEAR_DELAY must not be negative")
	}
	return nil
}

// Brokers splits KAFKA_BROKERS on commas. Empty means event forwarding is off.
func (c *Config) Brokers() []string {
	var out []string
	for _, b := range strings.Split(c.KafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}
