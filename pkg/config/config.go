// Package config loads the core's runtime configuration from environment
// variables: getEnvOrDefault helpers, eager validation, no config files
// beyond the optional .env the binary loads at boot.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/fern-labour/labour-core/internal/pgdb"
)

// QueueConfig controls the command-bus worker pool's polling and claim
// behaviour.
type QueueConfig struct {
	WorkerCount        int
	PollInterval       time.Duration
	PollIntervalJitter time.Duration
	ClaimTimeout       time.Duration
}

// RedisConfig configures the optional aggregate-state and
// incremental-projector caches. Addr == "" disables
// caching entirely — every cache-backed component degrades to a plain
// replay, never an error.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Config is the core process's full runtime configuration.
type Config struct {
	HTTPPort string
	GinMode  string

	Database pgdb.Config
	Queue    QueueConfig
	Redis    RedisConfig
}

// Load reads Config from the environment, applying the same
// getEnvOrDefault-style defaults the database loader also applies,
// then validates eagerly.
func Load() (Config, error) {
	dbCfg, err := pgdb.LoadConfigFromEnv()
	if err != nil {
		return Config{}, fmt.Errorf("database config: %w", err)
	}

	workerCount, err := strconv.Atoi(getEnvOrDefault("QUEUE_WORKER_COUNT", "4"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid QUEUE_WORKER_COUNT: %w", err)
	}
	pollInterval, err := time.ParseDuration(getEnvOrDefault("QUEUE_POLL_INTERVAL", "500ms"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid QUEUE_POLL_INTERVAL: %w", err)
	}
	pollJitter, err := time.ParseDuration(getEnvOrDefault("QUEUE_POLL_JITTER", "250ms"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid QUEUE_POLL_JITTER: %w", err)
	}
	claimTimeout, err := time.ParseDuration(getEnvOrDefault("QUEUE_CLAIM_TIMEOUT", "30s"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid QUEUE_CLAIM_TIMEOUT: %w", err)
	}

	redisDB, err := strconv.Atoi(getEnvOrDefault("REDIS_DB", "0"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := Config{
		HTTPPort: getEnvOrDefault("HTTP_PORT", "8080"),
		GinMode:  getEnvOrDefault("GIN_MODE", "release"),
		Database: dbCfg,
		Queue: QueueConfig{
			WorkerCount:        workerCount,
			PollInterval:       pollInterval,
			PollIntervalJitter: pollJitter,
			ClaimTimeout:       claimTimeout,
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that the configuration is internally consistent.
func (c Config) Validate() error {
	if c.Queue.WorkerCount < 1 {
		return fmt.Errorf("QUEUE_WORKER_COUNT must be at least 1")
	}
	if c.Queue.PollInterval <= 0 {
		return fmt.Errorf("QUEUE_POLL_INTERVAL must be positive")
	}
	return nil
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
