package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	HTTPAddr    string
	PostgresDSN string
	AutoMigrate bool
	LogLevel    string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	PolicyPath string

	ReviewDueDays        int
	AggregateMaxAttempts int

	SweepIntervalSeconds int
	SweepBatchSize       int
	SweepLeaseSeconds    int
}

func FromEnv() Config {
	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	return Config{
		HTTPAddr:             addr,
		PostgresDSN:          os.Getenv("POSTGRES_DSN"),
		AutoMigrate:          envBoolDefault("AUTO_MIGRATE", false),
		LogLevel:             envDefault("LOG_LEVEL", "info"),
		RedisAddr:            os.Getenv("REDIS_ADDR"),
		RedisPassword:        os.Getenv("REDIS_PASSWORD"),
		RedisDB:              envNonNegativeIntDefault("REDIS_DB", 0),
		PolicyPath:           os.Getenv("POLICY_PATH"),
		ReviewDueDays:        envNonNegativeIntDefault("REVIEW_DUE_DAYS", 14),
		AggregateMaxAttempts: envIntDefault("AGGREGATE_MAX_ATTEMPTS", 3),
		SweepIntervalSeconds: envIntDefault("SWEEP_INTERVAL_SECONDS", 300),
		SweepBatchSize:       envIntDefault("SWEEP_BATCH_SIZE", 100),
		SweepLeaseSeconds:    envIntDefault("SWEEP_LEASE_SECONDS", 60),
	}
}

func envDefault(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func envIntDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parsed, err := strconv.Atoi(v)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

// envNonNegativeIntDefault is envIntDefault for keys where 0 is meaningful.
func envNonNegativeIntDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parsed, err := strconv.Atoi(v)
	if err != nil || parsed < 0 {
		return def
	}
	return parsed
}

func envBoolDefault(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	switch v {
	case "1", "true", "TRUE", "True", "yes", "YES", "Yes":
		return true
	case "0", "false", "FALSE", "False", "no", "NO", "No":
		return false
	default:
		return def
	}
}

func (c Config) ReviewDueIn() time.Duration {
	if c.ReviewDueDays <= 0 {
		return 0
	}
	return time.Duration(c.ReviewDueDays) * 24 * time.Hour
}

func (c Config) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalSeconds) * time.Second
}

func (c Config) SweepLeaseTTL() time.Duration {
	return time.Duration(c.SweepLeaseSeconds) * time.Second
}
