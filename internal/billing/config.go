package billing

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config controls engine tick cadence and batch sizes.
type Config struct {
	TickInterval       time.Duration
	TickTimeout        time.Duration
	BatchSize          int
	MaxCyclesPerClient int
	LockTTL            time.Duration
}

func DefaultConfig() Config {
	return Config{
		TickInterval:       time.Minute,
		TickTimeout:        30 * time.Second,
		BatchSize:          50,
		MaxCyclesPerClient: 12,
		LockTTL:            2 * time.Minute,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.TickInterval <= 0 {
		c.TickInterval = defaults.TickInterval
	}
	if c.TickTimeout <= 0 {
		c.TickTimeout = defaults.TickTimeout
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaults.BatchSize
	}
	if c.MaxCyclesPerClient <= 0 {
		c.MaxCyclesPerClient = defaults.MaxCyclesPerClient
	}
	if c.LockTTL <= 0 {
		c.LockTTL = defaults.LockTTL
	}
	return c
}

func ProvideConfig() Config {
	cfg := DefaultConfig()
	if v := envDuration("BILLING_TICK_INTERVAL"); v > 0 {
		cfg.TickInterval = v
	}
	if v := envDuration("BILLING_TICK_TIMEOUT"); v > 0 {
		cfg.TickTimeout = v
	}
	if v := envInt("BILLING_BATCH_SIZE"); v > 0 {
		cfg.BatchSize = v
	}
	if v := envInt("BILLING_MAX_CYCLES_PER_CLIENT"); v > 0 {
		cfg.MaxCyclesPerClient = v
	}
	if v := envDuration("BILLING_LOCK_TTL"); v > 0 {
		cfg.LockTTL = v
	}
	return cfg
}

func envDuration(key string) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return 0
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return parsed
}

func envInt(key string) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return 0
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return parsed
}
