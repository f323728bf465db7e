package main

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type config struct {
	DatabaseURL   string
	Migrate       bool
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisKey      string
	Interval      time.Duration
	Grace         time.Duration
	HealthAddr    string
	Once          bool
}

func loadConfig() (config, error) {
	_ = godotenv.Load()

	cfg := config{
		DatabaseURL:   strings.TrimSpace(os.Getenv("DATABASE_URL")),
		Migrate:       getBool("DATABASE_MIGRATE", false),
		RedisAddr:     strings.TrimSpace(os.Getenv("REDIS_ADDR")),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getInt("REDIS_DB", 0),
		RedisKey:      getEnv("REVOCATION_REDIS_KEY", "rvk"),
		Interval:      getDuration("SWEEP_INTERVAL", time.Hour),
		Grace:         getDuration("SWEEP_GRACE", 2*time.Minute),
		HealthAddr:    getEnv("HEALTH_ADDR", ":8081"),
		Once:          getBool("SWEEP_ONCE", false),
	}

	if cfg.DatabaseURL == "" && cfg.RedisAddr == "" {
		return config{}, errors.New("DATABASE_URL or REDIS_ADDR is required")
	}
	if cfg.DatabaseURL != "" && cfg.RedisAddr != "" {
		return config{}, errors.New("set only one of DATABASE_URL and REDIS_ADDR")
	}
	if cfg.Interval <= 0 {
		return config{}, errors.New("SWEEP_INTERVAL must be > 0")
	}
	if cfg.Grace < 0 {
		return config{}, errors.New("SWEEP_GRACE must be >= 0")
	}
	return cfg, nil
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		d, err := time.ParseDuration(v)
		if err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getBool(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}
