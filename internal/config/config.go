package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port             string
	DBDriver         string
	DBDSN            string
	AutoMigrate      bool
	RainfallProvider string
	SnapshotTTL      time.Duration
	// WorkerInterval is either integer seconds or a cron expression.
	WorkerInterval   string
	AuthEnabled      bool
	AlertWebhookURL  string
	AlertWebhookType string
	BatchWorkers     int
}

// FromEnv builds a Config from RAINFORGE_* environment variables, with sane
// defaults.
func FromEnv() Config {
	return Config{
		Port:             getenv("RAINFORGE_PORT", "8080"),
		DBDriver:         getenv("RAINFORGE_DB_DRIVER", "memory"),
		DBDSN:            getenv("RAINFORGE_DB_DSN", ""),
		AutoMigrate:      getenvBool("RAINFORGE_AUTO_MIGRATE", true),
		RainfallProvider: getenv("RAINFORGE_RAINFALL_PROVIDER", "imd"),
		SnapshotTTL:      getenvDuration("RAINFORGE_SNAPSHOT_TTL", 720*time.Hour),
		WorkerInterval:   getenv("RAINFORGE_WORKER_INTERVAL", "3600"),
		AuthEnabled:      getenvBool("RAINFORGE_AUTH", false),
		AlertWebhookURL:  getenv("RAINFORGE_ALERT_WEBHOOK_URL", ""),
		AlertWebhookType: getenv("RAINFORGE_ALERT_WEBHOOK_TYPE", "generic"),
		BatchWorkers:     getenvInt("RAINFORGE_BATCH_WORKERS", 10),
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getenvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getenvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
