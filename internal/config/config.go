package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is assembled from the environment with a .env fallback for local
// development.
type Config struct {
	HTTPPort  string
	MySQLDSN  string
	RedisAddr string

	KafkaBrokers []string
	KafkaTopic   string

	WorkerCount   int
	QueueSize     int
	LockTimeout   time.Duration
	SweepInterval time.Duration

	JWTSecret     string
	AllowOrigins  []string
	PurchaseRPS   float64
	PurchaseBurst int
}

func Load() Config {
	// Missing .env is fine in containers; real env wins either way.
	_ = godotenv.Load()

	return Config{
		HTTPPort:  getEnv("HTTP_PORT", ":8080"),
		MySQLDSN:  getEnv("MYSQL_DSN", "root:root@tcp(localhost:3306)/flashsale?parseTime=true"),
		RedisAddr: getEnv("REDIS_ADDR", "localhost:6379"),

		KafkaBrokers: splitEnv("KAFKA_BROKERS", ""),
		KafkaTopic:   getEnv("KAFKA_TOPIC", "flash-sale-events"),

		WorkerCount:   getEnvInt("WORKER_COUNT", 10),
		QueueSize:     getEnvInt("QUEUE_SIZE", 10000),
		LockTimeout:   getEnvDuration("LOCK_TIMEOUT", 2*time.Second),
		SweepInterval: getEnvDuration("SWEEP_INTERVAL", time.Second),

		JWTSecret:     getEnv("JWT_SECRET", "dev-secret"),
		AllowOrigins:  splitEnv("ALLOW_ORIGINS", "*"),
		PurchaseRPS:   getEnvFloat("PURCHASE_RPS", 500),
		PurchaseBurst: getEnvInt("PURCHASE_BURST", 1000),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func splitEnv(key, fallback string) []string {
	raw := getEnv(key, fallback)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
