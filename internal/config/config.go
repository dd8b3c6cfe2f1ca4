// Package config loads service configuration from the environment.
// Provider definitions live elsewhere (see configstore); this covers the
// process-level settings only.
package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Addr          string
	LogLevel      string
	ProvidersFile string
	DatabaseURL   string
	RedisURL      string
	OTLPEndpoint  string
	AWSRegion     string
	EncryptionKey string

	// Breaker tuning
	FailureThreshold int
	FailureWindow    time.Duration
	Cooldown         time.Duration
	MaxCooldown      time.Duration

	// Routing
	AttemptTimeout time.Duration
	CacheTTL       time.Duration

	// Async generation
	QueueURL         string
	ResponseQueueURL string
	WorkerCount      int

	// Operator notifications
	SNSTopicARN string

	// Graceful shutdown
	ShutdownTimeout time.Duration
}

func Load() (*Config, error) {
	cfg := &Config{
		Addr:             getEnv("ADDR", ":8080"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		ProvidersFile:    getEnv("PROVIDERS_FILE", "providers.yaml"),
		DatabaseURL:      getEnv("DATABASE_URL", ""),
		RedisURL:         getEnv("REDIS_URL", ""),
		OTLPEndpoint:     getEnv("OTLP_ENDPOINT", ""),
		AWSRegion:        getEnv("AWS_REGION", ""),
		EncryptionKey:    getEnv("ENCRYPTION_KEY", ""),
		FailureThreshold: getIntEnv("BREAKER_FAILURE_THRESHOLD", 3),
		FailureWindow:    getDurationEnv("BREAKER_FAILURE_WINDOW", time.Minute),
		Cooldown:         getDurationEnv("BREAKER_COOLDOWN", 30*time.Second),
		MaxCooldown:      getDurationEnv("BREAKER_MAX_COOLDOWN", 10*time.Minute),
		AttemptTimeout:   getDurationEnv("ATTEMPT_TIMEOUT", 60*time.Second),
		CacheTTL:         getDurationEnv("CACHE_TTL", 5*time.Minute),
		QueueURL:         getEnv("QUEUE_URL", ""),
		ResponseQueueURL: getEnv("RESPONSE_QUEUE_URL", ""),
		WorkerCount:      getIntEnv("WORKER_COUNT", 2),
		SNSTopicARN:      getEnv("SNS_TOPIC_ARN", ""),
		ShutdownTimeout:  getDurationEnv("SHUTDOWN_TIMEOUT", 30*time.Second),
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		if seconds, err := strconv.Atoi(value); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return defaultValue
}
