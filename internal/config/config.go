package config

import (
	"os"
	"strconv"
	"strings"
)

// Config centralizes runtime settings for the API and the report worker.
type Config struct {
	Port string

	DatabaseURL string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisStream   string
	RedisDLQ      string
	RedisGroup    string
	RedisConsumer string

	UserServiceURL        string
	ProjectTaskServiceURL string
	CommentServiceURL     string
	AttachmentServiceURL  string
	ActivityLogServiceURL string
	UpstreamTimeoutMS     int

	JobTimeoutMS       int
	FanOutConcurrency  int
	CacheTTLSeconds    int
	CacheMaxEntries    int
	QueueMaxAttempts   int
	QueueBufferSize    int

	CORSAllowedOrigins []string

	RateLimitRPS   float64
	RateLimitBurst int

	WorkerEnabled bool
}

func Load() Config {
	return Config{
		Port: getEnv("PORT", "8080"),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		RedisStream:   getEnv("REDIS_STREAM", "report_jobs"),
		RedisDLQ:      getEnv("REDIS_DLQ_STREAM", "report_jobs_dlq"),
		RedisGroup:    getEnv("REDIS_GROUP", "report_workers"),
		RedisConsumer: getEnv("REDIS_CONSUMER", "reporting-1"),

		UserServiceURL:        getEnv("USER_SERVICE_URL", "http://localhost:5001"),
		ProjectTaskServiceURL: getEnv("PROJECT_TASK_SERVICE_URL", "http://localhost:5002"),
		CommentServiceURL:     getEnv("COMMENT_SERVICE_URL", "http://localhost:5003"),
		AttachmentServiceURL:  getEnv("ATTACHMENT_SERVICE_URL", "http://localhost:5004"),
		ActivityLogServiceURL: getEnv("ACTIVITY_LOG_SERVICE_URL", "http://localhost:5005"),
		UpstreamTimeoutMS:     getEnvInt("UPSTREAM_TIMEOUT_MS", 10000),

		JobTimeoutMS:      getEnvInt("JOB_TIMEOUT_MS", 120000),
		FanOutConcurrency: getEnvInt("FANOUT_CONCURRENCY", 10),
		CacheTTLSeconds:   getEnvInt("CACHE_TTL_SECONDS", 3600),
		CacheMaxEntries:   getEnvInt("CACHE_MAX_ENTRIES", 1000),
		QueueMaxAttempts:  getEnvInt("QUEUE_MAX_ATTEMPTS", 3),
		QueueBufferSize:   getEnvInt("QUEUE_BUFFER_SIZE", 512),

		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}),

		RateLimitRPS:   getEnvFloat("RATE_LIMIT_RPS", 20),
		RateLimitBurst: getEnvInt("RATE_LIMIT_BURST", 40),

		WorkerEnabled: getEnvBool("WORKER_ENABLED", true),
	}
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvList(key string, fallback []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		result = append(result, trimmed)
	}
	if len(result) == 0 {
		return fallback
	}
	return result
}
