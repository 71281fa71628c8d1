package app

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

// StorageDriver выбирает реализацию хранилища.
type StorageDriver string

const (
	StorageDriverMemory   StorageDriver = "memory"
	StorageDriverPostgres StorageDriver = "postgres"
)

// Config описывает настройки запуска приложения.
// Все значения можно переопределить переменными окружения с префиксом VSTORE_.
type Config struct {
	HTTPAddr    string
	MetricsAddr string

	StorageDriver       StorageDriver
	PostgresDSN         string
	PostgresAutoMigrate bool

	RedisAddr     string
	RedisPassword string

	KafkaBrokers       string
	KafkaConsumerGroup string

	JWTSecret     string
	TokenTTL      time.Duration
	GatewaySecret string

	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxMaxAttempts  int
	OutboxRetryDelay   time.Duration

	IdempotencyCleanupInterval  time.Duration
	IdempotencyCleanupBatchSize int
}

// DefaultConfig возвращает конфигурацию для локальной разработки.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:    ":8080",
		MetricsAddr: ":9090",

		StorageDriver:       StorageDriverMemory,
		PostgresAutoMigrate: true,

		KafkaConsumerGroup: "vstore-events",

		TokenTTL: 7 * 24 * time.Hour,

		OutboxPollInterval: time.Second,
		OutboxBatchSize:    100,
		OutboxMaxAttempts:  3,
		OutboxRetryDelay:   100 * time.Millisecond,

		IdempotencyCleanupInterval:  time.Minute,
		IdempotencyCleanupBatchSize: 500,
	}
}

// LoadConfig читает .env (если есть) и переменные окружения поверх умолчаний.
func LoadConfig(logger *log.Entry) Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		if logger != nil {
			logger.WithError(err).Debug("no .env file loaded")
		}
	}

	cfg := DefaultConfig()

	setString(&cfg.HTTPAddr, "VSTORE_HTTP_ADDR")
	setString(&cfg.MetricsAddr, "VSTORE_METRICS_ADDR")
	setString(&cfg.PostgresDSN, "VSTORE_POSTGRES_DSN")
	setString(&cfg.RedisAddr, "VSTORE_REDIS_ADDR")
	setString(&cfg.RedisPassword, "VSTORE_REDIS_PASSWORD")
	setString(&cfg.KafkaBrokers, "VSTORE_KAFKA_BROKERS")
	setString(&cfg.KafkaConsumerGroup, "VSTORE_KAFKA_CONSUMER_GROUP")
	setString(&cfg.JWTSecret, "VSTORE_JWT_SECRET")
	setString(&cfg.GatewaySecret, "VSTORE_GATEWAY_SECRET")

	if v := os.Getenv("VSTORE_STORAGE_DRIVER"); v != "" {
		cfg.StorageDriver = StorageDriver(v)
	}
	setBool(&cfg.PostgresAutoMigrate, "VSTORE_POSTGRES_AUTO_MIGRATE")
	setDuration(&cfg.TokenTTL, "VSTORE_TOKEN_TTL")
	setDuration(&cfg.OutboxPollInterval, "VSTORE_OUTBOX_POLL_INTERVAL")
	setInt(&cfg.OutboxBatchSize, "VSTORE_OUTBOX_BATCH_SIZE")
	setInt(&cfg.OutboxMaxAttempts, "VSTORE_OUTBOX_MAX_ATTEMPTS")
	setDuration(&cfg.OutboxRetryDelay, "VSTORE_OUTBOX_RETRY_DELAY")
	setDuration(&cfg.IdempotencyCleanupInterval, "VSTORE_IDEMPOTENCY_CLEANUP_INTERVAL")
	setInt(&cfg.IdempotencyCleanupBatchSize, "VSTORE_IDEMPOTENCY_CLEANUP_BATCH_SIZE")

	return cfg
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			*dst = parsed
		}
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			*dst = parsed
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil && parsed > 0 {
			*dst = parsed
		}
	}
}
