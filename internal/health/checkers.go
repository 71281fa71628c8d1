package health

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const pingTimeout = 2 * time.Second

// Pinger — минимальный контракт хранилища для health check.
type Pinger interface {
	Ping(ctx context.Context) error
}

// StoreChecker проверяет доступность хранилища через Ping.
type StoreChecker struct {
	name  string
	store Pinger
}

// NewStoreChecker создаёт проверку хранилища (обычно PostgreSQL).
func NewStoreChecker(name string, store Pinger) *StoreChecker {
	return &StoreChecker{name: name, store: store}
}

// Check выполняет ping с коротким таймаутом.
func (c *StoreChecker) Check() Check {
	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	err := c.store.Ping(ctx)
	duration := time.Since(start)

	if err != nil {
		return Check{
			Name:       c.name,
			Status:     StatusUnhealthy,
			Message:    err.Error(),
			DurationMs: duration.Milliseconds(),
		}
	}
	return Check{
		Name:       c.name,
		Status:     StatusHealthy,
		DurationMs: duration.Milliseconds(),
	}
}

// RedisChecker проверяет доступность Redis.
type RedisChecker struct {
	client *redis.Client
}

// NewRedisChecker создаёт проверку Redis.
func NewRedisChecker(client *redis.Client) *RedisChecker {
	return &RedisChecker{client: client}
}

// Check выполняет PING.
func (c *RedisChecker) Check() Check {
	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	err := c.client.Ping(ctx).Err()
	duration := time.Since(start)

	if err != nil {
		return Check{
			Name:       "redis",
			Status:     StatusUnhealthy,
			Message:    err.Error(),
			DurationMs: duration.Milliseconds(),
		}
	}
	return Check{
		Name:       "redis",
		Status:     StatusHealthy,
		DurationMs: duration.Milliseconds(),
	}
}
