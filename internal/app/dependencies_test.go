package app

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	log "github.com/sirupsen/logrus"
)

func testLogger() *log.Entry {
	logger := log.New()
	logger.SetLevel(log.PanicLevel)
	return logger.WithField("component", "app-test")
}

func TestNewDependencies_Memory(t *testing.T) {
	cfg := DefaultConfig()

	deps, err := NewDependencies(context.Background(), cfg, testLogger())
	if err != nil {
		t.Fatalf("new dependencies: %v", err)
	}
	defer deps.Close()

	if deps.Products == nil || deps.Orders == nil || deps.Outbox == nil ||
		deps.Timeline == nil || deps.Idempotency == nil {
		t.Fatal("expected all repositories to be initialized")
	}
	if deps.Store != nil {
		t.Fatal("memory driver must not open postgres")
	}
	if deps.Redis != nil {
		t.Fatal("redis must be nil without VSTORE_REDIS_ADDR")
	}
}

func TestNewDependencies_WithRedis(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := DefaultConfig()
	cfg.RedisAddr = mr.Addr()

	deps, err := NewDependencies(context.Background(), cfg, testLogger())
	if err != nil {
		t.Fatalf("new dependencies: %v", err)
	}
	defer deps.Close()

	if deps.Redis == nil {
		t.Fatal("expected redis client to be initialized")
	}
}

func TestNewDependencies_UnsupportedDriver(t *testing.T) {
	cfg := DefaultConfig()
	cfg.StorageDriver = "cassandra"

	if _, err := NewDependencies(context.Background(), cfg, testLogger()); err == nil {
		t.Fatal("expected error for unsupported storage driver")
	}
}

func TestNewDependencies_RedisUnavailable(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RedisAddr = "127.0.0.1:1"

	deps, err := NewDependencies(context.Background(), cfg, testLogger())
	if err != nil {
		t.Fatalf("unreachable redis must not be fatal: %v", err)
	}
	defer deps.Close()

	if deps.Redis != nil {
		t.Fatal("expected nil redis client when unreachable")
	}
}
