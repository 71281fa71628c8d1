package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vladislavdragonenkov/vstore/internal/domain"
)

const (
	otpCodePrefix     = "otp:code:"
	otpAttemptsPrefix = "otp:attempts:"
)

// RedisOTPStore хранит одноразовые коды в Redis с TTL.
// Код и счётчик попыток живут в отдельных ключах с одинаковым временем жизни,
// чтобы счётчик можно было инкрементировать атомарно через INCR.
type RedisOTPStore struct {
	client *redis.Client
}

// NewRedisOTPStore создаёт хранилище поверх готового клиента.
func NewRedisOTPStore(client *redis.Client) *RedisOTPStore {
	return &RedisOTPStore{client: client}
}

// Put сохраняет код с заданным TTL, сбрасывая счётчик попыток.
func (s *RedisOTPStore) Put(ctx context.Context, email string, challenge domain.OTPChallenge, ttl time.Duration) error {
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, otpCodePrefix+email, challenge.Code, ttl)
	pipe.Del(ctx, otpAttemptsPrefix+email)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store otp: %w", err)
	}
	return nil
}

// Get возвращает текущий код и счётчик попыток или ErrOTPNotFound.
func (s *RedisOTPStore) Get(ctx context.Context, email string) (domain.OTPChallenge, error) {
	code, err := s.client.Get(ctx, otpCodePrefix+email).Result()
	if errors.Is(err, redis.Nil) {
		return domain.OTPChallenge{}, domain.ErrOTPNotFound
	}
	if err != nil {
		return domain.OTPChallenge{}, fmt.Errorf("load otp: %w", err)
	}

	ttl, err := s.client.TTL(ctx, otpCodePrefix+email).Result()
	if err != nil {
		return domain.OTPChallenge{}, fmt.Errorf("load otp ttl: %w", err)
	}

	attempts, err := s.client.Get(ctx, otpAttemptsPrefix+email).Int()
	if err != nil && !errors.Is(err, redis.Nil) {
		return domain.OTPChallenge{}, fmt.Errorf("load otp attempts: %w", err)
	}

	return domain.OTPChallenge{
		Code:      code,
		ExpiresAt: time.Now().Add(ttl),
		Attempts:  attempts,
	}, nil
}

// IncrementAttempts фиксирует неудачную попытку и возвращает новый счётчик.
func (s *RedisOTPStore) IncrementAttempts(ctx context.Context, email string) (int, error) {
	attempts, err := s.client.Incr(ctx, otpAttemptsPrefix+email).Result()
	if err != nil {
		return 0, fmt.Errorf("increment otp attempts: %w", err)
	}
	// Счётчик не должен переживать сам код.
	if ttl, ttlErr := s.client.TTL(ctx, otpCodePrefix+email).Result(); ttlErr == nil && ttl > 0 {
		s.client.Expire(ctx, otpAttemptsPrefix+email, ttl)
	}
	return int(attempts), nil
}

// Delete удаляет код и счётчик попыток.
func (s *RedisOTPStore) Delete(ctx context.Context, email string) error {
	if err := s.client.Del(ctx, otpCodePrefix+email, otpAttemptsPrefix+email).Err(); err != nil {
		return fmt.Errorf("delete otp: %w", err)
	}
	return nil
}

var _ domain.OTPStore = (*RedisOTPStore)(nil)
