package auth

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"regexp"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/vstore/internal/domain"
)

const (
	otpTTL         = 5 * time.Minute
	maxOTPAttempts = 3
)

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// Service реализует вход по одноразовому коду на email.
type Service interface {
	// SendOTP генерирует код, сохраняет его с TTL и отправляет на email.
	SendOTP(ctx context.Context, email string) error
	// VerifyOTP проверяет код и при успехе выпускает сессионный JWT.
	// Три неверных кода подряд инвалидируют challenge.
	VerifyOTP(ctx context.Context, email, code string) (string, error)
}

type service struct {
	store    domain.OTPStore
	notifier domain.NotificationSender
	tokens   *TokenIssuer
	logger   *log.Entry
}

// NewService создаёт сервис OTP-аутентификации.
func NewService(store domain.OTPStore, notifier domain.NotificationSender, tokens *TokenIssuer, logger *log.Entry) Service {
	if logger == nil {
		logger = log.New().WithField("component", "auth")
	}
	return &service{
		store:    store,
		notifier: notifier,
		tokens:   tokens,
		logger:   logger,
	}
}

func (s *service) SendOTP(ctx context.Context, email string) error {
	if !emailPattern.MatchString(email) {
		return domain.ErrCustomerEmailInvalid
	}

	code, err := generateCode()
	if err != nil {
		return fmt.Errorf("generate otp: %w", err)
	}

	challenge := domain.OTPChallenge{
		Code:      code,
		ExpiresAt: time.Now().Add(otpTTL),
	}
	if err := s.store.Put(ctx, email, challenge, otpTTL); err != nil {
		return err
	}

	if err := s.notifier.NotifyOTP(email, code); err != nil {
		// Код без письма бесполезен: считаем операцию неуспешной.
		return fmt.Errorf("deliver otp: %w", err)
	}

	s.logger.WithField("email", email).Info("otp issued")
	return nil
}

func (s *service) VerifyOTP(ctx context.Context, email, code string) (string, error) {
	challenge, err := s.store.Get(ctx, email)
	if err != nil {
		return "", err
	}
	if challenge.Attempts >= maxOTPAttempts {
		_ = s.store.Delete(ctx, email)
		return "", domain.ErrOTPTooManyAttempts
	}

	if challenge.Code != code {
		attempts, incErr := s.store.IncrementAttempts(ctx, email)
		if incErr != nil {
			return "", incErr
		}
		if attempts >= maxOTPAttempts {
			_ = s.store.Delete(ctx, email)
			s.logger.WithField("email", email).Warn("otp attempts exhausted")
			return "", domain.ErrOTPTooManyAttempts
		}
		return "", domain.ErrOTPInvalid
	}

	// Код одноразовый: успешная проверка его сжигает.
	if err := s.store.Delete(ctx, email); err != nil {
		s.logger.WithError(err).WithField("email", email).Warn("failed to burn otp")
	}

	token, err := s.tokens.Issue(email)
	if err != nil {
		return "", err
	}

	s.logger.WithField("email", email).Info("otp verified, session issued")
	return token, nil
}

// generateCode возвращает криптографически случайный 6-значный код.
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

var _ Service = (*service)(nil)
