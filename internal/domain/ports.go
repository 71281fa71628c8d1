package domain

import (
	"context"
	"time"
)

// GatewayOutcome — результат асинхронной обработки платежа провайдером.
type GatewayOutcome string

const (
	// GatewayOutcomeSuccess — провайдер подтвердил списание.
	GatewayOutcomeSuccess GatewayOutcome = "success"
	// GatewayOutcomeFailure — провайдер отклонил платёж.
	GatewayOutcomeFailure GatewayOutcome = "failure"
)

// GatewayOrder — платёжное поручение, созданное у провайдера до оформления заказа.
type GatewayOrder struct {
	ID          string
	AmountMinor int64
	Currency    string
	Status      string
}

// PaymentGateway описывает взаимодействие с внешним платёжным провайдером.
type PaymentGateway interface {
	// CreateOrder создаёт платёжное поручение на сумму в минимальных единицах.
	CreateOrder(ctx context.Context, amountMinor int64, currency string) (GatewayOrder, error)
	// VerifySignature проверяет подпись callback'а провайдера.
	VerifySignature(gatewayOrderID, gatewayPaymentID, signature string) error
}

// NotificationSender отправляет уведомления покупателю. Все методы best-effort:
// ошибка логируется вызывающей стороной и никогда не прерывает операцию.
type NotificationSender interface {
	// NotifyOrderPlaced отправляет подтверждение оформленного заказа.
	NotifyOrderPlaced(order Order) error
	// NotifyOTP отправляет одноразовый код входа.
	NotifyOTP(email, code string) error
}

// OTPChallenge хранит выданный одноразовый код и счётчик неудачных попыток.
type OTPChallenge struct {
	Code      string
	ExpiresAt time.Time
	Attempts  int
}

// OTPStore — time-expiring хранилище OTP, ключ — email покупателя.
type OTPStore interface {
	Put(ctx context.Context, email string, challenge OTPChallenge, ttl time.Duration) error
	Get(ctx context.Context, email string) (OTPChallenge, error)
	// IncrementAttempts фиксирует неудачную попытку и возвращает новое значение счётчика.
	IncrementAttempts(ctx context.Context, email string) (int, error)
	Delete(ctx context.Context, email string) error
}

// OutboxPublisher публикует события из transactional outbox.
type OutboxPublisher interface {
	// Publish передаёт событие наружу; должен быть идемпотентным.
	Publish(event OutboxMessage) error
}

// OutboxRepository позволяет сохранять события для последующей публикации.
type OutboxRepository interface {
	Enqueue(msg OutboxMessage) (OutboxMessage, error)
	PullPending(limit int) ([]OutboxMessage, error)
	Stats() (OutboxStats, error)
	MarkSent(id string) error
	MarkFailed(id string) error
}

// TimelineRepository хранит события жизненного цикла заказа.
type TimelineRepository interface {
	Append(event TimelineEvent) error
	List(orderID string) ([]TimelineEvent, error)
}

// IdempotencyRepository хранит состояние обработки запросов по idempotency-key.
type IdempotencyRepository interface {
	CreateProcessing(key, requestHash string, ttlAt time.Time) (IdempotencyRecord, error)
	Get(key string) (IdempotencyRecord, error)
	MarkDone(key string, responseBody []byte, httpStatus int) error
	MarkFailed(key string, responseBody []byte, httpStatus int) error
	DeleteExpired(before time.Time, limit int) (int, error)
}

// OutboxMessage хранит данные для публикуемого события.
type OutboxMessage struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// OutboxStats описывает текущее состояние backlog transactional outbox.
type OutboxStats struct {
	PendingCount    int
	OldestPendingAt time.Time
}
