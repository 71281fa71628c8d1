package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"sync"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/vstore/internal/domain"
)

// MockGateway — in-process замена внешнего платёжного провайдера.
// Создаёт платёжные поручения и проверяет подписи по той же HMAC-схеме,
// что и провайдер: SHA256 от "<gateway order id>|<gateway payment id>".
type MockGateway struct {
	secret []byte

	mu     sync.Mutex
	orders map[string]domain.GatewayOrder
}

// NewMockGateway создаёт шлюз с заданным секретом подписи.
func NewMockGateway(secret string) *MockGateway {
	return &MockGateway{
		secret: []byte(secret),
		orders: make(map[string]domain.GatewayOrder),
	}
}

// CreateOrder создаёт платёжное поручение на указанную сумму.
func (g *MockGateway) CreateOrder(ctx context.Context, amountMinor int64, currency string) (domain.GatewayOrder, error) {
	if err := ctx.Err(); err != nil {
		return domain.GatewayOrder{}, err
	}
	if amountMinor <= 0 {
		return domain.GatewayOrder{}, domain.ErrGatewayAmountInvalid
	}

	order := domain.GatewayOrder{
		ID:          "order_" + uuid.NewString(),
		AmountMinor: amountMinor,
		Currency:    currency,
		Status:      "created",
	}

	g.mu.Lock()
	g.orders[order.ID] = order
	g.mu.Unlock()

	return order, nil
}

// VerifySignature проверяет HMAC-подпись callback'а.
func (g *MockGateway) VerifySignature(gatewayOrderID, gatewayPaymentID, signature string) error {
	expected := g.Sign(gatewayOrderID, gatewayPaymentID)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return domain.ErrGatewaySignatureInvalid
	}
	return nil
}

// Sign вычисляет подпись для пары идентификаторов. Экспортирован для тестов
// и сидирования демо-данных.
func (g *MockGateway) Sign(gatewayOrderID, gatewayPaymentID string) string {
	mac := hmac.New(sha256.New, g.secret)
	mac.Write([]byte(gatewayOrderID + "|" + gatewayPaymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

var _ domain.PaymentGateway = (*MockGateway)(nil)
