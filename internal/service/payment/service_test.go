package payment

import (
	"context"
	"errors"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/vstore/internal/domain"
	"github.com/vladislavdragonenkov/vstore/internal/storage/memory"
)

func testLogger() *log.Entry {
	logger := log.New()
	logger.SetLevel(log.PanicLevel)
	return logger.WithField("component", "payment-test")
}

func seedOrder(t *testing.T, orders domain.OrderRepository, id string, status domain.OrderStatus, payStatus domain.PaymentStatus) domain.Order {
	t.Helper()
	now := time.Now().UTC()
	order := domain.Order{
		ID:          id,
		OrderNumber: "ORD" + id,
		CustomerInfo: domain.CustomerInfo{
			Name:  "Asha Rao",
			Email: "asha@example.com",
			Phone: "+919900112233",
		},
		ShippingAddress: domain.ShippingAddress{
			Area:    "Indiranagar",
			City:    "Bengaluru",
			State:   "Karnataka",
			Pincode: "560038",
		},
		Items: []domain.OrderItem{
			{ProductID: "p1", Name: "Product p1", PriceMinor: 500, Qty: 2},
		},
		TotalMinor:    1000,
		PaymentMethod: domain.PaymentMethodOnline,
		PaymentStatus: payStatus,
		Status:        status,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := orders.Create(order); err != nil {
		t.Fatalf("seed order %s: %v", id, err)
	}
	return order
}

func newTestService(orders domain.OrderRepository) Service {
	return NewService(orders, memory.NewOutboxRepository(), memory.NewTimelineRepository(), testLogger())
}

func TestConfirmSuccess(t *testing.T) {
	orders := memory.NewOrderRepository()
	seedOrder(t, orders, "o-1", domain.OrderStatusPending, domain.PaymentStatusPending)

	svc := newTestService(orders)

	order, err := svc.Confirm(context.Background(), "o-1", "pay_abc", domain.GatewayOutcomeSuccess)
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if order.PaymentStatus != domain.PaymentStatusCompleted {
		t.Fatalf("expected payment completed, got %s", order.PaymentStatus)
	}
	if order.Status != domain.OrderStatusConfirmed {
		t.Fatalf("expected order confirmed, got %s", order.Status)
	}
	if order.PaymentRef != "pay_abc" {
		t.Fatalf("expected payment ref pay_abc, got %q", order.PaymentRef)
	}

	persisted, _ := orders.Get("o-1")
	if persisted.PaymentStatus != domain.PaymentStatusCompleted {
		t.Fatalf("persisted payment status mismatch: %s", persisted.PaymentStatus)
	}
}

func TestConfirmSuccessIdempotent(t *testing.T) {
	orders := memory.NewOrderRepository()
	seedOrder(t, orders, "o-1", domain.OrderStatusPending, domain.PaymentStatusPending)

	svc := newTestService(orders)

	first, err := svc.Confirm(context.Background(), "o-1", "pay_abc", domain.GatewayOutcomeSuccess)
	if err != nil {
		t.Fatalf("first Confirm: %v", err)
	}
	second, err := svc.Confirm(context.Background(), "o-1", "pay_abc", domain.GatewayOutcomeSuccess)
	if err != nil {
		t.Fatalf("repeat Confirm: %v", err)
	}

	if second.PaymentStatus != domain.PaymentStatusCompleted {
		t.Fatalf("expected payment completed after repeat, got %s", second.PaymentStatus)
	}
	if second.Version != first.Version {
		t.Fatalf("repeat confirmation must not touch the order: version %d vs %d", second.Version, first.Version)
	}
}

func TestConfirmFailureKeepsOrderPending(t *testing.T) {
	orders := memory.NewOrderRepository()
	seedOrder(t, orders, "o-1", domain.OrderStatusPending, domain.PaymentStatusPending)

	svc := newTestService(orders)

	order, err := svc.Confirm(context.Background(), "o-1", "pay_abc", domain.GatewayOutcomeFailure)
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if order.PaymentStatus != domain.PaymentStatusFailed {
		t.Fatalf("expected payment failed, got %s", order.PaymentStatus)
	}
	if order.Status != domain.OrderStatusPending {
		t.Fatalf("expected order still pending, got %s", order.Status)
	}
}

func TestConfirmFailureIgnoredForCompletedPayment(t *testing.T) {
	orders := memory.NewOrderRepository()
	seedOrder(t, orders, "o-1", domain.OrderStatusConfirmed, domain.PaymentStatusCompleted)

	svc := newTestService(orders)

	order, err := svc.Confirm(context.Background(), "o-1", "pay_late", domain.GatewayOutcomeFailure)
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if order.PaymentStatus != domain.PaymentStatusCompleted {
		t.Fatalf("completed payment flipped to %s", order.PaymentStatus)
	}
}

func TestConfirmUnknownOrder(t *testing.T) {
	svc := newTestService(memory.NewOrderRepository())

	_, err := svc.Confirm(context.Background(), "ghost", "pay_abc", domain.GatewayOutcomeSuccess)
	if !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
}

func TestConfirmInvalidOutcome(t *testing.T) {
	svc := newTestService(memory.NewOrderRepository())

	_, err := svc.Confirm(context.Background(), "o-1", "pay_abc", domain.GatewayOutcome("maybe"))
	if !errors.Is(err, domain.ErrGatewayOutcomeInvalid) {
		t.Fatalf("expected ErrGatewayOutcomeInvalid, got %v", err)
	}
}

func TestMockGateway(t *testing.T) {
	gateway := NewMockGateway("test-secret")

	order, err := gateway.CreateOrder(context.Background(), 1000, "INR")
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if order.ID == "" || order.Status != "created" {
		t.Fatalf("unexpected gateway order: %+v", order)
	}

	signature := gateway.Sign(order.ID, "pay_1")
	if err := gateway.VerifySignature(order.ID, "pay_1", signature); err != nil {
		t.Fatalf("valid signature rejected: %v", err)
	}
	if err := gateway.VerifySignature(order.ID, "pay_1", "forged"); !errors.Is(err, domain.ErrGatewaySignatureInvalid) {
		t.Fatalf("expected ErrGatewaySignatureInvalid, got %v", err)
	}

	if _, err := gateway.CreateOrder(context.Background(), 0, "INR"); !errors.Is(err, domain.ErrGatewayAmountInvalid) {
		t.Fatalf("expected ErrGatewayAmountInvalid, got %v", err)
	}
}
