package integration

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/vladislavdragonenkov/vstore/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/vstore/internal/health"
	"github.com/vladislavdragonenkov/vstore/internal/httpx"
	"github.com/vladislavdragonenkov/vstore/internal/service/catalog"
	"github.com/vladislavdragonenkov/vstore/internal/service/checkout"
	ordersvc "github.com/vladislavdragonenkov/vstore/internal/service/orders"
	"github.com/vladislavdragonenkov/vstore/internal/service/payment"
	"github.com/vladislavdragonenkov/vstore/internal/storage/memory"
)

type muteNotifier struct{}

func (muteNotifier) NotifyOrderPlaced(domain.Order) error { return nil }
func (muteNotifier) NotifyOTP(string, string) error       { return nil }

// CheckoutLifecycleTestSuite тестирует полный жизненный цикл заказа через HTTP API.
type CheckoutLifecycleTestSuite struct {
	suite.Suite
	router   *chi.Mux
	products domain.ProductRepository
	orders   domain.OrderRepository
	outbox   domain.OutboxRepository
	timeline domain.TimelineRepository
	checkout checkout.Service
	gateway  *payment.MockGateway
}

func (s *CheckoutLifecycleTestSuite) SetupTest() {
	baseLogger := log.New()
	baseLogger.SetLevel(log.WarnLevel) // Уменьшаем шум в тестах
	logger := baseLogger.WithField("component", "integration-test")

	s.products = memory.NewProductRepository()
	s.orders = memory.NewOrderRepository()
	s.outbox = memory.NewOutboxRepository()
	s.timeline = memory.NewTimelineRepository()
	idem := memory.NewIdempotencyRepository()

	s.checkout = checkout.NewServiceWithoutMetrics(s.products, s.orders, s.outbox, s.timeline, muteNotifier{}, logger)
	ordersService := ordersvc.NewService(s.orders, s.outbox, s.timeline, logger)
	catalogSvc := catalog.NewService(s.products, logger)
	s.gateway = payment.NewMockGateway("integration-secret")
	paymentsSvc := payment.NewService(s.orders, s.outbox, s.timeline, logger)

	s.router = httpx.NewRouter(httpx.RouterDeps{
		Orders:   httpx.NewOrdersHandler(s.checkout, ordersService, idem, logger),
		Products: httpx.NewProductsHandler(catalogSvc, logger),
		Payments: httpx.NewPaymentsHandler(s.gateway, s.checkout, paymentsSvc, logger),
		Health:   healthcheck.NewHandler("integration"),
	})
}

func (s *CheckoutLifecycleTestSuite) TearDownTest() {
	s.checkout.Wait()
}

func (s *CheckoutLifecycleTestSuite) seedProduct(id string, priceMinor int64, stock int32) {
	now := time.Now().UTC()
	require.NoError(s.T(), s.products.Create(domain.Product{
		ID:         id,
		Name:       "Product " + id,
		PriceMinor: priceMinor,
		Category:   "tea",
		Stock:      stock,
		Status:     domain.ProductStatusActive,
		CreatedAt:  now,
		UpdatedAt:  now,
	}))
}

func (s *CheckoutLifecycleTestSuite) do(method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(s.T(), err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *CheckoutLifecycleTestSuite) decode(w *httptest.ResponseRecorder) map[string]any {
	var body map[string]any
	require.NoError(s.T(), json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func orderPayload(productID string, qty int, paymentMethod string) map[string]any {
	return map[string]any{
		"items": []map[string]any{
			{"productId": productID, "requestedQuantity": qty},
		},
		"customerInfo": map[string]any{
			"name":  "Asha Rao",
			"email": "asha@example.com",
			"phone": "9876543210",
		},
		"shippingAddress": map[string]any{
			"area":        "Indiranagar",
			"city":        "Bengaluru",
			"state":       "Karnataka",
			"pincode":     "560038",
			"addressType": "home",
		},
		"paymentMethod": paymentMethod,
	}
}

func (s *CheckoutLifecycleTestSuite) stockOf(productID string) int32 {
	product, err := s.products.Get(productID)
	require.NoError(s.T(), err)
	return product.Stock
}

func (s *CheckoutLifecycleTestSuite) orderStatus(orderID string) domain.OrderStatus {
	order, err := s.orders.Get(orderID)
	require.NoError(s.T(), err)
	return order.Status
}

func (s *CheckoutLifecycleTestSuite) TestCODOrderLifecycle() {
	s.seedProduct("chai-1", 24900, 10)

	// 1. Оформляем заказ с идемпотентным ключом
	headers := map[string]string{"Idempotency-Key": "it-cod-1"}
	resp := s.do(http.MethodPost, "/api/orders", orderPayload("chai-1", 2, "cod"), headers)
	require.Equal(s.T(), http.StatusCreated, resp.Code)

	body := s.decode(resp)
	require.Equal(s.T(), true, body["success"])
	order := body["order"].(map[string]any)
	orderID := order["id"].(string)
	require.NotEmpty(s.T(), orderID)
	require.NotEmpty(s.T(), order["orderNumber"])
	require.Equal(s.T(), "pending", order["status"])
	require.Equal(s.T(), "pending", order["paymentStatus"])
	require.Equal(s.T(), float64(49800), order["totalMinor"])
	require.Equal(s.T(), int32(8), s.stockOf("chai-1"))

	// 2. Повтор того же запроса не резервирует остаток повторно
	replay := s.do(http.MethodPost, "/api/orders", orderPayload("chai-1", 2, "cod"), headers)
	require.Equal(s.T(), http.StatusCreated, replay.Code)
	require.JSONEq(s.T(), resp.Body.String(), replay.Body.String())
	require.Equal(s.T(), int32(8), s.stockOf("chai-1"))

	// 3. Событие размещения попало в outbox
	pending, err := s.outbox.PullPending(10)
	require.NoError(s.T(), err)
	require.NotEmpty(s.T(), pending)
	require.Equal(s.T(), orderID, pending[0].AggregateID)

	// 4. Проводим заказ по статусной машине
	for _, step := range []struct {
		status   string
		tracking string
	}{
		{status: "confirmed"},
		{status: "processing"},
		{status: "shipped", tracking: "TRK-IT-1"},
		{status: "delivered"},
	} {
		update := map[string]any{"status": step.status}
		if step.tracking != "" {
			update["trackingNumber"] = step.tracking
		}
		w := s.do(http.MethodPatch, "/api/orders/"+orderID+"/status", update, nil)
		require.Equal(s.T(), http.StatusOK, w.Code, "transition to %s", step.status)
	}
	require.Equal(s.T(), domain.OrderStatusDelivered, s.orderStatus(orderID))

	stored, err := s.orders.Get(orderID)
	require.NoError(s.T(), err)
	require.Equal(s.T(), "TRK-IT-1", stored.TrackingNumber)

	// 5. Timeline отражает размещение и все переходы
	events, err := s.timeline.List(orderID)
	require.NoError(s.T(), err)
	require.GreaterOrEqual(s.T(), len(events), 5)

	// 6. Доставленный заказ нельзя отменить
	w := s.do(http.MethodPatch, "/api/orders/"+orderID+"/status",
		map[string]any{"status": "cancelled", "reason": "too late"}, nil)
	require.Equal(s.T(), http.StatusConflict, w.Code)
}

func (s *CheckoutLifecycleTestSuite) TestOnlinePaymentLifecycle() {
	s.seedProduct("coffee-1", 42900, 5)

	// 1. Создаём платёжное поручение
	resp := s.do(http.MethodPost, "/api/payments/create-order",
		map[string]any{"amountMinor": 85800, "currency": "inr"}, nil)
	require.Equal(s.T(), http.StatusCreated, resp.Code)

	body := s.decode(resp)
	gatewayOrder := body["gatewayOrder"].(map[string]any)
	gatewayOrderID := gatewayOrder["id"].(string)
	require.NotEmpty(s.T(), gatewayOrderID)
	require.Equal(s.T(), "INR", gatewayOrder["currency"])

	// 2. Подтверждаем оплату корректной подписью
	paymentID := "pay_it_1"
	verify := s.do(http.MethodPost, "/api/payments/verify", map[string]any{
		"gatewayOrderId":   gatewayOrderID,
		"gatewayPaymentId": paymentID,
		"signature":        s.gateway.Sign(gatewayOrderID, paymentID),
		"order":            orderPayload("coffee-1", 2, "online"),
	}, nil)
	require.Equal(s.T(), http.StatusCreated, verify.Code)

	verifyBody := s.decode(verify)
	order := verifyBody["order"].(map[string]any)
	require.Equal(s.T(), "completed", order["paymentStatus"])
	require.Equal(s.T(), "online", order["paymentMethod"])
	require.Equal(s.T(), paymentID, order["paymentRef"])
	require.Equal(s.T(), int32(3), s.stockOf("coffee-1"))

	// 3. Поддельная подпись не создаёт заказ и не трогает остаток
	forged := s.do(http.MethodPost, "/api/payments/verify", map[string]any{
		"gatewayOrderId":   gatewayOrderID,
		"gatewayPaymentId": "pay_it_2",
		"signature":        "deadbeef",
		"order":            orderPayload("coffee-1", 1, "online"),
	}, nil)
	require.Equal(s.T(), http.StatusBadRequest, forged.Code)
	require.Equal(s.T(), int32(3), s.stockOf("coffee-1"))
}

func (s *CheckoutLifecycleTestSuite) TestInsufficientStockRollsBackReservations() {
	s.seedProduct("tea-a", 10000, 5)
	s.seedProduct("tea-b", 20000, 1)

	payload := orderPayload("tea-a", 2, "cod")
	payload["items"] = []map[string]any{
		{"productId": "tea-a", "requestedQuantity": 2},
		{"productId": "tea-b", "requestedQuantity": 3},
	}

	resp := s.do(http.MethodPost, "/api/orders", payload, nil)
	require.Equal(s.T(), http.StatusConflict, resp.Code)

	body := s.decode(resp)
	require.Equal(s.T(), false, body["success"])
	require.Equal(s.T(), "tea-b", body["productId"])
	require.Equal(s.T(), float64(3), body["requested"])
	require.Equal(s.T(), float64(1), body["available"])

	// Резерв первой позиции откатился, заказа нет
	require.Equal(s.T(), int32(5), s.stockOf("tea-a"))
	require.Equal(s.T(), int32(1), s.stockOf("tea-b"))

	orders, err := s.orders.List(domain.OrderFilter{})
	require.NoError(s.T(), err)
	require.Empty(s.T(), orders)
}

func (s *CheckoutLifecycleTestSuite) TestCancellationKeepsReservedStock() {
	s.seedProduct("tea-c", 15000, 4)

	resp := s.do(http.MethodPost, "/api/orders", orderPayload("tea-c", 1, "cod"), nil)
	require.Equal(s.T(), http.StatusCreated, resp.Code)
	orderID := s.decode(resp)["order"].(map[string]any)["id"].(string)
	require.Equal(s.T(), int32(3), s.stockOf("tea-c"))

	w := s.do(http.MethodPatch, "/api/orders/"+orderID+"/status",
		map[string]any{"status": "cancelled", "reason": "customer changed mind"}, nil)
	require.Equal(s.T(), http.StatusOK, w.Code)

	require.Equal(s.T(), domain.OrderStatusCancelled, s.orderStatus(orderID))
	// Отмена не возвращает остаток на полку
	require.Equal(s.T(), int32(3), s.stockOf("tea-c"))

	events, err := s.timeline.List(orderID)
	require.NoError(s.T(), err)
	hasCancel := false
	for _, event := range events {
		if event.Reason == "customer changed mind" {
			hasCancel = true
		}
	}
	require.True(s.T(), hasCancel, "timeline should contain the cancellation reason")
}

func TestCheckoutLifecycle(t *testing.T) {
	suite.Run(t, new(CheckoutLifecycleTestSuite))
}
