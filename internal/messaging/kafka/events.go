package kafka

import (
	"strings"
	"time"
)

// EventType определяет тип события
type EventType string

const (
	// Order события
	EventTypeOrderPlaced        EventType = "order.placed"
	EventTypeOrderConfirmed     EventType = "order.confirmed"
	EventTypeOrderStatusChanged EventType = "order.status_changed"
	EventTypeOrderCancelled     EventType = "order.cancelled"

	// Payment события
	EventTypePaymentCompleted EventType = "payment.completed"
	EventTypePaymentFailed    EventType = "payment.failed"

	// Stock события
	EventTypeStockReserved   EventType = "stock.reserved"
	EventTypeStockRolledBack EventType = "stock.rolled_back"
)

// Topics для Kafka
const (
	TopicOrderEvents     = "vstore.order.events"
	TopicPaymentEvents   = "vstore.payment.events"
	TopicDeadLetterQueue = "vstore.dlq" // Dead Letter Queue для failed messages
)

// TopicForEventType возвращает штатный топик для типа события.
// Stock-события идут вместе с событиями заказов: они порождаются
// оформлением и откатом резервов. Второй результат false означает
// чужое или неизвестное событие.
func TopicForEventType(eventType EventType) (string, bool) {
	raw := string(eventType)
	switch {
	case strings.HasPrefix(raw, "order."), strings.HasPrefix(raw, "stock."):
		return TopicOrderEvents, true
	case strings.HasPrefix(raw, "payment."):
		return TopicPaymentEvents, true
	default:
		return "", false
	}
}

// KnownTopic сообщает, принадлежит ли топик шине событий vstore.
func KnownTopic(topic string) bool {
	switch topic {
	case TopicOrderEvents, TopicPaymentEvents, TopicDeadLetterQueue:
		return true
	default:
		return false
	}
}

// Kafka headers для retry логики
const (
	HeaderRetryCount    = "x-retry-count"
	HeaderOriginalTopic = "x-original-topic"
	HeaderErrorMessage  = "x-error-message"
	HeaderFailedAt      = "x-failed-at"
)

// OrderEvent представляет событие заказа
type OrderEvent struct {
	EventType   EventType              `json:"event_type"`
	OrderID     string                 `json:"order_id"`
	OrderNumber string                 `json:"order_number"`
	Status      string                 `json:"status"`
	Timestamp   time.Time              `json:"timestamp"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

// PaymentEvent представляет событие оплаты
type PaymentEvent struct {
	EventType  EventType `json:"event_type"`
	OrderID    string    `json:"order_id"`
	GatewayRef string    `json:"gateway_ref,omitempty"`
	Status     string    `json:"status"`
	Timestamp  time.Time `json:"timestamp"`
}

// NewOrderEvent создает новое событие заказа
func NewOrderEvent(eventType EventType, orderID, orderNumber, status string, metadata map[string]interface{}) *OrderEvent {
	return &OrderEvent{
		EventType:   eventType,
		OrderID:     orderID,
		OrderNumber: orderNumber,
		Status:      status,
		Timestamp:   time.Now(),
		Metadata:    metadata,
	}
}

// NewPaymentEvent создает новое событие оплаты
func NewPaymentEvent(eventType EventType, orderID, gatewayRef, status string) *PaymentEvent {
	return &PaymentEvent{
		EventType:  eventType,
		OrderID:    orderID,
		GatewayRef: gatewayRef,
		Status:     status,
		Timestamp:  time.Now(),
	}
}
