package app

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/IBM/sarama"

	"github.com/vladislavdragonenkov/vstore/internal/messaging/kafka"
)

func TestBusEventHandler(t *testing.T) {
	handler := newBusEventHandler(kafkaTestLogger())

	orderEvent, err := json.Marshal(kafka.NewOrderEvent(kafka.EventTypeOrderPlaced, "order-1", "ORD1", "pending", nil))
	if err != nil {
		t.Fatalf("marshal order event: %v", err)
	}
	if err := handler(context.Background(), &sarama.ConsumerMessage{
		Topic: kafka.TopicOrderEvents,
		Value: orderEvent,
	}); err != nil {
		t.Fatalf("order event failed: %v", err)
	}

	paymentEvent, err := json.Marshal(kafka.NewPaymentEvent(kafka.EventTypePaymentFailed, "order-1", "pay_1", "failed"))
	if err != nil {
		t.Fatalf("marshal payment event: %v", err)
	}
	if err := handler(context.Background(), &sarama.ConsumerMessage{
		Topic: kafka.TopicPaymentEvents,
		Value: paymentEvent,
	}); err != nil {
		t.Fatalf("payment event failed: %v", err)
	}
}

func TestBusEventHandlerRejectsMalformedAndForeign(t *testing.T) {
	handler := newBusEventHandler(kafkaTestLogger())

	// Нечитаемое тело должно вернуть ошибку, чтобы сообщение ушло в DLQ.
	if err := handler(context.Background(), &sarama.ConsumerMessage{
		Topic: kafka.TopicOrderEvents,
		Value: []byte("not-json"),
	}); err == nil {
		t.Fatal("expected error for malformed order event")
	}

	if err := handler(context.Background(), &sarama.ConsumerMessage{
		Topic: "someone.elses.topic",
		Value: []byte("{}"),
	}); err == nil {
		t.Fatal("expected error for foreign topic")
	}
}

func TestStartEventsConsumerWithoutBrokers(t *testing.T) {
	// Без брокеров и producer'а подписка не создаётся и не паникует.
	cfg := DefaultConfig()
	startEventsConsumer(context.Background(), cfg, nil, kafkaTestLogger())
}
