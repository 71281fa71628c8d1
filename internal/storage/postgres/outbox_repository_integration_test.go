package postgres

import (
	"errors"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/vstore/internal/domain"
)

func TestOutboxRepository_PostgresEnqueueAndDrainFlow(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewOutboxRepository(store)

	placed, err := repo.Enqueue(domain.OutboxMessage{
		AggregateType: "order",
		AggregateID:   "order-1",
		EventType:     "OrderPlaced",
		Payload:       []byte(`{"order_number":"ORD1001","total":125000}`),
	})
	if err != nil {
		t.Fatalf("enqueue placed event: %v", err)
	}
	if placed.ID == "" {
		t.Fatal("expected generated id for outbox message")
	}

	paid, err := repo.Enqueue(domain.OutboxMessage{
		ID:            "outbox-fixed-id",
		AggregateType: "order",
		AggregateID:   "order-2",
		EventType:     "PaymentCompleted",
		Payload:       []byte(`{"order_number":"ORD1002","payment_ref":"pay_1"}`),
	})
	if err != nil {
		t.Fatalf("enqueue paid event: %v", err)
	}
	if paid.ID != "outbox-fixed-id" {
		t.Fatalf("expected fixed id, got %q", paid.ID)
	}

	pending, err := repo.PullPending(0) // default limit path
	if err != nil {
		t.Fatalf("pull pending: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("expected 2 pending messages, got %d", len(pending))
	}
	// выборка идёт в порядке постановки
	if pending[0].ID != placed.ID || pending[1].ID != paid.ID {
		t.Fatalf("unexpected pull order: %s, %s", pending[0].ID, pending[1].ID)
	}

	stats, err := repo.Stats()
	if err != nil {
		t.Fatalf("stats before marks: %v", err)
	}
	if stats.PendingCount != 2 {
		t.Fatalf("expected pending=2 before marks, got %d", stats.PendingCount)
	}
	if stats.OldestPendingAt.IsZero() {
		t.Fatal("expected oldest pending timestamp")
	}

	if err := repo.MarkSent(placed.ID); err != nil {
		t.Fatalf("mark sent: %v", err)
	}
	if err := repo.MarkFailed(paid.ID); err != nil {
		t.Fatalf("mark failed: %v", err)
	}

	after, err := repo.PullPending(10)
	if err != nil {
		t.Fatalf("pull pending after marks: %v", err)
	}
	if len(after) != 0 {
		t.Fatalf("expected no pending after marks, got %d", len(after))
	}

	stats, err = repo.Stats()
	if err != nil {
		t.Fatalf("stats after marks: %v", err)
	}
	if stats.PendingCount != 0 {
		t.Fatalf("expected pending=0 after marks, got %d", stats.PendingCount)
	}
}

func TestOutboxRepository_PostgresEnqueueValidation(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewOutboxRepository(store)

	if _, err := repo.Enqueue(domain.OutboxMessage{
		AggregateID: "order-1",
		Payload:     []byte(`{}`),
	}); err == nil {
		t.Fatal("expected error for missing event type")
	}

	if _, err := repo.Enqueue(domain.OutboxMessage{
		AggregateID: "order-1",
		EventType:   "OrderPlaced",
	}); err == nil {
		t.Fatal("expected error for missing payload")
	}
}

func TestOutboxRepository_PostgresTerminalMarksAreFinal(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewOutboxRepository(store)

	msg, err := repo.Enqueue(domain.OutboxMessage{
		AggregateType: "order",
		AggregateID:   "order-final",
		EventType:     "OrderCancelled",
		Payload:       []byte(`{"order_number":"ORD1003"}`),
	})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	if err := repo.MarkSent(msg.ID); err != nil {
		t.Fatalf("first mark sent: %v", err)
	}
	// повторная пометка уже обработанного сообщения отклоняется
	if err := repo.MarkSent(msg.ID); !errors.Is(err, domain.ErrOutboxPublish) {
		t.Fatalf("expected ErrOutboxPublish on second mark sent, got %v", err)
	}
	if err := repo.MarkFailed(msg.ID); !errors.Is(err, domain.ErrOutboxPublish) {
		t.Fatalf("expected ErrOutboxPublish on mark failed after sent, got %v", err)
	}
}

func TestOutboxRepository_PostgresMissingRows(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewOutboxRepository(store)

	if err := repo.MarkSent("missing-outbox"); !errors.Is(err, domain.ErrOutboxPublish) {
		t.Fatalf("expected ErrOutboxPublish on mark sent missing id, got %v", err)
	}
	if err := repo.MarkFailed("missing-outbox"); !errors.Is(err, domain.ErrOutboxPublish) {
		t.Fatalf("expected ErrOutboxPublish on mark failed missing id, got %v", err)
	}
}

func TestOutboxRepository_PostgresStatsTrackOldestPending(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewOutboxRepository(store)

	first, err := repo.Enqueue(domain.OutboxMessage{
		AggregateType: "order",
		AggregateID:   "order-old",
		EventType:     "OrderPlaced",
		Payload:       []byte(`{"order_number":"ORD1004"}`),
	})
	if err != nil {
		t.Fatalf("enqueue first: %v", err)
	}

	time.Sleep(5 * time.Millisecond)

	if _, err := repo.Enqueue(domain.OutboxMessage{
		AggregateType: "order",
		AggregateID:   "order-new",
		EventType:     "OrderPlaced",
		Payload:       []byte(`{"order_number":"ORD1005"}`),
	}); err != nil {
		t.Fatalf("enqueue second: %v", err)
	}

	stats, err := repo.Stats()
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.PendingCount != 2 {
		t.Fatalf("expected pending=2, got %d", stats.PendingCount)
	}
	if stats.OldestPendingAt.IsZero() {
		t.Fatal("expected non-zero oldest pending time")
	}

	if err := repo.MarkSent(first.ID); err != nil {
		t.Fatalf("mark sent first: %v", err)
	}
}
