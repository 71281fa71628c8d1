package domain_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/vladislavdragonenkov/vstore/internal/domain"
)

func TestInsufficientStockError_Message(t *testing.T) {
	err := &domain.InsufficientStockError{
		ProductID: "prod-1",
		Name:      "MacBook Air M3",
		Requested: 3,
		Available: 1,
	}

	msg := err.Error()
	if !strings.Contains(msg, "MacBook Air M3") {
		t.Fatalf("message must name the product, got %q", msg)
	}
	if !strings.Contains(msg, "requested 3") || !strings.Contains(msg, "available 1") {
		t.Fatalf("message must carry requested/available, got %q", msg)
	}
}

func TestInsufficientStockError_FallsBackToID(t *testing.T) {
	err := &domain.InsufficientStockError{ProductID: "prod-9", Requested: 1, Available: 0}
	if !strings.Contains(err.Error(), "prod-9") {
		t.Fatalf("message must fall back to product id, got %q", err.Error())
	}
}

func TestIsInsufficientStock(t *testing.T) {
	base := &domain.InsufficientStockError{ProductID: "p", Requested: 2, Available: 1}
	wrapped := fmt.Errorf("place order: %w", base)

	if !domain.IsInsufficientStock(wrapped) {
		t.Fatal("wrapped insufficient stock error must be detected")
	}
	if domain.IsInsufficientStock(domain.ErrOrderNotFound) {
		t.Fatal("unrelated error must not be detected as insufficient stock")
	}
}

func TestPersistenceError_Unwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := &domain.PersistenceError{Op: "create order", Err: cause}

	if !errors.Is(err, cause) {
		t.Fatal("persistence error must unwrap to its cause")
	}
	if !strings.Contains(err.Error(), "create order") {
		t.Fatalf("message must name the operation, got %q", err.Error())
	}
}

func TestIsVersionConflict(t *testing.T) {
	wrapped := fmt.Errorf("save: %w", domain.ErrOrderVersionConflict)
	if !domain.IsVersionConflict(wrapped) {
		t.Fatal("wrapped version conflict must be detected")
	}
	if domain.IsVersionConflict(domain.ErrOrderNotFound) {
		t.Fatal("not found must not be detected as version conflict")
	}
}
