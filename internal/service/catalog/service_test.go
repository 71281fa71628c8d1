package catalog

import (
	"errors"
	"testing"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/vstore/internal/domain"
	"github.com/vladislavdragonenkov/vstore/internal/storage/memory"
)

func testLogger() *log.Entry {
	logger := log.New()
	logger.SetLevel(log.PanicLevel)
	return logger.WithField("component", "catalog-test")
}

func newTestCatalog() (Service, domain.ProductRepository) {
	repo := memory.NewProductRepository()
	return NewService(repo, testLogger()), repo
}

func TestCreateAssignsIDAndDefaults(t *testing.T) {
	svc, _ := newTestCatalog()

	created, err := svc.Create(domain.Product{
		Name:       "Masala Chai",
		PriceMinor: 250,
		Category:   "tea",
		Stock:      10,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID == "" {
		t.Fatal("expected generated product id")
	}
	if created.Status != domain.ProductStatusActive {
		t.Fatalf("expected active status, got %q", created.Status)
	}
	if created.CreatedAt.IsZero() || created.UpdatedAt.IsZero() {
		t.Fatal("expected timestamps to be set")
	}
}

func TestCreateRejectsInvalidProduct(t *testing.T) {
	svc, _ := newTestCatalog()

	_, err := svc.Create(domain.Product{PriceMinor: -1})
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !domain.IsValidation(err) {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	if !errors.Is(err, domain.ErrProductNameRequired) {
		t.Fatalf("expected name error inside aggregate, got %v", err)
	}
	if !errors.Is(err, domain.ErrProductPriceInvalid) {
		t.Fatalf("expected price error inside aggregate, got %v", err)
	}
}

func TestUpdateDoesNotTouchStock(t *testing.T) {
	svc, repo := newTestCatalog()

	created, err := svc.Create(domain.Product{Name: "Green Tea", PriceMinor: 300, Stock: 7})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	created.Name = "Green Tea Premium"
	created.Stock = 999
	updated, err := svc.Update(created)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Name != "Green Tea Premium" {
		t.Fatalf("expected renamed product, got %q", updated.Name)
	}
	if updated.Stock != 7 {
		t.Fatalf("update must not touch stock: got %d", updated.Stock)
	}

	fresh, _ := repo.Get(created.ID)
	if fresh.Stock != 7 {
		t.Fatalf("repo stock changed: %d", fresh.Stock)
	}
}

func TestDeleteRemovesProduct(t *testing.T) {
	svc, repo := newTestCatalog()

	created, err := svc.Create(domain.Product{Name: "Oolong", PriceMinor: 500, Stock: 3})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := svc.Delete(created.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := repo.Get(created.ID); !IsNotFound(err) {
		t.Fatalf("expected product to be gone, got %v", err)
	}

	if err := svc.Delete("ghost"); !IsNotFound(err) {
		t.Fatalf("expected not found for missing product, got %v", err)
	}
}

func TestSetStock(t *testing.T) {
	svc, _ := newTestCatalog()

	created, err := svc.Create(domain.Product{Name: "Filter Coffee", PriceMinor: 400, Stock: 2})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	updated, err := svc.SetStock(created.ID, 25)
	if err != nil {
		t.Fatalf("set stock: %v", err)
	}
	if updated.Stock != 25 {
		t.Fatalf("expected stock 25, got %d", updated.Stock)
	}

	if _, err := svc.SetStock(created.ID, -1); !domain.IsValidation(err) {
		t.Fatalf("expected validation error for negative stock, got %v", err)
	}

	if _, err := svc.SetStock("ghost", 5); !IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}
