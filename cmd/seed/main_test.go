package main

import (
	"os"
	"os/exec"
	"testing"

	"github.com/vladislavdragonenkov/vstore/internal/domain"
	"github.com/vladislavdragonenkov/vstore/internal/storage/memory"
)

func TestDemoProducts(t *testing.T) {
	products := demoProducts()
	if len(products) == 0 {
		t.Fatal("demo catalog must not be empty")
	}

	names := make(map[string]struct{}, len(products))
	for _, product := range products {
		if product.Name == "" {
			t.Fatal("demo product without a name")
		}
		if _, ok := names[product.Name]; ok {
			t.Fatalf("duplicate demo product name: %s", product.Name)
		}
		names[product.Name] = struct{}{}

		if product.PriceMinor <= 0 {
			t.Fatalf("demo product %q has non-positive price", product.Name)
		}
		if product.Stock <= 0 {
			t.Fatalf("demo product %q has non-positive stock", product.Name)
		}
		if product.Category == "" {
			t.Fatalf("demo product %q has no category", product.Name)
		}
	}
}

func TestSeedProducts(t *testing.T) {
	repo := memory.NewProductRepository()

	created, skipped, err := seedProducts(repo, demoProducts())
	if err != nil {
		t.Fatalf("seedProducts failed: %v", err)
	}
	if created != len(demoProducts()) || skipped != 0 {
		t.Fatalf("unexpected first run counters: created=%d skipped=%d", created, skipped)
	}

	stored, err := repo.List(domain.ProductFilter{})
	if err != nil {
		t.Fatalf("list products failed: %v", err)
	}
	if len(stored) != len(demoProducts()) {
		t.Fatalf("unexpected stored count: %d", len(stored))
	}
	for _, product := range stored {
		if product.ID == "" {
			t.Fatalf("seeded product %q has no id", product.Name)
		}
		if product.Status != domain.ProductStatusActive {
			t.Fatalf("seeded product %q is not active", product.Name)
		}
	}

	// повторный прогон идемпотентен
	created, skipped, err = seedProducts(repo, demoProducts())
	if err != nil {
		t.Fatalf("second seedProducts failed: %v", err)
	}
	if created != 0 || skipped != len(demoProducts()) {
		t.Fatalf("unexpected second run counters: created=%d skipped=%d", created, skipped)
	}
}

func TestMainMissingDSNExits(t *testing.T) {
	if os.Getenv("SEED_TEST_EXIT") == "1" {
		_ = os.Unsetenv("VSTORE_POSTGRES_DSN")
		main()
		return
	}

	cmd := exec.Command(os.Args[0], "-test.run=TestMainMissingDSNExits")
	cmd.Env = append(os.Environ(), "SEED_TEST_EXIT=1")
	err := cmd.Run()
	if err == nil {
		t.Fatal("expected subprocess to exit with error")
	}
	if exitErr, ok := err.(*exec.ExitError); !ok || exitErr.ExitCode() == 0 {
		t.Fatalf("expected non-zero exit code, got %v", err)
	}
}
