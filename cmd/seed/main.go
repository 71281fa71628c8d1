package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/vstore/internal/domain"
	"github.com/vladislavdragonenkov/vstore/internal/storage/postgres"
)

const defaultTimeout = 30 * time.Second

// demoProducts возвращает стартовый каталог чайно-кофейной лавки.
func demoProducts() []domain.Product {
	return []domain.Product{
		{
			Name:               "Masala Chai Blend",
			Description:        "Assam tea with cardamom, ginger and cinnamon",
			PriceMinor:         24900,
			OriginalPriceMinor: 29900,
			Category:           "tea",
			Stock:              120,
			Featured:           true,
		},
		{
			Name:        "Darjeeling First Flush",
			Description: "Light spring harvest from high-altitude gardens",
			PriceMinor:  54900,
			Category:    "tea",
			Stock:       40,
		},
		{
			Name:        "Nilgiri Green Tea",
			Description: "Whole-leaf green tea, mild and grassy",
			PriceMinor:  31900,
			Category:    "tea",
			Stock:       75,
		},
		{
			Name:               "Monsooned Malabar Coffee",
			Description:        "Medium roast beans with low acidity",
			PriceMinor:         42900,
			OriginalPriceMinor: 47900,
			Category:           "coffee",
			Stock:              90,
			Featured:           true,
		},
		{
			Name:        "Filter Coffee Powder",
			Description: "South Indian style coffee-chicory blend, 80:20",
			PriceMinor:  19900,
			Category:    "coffee",
			Stock:       200,
		},
		{
			Name:        "Araku Valley Arabica",
			Description: "Single-origin washed arabica, light roast",
			PriceMinor:  49900,
			Category:    "coffee",
			Stock:       60,
		},
		{
			Name:        "Brass Strainer",
			Description: "Hand-finished brass tea strainer",
			PriceMinor:  15900,
			Category:    "accessories",
			Stock:       35,
		},
		{
			Name:        "Kulhad Cups Set",
			Description: "Set of six unglazed clay cups",
			PriceMinor:  22900,
			Category:    "accessories",
			Stock:       50,
		},
	}
}

func main() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetLevel(log.InfoLevel)

	var dsn string
	flag.StringVar(&dsn, "dsn", "", "PostgreSQL DSN (fallback: VSTORE_POSTGRES_DSN)")
	flag.Parse()

	if strings.TrimSpace(dsn) == "" {
		dsn = strings.TrimSpace(os.Getenv("VSTORE_POSTGRES_DSN"))
	}
	if dsn == "" {
		fail("VSTORE_POSTGRES_DSN (or -dsn) is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	store, err := postgres.Open(ctx, dsn)
	if err != nil {
		fail("open postgres store: %v", err)
	}
	defer store.Close()

	if err := store.EnsureSchema(ctx); err != nil {
		fail("ensure schema: %v", err)
	}

	created, skipped, err := seedProducts(postgres.NewProductRepository(store), demoProducts())
	if err != nil {
		fail("seed products: %v", err)
	}

	log.WithFields(log.Fields{
		"created": created,
		"skipped": skipped,
	}).Info("seed finished")
}

// seedProducts создаёт отсутствующие товары; существующие (по имени) пропускает.
func seedProducts(repo domain.ProductRepository, products []domain.Product) (int, int, error) {
	existing, err := repo.List(domain.ProductFilter{})
	if err != nil {
		return 0, 0, fmt.Errorf("list products: %w", err)
	}

	known := make(map[string]struct{}, len(existing))
	for _, product := range existing {
		known[product.Name] = struct{}{}
	}

	var created, skipped int
	now := time.Now().UTC()

	for _, product := range products {
		if _, ok := known[product.Name]; ok {
			skipped++
			continue
		}

		product.ID = uuid.NewString()
		product.Status = domain.ProductStatusActive
		product.CreatedAt = now
		product.UpdatedAt = now

		if err := repo.Create(product); err != nil {
			if errors.Is(err, domain.ErrProductExists) {
				skipped++
				continue
			}
			return created, skipped, fmt.Errorf("create product %q: %w", product.Name, err)
		}
		created++
	}

	return created, skipped, nil
}

func fail(format string, args ...any) {
	_, _ = fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
