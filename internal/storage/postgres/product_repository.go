package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/vladislavdragonenkov/vstore/internal/domain"
)

type productRepository struct {
	db *sql.DB
}

// NewProductRepository создаёт PostgreSQL-реализацию ProductRepository.
func NewProductRepository(store *Store) domain.ProductRepository {
	return &productRepository{db: store.DB()}
}

func (r *productRepository) Create(product domain.Product) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	images, err := json.Marshal(product.Images)
	if err != nil {
		return fmt.Errorf("marshal product images: %w", err)
	}

	now := time.Now().UTC()
	if product.CreatedAt.IsZero() {
		product.CreatedAt = now
	}
	if product.UpdatedAt.IsZero() {
		product.UpdatedAt = now
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO products (
			id, name, description, price_minor, original_price_minor,
			category, images, stock, featured, status, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`,
		product.ID, product.Name, product.Description, product.PriceMinor,
		product.OriginalPriceMinor, product.Category, images, product.Stock,
		product.Featured, string(product.Status), product.CreatedAt, product.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrProductExists
		}
		return fmt.Errorf("insert product: %w", err)
	}

	return nil
}

func (r *productRepository) Get(id string) (domain.Product, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	return r.scanOne(r.db.QueryRowContext(ctx, selectProductSQL+` WHERE id = $1`, id))
}

func (r *productRepository) List(filter domain.ProductFilter) ([]domain.Product, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var (
		conds []string
		args  []any
	)
	next := func(value any) string {
		args = append(args, value)
		return "$" + strconv.Itoa(len(args))
	}

	if filter.Category != "" {
		conds = append(conds, "category = "+next(filter.Category))
	}
	if filter.Search != "" {
		placeholder := next("%" + strings.ToLower(filter.Search) + "%")
		conds = append(conds, "(LOWER(name) LIKE "+placeholder+" OR LOWER(description) LIKE "+placeholder+")")
	}
	if filter.Featured != nil {
		conds = append(conds, "featured = "+next(*filter.Featured))
	}

	query := selectProductSQL
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC, id"
	if filter.Limit > 0 {
		query += " LIMIT " + next(filter.Limit)
	}
	if filter.Offset > 0 {
		query += " OFFSET " + next(filter.Offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	products := make([]domain.Product, 0)
	for rows.Next() {
		product, err := r.scanOne(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, product)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate product rows: %w", err)
	}

	return products, nil
}

// Update перезаписывает атрибуты товара. Колонка stock намеренно не входит
// в UPDATE: остаток меняется только через ConditionalDecrement/Increment/SetStock.
func (r *productRepository) Update(product domain.Product) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	images, err := json.Marshal(product.Images)
	if err != nil {
		return fmt.Errorf("marshal product images: %w", err)
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE products
		SET name = $2,
		    description = $3,
		    price_minor = $4,
		    original_price_minor = $5,
		    category = $6,
		    images = $7,
		    featured = $8,
		    status = $9,
		    updated_at = $10
		WHERE id = $1
	`,
		product.ID, product.Name, product.Description, product.PriceMinor,
		product.OriginalPriceMinor, product.Category, images, product.Featured,
		string(product.Status), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("update product: %w", err)
	}
	return requireAffected(res, domain.ErrProductNotFound)
}

func (r *productRepository) SetStock(id string, stock int32) error {
	if stock < 0 {
		return domain.ErrProductStockInvalid
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE products SET stock = $2, updated_at = $3 WHERE id = $1
	`, id, stock, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set product stock: %w", err)
	}
	return requireAffected(res, domain.ErrProductNotFound)
}

// Delete удаляет товар. Позиции уже оформленных заказов хранят снапшот
// товара, поэтому удаление каталожной записи их не ломает.
func (r *productRepository) Delete(id string) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	return requireAffected(res, domain.ErrProductNotFound)
}

// ConditionalDecrement выполняет атомарный условный декремент остатка.
// Проверка "stock >= qty" и запись происходят в одном UPDATE, поэтому два
// конкурентных заказа не могут увести остаток в минус.
func (r *productRepository) ConditionalDecrement(id string, qty int32) (bool, error) {
	if qty <= 0 {
		return false, domain.ErrItemQtyInvalid
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE products
		SET stock = stock - $2, updated_at = $3
		WHERE id = $1 AND stock >= $2
	`, id, qty, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("decrement product stock: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	if affected > 0 {
		return true, nil
	}

	// UPDATE никого не задел: либо товара нет, либо остатка не хватило.
	exists, err := r.exists(ctx, id)
	if err != nil {
		return false, err
	}
	if !exists {
		return false, domain.ErrProductNotFound
	}
	return false, nil
}

func (r *productRepository) Increment(id string, qty int32) error {
	if qty <= 0 {
		return domain.ErrItemQtyInvalid
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE products SET stock = stock + $2, updated_at = $3 WHERE id = $1
	`, id, qty, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("increment product stock: %w", err)
	}
	return requireAffected(res, domain.ErrProductNotFound)
}

const selectProductSQL = `
	SELECT id, name, description, price_minor, original_price_minor,
	       category, images, stock, featured, status, created_at, updated_at
	FROM products`

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *productRepository) scanOne(row rowScanner) (domain.Product, error) {
	var (
		product   domain.Product
		status    string
		imagesRaw []byte
	)

	err := row.Scan(
		&product.ID, &product.Name, &product.Description, &product.PriceMinor,
		&product.OriginalPriceMinor, &product.Category, &imagesRaw, &product.Stock,
		&product.Featured, &status, &product.CreatedAt, &product.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Product{}, domain.ErrProductNotFound
		}
		return domain.Product{}, fmt.Errorf("scan product: %w", err)
	}

	product.Status = domain.ProductStatus(status)
	if len(imagesRaw) > 0 {
		if err := json.Unmarshal(imagesRaw, &product.Images); err != nil {
			return domain.Product{}, fmt.Errorf("unmarshal product images: %w", err)
		}
	}

	return product, nil
}

func (r *productRepository) exists(ctx context.Context, id string) (bool, error) {
	var found string
	err := r.db.QueryRowContext(ctx, `SELECT id FROM products WHERE id = $1`, id).Scan(&found)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return false, fmt.Errorf("check product exists: %w", err)
}

func requireAffected(res sql.Result, notFound error) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return notFound
	}
	return nil
}

var _ domain.ProductRepository = (*productRepository)(nil)
