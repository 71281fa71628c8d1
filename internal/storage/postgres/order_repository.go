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

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vladislavdragonenkov/vstore/internal/domain"
)

const (
	opTimeout = 5 * time.Second
)

type orderRepository struct {
	db *sql.DB
}

// NewOrderRepository создаёт PostgreSQL-реализацию OrderRepository.
func NewOrderRepository(store *Store) domain.OrderRepository {
	return &orderRepository{db: store.DB()}
}

// Create вставляет заказ и его позиции в одной транзакции.
func (r *orderRepository) Create(order domain.Order) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	customer, err := json.Marshal(order.CustomerInfo)
	if err != nil {
		return fmt.Errorf("marshal customer info: %w", err)
	}
	shipping, err := json.Marshal(order.ShippingAddress)
	if err != nil {
		return fmt.Errorf("marshal shipping address: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (
			id, order_number, customer_info, shipping_address, total_minor,
			payment_method, payment_status, payment_ref, status,
			tracking_number, notes, version, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
	`,
		order.ID, order.OrderNumber, customer, shipping, order.TotalMinor,
		string(order.PaymentMethod), string(order.PaymentStatus), order.PaymentRef,
		string(order.Status), order.TrackingNumber, order.Notes, order.Version,
		order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrOrderVersionConflict
		}
		return fmt.Errorf("insert order: %w", err)
	}

	for _, item := range order.Items {
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO order_items (order_id, product_id, name, price_minor, qty, image)
			VALUES ($1,$2,$3,$4,$5,$6)
		`,
			order.ID, item.ProductID, item.Name, item.PriceMinor, item.Qty, item.Image,
		); err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit create order: %w", err)
	}

	return nil
}

func (r *orderRepository) Get(id string) (domain.Order, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	return r.getOne(ctx, `WHERE id = $1`, id)
}

func (r *orderRepository) GetByNumber(orderNumber string) (domain.Order, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	return r.getOne(ctx, `WHERE order_number = $1`, orderNumber)
}

func (r *orderRepository) List(filter domain.OrderFilter) ([]domain.Order, error) {
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

	if filter.Status != "" {
		conds = append(conds, "status = "+next(string(filter.Status)))
	}
	if filter.Search != "" {
		placeholder := next("%" + strings.ToLower(filter.Search) + "%")
		conds = append(conds, "(LOWER(order_number) LIKE "+placeholder+
			" OR LOWER(customer_info->>'Email') LIKE "+placeholder+
			" OR LOWER(customer_info->>'Name') LIKE "+placeholder+")")
	}

	query := selectOrderSQL
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"
	if filter.Limit > 0 {
		query += " LIMIT " + next(filter.Limit)
	}
	if filter.Offset > 0 {
		query += " OFFSET " + next(filter.Offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders := make([]domain.Order, 0)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		items, err := r.loadItems(ctx, order.ID)
		if err != nil {
			return nil, err
		}
		order.Items = items
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order rows: %w", err)
	}

	return orders, nil
}

// Save применяет обновления с optimistic locking по колонке version.
// Позиции заказа неизменяемы и не перезаписываются.
func (r *orderRepository) Save(order domain.Order) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	customer, err := json.Marshal(order.CustomerInfo)
	if err != nil {
		return fmt.Errorf("marshal customer info: %w", err)
	}
	shipping, err := json.Marshal(order.ShippingAddress)
	if err != nil {
		return fmt.Errorf("marshal shipping address: %w", err)
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE orders
		SET customer_info = $1,
		    shipping_address = $2,
		    total_minor = $3,
		    payment_method = $4,
		    payment_status = $5,
		    payment_ref = $6,
		    status = $7,
		    tracking_number = $8,
		    notes = $9,
		    version = version + 1,
		    updated_at = $10
		WHERE id = $11
		  AND version = $12
	`,
		customer, shipping, order.TotalMinor,
		string(order.PaymentMethod), string(order.PaymentStatus), order.PaymentRef,
		string(order.Status), order.TrackingNumber, order.Notes,
		order.UpdatedAt, order.ID, order.Version,
	)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		exists, err := r.orderExists(ctx, order.ID)
		if err != nil {
			return err
		}
		if !exists {
			return domain.ErrOrderNotFound
		}
		return domain.ErrOrderVersionConflict
	}

	return nil
}

const selectOrderSQL = `
	SELECT id, order_number, customer_info, shipping_address, total_minor,
	       payment_method, payment_status, payment_ref, status,
	       tracking_number, notes, version, created_at, updated_at
	FROM orders`

func (r *orderRepository) getOne(ctx context.Context, where string, arg any) (domain.Order, error) {
	order, err := scanOrder(r.db.QueryRowContext(ctx, selectOrderSQL+" "+where, arg))
	if err != nil {
		return domain.Order{}, err
	}

	items, err := r.loadItems(ctx, order.ID)
	if err != nil {
		return domain.Order{}, err
	}
	order.Items = items

	return order, nil
}

func scanOrder(row rowScanner) (domain.Order, error) {
	var (
		order         domain.Order
		customerRaw   []byte
		shippingRaw   []byte
		paymentMethod string
		paymentStatus string
		status        string
	)

	err := row.Scan(
		&order.ID, &order.OrderNumber, &customerRaw, &shippingRaw, &order.TotalMinor,
		&paymentMethod, &paymentStatus, &order.PaymentRef, &status,
		&order.TrackingNumber, &order.Notes, &order.Version,
		&order.CreatedAt, &order.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		return domain.Order{}, fmt.Errorf("scan order: %w", err)
	}

	if err := json.Unmarshal(customerRaw, &order.CustomerInfo); err != nil {
		return domain.Order{}, fmt.Errorf("unmarshal customer info: %w", err)
	}
	if err := json.Unmarshal(shippingRaw, &order.ShippingAddress); err != nil {
		return domain.Order{}, fmt.Errorf("unmarshal shipping address: %w", err)
	}
	order.PaymentMethod = domain.PaymentMethod(paymentMethod)
	order.PaymentStatus = domain.PaymentStatus(paymentStatus)
	order.Status = domain.OrderStatus(status)

	return order, nil
}

func (r *orderRepository) loadItems(ctx context.Context, orderID string) ([]domain.OrderItem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT product_id, name, price_minor, qty, image
		FROM order_items
		WHERE order_id = $1
		ORDER BY id ASC
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("load order items: %w", err)
	}
	defer rows.Close()

	items := make([]domain.OrderItem, 0)
	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(&item.ProductID, &item.Name, &item.PriceMinor, &item.Qty, &item.Image); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order items: %w", err)
	}

	return items, nil
}

func (r *orderRepository) orderExists(ctx context.Context, orderID string) (bool, error) {
	var id string
	err := r.db.QueryRowContext(ctx, `SELECT id FROM orders WHERE id = $1`, orderID).Scan(&id)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return false, fmt.Errorf("check order exists: %w", err)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

var _ domain.OrderRepository = (*orderRepository)(nil)
