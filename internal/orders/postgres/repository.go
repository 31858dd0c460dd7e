// Package postgres provides PostgreSQL implementation of the orders repository.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bissquit/grocer/internal/domain"
	"github.com/bissquit/grocer/internal/orders"
	pgutil "github.com/bissquit/grocer/internal/pkg/postgres"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository implements the orders.Repository interface using PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Create inserts an order together with its items.
func (r *Repository) Create(ctx context.Context, order *domain.Order) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			slog.Error("failed to rollback transaction", "error", err)
		}
	}()

	query := `
		INSERT INTO orders (user_id, subscription_id, status)
		VALUES ($1, $2, $3)
		RETURNING id, placed_at, updated_at
	`
	err = tx.QueryRow(ctx, query, order.UserID, order.SubscriptionID, order.Status).
		Scan(&order.ID, &order.PlacedAt, &order.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	itemQuery := `
		INSERT INTO order_items (order_id, product_id, quantity, price, cost)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	for i := range order.Items {
		item := &order.Items[i]
		err := tx.QueryRow(ctx, itemQuery, order.ID, item.ProductID, item.Quantity, item.Price, item.Cost).Scan(&item.ID)
		if err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// GetByID retrieves an order with its items.
func (r *Repository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	query := `
		SELECT id, user_id, subscription_id, status, placed_at, updated_at
		FROM orders
		WHERE id = $1
	`
	var order domain.Order
	err := r.db.QueryRow(ctx, query, id).Scan(
		&order.ID,
		&order.UserID,
		&order.SubscriptionID,
		&order.Status,
		&order.PlacedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || pgutil.IsInvalidInput(err) {
			return nil, orders.ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order by id: %w", err)
	}

	list := []domain.Order{order}
	if err := r.loadItems(ctx, list); err != nil {
		return nil, err
	}
	return &list[0], nil
}

// ListByUser retrieves the buyer's orders, newest first.
func (r *Repository) ListByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	query := `
		SELECT id, user_id, subscription_id, status, placed_at, updated_at
		FROM orders
		WHERE user_id = $1
		ORDER BY placed_at DESC, id
	`
	return r.queryOrders(ctx, query, userID)
}

// ListBySeller retrieves orders with at least one line for the seller's products.
func (r *Repository) ListBySeller(ctx context.Context, sellerID string, status *domain.OrderStatus) ([]domain.Order, error) {
	query := `
		SELECT o.id, o.user_id, o.subscription_id, o.status, o.placed_at, o.updated_at
		FROM orders o
		WHERE EXISTS (
			SELECT 1 FROM order_items oi
			JOIN products p ON p.id = oi.product_id
			WHERE oi.order_id = o.id AND p.seller_id = $1
		)
		AND ($2::text IS NULL OR o.status = $2)
		ORDER BY o.placed_at DESC, o.id
	`
	return r.queryOrders(ctx, query, sellerID, status)
}

// UpdateStatus sets the fulfilment status of an order.
func (r *Repository) UpdateStatus(ctx context.Context, id string, status domain.OrderStatus) error {
	result, err := r.db.Exec(ctx,
		`UPDATE orders SET status = $2, updated_at = NOW() WHERE id = $1`,
		id, status,
	)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}

	if result.RowsAffected() == 0 {
		return orders.ErrOrderNotFound
	}
	return nil
}

// SellerOwnsAnyItem reports whether any line of the order references a
// product listed by the seller.
func (r *Repository) SellerOwnsAnyItem(ctx context.Context, orderID, sellerID string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM order_items oi
			JOIN products p ON p.id = oi.product_id
			WHERE oi.order_id = $1 AND p.seller_id = $2
		)
	`
	var owns bool
	if err := r.db.QueryRow(ctx, query, orderID, sellerID).Scan(&owns); err != nil {
		return false, fmt.Errorf("check seller ownership: %w", err)
	}
	return owns, nil
}

func (r *Repository) queryOrders(ctx context.Context, query string, args ...any) ([]domain.Order, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	result := make([]domain.Order, 0)
	for rows.Next() {
		var order domain.Order
		err := rows.Scan(
			&order.ID,
			&order.UserID,
			&order.SubscriptionID,
			&order.Status,
			&order.PlacedAt,
			&order.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		result = append(result, order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate orders: %w", err)
	}

	if err := r.loadItems(ctx, result); err != nil {
		return nil, err
	}
	return result, nil
}

// loadItems fills Items for every order with a single query.
func (r *Repository) loadItems(ctx context.Context, list []domain.Order) error {
	if len(list) == 0 {
		return nil
	}

	ids := make([]string, len(list))
	index := make(map[string]int, len(list))
	for i := range list {
		ids[i] = list[i].ID
		index[list[i].ID] = i
		list[i].Items = make([]domain.OrderItem, 0)
	}

	query := `
		SELECT order_id, id, product_id, quantity, price, cost
		FROM order_items
		WHERE order_id = ANY($1::uuid[])
		ORDER BY order_id, id
	`
	rows, err := r.db.Query(ctx, query, ids)
	if err != nil {
		return fmt.Errorf("get order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var orderID string
		var item domain.OrderItem
		if err := rows.Scan(&orderID, &item.ID, &item.ProductID, &item.Quantity, &item.Price, &item.Cost); err != nil {
			return fmt.Errorf("scan order item: %w", err)
		}
		i := index[orderID]
		list[i].Items = append(list[i].Items, item)
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate order items: %w", err)
	}
	return nil
}
