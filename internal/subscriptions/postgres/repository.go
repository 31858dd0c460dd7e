// Package postgres provides PostgreSQL implementation of the subscriptions repository.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bissquit/grocer/internal/domain"
	pgutil "github.com/bissquit/grocer/internal/pkg/postgres"
	"github.com/bissquit/grocer/internal/subscriptions"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository implements the subscriptions.Repository interface using PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const subscriptionColumns = `id, user_id, name, frequency, day_of_week, hour, minute, active, next_run_at, created_at, updated_at`

func scanSubscription(row pgx.Row) (domain.Subscription, error) {
	var sub domain.Subscription
	err := row.Scan(
		&sub.ID,
		&sub.UserID,
		&sub.Name,
		&sub.Frequency,
		&sub.DayOfWeek,
		&sub.Hour,
		&sub.Minute,
		&sub.Active,
		&sub.NextRunAt,
		&sub.CreatedAt,
		&sub.UpdatedAt,
	)
	return sub, err
}

// Create inserts a subscription with its items.
func (r *Repository) Create(ctx context.Context, sub *domain.Subscription) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer rollback(ctx, tx)

	query := `
		INSERT INTO subscriptions (user_id, name, frequency, day_of_week, hour, minute, active, next_run_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at
	`
	err = tx.QueryRow(ctx, query,
		sub.UserID,
		sub.Name,
		sub.Frequency,
		sub.DayOfWeek,
		sub.Hour,
		sub.Minute,
		sub.Active,
		sub.NextRunAt,
	).Scan(&sub.ID, &sub.CreatedAt, &sub.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert subscription: %w", err)
	}

	if err := insertItems(ctx, tx, sub.ID, sub.Items); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// GetByID retrieves a subscription with its items.
func (r *Repository) GetByID(ctx context.Context, id string) (*domain.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE id = $1`

	sub, err := scanSubscription(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || pgutil.IsInvalidInput(err) {
			return nil, subscriptions.ErrSubscriptionNotFound
		}
		return nil, fmt.Errorf("get subscription by id: %w", err)
	}

	sub.Items, err = r.GetItems(ctx, sub.ID)
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// ListByUser retrieves the user's subscriptions, newest first.
func (r *Repository) ListByUser(ctx context.Context, userID string) ([]domain.Subscription, error) {
	query := `
		SELECT ` + subscriptionColumns + `
		FROM subscriptions
		WHERE user_id = $1
		ORDER BY created_at DESC, id
	`
	return r.querySubscriptions(ctx, query, userID)
}

// Update writes mutable fields and optionally replaces the item set.
// next_run_at is only written on reschedule so an owner edit never undoes
// a concurrent advance.
func (r *Repository) Update(ctx context.Context, sub *domain.Subscription, fields subscriptions.UpdateFields) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer rollback(ctx, tx)

	query := `
		UPDATE subscriptions
		SET name = $2, frequency = $3, day_of_week = $4, hour = $5, minute = $6,
		    active = $7, next_run_at = COALESCE($8::timestamptz, next_run_at), updated_at = NOW()
		WHERE id = $1
		RETURNING next_run_at, updated_at
	`
	var nextRunAt *time.Time
	if fields.Reschedule {
		nextRunAt = &sub.NextRunAt
	}
	err = tx.QueryRow(ctx, query,
		sub.ID,
		sub.Name,
		sub.Frequency,
		sub.DayOfWeek,
		sub.Hour,
		sub.Minute,
		sub.Active,
		nextRunAt,
	).Scan(&sub.NextRunAt, &sub.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return subscriptions.ErrSubscriptionNotFound
		}
		return fmt.Errorf("update subscription: %w", err)
	}

	if fields.ReplaceItems {
		if _, err := tx.Exec(ctx, `DELETE FROM subscription_items WHERE subscription_id = $1`, sub.ID); err != nil {
			return fmt.Errorf("delete subscription items: %w", err)
		}
		if err := insertItems(ctx, tx, sub.ID, sub.Items); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Delete removes a subscription; its items go with it.
func (r *Repository) Delete(ctx context.Context, id string) error {
	result, err := r.db.Exec(ctx, `DELETE FROM subscriptions WHERE id = $1`, id)
	if err != nil {
		if pgutil.IsInvalidInput(err) {
			return subscriptions.ErrSubscriptionNotFound
		}
		return fmt.Errorf("delete subscription: %w", err)
	}

	if result.RowsAffected() == 0 {
		return subscriptions.ErrSubscriptionNotFound
	}
	return nil
}

// GetItems retrieves the items of a subscription.
func (r *Repository) GetItems(ctx context.Context, subscriptionID string) ([]domain.SubscriptionItem, error) {
	rows, err := r.db.Query(ctx, `
		SELECT product_id, quantity
		FROM subscription_items
		WHERE subscription_id = $1
		ORDER BY product_id
	`, subscriptionID)
	if err != nil {
		return nil, fmt.Errorf("get subscription items: %w", err)
	}
	defer rows.Close()

	items := make([]domain.SubscriptionItem, 0)
	for rows.Next() {
		var item domain.SubscriptionItem
		if err := rows.Scan(&item.ProductID, &item.Quantity); err != nil {
			return nil, fmt.Errorf("scan subscription item: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate subscription items: %w", err)
	}
	return items, nil
}

// FindDue retrieves active subscriptions whose next run is at or before now.
func (r *Repository) FindDue(ctx context.Context, now time.Time, limit int) ([]domain.Subscription, error) {
	query := `
		SELECT ` + subscriptionColumns + `
		FROM subscriptions
		WHERE active AND next_run_at <= $1
		ORDER BY next_run_at, id
		LIMIT $2
	`
	return r.querySubscriptions(ctx, query, now, limit)
}

// ConditionalAdvance moves next_run_at from expected to next in one
// statement. Concurrent callers with the same expected value race on the
// row lock; the losers re-evaluate the predicate and match no row.
// Inactive subscriptions are never advanced.
func (r *Repository) ConditionalAdvance(ctx context.Context, id string, expected, next time.Time) (int64, error) {
	result, err := r.db.Exec(ctx, `
		UPDATE subscriptions
		SET next_run_at = $3, updated_at = NOW()
		WHERE id = $1 AND next_run_at = $2 AND active
	`, id, expected, next)
	if err != nil {
		return 0, fmt.Errorf("advance subscription: %w", err)
	}
	return result.RowsAffected(), nil
}

func (r *Repository) querySubscriptions(ctx context.Context, query string, args ...any) ([]domain.Subscription, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	defer rows.Close()

	subs := make([]domain.Subscription, 0)
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		sub.Items = make([]domain.SubscriptionItem, 0)
		subs = append(subs, sub)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate subscriptions: %w", err)
	}

	if err := r.loadItems(ctx, subs); err != nil {
		return nil, err
	}
	return subs, nil
}

// loadItems fills Items for every subscription with a single query.
func (r *Repository) loadItems(ctx context.Context, subs []domain.Subscription) error {
	if len(subs) == 0 {
		return nil
	}

	ids := make([]string, len(subs))
	index := make(map[string]int, len(subs))
	for i := range subs {
		ids[i] = subs[i].ID
		index[subs[i].ID] = i
	}

	rows, err := r.db.Query(ctx, `
		SELECT subscription_id, product_id, quantity
		FROM subscription_items
		WHERE subscription_id = ANY($1::uuid[])
		ORDER BY subscription_id, product_id
	`, ids)
	if err != nil {
		return fmt.Errorf("get subscription items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var subscriptionID string
		var item domain.SubscriptionItem
		if err := rows.Scan(&subscriptionID, &item.ProductID, &item.Quantity); err != nil {
			return fmt.Errorf("scan subscription item: %w", err)
		}
		i := index[subscriptionID]
		subs[i].Items = append(subs[i].Items, item)
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate subscription items: %w", err)
	}
	return nil
}

func insertItems(ctx context.Context, tx pgx.Tx, subscriptionID string, items []domain.SubscriptionItem) error {
	for _, item := range items {
		_, err := tx.Exec(ctx,
			`INSERT INTO subscription_items (subscription_id, product_id, quantity) VALUES ($1, $2, $3)`,
			subscriptionID, item.ProductID, item.Quantity,
		)
		if err != nil {
			return fmt.Errorf("insert subscription item: %w", err)
		}
	}
	return nil
}

func rollback(ctx context.Context, tx pgx.Tx) {
	if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		slog.Error("failed to rollback transaction", "error", err)
	}
}
