package subscriptions

import (
	"context"
	"time"

	"github.com/bissquit/grocer/internal/domain"
)

// Repository defines the interface for subscription data operations.
type Repository interface {
	Store

	// Create inserts the subscription and its items in a single transaction.
	Create(ctx context.Context, sub *domain.Subscription) error
	GetByID(ctx context.Context, id string) (*domain.Subscription, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Subscription, error)
	// Update writes the owner-editable fields. next_run_at is written only
	// when fields.Reschedule is set; otherwise the stored value, which a
	// concurrent tick may have advanced, is kept and read back into sub.
	Update(ctx context.Context, sub *domain.Subscription, fields UpdateFields) error
	Delete(ctx context.Context, id string) error
	GetItems(ctx context.Context, subscriptionID string) ([]domain.SubscriptionItem, error)
}

// UpdateFields selects the optional parts of a subscription update.
type UpdateFields struct {
	// ReplaceItems replaces the stored item set with sub.Items.
	ReplaceItems bool
	// Reschedule writes sub.NextRunAt.
	Reschedule bool
}

// Store is the part of the repository the scheduler depends on.
type Store interface {
	// FindDue returns up to limit active subscriptions with next_run_at <= now,
	// items included, oldest first.
	FindDue(ctx context.Context, now time.Time, limit int) ([]domain.Subscription, error)
	// ConditionalAdvance sets next_run_at to next only if it still equals
	// expected. It returns the number of rows changed, 0 or 1, and must be a
	// single atomic conditional write.
	ConditionalAdvance(ctx context.Context, id string, expected, next time.Time) (int64, error)
}

// ProductCatalog resolves product availability at firing time.
type ProductCatalog interface {
	FindAvailable(ctx context.Context, ids []string) (map[string]domain.Product, error)
}

// ProductChecker verifies that products referenced by a subscription exist.
type ProductChecker interface {
	FindExisting(ctx context.Context, ids []string) (map[string]bool, error)
}

// OrderCreator persists materialized orders.
type OrderCreator interface {
	Create(ctx context.Context, order *domain.Order) error
}
