package orders

import (
	"context"

	"github.com/bissquit/grocer/internal/domain"
)

// Repository defines the interface for order data operations.
type Repository interface {
	// Create inserts the order and its items in a single transaction and
	// fills generated IDs and timestamps.
	Create(ctx context.Context, order *domain.Order) error
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Order, error)
	// ListBySeller returns orders containing at least one product of the seller.
	ListBySeller(ctx context.Context, sellerID string, status *domain.OrderStatus) ([]domain.Order, error)
	UpdateStatus(ctx context.Context, id string, status domain.OrderStatus) error
	SellerOwnsAnyItem(ctx context.Context, orderID, sellerID string) (bool, error)
}

// ProductFinder resolves orderable products.
type ProductFinder interface {
	FindAvailable(ctx context.Context, ids []string) (map[string]domain.Product, error)
}
