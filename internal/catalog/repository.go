package catalog

import (
	"context"

	"github.com/bissquit/grocer/internal/domain"
)

// Repository defines the interface for product catalog data operations.
type Repository interface {
	CreateProduct(ctx context.Context, product *domain.Product) error
	GetProductByID(ctx context.Context, id string) (*domain.Product, error)
	ListProducts(ctx context.Context, filter ProductFilter) ([]domain.Product, error)
	UpdateProduct(ctx context.Context, product *domain.Product) error
	DeleteProduct(ctx context.Context, id string) error

	// FindAvailable returns the products among ids that exist and are
	// currently available, keyed by product ID.
	FindAvailable(ctx context.Context, ids []string) (map[string]domain.Product, error)
	// FindExisting returns the subset of ids that exist, regardless of availability.
	FindExisting(ctx context.Context, ids []string) (map[string]bool, error)
}

// ProductFilter represents filter criteria for listing products.
type ProductFilter struct {
	SellerID      *string
	AvailableOnly bool
}
