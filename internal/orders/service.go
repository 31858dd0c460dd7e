// Package orders provides order placement and seller fulfilment.
package orders

import (
	"context"
	"fmt"

	"github.com/bissquit/grocer/internal/domain"
)

// Service implements order business logic.
type Service struct {
	repo     Repository
	products ProductFinder
}

// NewService creates a new orders service.
func NewService(repo Repository, products ProductFinder) *Service {
	return &Service{repo: repo, products: products}
}

// ItemInput is a requested order line.
type ItemInput struct {
	ProductID string
	Quantity  int
}

// PlaceOrderInput holds data for a manual order.
type PlaceOrderInput struct {
	Items []ItemInput
}

// PlaceOrder creates a pending order for the buyer. Every product must exist
// and be available; prices and costs are copied from the catalog.
func (s *Service) PlaceOrder(ctx context.Context, userID string, input PlaceOrderInput) (*domain.Order, error) {
	ids := make([]string, 0, len(input.Items))
	seen := make(map[string]struct{}, len(input.Items))
	for _, item := range input.Items {
		if _, dup := seen[item.ProductID]; dup {
			return nil, ErrDuplicateProduct
		}
		seen[item.ProductID] = struct{}{}
		ids = append(ids, item.ProductID)
	}

	available, err := s.products.FindAvailable(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("find available products: %w", err)
	}

	order := &domain.Order{
		UserID: userID,
		Status: domain.OrderStatusPending,
		Items:  make([]domain.OrderItem, 0, len(input.Items)),
	}
	for _, item := range input.Items {
		product, ok := available[item.ProductID]
		if !ok {
			return nil, ErrProductsUnavailable
		}
		order.Items = append(order.Items, LineFor(product, item.Quantity))
	}

	if err := s.repo.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}
	return order, nil
}

// LineFor builds an order line snapshotting the product's current price and cost.
func LineFor(product domain.Product, quantity int) domain.OrderItem {
	return domain.OrderItem{
		ProductID: product.ID,
		Quantity:  quantity,
		Price:     product.Price,
		Cost:      product.Cost,
	}
}

// Get returns an order visible to the caller: its buyer, or a seller owning
// at least one of its lines.
func (s *Service) Get(ctx context.Context, userID string, userType domain.UserType, id string) (*domain.Order, error) {
	order, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.UserID == userID {
		return order, nil
	}
	if userType == domain.UserTypeSeller {
		owns, err := s.repo.SellerOwnsAnyItem(ctx, id, userID)
		if err != nil {
			return nil, fmt.Errorf("check seller ownership: %w", err)
		}
		if owns {
			return order, nil
		}
	}
	return nil, ErrNotAuthorized
}

// List returns the buyer's orders, newest first.
func (s *Service) List(ctx context.Context, userID string) ([]domain.Order, error) {
	return s.repo.ListByUser(ctx, userID)
}

// ListForSeller returns orders containing the seller's products, optionally
// filtered by status.
func (s *Service) ListForSeller(ctx context.Context, sellerID string, status *domain.OrderStatus) ([]domain.Order, error) {
	if status != nil && !status.IsValid() {
		return nil, ErrInvalidStatus
	}
	return s.repo.ListBySeller(ctx, sellerID, status)
}

// UpdateStatus changes the fulfilment status of an order the seller participates in.
func (s *Service) UpdateStatus(ctx context.Context, sellerID, id string, status domain.OrderStatus) (*domain.Order, error) {
	if !status.IsValid() {
		return nil, ErrInvalidStatus
	}

	order, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	owns, err := s.repo.SellerOwnsAnyItem(ctx, id, sellerID)
	if err != nil {
		return nil, fmt.Errorf("check seller ownership: %w", err)
	}
	if !owns {
		return nil, ErrNotAuthorized
	}

	if err := s.repo.UpdateStatus(ctx, id, status); err != nil {
		return nil, fmt.Errorf("update order status: %w", err)
	}
	order.Status = status
	return order, nil
}
