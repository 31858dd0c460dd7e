// Package catalog provides HTTP handlers and business logic for the product catalog.
package catalog

import (
	"context"
	"fmt"

	"github.com/bissquit/grocer/internal/domain"
)

// Service implements product catalog business logic.
type Service struct {
	repo Repository
}

// NewService creates a new catalog service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// CreateProductInput holds data for creating a product.
type CreateProductInput struct {
	Name        string
	Description string
	Price       int64
	Cost        int64
	Unit        string
	Available   *bool
}

// UpdateProductInput holds optional product changes.
type UpdateProductInput struct {
	Name        *string
	Description *string
	Price       *int64
	Cost        *int64
	Unit        *string
	Available   *bool
}

// CreateProduct lists a new product for the seller.
func (s *Service) CreateProduct(ctx context.Context, sellerID string, input CreateProductInput) (*domain.Product, error) {
	product := &domain.Product{
		SellerID:    sellerID,
		Name:        input.Name,
		Description: input.Description,
		Price:       input.Price,
		Cost:        input.Cost,
		Unit:        input.Unit,
		Available:   true,
	}
	if input.Available != nil {
		product.Available = *input.Available
	}

	if err := s.repo.CreateProduct(ctx, product); err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}
	return product, nil
}

// GetProduct returns a product by ID.
func (s *Service) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	return s.repo.GetProductByID(ctx, id)
}

// ListProducts returns products matching the filter.
func (s *Service) ListProducts(ctx context.Context, filter ProductFilter) ([]domain.Product, error) {
	return s.repo.ListProducts(ctx, filter)
}

// UpdateProduct applies changes to a product owned by the seller.
func (s *Service) UpdateProduct(ctx context.Context, sellerID, id string, input UpdateProductInput) (*domain.Product, error) {
	product, err := s.ownedProduct(ctx, sellerID, id)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		product.Name = *input.Name
	}
	if input.Description != nil {
		product.Description = *input.Description
	}
	if input.Price != nil {
		product.Price = *input.Price
	}
	if input.Cost != nil {
		product.Cost = *input.Cost
	}
	if input.Unit != nil {
		product.Unit = *input.Unit
	}
	if input.Available != nil {
		product.Available = *input.Available
	}

	if err := s.repo.UpdateProduct(ctx, product); err != nil {
		return nil, fmt.Errorf("update product: %w", err)
	}
	return product, nil
}

// DeleteProduct removes a product owned by the seller.
func (s *Service) DeleteProduct(ctx context.Context, sellerID, id string) error {
	if _, err := s.ownedProduct(ctx, sellerID, id); err != nil {
		return err
	}
	return s.repo.DeleteProduct(ctx, id)
}

// FindAvailable returns currently orderable products keyed by ID.
func (s *Service) FindAvailable(ctx context.Context, ids []string) (map[string]domain.Product, error) {
	if len(ids) == 0 {
		return map[string]domain.Product{}, nil
	}
	return s.repo.FindAvailable(ctx, ids)
}

// FindExisting returns the subset of ids that exist in the catalog.
func (s *Service) FindExisting(ctx context.Context, ids []string) (map[string]bool, error) {
	if len(ids) == 0 {
		return map[string]bool{}, nil
	}
	return s.repo.FindExisting(ctx, ids)
}

func (s *Service) ownedProduct(ctx context.Context, sellerID, id string) (*domain.Product, error) {
	product, err := s.repo.GetProductByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if product.SellerID != sellerID {
		return nil, ErrNotProductOwner
	}
	return product, nil
}
