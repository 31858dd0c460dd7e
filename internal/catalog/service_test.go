package catalog

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/bissquit/grocer/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockRepository implements Repository for testing.
type mockRepository struct {
	products  map[string]*domain.Product
	nextID    int
	deleteErr error
}

func newMockRepository() *mockRepository {
	return &mockRepository{products: make(map[string]*domain.Product)}
}

func (m *mockRepository) CreateProduct(_ context.Context, product *domain.Product) error {
	m.nextID++
	product.ID = fmt.Sprintf("product-%d", m.nextID)
	stored := *product
	m.products[product.ID] = &stored
	return nil
}

func (m *mockRepository) GetProductByID(_ context.Context, id string) (*domain.Product, error) {
	p, ok := m.products[id]
	if !ok {
		return nil, ErrProductNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *mockRepository) ListProducts(_ context.Context, filter ProductFilter) ([]domain.Product, error) {
	result := make([]domain.Product, 0)
	for _, p := range m.products {
		if filter.AvailableOnly && !p.Available {
			continue
		}
		if filter.SellerID != nil && p.SellerID != *filter.SellerID {
			continue
		}
		result = append(result, *p)
	}
	return result, nil
}

func (m *mockRepository) UpdateProduct(_ context.Context, product *domain.Product) error {
	if _, ok := m.products[product.ID]; !ok {
		return ErrProductNotFound
	}
	stored := *product
	m.products[product.ID] = &stored
	return nil
}

func (m *mockRepository) DeleteProduct(_ context.Context, id string) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	delete(m.products, id)
	return nil
}

func (m *mockRepository) FindAvailable(_ context.Context, ids []string) (map[string]domain.Product, error) {
	result := make(map[string]domain.Product)
	for _, id := range ids {
		if p, ok := m.products[id]; ok && p.Available {
			result[id] = *p
		}
	}
	return result, nil
}

func (m *mockRepository) FindExisting(_ context.Context, ids []string) (map[string]bool, error) {
	result := make(map[string]bool)
	for _, id := range ids {
		if _, ok := m.products[id]; ok {
			result[id] = true
		}
	}
	return result, nil
}

func boolPtr(b bool) *bool { return &b }

func TestService_CreateProduct(t *testing.T) {
	service := NewService(newMockRepository())
	ctx := context.Background()

	t.Run("available by default", func(t *testing.T) {
		product, err := service.CreateProduct(ctx, "seller-1", CreateProductInput{
			Name: "Milk", Price: 120, Cost: 80, Unit: "l",
		})
		require.NoError(t, err)
		assert.NotEmpty(t, product.ID)
		assert.Equal(t, "seller-1", product.SellerID)
		assert.True(t, product.Available)
	})

	t.Run("explicitly unavailable", func(t *testing.T) {
		product, err := service.CreateProduct(ctx, "seller-1", CreateProductInput{
			Name: "Bread", Price: 50, Unit: "pc", Available: boolPtr(false),
		})
		require.NoError(t, err)
		assert.False(t, product.Available)
	})
}

func TestService_UpdateProduct(t *testing.T) {
	repo := newMockRepository()
	service := NewService(repo)
	ctx := context.Background()

	product, err := service.CreateProduct(ctx, "seller-1", CreateProductInput{Name: "Milk", Price: 120, Unit: "l"})
	require.NoError(t, err)

	t.Run("owner updates selected fields", func(t *testing.T) {
		price := int64(150)
		updated, err := service.UpdateProduct(ctx, "seller-1", product.ID, UpdateProductInput{
			Price:     &price,
			Available: boolPtr(false),
		})
		require.NoError(t, err)
		assert.Equal(t, int64(150), updated.Price)
		assert.False(t, updated.Available)
		assert.Equal(t, "Milk", updated.Name)
	})

	t.Run("other seller is rejected", func(t *testing.T) {
		name := "Stolen"
		_, err := service.UpdateProduct(ctx, "seller-2", product.ID, UpdateProductInput{Name: &name})
		assert.ErrorIs(t, err, ErrNotProductOwner)
		assert.Equal(t, "Milk", repo.products[product.ID].Name)
	})

	t.Run("unknown product", func(t *testing.T) {
		_, err := service.UpdateProduct(ctx, "seller-1", "missing", UpdateProductInput{})
		assert.ErrorIs(t, err, ErrProductNotFound)
	})
}

func TestService_DeleteProduct(t *testing.T) {
	repo := newMockRepository()
	service := NewService(repo)
	ctx := context.Background()

	product, err := service.CreateProduct(ctx, "seller-1", CreateProductInput{Name: "Milk", Price: 120, Unit: "l"})
	require.NoError(t, err)

	assert.ErrorIs(t, service.DeleteProduct(ctx, "seller-2", product.ID), ErrNotProductOwner)

	repo.deleteErr = ErrProductInUse
	assert.ErrorIs(t, service.DeleteProduct(ctx, "seller-1", product.ID), ErrProductInUse)

	repo.deleteErr = nil
	require.NoError(t, service.DeleteProduct(ctx, "seller-1", product.ID))
	_, err = service.GetProduct(ctx, product.ID)
	assert.True(t, errors.Is(err, ErrProductNotFound))
}

func TestService_FindAvailable(t *testing.T) {
	service := NewService(newMockRepository())
	ctx := context.Background()

	milk, err := service.CreateProduct(ctx, "seller-1", CreateProductInput{Name: "Milk", Price: 120, Unit: "l"})
	require.NoError(t, err)
	bread, err := service.CreateProduct(ctx, "seller-1", CreateProductInput{Name: "Bread", Price: 50, Unit: "pc", Available: boolPtr(false)})
	require.NoError(t, err)

	available, err := service.FindAvailable(ctx, []string{milk.ID, bread.ID, "missing"})
	require.NoError(t, err)
	assert.Len(t, available, 1)
	assert.Contains(t, available, milk.ID)

	existing, err := service.FindExisting(ctx, []string{milk.ID, bread.ID, "missing"})
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{milk.ID: true, bread.ID: true}, existing)

	empty, err := service.FindAvailable(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}
