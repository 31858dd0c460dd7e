// Package postgres provides PostgreSQL implementation of the catalog repository.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/bissquit/grocer/internal/catalog"
	"github.com/bissquit/grocer/internal/domain"
	pgutil "github.com/bissquit/grocer/internal/pkg/postgres"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository implements the catalog.Repository interface using PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const productColumns = `id, seller_id, name, description, price, cost, unit, available, created_at, updated_at`

func scanProduct(row pgx.Row) (domain.Product, error) {
	var p domain.Product
	err := row.Scan(
		&p.ID,
		&p.SellerID,
		&p.Name,
		&p.Description,
		&p.Price,
		&p.Cost,
		&p.Unit,
		&p.Available,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	return p, err
}

// CreateProduct creates a new product in the database.
func (r *Repository) CreateProduct(ctx context.Context, product *domain.Product) error {
	query := `
		INSERT INTO products (seller_id, name, description, price, cost, unit, available)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query,
		product.SellerID,
		product.Name,
		product.Description,
		product.Price,
		product.Cost,
		product.Unit,
		product.Available,
	).Scan(&product.ID, &product.CreatedAt, &product.UpdatedAt)

	if err != nil {
		return fmt.Errorf("create product: %w", err)
	}
	return nil
}

// GetProductByID retrieves a product by its ID.
func (r *Repository) GetProductByID(ctx context.Context, id string) (*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	product, err := scanProduct(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || pgutil.IsInvalidInput(err) {
			return nil, catalog.ErrProductNotFound
		}
		return nil, fmt.Errorf("get product by id: %w", err)
	}
	return &product, nil
}

// ListProducts retrieves products matching the filter ordered by name.
func (r *Repository) ListProducts(ctx context.Context, filter catalog.ProductFilter) ([]domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE 1=1`
	args := make([]any, 0, 1)

	if filter.AvailableOnly {
		query += " AND available"
	}
	if filter.SellerID != nil {
		args = append(args, *filter.SellerID)
		query += " AND seller_id = $" + strconv.Itoa(len(args))
	}
	query += " ORDER BY name, id"

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		if pgutil.IsInvalidInput(err) {
			return []domain.Product{}, nil
		}
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	products := make([]domain.Product, 0)
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, product)
	}

	if err := rows.Err(); err != nil {
		if pgutil.IsInvalidInput(err) {
			return []domain.Product{}, nil
		}
		return nil, fmt.Errorf("iterate products: %w", err)
	}
	return products, nil
}

// UpdateProduct updates an existing product.
func (r *Repository) UpdateProduct(ctx context.Context, product *domain.Product) error {
	query := `
		UPDATE products
		SET name = $2, description = $3, price = $4, cost = $5, unit = $6, available = $7, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`
	err := r.db.QueryRow(ctx, query,
		product.ID,
		product.Name,
		product.Description,
		product.Price,
		product.Cost,
		product.Unit,
		product.Available,
	).Scan(&product.UpdatedAt)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return catalog.ErrProductNotFound
		}
		return fmt.Errorf("update product: %w", err)
	}
	return nil
}

// DeleteProduct deletes a product by its ID.
// Products referenced by placed orders cannot be deleted.
func (r *Repository) DeleteProduct(ctx context.Context, id string) error {
	result, err := r.db.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		if pgutil.IsForeignKeyViolation(err) {
			return catalog.ErrProductInUse
		}
		if pgutil.IsInvalidInput(err) {
			return catalog.ErrProductNotFound
		}
		return fmt.Errorf("delete product: %w", err)
	}

	if result.RowsAffected() == 0 {
		return catalog.ErrProductNotFound
	}
	return nil
}

// FindAvailable returns available products among ids keyed by ID.
func (r *Repository) FindAvailable(ctx context.Context, ids []string) (map[string]domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = ANY($1::uuid[]) AND available`

	rows, err := r.db.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("find available products: %w", err)
	}
	defer rows.Close()

	products := make(map[string]domain.Product, len(ids))
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products[product.ID] = product
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}
	return products, nil
}

// FindExisting returns the subset of ids present in the products table.
func (r *Repository) FindExisting(ctx context.Context, ids []string) (map[string]bool, error) {
	rows, err := r.db.Query(ctx, `SELECT id FROM products WHERE id = ANY($1::uuid[])`, ids)
	if err != nil {
		return nil, fmt.Errorf("find existing products: %w", err)
	}
	defer rows.Close()

	existing := make(map[string]bool, len(ids))
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan product id: %w", err)
		}
		existing[id] = true
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate product ids: %w", err)
	}
	return existing, nil
}
