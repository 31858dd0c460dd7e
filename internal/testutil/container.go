package testutil

import (
	"context"
	"fmt"
	"time"

	pgutil "github.com/bissquit/grocer/internal/pkg/postgres"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// PostgresContainer wraps a postgres testcontainer.
type PostgresContainer struct {
	*postgres.PostgresContainer
	ConnectionString string
}

// NewPostgresContainer creates a new PostgreSQL container for testing.
func NewPostgresContainer(ctx context.Context) (*PostgresContainer, error) {
	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("grocer"),
		postgres.WithUsername("grocer"),
		postgres.WithPassword("grocer"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("start postgres container: %w", err)
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return nil, fmt.Errorf("get connection string: %w", err)
	}

	return &PostgresContainer{
		PostgresContainer: container,
		ConnectionString:  connStr,
	}, nil
}

// NewMigratedPool starts a container, applies migrations from dir and
// returns a pool plus a cleanup function that closes the pool and stops
// the container.
func NewMigratedPool(ctx context.Context, migrationsDir string) (*pgxpool.Pool, func(), error) {
	container, err := NewPostgresContainer(ctx)
	if err != nil {
		return nil, nil, err
	}
	terminate := func() { _ = container.Terminate(context.Background()) }

	if err := pgutil.Migrate(container.ConnectionString, migrationsDir); err != nil {
		terminate()
		return nil, nil, err
	}

	pool, err := pgxpool.New(ctx, container.ConnectionString)
	if err != nil {
		terminate()
		return nil, nil, fmt.Errorf("create pool: %w", err)
	}

	return pool, func() {
		pool.Close()
		terminate()
	}, nil
}
