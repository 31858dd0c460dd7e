// Package identity provides user registration, login and token validation.
package identity

import (
	"context"

	"github.com/bissquit/grocer/internal/domain"
)

// Repository defines the interface for user storage.
type Repository interface {
	CreateUser(ctx context.Context, user *domain.User) error
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
	GetUserByPhone(ctx context.Context, phone string) (*domain.User, error)
	UpdateUser(ctx context.Context, user *domain.User) error
}

// Authenticator issues and validates access tokens.
type Authenticator interface {
	GenerateToken(user *domain.User) (string, error)
	ValidateToken(token string) (userID string, userType domain.UserType, err error)
}
