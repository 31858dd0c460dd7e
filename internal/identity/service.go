package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/bissquit/grocer/internal/domain"
	"golang.org/x/crypto/bcrypt"
)

// Service implements identity business logic.
type Service struct {
	repo       Repository
	auth       Authenticator
	bcryptCost int
}

// NewService creates a new identity service.
func NewService(repo Repository, auth Authenticator) *Service {
	return &Service{
		repo:       repo,
		auth:       auth,
		bcryptCost: bcrypt.DefaultCost,
	}
}

// RegisterInput holds data for registering a user.
type RegisterInput struct {
	Name     string
	Phone    string
	Email    string
	Type     domain.UserType
	Address  string
	Password string
}

// LoginInput holds login credentials.
type LoginInput struct {
	Phone    string
	Password string
}

// UpdateProfileInput holds optional profile changes.
type UpdateProfileInput struct {
	Name    *string
	Email   *string
	Address *string
}

// Register creates a new user with a hashed password.
func (s *Service) Register(ctx context.Context, input RegisterInput) (*domain.User, error) {
	if !input.Type.IsValid() {
		return nil, ErrInvalidUserType
	}

	_, err := s.repo.GetUserByPhone(ctx, input.Phone)
	if err == nil {
		return nil, ErrPhoneExists
	}
	if !errors.Is(err, ErrUserNotFound) {
		return nil, fmt.Errorf("check phone: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &domain.User{
		Name:     input.Name,
		Phone:    input.Phone,
		Email:    input.Email,
		Type:     input.Type,
		Address:  input.Address,
		Password: string(hash),
	}

	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	return user, nil
}

// Login verifies credentials and issues an access token.
func (s *Service) Login(ctx context.Context, input LoginInput) (*domain.User, string, error) {
	user, err := s.repo.GetUserByPhone(ctx, input.Phone)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", fmt.Errorf("get user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(input.Password)); err != nil {
		return nil, "", ErrInvalidCredentials
	}

	token, err := s.auth.GenerateToken(user)
	if err != nil {
		return nil, "", fmt.Errorf("generate token: %w", err)
	}

	return user, token, nil
}

// ValidateToken validates an access token. It implements httputil.TokenValidator.
func (s *Service) ValidateToken(_ context.Context, token string) (string, domain.UserType, error) {
	userID, userType, err := s.auth.ValidateToken(token)
	if err != nil {
		return "", "", ErrInvalidToken
	}
	return userID, userType, nil
}

// GetUserByID returns a user by ID.
func (s *Service) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	return s.repo.GetUserByID(ctx, id)
}

// UpdateProfile applies the provided profile changes.
func (s *Service) UpdateProfile(ctx context.Context, userID string, input UpdateProfileInput) (*domain.User, error) {
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		user.Name = *input.Name
	}
	if input.Email != nil {
		user.Email = *input.Email
	}
	if input.Address != nil {
		user.Address = *input.Address
	}

	if err := s.repo.UpdateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}

	return user, nil
}
