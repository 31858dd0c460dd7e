// Package jwt issues and validates HS256 access tokens.
package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/bissquit/grocer/internal/domain"
	"github.com/golang-jwt/jwt/v5"
)

// Config contains token settings.
type Config struct {
	SecretKey           string
	AccessTokenDuration time.Duration
	Issuer              string
}

// Claims are the custom claims carried by an access token.
type Claims struct {
	UserType domain.UserType `json:"type"`
	Phone    string          `json:"phone"`
	jwt.RegisteredClaims
}

// Authenticator signs and verifies access tokens.
type Authenticator struct {
	config Config
	now    func() time.Time
}

// NewAuthenticator creates a new JWT authenticator.
func NewAuthenticator(config Config) *Authenticator {
	return &Authenticator{config: config, now: time.Now}
}

// GenerateToken issues an access token for the user.
func (a *Authenticator) GenerateToken(user *domain.User) (string, error) {
	now := a.now()
	claims := Claims{
		UserType: user.Type,
		Phone:    user.Phone,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			Issuer:    a.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.config.AccessTokenDuration)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(a.config.SecretKey))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken parses the token and returns the user it was issued for.
func (a *Authenticator) ValidateToken(tokenString string) (string, domain.UserType, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(tokenString, &claims, func(*jwt.Token) (interface{}, error) {
		return []byte(a.config.SecretKey), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(a.config.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		return "", "", fmt.Errorf("parse token: %w", err)
	}

	if claims.Subject == "" || !claims.UserType.IsValid() {
		return "", "", errors.New("token is missing subject or type")
	}

	return claims.Subject, claims.UserType, nil
}
