package jwt

import (
	"testing"
	"time"

	"github.com/bissquit/grocer/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAuthenticator(now time.Time) *Authenticator {
	a := NewAuthenticator(Config{
		SecretKey:           "test-secret-key",
		AccessTokenDuration: time.Hour,
		Issuer:              "grocer",
	})
	a.now = func() time.Time { return now }
	return a
}

func TestGenerateAndValidate(t *testing.T) {
	now := time.Date(2026, time.October, 19, 12, 0, 0, 0, time.UTC)
	a := newTestAuthenticator(now)

	token, err := a.GenerateToken(&domain.User{ID: "user-1", Phone: "+100", Type: domain.UserTypeSeller})
	require.NoError(t, err)

	userID, userType, err := a.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", userID)
	assert.Equal(t, domain.UserTypeSeller, userType)
}

func TestValidate_Expired(t *testing.T) {
	now := time.Date(2026, time.October, 19, 12, 0, 0, 0, time.UTC)
	a := newTestAuthenticator(now)

	token, err := a.GenerateToken(&domain.User{ID: "user-1", Type: domain.UserTypePersonal})
	require.NoError(t, err)

	a.now = func() time.Time { return now.Add(2 * time.Hour) }

	_, _, err = a.ValidateToken(token)
	assert.Error(t, err)
}

func TestValidate_WrongSecret(t *testing.T) {
	now := time.Date(2026, time.October, 19, 12, 0, 0, 0, time.UTC)
	token, err := newTestAuthenticator(now).GenerateToken(&domain.User{ID: "user-1", Type: domain.UserTypePersonal})
	require.NoError(t, err)

	other := NewAuthenticator(Config{SecretKey: "other", AccessTokenDuration: time.Hour, Issuer: "grocer"})
	other.now = func() time.Time { return now }

	_, _, err = other.ValidateToken(token)
	assert.Error(t, err)
}

func TestValidate_Garbage(t *testing.T) {
	a := newTestAuthenticator(time.Now())

	_, _, err := a.ValidateToken("not.a.token")
	assert.Error(t, err)
}
