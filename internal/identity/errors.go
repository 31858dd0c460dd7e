package identity

import "errors"

// Identity errors.
var (
	ErrUserNotFound       = errors.New("user not found")
	ErrPhoneExists        = errors.New("phone already registered")
	ErrInvalidCredentials = errors.New("invalid phone or password")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrInvalidUserType    = errors.New("type must be personal, business or seller")
)
