package domain

import "time"

// UserType is the account kind a user registered with.
type UserType string

// User types.
const (
	UserTypePersonal UserType = "personal"
	UserTypeBusiness UserType = "business"
	UserTypeSeller   UserType = "seller"
)

// IsValid checks if the user type is valid.
func (t UserType) IsValid() bool {
	switch t {
	case UserTypePersonal, UserTypeBusiness, UserTypeSeller:
		return true
	}
	return false
}

// IsBuyer reports whether the account places orders.
func (t UserType) IsBuyer() bool {
	return t == UserTypePersonal || t == UserTypeBusiness
}

// User represents a marketplace account.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	Email     string    `json:"email,omitempty"`
	Type      UserType  `json:"type"`
	Address   string    `json:"address,omitempty"`
	Password  string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
