package subscriptions

import "errors"

// Subscription errors.
var (
	ErrSubscriptionNotFound = errors.New("subscription not found")
	ErrNotOwner             = errors.New("not authorized to access this subscription")
	ErrEmptyItems           = errors.New("subscription must contain at least one item")
	ErrInvalidQuantity      = errors.New("item quantity must be positive")
	ErrDuplicateProduct     = errors.New("each product may appear only once per subscription")
	ErrUnknownProducts      = errors.New("subscription references unknown products")
)
