package orders

import "errors"

// Order errors.
var (
	ErrOrderNotFound       = errors.New("order not found")
	ErrProductsUnavailable = errors.New("some products are not available")
	ErrDuplicateProduct    = errors.New("each product may appear only once per order")
	ErrNotAuthorized       = errors.New("not authorized to access this order")
	ErrInvalidStatus       = errors.New("invalid order status")
)
