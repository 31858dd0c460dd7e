package catalog

import "errors"

// Catalog errors.
var (
	ErrProductNotFound = errors.New("product not found")
	ErrNotProductOwner = errors.New("product belongs to another seller")
	ErrProductInUse    = errors.New("product is referenced by existing orders, mark it unavailable instead")
)
