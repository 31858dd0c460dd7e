package domain

import "time"

// Product is an item a seller lists in the catalog.
// Price and Cost are stored in minor currency units.
type Product struct {
	ID          string    `json:"id"`
	SellerID    string    `json:"seller_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Price       int64     `json:"price"`
	Cost        int64     `json:"cost"`
	Unit        string    `json:"unit"`
	Available   bool      `json:"available"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
