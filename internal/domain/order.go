package domain

import "time"

// OrderStatus represents the fulfilment state of an order.
type OrderStatus string

// Order statuses.
const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusOngoing   OrderStatus = "ongoing"
	OrderStatusFulfilled OrderStatus = "fulfilled"
	OrderStatusPaid      OrderStatus = "paid"
)

// IsValid checks if the order status is valid.
func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderStatusPending, OrderStatusOngoing, OrderStatusFulfilled, OrderStatusPaid:
		return true
	}
	return false
}

// Order is an immutable record of a purchase. Orders created by the
// subscription scheduler carry the originating SubscriptionID.
type Order struct {
	ID             string      `json:"id"`
	UserID         string      `json:"user_id"`
	SubscriptionID *string     `json:"subscription_id"`
	Status         OrderStatus `json:"status"`
	Items          []OrderItem `json:"items"`
	PlacedAt       time.Time   `json:"placed_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

// OrderItem is a single order line. Price and Cost are snapshots taken
// when the order was placed.
type OrderItem struct {
	ID        string `json:"id"`
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Price     int64  `json:"price"`
	Cost      int64  `json:"cost"`
}

// Total returns the order value in minor currency units.
func (o *Order) Total() int64 {
	var total int64
	for _, item := range o.Items {
		total += item.Price * int64(item.Quantity)
	}
	return total
}
