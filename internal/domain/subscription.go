package domain

import "time"

// Frequency is how often a subscription fires.
type Frequency string

// Subscription frequencies.
const (
	FrequencyDaily  Frequency = "daily"
	FrequencyWeekly Frequency = "weekly"
)

// IsValid checks if the frequency is valid.
func (f Frequency) IsValid() bool {
	return f == FrequencyDaily || f == FrequencyWeekly
}

// Subscription is a recurring order owned by a buyer.
//
// NextRunAt is advanced only by the scheduler or recomputed when the owner
// changes the schedule; owners never set it directly.
type Subscription struct {
	ID        string             `json:"id"`
	UserID    string             `json:"user_id"`
	Name      string             `json:"name"`
	Frequency Frequency          `json:"frequency"`
	DayOfWeek *int               `json:"day_of_week"`
	Hour      int                `json:"hour"`
	Minute    int                `json:"minute"`
	Active    bool               `json:"active"`
	NextRunAt time.Time          `json:"next_run_at"`
	Items     []SubscriptionItem `json:"items"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// SubscriptionItem is a product and quantity ordered on every firing.
type SubscriptionItem struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
	Quantity  int    `json:"quantity" validate:"required,gt=0"`
}

// ProductIDs returns the product ids referenced by the subscription items.
func (s *Subscription) ProductIDs() []string {
	ids := make([]string, 0, len(s.Items))
	for _, item := range s.Items {
		ids = append(ids, item.ProductID)
	}
	return ids
}
