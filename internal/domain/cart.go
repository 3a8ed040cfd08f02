package domain

import "time"

// Cart is owned 1:1 by a buyer. Lines reference products polymorphically.
type Cart struct {
	ID        int64      `json:"id"`
	BuyerID   int64      `json:"buyerId"`
	CreatedAt time.Time  `json:"createdAt"`
	Lines     []CartLine `json:"lines,omitempty"`
}

type CartLine struct {
	ID        int64      `json:"id"`
	CartID    int64      `json:"cartId"`
	Ref       ProductRef `json:"ref"`
	Quantity  int        `json:"quantity"`
	CreatedAt time.Time  `json:"createdAt"`
}
