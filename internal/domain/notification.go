package domain

import "time"

type NotificationType string

const (
	NotificationOrderCreated  NotificationType = "order_created"
	NotificationNewSale       NotificationType = "new_sale"
	NotificationPayoutSent    NotificationType = "payout_sent"
	NotificationPayoutDelayed NotificationType = "payout_delayed"
	NotificationPayoutFailed  NotificationType = "payout_failed"
	NotificationChatOpened    NotificationType = "chat_opened"
)

type Notification struct {
	ID        int64            `json:"id"`
	UserID    int64            `json:"userId"`
	Type      NotificationType `json:"type"`
	Title     string           `json:"title"`
	Body      string           `json:"body"`
	Link      string           `json:"link,omitempty"`
	CreatedAt time.Time        `json:"createdAt"`
}

// ServiceChat is the buyer-seller messaging channel opened when a service
// product is purchased. The (buyer, seller, product) triple is unique.
type ServiceChat struct {
	ID        int64     `json:"id"`
	BuyerID   int64     `json:"buyerId"`
	SellerID  int64     `json:"sellerId"`
	ProductID int64     `json:"productId"`
	CreatedAt time.Time `json:"createdAt"`
}
