// Package notify records in-app notifications. Delivery is best effort: a
// failed insert is logged and swallowed, because no caller should abort a
// settled payment over a missing notification row.
package notify

import (
	"context"
	"fmt"
	"io"
	"log"

	"marketplace-api/internal/domain"
)

type repository interface {
	Create(ctx context.Context, n domain.Notification) (*domain.Notification, error)
}

type Sink struct {
	repo   repository
	logger *log.Logger
}

func New(repo repository, logger *log.Logger) *Sink {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Sink{repo: repo, logger: logger}
}

func (s *Sink) send(ctx context.Context, n domain.Notification) {
	if _, err := s.repo.Create(ctx, n); err != nil {
		s.logger.Printf("notify: dropping %s for user %d: %v", n.Type, n.UserID, err)
	}
}

// OrderCreated tells the buyer their order went through.
func (s *Sink) OrderCreated(ctx context.Context, buyerID int64, orderNumber string, totalCents int64) {
	s.send(ctx, domain.Notification{
		UserID: buyerID,
		Type:   domain.NotificationOrderCreated,
		Title:  "Order confirmed",
		Body:   fmt.Sprintf("Order %s for %s is confirmed.", orderNumber, formatCents(totalCents)),
		Link:   "/orders",
	})
}

// NewSale tells a seller one of their products sold.
func (s *Sink) NewSale(ctx context.Context, sellerID int64, orderNumber string, payoutCents int64) {
	s.send(ctx, domain.Notification{
		UserID: sellerID,
		Type:   domain.NotificationNewSale,
		Title:  "New sale",
		Body:   fmt.Sprintf("Order %s sold. Your share is %s.", orderNumber, formatCents(payoutCents)),
		Link:   "/seller/payouts",
	})
}

// PayoutSent tells a seller their deferred transfer went out.
func (s *Sink) PayoutSent(ctx context.Context, sellerID int64, orderNumber string, payoutCents int64) {
	s.send(ctx, domain.Notification{
		UserID: sellerID,
		Type:   domain.NotificationPayoutSent,
		Title:  "Payout sent",
		Body:   fmt.Sprintf("%s for order %s is on its way.", formatCents(payoutCents), orderNumber),
		Link:   "/seller/payouts",
	})
}

// PayoutDelayed tells a seller their transfer hit a transient problem and
// the platform retries on its own; no action is needed from them.
func (s *Sink) PayoutDelayed(ctx context.Context, sellerID int64, orderNumber string) {
	s.send(ctx, domain.Notification{
		UserID: sellerID,
		Type:   domain.NotificationPayoutDelayed,
		Title:  "Payout processing",
		Body:   fmt.Sprintf("The payout for order %s is still processing; we will retry automatically.", orderNumber),
		Link:   "/seller/payouts",
	})
}

// PayoutFailed tells a seller their transfer could not be completed. The
// body differs depending on whether the seller can do anything about it.
func (s *Sink) PayoutFailed(ctx context.Context, sellerID int64, orderNumber string, actionable bool) {
	body := fmt.Sprintf("The payout for order %s failed. We will follow up with you directly.", orderNumber)
	if actionable {
		body = fmt.Sprintf("The payout for order %s failed. Please complete your payout account setup.", orderNumber)
	}
	s.send(ctx, domain.Notification{
		UserID: sellerID,
		Type:   domain.NotificationPayoutFailed,
		Title:  "Payout problem",
		Body:   body,
		Link:   "/seller/payouts",
	})
}

// ChatOpened tells a seller a buyer purchased one of their services and the
// channel for it is now open.
func (s *Sink) ChatOpened(ctx context.Context, sellerID, chatID int64, productTitle string) {
	s.send(ctx, domain.Notification{
		UserID: sellerID,
		Type:   domain.NotificationChatOpened,
		Title:  "Service purchased",
		Body:   fmt.Sprintf("A buyer purchased %q. A chat has been opened for you.", productTitle),
		Link:   fmt.Sprintf("/chats/%d", chatID),
	})
}

func formatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s$%d.%02d", sign, cents/100, cents%100)
}
