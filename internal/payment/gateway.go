// Package payment holds the contract the marketplace core needs from the
// external payment provider: create a hosted checkout session, read a
// session's payment status, and transfer funds to a connected payee.
// Implementations are constructed explicitly and injected, never reached
// through package-level state, so tests can swap in a fake.
package payment

import "context"

// SessionStatus is the provider's view of a checkout session's payment.
type SessionStatus string

const (
	StatusPaid   SessionStatus = "paid"
	StatusUnpaid SessionStatus = "unpaid"
	StatusFailed SessionStatus = "failed"
)

// LineItem is one opaque display line on the provider's hosted page.
type LineItem struct {
	Name            string
	Description     string
	UnitAmountCents int64
	Quantity        int
	Currency        string
}

// InstantSplit instructs the provider to withhold the platform fee at
// charge time and route the remainder straight to the seller's payee.
type InstantSplit struct {
	ApplicationFeeCents int64
	DestinationPayeeID  string
}

type CreateSessionInput struct {
	LineItems         []LineItem
	SuccessURL        string
	CancelURL         string
	ClientReferenceID string
	Metadata          map[string]string
	Split             *InstantSplit
}

// Session is the provider-assigned session plus the metadata that
// round-trips through it.
type Session struct {
	ID               string
	RedirectURL      string
	Status           SessionStatus
	AmountTotalCents int64
	Metadata         map[string]string
}

type TransferInput struct {
	PayeeID        string
	AmountCents    int64
	Currency       string
	Description    string
	IdempotencyKey string
	Metadata       map[string]string
}

type Transfer struct {
	ID string
}

type Gateway interface {
	CreateCheckoutSession(ctx context.Context, in CreateSessionInput) (*Session, error)
	GetSession(ctx context.Context, sessionID string) (*Session, error)
	Transfer(ctx context.Context, in TransferInput) (*Transfer, error)
}
