package domain

import "time"

// PayeeStatus tracks how far a seller has gotten with payout onboarding.
type PayeeStatus string

const (
	PayeeStatusNone    PayeeStatus = "none"
	PayeeStatusPending PayeeStatus = "pending"
	PayeeStatusActive  PayeeStatus = "active"
)

type Seller struct {
	ID          int64       `json:"id"`
	Name        string      `json:"name"`
	Email       string      `json:"email"`
	PayeeID     *string     `json:"payeeId,omitempty"`
	PayeeStatus PayeeStatus `json:"payeeStatus"`
	CreatedAt   time.Time   `json:"createdAt"`
}

// Payable reports whether the seller can receive any payout at all,
// instant or deferred.
func (s Seller) Payable() bool {
	return s.PayeeID != nil && *s.PayeeID != ""
}

// Connected reports whether the seller's payee account is fully onboarded,
// which is what instant splits at charge time require.
func (s Seller) Connected() bool {
	return s.Payable() && s.PayeeStatus == PayeeStatusActive
}
