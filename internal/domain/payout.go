package domain

import "time"

type PayoutStatus string

const (
	// PayoutStatusPending marks a payout owed but not yet transferred.
	PayoutStatusPending PayoutStatus = "pending"
	// PayoutStatusInstant marks a payout already routed at charge time
	// through an instant split; no separate transfer is needed.
	PayoutStatusInstant PayoutStatus = "instant"
	// PayoutStatusTransferred marks a completed deferred transfer.
	PayoutStatusTransferred PayoutStatus = "transferred"
	// PayoutStatusFailedRetryable marks transfers the platform can retry
	// later, e.g. insufficient platform balance.
	PayoutStatusFailedRetryable PayoutStatus = "failed_retryable"
	// PayoutStatusFailedManual marks transfers requiring seller action or
	// operator intervention.
	PayoutStatusFailedManual PayoutStatus = "failed_manual"
)

// Settled reports whether the payout needs no further transfer attempts.
func (s PayoutStatus) Settled() bool {
	return s == PayoutStatusInstant || s == PayoutStatusTransferred || s == PayoutStatusFailedManual
}

// Payout records one seller's share of one order. The (OrderID, SellerID)
// pair is unique, which doubles as the at-most-once transfer marker.
type Payout struct {
	ID              int64        `json:"id"`
	OrderID         int64        `json:"orderId"`
	SellerID        int64        `json:"sellerId"`
	GrossCents      int64        `json:"grossCents"`
	CommissionCents int64        `json:"commissionCents"`
	PayoutCents     int64        `json:"payoutCents"`
	Status          PayoutStatus `json:"status"`
	TransferID      *string      `json:"transferId,omitempty"`
	FailureReason   *string      `json:"failureReason,omitempty"`
	CreatedAt       time.Time    `json:"createdAt"`
	UpdatedAt       time.Time    `json:"updatedAt"`
}
