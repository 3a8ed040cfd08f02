package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// CommissionPolicy is the admin-mutable singleton controlling how each sale
// is split between the platform and the seller. It is loaded once per
// request or transaction and passed around as a value, never mutated
// mid-calculation.
type CommissionPolicy struct {
	PlatformName    string          `json:"platformName"`
	Enabled         bool            `json:"enabled"`
	Percentage      decimal.Decimal `json:"percentage"`
	PlatformPayeeID *string         `json:"platformPayeeId,omitempty"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// HasPlatformPayee reports whether commissions have somewhere to land.
func (p CommissionPolicy) HasPlatformPayee() bool {
	return p.PlatformPayeeID != nil && *p.PlatformPayeeID != ""
}

// Validate checks the percentage bounds.
func (p CommissionPolicy) Validate() error {
	if p.Percentage.IsNegative() || p.Percentage.GreaterThan(decimal.NewFromInt(100)) {
		return Validationf("commission percentage must be within [0,100], got %s", p.Percentage)
	}
	return nil
}
