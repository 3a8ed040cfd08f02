// Package ledger converts gross sale amounts into platform commission and
// seller payout under a commission policy. All amounts are minor units
// (cents). The functions are pure; callers load the policy once per
// transaction and pass it in.
package ledger

import (
	"github.com/shopspring/decimal"

	"marketplace-api/internal/domain"
)

var hundred = decimal.NewFromInt(100)

// Commission returns the platform's cut of grossCents, rounded half-up to
// whole cents. A disabled policy always yields zero.
func Commission(grossCents int64, policy domain.CommissionPolicy) (int64, error) {
	if grossCents < 0 {
		return 0, domain.Validationf("gross amount must not be negative, got %d", grossCents)
	}
	if !policy.Enabled {
		return 0, nil
	}
	c := decimal.NewFromInt(grossCents).Mul(policy.Percentage).Div(hundred)
	// decimal.Round rounds half away from zero, which is half-up for the
	// non-negative amounts we allow here.
	return c.Round(0).IntPart(), nil
}

// Payout returns grossCents minus the commission, never rounded
// independently, so gross == commission + payout holds for every gross.
func Payout(grossCents int64, policy domain.CommissionPolicy) (int64, error) {
	c, err := Commission(grossCents, policy)
	if err != nil {
		return 0, err
	}
	return grossCents - c, nil
}

// Split is the full three-way breakdown of one gross amount.
type Split struct {
	GrossCents      int64
	CommissionCents int64
	PayoutCents     int64
}

// SplitGross computes commission and payout in one step.
func SplitGross(grossCents int64, policy domain.CommissionPolicy) (Split, error) {
	c, err := Commission(grossCents, policy)
	if err != nil {
		return Split{}, err
	}
	return Split{
		GrossCents:      grossCents,
		CommissionCents: c,
		PayoutCents:     grossCents - c,
	}, nil
}
