package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates the requested entity was not found.
	ErrNotFound = errors.New("not found")
	// ErrEmptyCart indicates a cart with zero lines was aggregated.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrNotPaid indicates settlement was invoked for a checkout session
	// the provider does not report as paid. No state is changed.
	ErrNotPaid = errors.New("checkout session is not paid")
	// ErrSequenceExhausted indicates order numbering ran out of candidates
	// for the current period.
	ErrSequenceExhausted = errors.New("order number sequence exhausted")
)

// ValidationError is a caller-fault input error. Not retryable.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// Validationf builds a ValidationError.
func Validationf(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// ConfigurationError is fatal: the platform is misconfigured and must not
// proceed with a partial or incorrect money split.
type ConfigurationError struct {
	Msg string
}

func (e *ConfigurationError) Error() string { return "configuration error: " + e.Msg }

// ConflictError signals an idempotency or uniqueness violation. Callers
// should treat it as success-already-happened.
type ConflictError struct {
	Msg string
}

func (e *ConflictError) Error() string { return e.Msg }

// ProductUnavailableError indicates a referenced product is inactive or
// deleted. Aggregation fails whole rather than dropping lines, so checkout
// totals are never partial or ambiguous.
type ProductUnavailableError struct {
	Ref ProductRef
}

func (e *ProductUnavailableError) Error() string {
	return fmt.Sprintf("product %s is unavailable", e.Ref)
}

// SelfPurchaseError indicates a buyer tried to buy their own product.
type SelfPurchaseError struct {
	BuyerID int64
	Ref     ProductRef
}

func (e *SelfPurchaseError) Error() string {
	return fmt.Sprintf("buyer %d cannot purchase own product %s", e.BuyerID, e.Ref)
}

// SellerNotPayableError indicates a seller in the cart has no payee
// identifier at all and cannot receive any payout, instant or deferred.
type SellerNotPayableError struct {
	SellerID int64
}

func (e *SellerNotPayableError) Error() string {
	return fmt.Sprintf("seller %d has not set up a payout account", e.SellerID)
}
