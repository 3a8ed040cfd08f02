package payment

import (
	"encoding/json"
	"strconv"

	"marketplace-api/internal/domain"
)

// PurchaseKind tags what a checkout session was built from.
type PurchaseKind string

const (
	PurchaseSingle PurchaseKind = "single"
	PurchaseCart   PurchaseKind = "cart"
)

// MetaLine is one frozen line item embedded in session metadata. Settlement
// reconstructs the order strictly from these, never from live cart state.
type MetaLine struct {
	Kind       domain.Kind `json:"kind"`
	ProductID  int64       `json:"id"`
	Quantity   int         `json:"qty"`
	PriceCents int64       `json:"price"`
	SellerID   int64       `json:"seller,omitempty"`
}

func (l MetaLine) Ref() domain.ProductRef {
	return domain.ProductRef{Kind: l.Kind, ID: l.ProductID}
}

func (l MetaLine) TotalCents() int64 {
	return l.PriceCents * int64(l.Quantity)
}

// SessionMetadata is everything needed to settle a session without
// re-querying mutable cart state.
type SessionMetadata struct {
	BuyerID              int64
	Kind                 PurchaseKind
	Lines                []MetaLine
	TotalCommissionCents int64
	// InstantSplit records that the platform fee was withheld and the
	// seller paid at charge time, so settlement must not transfer again.
	InstantSplit bool
}

const (
	metaBuyerID      = "buyer_id"
	metaKind         = "purchase_kind"
	metaLines        = "lines"
	metaCommission   = "total_commission_cents"
	metaInstantSplit = "instant_split"
)

// Encode flattens the metadata into the provider's string map.
func (m SessionMetadata) Encode() (map[string]string, error) {
	lines, err := json.Marshal(m.Lines)
	if err != nil {
		return nil, err
	}
	md := map[string]string{
		metaBuyerID:    strconv.FormatInt(m.BuyerID, 10),
		metaKind:       string(m.Kind),
		metaLines:      string(lines),
		metaCommission: strconv.FormatInt(m.TotalCommissionCents, 10),
	}
	if m.InstantSplit {
		md[metaInstantSplit] = "1"
	}
	return md, nil
}

// ParseSessionMetadata is the inverse of Encode. A session whose metadata
// does not decode is a caller-fault error: it was not built by us.
func ParseSessionMetadata(md map[string]string) (*SessionMetadata, error) {
	buyerID, err := strconv.ParseInt(md[metaBuyerID], 10, 64)
	if err != nil {
		return nil, domain.Validationf("session metadata: bad buyer id %q", md[metaBuyerID])
	}
	kind := PurchaseKind(md[metaKind])
	if kind != PurchaseSingle && kind != PurchaseCart {
		return nil, domain.Validationf("session metadata: bad purchase kind %q", md[metaKind])
	}
	var lines []MetaLine
	if err := json.Unmarshal([]byte(md[metaLines]), &lines); err != nil {
		return nil, domain.Validationf("session metadata: bad line items: %v", err)
	}
	if len(lines) == 0 {
		return nil, domain.Validationf("session metadata: no line items")
	}
	commission, err := strconv.ParseInt(md[metaCommission], 10, 64)
	if err != nil {
		return nil, domain.Validationf("session metadata: bad commission %q", md[metaCommission])
	}
	return &SessionMetadata{
		BuyerID:              buyerID,
		Kind:                 kind,
		Lines:                lines,
		TotalCommissionCents: commission,
		InstantSplit:         md[metaInstantSplit] == "1",
	}, nil
}
