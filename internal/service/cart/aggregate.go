package cart

import (
	"context"
	"errors"
	"sort"

	"marketplace-api/internal/domain"
)

// Line is a cart line snapshotted with the product's current price and
// seller at aggregation time.
type Line struct {
	Ref            domain.ProductRef `json:"ref"`
	Title          string            `json:"title"`
	Description    string            `json:"description,omitempty"`
	SellerID       int64             `json:"sellerId,omitempty"`
	Quantity       int               `json:"quantity"`
	UnitPriceCents int64             `json:"unitPriceCents"`
}

func (l Line) TotalCents() int64 {
	return l.UnitPriceCents * int64(l.Quantity)
}

// SellerGroup is one seller's slice of the cart.
type SellerGroup struct {
	SellerID      int64  `json:"sellerId"`
	Lines         []Line `json:"lines"`
	SubtotalCents int64  `json:"subtotalCents"`
}

// AggregatedCart is the seller-grouped snapshot checkout is built from.
// Lines without a seller are carried in NoSellerLines: they count toward
// the grand total but are excluded from payout splitting.
type AggregatedCart struct {
	BuyerID         int64         `json:"buyerId"`
	Lines           []Line        `json:"lines"`
	Groups          []SellerGroup `json:"sellerGroups"`
	NoSellerLines   []Line        `json:"noSellerLines,omitempty"`
	GrandTotalCents int64         `json:"grandTotalCents"`
}

// UniqueSellerCount counts sellers participating in the payout split.
func (a *AggregatedCart) UniqueSellerCount() int {
	return len(a.Groups)
}

// Aggregate snapshots the buyer's cart into seller groups with totals
// recomputed from live product prices, so a price change after add-to-cart
// is always reflected. It is a pure read: the cart is not mutated.
//
// If any line references an inactive or deleted product the whole
// aggregation fails; a partially priced checkout total is worse than a
// blocked one.
func (s *Service) Aggregate(ctx context.Context, buyerID int64) (*AggregatedCart, error) {
	cart, err := s.repo.GetByBuyer(ctx, buyerID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrEmptyCart
		}
		return nil, err
	}
	if len(cart.Lines) == 0 {
		return nil, domain.ErrEmptyCart
	}

	agg := &AggregatedCart{BuyerID: buyerID}
	groups := map[int64]*SellerGroup{}

	for _, cl := range cart.Lines {
		product, err := s.products.Resolve(ctx, cl.Ref)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, &domain.ProductUnavailableError{Ref: cl.Ref}
			}
			return nil, err
		}
		if !product.Active {
			return nil, &domain.ProductUnavailableError{Ref: cl.Ref}
		}

		line := Line{
			Ref:            cl.Ref,
			Title:          product.Title,
			Description:    product.Description,
			SellerID:       product.SellerID,
			Quantity:       cl.Quantity,
			UnitPriceCents: product.PriceCents,
		}
		agg.Lines = append(agg.Lines, line)
		agg.GrandTotalCents += line.TotalCents()

		if line.SellerID == 0 {
			agg.NoSellerLines = append(agg.NoSellerLines, line)
			continue
		}
		group, ok := groups[line.SellerID]
		if !ok {
			group = &SellerGroup{SellerID: line.SellerID}
			groups[line.SellerID] = group
		}
		group.Lines = append(group.Lines, line)
		group.SubtotalCents += line.TotalCents()
	}

	agg.Groups = make([]SellerGroup, 0, len(groups))
	for _, g := range groups {
		agg.Groups = append(agg.Groups, *g)
	}
	sort.Slice(agg.Groups, func(i, j int) bool {
		return agg.Groups[i].SellerID < agg.Groups[j].SellerID
	})

	return agg, nil
}
