// Package checkout builds hosted payment sessions for single purchases and
// whole carts. It freezes prices, seller attribution, and the commission
// total into session metadata so settlement never depends on mutable state.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"unicode/utf8"

	"github.com/google/uuid"

	"marketplace-api/internal/domain"
	"marketplace-api/internal/ledger"
	"marketplace-api/internal/payment"
	cartsvc "marketplace-api/internal/service/cart"
)

// Provider display lines reject overly long descriptions.
const maxLineDescription = 500

// maxQuantity bounds one line's quantity. Generous for any real purchase
// and keeps line totals well inside int64.
const maxQuantity = 1000

type aggregator interface {
	Aggregate(ctx context.Context, buyerID int64) (*cartsvc.AggregatedCart, error)
}

type productResolver interface {
	Resolve(ctx context.Context, ref domain.ProductRef) (*domain.Product, error)
}

type sellerRepo interface {
	GetByIDs(ctx context.Context, ids []int64) (map[int64]domain.Seller, error)
}

type settingsRepo interface {
	Get(ctx context.Context) (*domain.CommissionPolicy, error)
}

type Service struct {
	carts    aggregator
	products productResolver
	sellers  sellerRepo
	settings settingsRepo
	gateway  payment.Gateway

	baseURL  string
	currency string
	logger   *log.Logger
}

func New(carts aggregator, products productResolver, sellers sellerRepo, settings settingsRepo, gateway payment.Gateway, baseURL, currency string, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Service{
		carts:    carts,
		products: products,
		sellers:  sellers,
		settings: settings,
		gateway:  gateway,
		baseURL:  baseURL,
		currency: currency,
		logger:   logger,
	}
}

// Checkout is a created session, ready for the buyer to be redirected to.
type Checkout struct {
	SessionID   string `json:"sessionId"`
	RedirectURL string `json:"redirectUrl"`
}

// StartSinglePurchase creates a checkout session for one product directly,
// bypassing the cart.
func (s *Service) StartSinglePurchase(ctx context.Context, buyerID int64, ref domain.ProductRef, quantity int) (*Checkout, error) {
	if quantity < 1 || quantity > maxQuantity {
		return nil, domain.Validationf("quantity must be between 1 and %d, got %d", maxQuantity, quantity)
	}
	product, err := s.products.Resolve(ctx, ref)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, &domain.ProductUnavailableError{Ref: ref}
		}
		return nil, err
	}
	if !product.Active {
		return nil, &domain.ProductUnavailableError{Ref: ref}
	}
	if product.SellerID != 0 && product.SellerID == buyerID {
		return nil, &domain.SelfPurchaseError{BuyerID: buyerID, Ref: ref}
	}

	lines := []cartsvc.Line{{
		Ref:            ref,
		Title:          product.Title,
		Description:    product.Description,
		SellerID:       product.SellerID,
		Quantity:       quantity,
		UnitPriceCents: product.PriceCents,
	}}
	agg := &cartsvc.AggregatedCart{
		BuyerID:         buyerID,
		Lines:           lines,
		GrandTotalCents: product.PriceCents * int64(quantity),
	}
	if product.SellerID != 0 {
		agg.Groups = []cartsvc.SellerGroup{{
			SellerID:      product.SellerID,
			Lines:         lines,
			SubtotalCents: agg.GrandTotalCents,
		}}
	} else {
		agg.NoSellerLines = lines
	}
	return s.start(ctx, agg, payment.PurchaseSingle)
}

// StartCartCheckout creates a checkout session covering the buyer's whole
// cart, however many sellers it spans.
func (s *Service) StartCartCheckout(ctx context.Context, buyerID int64) (*Checkout, error) {
	agg, err := s.carts.Aggregate(ctx, buyerID)
	if err != nil {
		return nil, err
	}
	return s.start(ctx, agg, payment.PurchaseCart)
}

func (s *Service) start(ctx context.Context, agg *cartsvc.AggregatedCart, kind payment.PurchaseKind) (*Checkout, error) {
	policy, err := s.settings.Get(ctx)
	if err != nil {
		return nil, err
	}
	// A policy that wants a cut but has nowhere to send it would silently
	// produce unsplit charges. Refuse to sell until it is fixed.
	if policy.Enabled && !policy.HasPlatformPayee() {
		return nil, &domain.ConfigurationError{Msg: "commission is enabled but no platform payee is configured"}
	}

	// add-time guards should make this unreachable for carts, but the
	// builder is the last gate before money moves
	for _, l := range agg.Lines {
		if l.SellerID != 0 && l.SellerID == agg.BuyerID {
			return nil, &domain.SelfPurchaseError{BuyerID: agg.BuyerID, Ref: l.Ref}
		}
	}

	sellers, err := s.loadSellers(ctx, agg)
	if err != nil {
		return nil, err
	}

	totalCommission, err := s.totalCommission(agg, *policy)
	if err != nil {
		return nil, err
	}

	split := s.instantSplit(agg, sellers, *policy, totalCommission)

	meta := payment.SessionMetadata{
		BuyerID:              agg.BuyerID,
		Kind:                 kind,
		Lines:                metaLines(agg),
		TotalCommissionCents: totalCommission,
		InstantSplit:         split != nil,
	}
	md, err := meta.Encode()
	if err != nil {
		return nil, fmt.Errorf("encode session metadata: %w", err)
	}

	// fresh reference per attempt so provider-side records of abandoned
	// sessions stay distinguishable
	ref := fmt.Sprintf("buyer-%d-%s", agg.BuyerID, uuid.NewString())

	in := payment.CreateSessionInput{
		LineItems:         displayLines(agg, s.currency),
		SuccessURL:        s.baseURL + "/checkout/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:         s.baseURL + "/cart",
		ClientReferenceID: ref,
		Metadata:          md,
		Split:             split,
	}

	sess, err := s.gateway.CreateCheckoutSession(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}
	s.logger.Printf("checkout: session %s created buyer=%d kind=%s total=%d commission=%d",
		sess.ID, agg.BuyerID, kind, agg.GrandTotalCents, totalCommission)
	return &Checkout{SessionID: sess.ID, RedirectURL: sess.RedirectURL}, nil
}

// loadSellers fetches every seller in the purchase and rejects any that
// cannot receive a payout. Blocking here beats charging the buyer and then
// holding funds we cannot forward.
func (s *Service) loadSellers(ctx context.Context, agg *cartsvc.AggregatedCart) (map[int64]domain.Seller, error) {
	if len(agg.Groups) == 0 {
		return nil, nil
	}
	ids := make([]int64, 0, len(agg.Groups))
	for _, g := range agg.Groups {
		ids = append(ids, g.SellerID)
	}
	sellers, err := s.sellers.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		sel, ok := sellers[id]
		if !ok || !sel.Payable() {
			return nil, &domain.SellerNotPayableError{SellerID: id}
		}
	}
	return sellers, nil
}

// totalCommission sums the commission over each seller group separately, so
// the per-seller rounding that settlement will apply is already baked into
// the frozen total. Lines without a seller carry no commission.
func (s *Service) totalCommission(agg *cartsvc.AggregatedCart, policy domain.CommissionPolicy) (int64, error) {
	var total int64
	for _, g := range agg.Groups {
		c, err := ledger.Commission(g.SubtotalCents, policy)
		if err != nil {
			return 0, err
		}
		total += c
	}
	return total, nil
}

// instantSplit decides whether the provider can do the split at charge
// time. That is only safe when every cent of the charge belongs to a single
// fully connected seller; anything else settles by deferred transfers.
func (s *Service) instantSplit(agg *cartsvc.AggregatedCart, sellers map[int64]domain.Seller, policy domain.CommissionPolicy, totalCommission int64) *payment.InstantSplit {
	if !policy.Enabled || totalCommission <= 0 {
		return nil
	}
	if len(agg.Groups) != 1 || len(agg.NoSellerLines) != 0 {
		return nil
	}
	sel, ok := sellers[agg.Groups[0].SellerID]
	if !ok || !sel.Connected() {
		return nil
	}
	return &payment.InstantSplit{
		ApplicationFeeCents: totalCommission,
		DestinationPayeeID:  *sel.PayeeID,
	}
}

func metaLines(agg *cartsvc.AggregatedCart) []payment.MetaLine {
	out := make([]payment.MetaLine, 0, len(agg.Lines))
	for _, l := range agg.Lines {
		out = append(out, payment.MetaLine{
			Kind:       l.Ref.Kind,
			ProductID:  l.Ref.ID,
			Quantity:   l.Quantity,
			PriceCents: l.UnitPriceCents,
			SellerID:   l.SellerID,
		})
	}
	return out
}

func displayLines(agg *cartsvc.AggregatedCart, currency string) []payment.LineItem {
	out := make([]payment.LineItem, 0, len(agg.Lines))
	for _, l := range agg.Lines {
		out = append(out, payment.LineItem{
			Name:            l.Title,
			Description:     truncate(l.Description, maxLineDescription),
			UnitAmountCents: l.UnitPriceCents,
			Quantity:        l.Quantity,
			Currency:        currency,
		})
	}
	return out
}

// truncate cuts s to at most max bytes without splitting a rune, so the
// provider never receives invalid UTF-8.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
