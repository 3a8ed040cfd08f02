// Package settlement turns a paid checkout session into an order and pays
// the sellers. Every step is idempotent: the order is anchored on the
// unique session id, payout markers are anchored on the (order, seller)
// pair, and a repeated or concurrent settlement of the same session
// converges on the same result.
package settlement

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"marketplace-api/internal/domain"
	"marketplace-api/internal/ledger"
	"marketplace-api/internal/payment"
	orderrepo "marketplace-api/internal/repository/order"
	payoutrepo "marketplace-api/internal/repository/payout"
)

var (
	ordersSettled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "settlement_orders_total",
		Help: "Settled checkout sessions by outcome.",
	}, []string{"outcome"})
	transfersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "settlement_transfers_total",
		Help: "Deferred payout transfer attempts by result.",
	}, []string{"result"})
)

const (
	transferAttempts = 3
	transferBackoff  = 200 * time.Millisecond
)

type orderStore interface {
	CreateWithItems(ctx context.Context, in orderrepo.CreateInput) (*domain.Order, bool, error)
	SetStatus(ctx context.Context, orderID int64, status domain.OrderStatus) error
}

type payoutStore interface {
	Create(ctx context.Context, in payoutrepo.CreateInput) (*domain.Payout, bool, error)
	MarkTransferred(ctx context.Context, id int64, transferID string) error
	MarkFailed(ctx context.Context, id int64, status domain.PayoutStatus, reason string) error
}

type cartStore interface {
	RemoveSettledLines(ctx context.Context, buyerID int64, refs []domain.ProductRef) error
}

type sellerStore interface {
	GetByIDs(ctx context.Context, ids []int64) (map[int64]domain.Seller, error)
}

type settingsStore interface {
	Get(ctx context.Context) (*domain.CommissionPolicy, error)
}

type chatStore interface {
	GetOrCreate(ctx context.Context, buyerID, sellerID, productID int64) (*domain.ServiceChat, bool, error)
}

type productResolver interface {
	Resolve(ctx context.Context, ref domain.ProductRef) (*domain.Product, error)
}

type notifier interface {
	OrderCreated(ctx context.Context, buyerID int64, orderNumber string, totalCents int64)
	NewSale(ctx context.Context, sellerID int64, orderNumber string, payoutCents int64)
	PayoutSent(ctx context.Context, sellerID int64, orderNumber string, payoutCents int64)
	PayoutDelayed(ctx context.Context, sellerID int64, orderNumber string)
	PayoutFailed(ctx context.Context, sellerID int64, orderNumber string, actionable bool)
	ChatOpened(ctx context.Context, sellerID, chatID int64, productTitle string)
}

type Service struct {
	gateway  payment.Gateway
	orders   orderStore
	payouts  payoutStore
	carts    cartStore
	sellers  sellerStore
	settings settingsStore
	chats    chatStore
	products productResolver
	notify   notifier

	currency string
	logger   *log.Logger
	sleep    func(ctx context.Context, d time.Duration) error
}

func New(gateway payment.Gateway, orders orderStore, payouts payoutStore, carts cartStore, sellers sellerStore, settings settingsStore, chats chatStore, products productResolver, notify notifier, currency string, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Service{
		gateway:  gateway,
		orders:   orders,
		payouts:  payouts,
		carts:    carts,
		sellers:  sellers,
		settings: settings,
		chats:    chats,
		products: products,
		notify:   notify,
		currency: currency,
		logger:   logger,
		sleep:    sleepCtx,
	}
}

// Settle processes one paid checkout session end to end: verify payment,
// create the order once, clear settled cart lines, open service chats, and
// fan out seller payouts. Re-invoking it for the same session resumes
// whatever is still unsettled and changes nothing else.
func (s *Service) Settle(ctx context.Context, sessionID string) (*domain.Order, error) {
	sess, err := s.gateway.GetSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("get session %s: %w", sessionID, err)
	}
	if sess.Status != payment.StatusPaid {
		return nil, domain.ErrNotPaid
	}
	meta, err := payment.ParseSessionMetadata(sess.Metadata)
	if err != nil {
		return nil, err
	}

	var total int64
	items := make([]orderrepo.NewOrderItem, 0, len(meta.Lines))
	for _, l := range meta.Lines {
		total += l.TotalCents()
		items = append(items, orderrepo.NewOrderItem{
			Ref:        l.Ref(),
			Quantity:   l.Quantity,
			PriceCents: l.PriceCents,
		})
	}

	order, created, err := s.orders.CreateWithItems(ctx, orderrepo.CreateInput{
		BuyerID:           meta.BuyerID,
		TotalCents:        total,
		ProviderSessionID: sessionID,
		Items:             items,
	})
	if err != nil {
		return nil, fmt.Errorf("create order for session %s: %w", sessionID, err)
	}
	if !created && order.BuyerID != meta.BuyerID {
		// A session id can only ever map to one buyer's order; anything
		// else means the metadata was tampered with or crossed wires.
		return nil, &domain.ConflictError{Msg: fmt.Sprintf("session %s already settled for another buyer", sessionID)}
	}
	if created {
		ordersSettled.WithLabelValues("created").Inc()
		s.logger.Printf("settlement: order %s created session=%s buyer=%d total=%d",
			order.OrderNumber, sessionID, meta.BuyerID, total)
		s.notify.OrderCreated(ctx, meta.BuyerID, order.OrderNumber, total)
		s.clearCart(ctx, meta)
		s.openServiceChats(ctx, meta, order)
	} else {
		ordersSettled.WithLabelValues("duplicate").Inc()
	}

	s.settlePayouts(ctx, meta, order)

	if order.Status == domain.OrderStatusPending {
		if err := s.orders.SetStatus(ctx, order.ID, domain.OrderStatusCompleted); err != nil {
			return nil, fmt.Errorf("complete order %d: %w", order.ID, err)
		}
		order.Status = domain.OrderStatusCompleted
	}
	return order, nil
}

// clearCart removes exactly the lines this session settled. Anything the
// buyer added to the cart after checkout started survives.
func (s *Service) clearCart(ctx context.Context, meta *payment.SessionMetadata) {
	if meta.Kind != payment.PurchaseCart {
		return
	}
	refs := make([]domain.ProductRef, 0, len(meta.Lines))
	for _, l := range meta.Lines {
		refs = append(refs, l.Ref())
	}
	if err := s.carts.RemoveSettledLines(ctx, meta.BuyerID, refs); err != nil {
		s.logger.Printf("settlement: clearing settled cart lines for buyer %d: %v", meta.BuyerID, err)
	}
}

// openServiceChats opens the buyer-seller channel for every purchased
// service item. The channel is created at most once per (buyer, seller,
// product) triple.
func (s *Service) openServiceChats(ctx context.Context, meta *payment.SessionMetadata, order *domain.Order) {
	for _, l := range meta.Lines {
		if l.Kind != domain.KindService || l.SellerID == 0 {
			continue
		}
		chat, chatCreated, err := s.chats.GetOrCreate(ctx, meta.BuyerID, l.SellerID, l.ProductID)
		if err != nil {
			s.logger.Printf("settlement: opening chat for order %s service %d: %v", order.OrderNumber, l.ProductID, err)
			continue
		}
		if !chatCreated {
			continue
		}
		title := l.Ref().String()
		if p, err := s.products.Resolve(ctx, l.Ref()); err == nil {
			title = p.Title
		}
		s.notify.ChatOpened(ctx, l.SellerID, chat.ID, title)
	}
}

// sellerShare is one seller's slice of the order, split per the policy.
type sellerShare struct {
	sellerID int64
	split    ledger.Split
}

// settlePayouts fans the order out to its sellers. Each seller settles
// independently: one failed transfer never blocks another seller's money,
// and never fails the settlement itself.
func (s *Service) settlePayouts(ctx context.Context, meta *payment.SessionMetadata, order *domain.Order) {
	shares, err := s.sellerShares(ctx, meta)
	if err != nil {
		s.logger.Printf("settlement: computing seller shares for order %s: %v", order.OrderNumber, err)
		return
	}
	if len(shares) == 0 {
		return
	}

	ids := make([]int64, 0, len(shares))
	for _, sh := range shares {
		ids = append(ids, sh.sellerID)
	}
	sellers, err := s.sellers.GetByIDs(ctx, ids)
	if err != nil {
		s.logger.Printf("settlement: loading sellers for order %s: %v", order.OrderNumber, err)
		return
	}

	var wg sync.WaitGroup
	for _, sh := range shares {
		wg.Add(1)
		go func(sh sellerShare) {
			defer wg.Done()
			s.settleOne(ctx, meta, order, sh, sellers[sh.sellerID])
		}(sh)
	}
	wg.Wait()
}

// sellerShares groups the frozen metadata lines by seller and computes
// each seller's commission split. An instant-split session keeps the fee
// total frozen at charge time; deferred splits use the current policy.
func (s *Service) sellerShares(ctx context.Context, meta *payment.SessionMetadata) ([]sellerShare, error) {
	grossBySeller := make(map[int64]int64)
	for _, l := range meta.Lines {
		if l.SellerID == 0 {
			continue
		}
		grossBySeller[l.SellerID] += l.TotalCents()
	}
	if len(grossBySeller) == 0 {
		return nil, nil
	}

	if meta.InstantSplit {
		if len(grossBySeller) != 1 {
			return nil, fmt.Errorf("instant split session with %d sellers", len(grossBySeller))
		}
		for id, gross := range grossBySeller {
			return []sellerShare{{
				sellerID: id,
				split: ledger.Split{
					GrossCents:      gross,
					CommissionCents: meta.TotalCommissionCents,
					PayoutCents:     gross - meta.TotalCommissionCents,
				},
			}}, nil
		}
	}

	policy, err := s.settings.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("load commission policy: %w", err)
	}
	shares := make([]sellerShare, 0, len(grossBySeller))
	for id, gross := range grossBySeller {
		split, err := ledger.SplitGross(gross, *policy)
		if err != nil {
			return nil, err
		}
		shares = append(shares, sellerShare{sellerID: id, split: split})
	}
	sort.Slice(shares, func(i, j int) bool { return shares[i].sellerID < shares[j].sellerID })
	return shares, nil
}

func (s *Service) settleOne(ctx context.Context, meta *payment.SessionMetadata, order *domain.Order, sh sellerShare, seller domain.Seller) {
	status := domain.PayoutStatusPending
	if meta.InstantSplit {
		status = domain.PayoutStatusInstant
	}
	p, markerCreated, err := s.payouts.Create(ctx, payoutrepo.CreateInput{
		OrderID:         order.ID,
		SellerID:        sh.sellerID,
		GrossCents:      sh.split.GrossCents,
		CommissionCents: sh.split.CommissionCents,
		PayoutCents:     sh.split.PayoutCents,
		Status:          status,
	})
	if err != nil {
		s.logger.Printf("settlement: payout marker order=%s seller=%d: %v", order.OrderNumber, sh.sellerID, err)
		return
	}
	if markerCreated {
		s.notify.NewSale(ctx, sh.sellerID, order.OrderNumber, p.PayoutCents)
	}
	if p.Status.Settled() {
		if markerCreated && p.Status == domain.PayoutStatusInstant {
			s.logger.Printf("settlement: payout order=%s seller=%d settled instantly amount=%d",
				order.OrderNumber, sh.sellerID, p.PayoutCents)
		}
		return
	}

	if seller.ID == 0 || !seller.Payable() {
		reason := fmt.Sprintf("seller %d has no payout account", sh.sellerID)
		if err := s.payouts.MarkFailed(ctx, p.ID, domain.PayoutStatusFailedManual, reason); err != nil {
			s.logger.Printf("settlement: marking payout %d failed: %v", p.ID, err)
			return
		}
		transfersTotal.WithLabelValues("failed_manual").Inc()
		s.logger.Printf("settlement: payout order=%s seller=%d needs manual intervention: %s",
			order.OrderNumber, sh.sellerID, reason)
		s.notify.PayoutFailed(ctx, sh.sellerID, order.OrderNumber, true)
		return
	}

	transfer, err := s.transferWithRetry(ctx, payment.TransferInput{
		PayeeID:        *seller.PayeeID,
		AmountCents:    p.PayoutCents,
		Currency:       s.currency,
		Description:    fmt.Sprintf("Payout for order %s", order.OrderNumber),
		IdempotencyKey: fmt.Sprintf("payout-%d-%d", order.ID, sh.sellerID),
		Metadata: map[string]string{
			"order_id":  fmt.Sprintf("%d", order.ID),
			"seller_id": fmt.Sprintf("%d", sh.sellerID),
		},
	})
	if err != nil {
		s.recordTransferFailure(ctx, order, p, sh.sellerID, err)
		return
	}

	if err := s.payouts.MarkTransferred(ctx, p.ID, transfer.ID); err != nil {
		s.logger.Printf("settlement: marking payout %d transferred (%s): %v", p.ID, transfer.ID, err)
		return
	}
	transfersTotal.WithLabelValues("transferred").Inc()
	s.logger.Printf("settlement: payout order=%s seller=%d transferred amount=%d transfer=%s",
		order.OrderNumber, sh.sellerID, p.PayoutCents, transfer.ID)
	s.notify.PayoutSent(ctx, sh.sellerID, order.OrderNumber, p.PayoutCents)
}

// transferWithRetry retries transport-level failures a few times with
// backoff. A classified provider rejection is final for this run: the
// payout row records it and a later settlement pass may retry.
func (s *Service) transferWithRetry(ctx context.Context, in payment.TransferInput) (*payment.Transfer, error) {
	var lastErr error
	for attempt := 0; attempt < transferAttempts; attempt++ {
		if attempt > 0 {
			if err := s.sleep(ctx, transferBackoff<<(attempt-1)); err != nil {
				return nil, err
			}
		}
		transfer, err := s.gateway.Transfer(ctx, in)
		if err == nil {
			return transfer, nil
		}
		var terr *payment.TransferError
		if errors.As(err, &terr) {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}

func (s *Service) recordTransferFailure(ctx context.Context, order *domain.Order, p *domain.Payout, sellerID int64, err error) {
	status := domain.PayoutStatusFailedRetryable
	actionable := false
	var terr *payment.TransferError
	if errors.As(err, &terr) {
		switch terr.Kind {
		case payment.TransferInsufficientBalance:
			status = domain.PayoutStatusFailedRetryable
		case payment.TransferPayeeNotConnected:
			status = domain.PayoutStatusFailedManual
			actionable = true
		default:
			status = domain.PayoutStatusFailedManual
		}
	}

	if markErr := s.payouts.MarkFailed(ctx, p.ID, status, err.Error()); markErr != nil {
		s.logger.Printf("settlement: marking payout %d failed: %v", p.ID, markErr)
		return
	}
	transfersTotal.WithLabelValues(string(status)).Inc()
	if status == domain.PayoutStatusFailedRetryable {
		s.logger.Printf("settlement: payout order=%s seller=%d deferred, will retry: %v",
			order.OrderNumber, sellerID, err)
		s.notify.PayoutDelayed(ctx, sellerID, order.OrderNumber)
	} else {
		s.logger.Printf("settlement: payout order=%s seller=%d FAILED, manual intervention required: %v",
			order.OrderNumber, sellerID, err)
		s.notify.PayoutFailed(ctx, sellerID, order.OrderNumber, actionable)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
