package settlement

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketplace-api/internal/domain"
	"marketplace-api/internal/payment"
	orderrepo "marketplace-api/internal/repository/order"
	payoutrepo "marketplace-api/internal/repository/payout"
)

type memOrders struct {
	mu        sync.Mutex
	nextID    int64
	bySession map[string]*domain.Order
}

func newMemOrders() *memOrders {
	return &memOrders{bySession: map[string]*domain.Order{}}
}

func (m *memOrders) CreateWithItems(_ context.Context, in orderrepo.CreateInput) (*domain.Order, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o, ok := m.bySession[in.ProviderSessionID]; ok {
		dup := *o
		return &dup, false, nil
	}
	m.nextID++
	o := &domain.Order{
		ID:                m.nextID,
		BuyerID:           in.BuyerID,
		OrderNumber:       fmt.Sprintf("ORD-2026-08-%06d", m.nextID),
		Status:            domain.OrderStatusPending,
		TotalCents:        in.TotalCents,
		ProviderSessionID: in.ProviderSessionID,
	}
	for i, it := range in.Items {
		o.Items = append(o.Items, domain.OrderItem{
			ID: int64(i + 1), OrderID: o.ID, Ref: it.Ref, Quantity: it.Quantity, PriceCents: it.PriceCents,
		})
	}
	m.bySession[in.ProviderSessionID] = o
	dup := *o
	return &dup, true, nil
}

func (m *memOrders) SetStatus(_ context.Context, orderID int64, status domain.OrderStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.bySession {
		if o.ID == orderID {
			o.Status = status
			return nil
		}
	}
	return domain.ErrNotFound
}

func (m *memOrders) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.bySession)
}

type payoutKey struct{ orderID, sellerID int64 }

type memPayouts struct {
	mu     sync.Mutex
	nextID int64
	byPair map[payoutKey]*domain.Payout
}

func newMemPayouts() *memPayouts {
	return &memPayouts{byPair: map[payoutKey]*domain.Payout{}}
}

func (m *memPayouts) Create(_ context.Context, in payoutrepo.CreateInput) (*domain.Payout, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := payoutKey{in.OrderID, in.SellerID}
	if p, ok := m.byPair[key]; ok {
		dup := *p
		return &dup, false, nil
	}
	m.nextID++
	p := &domain.Payout{
		ID:              m.nextID,
		OrderID:         in.OrderID,
		SellerID:        in.SellerID,
		GrossCents:      in.GrossCents,
		CommissionCents: in.CommissionCents,
		PayoutCents:     in.PayoutCents,
		Status:          in.Status,
	}
	m.byPair[key] = p
	dup := *p
	return &dup, true, nil
}

func (m *memPayouts) MarkTransferred(_ context.Context, id int64, transferID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.byPair {
		if p.ID == id {
			p.Status = domain.PayoutStatusTransferred
			p.TransferID = &transferID
			return nil
		}
	}
	return domain.ErrNotFound
}

func (m *memPayouts) MarkFailed(_ context.Context, id int64, status domain.PayoutStatus, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.byPair {
		if p.ID == id {
			p.Status = status
			p.FailureReason = &reason
			return nil
		}
	}
	return domain.ErrNotFound
}

func (m *memPayouts) get(orderID, sellerID int64) *domain.Payout {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.byPair[payoutKey{orderID, sellerID}]; ok {
		dup := *p
		return &dup
	}
	return nil
}

type memCarts struct {
	mu      sync.Mutex
	removed []domain.ProductRef
}

func (m *memCarts) RemoveSettledLines(_ context.Context, _ int64, refs []domain.ProductRef) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removed = append(m.removed, refs...)
	return nil
}

type memSellers struct {
	sellers map[int64]domain.Seller
}

func (m *memSellers) GetByIDs(_ context.Context, ids []int64) (map[int64]domain.Seller, error) {
	out := make(map[int64]domain.Seller)
	for _, id := range ids {
		if s, ok := m.sellers[id]; ok {
			out[id] = s
		}
	}
	return out, nil
}

type memSettings struct {
	policy domain.CommissionPolicy
}

func (m *memSettings) Get(_ context.Context) (*domain.CommissionPolicy, error) {
	p := m.policy
	return &p, nil
}

type memChats struct {
	mu     sync.Mutex
	nextID int64
	byKey  map[string]*domain.ServiceChat
}

func newMemChats() *memChats { return &memChats{byKey: map[string]*domain.ServiceChat{}} }

func (m *memChats) GetOrCreate(_ context.Context, buyerID, sellerID, productID int64) (*domain.ServiceChat, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := fmt.Sprintf("%d-%d-%d", buyerID, sellerID, productID)
	if c, ok := m.byKey[key]; ok {
		return c, false, nil
	}
	m.nextID++
	c := &domain.ServiceChat{ID: m.nextID, BuyerID: buyerID, SellerID: sellerID, ProductID: productID}
	m.byKey[key] = c
	return c, true, nil
}

type nilResolver struct{}

func (nilResolver) Resolve(_ context.Context, _ domain.ProductRef) (*domain.Product, error) {
	return nil, domain.ErrNotFound
}

type recordedNote struct {
	kind   string
	userID int64
}

type memNotifier struct {
	mu    sync.Mutex
	notes []recordedNote
}

func (m *memNotifier) record(kind string, userID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notes = append(m.notes, recordedNote{kind, userID})
}

func (m *memNotifier) OrderCreated(_ context.Context, buyerID int64, _ string, _ int64) {
	m.record("order_created", buyerID)
}
func (m *memNotifier) NewSale(_ context.Context, sellerID int64, _ string, _ int64) {
	m.record("new_sale", sellerID)
}
func (m *memNotifier) PayoutSent(_ context.Context, sellerID int64, _ string, _ int64) {
	m.record("payout_sent", sellerID)
}
func (m *memNotifier) PayoutDelayed(_ context.Context, sellerID int64, _ string) {
	m.record("payout_delayed", sellerID)
}
func (m *memNotifier) PayoutFailed(_ context.Context, sellerID int64, _ string, _ bool) {
	m.record("payout_failed", sellerID)
}
func (m *memNotifier) ChatOpened(_ context.Context, sellerID, _ int64, _ string) {
	m.record("chat_opened", sellerID)
}

func (m *memNotifier) count(kind string, userID int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, note := range m.notes {
		if note.kind == kind && note.userID == userID {
			n++
		}
	}
	return n
}

type fixture struct {
	svc      *Service
	gateway  *payment.Fake
	orders   *memOrders
	payouts  *memPayouts
	carts    *memCarts
	notifier *memNotifier
	chats    *memChats
}

func newFixture(t *testing.T, sellers map[int64]domain.Seller, pct int64) *fixture {
	t.Helper()
	f := &fixture{
		gateway:  payment.NewFake(),
		orders:   newMemOrders(),
		payouts:  newMemPayouts(),
		carts:    &memCarts{},
		notifier: &memNotifier{},
		chats:    newMemChats(),
	}
	platform := "acct_platform"
	settings := &memSettings{policy: domain.CommissionPolicy{
		Enabled:         true,
		Percentage:      decimal.NewFromInt(pct),
		PlatformPayeeID: &platform,
	}}
	f.svc = New(f.gateway, f.orders, f.payouts, f.carts, &memSellers{sellers: sellers}, settings, f.chats, nilResolver{}, f.notifier, "usd", nil)
	f.svc.sleep = func(context.Context, time.Duration) error { return nil }
	return f
}

func strptr(s string) *string { return &s }

func seedPaidSession(t *testing.T, f *fixture, id string, meta payment.SessionMetadata) {
	t.Helper()
	md, err := meta.Encode()
	require.NoError(t, err)
	f.gateway.Seed(payment.Session{ID: id, Status: payment.StatusPaid, Metadata: md})
}

func twoSellerMeta() payment.SessionMetadata {
	return payment.SessionMetadata{
		BuyerID: 9,
		Kind:    payment.PurchaseCart,
		Lines: []payment.MetaLine{
			{Kind: domain.KindBook, ProductID: 1, Quantity: 1, PriceCents: 6000, SellerID: 5},
			{Kind: domain.KindCourse, ProductID: 2, Quantity: 1, PriceCents: 4000, SellerID: 6},
		},
		TotalCommissionCents: 1000,
	}
}

func twoPayableSellers() map[int64]domain.Seller {
	return map[int64]domain.Seller{
		5: {ID: 5, PayeeID: strptr("acct_5"), PayeeStatus: domain.PayeeStatusActive},
		6: {ID: 6, PayeeID: strptr("acct_6"), PayeeStatus: domain.PayeeStatusActive},
	}
}

func TestSettleRejectsUnpaidSession(t *testing.T) {
	f := newFixture(t, nil, 10)
	md, err := payment.SessionMetadata{
		BuyerID: 9, Kind: payment.PurchaseSingle,
		Lines: []payment.MetaLine{{Kind: domain.KindBook, ProductID: 1, Quantity: 1, PriceCents: 1000}},
	}.Encode()
	require.NoError(t, err)
	f.gateway.Seed(payment.Session{ID: "cs_1", Status: payment.StatusUnpaid, Metadata: md})

	_, err = f.svc.Settle(context.Background(), "cs_1")
	require.ErrorIs(t, err, domain.ErrNotPaid)
	assert.Zero(t, f.orders.count())
}

func TestSettleTwoSellerCart(t *testing.T) {
	f := newFixture(t, twoPayableSellers(), 10)
	seedPaidSession(t, f, "cs_1", twoSellerMeta())

	order, err := f.svc.Settle(context.Background(), "cs_1")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCompleted, order.Status)
	assert.Equal(t, int64(10000), order.TotalCents)

	// 10% of $60 and 10% of $40, each split rounded per seller.
	p5 := f.payouts.get(order.ID, 5)
	require.NotNil(t, p5)
	assert.Equal(t, domain.PayoutStatusTransferred, p5.Status)
	assert.Equal(t, int64(5400), p5.PayoutCents)

	p6 := f.payouts.get(order.ID, 6)
	require.NotNil(t, p6)
	assert.Equal(t, domain.PayoutStatusTransferred, p6.Status)
	assert.Equal(t, int64(3600), p6.PayoutCents)

	transfers := f.gateway.Transfers()
	require.Len(t, transfers, 2)
	var total int64
	for _, tr := range transfers {
		total += tr.AmountCents
	}
	assert.Equal(t, int64(9000), total)

	// settled lines leave the cart, the buyer and both sellers hear about it
	assert.Len(t, f.carts.removed, 2)
	assert.Equal(t, 1, f.notifier.count("order_created", 9))
	assert.Equal(t, 1, f.notifier.count("payout_sent", 5))
	assert.Equal(t, 1, f.notifier.count("payout_sent", 6))
}

func TestSettleIsIdempotent(t *testing.T) {
	f := newFixture(t, twoPayableSellers(), 10)
	seedPaidSession(t, f, "cs_1", twoSellerMeta())

	first, err := f.svc.Settle(context.Background(), "cs_1")
	require.NoError(t, err)
	second, err := f.svc.Settle(context.Background(), "cs_1")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.OrderNumber, second.OrderNumber)
	assert.Equal(t, 1, f.orders.count())
	assert.Len(t, f.gateway.Transfers(), 2, "settled payouts must not transfer again")
	assert.Equal(t, 1, f.notifier.count("order_created", 9))
	assert.Equal(t, 1, f.notifier.count("new_sale", 5))
}

func TestSettleInstantSplitSkipsTransfers(t *testing.T) {
	f := newFixture(t, twoPayableSellers(), 20)
	meta := payment.SessionMetadata{
		BuyerID: 9,
		Kind:    payment.PurchaseSingle,
		Lines: []payment.MetaLine{
			{Kind: domain.KindCourse, ProductID: 1, Quantity: 1, PriceCents: 10000, SellerID: 5},
		},
		TotalCommissionCents: 2000,
		InstantSplit:         true,
	}
	seedPaidSession(t, f, "cs_1", meta)

	order, err := f.svc.Settle(context.Background(), "cs_1")
	require.NoError(t, err)

	p := f.payouts.get(order.ID, 5)
	require.NotNil(t, p)
	assert.Equal(t, domain.PayoutStatusInstant, p.Status)
	assert.Equal(t, int64(2000), p.CommissionCents)
	assert.Equal(t, int64(8000), p.PayoutCents)
	assert.Empty(t, f.gateway.Transfers())
	assert.Equal(t, 1, f.notifier.count("new_sale", 5))
}

func TestTransferFailureIsolation(t *testing.T) {
	f := newFixture(t, twoPayableSellers(), 10)
	seedPaidSession(t, f, "cs_1", twoSellerMeta())
	f.gateway.FailNextTransfers("acct_5", 1, &payment.TransferError{
		Kind: payment.TransferPayeeNotConnected, Msg: "No such destination",
	})

	order, err := f.svc.Settle(context.Background(), "cs_1")
	require.NoError(t, err, "a payout failure never fails the settlement")
	assert.Equal(t, domain.OrderStatusCompleted, order.Status)

	p5 := f.payouts.get(order.ID, 5)
	assert.Equal(t, domain.PayoutStatusFailedManual, p5.Status)
	require.NotNil(t, p5.FailureReason)
	assert.Equal(t, 1, f.notifier.count("payout_failed", 5))

	p6 := f.payouts.get(order.ID, 6)
	assert.Equal(t, domain.PayoutStatusTransferred, p6.Status)
	assert.Equal(t, 1, f.notifier.count("payout_sent", 6))
}

func TestRetryableFailureResumesOnNextSettle(t *testing.T) {
	f := newFixture(t, twoPayableSellers(), 10)
	seedPaidSession(t, f, "cs_1", twoSellerMeta())
	f.gateway.FailNextTransfers("acct_5", 1, &payment.TransferError{
		Kind: payment.TransferInsufficientBalance, Msg: "balance too low",
	})

	order, err := f.svc.Settle(context.Background(), "cs_1")
	require.NoError(t, err)
	p5 := f.payouts.get(order.ID, 5)
	assert.Equal(t, domain.PayoutStatusFailedRetryable, p5.Status)
	// the seller hears the payout is processing, not that it failed
	assert.Equal(t, 1, f.notifier.count("payout_delayed", 5))
	assert.Zero(t, f.notifier.count("payout_failed", 5))

	_, err = f.svc.Settle(context.Background(), "cs_1")
	require.NoError(t, err)
	p5 = f.payouts.get(order.ID, 5)
	assert.Equal(t, domain.PayoutStatusTransferred, p5.Status)
	assert.Equal(t, 1, f.notifier.count("payout_sent", 5))
	assert.Equal(t, 1, f.orders.count())
}

func TestEveryTransferFailureClassNotifiesTheSeller(t *testing.T) {
	cases := []struct {
		name       string
		kind       payment.TransferErrorKind
		wantStatus domain.PayoutStatus
		wantNote   string
	}{
		{"insufficient balance", payment.TransferInsufficientBalance, domain.PayoutStatusFailedRetryable, "payout_delayed"},
		{"payee not connected", payment.TransferPayeeNotConnected, domain.PayoutStatusFailedManual, "payout_failed"},
		{"other provider error", payment.TransferOther, domain.PayoutStatusFailedManual, "payout_failed"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, twoPayableSellers(), 10)
			meta := payment.SessionMetadata{
				BuyerID: 9,
				Kind:    payment.PurchaseSingle,
				Lines: []payment.MetaLine{
					{Kind: domain.KindBook, ProductID: 1, Quantity: 1, PriceCents: 6000, SellerID: 5},
				},
				TotalCommissionCents: 600,
			}
			seedPaidSession(t, f, "cs_1", meta)
			f.gateway.FailNextTransfers("acct_5", 1, &payment.TransferError{Kind: tc.kind, Msg: "declined"})

			order, err := f.svc.Settle(context.Background(), "cs_1")
			require.NoError(t, err)
			assert.Equal(t, domain.OrderStatusCompleted, order.Status)

			p := f.payouts.get(order.ID, 5)
			require.NotNil(t, p)
			assert.Equal(t, tc.wantStatus, p.Status)
			assert.Equal(t, 1, f.notifier.count(tc.wantNote, 5))
		})
	}
}

func TestTransportErrorsRetryWithBackoff(t *testing.T) {
	f := newFixture(t, twoPayableSellers(), 10)
	meta := payment.SessionMetadata{
		BuyerID: 9,
		Kind:    payment.PurchaseSingle,
		Lines: []payment.MetaLine{
			{Kind: domain.KindBook, ProductID: 1, Quantity: 1, PriceCents: 6000, SellerID: 5},
		},
		TotalCommissionCents: 600,
	}
	seedPaidSession(t, f, "cs_1", meta)
	f.gateway.FailNextTransfers("acct_5", 2, errors.New("connection reset"))

	order, err := f.svc.Settle(context.Background(), "cs_1")
	require.NoError(t, err)

	p5 := f.payouts.get(order.ID, 5)
	assert.Equal(t, domain.PayoutStatusTransferred, p5.Status)
	assert.Len(t, f.gateway.Transfers(), 3, "two transport failures then success")
}

func TestServicePurchaseOpensChat(t *testing.T) {
	f := newFixture(t, twoPayableSellers(), 10)
	meta := payment.SessionMetadata{
		BuyerID: 9,
		Kind:    payment.PurchaseSingle,
		Lines: []payment.MetaLine{
			{Kind: domain.KindService, ProductID: 3, Quantity: 1, PriceCents: 5000, SellerID: 5},
		},
		TotalCommissionCents: 500,
	}
	seedPaidSession(t, f, "cs_1", meta)

	_, err := f.svc.Settle(context.Background(), "cs_1")
	require.NoError(t, err)
	assert.Equal(t, 1, f.notifier.count("chat_opened", 5))

	// second settle must not open or announce a second chat
	_, err = f.svc.Settle(context.Background(), "cs_1")
	require.NoError(t, err)
	assert.Equal(t, 1, f.notifier.count("chat_opened", 5))
}

func TestSingleNoSellerPurchaseHasNoPayouts(t *testing.T) {
	f := newFixture(t, nil, 10)
	meta := payment.SessionMetadata{
		BuyerID: 9,
		Kind:    payment.PurchaseSingle,
		Lines: []payment.MetaLine{
			{Kind: domain.KindWebinar, ProductID: 7, Quantity: 1, PriceCents: 500},
		},
	}
	seedPaidSession(t, f, "cs_1", meta)

	order, err := f.svc.Settle(context.Background(), "cs_1")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCompleted, order.Status)
	assert.Empty(t, f.gateway.Transfers())
	assert.Nil(t, f.payouts.get(order.ID, 0))
}
