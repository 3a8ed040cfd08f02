package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"marketplace-api/internal/domain"
	"marketplace-api/internal/payment"
	orderrepo "marketplace-api/internal/repository/order"
)

type stubSettler struct {
	calls []string
	order *domain.Order
	err   error
}

func (s *stubSettler) Settle(_ context.Context, sessionID string) (*domain.Order, error) {
	s.calls = append(s.calls, sessionID)
	if s.err != nil {
		return nil, s.err
	}
	if s.order != nil {
		return s.order, nil
	}
	return &domain.Order{ID: 1, OrderNumber: "ORD-2026-08-000001", Status: domain.OrderStatusCompleted}, nil
}

type stubOrders struct {
	orders []domain.Order
}

func (s *stubOrders) CreateWithItems(_ context.Context, _ orderrepo.CreateInput) (*domain.Order, bool, error) {
	return nil, false, nil
}

func (s *stubOrders) GetBySessionID(_ context.Context, _ string) (*domain.Order, error) {
	return nil, domain.ErrNotFound
}

func (s *stubOrders) ListByBuyer(_ context.Context, _ int64) ([]domain.Order, error) {
	return s.orders, nil
}

func (s *stubOrders) SetStatus(_ context.Context, _ int64, _ domain.OrderStatus) error {
	return nil
}

type stubDedup struct {
	seen map[string]bool
}

func (s *stubDedup) MarkProcessed(_ context.Context, eventID string) (bool, error) {
	if s.seen == nil {
		s.seen = map[string]bool{}
	}
	if s.seen[eventID] {
		return false, nil
	}
	s.seen[eventID] = true
	return true, nil
}

func (s *stubDedup) Forget(_ context.Context, eventID string) error {
	delete(s.seen, eventID)
	return nil
}

const testSecret = "whsec_test"

func newTestRouter(t *testing.T, settler *stubSettler, orders *stubOrders) http.Handler {
	t.Helper()
	logger := log.New(io.Discard, "", 0)
	router, err := buildRouter(logger, nil, Deps{
		Settler:       settler,
		Orders:        orders,
		Events:        &stubDedup{},
		WebhookSecret: testSecret,
	})
	if err != nil {
		t.Fatalf("build router: %v", err)
	}
	return router
}

func completedEvent(sessionID string) []byte {
	return []byte(fmt.Sprintf(`{"id":"evt_1","type":"checkout.session.completed","data":{"object":{"id":%q}}}`, sessionID))
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	settler := &stubSettler{}
	router := newTestRouter(t, settler, &stubOrders{})

	body := completedEvent("cs_1")
	req := httptest.NewRequest(http.MethodPost, "/webhooks/payment", bytes.NewReader(body))
	req.Header.Set("Payment-Signature", "t=1,v1=deadbeef")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
	if len(settler.calls) != 0 {
		t.Fatalf("settlement must not run on unverified events, got calls %v", settler.calls)
	}
}

func TestWebhookSettlesVerifiedEvent(t *testing.T) {
	settler := &stubSettler{}
	router := newTestRouter(t, settler, &stubOrders{})

	body := completedEvent("cs_42")
	req := httptest.NewRequest(http.MethodPost, "/webhooks/payment", bytes.NewReader(body))
	req.Header.Set("Payment-Signature", payment.SignatureHeader(body, testSecret, time.Now()))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if len(settler.calls) != 1 || settler.calls[0] != "cs_42" {
		t.Fatalf("expected one settle of cs_42, got %v", settler.calls)
	}
}

func TestWebhookSkipsDuplicateDelivery(t *testing.T) {
	settler := &stubSettler{}
	router := newTestRouter(t, settler, &stubOrders{})

	body := completedEvent("cs_42")
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/webhooks/payment", bytes.NewReader(body))
		req.Header.Set("Payment-Signature", payment.SignatureHeader(body, testSecret, time.Now()))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("delivery %d: expected 200, got %d", i, w.Code)
		}
	}
	if len(settler.calls) != 1 {
		t.Fatalf("expected a single settlement across re-deliveries, got %d", len(settler.calls))
	}
}

func TestWebhookFailedSettlementAllowsRedelivery(t *testing.T) {
	settler := &stubSettler{err: fmt.Errorf("provider timeout")}
	router := newTestRouter(t, settler, &stubOrders{})

	body := completedEvent("cs_42")
	req := httptest.NewRequest(http.MethodPost, "/webhooks/payment", bytes.NewReader(body))
	req.Header.Set("Payment-Signature", payment.SignatureHeader(body, testSecret, time.Now()))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 on settlement failure, got %d", w.Code)
	}

	settler.err = nil
	req = httptest.NewRequest(http.MethodPost, "/webhooks/payment", bytes.NewReader(body))
	req.Header.Set("Payment-Signature", payment.SignatureHeader(body, testSecret, time.Now()))
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 on re-delivery, got %d: %s", w.Code, w.Body.String())
	}
	if len(settler.calls) != 2 {
		t.Fatalf("expected the re-delivery to settle again, got calls %v", settler.calls)
	}
}

func TestWebhookIgnoresOtherEventTypes(t *testing.T) {
	settler := &stubSettler{}
	router := newTestRouter(t, settler, &stubOrders{})

	body := []byte(`{"id":"evt_2","type":"charge.refunded","data":{"object":{"id":"cs_9"}}}`)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/payment", bytes.NewReader(body))
	req.Header.Set("Payment-Signature", payment.SignatureHeader(body, testSecret, time.Now()))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if len(settler.calls) != 0 {
		t.Fatalf("unexpected settlement calls: %v", settler.calls)
	}
}

func TestOrdersRequireUserHeader(t *testing.T) {
	router := newTestRouter(t, &stubSettler{}, &stubOrders{})

	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without X-User-ID, got %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/orders", nil)
	req.Header.Set("X-User-ID", "9")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 with X-User-ID, got %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestAdminSettingsRequireToken(t *testing.T) {
	logger := log.New(io.Discard, "", 0)
	router, err := buildRouter(logger, nil, Deps{AdminToken: "sekrit"})
	if err != nil {
		t.Fatalf("build router: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/admin/settings", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 without token, got %d", w.Code)
	}
}

func TestCheckoutSuccessSettles(t *testing.T) {
	settler := &stubSettler{}
	router := newTestRouter(t, settler, &stubOrders{})

	req := httptest.NewRequest(http.MethodGet, "/checkout/success?session_id=cs_7", nil)
	req.Header.Set("X-User-ID", "9")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if len(settler.calls) != 1 || settler.calls[0] != "cs_7" {
		t.Fatalf("expected settle of cs_7, got %v", settler.calls)
	}
}

func TestCheckoutSuccessRejectsUnpaid(t *testing.T) {
	settler := &stubSettler{err: domain.ErrNotPaid}
	router := newTestRouter(t, settler, &stubOrders{})

	req := httptest.NewRequest(http.MethodGet, "/checkout/success?session_id=cs_7", nil)
	req.Header.Set("X-User-ID", "9")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusPaymentRequired {
		t.Fatalf("expected 402 for unpaid session, got %d: %s", w.Code, w.Body.String())
	}
}
