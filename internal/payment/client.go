package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Client talks to a Stripe-style hosted-checkout provider over its form
// encoded HTTP API. Every call is bounded by the client timeout; retry
// policy belongs to the caller.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

const defaultBaseURL = "https://api.payprovider.test/v1"

func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type ClientOption func(*Client)

func WithBaseURL(u string) ClientOption {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = h }
}

func (c *Client) CreateCheckoutSession(ctx context.Context, in CreateSessionInput) (*Session, error) {
	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("success_url", in.SuccessURL)
	form.Set("cancel_url", in.CancelURL)
	if in.ClientReferenceID != "" {
		form.Set("client_reference_id", in.ClientReferenceID)
	}
	for i, li := range in.LineItems {
		p := fmt.Sprintf("line_items[%d]", i)
		form.Set(p+"[price_data][currency]", strings.ToLower(li.Currency))
		form.Set(p+"[price_data][unit_amount]", strconv.FormatInt(li.UnitAmountCents, 10))
		form.Set(p+"[price_data][product_data][name]", li.Name)
		if li.Description != "" {
			form.Set(p+"[price_data][product_data][description]", li.Description)
		}
		form.Set(p+"[quantity]", strconv.Itoa(li.Quantity))
	}
	for k, v := range in.Metadata {
		form.Set("metadata["+k+"]", v)
	}
	if in.Split != nil {
		form.Set("payment_intent_data[application_fee_amount]", strconv.FormatInt(in.Split.ApplicationFeeCents, 10))
		form.Set("payment_intent_data[transfer_data][destination]", in.Split.DestinationPayeeID)
	}

	var resp sessionResponse
	if err := c.do(ctx, http.MethodPost, "/checkout/sessions", form, &resp); err != nil {
		return nil, err
	}
	return resp.toSession(), nil
}

func (c *Client) GetSession(ctx context.Context, sessionID string) (*Session, error) {
	var resp sessionResponse
	if err := c.do(ctx, http.MethodGet, "/checkout/sessions/"+url.PathEscape(sessionID), nil, &resp); err != nil {
		return nil, err
	}
	return resp.toSession(), nil
}

func (c *Client) Transfer(ctx context.Context, in TransferInput) (*Transfer, error) {
	form := url.Values{}
	form.Set("amount", strconv.FormatInt(in.AmountCents, 10))
	form.Set("currency", strings.ToLower(in.Currency))
	form.Set("destination", in.PayeeID)
	if in.Description != "" {
		form.Set("description", in.Description)
	}
	for k, v := range in.Metadata {
		form.Set("metadata["+k+"]", v)
	}

	var resp struct {
		ID string `json:"id"`
	}
	err := c.doWithIdempotency(ctx, http.MethodPost, "/transfers", form, in.IdempotencyKey, &resp)
	if err != nil {
		return nil, err
	}
	return &Transfer{ID: resp.ID}, nil
}

type sessionResponse struct {
	ID            string            `json:"id"`
	URL           string            `json:"url"`
	PaymentStatus string            `json:"payment_status"`
	AmountTotal   int64             `json:"amount_total"`
	Metadata      map[string]string `json:"metadata"`
}

func (r sessionResponse) toSession() *Session {
	status := StatusUnpaid
	switch r.PaymentStatus {
	case "paid":
		status = StatusPaid
	case "failed":
		status = StatusFailed
	}
	return &Session{
		ID:               r.ID,
		RedirectURL:      r.URL,
		Status:           status,
		AmountTotalCents: r.AmountTotal,
		Metadata:         r.Metadata,
	}
}

type apiError struct {
	Err struct {
		Type    string `json:"type"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) do(ctx context.Context, method, path string, form url.Values, out any) error {
	return c.doWithIdempotency(ctx, method, path, form, "", out)
}

func (c *Client) doWithIdempotency(ctx context.Context, method, path string, form url.Values, idempotencyKey string, out any) error {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("payment provider request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read provider response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return classifyAPIError(path, resp.StatusCode, raw)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode provider response: %w", err)
	}
	return nil
}

func classifyAPIError(path string, status int, raw []byte) error {
	var ae apiError
	_ = json.Unmarshal(raw, &ae)
	msg := ae.Err.Message
	if msg == "" {
		msg = fmt.Sprintf("provider returned status %d", status)
	}
	if strings.HasPrefix(path, "/transfers") {
		kind := TransferOther
		switch {
		case ae.Err.Code == "balance_insufficient",
			strings.Contains(strings.ToLower(msg), "insufficient funds"):
			kind = TransferInsufficientBalance
		case ae.Err.Code == "account_invalid",
			strings.Contains(msg, "No such destination"):
			kind = TransferPayeeNotConnected
		}
		return &TransferError{Kind: kind, Msg: msg}
	}
	return fmt.Errorf("payment provider error: %s", msg)
}
