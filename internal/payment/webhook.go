package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Webhook signature scheme: the provider sends a header of the form
// "t=<unix>,v1=<hex hmac-sha256 of "<unix>.<payload>">". Events failing
// verification must be rejected before any embedded session id is trusted.

var (
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrStaleTimestamp   = errors.New("webhook timestamp outside tolerance")
)

// DefaultSignatureTolerance bounds replay of captured events.
const DefaultSignatureTolerance = 5 * time.Minute

// VerifySignature checks the signed payload against the shared secret.
func VerifySignature(payload []byte, header, secret string, now time.Time, tolerance time.Duration) error {
	var ts int64
	var sigs []string
	for _, part := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			parsed, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return ErrInvalidSignature
			}
			ts = parsed
		case "v1":
			sigs = append(sigs, v)
		}
	}
	if ts == 0 || len(sigs) == 0 {
		return ErrInvalidSignature
	}

	if tolerance > 0 {
		age := now.Sub(time.Unix(ts, 0))
		if age > tolerance || age < -tolerance {
			return ErrStaleTimestamp
		}
	}

	expected := Sign(payload, secret, ts)
	for _, sig := range sigs {
		if hmac.Equal([]byte(expected), []byte(sig)) {
			return nil
		}
	}
	return ErrInvalidSignature
}

// Sign computes the v1 signature for a payload at a given timestamp. Tests
// and the fake provider use it to produce valid headers.
func Sign(payload []byte, secret string, ts int64) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", ts)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// SignatureHeader renders the header the provider would send.
func SignatureHeader(payload []byte, secret string, now time.Time) string {
	ts := now.Unix()
	return fmt.Sprintf("t=%d,v1=%s", ts, Sign(payload, secret, ts))
}

// Event is the minimal slice of a provider webhook event the settlement
// entry point needs.
type Event struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	SessionID string `json:"-"`
}

// EventCheckoutCompleted is the event type that triggers settlement.
const EventCheckoutCompleted = "checkout.session.completed"

type eventEnvelope struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID string `json:"id"`
		} `json:"object"`
	} `json:"data"`
}

// ParseEvent decodes a verified webhook payload.
func ParseEvent(payload []byte) (*Event, error) {
	var env eventEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, fmt.Errorf("decode webhook event: %w", err)
	}
	if env.ID == "" || env.Type == "" {
		return nil, errors.New("webhook event missing id or type")
	}
	return &Event{ID: env.ID, Type: env.Type, SessionID: env.Data.Object.ID}, nil
}
