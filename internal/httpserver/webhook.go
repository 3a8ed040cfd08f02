package httpserver

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"marketplace-api/internal/payment"
)

const maxWebhookBody = 1 << 20

// paymentWebhook handles provider event deliveries. The signature check
// comes first: nothing unverified gets anywhere near settlement. The body
// is acknowledged with 200 even when settlement defers work, because the
// provider treats anything else as a delivery failure and re-sends.
func (h *handlers) paymentWebhook(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"code": "invalid_request", "message": "unreadable body"}})
		return
	}
	sig := c.GetHeader("Payment-Signature")
	if err := payment.VerifySignature(body, sig, h.deps.WebhookSecret, time.Now(), payment.DefaultSignatureTolerance); err != nil {
		h.logger.Printf("webhook: rejected delivery: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"code": "invalid_signature", "message": "signature verification failed"}})
		return
	}

	event, err := payment.ParseEvent(body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"code": "invalid_request", "message": "malformed event"}})
		return
	}
	if event.Type != payment.EventCheckoutCompleted {
		c.JSON(http.StatusOK, gin.H{"received": true, "ignored": true})
		return
	}

	if h.deps.Events != nil {
		first, err := h.deps.Events.MarkProcessed(c.Request.Context(), event.ID)
		if err != nil {
			// dedup store down: fall through, settlement is idempotent anyway
			h.logger.Printf("webhook: event dedup unavailable: %v", err)
		} else if !first {
			c.JSON(http.StatusOK, gin.H{"received": true, "duplicate": true})
			return
		}
	}

	if _, err := h.deps.Settler.Settle(c.Request.Context(), event.SessionID); err != nil {
		h.logger.Printf("webhook: settling session %s: %v", event.SessionID, err)
		if h.deps.Events != nil {
			// release the claim so the provider's re-delivery gets another run
			if ferr := h.deps.Events.Forget(c.Request.Context(), event.ID); ferr != nil {
				h.logger.Printf("webhook: releasing event %s: %v", event.ID, ferr)
			}
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": gin.H{"code": "internal", "message": "settlement failed"}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}
