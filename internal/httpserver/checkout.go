package httpserver

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"marketplace-api/internal/domain"
)

func (h *handlers) checkoutCart(c *gin.Context) {
	out, err := h.deps.Checkout.StartCartCheckout(c.Request.Context(), currentUser(c))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, out)
}

type purchaseRequest struct {
	Quantity int `json:"quantity"`
}

func (h *handlers) purchaseSingle(c *gin.Context) {
	ref, err := parseRef(c)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	var req purchaseRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			writeError(c, h.logger, domain.Validationf("invalid request body: %v", err))
			return
		}
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	out, err := h.deps.Checkout.StartSinglePurchase(c.Request.Context(), currentUser(c), ref, req.Quantity)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, out)
}

// checkoutSuccess is where the provider redirects the buyer after payment.
// It settles synchronously so the buyer sees their order immediately; the
// webhook remains the safety net when this page is never reached.
func (h *handlers) checkoutSuccess(c *gin.Context) {
	sessionID := c.Query("session_id")
	if sessionID == "" {
		writeError(c, h.logger, domain.Validationf("missing session_id"))
		return
	}
	order, err := h.deps.Settler.Settle(c.Request.Context(), sessionID)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, order)
}
