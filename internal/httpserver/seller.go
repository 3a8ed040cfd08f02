package httpserver

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"marketplace-api/internal/domain"
)

func (h *handlers) listSellerPayouts(c *gin.Context) {
	payouts, err := h.deps.Payouts.ListBySeller(c.Request.Context(), currentUser(c))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payouts": payouts, "count": len(payouts)})
}

type setPayeeRequest struct {
	PayeeID string `json:"payeeId" binding:"required"`
	Status  string `json:"status" binding:"required"`
}

// setSellerPayee records payout onboarding progress reported by the
// onboarding flow.
func (h *handlers) setSellerPayee(c *gin.Context) {
	var req setPayeeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, h.logger, domain.Validationf("invalid request body: %v", err))
		return
	}
	status := domain.PayeeStatus(req.Status)
	switch status {
	case domain.PayeeStatusNone, domain.PayeeStatusPending, domain.PayeeStatusActive:
	default:
		writeError(c, h.logger, domain.Validationf("invalid payee status %q", req.Status))
		return
	}
	if err := h.deps.Sellers.SetPayee(c.Request.Context(), currentUser(c), req.PayeeID, status); err != nil {
		writeError(c, h.logger, err)
		return
	}
	seller, err := h.deps.Sellers.GetByID(c.Request.Context(), currentUser(c))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, seller)
}
