package httpserver

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"marketplace-api/internal/domain"
)

func (h *handlers) getSettings(c *gin.Context) {
	policy, err := h.deps.Settings.Get(c.Request.Context())
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, policy)
}

type updateSettingsRequest struct {
	PlatformName    string  `json:"platformName"`
	Enabled         bool    `json:"enabled"`
	Percentage      string  `json:"percentage" binding:"required"`
	PlatformPayeeID *string `json:"platformPayeeId"`
}

func (h *handlers) updateSettings(c *gin.Context) {
	var req updateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, h.logger, domain.Validationf("invalid request body: %v", err))
		return
	}
	pct, err := decimal.NewFromString(req.Percentage)
	if err != nil {
		writeError(c, h.logger, domain.Validationf("invalid percentage %q", req.Percentage))
		return
	}
	policy, err := h.deps.Settings.Update(c.Request.Context(), domain.CommissionPolicy{
		PlatformName:    req.PlatformName,
		Enabled:         req.Enabled,
		Percentage:      pct,
		PlatformPayeeID: req.PlatformPayeeID,
	})
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, policy)
}
