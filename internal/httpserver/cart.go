package httpserver

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"marketplace-api/internal/domain"
)

type addItemRequest struct {
	Kind     string `json:"kind" binding:"required"`
	ID       int64  `json:"id" binding:"required"`
	Quantity int    `json:"quantity"`
}

func (h *handlers) viewCart(c *gin.Context) {
	cart, err := h.deps.Cart.View(c.Request.Context(), currentUser(c))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			c.JSON(http.StatusOK, domain.Cart{BuyerID: currentUser(c)})
			return
		}
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, cart)
}

func (h *handlers) cartSummary(c *gin.Context) {
	agg, err := h.deps.Cart.Aggregate(c.Request.Context(), currentUser(c))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, agg)
}

func (h *handlers) addCartItem(c *gin.Context) {
	var req addItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, h.logger, domain.Validationf("invalid request body: %v", err))
		return
	}
	kind, err := domain.ParseKind(req.Kind)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	qty := req.Quantity
	if qty == 0 {
		qty = 1
	}
	cart, err := h.deps.Cart.Add(c.Request.Context(), currentUser(c), domain.ProductRef{Kind: kind, ID: req.ID}, qty)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, cart)
}

func (h *handlers) removeCartItem(c *gin.Context) {
	lineID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || lineID <= 0 {
		writeError(c, h.logger, domain.Validationf("invalid line id %q", c.Param("id")))
		return
	}
	cart, err := h.deps.Cart.Remove(c.Request.Context(), currentUser(c), lineID)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, cart)
}

func (h *handlers) clearCart(c *gin.Context) {
	if err := h.deps.Cart.Clear(c.Request.Context(), currentUser(c)); err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}
