package httpserver

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"marketplace-api/internal/domain"
)

func (h *handlers) listProducts(c *gin.Context) {
	kind, err := domain.ParseKind(c.Param("kind"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	products, err := h.deps.Products.List(c.Request.Context(), kind, true)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": products, "count": len(products)})
}

func (h *handlers) getProduct(c *gin.Context) {
	ref, err := parseRef(c)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	p, err := h.deps.Products.Resolve(c.Request.Context(), ref)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func parseRef(c *gin.Context) (domain.ProductRef, error) {
	kind, err := domain.ParseKind(c.Param("kind"))
	if err != nil {
		return domain.ProductRef{}, err
	}
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return domain.ProductRef{}, domain.Validationf("invalid product id %q", c.Param("id"))
	}
	return domain.ProductRef{Kind: kind, ID: id}, nil
}
