package httpserver

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"marketplace-api/internal/domain"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeError maps domain errors onto the HTTP error envelope. Anything
// unmapped is a 500 with the detail kept out of the response body.
func writeError(c *gin.Context, logger *log.Logger, err error) {
	var (
		verr *domain.ValidationError
		cerr *domain.ConfigurationError
		conf *domain.ConflictError
		uerr *domain.ProductUnavailableError
		serr *domain.SelfPurchaseError
		perr *domain.SellerNotPayableError
	)
	var status int
	var body errorBody
	switch {
	case errors.As(err, &verr):
		status, body = http.StatusBadRequest, errorBody{"invalid_request", verr.Msg}
	case errors.Is(err, domain.ErrEmptyCart):
		status, body = http.StatusBadRequest, errorBody{"empty_cart", "cart is empty"}
	case errors.Is(err, domain.ErrNotFound):
		status, body = http.StatusNotFound, errorBody{"not_found", "resource not found"}
	case errors.Is(err, domain.ErrNotPaid):
		status, body = http.StatusPaymentRequired, errorBody{"not_paid", "checkout session is not paid"}
	case errors.As(err, &serr):
		status, body = http.StatusForbidden, errorBody{"self_purchase", err.Error()}
	case errors.As(err, &uerr):
		status, body = http.StatusUnprocessableEntity, errorBody{"product_unavailable", err.Error()}
	case errors.As(err, &perr):
		status, body = http.StatusConflict, errorBody{"seller_not_payable", err.Error()}
	case errors.As(err, &conf):
		status, body = http.StatusConflict, errorBody{"conflict", conf.Msg}
	case errors.As(err, &cerr):
		// Operator misconfiguration. Selling is refused until it is fixed.
		logger.Printf("http: %v", err)
		status, body = http.StatusServiceUnavailable, errorBody{"misconfigured", cerr.Msg}
	default:
		logger.Printf("http: internal error: %v", err)
		status, body = http.StatusInternalServerError, errorBody{"internal", "internal server error"}
	}
	c.JSON(status, gin.H{"error": body})
}
