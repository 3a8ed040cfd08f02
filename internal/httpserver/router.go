package httpserver

import (
	"context"
	"log"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"marketplace-api/internal/domain"
	notificationrepo "marketplace-api/internal/repository/notification"
	orderrepo "marketplace-api/internal/repository/order"
	payoutrepo "marketplace-api/internal/repository/payout"
	"marketplace-api/internal/repository/product"
	sellerrepo "marketplace-api/internal/repository/seller"
	settingsrepo "marketplace-api/internal/repository/settings"
	cartsvc "marketplace-api/internal/service/cart"
	checkoutsvc "marketplace-api/internal/service/checkout"
)

// settler is what the webhook and success-page handlers need from the
// settlement processor.
type settler interface {
	Settle(ctx context.Context, sessionID string) (*domain.Order, error)
}

// eventDedup is the fast pre-check for re-delivered webhook events. Nil
// disables it: the order table's session uniqueness still holds the line.
type eventDedup interface {
	MarkProcessed(ctx context.Context, eventID string) (bool, error)
	Forget(ctx context.Context, eventID string) error
}

// Deps carries everything the routes are wired against.
type Deps struct {
	Cart          *cartsvc.Service
	Checkout      *checkoutsvc.Service
	Settler       settler
	Products      *product.Registry
	Orders        orderrepo.Repository
	Payouts       payoutrepo.Repository
	Sellers       sellerrepo.Repository
	Settings      settingsrepo.Repository
	Notifications notificationrepo.Repository
	Events        eventDedup
	WebhookSecret string
	AdminToken    string
}

// buildRouter wires routes for the API.
func buildRouter(logger *log.Logger, db *pgxpool.Pool, deps Deps) (*gin.Engine, error) {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.LoggerWithWriter(logger.Writer()), gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type", "X-User-ID", "X-Admin-Token"},
		MaxAge:          12 * time.Hour,
	}))
	router.Use(metricsMiddleware())

	router.GET("/healthz", healthHandler)
	router.GET("/readyz", readyHandler(db))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	h := &handlers{deps: deps, logger: logger}

	router.GET("/products/:kind", h.listProducts)
	router.GET("/products/:kind/:id", h.getProduct)

	// provider-facing, authenticated by signature rather than user header
	router.POST("/webhooks/payment", h.paymentWebhook)

	user := router.Group("/", requireUser())
	{
		user.GET("/cart", h.viewCart)
		user.GET("/cart/summary", h.cartSummary)
		user.POST("/cart/items", h.addCartItem)
		user.DELETE("/cart/items/:id", h.removeCartItem)
		user.DELETE("/cart", h.clearCart)

		user.POST("/checkout/cart", h.checkoutCart)
		user.POST("/purchase/:kind/:id", h.purchaseSingle)
		user.GET("/checkout/success", h.checkoutSuccess)

		user.GET("/orders", h.listOrders)
		user.GET("/notifications", h.listNotifications)

		user.GET("/seller/payouts", h.listSellerPayouts)
		user.PUT("/seller/payee", h.setSellerPayee)
	}

	admin := router.Group("/admin", requireAdmin(deps.AdminToken))
	{
		admin.GET("/settings", h.getSettings)
		admin.PUT("/settings", h.updateSettings)
	}

	return router, nil
}

type handlers struct {
	deps   Deps
	logger *log.Logger
}
