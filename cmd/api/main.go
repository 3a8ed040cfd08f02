package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"marketplace-api/internal/cache"
	"marketplace-api/internal/config"
	"marketplace-api/internal/db"
	"marketplace-api/internal/httpserver"
	"marketplace-api/internal/ordernum"
	"marketplace-api/internal/payment"
	cartrepo "marketplace-api/internal/repository/cart"
	chatrepo "marketplace-api/internal/repository/chat"
	notificationrepo "marketplace-api/internal/repository/notification"
	orderrepo "marketplace-api/internal/repository/order"
	payoutrepo "marketplace-api/internal/repository/payout"
	productrepo "marketplace-api/internal/repository/product"
	sellerrepo "marketplace-api/internal/repository/seller"
	settingsrepo "marketplace-api/internal/repository/settings"
	cartsvc "marketplace-api/internal/service/cart"
	checkoutsvc "marketplace-api/internal/service/checkout"
	"marketplace-api/internal/service/notify"
	settlementsvc "marketplace-api/internal/service/settlement"
)

func main() {
	cfg := config.FromEnv()
	logger := log.New(os.Stdout, "[api] ", log.LstdFlags|log.LUTC|log.Lshortfile)

	ctx := context.Background()
	dbpool, err := db.Connect(ctx, cfg.DBConnString)
	if err != nil {
		logger.Fatalf("connect to db: %v", err)
	}
	defer dbpool.Close()

	var gateway payment.Gateway
	if cfg.ProviderAPIKey != "" {
		gateway = payment.NewClient(cfg.ProviderAPIKey)
	} else {
		logger.Println("PAYMENT_API_KEY not set, using in-memory fake gateway")
		gateway = payment.NewFake()
	}

	var events *cache.EventStore
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Printf("redis unreachable at %s, webhook dedup disabled: %v", cfg.RedisAddr, err)
		} else {
			events = cache.NewEventStore(rdb, cfg.WebhookDedupe)
			defer rdb.Close()
		}
	}

	productRegistry, err := productrepo.NewPostgresRegistry(dbpool, logger)
	if err != nil {
		logger.Fatalf("init product registry: %v", err)
	}
	cartRepo := cartrepo.NewPostgres(dbpool)
	orderRepo := orderrepo.NewPostgres(dbpool, ordernum.New(), logger)
	payoutRepo := payoutrepo.NewPostgres(dbpool)
	sellerRepo := sellerrepo.NewPostgres(dbpool)
	settingsRepo := settingsrepo.NewPostgres(dbpool)
	notificationRepo := notificationrepo.NewPostgres(dbpool)
	chatRepo := chatrepo.NewPostgres(dbpool)

	cartService := cartsvc.New(cartRepo, productRegistry)
	checkoutService := checkoutsvc.New(cartService, productRegistry, sellerRepo, settingsRepo, gateway, cfg.PublicBaseURL, cfg.Currency, logger)
	notifySink := notify.New(notificationRepo, logger)
	settlementService := settlementsvc.New(gateway, orderRepo, payoutRepo, cartRepo, sellerRepo, settingsRepo, chatRepo, productRegistry, notifySink, cfg.Currency, logger)

	deps := httpserver.Deps{
		Cart:          cartService,
		Checkout:      checkoutService,
		Settler:       settlementService,
		Products:      productRegistry,
		Orders:        orderRepo,
		Payouts:       payoutRepo,
		Sellers:       sellerRepo,
		Settings:      settingsRepo,
		Notifications: notificationRepo,
		WebhookSecret: cfg.ProviderWebhookSecret,
		AdminToken:    cfg.AdminToken,
	}
	if events != nil {
		deps.Events = events
	}

	srv, err := httpserver.New(cfg.HTTPAddr, logger, dbpool, deps)
	if err != nil {
		logger.Fatalf("init server: %v", err)
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Printf("starting http server on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stopCh:
		logger.Printf("received signal %s, shutting down", sig)
	case err := <-serverErr:
		logger.Printf("server error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Printf("graceful shutdown failed: %v", err)
	}
}
