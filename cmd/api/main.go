package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"storefront/internal/config"
	"storefront/internal/db"
	"storefront/internal/httpserver"
	"storefront/internal/logging"
	"storefront/internal/notify"
	"storefront/internal/payment"
	cartrepo "storefront/internal/repository/cart"
	customerrepo "storefront/internal/repository/customer"
	discountrepo "storefront/internal/repository/discount"
	orderrepo "storefront/internal/repository/order"
	settingsrepo "storefront/internal/repository/settings"
	tokenrepo "storefront/internal/repository/token"
	variantrepo "storefront/internal/repository/variant"
	anonymoussvc "storefront/internal/service/anonymous"
	cartsvc "storefront/internal/service/cart"
	checkoutsvc "storefront/internal/service/checkout"
	customersvc "storefront/internal/service/customer"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("load config: " + err.Error())
	}
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		panic("init logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()
	logger = logger.With(zap.String("component", "api"))

	ctx := context.Background()
	dbpool, err := db.Connect(ctx, cfg.DBConnString)
	if err != nil {
		logger.Fatal("connect to db", zap.Error(err))
	}
	defer dbpool.Close()

	variantRepo := variantrepo.NewPostgres(dbpool, logger)
	cartRepo := cartrepo.NewPostgres(dbpool, cfg.AnonymousCartTTL, logger)
	discountRepo := discountrepo.NewPostgres(dbpool, logger)
	orderRepo := orderrepo.NewPostgres(dbpool, logger)
	settingsRepo := settingsrepo.NewPostgres(dbpool)
	customerRepo := customerrepo.NewPostgres(dbpool, logger)
	tokenRepo := tokenrepo.NewPostgres(dbpool)

	var notifier notify.Notifier = notify.NewLogNotifier(logger)
	var kafkaNotifier *notify.KafkaNotifier
	if cfg.NotificationsEnabled() {
		kafkaNotifier = notify.NewKafkaNotifier(cfg.KafkaBrokers, cfg.OrderConfirmationTopic, logger)
		notifier = kafkaNotifier
		logger.Info("order confirmations via kafka",
			zap.Strings("brokers", cfg.KafkaBrokers),
			zap.String("topic", cfg.OrderConfirmationTopic))
	}

	cartService := cartsvc.New(cartRepo, variantRepo, logger)
	checkoutService := checkoutsvc.New(checkoutsvc.Deps{
		Carts:         cartRepo,
		Discounts:     discountRepo,
		Settings:      settingsRepo,
		Orders:        orderRepo,
		Payments:      payment.NewMock(cfg.PaymentLatency, cfg.PaymentApprovalRate, logger),
		Notifier:      notifier,
		Numbers:       checkoutsvc.NewNumberGenerator(cfg.OrderNumberPrefix),
		Logger:        logger,
		NotifyTimeout: cfg.NotifyTimeout,
	})
	customerService := customersvc.New(customerRepo, tokenRepo, cfg.AccessTokenTTL, logger)
	anonymousService := anonymoussvc.New(tokenRepo, cfg.AnonymousTokenTTL)

	srv, err := httpserver.New(cfg.HTTPAddr, logger, dbpool, httpserver.Deps{
		CartSvc:        cartService,
		CheckoutSvc:    checkoutService,
		CustomerSvc:    customerService,
		AnonymousSvc:   anonymousService,
		AllowedOrigins: cfg.CORSAllowedOrigins,
	})
	if err != nil {
		logger.Fatal("init server", zap.Error(err))
	}

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	sweepDone := make(chan struct{})
	go func() {
		defer close(sweepDone)
		runSweeper(sweepCtx, logger, cfg.CartSweepInterval, cartService, anonymousService)
	}()

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stopCh:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	case err := <-serverErr:
		logger.Error("server error", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	} else {
		logger.Info("server stopped")
	}
	stopSweep()
	<-sweepDone

	// Confirmations still in flight get to finish before the writer closes.
	checkoutService.Wait()
	if kafkaNotifier != nil {
		if err := kafkaNotifier.Close(); err != nil {
			logger.Warn("close kafka writer", zap.Error(err))
		}
	}
}

type purger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// runSweeper deletes expired anonymous carts and tokens every interval
// until ctx is cancelled.
func runSweeper(ctx context.Context, logger *zap.Logger, interval time.Duration, carts, tokens purger) {
	if interval <= 0 {
		logger.Info("cart sweeper disabled")
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// the cart service logs its own sweep outcome
			_, _ = carts.PurgeExpired(ctx)
			if n, err := tokens.PurgeExpired(ctx); err != nil {
				logger.Warn("sweep expired tokens", zap.Error(err))
			} else if n > 0 {
				logger.Info("swept expired tokens", zap.Int64("count", n))
			}
		}
	}
}
