package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"checkout-svc/cache"
	"checkout-svc/checkout"
	"checkout-svc/claims"
	"checkout-svc/config"
	"checkout-svc/database"
	"checkout-svc/handlers"
	"checkout-svc/identity"
	"checkout-svc/kafka"
	"checkout-svc/middleware"
	"checkout-svc/notify"
	"checkout-svc/payments"
	"checkout-svc/repository"
	"checkout-svc/settlement"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

func main() {
	// Initialize logger
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	// Initialize database
	db, err := database.InitDB(cfg.PostgresDSN(), logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()
	store := repository.NewStore(db)

	// Initialize Redis
	rdb, err := cache.InitRedis(cfg.RedisAddr(), cfg.RedisPassword, logger)
	if err != nil {
		logger.Fatal("Failed to initialize Redis", zap.Error(err))
	}
	defer rdb.Close()
	products := cache.NewProductCache(rdb, store, 5*time.Minute, logger)
	ledger := cache.NewEventLedger(rdb, 72*time.Hour)

	// Initialize Kafka
	producer, err := kafka.InitProducer(cfg.KafkaBrokers, logger)
	if err != nil {
		logger.Fatal("Failed to initialize Kafka producer", zap.Error(err))
	}
	defer producer.Close()
	publisher := kafka.NewPublisher(producer, logger)

	consumer, err := kafka.InitConsumer(cfg.KafkaBrokers, logger)
	if err != nil {
		logger.Fatal("Failed to initialize Kafka consumer", zap.Error(err))
	}
	defer consumer.Close()

	// Initialize OpenTelemetry
	shutdown, err := middleware.InitTracing("checkout-service", cfg.JaegerEndpoint)
	if err != nil {
		logger.Fatal("Failed to initialize tracing", zap.Error(err))
	}
	defer shutdown()

	processor := payments.NewStripeClient(cfg.StripeSecretKey, cfg.Currency, cfg.UpstreamTimeout, logger)
	verifier := payments.NewStripeWebhookVerifier(cfg.StripeWebhookSecret)
	dispatcher := notify.NewDispatcher(publisher, cfg.NotificationTopic, logger)

	var provider identity.Provider
	if cfg.IdentityURL != "" {
		provider = identity.NewGoTrueProvider(cfg.IdentityURL, cfg.IdentityServiceKey, cfg.UpstreamTimeout, logger)
	} else {
		logger.Warn("IDENTITY_PROVIDER_URL not set, using local identity accounts")
		provider = identity.NewLocalProvider(db, []byte(cfg.JWTSecret))
	}
	provisioner := identity.NewProvisioner(provider, store, logger)

	builder := checkout.NewBuilder(products, store, provisioner, processor, dispatcher, cfg.FrontendURL, logger)
	controller := claims.NewController(store, processor, cfg.FrontendURL, logger)
	settler := settlement.NewProcessor(store, processor, ledger, publisher, cfg.SettlementTopic, dispatcher, logger)

	// Chapter donation transfers run off the settlement topic
	consumerCtx, stopConsumer := context.WithCancel(context.Background())
	transfers := kafka.NewTransferConsumer(consumer, cfg.SettlementTopic, processor, store, logger)
	go func() {
		if err := transfers.Start(consumerCtx); err != nil {
			logger.Error("Transfer consumer stopped", zap.Error(err))
		}
	}()

	limiter := middleware.NewIPRateLimiter(float64(cfg.GuestCheckoutRPS), cfg.GuestCheckoutBurst)
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-consumerCtx.Done():
				return
			case <-ticker.C:
				limiter.Cleanup()
			}
		}
	}()

	// Setup Gin router
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("checkout-service"))
	router.Use(middleware.LoggerMiddleware(logger))
	router.Use(middleware.MetricsMiddleware())

	router.GET("/health", handlers.HealthCheck)
	router.GET("/ready", handlers.ReadyCheck(db))
	router.GET("/metrics", middleware.PrometheusHandler())

	secret := []byte(cfg.JWTSecret)
	checkoutHandler := handlers.NewCheckoutHandler(builder, cfg.Development(), logger)
	router.POST("/checkout/:productId", middleware.OptionalAuth(secret), limiter.Middleware(), checkoutHandler.CreateCheckout)
	router.GET("/checkout/session/:sessionId", checkoutHandler.GetSession)

	claimHandler := handlers.NewClaimHandler(controller, cfg.Development(), logger)
	members := router.Group("/")
	members.Use(middleware.RequireAuth(secret))
	members.Use(middleware.RequireVerifiedMember(store, logger))
	{
		members.POST("/claims/:listingId", claimHandler.Claim)
		members.POST("/steward-checkout/:listingId", claimHandler.StewardCheckout)
		members.POST("/listings/:listingId/withdraw", claimHandler.Withdraw)
	}

	webhookHandler := handlers.NewWebhookHandler(verifier, settler, logger)
	router.POST("/webhooks/payment", webhookHandler.PaymentWebhook)

	// Start server
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: router,
	}

	// Graceful shutdown
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	logger.Info("Checkout Service started", zap.String("addr", cfg.HTTPAddr))

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
	stopConsumer()
	dispatcher.Wait()

	logger.Info("Server exited")
}
