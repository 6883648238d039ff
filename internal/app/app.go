// Package app wires configuration, storage, messaging, domain services
// and the HTTP server together.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/Daninc24/dropshipping-sub001/internal/domain/cart"
	"github.com/Daninc24/dropshipping-sub001/internal/domain/coupon"
	"github.com/Daninc24/dropshipping-sub001/internal/domain/delivery"
	"github.com/Daninc24/dropshipping-sub001/internal/domain/order"
	"github.com/Daninc24/dropshipping-sub001/internal/domain/payment"
	"github.com/Daninc24/dropshipping-sub001/internal/domain/wallet"
	"github.com/Daninc24/dropshipping-sub001/internal/events"
	"github.com/Daninc24/dropshipping-sub001/internal/handler"
	"github.com/Daninc24/dropshipping-sub001/internal/mpesa"
	"github.com/Daninc24/dropshipping-sub001/internal/repository"
	"github.com/Daninc24/dropshipping-sub001/pkg/ginmiddleware"
	"github.com/Daninc24/dropshipping-sub001/pkg/health"
)

// Run creates all dependencies, starts the HTTP server, and handles
// graceful shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	taxRate, err := cfg.taxRate()
	if err != nil {
		return err
	}
	cashbackRate, err := cfg.cashbackRate()
	if err != nil {
		return err
	}

	// PostgreSQL pool + migrations.
	pool, err := repository.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	// Health check service.
	healthSvc := health.New()
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, health.PingCheck(pool))

	// Repositories.
	productRepo := repository.NewProductRepository(pool)
	cartRepo := repository.NewCartRepository(pool)
	couponRepo := repository.NewCouponRepository(pool)
	orderRepo := repository.NewOrderRepository(pool)
	intentRepo := repository.NewPaymentIntentRepository(pool)
	walletRepo := repository.NewWalletRepository(pool)
	agentRepo := repository.NewAgentRepository(pool)
	zoneRepo := repository.NewZoneRepository(pool)
	notificationRepo := repository.NewNotificationRepository(pool)
	settingsRepo := repository.NewSettingsRepository(pool)

	// Event publisher. Without a broker configured, events are dropped
	// and no notifications are produced.
	var pub events.Publisher = events.NopPublisher{}
	if cfg.RabbitURL != "" {
		amqpPub, err := events.NewAMQPPublisher(cfg.RabbitURL)
		if err != nil {
			return errors.Wrap(err, "connect rabbitmq")
		}
		defer func() { _ = amqpPub.Close() }()
		pub = amqpPub

		consumer := events.NewConsumer(amqpPub.Channel(), notificationRepo, lg.Named("consumer"))
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				lg.Error("Notification consumer stopped", zap.Error(err))
			}
		}()
	} else {
		lg.Warn("RabbitMQ not configured, order events will be dropped")
	}

	// Domain services.
	couponEval := coupon.NewEvaluator(couponRepo)
	cartSvc := cart.NewService(cartRepo, productRepo, couponEval)
	deliverySvc := delivery.NewService(agentRepo, zoneRepo, orderRepo, pub, lg.Named("delivery"))
	orderSvc := order.NewService(orderRepo, cartRepo, productRepo, couponEval, deliverySvc, pub, lg.Named("order"), taxRate)
	walletSvc := wallet.NewService(walletRepo)
	stk := mpesa.NewClient(mpesa.Config{
		BaseURL:        cfg.Mpesa.BaseURL,
		ConsumerKey:    cfg.Mpesa.ConsumerKey,
		ConsumerSecret: cfg.Mpesa.ConsumerSecret,
		ShortCode:      cfg.Mpesa.ShortCode,
		Passkey:        cfg.Mpesa.Passkey,
		CallbackURL:    cfg.Mpesa.CallbackURL,
		Timeout:        cfg.Mpesa.Timeout,
	})
	paymentSvc := payment.NewService(intentRepo, orderRepo, walletSvc, stk, pub, lg.Named("payment"), cashbackRate)

	// HTTP router.
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(
		ginmiddleware.InjectLogger(lg.Named("http")),
		ginmiddleware.RequestID(),
		ginmiddleware.Recovery(),
		ginmiddleware.CORS(ginmiddleware.CORSConfig{
			AllowOrigins:     cfg.CORS.Origins,
			AllowCredentials: cfg.CORS.AllowCredentials,
		}),
		ginmiddleware.RateLimit(ctx, ginmiddleware.RateLimitConfig{
			Max:    cfg.RateLimit.Max,
			Window: cfg.RateLimit.Window,
		}),
		ginmiddleware.Logger(),
		ginmiddleware.Metrics(),
	)

	api := &handler.API{
		Products:      handler.NewProductHandler(productRepo),
		Cart:          handler.NewCartHandler(cartSvc),
		Orders:        handler.NewOrderHandler(orderSvc, orderRepo),
		Payments:      handler.NewPaymentHandler(paymentSvc),
		Wallet:        handler.NewWalletHandler(walletSvc),
		Delivery:      handler.NewDeliveryHandler(deliverySvc),
		Coupons:       handler.NewCouponHandler(couponRepo),
		Notifications: handler.NewNotificationHandler(notificationRepo),
		Settings:      handler.NewSettingsHandler(settingsRepo),
	}
	api.Register(engine, []byte(cfg.JWTSecret))

	engine.GET("/livez", gin.WrapF(healthSvc.LiveEndpoint))
	engine.GET("/readyz", gin.WrapF(healthSvc.ReadyEndpoint))
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: otelhttp.NewHandler(engine, "soko-api",
			otelhttp.WithTracerProvider(m.TracerProvider()),
			otelhttp.WithMeterProvider(m.MeterProvider()),
		),
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		close(shutdownDone)
	}()

	healthSvc.SetReady(true)
	zctx.From(ctx).Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}
