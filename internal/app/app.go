package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xenking/railmeal/internal/auth"
	"github.com/xenking/railmeal/internal/backend"
	"github.com/xenking/railmeal/internal/checkout"
	"github.com/xenking/railmeal/internal/domain/payment"
	"github.com/xenking/railmeal/internal/handler"
	"github.com/xenking/railmeal/internal/ledger"
	"github.com/xenking/railmeal/internal/razorpay"
	"github.com/xenking/railmeal/internal/session"
	"github.com/xenking/railmeal/pkg/health"
	"github.com/xenking/railmeal/pkg/httpmiddleware"
)

const serviceName = "railmeal-api"

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing",
		zap.String("addr", cfg.Addr),
		zap.String("backend", cfg.Backend.URL),
		zap.String("razorpay_key_id", cfg.Razorpay.KeyID),
	)

	taxRate, err := cfg.Checkout.Rate()
	if err != nil {
		return err
	}

	// Outbound clients.
	gateway, err := razorpay.New(razorpay.Options{
		BaseURL:   cfg.Razorpay.BaseURL,
		KeyID:     cfg.Razorpay.KeyID,
		KeySecret: cfg.Razorpay.KeySecret,
		Timeout:   cfg.Razorpay.Timeout,
		Breaker:   cfg.Breaker,
		Logger:    lg.Named("razorpay"),
	})
	if err != nil {
		return errors.Wrap(err, "create razorpay client")
	}
	api, err := backend.New(backend.Options{
		BaseURL: cfg.Backend.URL,
		Timeout: cfg.Backend.Timeout,
		Breaker: cfg.Breaker,
		Logger:  lg.Named("backend"),
	})
	if err != nil {
		return errors.Wrap(err, "create backend client")
	}

	// Health check service.
	healthSvc := health.New()
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.AddReadinessCheck("backend", time.Second, health.BreakerCheck(api.Breaker()))
	healthSvc.AddReadinessCheck("razorpay", time.Second, health.BreakerCheck(gateway.Breaker()))

	// Reconciliation ledger.
	var store ledger.Ledger = ledger.NewMemory()
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer func() { _ = rdb.Close() }()

		redisLedger := ledger.NewRedis(rdb, cfg.Redis.EntryTTL)
		if err := redisLedger.Ping(ctx); err != nil {
			return errors.Wrap(err, "ping redis")
		}
		healthSvc.AddReadinessCheck("redis", 2*time.Second, health.PingCheck(redisLedger))
		store = redisLedger
	} else {
		lg.Warn("Redis is not configured, reconciliation ledger is kept in memory")
	}

	var notifier ledger.Notifier = ledger.NopNotifier{}
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaNotifier := ledger.NewKafkaNotifier(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer func() {
			if err := kafkaNotifier.Close(); err != nil {
				lg.Error("Close kafka writer", zap.Error(err))
			}
		}()
		notifier = kafkaNotifier
	}

	healthSvc.Start(ctx, 10*time.Second)

	// Domain services.
	intents := payment.NewIntentService(
		gateway,
		cfg.Razorpay.Currency,
		payment.NewReceiptIssuer(nil),
		payment.NewRedactor(cfg.Razorpay.KeySecret),
	)
	flow, err := checkout.NewFlow(checkout.Options{
		Intents:  intents,
		Verifier: gateway,
		Ledger:   store,
		Notifier: notifier,
		TaxRate:  taxRate,
		Currency: cfg.Razorpay.Currency,
		Meter:    m.MeterProvider().Meter(serviceName),
		Tracer:   m.TracerProvider().Tracer(serviceName),
	})
	if err != nil {
		return errors.Wrap(err, "create checkout flow")
	}

	sessions := session.NewRegistry(session.Deps{
		Orders:  api.Orders(),
		Reviews: api.Orders(),
		Wallets: api.Wallets(),
	}, cfg.Session.IdleTimeout)
	go sessions.Run(ctx, cfg.Session.SweepInterval)

	// HTTP handlers.
	h := handler.New(
		handler.Config{KeyID: gateway.KeyID()},
		sessions,
		intents,
		flow,
		auth.NewVerifier([]byte(cfg.Auth.JWTSecret)),
	)

	mux := http.NewServeMux()
	mux.HandleFunc("/livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("/readyz", healthSvc.ReadyEndpoint)
	mux.Handle("/", h.Routes(
		httpmiddleware.Instrument(serviceName, m),
		httpmiddleware.LogRequests(httpmiddleware.ChiRoute),
	))

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      cfg.Razorpay.Timeout + cfg.Backend.Timeout + 5*time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", "Authorization", handler.SessionHeader},
				ExposeHeaders:    []string{handler.SessionHeader, httpmiddleware.RequestIDHeader},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimit(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
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
		healthSvc.Stop()
		close(shutdownDone)
	}()

	healthSvc.SetReady(true)
	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}
