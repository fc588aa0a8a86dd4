package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/inverseneural/lab/access"
	"github.com/inverseneural/lab/auth"
	"github.com/inverseneural/lab/billing"
	"github.com/inverseneural/lab/broker"
	"github.com/inverseneural/lab/config"
	"github.com/inverseneural/lab/db"
	"github.com/inverseneural/lab/engine"
	"github.com/inverseneural/lab/external"
	"github.com/inverseneural/lab/metrics"
	"github.com/inverseneural/lab/subscription"

	"github.com/TheZeroSlave/zapsentry"
	"github.com/getsentry/sentry-go"
	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/cors"
	"github.com/go-redis/redis/v7"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Version is set at build time
var Version = "dev"

func main() {
	var logger *zap.Logger
	var err error

	dotFile, env := config.DotFile()
	if env == config.EnvProduction {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		log.Fatalf("Cannot initialize logger: %v\n", err)
	}
	logger = logger.With(zap.String("Version", Version))

	cfg, err := config.Load(dotFile, env)
	if err != nil {
		logger.Fatal("Cannot load configurations",
			zap.Error(err),
		)
	}

	// Initialize sentry for error reporting
	if err := sentry.Init(sentry.ClientOptions{
		Dsn:         cfg.SentryDSN,
		Environment: string(env),
		Release:     Version,
		Debug:       env == config.EnvDevelopment,
	}); err != nil {
		logger.Fatal("Cannot initialize sentry",
			zap.Error(err),
		)
	}
	defer sentry.Flush(time.Second * 2)

	// Attach sentry to zap so we can do automatic error capturing
	sentryCfg := zapsentry.Configuration{
		Level: zapcore.ErrorLevel,
		Tags: map[string]string{
			"component": "api",
		},
	}
	core, err := zapsentry.NewCore(sentryCfg, zapsentry.NewSentryClientFromClient(sentry.CurrentHub().Client()))
	if err != nil {
		logger.Fatal("Cannot attach sentry to logger",
			zap.Error(err),
		)
	}
	logger = zapsentry.AttachCoreToLogger(core, logger)

	defer logger.Sync()

	gormDB, err := db.New(db.Options{
		URI:    cfg.PostgresURI,
		Logger: logger,
	})
	if err != nil {
		logger.Fatal("Cannot connect to Postgres",
			zap.Error(err),
		)
	}

	subscriptionManager, err := subscription.NewManager(subscription.ManagerOptions{
		DB:     gormDB,
		Logger: logger,
	})
	if err != nil {
		logger.Fatal("Cannot initialize SubscriptionManager",
			zap.Error(err),
		)
	}

	rdb := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    []string{cfg.RedisURI},
		Password: cfg.RedisPW,
		DB:       0,
	})
	if _, err := rdb.Ping().Result(); err != nil {
		logger.Fatal("Cannot connect to Redis",
			zap.Error(err),
		)
	}
	defer rdb.Close()

	var messageBroker broker.Broker = broker.NoopBroker{}
	if len(cfg.AMQPURI) > 0 {
		amqpBroker, err := broker.NewAMQPBroker(cfg.AMQPURI)
		if err != nil {
			logger.Fatal("Cannot connect to Message Broker",
				zap.Error(err),
			)
		}
		messageBroker = amqpBroker
	} else {
		logger.Info("AMQP_URI is not set, status changes will not be published")
	}
	defer messageBroker.Close()

	collectors := metrics.New(prometheus.NewRegistry())

	authenticator, err := auth.New(auth.Options{
		Revocations: &auth.RedisRevocationStore{Redis: rdb},
		Logger:      logger,
		JWTSecret:   cfg.SupabaseJWTSecret,
		Secure:      env == config.EnvProduction,
	})
	if err != nil {
		logger.Fatal("Cannot initialize Auth",
			zap.Error(err),
		)
	}

	catalog, err := subscription.NewCatalog(map[subscription.PlanType]string{
		subscription.PlanBasic: cfg.StripePrices.Basic,
		subscription.PlanPro:   cfg.StripePrices.Pro,
		subscription.PlanElite: cfg.StripePrices.Elite,
	})
	if err != nil {
		logger.Fatal("Cannot initialize plan catalog",
			zap.Error(err),
		)
	}

	gateway, err := subscription.NewStripeGateway(external.NewStripeClient(cfg.StripeKey, cfg.StripeTimeout), cfg.StripeTimeout)
	if err != nil {
		logger.Fatal("Cannot initialize Stripe gateway",
			zap.Error(err),
		)
	}

	subscriptionService, err := subscription.NewService(subscription.ServiceOptions{
		Store:       subscriptionManager,
		Payments:    gateway,
		Catalog:     catalog,
		Logger:      logger,
		SiteURL:     cfg.SiteURL,
		TrialLength: config.Days(cfg.TrialDays),
	})
	if err != nil {
		logger.Fatal("Cannot initialize Subscription Service Router",
			zap.Error(err),
		)
	}

	guard, err := access.NewGuard(access.GuardOptions{
		Store:   subscriptionManager,
		Logger:  logger,
		Metrics: collectors,
		Policy: access.Policy{
			TrialLength:          config.Days(cfg.TrialDays),
			TrialGrace:           config.Days(cfg.TrialGraceDays),
			PaymentFallbackGrace: config.Days(cfg.PaymentFallbackGraceDays),
		},
		Paths: access.DefaultPaths(),
	})
	if err != nil {
		logger.Fatal("Cannot initialize Access Guard",
			zap.Error(err),
		)
	}

	processor, err := billing.NewProcessor(billing.ProcessorOptions{
		Store:          subscriptionManager,
		PaymentMethods: gateway,
		Broker:         messageBroker,
		Logger:         logger,
		PaymentGrace:   config.Days(cfg.PaymentGraceDays),
	})
	if err != nil {
		logger.Fatal("Cannot initialize Billing Processor",
			zap.Error(err),
		)
	}

	billingService, err := billing.NewService(billing.ServiceOptions{
		Processor:     processor,
		SigningSecret: cfg.StripeWebhookSecret,
		Logger:        logger,
		Metrics:       collectors,
	})
	if err != nil {
		logger.Fatal("Cannot initialize Billing Webhook Router",
			zap.Error(err),
		)
	}

	engineClient, err := engine.NewClient(engine.ClientOptions{
		BaseURL: cfg.EngineURL,
		APIKey:  cfg.EngineAPIKey,
		Timeout: cfg.EngineTimeout,
		Logger:  logger,
	})
	if err != nil {
		logger.Fatal("Cannot initialize Engine Client",
			zap.Error(err),
		)
	}

	engineService, err := engine.NewService(engine.ServiceOptions{
		Engine:  engineClient,
		Logger:  logger,
		Metrics: collectors,
	})
	if err != nil {
		logger.Fatal("Cannot initialize Engine Service Router",
			zap.Error(err),
		)
	}

	rootRouter := chi.NewRouter()

	rootRouter.Use(middleware.RequestID)
	rootRouter.Use(middleware.RealIP)
	rootRouter.Use(requestLogger(logger))
	rootRouter.Use(middleware.Recoverer)
	rootRouter.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{cfg.SiteURL},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	rootRouter.Mount("/webhooks/billing", billingService.Router())

	rootRouter.Route("/api", func(r chi.Router) {
		r.Mount("/webhooks/stripe", billingService.Router())

		r.Group(func(r chi.Router) {
			r.Use(authenticator.Middleware())

			r.Method(http.MethodPost, "/auth/logout", authenticator.LogoutHandler())

			r.Group(func(r chi.Router) {
				r.Use(authenticator.ClaimCheck())

				r.Mount("/billing", subscriptionService.Router())
				r.Mount("/profile", subscriptionService.ProfileRouter())
			})

			r.Route("/strategy", func(r chi.Router) {
				r.Use(guard.RequireEntitlement())

				r.Mount("/", engineService.Router())
			})
		})
	})

	rootRouter.Group(func(r chi.Router) {
		r.Use(authenticator.Middleware())
		r.Use(guard.Middleware())

		r.Handle("/*", pages(cfg.FrontendDir))
	})

	srv := &http.Server{
		Handler:      rootRouter,
		Addr:         cfg.ListenAddr,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		logger.Info("API server listening",
			zap.String("Addr", cfg.ListenAddr),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("API server stopped unexpectedly",
				zap.Error(err),
			)
		}
	}()

	metricsSrv := &http.Server{
		Handler:      internalRouter(collectors.Handler()),
		Addr:         cfg.MetricsAddr,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Metrics server listening",
			zap.String("Addr", cfg.MetricsAddr),
		)
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Metrics server stopped unexpectedly",
				zap.Error(err),
			)
		}
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs

	logger.Info("Shutting down API server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Cannot shutdown API server gracefully",
			zap.Error(err),
		)
	}
	if err := metricsSrv.Shutdown(ctx); err != nil {
		logger.Error("Cannot shutdown metrics server gracefully",
			zap.Error(err),
		)
	}
}
