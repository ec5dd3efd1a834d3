package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/civic-os/payments/internal/infra/queue"
	"github.com/civic-os/payments/internal/module/notification"
	"github.com/civic-os/payments/internal/module/payment"
	paymentprovider "github.com/civic-os/payments/internal/module/payment/provider"
	"github.com/civic-os/payments/internal/shared/config"
	"github.com/civic-os/payments/internal/shared/database"
	"github.com/civic-os/payments/internal/shared/logger"
	"github.com/civic-os/payments/internal/utils/metrics"
	"github.com/civic-os/payments/internal/utils/middleware"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// App wires configuration, storage, the job queue, and the HTTP surface.
type App struct {
	config  *config.Config
	db      *gorm.DB
	router  *gin.Engine
	logger  *zap.Logger
	metrics *metrics.Metrics

	queue *queue.Queue

	paymentService *payment.Service
	paymentHandler *payment.Handler
	webhookHandler *payment.WebhookHandler
}

// New creates a new application instance.
func New(cfg *config.Config) (*App, error) {
	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	app := &App{
		config:  cfg,
		logger:  log,
		metrics: metrics.New("payments"),
	}

	db, err := database.New(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}
	app.db = db

	if err := db.AutoMigrate(
		&payment.Transaction{},
		&payment.Refund{},
		&payment.WebhookEvent{},
		&queue.Job{},
		&notification.Notification{},
	); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	if err := app.initQueue(); err != nil {
		return nil, fmt.Errorf("init queue: %w", err)
	}
	if err := app.initPaymentModule(); err != nil {
		return nil, fmt.Errorf("init payment module: %w", err)
	}
	app.initNotificationModule()

	app.router = app.setupRouter()
	app.registerRoutes()

	return app, nil
}

// initQueue creates the durable job queue on top of the shared database.
func (a *App) initQueue() error {
	repo := queue.NewRepository(a.db)
	a.queue = queue.New(repo, &queue.Config{
		Workers:      a.config.Queue.Workers,
		Queues:       []string{payment.QueuePayments},
		PollInterval: a.config.Queue.PollInterval,
		MaxAttempts:  a.config.Queue.MaxAttempts,
		BackoffBase:  a.config.Queue.BackoffBase,
		BackoffMax:   a.config.Queue.BackoffMax,
		RecoverAfter: a.config.Queue.RecoverAfter,
	}, a.logger, a.metrics)
	return nil
}

// initPaymentModule initializes the payment module.
func (a *App) initPaymentModule() error {
	registry := paymentprovider.NewRegistry()

	if a.config.Stripe.SecretKey != "" {
		stripe := paymentprovider.NewStripeProvider(&paymentprovider.StripeConfig{
			APIKey:        a.config.Stripe.SecretKey,
			WebhookSecret: a.config.Stripe.WebhookSecret,
		})
		registry.Register(paymentprovider.NewBreaker(stripe, paymentprovider.DefaultBreakerConfig(), a.metrics))
	}

	repo := payment.NewRepository(a.db)
	fees := payment.NewFeeCalculator(&a.config.Fee)

	a.paymentService = payment.NewService(
		repo,
		registry,
		fees,
		a.queue,
		a.config.Payments.DefaultCurrency,
		a.logger,
	)
	a.paymentService.RegisterWorkers(a.queue)

	a.paymentHandler = payment.NewHandler(a.paymentService)
	a.webhookHandler = payment.NewWebhookHandler(
		payment.NewGormTxRunner(a.db),
		repo,
		a.paymentService,
		registry,
		a.metrics,
		a.logger,
		a.config.Payments.MaxWebhookBodyBytes,
	)
	return nil
}

// initNotificationModule initializes the notification module.
func (a *App) initNotificationModule() {
	svc := notification.NewService(notification.NewRepository(a.db), a.logger)
	svc.RegisterWorkers(a.queue)
}

// setupRouter creates and configures the Gin router.
func (a *App) setupRouter() *gin.Engine {
	if a.config.Log.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(middleware.Recovery(a.logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.Logging(a.logger, a.metrics))

	r.GET("/health", a.handleHealth)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

// registerRoutes registers routes for all modules.
func (a *App) registerRoutes() {
	v1 := a.router.Group("/api/v1")
	a.paymentHandler.RegisterRoutes(v1)
	a.webhookHandler.RegisterRoutes(a.router)
}

func (a *App) handleHealth(c *gin.Context) {
	sqlDB, err := a.db.DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "database": "down"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Start starts the background workers.
func (a *App) Start(ctx context.Context) error {
	return a.queue.Start(ctx)
}

// Router returns the HTTP router.
func (a *App) Router() *gin.Engine {
	return a.router
}

// Stop drains the queue workers and releases resources.
func (a *App) Stop() {
	if a.queue != nil {
		a.queue.Stop()
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
	if a.db != nil {
		_ = database.Close(a.db)
	}
}
