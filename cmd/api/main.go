package main

import (
	"context"
	"crypto/tls"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/divinetalks/platform/internal/access"
	"github.com/divinetalks/platform/internal/admin"
	"github.com/divinetalks/platform/internal/api/router"
	"github.com/divinetalks/platform/internal/bookings"
	"github.com/divinetalks/platform/internal/catalog"
	appconfig "github.com/divinetalks/platform/internal/config"
	"github.com/divinetalks/platform/internal/identity"
	"github.com/divinetalks/platform/internal/notify"
	"github.com/divinetalks/platform/internal/observability/metrics"
	"github.com/divinetalks/platform/internal/payments"
	"github.com/divinetalks/platform/internal/schedule"
	"github.com/divinetalks/platform/pkg/logging"
)

func main() {
	// Load configuration
	_ = godotenv.Load()
	cfg := appconfig.Load()

	// Initialize logger
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting divinetalks API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	loc, err := cfg.Location()
	if err != nil {
		logger.Error("failed to load provider timezone", "timezone", cfg.Timezone, "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to create database pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	// The admin dashboard runs its aggregates through database/sql.
	sqlDB, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer sqlDB.Close()

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		opts := &redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		}
		if cfg.RedisTLS {
			opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		redisClient = redis.NewClient(opts)
		defer redisClient.Close()
	}

	// Metrics
	registry := prometheus.NewRegistry()
	bookingMetrics := metrics.NewBookingMetrics(registry)
	metricsHandler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	// Catalog and schedule
	cat := catalog.Default()
	grid := schedule.NewGrid(schedule.DefaultTemplate(loc))
	slotCache := schedule.NewSlotCache(redisClient, cfg.SlotCacheTTL)
	scheduleHandler := schedule.NewHandler(grid, slotCache, logger)

	// Bookings
	bookingsRepo := bookings.NewRepository(pool)
	ledger := bookings.NewLedger(bookingsRepo, grid, cat, logger, bookingMetrics)
	bookingsHandler := bookings.NewHandler(ledger, loc, logger)

	// Confirmation emails
	var emailSender notify.EmailSender
	if sg := notify.NewSendGridSender(notify.SendGridConfig{
		APIKey:    cfg.SendGridAPIKey,
		FromEmail: cfg.SendGridFromEmail,
		FromName:  cfg.SendGridFromName,
	}, logger); sg != nil {
		emailSender = sg
	} else {
		logger.Warn("SENDGRID_API_KEY not set, using stub email sender")
		emailSender = notify.NewStubEmailSender(logger)
	}
	users := identity.NewUserDirectory(pool)
	notifySvc := notify.NewService(emailSender, users, cat, loc, logger)

	// Payments
	paymentsRepo := payments.NewRepository(pool)
	processedEvents := payments.NewProcessedStore(pool)
	stripeClient := payments.NewStripeClient(cfg.StripeSecretKey, logger)
	reconciler := payments.NewReconciler(bookingsRepo, paymentsRepo, stripeClient, logger, bookingMetrics).
		WithNotifier(notifySvc)
	paymentsHandler := payments.NewHandler(reconciler, logger)
	webhookHandler := payments.NewWebhookHandler(cfg.StripeWebhookSecret, reconciler, processedEvents, logger, bookingMetrics)

	// Session access
	gate := access.NewGate(loc)
	accessHandler := access.NewHandler(gate, bookingsRepo, cfg.HedraAPIKey, logger)

	// Admin dashboard
	adminDashboard := admin.NewDashboardHandler(sqlDB, loc, logger)

	// Setup router
	routerCfg := &router.Config{
		Logger:             logger,
		CatalogHandler:     catalog.NewHandler(cat),
		ScheduleHandler:    scheduleHandler,
		BookingsHandler:    bookingsHandler,
		PaymentsHandler:    paymentsHandler,
		PaymentsWebhook:    webhookHandler,
		AccessHandler:      accessHandler,
		AdminDashboard:     adminDashboard,
		MetricsHandler:     metricsHandler,
		SessionJWTSecret:   cfg.SessionJWTSecret,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
	}
	r := router.New(routerCfg)

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}
