package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/mehtaarjun/shopsphere-backend/api/routes"
	"github.com/mehtaarjun/shopsphere-backend/internal/cart"
	"github.com/mehtaarjun/shopsphere-backend/internal/catalog"
	"github.com/mehtaarjun/shopsphere-backend/internal/payments"
	razorpaywebhook "github.com/mehtaarjun/shopsphere-backend/internal/webhooks/razorpay"
	"github.com/mehtaarjun/shopsphere-backend/pkg/config"
	"github.com/mehtaarjun/shopsphere-backend/pkg/db"
	"github.com/mehtaarjun/shopsphere-backend/pkg/db/models"
	"github.com/mehtaarjun/shopsphere-backend/pkg/enums"
	"github.com/mehtaarjun/shopsphere-backend/pkg/logger"
	"github.com/mehtaarjun/shopsphere-backend/pkg/metrics"
	"github.com/mehtaarjun/shopsphere-backend/pkg/migrate"
	"github.com/mehtaarjun/shopsphere-backend/pkg/razorpay"
	"github.com/mehtaarjun/shopsphere-backend/pkg/redis"
)

const shutdownGrace = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}
	if cfg.FeatureFlags.UseSQLite && cfg.FeatureFlags.AutoMigrate {
		err := dbClient.DB().AutoMigrate(
			&models.Product{},
			&models.Cart{},
			&models.CartItem{},
			&models.Payment{},
			&models.PaymentItem{},
		)
		if err != nil {
			logg.Error(context.Background(), "failed to auto-migrate sqlite schema", err)
			os.Exit(1)
		}
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	registry := prometheus.NewRegistry()
	paymentMetrics := metrics.NewPaymentMetrics(registry)

	razorpayClient, err := razorpay.NewClient(context.Background(), cfg.Razorpay, logg, paymentMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to create razorpay client", err)
		os.Exit(1)
	}

	catalogRepo := catalog.NewRepository(dbClient.DB())
	cartRepo := cart.NewRepository(dbClient.DB())

	cartService, err := cart.NewService(cartRepo, dbClient, catalogRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create cart service", err)
		os.Exit(1)
	}

	settlement, err := enums.ParseCurrency(cfg.Payment.SettlementCurrency)
	if err != nil {
		logg.Error(context.Background(), "invalid settlement currency", err)
		os.Exit(1)
	}

	paymentService, err := payments.NewService(
		payments.NewRepository(dbClient.DB()),
		dbClient,
		cartRepo,
		cartService,
		catalogRepo,
		razorpayClient,
		settlement,
		paymentMetrics,
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create payment service", err)
		os.Exit(1)
	}

	webhookGuard, err := razorpaywebhook.NewDedupGuard(redisClient, cfg.Payment.WebhookDedupTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook dedup guard", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			razorpayClient,
			cartService,
			paymentService,
			webhookGuard,
			registry,
		),
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case sig := <-stop:
		logg.Info(logg.WithField(ctx, "signal", sig.String()), "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "graceful shutdown failed", err)
			os.Exit(1)
		}
	}
}
