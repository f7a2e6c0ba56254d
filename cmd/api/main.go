package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/minsu-cho/commerce-backend/api/routes"
	"github.com/minsu-cho/commerce-backend/internal/coupon"
	"github.com/minsu-cho/commerce-backend/internal/inventory"
	"github.com/minsu-cho/commerce-backend/internal/locking"
	"github.com/minsu-cho/commerce-backend/internal/payment"
	"github.com/minsu-cho/commerce-backend/internal/purchase"
	"github.com/minsu-cho/commerce-backend/internal/reconcile"
	"github.com/minsu-cho/commerce-backend/internal/wallet"
	"github.com/minsu-cho/commerce-backend/pkg/config"
	"github.com/minsu-cho/commerce-backend/pkg/db"
	"github.com/minsu-cho/commerce-backend/pkg/logger"
	"github.com/minsu-cho/commerce-backend/pkg/metrics"
	"github.com/minsu-cho/commerce-backend/pkg/migrate"
	"github.com/minsu-cho/commerce-backend/pkg/outbox"
	"github.com/minsu-cho/commerce-backend/pkg/pg"
	"github.com/minsu-cho/commerce-backend/pkg/redis"
)

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

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	metricsReg := prometheus.NewRegistry()
	metricsReg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	gatewayMetrics := metrics.NewGatewayMetrics(metricsReg)

	pgClient, err := pg.NewClient(cfg.Gateway, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create payment gateway client", err)
		os.Exit(1)
	}
	gateway, err := pg.NewGateway(pgClient, cfg.Breaker, gatewayMetrics, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create payment gateway", err)
		os.Exit(1)
	}

	gormDB := dbClient.DB()
	orderRepo := purchase.NewRepository(gormDB)
	paymentRepo := payment.NewRepository(gormDB)
	couponLedger := coupon.NewLedger(coupon.NewRepository(gormDB))
	locks := locking.NewRepository()
	stock := inventory.NewStockLedger()
	points := wallet.NewPointWallet()
	outboxService := outbox.NewService(outbox.NewRepository(gormDB), logg)

	compensator := reconcile.NewCompensator(reconcile.CompensatorDeps{
		Orders:   orderRepo,
		Payments: paymentRepo,
		Locks:    locks,
		Stock:    stock,
		Wallet:   points,
		Tx:       dbClient,
		Outbox:   outboxService,
		Logger:   logg,
	})

	reconcileService := reconcile.NewService(reconcile.Deps{
		Orders:       orderRepo,
		Payments:     paymentRepo,
		Compensator:  compensator,
		Tx:           dbClient,
		Outbox:       outboxService,
		Inquirer:     gateway,
		Logger:       logg,
		FastPathWait: cfg.Recovery.FastPathDelay,
	})

	purchaseService := purchase.NewService(purchase.Deps{
		Repo:     orderRepo,
		Payments: paymentRepo,
		Locks:    locks,
		Stock:    stock,
		Wallet:   points,
		Coupons:  couponLedger,
		Tx:       dbClient,
		Outbox:   outboxService,
		Gateway:  gateway,
		Settler:  reconcileService,
		Recovery: reconcileService,
		Logger:   logg,
	})

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
		Addr:    addr,
		Handler: routes.NewRouter(cfg, logg, dbClient, redisClient, metricsReg, purchaseService, reconcileService),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
