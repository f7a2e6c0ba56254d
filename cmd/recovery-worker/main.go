package main

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/minsu-cho/commerce-backend/internal/cron"
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
	logg := logger.New(logger.Options{ServiceName: "recovery-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "recovery-worker"

	logg = logger.New(logger.Options{
		ServiceName: "recovery-worker",
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

	gatewayMetrics := metrics.NewGatewayMetrics(prometheus.DefaultRegisterer)
	pgClient, err := pg.NewClient(cfg.Gateway, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create payment gateway client", err)
		os.Exit(1)
	}
	// The sweep runs off the hot path, so it bypasses the breaker and
	// keeps probing the gateway even while interactive traffic is shed.
	inquirer, err := pg.NewSchedulerGateway(pgClient, cfg.Gateway, gatewayMetrics, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create scheduler gateway", err)
		os.Exit(1)
	}

	gormDB := dbClient.DB()
	orderRepo := purchase.NewRepository(gormDB)
	paymentRepo := payment.NewRepository(gormDB)
	outboxRepo := outbox.NewRepository(gormDB)
	outboxService := outbox.NewService(outboxRepo, logg)

	compensator := reconcile.NewCompensator(reconcile.CompensatorDeps{
		Orders:   orderRepo,
		Payments: paymentRepo,
		Locks:    locking.NewRepository(),
		Stock:    inventory.NewStockLedger(),
		Wallet:   wallet.NewPointWallet(),
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
		Inquirer:     inquirer,
		Logger:       logg,
		FastPathWait: cfg.Recovery.FastPathDelay,
	})

	recoveryJob, err := cron.NewPaymentRecoveryJob(cron.PaymentRecoveryJobParams{
		Logger:        logg,
		Orders:        orderRepo,
		Recoverer:     reconcileService,
		PendingMinAge: cfg.Recovery.PendingMinAge,
		BatchSize:     cfg.Recovery.SweepBatchSize,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create payment recovery job", err)
		os.Exit(1)
	}

	retentionJob, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:     logg,
		DB:         dbClient,
		Repository: outboxRepo,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create outbox retention job", err)
		os.Exit(1)
	}

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey(lockName(cfg.App.Env)), 0)
	if err != nil {
		logg.Error(context.Background(), "failed to create worker lock", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(recoveryJob, retentionJob),
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Recovery.SweepInterval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create worker service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting recovery worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "recovery worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "recovery worker shutting down gracefully")
}

func lockName(env string) string {
	if env == "" {
		env = "local"
	}
	return "recovery-worker:" + env
}
