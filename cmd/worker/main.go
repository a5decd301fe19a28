package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	paymentApp "github.com/alpian-ledger/payment-service/internal/application/payment"
	"github.com/alpian-ledger/payment-service/internal/bootstrap"
	"github.com/alpian-ledger/payment-service/internal/infrastructure/bus"
	"github.com/alpian-ledger/payment-service/internal/infrastructure/gateway"
	infraRedis "github.com/alpian-ledger/payment-service/internal/infrastructure/redis"
	"github.com/alpian-ledger/payment-service/internal/publisher"
	"github.com/alpian-ledger/payment-service/internal/repository/postgres"
	"github.com/alpian-ledger/payment-service/internal/scheduler"
	"golang.org/x/sync/errgroup"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := bootstrap.New(ctx, "payment-service-worker", "payment_service_worker")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap: %v\n", err)
		os.Exit(1)
	}
	defer app.Close()

	// --- Repositories ---
	paymentRepo := postgres.NewPaymentRepository(app.Pool)
	outboxRepo := postgres.NewOutboxRepository(app.Pool)
	txManager := postgres.NewTxManager(app.Pool)

	// --- Application services ---
	transitioner := paymentApp.NewTransitioner(
		paymentRepo, outboxRepo, txManager,
		paymentApp.BackoffPolicy{
			Base: app.Config.Payment.RetryBackoffBase,
			Cap:  app.Config.Payment.RetryBackoffCap,
		},
		uint(app.Config.Payment.ConflictRetries),
	)
	gatewayFactory := gateway.NewFactory()
	submitUC := paymentApp.NewSubmitPaymentUseCase(
		transitioner, gatewayFactory, "acme", app.Config.Payment.SubmissionTimeout,
	)

	// --- Outbox publisher ---
	streamPublisher := bus.NewStreamPublisher(app.Redis)
	outboxPublisher := publisher.New(outboxRepo, streamPublisher, app.Logger, app.Metrics, publisher.Config{
		InstanceID:   app.Config.InstanceID,
		Topic:        app.Config.Outbox.Topic,
		BatchSize:    app.Config.Outbox.BatchSize,
		PollInterval: app.Config.Outbox.PollInterval,
		Lease:        app.Config.Outbox.LeaseDuration,
		BackoffBase:  app.Config.Outbox.BackoffBase,
		BackoffCap:   app.Config.Outbox.BackoffCap,
	})

	// --- Scheduler ---
	locks := infraRedis.NewLockManager(app.Redis, app.Config.InstanceID)
	tasks := scheduler.NewTasks(
		paymentRepo, submitUC, transitioner,
		scheduler.NewRedisLocker(locks),
		app.Logger, app.Metrics,
		app.Config.Scheduler.ScanLimit, app.Config.Scheduler.LockTTL, app.Config.Scheduler.StuckAfter,
	)
	registry := scheduler.NewRegistry()
	if err := tasks.RegisterAll(registry); err != nil {
		app.Logger.Fatal().Err(err).Msg("Task registration failed")
	}
	sched := scheduler.New(registry, app.Logger, app.Metrics, scheduler.Config{
		PollInterval: app.Config.Scheduler.PollInterval,
	})

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	g, gCtx := errgroup.WithContext(ctx)

	// 1. Outbox publisher (drains the outbox to Redis Streams).
	g.Go(func() error {
		return outboxPublisher.Run(gCtx)
	})

	// 2. Scheduler (submits, retries, and reclaims payments).
	g.Go(func() error {
		return sched.Run(gCtx)
	})

	// 3. Wait for shutdown signal.
	g.Go(func() error {
		select {
		case <-gCtx.Done():
			return gCtx.Err()
		case <-quit:
			app.Logger.Info().Msg("Shutting down worker...")
			cancel()
			return nil
		}
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		app.Logger.Error().Err(err).Msg("Worker error")
	}
	app.Logger.Info().Msg("Worker exited")
}
