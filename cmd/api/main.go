package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	paymentApp "github.com/alpian-ledger/payment-service/internal/application/payment"
	"github.com/alpian-ledger/payment-service/internal/bootstrap"
	"github.com/alpian-ledger/payment-service/internal/controller"
	"github.com/alpian-ledger/payment-service/internal/repository/postgres"
)

func main() {
	ctx := context.Background()

	app, err := bootstrap.New(ctx, "payment-service-api", "payment_service")
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
	createUC := paymentApp.NewCreatePaymentUseCase(paymentRepo, txManager, app.Config.Payment.MaxRetries)
	getUC := paymentApp.NewGetPaymentUseCase(paymentRepo)
	cancelUC := paymentApp.NewCancelPaymentUseCase(transitioner)

	// --- Build router ---
	router := controller.NewRouter(controller.RouterDeps{
		Pool:        app.Pool,
		RedisClient: app.Redis,
		CreateUC:    createUC,
		GetUC:       getUC,
		CancelUC:    cancelUC,
		Metrics:     app.Metrics,
		Server:      app.Config.Server,
	})

	// --- HTTP server ---
	addr := fmt.Sprintf(":%d", app.Config.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  app.Config.Server.ReadTimeout,
		WriteTimeout: app.Config.Server.WriteTimeout,
		IdleTimeout:  app.Config.Server.IdleTimeout,
	}

	go func() {
		app.Logger.Info().Str("addr", addr).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			app.Logger.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	app.Logger.Info().Msg("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), app.Config.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		app.Logger.Error().Err(err).Msg("Server forced to shutdown")
	}
	app.Logger.Info().Msg("Server exited")
}
